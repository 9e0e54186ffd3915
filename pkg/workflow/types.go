// Package workflow implements the ticket-handling state machine: it
// sequences the classification, policy-validation, and remediation
// stages, applies routing rules to each stage's decision, bounds
// remediation retries, and resolves every run to a terminal status.
package workflow

import "time"

// Status is a workflow state. The zero value is not a valid status.
type Status string

const (
	StatusPending          Status = "pending"
	StatusClassifying      Status = "classifying"
	StatusValidatingPolicy Status = "validating_policy"
	StatusResolving        Status = "resolving"
	StatusEscalating       Status = "escalating"
	StatusAwaitingInfo     Status = "awaiting_info"
	StatusFinalizing       Status = "finalizing"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"

	// StatusNotFound is the sentinel returned by status queries for
	// unknown ticket identifiers.
	StatusNotFound Status = "not_found"
)

// Terminal reports whether the status is one a finished run ends in.
// Escalating counts as terminal only once a run has been finalized;
// mid-run it is an intermediate state that proceeds to Finalizing, so
// run-loop termination keys on the run's end timestamp, not on this.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusEscalating:
		return true
	}
	return false
}

// Decision codes emitted by the classification stage.
const (
	DecisionAutoResolve     = "auto_resolve"
	DecisionAgentResolution = "agent_resolution"
	DecisionHumanEscalation = "human_escalation"
	DecisionInfoRequest     = "information_request"
)

// Decision codes emitted by the policy-validation stage.
const (
	DecisionApproved = "approved"
	DecisionDenied   = "denied"
)

// Ticket is the support request a run operates on.
type Ticket struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	UserEmail   string `json:"user_email,omitempty"`

	// Category and Priority may be pre-set by the caller; otherwise the
	// classification stage fills them in.
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// StageResult is the tagged outcome of one stage invocation. Immutable
// once returned by a stage.
type StageResult struct {
	// Decision is the stage's routing code.
	Decision string `json:"decision"`

	// Confidence is the stage's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Detail is the stage's narrative: rationale for classification,
	// summary for remediation.
	Detail string `json:"detail"`

	// Success reports whether the stage achieved its goal. Only the
	// remediation stage's value drives routing.
	Success bool `json:"success"`

	// Actions lists side effects the stage performed.
	Actions []string `json:"actions,omitempty"`

	// Classification extras.
	Category      string `json:"category,omitempty"`
	Priority      string `json:"priority,omitempty"`
	SuggestedPath string `json:"suggested_path,omitempty"`

	// EscalationReason is set by a stage that wants its own wording used
	// if the run escalates.
	EscalationReason string `json:"escalation_reason,omitempty"`
}

// Transition is one entry in a run's append-only transition log.
type Transition struct {
	Stage     string    `json:"stage"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the record of one ticket's progress through the state
// machine. It is owned exclusively by the orchestrator run that created
// it and becomes immutable once a terminal status is reached.
type State struct {
	Ticket Ticket `json:"ticket"`
	Status Status `json:"status"`

	Iteration     int `json:"iteration"`
	MaxIterations int `json:"max_iterations"`

	// Per-stage snapshots, each set once when the stage produces a
	// result and never overwritten.
	Classification *StageResult `json:"classification,omitempty"`
	Validation     *StageResult `json:"validation,omitempty"`
	Remediation    *StageResult `json:"remediation,omitempty"`

	// Transitions and ActionsTaken are append-only.
	Transitions  []Transition `json:"transitions"`
	ActionsTaken []string     `json:"actions_taken"`

	Escalated        bool   `json:"escalated"`
	EscalationReason string `json:"escalation_reason,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Result is the outcome of a completed run.
type Result struct {
	TicketID         string   `json:"ticket_id"`
	Status           Status   `json:"status"`
	Summary          string   `json:"summary"`
	ActionsTaken     []string `json:"actions_taken"`
	Escalated        bool     `json:"escalated"`
	EscalationReason string   `json:"escalation_reason,omitempty"`
	DurationSeconds  float64  `json:"duration_seconds"`
	IterationCount   int      `json:"iteration_count"`
}

// Snapshot is a point-in-time view of a run, served by status queries.
type Snapshot struct {
	TicketID         string       `json:"ticket_id"`
	Status           Status       `json:"status"`
	Iteration        int          `json:"iteration"`
	Escalated        bool         `json:"escalated"`
	EscalationReason string       `json:"escalation_reason,omitempty"`
	Transitions      []Transition `json:"transitions,omitempty"`
	StartedAt        time.Time    `json:"started_at,omitempty"`
	EndedAt          time.Time    `json:"ended_at,omitempty"`
}
