package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deskops-io/deskops/pkg/config"
)

// defaultEscalationReason is used when neither the classification nor
// the remediation stage supplied wording for the handoff.
const defaultEscalationReason = "Requires human expertise"

// Orchestrator drives a ticket through the state machine. It owns no
// global state; every run reads and writes through the injected Store.
type Orchestrator struct {
	classifier Classifier
	validator  Validator
	remediator Remediator
	store      Store

	maxIterations int
	now           func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator. All three stages and the store are
// required.
func New(cfg *config.WorkflowConfig, classifier Classifier, validator Validator,
	remediator Remediator, store Store, opts ...Option) (*Orchestrator, error) {
	if classifier == nil || validator == nil || remediator == nil {
		return nil, fmt.Errorf("all stages are required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.MaxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", cfg.MaxIterations)
	}

	o := &Orchestrator{
		classifier:    classifier,
		validator:     validator,
		remediator:    remediator,
		store:         store,
		maxIterations: cfg.MaxIterations,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run drives the ticket from Classifying to a terminal status and
// returns the outcome. A second Run for the same ticket id while one is
// in flight fails with ErrRunActive.
//
// Stage failures, including panics, are caught at the node boundary,
// recorded in the transition log, and resolve the run to Failed; a run
// never finishes in a non-terminal state.
func (o *Orchestrator) Run(ctx context.Context, ticket Ticket) (*Result, error) {
	state := &State{
		Ticket:        ticket,
		Status:        StatusPending,
		MaxIterations: o.maxIterations,
		StartedAt:     o.now(),
	}
	if err := o.store.Begin(state); err != nil {
		return nil, err
	}
	defer o.store.Finish(ticket.ID)

	slog.Info("workflow started", "ticket_id", ticket.ID)

	state.Status = StatusClassifying
	for state.EndedAt.IsZero() {
		o.step(ctx, state)
		o.store.Save(state)
	}

	result := &Result{
		TicketID:         ticket.ID,
		Status:           state.Status,
		Summary:          buildSummary(state),
		ActionsTaken:     state.ActionsTaken,
		Escalated:        state.Escalated,
		EscalationReason: state.EscalationReason,
		DurationSeconds:  state.EndedAt.Sub(state.StartedAt).Seconds(),
		IterationCount:   state.Iteration,
	}
	slog.Info("workflow finished",
		"ticket_id", ticket.ID,
		"status", result.Status,
		"iterations", result.IterationCount,
		"escalated", result.Escalated)
	return result, nil
}

// Status returns a snapshot of the latest run for a ticket. Unknown
// identifiers yield the not-found sentinel, never an error.
func (o *Orchestrator) Status(ticketID string) *Snapshot {
	state, ok := o.store.Get(ticketID)
	if !ok {
		return &Snapshot{TicketID: ticketID, Status: StatusNotFound}
	}
	return &Snapshot{
		TicketID:         ticketID,
		Status:           state.Status,
		Iteration:        state.Iteration,
		Escalated:        state.Escalated,
		EscalationReason: state.EscalationReason,
		Transitions:      state.Transitions,
		StartedAt:        state.StartedAt,
		EndedAt:          state.EndedAt,
	}
}

// step executes the node for the current status and advances it.
func (o *Orchestrator) step(ctx context.Context, state *State) {
	switch state.Status {
	case StatusClassifying:
		o.classify(ctx, state)
	case StatusValidatingPolicy:
		o.validate(ctx, state)
	case StatusResolving:
		o.resolve(ctx, state)
	case StatusEscalating:
		o.escalate(state)
	case StatusAwaitingInfo:
		o.requestInfo(state)
	case StatusFinalizing:
		o.finalize(state)
	default:
		o.fail(state, "orchestrator", fmt.Errorf("unexpected status %q", state.Status))
	}
}

func (o *Orchestrator) classify(ctx context.Context, state *State) {
	result, err := runStage("classification", func() (*StageResult, error) {
		return o.classifier.Classify(ctx, &state.Ticket)
	})
	if err != nil {
		o.fail(state, "classification", err)
		return
	}

	state.Classification = result
	if result.Category != "" {
		state.Ticket.Category = result.Category
	}
	if result.Priority != "" {
		state.Ticket.Priority = result.Priority
	}
	o.record(state, "classification",
		fmt.Sprintf("Classified: %s (%s)", result.Category, result.Priority),
		"Triage: "+result.Decision)

	state.Status = RouteAfterClassification(result.Decision)
}

func (o *Orchestrator) validate(ctx context.Context, state *State) {
	result, err := runStage("policy validation", func() (*StageResult, error) {
		return o.validator.Validate(ctx, &state.Ticket, state.Classification)
	})
	if err != nil {
		o.fail(state, "policy validation", err)
		return
	}

	state.Validation = result
	approved := result.Decision == DecisionApproved
	if approved {
		o.record(state, "policy validation", "Policy: approved", "Policy: Approved")
	} else {
		o.record(state, "policy validation", "Policy: denied", "Policy: Review Required")
	}

	state.Status = RouteAfterValidation(approved)
}

func (o *Orchestrator) resolve(ctx context.Context, state *State) {
	state.Iteration++

	result, err := runStage("remediation", func() (*StageResult, error) {
		return o.remediator.Remediate(ctx, &state.Ticket, state.Classification)
	})
	if err != nil {
		o.fail(state, "remediation", err)
		return
	}

	state.Remediation = result
	o.record(state, "remediation",
		fmt.Sprintf("Attempt %d: %s", state.Iteration, result.Detail),
		result.Actions...)

	state.Status = RouteAfterRemediation(result.Success, state.Iteration, state.MaxIterations)
}

// escalate raises the escalation flag with the most specific reason
// available: the classifier's rationale, then the remediator's own
// wording, then a generic fallback.
func (o *Orchestrator) escalate(state *State) {
	if !state.Escalated {
		reason := defaultEscalationReason
		if state.Classification != nil && state.Classification.Detail != "" {
			reason = state.Classification.Detail
		} else if state.Remediation != nil && state.Remediation.EscalationReason != "" {
			reason = state.Remediation.EscalationReason
		}
		state.Escalated = true
		state.EscalationReason = reason
	}

	o.record(state, "escalation",
		"Escalating: "+state.EscalationReason,
		"Escalated: "+truncate(state.EscalationReason, 50))

	state.Status = StatusFinalizing
}

func (o *Orchestrator) requestInfo(state *State) {
	o.record(state, "information request",
		"Requesting additional information",
		"Requested additional information")
	state.Status = StatusFinalizing
}

func (o *Orchestrator) finalize(state *State) {
	state.Status = FinalStatus(state.Remediation, state.Escalated)
	state.EndedAt = o.now()
	o.record(state, "orchestrator",
		fmt.Sprintf("Workflow completed: %s", state.Status))
}

// fail resolves the run to Failed with the failure recorded in the
// transition log.
func (o *Orchestrator) fail(state *State, stage string, err error) {
	slog.Error("stage failed", "ticket_id", state.Ticket.ID, "stage", stage, "error", err)
	o.record(state, stage, fmt.Sprintf("Failed: %v", err))
	state.Status = StatusFailed
	state.EndedAt = o.now()
}

// record appends one transition log entry plus any actions taken.
func (o *Orchestrator) record(state *State, stage, summary string, actions ...string) {
	state.Transitions = append(state.Transitions, Transition{
		Stage:     stage,
		Summary:   summary,
		Timestamp: o.now(),
	})
	state.ActionsTaken = append(state.ActionsTaken, actions...)
}

// runStage invokes a stage with panic isolation, so a stage crash is
// reported at the node boundary instead of unwinding the run.
func runStage(name string, fn func() (*StageResult, error)) (result *StageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%s stage panicked: %v", name, r)
		}
	}()
	result, err = fn()
	if err == nil && result == nil {
		err = fmt.Errorf("%s stage returned no result", name)
	}
	return result, err
}

func buildSummary(state *State) string {
	if state.Remediation != nil && state.Remediation.Success {
		if state.Remediation.Detail != "" {
			return state.Remediation.Detail
		}
		return "Issue resolved"
	}
	if state.Escalated {
		return "Escalated: " + state.EscalationReason
	}
	return "Resolution unsuccessful"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
