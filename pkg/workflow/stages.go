package workflow

import "context"

// The orchestrator depends on the stage contract only; concrete stages
// live elsewhere and are injected at construction.

// Classifier triages a ticket: category, priority, routing decision,
// confidence, and rationale.
type Classifier interface {
	Classify(ctx context.Context, ticket *Ticket) (*StageResult, error)
}

// Validator checks a classified ticket's suggested resolution path
// against policy. The result's decision is "approved" or "denied".
type Validator interface {
	Validate(ctx context.Context, ticket *Ticket, classification *StageResult) (*StageResult, error)
}

// Remediator attempts to resolve the ticket. The result's success flag
// and actions drive retry and escalation routing.
type Remediator interface {
	Remediate(ctx context.Context, ticket *Ticket, classification *StageResult) (*StageResult, error)
}
