package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskops-io/deskops/pkg/config"
)

type stubClassifier struct {
	result *StageResult
	err    error
}

func (s *stubClassifier) Classify(ctx context.Context, ticket *Ticket) (*StageResult, error) {
	return s.result, s.err
}

type stubValidator struct {
	approved bool
	err      error
	calls    int
}

func (s *stubValidator) Validate(ctx context.Context, ticket *Ticket, classification *StageResult) (*StageResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	decision := DecisionDenied
	if s.approved {
		decision = DecisionApproved
	}
	return &StageResult{Decision: decision, Success: s.approved}, nil
}

// stubRemediator fails the first failures attempts, then succeeds.
type stubRemediator struct {
	failures int
	calls    int
	panics   bool
	block    chan struct{}
}

func (s *stubRemediator) Remediate(ctx context.Context, ticket *Ticket, classification *StageResult) (*StageResult, error) {
	if s.block != nil {
		<-s.block
	}
	if s.panics {
		panic("remediation engine crashed")
	}
	s.calls++
	if s.calls <= s.failures {
		return &StageResult{
			Success:          false,
			Detail:           "attempt failed",
			EscalationReason: "automated remediation unsuccessful",
		}, nil
	}
	return &StageResult{
		Success: true,
		Detail:  "Password reset completed",
		Actions: []string{"reset_password"},
	}, nil
}

func classified(decision string) *StageResult {
	return &StageResult{
		Decision:   decision,
		Category:   "account_access",
		Priority:   "medium",
		Confidence: 0.9,
		Detail:     "User locked out after password expiry",
	}
}

func newTestOrchestrator(t *testing.T, classifier Classifier, validator Validator,
	remediator Remediator, maxIterations int) (*Orchestrator, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	o, err := New(&config.WorkflowConfig{MaxIterations: maxIterations},
		classifier, validator, remediator, store)
	require.NoError(t, err)
	return o, store
}

func TestRun_AutoResolveFirstAttempt(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		&stubClassifier{result: classified(DecisionAutoResolve)},
		&stubValidator{approved: true},
		&stubRemediator{}, 5)

	result, err := o.Run(context.Background(), Ticket{ID: "T-1", Title: "locked out"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 1, result.IterationCount)
	assert.False(t, result.Escalated)
	assert.Equal(t, "Password reset completed", result.Summary)
	assert.Contains(t, result.ActionsTaken, "reset_password")
	assert.Contains(t, result.ActionsTaken, "Triage: auto_resolve")
}

func TestRun_ValidationDeniedEscalates(t *testing.T) {
	remediator := &stubRemediator{}
	o, _ := newTestOrchestrator(t,
		&stubClassifier{result: classified(DecisionAgentResolution)},
		&stubValidator{approved: false},
		remediator, 5)

	result, err := o.Run(context.Background(), Ticket{ID: "T-2", Title: "install admin tool"})
	require.NoError(t, err)

	assert.Equal(t, StatusEscalating, result.Status)
	assert.True(t, result.Escalated)
	assert.NotEmpty(t, result.EscalationReason)
	assert.Zero(t, remediator.calls, "denied plans must never reach remediation")
	assert.Contains(t, result.ActionsTaken, "Policy: Review Required")
}

func TestRun_IterationBoundEscalates(t *testing.T) {
	remediator := &stubRemediator{failures: 100}
	o, _ := newTestOrchestrator(t,
		&stubClassifier{result: classified(DecisionAutoResolve)},
		&stubValidator{approved: true},
		remediator, 5)

	result, err := o.Run(context.Background(), Ticket{ID: "T-3", Title: "vpn broken"})
	require.NoError(t, err)

	assert.Equal(t, StatusEscalating, result.Status)
	// Exactly maxIterations attempts, never one more.
	assert.Equal(t, 5, result.IterationCount)
	assert.Equal(t, 5, remediator.calls)
	assert.True(t, result.Escalated)
}

func TestRun_RetryThenSuccess(t *testing.T) {
	remediator := &stubRemediator{failures: 2}
	o, _ := newTestOrchestrator(t,
		&stubClassifier{result: classified(DecisionAutoResolve)},
		&stubValidator{approved: true},
		remediator, 5)

	result, err := o.Run(context.Background(), Ticket{ID: "T-4", Title: "flaky wifi"})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 3, result.IterationCount)
	assert.False(t, result.Escalated)
}

func TestRun_HumanEscalationUsesClassifierRationale(t *testing.T) {
	validator := &stubValidator{approved: true}
	o, _ := newTestOrchestrator(t,
		&stubClassifier{result: classified(DecisionHumanEscalation)},
		validator, &stubRemediator{}, 5)

	result, err := o.Run(context.Background(), Ticket{ID: "T-5", Title: "server room on fire"})
	require.NoError(t, err)

	assert.Equal(t, StatusEscalating, result.Status)
	assert.True(t, result.Escalated)
	assert.Equal(t, "User locked out after password expiry", result.EscalationReason)
	assert.Zero(t, validator.calls)
}

func TestRun_InformationRequest(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		&stubClassifier{result: classified(DecisionInfoRequest)},
		&stubValidator{approved: true},
		&stubRemediator{}, 5)

	result, err := o.Run(context.Background(), Ticket{ID: "T-6", Title: "something is wrong"})
	require.NoError(t, err)

	// No remediation ran and nothing escalated, so the run ends failed.
	assert.Equal(t, StatusFailed, result.Status)
	assert.False(t, result.Escalated)
	assert.Contains(t, result.ActionsTaken, "Requested additional information")
}

func TestRun_UnknownDecisionRoutesToValidation(t *testing.T) {
	validator := &stubValidator{approved: true}
	o, _ := newTestOrchestrator(t,
		&stubClassifier{result: classified("format_disk")},
		validator, &stubRemediator{}, 5)

	result, err := o.Run(context.Background(), Ticket{ID: "T-7", Title: "odd request"})
	require.NoError(t, err)

	assert.Equal(t, 1, validator.calls)
	assert.Equal(t, StatusCompleted, result.Status)
}

func TestRun_StageErrorResolvesToFailed(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		&stubClassifier{err: errors.New("model unreachable")},
		&stubValidator{approved: true},
		&stubRemediator{}, 5)

	result, err := o.Run(context.Background(), Ticket{ID: "T-8", Title: "anything"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)

	snap := o.Status("T-8")
	require.NotEmpty(t, snap.Transitions)
	assert.Contains(t, snap.Transitions[len(snap.Transitions)-1].Summary, "model unreachable")
}

func TestRun_StagePanicResolvesToFailed(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		&stubClassifier{result: classified(DecisionAutoResolve)},
		&stubValidator{approved: true},
		&stubRemediator{panics: true}, 5)

	result, err := o.Run(context.Background(), Ticket{ID: "T-9", Title: "anything"})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, result.Status)
	snap := o.Status("T-9")
	assert.True(t, snap.Status.Terminal(), "a run must never stick non-terminal")
}

func TestRun_ConcurrentSameTicketRejected(t *testing.T) {
	block := make(chan struct{})
	o, _ := newTestOrchestrator(t,
		&stubClassifier{result: classified(DecisionAutoResolve)},
		&stubValidator{approved: true},
		&stubRemediator{block: block}, 5)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := o.Run(context.Background(), Ticket{ID: "T-10", Title: "slow one"})
		assert.NoError(t, err)
	}()

	// Wait until the first run holds the lease (it is parked inside the
	// remediator).
	require.Eventually(t, func() bool {
		return o.Status("T-10").Status != StatusNotFound
	}, testWait, testTick)

	_, err := o.Run(context.Background(), Ticket{ID: "T-10", Title: "slow one"})
	assert.ErrorIs(t, err, ErrRunActive)

	close(block)
	wg.Wait()

	// The lease is released after the first run finishes.
	_, err = o.Run(context.Background(), Ticket{ID: "T-10", Title: "slow one"})
	assert.NoError(t, err)
}

func TestStatus_UnknownTicket(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		&stubClassifier{result: classified(DecisionAutoResolve)},
		&stubValidator{approved: true},
		&stubRemediator{}, 5)

	snap := o.Status("no-such-ticket")
	require.NotNil(t, snap)
	assert.Equal(t, StatusNotFound, snap.Status)
	assert.Equal(t, "no-such-ticket", snap.TicketID)
}

func TestStatus_AfterCompletedRun(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		&stubClassifier{result: classified(DecisionAutoResolve)},
		&stubValidator{approved: true},
		&stubRemediator{}, 5)

	_, err := o.Run(context.Background(), Ticket{ID: "T-11", Title: "locked out"})
	require.NoError(t, err)

	snap := o.Status("T-11")
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 1, snap.Iteration)
	assert.NotEmpty(t, snap.Transitions)
	assert.False(t, snap.EndedAt.IsZero())
}

func TestNew_Validation(t *testing.T) {
	store := NewMemoryStore()
	classifier := &stubClassifier{}
	validator := &stubValidator{}
	remediator := &stubRemediator{}

	_, err := New(&config.WorkflowConfig{MaxIterations: 5}, nil, validator, remediator, store)
	assert.Error(t, err)

	_, err = New(&config.WorkflowConfig{MaxIterations: 5}, classifier, validator, remediator, nil)
	assert.Error(t, err)

	_, err = New(&config.WorkflowConfig{MaxIterations: 0}, classifier, validator, remediator, store)
	assert.Error(t, err)
}
