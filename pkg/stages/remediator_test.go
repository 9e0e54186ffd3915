package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskops-io/deskops/pkg/remediation"
	"github.com/deskops-io/deskops/pkg/workflow"
)

func newTestRemediator(t *testing.T, model ModelCaller) *Remediator {
	t.Helper()
	remediator, err := NewRemediator(model, nil, remediation.NewEngine())
	require.NoError(t, err)
	return remediator
}

func TestRemediate_PlanExecutesSuccessfully(t *testing.T) {
	model := &scriptModel{replies: []string{`{
		"summary": "Reset password and notify the user",
		"requires_approval": false,
		"confidence": 0.85,
		"steps": [
			{"action": "Reset the password", "tool": "reset_password", "params": {"user_email": "sam@corp.example"}},
			{"action": "Notify the user", "tool": "send_user_notification", "params": {"user_email": "sam@corp.example"}}
		]
	}`}}
	remediator := newTestRemediator(t, model)

	result, err := remediator.Remediate(context.Background(),
		&workflow.Ticket{ID: "T-1", Category: "access", UserEmail: "sam@corp.example"}, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Reset password and notify the user", result.Detail)
	assert.Equal(t, []string{"Reset the password", "Notify the user"}, result.Actions)
	assert.Empty(t, result.EscalationReason)
}

func TestRemediate_ApprovalRequiredNotExecuted(t *testing.T) {
	model := &scriptModel{replies: []string{`{
		"summary": "Grant elevated access",
		"requires_approval": true,
		"steps": [{"action": "Grant access", "tool": "unknown_tool_never_run"}]
	}`}}
	remediator := newTestRemediator(t, model)

	result, err := remediator.Remediate(context.Background(),
		&workflow.Ticket{ID: "T-2", Category: "access"}, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "Actions require human approval", result.EscalationReason)
	assert.Equal(t, []string{"Created resolution plan"}, result.Actions)
}

func TestRemediate_FirstStepFailureAbortsAttempt(t *testing.T) {
	model := &scriptModel{replies: []string{`{
		"summary": "Install the tool",
		"steps": [
			{"action": "Install unapproved software", "tool": "install_software", "params": {"software_id": "cryptominer"}},
			{"action": "Run diagnostic", "tool": "run_diagnostic"}
		]
	}`}}
	remediator := newTestRemediator(t, model)

	result, err := remediator.Remediate(context.Background(),
		&workflow.Ticket{ID: "T-3", Category: "software"}, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	// The second step never ran.
	assert.Empty(t, result.Actions)
	assert.Equal(t, "One or more remediation steps failed", result.EscalationReason)
	assert.Equal(t, "Resolution incomplete", result.Detail)
}

func TestRemediate_LaterStepFailureContinues(t *testing.T) {
	model := &scriptModel{replies: []string{`{
		"summary": "Diagnose then install",
		"steps": [
			{"action": "Run diagnostic", "tool": "run_diagnostic"},
			{"action": "Install unapproved software", "tool": "install_software", "params": {"software_id": "cryptominer"}},
			{"action": "Notify the user", "tool": "send_user_notification", "params": {"user_email": "sam@corp.example"}}
		]
	}`}}
	remediator := newTestRemediator(t, model)

	result, err := remediator.Remediate(context.Background(),
		&workflow.Ticket{ID: "T-4", Category: "software"}, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	// Steps after the non-first failure still ran.
	assert.Equal(t, []string{"Run diagnostic", "Notify the user"}, result.Actions)
}

func TestRemediate_UnknownToolIsStepFailure(t *testing.T) {
	model := &scriptModel{replies: []string{`{
		"summary": "Do something exotic",
		"steps": [
			{"action": "Run diagnostic", "tool": "run_diagnostic"},
			{"action": "Exotic action", "tool": "teleport_device"}
		]
	}`}}
	remediator := newTestRemediator(t, model)

	result, err := remediator.Remediate(context.Background(),
		&workflow.Ticket{ID: "T-5", Category: "other"}, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []string{"Run diagnostic"}, result.Actions)
}

func TestRemediate_UnparseablePlanUsesCategoryDefault(t *testing.T) {
	tests := []struct {
		category    string
		wantSummary string
		wantActions []string
	}{
		{"access", "Default resolution plan for access",
			[]string{"Check account status", "Unlock account if locked"}},
		{"network", "Default resolution plan for network",
			[]string{"Check VPN service status", "Push VPN configuration"}},
		{"hardware", "Default resolution plan for hardware",
			[]string{"Run general diagnostic"}},
		{"", "Default resolution plan for other",
			[]string{"Run general diagnostic"}},
	}

	for _, tt := range tests {
		t.Run("category "+tt.category, func(t *testing.T) {
			model := &scriptModel{replies: []string{"Step 1: turn it off and on again."}}
			remediator := newTestRemediator(t, model)

			result, err := remediator.Remediate(context.Background(),
				&workflow.Ticket{ID: "T-6", Category: tt.category, UserEmail: "sam@corp.example"}, nil)
			require.NoError(t, err)

			assert.True(t, result.Success)
			assert.Equal(t, tt.wantSummary, result.Detail)
			assert.Equal(t, tt.wantActions, result.Actions)
		})
	}
}

func TestRemediate_TicketIdentityFilledIntoParams(t *testing.T) {
	model := &scriptModel{replies: []string{`{
		"summary": "Unlock account",
		"steps": [{"action": "Unlock account", "tool": "unlock_account"}]
	}`}}
	remediator := newTestRemediator(t, model)

	// unlock_account requires a user identity; it must come from the
	// ticket when the plan omits it.
	result, err := remediator.Remediate(context.Background(),
		&workflow.Ticket{ID: "T-7", Category: "access", UserEmail: "sam@corp.example"}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
}
