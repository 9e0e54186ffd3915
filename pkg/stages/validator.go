package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/deskops-io/deskops/pkg/llm"
	"github.com/deskops-io/deskops/pkg/workflow"
)

// approvalRequiredActions can never be taken automatically; a plan
// mentioning one is denied outright.
var approvalRequiredActions = []string{
	"delete_user_account",
	"grant_admin_access",
	"modify_security_group",
	"export_user_data",
	"disable_mfa",
	"access_privileged_system",
}

// highRiskKeywords screen the suggested resolution path. Any hit denies
// the plan and routes the ticket to a human.
var highRiskKeywords = []string{
	"admin", "delete", "remove", "disable", "production",
	"database", "root", "sudo", "privileged",
}

const validatorSystemPrompt = `You are a security and compliance validation agent. Evaluate the proposed IT resolution plan against security policy: least privilege, identity verification, sensitive data handling, and change management.

Reply with a single JSON object, no other text:
{"approved": true|false, "reason": "your justification"}`

type approvalCheck struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

// Validator is the policy-validation stage. The rule screens run first;
// the model is consulted only when a plan has no suggested path to
// screen, and its verdict fails closed on an unparseable reply.
type Validator struct {
	model  ModelCaller
	schema *jsonschema.Schema
}

// NewValidator creates the policy-validation stage. The model caller
// may be nil for purely rule-based validation.
func NewValidator(model ModelCaller) (*Validator, error) {
	schema, err := compileSchema("approval", approvalSchemaJSON)
	if err != nil {
		return nil, err
	}
	return &Validator{model: model, schema: schema}, nil
}

// Validate screens the classified ticket's suggested resolution path.
func (v *Validator) Validate(ctx context.Context, ticket *workflow.Ticket, classification *workflow.StageResult) (*workflow.StageResult, error) {
	path := ""
	if classification != nil {
		path = strings.ToLower(classification.SuggestedPath)
	}

	for _, action := range approvalRequiredActions {
		if strings.Contains(path, action) {
			return denied(ticket,
				fmt.Sprintf("Action %q requires human approval", action)), nil
		}
	}

	for _, kw := range highRiskKeywords {
		if strings.Contains(path, kw) {
			return denied(ticket,
				fmt.Sprintf("Resolution path mentions high-risk keyword %q", kw)), nil
		}
	}

	if path == "" && v.model != nil {
		return v.modelCheck(ctx, ticket, classification)
	}

	return approved("Resolution path passed policy screens"), nil
}

// modelCheck asks the model to judge a plan the rule screens had
// nothing to say about.
func (v *Validator) modelCheck(ctx context.Context, ticket *workflow.Ticket, classification *workflow.StageResult) (*workflow.StageResult, error) {
	rationale := ""
	if classification != nil {
		rationale = classification.Detail
	}
	prompt := fmt.Sprintf("TICKET: %s\nDESCRIPTION: %s\nCATEGORY: %s\nTRIAGE RATIONALE: %s\n\nNo explicit resolution path was proposed. Should automated remediation proceed?",
		ticket.Title, ticket.Description, ticket.Category, rationale)

	reply, err := v.model.Invoke(ctx, llm.UserRequest(validatorSystemPrompt, prompt))
	if err != nil {
		return nil, err
	}

	var check approvalCheck
	if err := decodeValidated("policy validation", v.schema, reply, &check); err != nil {
		// Fail closed: an unreadable verdict denies the plan.
		slog.Warn("validation reply rejected, denying plan",
			"ticket_id", ticket.ID, "error", err)
		return denied(ticket, "Policy verdict unparseable"), nil
	}

	if !check.Approved {
		return denied(ticket, check.Reason), nil
	}
	return approved(check.Reason), nil
}

func approved(reason string) *workflow.StageResult {
	return &workflow.StageResult{
		Decision: workflow.DecisionApproved,
		Success:  true,
		Detail:   reason,
	}
}

func denied(ticket *workflow.Ticket, reason string) *workflow.StageResult {
	slog.Warn("resolution plan denied", "ticket_id", ticket.ID, "reason", reason)
	return &workflow.StageResult{
		Decision:         workflow.DecisionDenied,
		Success:          false,
		Detail:           reason,
		EscalationReason: reason,
	}
}
