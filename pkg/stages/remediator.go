package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/deskops-io/deskops/pkg/knowledge"
	"github.com/deskops-io/deskops/pkg/llm"
	"github.com/deskops-io/deskops/pkg/remediation"
	"github.com/deskops-io/deskops/pkg/workflow"
)

const remediatorSystemPrompt = `You are an expert IT support resolution agent. Create a step-by-step remediation plan for the ticket using only the available tools. Start with the least invasive action. All parameter values must be strings.

Reply with a single JSON object, no other text:
{"summary": "brief overview", "requires_approval": true|false, "confidence": 0.0-1.0, "steps": [{"action": "what this step does", "tool": "tool_name", "params": {"key": "value"}}]}`

// plan mirrors the remediator's response contract.
type plan struct {
	Summary          string     `json:"summary"`
	RequiresApproval bool       `json:"requires_approval"`
	Confidence       float64    `json:"confidence"`
	Steps            []planStep `json:"steps"`
}

type planStep struct {
	Action string            `json:"action"`
	Tool   string            `json:"tool"`
	Params map[string]string `json:"params"`
}

// Remediator is the resolution stage: it plans with the model and
// executes through the remediation engine.
type Remediator struct {
	model     ModelCaller
	retriever knowledge.Retriever
	engine    *remediation.Engine
	schema    *jsonschema.Schema
}

// NewRemediator creates the resolution stage. The retriever may be nil.
func NewRemediator(model ModelCaller, retriever knowledge.Retriever, engine *remediation.Engine) (*Remediator, error) {
	if model == nil {
		return nil, fmt.Errorf("model caller is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("remediation engine is required")
	}
	schema, err := compileSchema("plan", planSchemaJSON)
	if err != nil {
		return nil, err
	}
	return &Remediator{model: model, retriever: retriever, engine: engine, schema: schema}, nil
}

// Remediate plans and executes one resolution attempt. A plan that
// requires approval is not executed and reports failure with an
// escalation reason. During execution, a failure on the very first step
// aborts the remaining steps of the attempt; the attempt succeeds only
// when every executed step succeeded.
func (r *Remediator) Remediate(ctx context.Context, ticket *workflow.Ticket, classification *workflow.StageResult) (*workflow.StageResult, error) {
	var docs []knowledge.Document
	if r.retriever != nil {
		var err error
		docs, err = r.retriever.Retrieve(ctx, ticket.Title+" "+ticket.Description, ticket.Category, 5)
		if err != nil {
			slog.Warn("knowledge retrieval failed, planning without context",
				"ticket_id", ticket.ID, "error", err)
		}
	}

	p, err := r.createPlan(ctx, ticket, docs)
	if err != nil {
		return nil, err
	}

	if p.RequiresApproval {
		slog.Info("resolution plan requires approval", "ticket_id", ticket.ID)
		return &workflow.StageResult{
			Success:          false,
			Detail:           "Resolution plan requires human approval",
			Actions:          []string{"Created resolution plan"},
			EscalationReason: "Actions require human approval",
		}, nil
	}

	return r.executePlan(ctx, ticket, p), nil
}

func (r *Remediator) createPlan(ctx context.Context, ticket *workflow.Ticket, docs []knowledge.Document) (*plan, error) {
	prompt := buildPlanPrompt(ticket, r.engine.Tools(), docs)
	reply, err := r.model.Invoke(ctx, llm.UserRequest(remediatorSystemPrompt, prompt))
	if err != nil {
		return nil, err
	}

	var p plan
	if err := decodeValidated("remediation", r.schema, reply, &p); err != nil {
		slog.Warn("remediation plan rejected, using category default",
			"ticket_id", ticket.ID, "error", err)
		return defaultPlan(ticket), nil
	}
	return &p, nil
}

func (r *Remediator) executePlan(ctx context.Context, ticket *workflow.Ticket, p *plan) *workflow.StageResult {
	var actions []string
	executed := 0
	failed := 0

	for i, step := range p.Steps {
		params := step.Params
		if params == nil {
			params = map[string]string{}
		}
		fillDefaults(params, ticket)

		result, err := r.engine.Execute(ctx, step.Tool, params)
		executed++

		ok := err == nil && result.Success
		if ok {
			actions = append(actions, step.Action)
		} else {
			failed++
			detail := ""
			if err != nil {
				detail = err.Error()
			} else {
				detail = result.Message
			}
			slog.Warn("remediation step failed",
				"ticket_id", ticket.ID, "step", i+1, "tool", step.Tool, "detail", detail)
			if i == 0 {
				// First-step failure invalidates the plan's premise,
				// abort the rest of this attempt.
				break
			}
		}
	}

	success := failed == 0 && executed > 0
	detail := p.Summary
	reason := ""
	if !success {
		detail = "Resolution incomplete"
		reason = "One or more remediation steps failed"
	}

	slog.Info("remediation attempt finished",
		"ticket_id", ticket.ID, "success", success, "steps", executed, "failed", failed)

	return &workflow.StageResult{
		Success:          success,
		Confidence:       p.Confidence,
		Detail:           detail,
		Actions:          actions,
		EscalationReason: reason,
	}
}

// defaultPlan is the per-category fallback when the model's plan does
// not meet the response contract.
func defaultPlan(ticket *workflow.Ticket) *plan {
	switch ticket.Category {
	case "access":
		return &plan{
			Summary:    "Default resolution plan for access",
			Confidence: 0.5,
			Steps: []planStep{
				{Action: "Check account status", Tool: "check_service_status",
					Params: map[string]string{"service": "active_directory"}},
				{Action: "Unlock account if locked", Tool: "unlock_account"},
			},
		}
	case "network":
		return &plan{
			Summary:    "Default resolution plan for network",
			Confidence: 0.5,
			Steps: []planStep{
				{Action: "Check VPN service status", Tool: "check_service_status",
					Params: map[string]string{"service": "vpn"}},
				{Action: "Push VPN configuration", Tool: "push_vpn_config"},
			},
		}
	default:
		return &plan{
			Summary:    fmt.Sprintf("Default resolution plan for %s", orOther(ticket.Category)),
			Confidence: 0.5,
			Steps: []planStep{
				{Action: "Run general diagnostic", Tool: "run_diagnostic",
					Params: map[string]string{"type": "general"}},
			},
		}
	}
}

// fillDefaults supplies identifying parameters the model commonly
// leaves out of tool calls.
func fillDefaults(params map[string]string, ticket *workflow.Ticket) {
	if params["user_email"] == "" && ticket.UserEmail != "" {
		params["user_email"] = ticket.UserEmail
	}
	if params["ticket_id"] == "" {
		params["ticket_id"] = ticket.ID
	}
}

func buildPlanPrompt(ticket *workflow.Ticket, tools []string, docs []knowledge.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a resolution plan for this ticket:\n\nTICKET ID: %s\nCATEGORY: %s\nTITLE: %s\nDESCRIPTION: %s\n",
		ticket.ID, orOther(ticket.Category), ticket.Title, ticket.Description)

	b.WriteString("\nAVAILABLE TOOLS:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s\n", t)
	}

	if len(docs) > 0 {
		b.WriteString("\nRELEVANT KNOWLEDGE:\n")
		for _, d := range docs[:min(len(docs), 3)] {
			content := d.Content
			if len(content) > 400 {
				content = content[:400]
			}
			fmt.Fprintf(&b, "[%s]\n%s\n\n", d.Source, content)
		}
	}
	return b.String()
}

func orOther(category string) string {
	if category == "" {
		return "other"
	}
	return category
}
