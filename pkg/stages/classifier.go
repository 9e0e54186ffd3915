// Package stages implements the pluggable decision stages the
// orchestrator sequences: classification, policy validation, and
// remediation. Every model call goes through the shared invocation
// substrate, and every model reply is held to a strict JSON schema.
package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/deskops-io/deskops/pkg/knowledge"
	"github.com/deskops-io/deskops/pkg/llm"
	"github.com/deskops-io/deskops/pkg/workflow"
)

// ModelCaller is the invocation surface stages depend on. *llm.Invoker
// satisfies it.
type ModelCaller interface {
	Invoke(ctx context.Context, req *llm.Request) (string, error)
}

// Keyword tables for the rule-based pre-classification that anchors the
// model's analysis. Priorities are checked highest first; the first
// match wins.
var categoryKeywords = map[string][]string{
	"network": {"vpn", "wifi", "network", "internet", "connection", "dns",
		"firewall", "proxy", "bandwidth"},
	"hardware": {"laptop", "monitor", "keyboard", "mouse", "printer", "dock",
		"headset", "webcam", "charger"},
	"software": {"install", "update", "crash", "error", "license", "application",
		"software", "program"},
	"access": {"password", "login", "access", "permission", "unlock", "mfa",
		"authentication", "sso", "account"},
	"email": {"email", "outlook", "calendar", "teams", "meeting", "mailbox",
		"distribution list"},
}

var priorityKeywords = []struct {
	priority string
	keywords []string
}{
	{"critical", []string{"outage", "down", "not working for entire", "production",
		"all users affected", "security breach", "data loss"}},
	{"high", []string{"urgent", "asap", "blocking", "cannot work", "executive",
		"customer facing", "deadline"}},
	{"medium", []string{"slow", "intermittent", "sometimes", "occasional"}},
	{"low", []string{"question", "how to", "when possible", "enhancement",
		"nice to have", "feature request"}},
}

const classifierSystemPrompt = `You are an expert IT support triage agent. Analyze the ticket, classify it, and choose a resolution path:
- auto_resolve: simple, well-documented issues
- agent_resolution: issues requiring automated remediation with tools
- human_escalation: complex issues requiring human expertise
- information_request: more information is needed from the user

Be decisive but accurate. When uncertain, favor human escalation.

Reply with a single JSON object, no other text:
{"category": "network|hardware|software|access|email|other", "priority": "critical|high|medium|low", "decision": "auto_resolve|agent_resolution|human_escalation|information_request", "confidence": 0.0-1.0, "resolution_path": "brief description", "reasoning": "your analysis"}`

// classification mirrors the classifier's response contract.
type classification struct {
	Category       string  `json:"category"`
	Priority       string  `json:"priority"`
	Decision       string  `json:"decision"`
	Confidence     float64 `json:"confidence"`
	ResolutionPath string  `json:"resolution_path"`
	Reasoning      string  `json:"reasoning"`
}

// Classifier is the triage stage.
type Classifier struct {
	model     ModelCaller
	retriever knowledge.Retriever
	schema    *jsonschema.Schema
}

// NewClassifier creates the triage stage. The retriever may be nil, in
// which case classification runs without knowledge context.
func NewClassifier(model ModelCaller, retriever knowledge.Retriever) (*Classifier, error) {
	if model == nil {
		return nil, fmt.Errorf("model caller is required")
	}
	schema, err := compileSchema("classification", classificationSchemaJSON)
	if err != nil {
		return nil, err
	}
	return &Classifier{model: model, retriever: retriever, schema: schema}, nil
}

// Classify triages a ticket: keyword pre-classification, knowledge
// retrieval, then a model analysis under the response contract. On an
// unparseable reply the stage falls back to the keyword classification
// with decision agent_resolution and confidence 0.5.
func (c *Classifier) Classify(ctx context.Context, ticket *workflow.Ticket) (*workflow.StageResult, error) {
	text := strings.ToLower(ticket.Title + " " + ticket.Description)
	initialCategory := detectCategory(text)
	initialPriority := detectPriority(text)

	var docs []knowledge.Document
	if c.retriever != nil {
		var err error
		docs, err = c.retriever.Retrieve(ctx, ticket.Title+" "+ticket.Description, initialCategory, 5)
		if err != nil {
			slog.Warn("knowledge retrieval failed, classifying without context",
				"ticket_id", ticket.ID, "error", err)
		}
	}

	prompt := buildClassifierPrompt(ticket, initialCategory, initialPriority, docs)
	reply, err := c.model.Invoke(ctx, llm.UserRequest(classifierSystemPrompt, prompt))
	if err != nil {
		return nil, err
	}

	var parsed classification
	if err := decodeValidated("classification", c.schema, reply, &parsed); err != nil {
		slog.Warn("classification reply rejected, using keyword fallback",
			"ticket_id", ticket.ID, "error", err)
		parsed = classification{
			Category:   initialCategory,
			Priority:   initialPriority,
			Decision:   workflow.DecisionAgentResolution,
			Confidence: 0.5,
			Reasoning:  "Model output unparseable; keyword classification applied",
		}
	}

	slog.Info("ticket classified",
		"ticket_id", ticket.ID,
		"category", parsed.Category,
		"priority", parsed.Priority,
		"decision", parsed.Decision,
		"confidence", parsed.Confidence)

	return &workflow.StageResult{
		Decision:      parsed.Decision,
		Confidence:    parsed.Confidence,
		Detail:        parsed.Reasoning,
		Success:       true,
		Category:      parsed.Category,
		Priority:      parsed.Priority,
		SuggestedPath: parsed.ResolutionPath,
	}, nil
}

func detectCategory(text string) string {
	best := ""
	bestScore := 0
	for _, category := range []string{"network", "hardware", "software", "access", "email"} {
		score := 0
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = category, score
		}
	}
	if best == "" {
		return "other"
	}
	return best
}

func detectPriority(text string) string {
	for _, tier := range priorityKeywords {
		for _, kw := range tier.keywords {
			if strings.Contains(text, kw) {
				return tier.priority
			}
		}
	}
	return "medium"
}

func buildClassifierPrompt(ticket *workflow.Ticket, category, priority string, docs []knowledge.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this IT support ticket:\n\nTITLE: %s\nDESCRIPTION: %s\n",
		ticket.Title, ticket.Description)
	fmt.Fprintf(&b, "\nINITIAL CLASSIFICATION (from rules):\n- Category: %s\n- Priority: %s\n",
		category, priority)

	if len(docs) > 0 {
		b.WriteString("\nRELEVANT KNOWLEDGE BASE ARTICLES:\n")
		for i, d := range docs {
			content := d.Content
			if len(content) > 300 {
				content = content[:300] + "..."
			}
			fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, d.Source, content)
		}
	}
	if ticket.UserEmail != "" {
		fmt.Fprintf(&b, "\nSUBMITTED BY: %s\n", ticket.UserEmail)
	}
	return b.String()
}
