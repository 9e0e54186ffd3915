// Package llm provides the remote model client and the rate-limited,
// retrying invocation path shared by every workflow stage.
package llm

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in the conversation sent to the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is one model invocation payload.
type Request struct {
	System   string    `json:"system,omitempty"`
	Messages []Message `json:"messages"`
}

// Response is the model's reply plus its usage accounting.
type Response struct {
	Text string `json:"text"`

	// UnitsConsumed is the total token usage of the call, fed back into
	// the rate limiter's unit window.
	UnitsConsumed int `json:"units_consumed"`
}

// Provider performs a single call against a remote model endpoint.
// Providers do not retry; retry and admission control live in Invoker.
type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	ModelName() string
	Close() error
}

// UserRequest builds a single-turn request.
func UserRequest(system, prompt string) *Request {
	return &Request{
		System:   system,
		Messages: []Message{{Role: RoleUser, Content: prompt}},
	}
}
