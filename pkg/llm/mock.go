package llm

import "context"

// MockProvider serves scripted responses. Used in tests and in demo mode
// when no API key is configured.
type MockProvider struct {
	// Respond produces the reply for a request. When nil, every call
	// returns an empty response.
	Respond func(req *Request) (*Response, error)

	Model string
}

func (p *MockProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Respond == nil {
		return &Response{}, nil
	}
	return p.Respond(req)
}

func (p *MockProvider) ModelName() string {
	if p.Model == "" {
		return "mock"
	}
	return p.Model
}

func (p *MockProvider) Close() error {
	return nil
}
