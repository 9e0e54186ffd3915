package llm

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenEstimator approximates the token cost of a request before it is
// sent, so the invoker can pace against the unit budget proactively.
type TokenEstimator struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache   = make(map[string]*tiktoken.Tiktoken)
	encodingCacheMu sync.Mutex
)

// NewTokenEstimator creates an estimator for the given model. Models
// without a native encoding fall back to cl100k_base, which is close
// enough for budget estimation.
func NewTokenEstimator(model string) (*TokenEstimator, error) {
	encodingCacheMu.Lock()
	defer encodingCacheMu.Unlock()

	if cached, ok := encodingCache[model]; ok {
		return &TokenEstimator{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	encodingCache[model] = encoding
	return &TokenEstimator{encoding: encoding, model: model}, nil
}

// Estimate returns the token count of a single text.
func (e *TokenEstimator) Estimate(text string) int {
	return len(e.encoding.Encode(text, nil, nil))
}

// EstimateRequest returns the token count of the full request payload:
// system prompt plus all messages, with a small per-message overhead.
func (e *TokenEstimator) EstimateRequest(req *Request) int {
	const messageOverhead = 4

	total := e.Estimate(req.System)
	for _, m := range req.Messages {
		total += e.Estimate(m.Content) + messageOverhead
	}
	return total
}

// Model returns the model the estimator was created for.
func (e *TokenEstimator) Model() string {
	return e.model
}
