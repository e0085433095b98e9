package classify

import "context"

// Request is a single classification prompt sent to an LLM backend.
type Request struct {
	Model       string
	System      string
	Text        string
	MaxTokens   int32
	Temperature float32
}

type Usage struct {
	InputTokens  int32
	OutputTokens int32
}

// Response carries the raw model text; shape validation happens in the adapter.
type Response struct {
	Text       string
	StopReason string
	Usage      Usage
}

// LLMClient is implemented by every remote classification backend.
type LLMClient interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
