package llm

import (
	"context"
)

// Format selects how the model is asked to shape its answer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Request is a single completion call.
type Request struct {
	Prompt      string
	System      string
	Model       string
	Temperature float32
	Format      Format
}

// Usage is the token accounting reported by the provider for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the text answer plus its usage.
type Response struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// Provider is the interface for all LLM providers.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}
