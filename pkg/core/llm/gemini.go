package llm

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiProvider implements the Provider interface for Google's Gemini models.
type GeminiProvider struct {
	APIKey string
	Model  string // default model when the request does not name one

	mu     sync.Mutex
	client *genai.Client
}

// Ensure interface compliance
var _ Provider = (*GeminiProvider)(nil)

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	return &GeminiProvider{APIKey: apiKey, Model: model}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if p.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	p.client = client
	return client, nil
}

// Complete sends a generateContent request using the official GenAI SDK.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (Response, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return Response{}, err
	}

	model := req.Model
	if model == "" {
		model = p.Model
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.Format == FormatJSON {
		config.ResponseMIMEType = "application/json"
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return Response{}, fmt.Errorf("gemini generation failed: %w", err)
	}

	resp := Response{Text: result.Text(), Model: model}
	if md := result.UsageMetadata; md != nil {
		resp.Usage = Usage{
			InputTokens:  int(md.PromptTokenCount),
			OutputTokens: int(md.CandidatesTokenCount),
			TotalTokens:  int(md.TotalTokenCount),
		}
	}
	return resp, nil
}
