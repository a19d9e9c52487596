package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	DefaultDeepSeekURL   = "https://api.deepseek.com/chat/completions"
	DefaultDeepSeekModel = "deepseek-chat"
)

// DeepSeekProvider talks to the OpenAI-compatible chat completions endpoint.
type DeepSeekProvider struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
}

var _ Provider = (*DeepSeekProvider)(nil)

func NewDeepSeekProvider(apiKey string) *DeepSeekProvider {
	return &DeepSeekProvider{APIKey: apiKey, BaseURL: DefaultDeepSeekURL, Model: DefaultDeepSeekModel}
}

type DeepSeekRequest struct {
	Messages       []Message      `json:"messages"`
	Model          string         `json:"model"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat ResponseFormat `json:"response_format"`
	Stream         bool           `json:"stream"`
	Temperature    float32        `json:"temperature"`
}

type Message struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type DeepSeekResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *DeepSeekProvider) Name() string { return "deepseek" }

func (p *DeepSeekProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if p.APIKey == "" {
		return Response{}, fmt.Errorf("DEEPSEEK_API_KEY_MISSING: Please set DEEPSEEK_API_KEY env var")
	}

	model := req.Model
	if model == "" {
		model = p.Model
	}
	if model == "" {
		model = DefaultDeepSeekModel
	}
	url := p.BaseURL
	if url == "" {
		url = DefaultDeepSeekURL
	}

	format := "text"
	if req.Format == FormatJSON {
		format = "json_object"
	}
	reqBody := DeepSeekRequest{
		Messages: []Message{
			{Content: req.System, Role: "system"},
			{Content: req.Prompt, Role: "user"},
		},
		Model:          model,
		MaxTokens:      4096,
		ResponseFormat: ResponseFormat{Type: format},
		Temperature:    req.Temperature,
	}

	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Response{}, fmt.Errorf("DEEPSEEK_MARSHAL_ERROR: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBytes))
	if err != nil {
		return Response{}, fmt.Errorf("DEEPSEEK_REQ_CREATE_ERROR: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("DEEPSEEK_API_CALL_ERROR: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, fmt.Errorf("DEEPSEEK_READ_BODY_ERROR: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("DEEPSEEK_API_ERROR: status=%d body=%s", res.StatusCode, string(body))
	}

	var response DeepSeekResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return Response{}, fmt.Errorf("DEEPSEEK_UNMARSHAL_ERROR: %w", err)
	}
	if len(response.Choices) == 0 {
		return Response{}, fmt.Errorf("DEEPSEEK_NO_CHOICES: %s", string(body))
	}

	return Response{
		Text:  response.Choices[0].Message.Content,
		Model: model,
		Usage: Usage{
			InputTokens:  response.Usage.PromptTokens,
			OutputTokens: response.Usage.CompletionTokens,
			TotalTokens:  response.Usage.TotalTokens,
		},
	}, nil
}
