// Package selfhosted talks to a self-hosted OpenAI-compatible inference
// server (Ollama, vLLM, llama.cpp) through the chat completions API.
package selfhosted

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
)

// Client is the chat completion surface used by the LLM gateway.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is a system + user prompt pair.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	MaxTokens   int
	Temperature float32
	// JSONMode asks the server to constrain output to a JSON object.
	JSONMode bool
}

// CompletionResponse is the first choice of a chat completion.
type CompletionResponse struct {
	Model        string
	Content      string
	FinishReason string
	PromptTokens int
	OutputTokens int
}

type client struct {
	oc *openai.Client
}

// NewClient creates a client for the server at baseURL, e.g.
// "http://localhost:11434/v1". Most self-hosted servers ignore apiKey.
func NewClient(baseURL, apiKey string) Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	return &client{oc: openai.NewClientWithConfig(cfg)}
}

func (c *client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ccr := openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	}
	if req.JSONMode {
		ccr.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.oc.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return nil, eris.Wrap(err, "selfhosted: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("selfhosted: no choices returned")
	}
	return &CompletionResponse{
		Model:        resp.Model,
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
