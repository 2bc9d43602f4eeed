package gateway

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/resilience"
	"github.com/holidaynate/MaxClaim-Replit-sub001/pkg/anthropic"
	"github.com/holidaynate/MaxClaim-Replit-sub001/pkg/selfhosted"
)

// Provider names.
const (
	ProviderAnthropic  = "anthropic"
	ProviderSelfHosted = "selfhosted"
	ProviderRules      = "rules"
)

// Default per-provider timeouts. Self-hosted inference gets twice as long.
const (
	DefaultAnthropicTimeout  = 10 * time.Second
	DefaultSelfHostedTimeout = 20 * time.Second
)

// Provider is one LLM backend in the cascade.
type Provider interface {
	Name() string
	// Configured reports whether credentials or an endpoint are present.
	// Unconfigured providers are skipped without a call.
	Configured() bool
	Timeout() time.Duration
	Complete(ctx context.Context, p Prompt) (string, error)
}

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

// NewAnthropicProvider returns a provider. A nil client yields an
// unconfigured provider.
func NewAnthropicProvider(client anthropic.Client, model string, maxTokens int64, timeout time.Duration) *AnthropicProvider {
	if timeout <= 0 {
		timeout = DefaultAnthropicTimeout
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicProvider{client: client, model: model, maxTokens: maxTokens, timeout: timeout}
}

func (p *AnthropicProvider) Name() string           { return ProviderAnthropic }
func (p *AnthropicProvider) Configured() bool       { return p.client != nil && p.model != "" }
func (p *AnthropicProvider) Timeout() time.Duration { return p.timeout }

func (p *AnthropicProvider) Complete(ctx context.Context, pr Prompt) (string, error) {
	if !p.Configured() {
		return "", eris.Wrap(resilience.ErrProviderUnavailable, "gateway: anthropic not configured")
	}
	temp := 0.0
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      anthropic.CachedSystem(pr.System),
		Messages:    []anthropic.Message{{Role: "user", Content: pr.User}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	resp.Usage.LogCost(p.model)
	if resp.StopReason == "max_tokens" {
		return "", eris.Wrap(resilience.ErrProviderError, "gateway: anthropic reply truncated")
	}
	return resp.Text(), nil
}

// SelfHostedProvider calls an OpenAI-compatible inference server.
type SelfHostedProvider struct {
	client    selfhosted.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewSelfHostedProvider returns a provider. A nil client yields an
// unconfigured provider.
func NewSelfHostedProvider(client selfhosted.Client, model string, maxTokens int, timeout time.Duration) *SelfHostedProvider {
	if timeout <= 0 {
		timeout = DefaultSelfHostedTimeout
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &SelfHostedProvider{client: client, model: model, maxTokens: maxTokens, timeout: timeout}
}

func (p *SelfHostedProvider) Name() string           { return ProviderSelfHosted }
func (p *SelfHostedProvider) Configured() bool       { return p.client != nil && p.model != "" }
func (p *SelfHostedProvider) Timeout() time.Duration { return p.timeout }

func (p *SelfHostedProvider) Complete(ctx context.Context, pr Prompt) (string, error) {
	if !p.Configured() {
		return "", eris.Wrap(resilience.ErrProviderUnavailable, "gateway: selfhosted not configured")
	}
	resp, err := p.client.Complete(ctx, selfhosted.CompletionRequest{
		Model:     p.model,
		System:    pr.System,
		User:      pr.User,
		MaxTokens: p.maxTokens,
		JSONMode:  true,
	})
	if err != nil {
		return "", err
	}
	if resp.FinishReason == "length" {
		return "", eris.Wrap(resilience.ErrProviderError, "gateway: selfhosted reply truncated")
	}
	return resp.Content, nil
}
