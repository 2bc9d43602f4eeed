// Package gateway cascades claim extraction requests across LLM providers,
// each behind a circuit breaker, and falls back to a rule-based extractor
// that always answers.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/metrics"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/resilience"
)

// NoLLMReason marks responses produced by the rule extractor.
const NoLLMReason = "no LLM available"

// Request is one extraction request.
type Request struct {
	Input model.ClaimAuditInput
	// PreferredProvider is tried first when set and registered.
	PreferredProvider string
}

// Attempt records what happened with one provider.
type Attempt struct {
	Provider string        `json:"provider"`
	Outcome  string        `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency_ns"`
}

// Response is the gateway's answer. It is never nil.
type Response struct {
	Provider       string        `json:"provider"`
	Extraction     Extraction    `json:"extraction"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
	Attempts       []Attempt     `json:"attempts"`
	Latency        time.Duration `json:"latency_ns"`
}

// UsedLLM reports whether an LLM provider produced the response.
func (r *Response) UsedLLM() bool {
	return r.Provider != ProviderRules
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithPreferred sets the default preferred provider.
func WithPreferred(name string) Option {
	return func(g *Gateway) { g.preferred = name }
}

// WithRateLimit caps calls per second to a provider. A provider over its
// limit is skipped without touching its breaker.
func WithRateLimit(provider string, perSecond float64, burst int) Option {
	return func(g *Gateway) {
		if perSecond > 0 {
			g.limiters[provider] = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
		}
	}
}

// Gateway is safe for concurrent use.
type Gateway struct {
	providers []Provider
	breakers  *resilience.ServiceBreakers
	limiters  map[string]*rate.Limiter
	rules     *RuleExtractor
	preferred string
	log       *zap.Logger
}

// New creates a gateway over providers in cascade order.
func New(breakers *resilience.ServiceBreakers, providers []Provider, opts ...Option) *Gateway {
	g := &Gateway{
		providers: providers,
		breakers:  breakers,
		limiters:  make(map[string]*rate.Limiter),
		rules:     NewRuleExtractor(),
		log:       zap.L().With(zap.String("component", "gateway")),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Configured reports whether any provider has credentials or an endpoint,
// regardless of breaker state.
func (g *Gateway) Configured() bool {
	for _, p := range g.providers {
		if p.Configured() {
			return true
		}
	}
	return false
}

// Available reports whether at least one configured provider would be tried
// now. It does not change breaker state.
func (g *Gateway) Available() bool {
	for _, p := range g.providers {
		if p.Configured() && g.breakers.Get(p.Name()).Ready() {
			return true
		}
	}
	return false
}

// Breakers returns the status of every provider breaker.
func (g *Gateway) Breakers() map[string]resilience.BreakerStatus {
	for _, p := range g.providers {
		_ = g.breakers.Get(p.Name())
	}
	return g.breakers.States()
}

// order returns the cascade for a request: preferred first, then the
// registered order.
func (g *Gateway) order(preferred string) []Provider {
	if preferred == "" {
		preferred = g.preferred
	}
	out := make([]Provider, 0, len(g.providers))
	for _, p := range g.providers {
		if p.Name() == preferred {
			out = append(out, p)
		}
	}
	for _, p := range g.providers {
		if p.Name() != preferred {
			out = append(out, p)
		}
	}
	return out
}

// Extract runs the cascade. Each provider gets one attempt bounded by its
// own timeout; an issued call is not cancelled by the caller's context.
func (g *Gateway) Extract(ctx context.Context, req Request) *Response {
	start := time.Now()
	prompt := BuildPrompt(req.Input)
	resp := &Response{}

	for _, p := range g.order(req.PreferredProvider) {
		ext, att := g.try(ctx, p, prompt)
		resp.Attempts = append(resp.Attempts, att)
		metrics.ProviderCalls.WithLabelValues(p.Name(), att.Outcome).Inc()
		if ext == nil {
			continue
		}
		resp.Provider = p.Name()
		resp.Extraction = *ext
		resp.Latency = time.Since(start)
		return resp
	}

	resp.Provider = ProviderRules
	resp.Extraction = *g.rules.Extract(req.Input)
	resp.FallbackReason = NoLLMReason
	resp.Latency = time.Since(start)
	g.log.Info("gateway: no LLM available, used rule extractor",
		zap.Int("attempts", len(resp.Attempts)),
		zap.Int("items", len(resp.Extraction.Items)),
	)
	return resp
}

func (g *Gateway) try(ctx context.Context, p Provider, prompt Prompt) (*Extraction, Attempt) {
	att := Attempt{Provider: p.Name()}

	if !p.Configured() {
		att.Outcome = resilience.Kind(resilience.ErrProviderUnavailable)
		return nil, att
	}
	if lim, ok := g.limiters[p.Name()]; ok && !lim.Allow() {
		att.Outcome = resilience.Kind(resilience.ErrProviderUnavailable)
		att.Error = "rate limited"
		return nil, att
	}

	cb := g.breakers.Get(p.Name())
	if err := cb.Allow(); err != nil {
		att.Outcome = resilience.Kind(err)
		return nil, att
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.Timeout())
	defer cancel()

	start := time.Now()
	text, err := p.Complete(callCtx, prompt)
	att.Latency = time.Since(start)

	var ext *Extraction
	if err == nil {
		ext, err = parseExtraction(text)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = eris.Wrapf(resilience.ErrProviderTimeout, "gateway: %s after %s", p.Name(), p.Timeout())
		}
		cb.RecordFailure()
		att.Outcome = resilience.Kind(err)
		att.Error = err.Error()
		g.log.Warn("gateway: provider failed",
			zap.String("provider", p.Name()),
			zap.String("outcome", att.Outcome),
			zap.Duration("latency", att.Latency),
			zap.Error(err),
		)
		return nil, att
	}

	cb.RecordSuccess()
	att.Outcome = resilience.Kind(nil)
	return ext, att
}
