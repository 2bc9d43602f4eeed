package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/analyzer"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/gateway"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/metrics"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/reportstore"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/resilience"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/rotation"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/router"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/sampler"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/store"
	anthropicpkg "github.com/holidaynate/MaxClaim-Replit-sub001/pkg/anthropic"
	"github.com/holidaynate/MaxClaim-Replit-sub001/pkg/selfhosted"
)

// appEnv holds the store, the analyzer chain and the placement service
// shared by the commands.
type appEnv struct {
	Store     store.Store // nil when no database is configured
	Rules     *analyzer.RulePack
	Breakers  *resilience.ServiceBreakers
	Gateway   *gateway.Gateway
	Router    *router.Router
	Placement *rotation.Service  // nil without a store
	Reports   *reportstore.Store // nil when uploads are disabled
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp validates config for mode and wires every component. Callers
// should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	rules, err := analyzer.LoadRulePack(cfg.Rules.Path)
	if err != nil {
		return nil, eris.Wrap(err, "load rule pack")
	}

	env := &appEnv{Rules: rules}
	if cfg.Store.DatabaseURL != "" {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st
	} else {
		zap.L().Warn("store.database_url not set, database analyzer and placements disabled")
	}

	env.Breakers = resilience.NewServiceBreakers(breakerConfig())
	env.Gateway = initGateway(env.Breakers)

	env.Router, err = initRouter(env)
	if err != nil {
		env.Close()
		return nil, err
	}

	if env.Store != nil {
		env.Placement = rotation.NewService(env.Store, rotation.NewEngine(), sampler.New(),
			rotation.NewFreshnessTracker(), rotation.ServiceConfig{
				DefaultMaxResults: cfg.Rotation.DefaultMaxResults,
				DefaultMode:       model.PlacementMode(cfg.Rotation.DefaultMode),
			})
	}

	if cfg.Reports.Enabled() {
		rs, err := reportstore.New(cfg.Reports)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.Reports = rs
	}

	return env, nil
}

// initStore opens the configured database and applies migrations.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		Driver: cfg.Store.Driver,
		DSN:    cfg.Store.DatabaseURL,
		Pool: store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		},
		Retry: resilience.ConnectRetry(cfg.Store.ConnectRetries, time.Duration(cfg.Store.RetryBackoffMs)*time.Millisecond),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// breakerConfig returns the provider breaker settings. Transitions are
// logged and exported as a gauge.
func breakerConfig() resilience.CircuitBreakerConfig {
	return resilience.ProviderBreaker(cfg.Gateway.FailureThreshold, seconds(cfg.Gateway.ResetTimeoutSecs),
		func(name string, from, to resilience.CircuitState) {
			metrics.SetBreakerOpen(name, to == resilience.CircuitOpen)
			zap.L().Warn("circuit breaker state change",
				zap.String("provider", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		})
}

// initGateway registers the Anthropic provider first and the self-hosted
// provider second. A provider without credentials or endpoint is skipped by
// the cascade.
func initGateway(breakers *resilience.ServiceBreakers) *gateway.Gateway {
	var ac anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		opts := []anthropicpkg.Option{anthropicpkg.WithMaxRetries(0)}
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		ac = anthropicpkg.NewClient(cfg.Anthropic.Key, opts...)
	} else {
		zap.L().Debug("MAXCLAIM_ANTHROPIC_KEY not set, anthropic provider disabled")
	}

	var sc selfhosted.Client
	if cfg.SelfHosted.BaseURL != "" {
		sc = selfhosted.NewClient(cfg.SelfHosted.BaseURL, cfg.SelfHosted.Key)
	} else {
		zap.L().Debug("MAXCLAIM_SELFHOSTED_BASE_URL not set, self-hosted provider disabled")
	}

	providers := []gateway.Provider{
		gateway.NewAnthropicProvider(ac, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens, seconds(cfg.Anthropic.TimeoutSecs)),
		gateway.NewSelfHostedProvider(sc, cfg.SelfHosted.Model, cfg.SelfHosted.MaxTokens, seconds(cfg.SelfHosted.TimeoutSecs)),
	}
	return gateway.New(breakers, providers,
		gateway.WithPreferred(cfg.Gateway.Preferred),
		gateway.WithRateLimit(gateway.ProviderAnthropic, cfg.Gateway.AnthropicRPS, cfg.Gateway.RateLimitBurst),
		gateway.WithRateLimit(gateway.ProviderSelfHosted, cfg.Gateway.SelfHostedRPS, cfg.Gateway.RateLimitBurst),
	)
}

// initRouter builds the chain v3-llm, v2-db, v1-rules.
func initRouter(env *appEnv) (*router.Router, error) {
	var st analyzer.Store
	if env.Store != nil {
		st = env.Store
	}
	state := router.NewState(env.Breakers, cfg.Router.EventCapacity)
	r, err := router.New(state,
		analyzer.NewLLMAnalyzer(env.Gateway, st, env.Rules),
		analyzer.NewDBAnalyzer(st, env.Rules).WithPingTimeout(seconds(cfg.Router.PingTimeoutSecs)),
		analyzer.NewRuleAnalyzer(env.Rules),
	)
	if err != nil {
		return nil, eris.Wrap(err, "init router")
	}
	return r, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
