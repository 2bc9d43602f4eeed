package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/distribution"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/metrics"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/model"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/resilience"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/rotation"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/router"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/sampler"
	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/store"
)

const (
	maxBodyBytes    = 1 << 20
	maxIterations   = 1_000_000
	maxPlacements   = 50
	reportKindQA    = "distribution"
	reportKeyHeader = "X-Report-Key"
)

type claimRouter interface {
	Analyze(ctx context.Context, in model.ClaimAuditInput) *model.ClaimAuditResult
	Health(ctx context.Context) router.Health
	RecentEvents() []router.FallbackEvent
}

type placer interface {
	Place(ctx context.Context, q rotation.PlacementQuery) model.PlacementResult
	Weights(ctx context.Context, q rotation.PlacementQuery) ([]model.RotationWeight, error)
	Pacing(ctx context.Context, partnerID string) (*model.BudgetPacing, error)
}

type auditStore interface {
	SaveAudit(ctx context.Context, res *model.ClaimAuditResult) error
	GetAudit(ctx context.Context, id string) (*model.ClaimAuditResult, error)
}

type reportUploader interface {
	Save(ctx context.Context, kind string, report any) (string, error)
}

type breakerSource interface {
	Breakers() map[string]resilience.BreakerStatus
}

// api serves the HTTP surface. Optional dependencies are nil when disabled.
type api struct {
	analysis    claimRouter
	placements  placer
	audits      auditStore
	saveAudits  bool
	reports     reportUploader
	breakers    breakerSource
	validator   config.ValidatorConfig
	corsOrigins []string
	log         *zap.Logger
}

// newAPI adapts an app environment. Nil pointers stay nil interfaces.
func newAPI(env *appEnv) *api {
	a := &api{
		analysis:    env.Router,
		breakers:    env.Gateway,
		saveAudits:  cfg.Router.SaveAudits,
		validator:   cfg.Validator,
		corsOrigins: cfg.Server.CORSOrigins,
		log:         zap.L().With(zap.String("component", "api")),
	}
	if env.Placement != nil {
		a.placements = env.Placement
	}
	if env.Store != nil {
		a.audits = env.Store
	}
	if env.Reports != nil {
		a.reports = env.Reports
	}
	return a
}

// routes builds the chi router.
func (a *api) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{reportKeyHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/claims/analyze", a.wrap(a.handleAnalyze))
		r.Get("/claims/audits/{id}", a.wrap(a.handleGetAudit))
		r.Post("/placements", a.wrap(a.handlePlace))
		r.Get("/partners/{id}/pacing", a.wrap(a.handlePacing))
		r.Post("/qa/distribution", a.wrap(a.handleDistribution))

		r.Route("/health", func(r chi.Router) {
			r.Get("/analysis", a.wrap(a.handleAnalysisHealth))
			r.Get("/providers", a.wrap(a.handleProviders))
			r.Get("/fallbacks", a.wrap(a.handleFallbacks))
		})
	})

	return r
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// apiError is a client-facing error with its status code.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &apiError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func unavailable(msg string) error {
	return &apiError{status: http.StatusServiceUnavailable, msg: msg}
}

func (a *api) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		var ae *apiError
		switch {
		case errors.As(err, &ae):
			_ = writeJSON(w, ae.status, map[string]string{"error": ae.msg})
		case errors.Is(err, store.ErrNotFound):
			_ = writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		default:
			a.log.Error("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Error(err),
			)
			_ = writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
	}
}

// writeJSON encodes v before touching the response, so an encoding failure
// leaves the status unwritten for wrap to report.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "api: encode response")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(body, '\n'))
	return err
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}

// POST /v1/claims/analyze
func (a *api) handleAnalyze(w http.ResponseWriter, r *http.Request) error {
	var in model.ClaimAuditInput
	if err := decodeJSON(w, r, &in); err != nil {
		return err
	}
	if len(in.Items) == 0 && strings.TrimSpace(in.DocumentText) == "" {
		return badRequest("items or document_text is required")
	}

	res := a.analysis.Analyze(r.Context(), in)
	if a.saveAudits && a.audits != nil {
		if err := a.audits.SaveAudit(r.Context(), res); err != nil {
			a.log.Warn("save audit failed", zap.String("audit_id", res.ID), zap.Error(err))
		}
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/claims/audits/{id}
func (a *api) handleGetAudit(w http.ResponseWriter, r *http.Request) error {
	if a.audits == nil {
		return unavailable("audit storage is disabled")
	}
	res, err := a.audits.GetAudit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// POST /v1/placements
func (a *api) handlePlace(w http.ResponseWriter, r *http.Request) error {
	if a.placements == nil {
		return unavailable("placements are disabled")
	}
	var q rotation.PlacementQuery
	if err := decodeJSON(w, r, &q); err != nil {
		return err
	}
	if err := validatePlacementQuery(q); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a.placements.Place(r.Context(), q))
}

func validatePlacementQuery(q rotation.PlacementQuery) error {
	if q.State == "" {
		return badRequest("state is required")
	}
	if q.MaxResults < 0 || q.MaxResults > maxPlacements {
		return badRequest("max_results must be between 0 and %d", maxPlacements)
	}
	switch q.Mode {
	case "", model.PlacementTop, model.PlacementRotating:
	default:
		return badRequest("unknown mode %q", q.Mode)
	}
	return nil
}

// GET /v1/partners/{id}/pacing
func (a *api) handlePacing(w http.ResponseWriter, r *http.Request) error {
	if a.placements == nil {
		return unavailable("placements are disabled")
	}
	bp, err := a.placements.Pacing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, bp)
}

// GET /v1/health/analysis
func (a *api) handleAnalysisHealth(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, a.analysis.Health(r.Context()))
}

// GET /v1/health/providers
func (a *api) handleProviders(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, http.StatusOK, a.breakers.Breakers())
}

// GET /v1/health/fallbacks
func (a *api) handleFallbacks(w http.ResponseWriter, _ *http.Request) error {
	events := a.analysis.RecentEvents()
	if events == nil {
		events = []router.FallbackEvent{}
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

// distributionRequest selects the candidates to validate: explicit weights,
// or the weighted eligible set of a placement query.
type distributionRequest struct {
	Candidates        []distribution.Candidate `json:"candidates"`
	Placement         *rotation.PlacementQuery `json:"placement,omitempty"`
	Iterations        int                      `json:"iterations"`
	SlotsPerIteration int                      `json:"slots_per_iteration"`
	Seed              *uint64                  `json:"seed,omitempty"`
	Upload            bool                     `json:"upload"`
}

// POST /v1/qa/distribution
func (a *api) handleDistribution(w http.ResponseWriter, r *http.Request) error {
	var req distributionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.Iterations < 0 || req.Iterations > maxIterations {
		return badRequest("iterations must be between 0 and %d", maxIterations)
	}
	if req.SlotsPerIteration < 0 {
		return badRequest("slots_per_iteration must not be negative")
	}

	candidates := req.Candidates
	switch {
	case len(candidates) > 0:
		for _, c := range candidates {
			if c.Weight < 0 {
				return badRequest("candidate %s has a negative weight", c.ID)
			}
		}
	case req.Placement != nil:
		if a.placements == nil {
			return unavailable("placements are disabled")
		}
		if err := validatePlacementQuery(*req.Placement); err != nil {
			return err
		}
		ws, err := a.placements.Weights(r.Context(), *req.Placement)
		if err != nil {
			return err
		}
		candidates = distribution.FromRotationWeights(ws)
	default:
		return badRequest("candidates or placement is required")
	}

	vcfg := distribution.Config{
		Iterations:        a.validator.Iterations,
		SlotsPerIteration: a.validator.SlotsPerIteration,
	}
	if req.Iterations > 0 {
		vcfg.Iterations = req.Iterations
	}
	if req.SlotsPerIteration > 0 {
		vcfg.SlotsPerIteration = req.SlotsPerIteration
	}

	s := sampler.New()
	if req.Seed != nil {
		s = sampler.NewSeeded(*req.Seed)
	}
	summary := distribution.Validate(s, candidates, vcfg)

	if req.Upload && a.reports != nil {
		key, err := a.reports.Save(r.Context(), reportKindQA, summary)
		if err != nil {
			a.log.Warn("distribution report upload failed", zap.Error(err))
		} else {
			w.Header().Set(reportKeyHeader, key)
		}
	}
	return writeJSON(w, http.StatusOK, summary)
}
