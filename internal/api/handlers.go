package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/sorengranfeldt/mre/internal/api/presenter"
	"github.com/sorengranfeldt/mre/internal/buildinfo"
	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/host/memory"
	"github.com/sorengranfeldt/mre/internal/service"
)

// maxFixtureSize limits explain request bodies.
const maxFixtureSize = 1 << 20

// AboutResponse is returned by the about route.
type AboutResponse struct {
	buildinfo.Info
	Status service.Status `json:"status"`
}

// handleHealth responds with a simple OK status to indicate the server is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with build information and the state of the loaded rules.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, AboutResponse{
		Info:   buildinfo.GetBuildInfo(),
		Status: s.svc.Status(),
	}, http.StatusOK)
}

// handleListRules lists the active rules.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.svc.Rules()
	if err != nil {
		presenter.Err(w, r, err, "cannot list rules")
		return
	}
	presenter.JSON(w, r, rules, http.StatusOK)
}

// handleExplain runs a dry pass for the fixture in the request body.
// The body may be YAML or JSON.
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFixtureSize+1))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to read explain request body")
		presenter.Error(w, r, "cannot read request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxFixtureSize {
		presenter.Error(w, r, "fixture too large", http.StatusRequestEntityTooLarge)
		return
	}

	fixture, err := memory.ParseFixture(body)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to decode fixture")
		presenter.Error(w, r, "invalid fixture: "+err.Error(), http.StatusBadRequest)
		return
	}

	logger.Debug().
		Str("subject_type", fixture.Subject.ObjectType).
		Int("target_systems", len(fixture.TargetSystems)).
		Msg("explaining fixture")

	out, err := s.svc.Simulate(ctx, fixture)
	if err != nil {
		presenter.Err(w, r, err, "simulation failed")
		return
	}
	presenter.JSON(w, r, out, http.StatusOK)
}

// handleListAudits processes requests to retrieve audit log entries.
func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	q := r.URL.Query()
	limit := 50
	if limitStr := q.Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 0 {
			logger.Warn().Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	filter := core.AuditFilter{
		SubjectID: q.Get("subject"),
		Rule:      q.Get("rule"),
		Action:    q.Get("action"),
	}
	entries, err := s.svc.FindAudit(filter, limit)
	if err != nil {
		if !errors.Is(err, core.ErrNotSupported) {
			logger.Error().Err(err).Msg("failed to retrieve audit logs")
		}
		presenter.Err(w, r, err, "failed to retrieve audit logs")
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	presenter.JSON(w, r, entries, http.StatusOK)
}
