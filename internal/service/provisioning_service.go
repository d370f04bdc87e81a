package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/sorengranfeldt/mre/internal/audit"
	"github.com/sorengranfeldt/mre/internal/config"
	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/engine"
	"github.com/sorengranfeldt/mre/internal/external"
	"github.com/sorengranfeldt/mre/internal/helpers"
	"github.com/sorengranfeldt/mre/internal/host/memory"
	"github.com/sorengranfeldt/mre/internal/logging"
)

// ProvisioningService is the surface the host calls into.
type ProvisioningService struct {
	rulesPath     string
	policyManager *engine.PolicyManager

	mu      sync.RWMutex
	cfg     *config.Config
	auditor core.Auditor
	// fixedAuditor is set when the auditor was injected and must not be
	// replaced by the one from the settings.
	fixedAuditor bool

	now func() time.Time
}

type Option func(*ProvisioningService)

// WithAuditor overrides the auditor configured in the rules settings.
func WithAuditor(a core.Auditor) Option {
	return func(s *ProvisioningService) {
		s.auditor = a
		s.fixedAuditor = true
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ProvisioningService) { s.now = now }
}

func NewProvisioningService(rulesPath string, opts ...Option) *ProvisioningService {
	s := &ProvisioningService{
		rulesPath:     rulesPath,
		policyManager: engine.NewManager(nil),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize loads and validates the rules and makes them active.
func (s *ProvisioningService) Initialize(ctx context.Context) error {
	cfg, err := config.Load(s.rulesPath, logging.NewZLogger(*log.Ctx(ctx)))
	if err != nil {
		return fmt.Errorf("loading rules from '%s': %w", s.rulesPath, err)
	}
	return s.Apply(ctx, cfg)
}

// CheckRules validates the rules path again and reports to sink whether it
// still matches the active rules. The active rules are never replaced.
func (s *ProvisioningService) CheckRules(_ context.Context, sink logging.InternalLogger) error {
	sink = logging.OrNop(sink)
	cfg, err := config.Load(s.rulesPath, sink)
	if err != nil {
		return fmt.Errorf("loading rules from '%s': %w", s.rulesPath, err)
	}
	if _, err := external.BuildRegistry(cfg.Externals); err != nil {
		return fmt.Errorf("building externals: %w", err)
	}
	sink.Info("%d rule(s) in %d file(s) are valid", len(cfg.Rules), len(cfg.Files))

	eng := s.policyManager.GetEngine()
	if eng == nil {
		sink.Warn("no rules are active")
		return nil
	}
	if !sameRuleNames(eng.Rules().Rules(), cfg.Rules) {
		sink.Warn("rules on disk differ from the active rules, restart to apply them")
	}
	return nil
}

func sameRuleNames(a, b []core.Rule) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}

// Apply activates an already loaded configuration.
func (s *ProvisioningService) Apply(ctx context.Context, cfg *config.Config) error {
	logger := log.Ctx(ctx)

	registry, err := external.BuildRegistry(cfg.Externals)
	if err != nil {
		return fmt.Errorf("building externals: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fixedAuditor {
		auditor, err := audit.New(cfg.Settings.Audit)
		if err != nil {
			return fmt.Errorf("creating auditor: %w", err)
		}
		if s.auditor != nil {
			if err := s.auditor.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close previous auditor")
			}
		}
		s.auditor = auditor
	}

	eng := engine.New(cfg.RuleSet(),
		engine.WithExternals(registry),
		engine.WithHelperGenerator(helpers.NewGenerator(cfg.Settings.DefaultSecretLength)),
		engine.WithAllRulesDisabled(cfg.DisableAllRules),
	)
	s.policyManager.Update(eng)
	s.cfg = cfg

	logger.Info().
		Int("rules", len(cfg.Rules)).
		Int("externals", registry.Len()).
		Bool("disable_all_rules", cfg.DisableAllRules).
		Msg("rules loaded")
	return nil
}

// ProcessSubject runs all rules for the subject against the host.
// If the pass is aborted the partial result is returned with the error.
func (s *ProvisioningService) ProcessSubject(ctx context.Context, subject core.Subject) (*core.DispatchResult, error) {
	eng := s.policyManager.GetEngine()
	if eng == nil {
		return nil, httpError(http.StatusServiceUnavailable, core.ErrNotInitialized)
	}
	return s.process(ctx, eng, subject, nil, false)
}

func (s *ProvisioningService) process(
	ctx context.Context,
	eng *engine.Engine,
	subject core.Subject,
	extra logging.InternalLogger,
	dryRun bool,
) (*core.DispatchResult, error) {
	reqID, _ := ctx.Value("correlation_id").(string)
	if reqID == "" {
		reqID = xid.New().String()
	}

	logger := log.Ctx(ctx).With().
		Str("correlation_id", reqID).
		Str("subject", subject.UniqueID().String()).
		Str("subject_type", subject.ObjectType()).
		Bool("dry_run", dryRun).
		Logger()

	var sink logging.InternalLogger = logging.NewZLogger(logger)
	if extra != nil {
		sink = logging.NewMultiLogger(extra, sink)
	}

	res, err := eng.Dispatch(subject, sink)
	if res != nil {
		res.CorrelationID = reqID
	}

	s.mu.RLock()
	auditor := s.auditor
	s.mu.RUnlock()
	if auditor != nil {
		for _, entry := range audit.EntriesFromResult(res, err, dryRun, s.now()) {
			if auditErr := auditor.Log(entry); auditErr != nil {
				logger.Error().Err(auditErr).Msg("failed to write audit log entry")
			}
		}
	}

	if err != nil {
		return res, httpError(statusFor(err), err)
	}
	logger.Debug().
		Int("actions", len(res.Actions)).
		Bool("stopped", res.Stopped).
		Msg("subject processed")
	return res, nil
}

// ShouldDelete is not supported; deletion decisions stay with the host.
func (s *ProvisioningService) ShouldDelete(_ context.Context, _ core.Connector, _ core.Subject) (bool, error) {
	return false, core.ErrNotSupported
}

// Terminate releases the rules and closes the auditor.
func (s *ProvisioningService) Terminate(ctx context.Context) error {
	s.policyManager.Release()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = nil
	if s.auditor == nil {
		return nil
	}
	err := s.auditor.Close()
	if !s.fixedAuditor {
		s.auditor = nil
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("failed to close auditor")
		return fmt.Errorf("closing auditor: %w", err)
	}
	return nil
}

// Simulate runs a dry pass against a host built from the fixture. The
// fixture itself is left untouched.
func (s *ProvisioningService) Simulate(ctx context.Context, fixture *memory.Fixture) (*SimulationResult, error) {
	eng := s.policyManager.GetEngine()
	if eng == nil {
		return nil, httpError(http.StatusServiceUnavailable, core.ErrNotInitialized)
	}
	subject, err := fixture.Build()
	if err != nil {
		return nil, httpError(http.StatusBadRequest, fmt.Errorf("building fixture: %w", err))
	}

	ctx = log.Ctx(ctx).With().Str("mode", "simulate").Logger().WithContext(ctx)

	rec := logging.NewRecorder()
	res, passErr := s.process(ctx, eng, subject, rec, true)

	out := &SimulationResult{
		Result:  res,
		Changes: subject.Journal().Changes(),
		Logs:    rec.Entries(),
	}
	if passErr != nil {
		out.Error = passErr.Error()
	}
	return out, nil
}

// Rules returns the active rules.
func (s *ProvisioningService) Rules() ([]core.Rule, error) {
	eng := s.policyManager.GetEngine()
	if eng == nil {
		return nil, httpError(http.StatusServiceUnavailable, core.ErrNotInitialized)
	}
	return eng.Rules().Rules(), nil
}

// FindAudit queries the auditor, if it can be read back.
func (s *ProvisioningService) FindAudit(filter core.AuditFilter, limit int) ([]core.AuditEntry, error) {
	s.mu.RLock()
	auditor := s.auditor
	s.mu.RUnlock()

	querier, ok := auditor.(core.AuditQuerier)
	if !ok {
		return nil, httpError(http.StatusNotImplemented,
			fmt.Errorf("the configured auditor cannot be queried: %w", core.ErrNotSupported))
	}
	entries, err := querier.Find(filter, limit)
	if err != nil {
		return nil, httpError(http.StatusInternalServerError, fmt.Errorf("failed to query audit log: %w", err))
	}
	return entries, nil
}

// Status describes the active configuration.
func (s *ProvisioningService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{RulesPath: s.rulesPath, AuditType: fmt.Sprintf("%T", s.auditor)}
	if s.cfg == nil {
		return st
	}
	st.Initialized = s.policyManager.GetEngine() != nil
	st.Files = s.cfg.Files
	st.RuleCount = len(s.cfg.Rules)
	st.ExternalCount = len(s.cfg.Externals)
	st.DisableAllRules = s.cfg.DisableAllRules
	return st
}
