package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/rekindle/internal/advisor"
	"github.com/felixgeelhaar/rekindle/internal/config"
	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/learner"
	"github.com/felixgeelhaar/rekindle/internal/metrics"
	"github.com/felixgeelhaar/rekindle/internal/nudge"
	"github.com/felixgeelhaar/rekindle/internal/queue"
	"github.com/felixgeelhaar/rekindle/internal/repository"
	"github.com/felixgeelhaar/rekindle/internal/risk"
	"github.com/felixgeelhaar/rekindle/internal/storage/sqlite"
)

// InteractionHistory is the queryable side of an interaction sink. Both
// the SQLite store and the Postgres repository implement it.
type InteractionHistory interface {
	History(ctx context.Context, learnerID string, since time.Time) ([]domain.InteractionRecord, error)
}

// Server represents the Rekindle daemon HTTP server
type Server struct {
	cfg    *config.LocalConfig
	server *http.Server
	router *http.ServeMux

	// Services
	provider learner.Provider
	writer   learner.Writer
	assessor *risk.Assessor
	nudges   *nudge.Service
	advisor  *advisor.Advisor
	recorder *metrics.Recorder
	history  InteractionHistory
	events   *queue.Producer
	locks    *learner.KeyMutex

	closers []io.Closer
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config  *config.LocalConfig
	DataDir string // Root for learner and interaction storage; defaults to ~/.rekindle
}

// NewServer creates a new daemon server
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	s := &Server{
		cfg:    cfg.Config,
		router: http.NewServeMux(),
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dir, err := config.EnsureRekindleDir()
		if err != nil {
			return nil, fmt.Errorf("get rekindle dir: %w", err)
		}
		dataDir = dir
	}

	thresholds := risk.Thresholds{
		InactiveEscalationDays: cfg.Config.Engagement.Risk.InactiveEscalationDays,
		InactiveHighDays:       cfg.Config.Engagement.Risk.InactiveHighDays,
		LowCompletionFloor:     cfg.Config.Engagement.Risk.LowCompletionFloor,
		HighCompletionCeiling:  cfg.Config.Engagement.Risk.HighCompletionCeiling,
	}
	s.assessor = risk.NewAssessorWithThresholds(thresholds)

	sinks, err := s.setupStorage(ctx, dataDir)
	if err != nil {
		return nil, err
	}

	if cfg.Config.Queue.Enabled {
		conn, err := queue.NewConnection(cfg.Config.Queue.URL)
		if err != nil {
			slog.Warn("event queue not available, continuing without fan-out", "error", err)
		} else {
			s.events = queue.NewProducer(conn)
			sinks = append(sinks, s.events)
			s.closers = append(s.closers, conn)
		}
	}

	locks := learner.NewKeyMutex()
	s.locks = locks
	s.nudges = nudge.NewService(s.provider, locks, nudge.Config{
		Cooldown:   time.Duration(cfg.Config.Engagement.NudgeCooldownHours) * time.Hour,
		TTL:        time.Duration(cfg.Config.Engagement.NudgeTTLHours) * time.Hour,
		Production: cfg.Config.Engagement.Production,
		Thresholds: thresholds,
	})
	s.recorder = metrics.NewRecorder(s.provider, locks, sinks...)

	advisorCfg := advisor.DefaultConfig()
	advisorCfg.Cooldown = time.Duration(cfg.Config.Engagement.SwitchCooldownMins) * time.Minute
	advisorCfg.TimeThresholdMinutes = cfg.Config.Engagement.SwitchAfterMinutes
	s.advisor = advisor.New(advisorCfg)

	// Setup routes
	s.setupRoutes()

	// Create HTTP server with middleware chain
	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	handler := recoveryMiddleware(loggingMiddleware(correlationIDMiddleware(s.router)))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// setupStorage wires the learner provider and interaction sinks for the
// configured backend.
func (s *Server) setupStorage(ctx context.Context, dataDir string) ([]metrics.Sink, error) {
	switch s.cfg.Storage.Backend {
	case "postgres":
		db, err := repository.Open(ctx, s.cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := repository.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		s.closers = append(s.closers, db)

		repo := repository.NewLearnerRepository(db)
		// A shared database sits across a network hop; wrap reads and
		// patches with the resilience stack.
		s.provider = learner.NewResilientProvider(repo, learner.ResilientConfig{})
		s.writer = repo

		interactions := repository.NewInteractionRepository(db)
		s.history = interactions
		return []metrics.Sink{interactions}, nil

	case "", "local":
		store, err := learner.NewStore(filepath.Join(dataDir, "learners"))
		if err != nil {
			return nil, fmt.Errorf("create learner store: %w", err)
		}
		s.provider = store
		s.writer = store

		db, err := sqlite.Open(filepath.Join(dataDir, s.cfg.Storage.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("open interaction db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate interaction db: %w", err)
		}
		s.closers = append(s.closers, db)

		interactions := sqlite.NewInteractionStore(db)
		s.history = interactions
		return []metrics.Sink{interactions}, nil

	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, s.cfg.Storage.Backend)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Config
	s.router.HandleFunc("GET /v1/config", s.handleGetConfig)

	// Engagement engine
	s.router.HandleFunc("GET /v1/risk", s.handleAssessRisk)
	s.router.HandleFunc("GET /v1/nudge", s.handleGenerateNudge)
	s.router.HandleFunc("POST /v1/nudge/interactions", s.handleRecordInteraction)
	s.router.HandleFunc("GET /v1/topic-switch", s.handleTopicSwitch)

	// Metrics
	s.router.HandleFunc("GET /v1/metrics", s.handleSessionMetrics)
	s.router.HandleFunc("GET /v1/interactions", s.handleInteractionHistory)

	// Learner records
	s.router.HandleFunc("POST /v1/learners", s.handleCreateLearner)
	s.router.HandleFunc("GET /v1/learners", s.handleListLearners)
	s.router.HandleFunc("GET /v1/learners/{id}", s.handleGetLearner)
	s.router.HandleFunc("PUT /v1/learners/{id}", s.handlePutLearner)
	s.router.HandleFunc("DELETE /v1/learners/{id}", s.handleDeleteLearner)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting rekindle daemon",
		"addr", s.server.Addr,
		"backend", s.cfg.Storage.Backend,
		"production", s.cfg.Engagement.Production,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close resource", "error", err)
		}
	}

	return s.server.Shutdown(ctx)
}

// Handler implementations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":     "running",
		"version":    "0.1.0",
		"backend":    s.cfg.Storage.Backend,
		"production": s.cfg.Engagement.Production,
		"queue":      s.cfg.Queue.Enabled,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	// Return config without secrets
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"daemon":     s.cfg.Daemon,
		"engagement": s.cfg.Engagement,
		"storage": map[string]any{
			"backend":     s.cfg.Storage.Backend,
			"sqlite_path": s.cfg.Storage.SQLitePath,
		},
		"queue_enabled": s.cfg.Queue.Enabled,
	})
}

func (s *Server) handleAssessRisk(w http.ResponseWriter, r *http.Request) {
	learnerID := r.URL.Query().Get("learner_id")
	if learnerID == "" {
		s.jsonError(w, http.StatusBadRequest, "learner_id is required", nil)
		return
	}

	l, err := s.provider.Get(r.Context(), learnerID)
	if err != nil {
		s.domainError(w, err, "failed to load learner")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"learner_id": learnerID,
		"risk":       s.assessor.Assess(l, time.Now()),
	})
}

func (s *Server) handleGenerateNudge(w http.ResponseWriter, r *http.Request) {
	learnerID := r.URL.Query().Get("learner_id")
	if learnerID == "" {
		s.jsonError(w, http.StatusBadRequest, "learner_id is required", nil)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	msg, err := s.nudges.Generate(r.Context(), learnerID, force)
	if err != nil {
		s.domainError(w, err, "failed to generate nudge")
		return
	}

	// Fan generated nudges out to display surfaces. Delivery there is
	// best effort; the HTTP response is the source of truth.
	if msg != nil && s.events != nil {
		if err := s.events.PublishNudge(r.Context(), msg); err != nil {
			slog.Warn("failed to publish nudge event", "nudge_id", msg.ID, "error", err)
		}
	}

	// A healthy or cooling-down learner yields no nudge; that is a
	// normal outcome, not an error.
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"learner_id": learnerID,
		"nudge":      msg,
	})
}

func (s *Server) handleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NudgeID   string `json:"nudge_id"`
		LearnerID string `json:"learner_id"`
		Trigger   string `json:"trigger"`
		Action    string `json:"action"`
		Priority  string `json:"priority"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.NudgeID == "" || req.LearnerID == "" {
		s.jsonError(w, http.StatusBadRequest, "nudge_id and learner_id are required", nil)
		return
	}

	action, err := domain.ParseInteractionAction(req.Action)
	if err != nil {
		s.domainError(w, err, "invalid action")
		return
	}

	var trigger domain.ChurnReason
	if req.Trigger != "" {
		trigger, err = domain.ParseChurnReason(req.Trigger)
		if err != nil {
			s.domainError(w, err, "invalid trigger")
			return
		}
	}

	priority := domain.RiskNone
	if req.Priority != "" {
		priority, err = domain.ParseRiskLevel(req.Priority)
		if err != nil {
			s.domainError(w, err, "invalid priority")
			return
		}
	}

	if err := s.recorder.Record(r.Context(), req.LearnerID, req.NudgeID, trigger, action, priority); err != nil {
		s.domainError(w, err, "failed to record interaction")
		return
	}

	s.jsonResponse(w, http.StatusCreated, map[string]any{
		"nudge_id": req.NudgeID,
		"action":   action,
	})
}

func (s *Server) handleTopicSwitch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	learnerID := q.Get("learner_id")
	if learnerID == "" {
		s.jsonError(w, http.StatusBadRequest, "learner_id is required", nil)
		return
	}

	req := advisor.Request{
		CurrentGoalID: q.Get("current_goal_id"),
	}

	if v := q.Get("conversation_minutes"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, "conversation_minutes must be an integer", err)
			return
		}
		req.ConversationMinutes = minutes
	}

	if v := q.Get("last_suggestion_at"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, "last_suggestion_at must be RFC 3339", err)
			return
		}
		req.LastSuggestionAt = &t
	}

	if v := q.Get("declined_goal_ids"); v != "" {
		req.DeclinedGoalIDs = strings.Split(v, ",")
	}

	l, err := s.provider.Get(r.Context(), learnerID)
	if err != nil {
		s.domainError(w, err, "failed to load learner")
		return
	}

	// Callers that don't track the cooldown themselves fall back to the
	// persisted marker.
	if req.LastSuggestionAt == nil {
		req.LastSuggestionAt = l.Meta.LastSuggestionAt
	}

	suggestion := s.advisor.Suggest(l, req)

	if suggestion.ShouldSuggest {
		if err := s.markSuggested(r.Context(), learnerID); err != nil {
			slog.Warn("failed to persist suggestion marker", "learner_id", learnerID, "error", err)
		}
	}

	s.jsonResponse(w, http.StatusOK, suggestion)
}

// markSuggested advances the learner's suggestion-cooldown marker. Runs
// under the per-learner lock so it never clobbers a concurrent nudge
// interaction's meta patch.
func (s *Server) markSuggested(ctx context.Context, learnerID string) error {
	unlock := s.locks.Lock(learnerID)
	defer unlock()

	l, err := s.provider.Get(ctx, learnerID)
	if err != nil {
		return err
	}

	now := time.Now()
	meta := l.Meta
	meta.LastSuggestionAt = &now
	_, err = s.provider.Patch(ctx, learnerID, learner.Patch{Meta: &meta})
	return err
}

func (s *Server) handleSessionMetrics(w http.ResponseWriter, r *http.Request) {
	learnerID := r.URL.Query().Get("learner_id")
	if learnerID == "" {
		s.jsonError(w, http.StatusBadRequest, "learner_id is required", nil)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"learner_id": learnerID,
		"summary":    s.recorder.Aggregate(learnerID),
	})
}

func (s *Server) handleInteractionHistory(w http.ResponseWriter, r *http.Request) {
	learnerID := r.URL.Query().Get("learner_id")
	if learnerID == "" {
		s.jsonError(w, http.StatusBadRequest, "learner_id is required", nil)
		return
	}

	since := time.Time{}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.jsonError(w, http.StatusBadRequest, "since must be RFC 3339", err)
			return
		}
		since = t
	}

	records, err := s.history.History(r.Context(), learnerID, since)
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to load interaction history", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"learner_id":   learnerID,
		"interactions": records,
	})
}

func (s *Server) handleCreateLearner(w http.ResponseWriter, r *http.Request) {
	var l domain.Learner
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if l.ID == "" {
		s.jsonError(w, http.StatusBadRequest, "learner id is required", nil)
		return
	}

	if err := s.writer.Put(r.Context(), &l); err != nil {
		s.domainError(w, err, "failed to store learner")
		return
	}

	s.jsonResponse(w, http.StatusCreated, &l)
}

func (s *Server) handleListLearners(w http.ResponseWriter, r *http.Request) {
	ids, err := s.writer.List(r.Context())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to list learners", err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"learner_ids": ids,
	})
}

func (s *Server) handleGetLearner(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	l, err := s.provider.Get(r.Context(), id)
	if err != nil {
		s.domainError(w, err, "failed to load learner")
		return
	}

	s.jsonResponse(w, http.StatusOK, l)
}

func (s *Server) handlePutLearner(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var l domain.Learner
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if l.ID == "" {
		l.ID = id
	}
	if l.ID != id {
		s.jsonError(w, http.StatusBadRequest, "learner id in body does not match path", nil)
		return
	}

	if err := s.writer.Put(r.Context(), &l); err != nil {
		s.domainError(w, err, "failed to store learner")
		return
	}

	s.jsonResponse(w, http.StatusOK, &l)
}

func (s *Server) handleDeleteLearner(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.writer.Delete(r.Context(), id); err != nil {
		s.domainError(w, err, "failed to delete learner")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"deleted": id,
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}

// domainError maps engine errors onto HTTP status codes.
func (s *Server) domainError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, domain.ErrLearnerNotFound), errors.Is(err, domain.ErrNotFound):
		s.jsonError(w, http.StatusNotFound, message, err)
	case errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidRiskLevel),
		errors.Is(err, domain.ErrInvalidTrigger),
		errors.Is(err, domain.ErrInvalidInput):
		s.jsonError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, domain.ErrForceDisabled):
		s.jsonError(w, http.StatusForbidden, message, err)
	case errors.Is(err, domain.ErrLearnerAlreadyExists):
		s.jsonError(w, http.StatusConflict, message, err)
	default:
		s.jsonError(w, http.StatusInternalServerError, message, err)
	}
}
