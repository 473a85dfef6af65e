package mcp

import (
	"context"
	"fmt"
	"time"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"github.com/felixgeelhaar/rekindle/internal/advisor"
	"github.com/felixgeelhaar/rekindle/internal/domain"
	"github.com/felixgeelhaar/rekindle/internal/learner"
	"github.com/felixgeelhaar/rekindle/internal/metrics"
	"github.com/felixgeelhaar/rekindle/internal/nudge"
	"github.com/felixgeelhaar/rekindle/internal/risk"
)

// Server wraps the MCP server with Rekindle functionality
type Server struct {
	mcpServer *server.Server
	provider  learner.Provider
	assessor  *risk.Assessor
	nudges    *nudge.Service
	advisor   *advisor.Advisor
	recorder  *metrics.Recorder
	locks     *learner.KeyMutex
}

// Config contains configuration for the MCP server
type Config struct {
	Provider learner.Provider
	Assessor *risk.Assessor
	Nudges   *nudge.Service
	Advisor  *advisor.Advisor
	Recorder *metrics.Recorder
	Locks    *learner.KeyMutex
}

// NewServer creates a new MCP server for Rekindle
func NewServer(cfg Config) *Server {
	s := &Server{
		provider: cfg.Provider,
		assessor: cfg.Assessor,
		nudges:   cfg.Nudges,
		advisor:  cfg.Advisor,
		recorder: cfg.Recorder,
		locks:    cfg.Locks,
	}
	if s.locks == nil {
		s.locks = learner.NewKeyMutex()
	}

	// Create MCP server
	s.mcpServer = server.New(server.Info{
		Name:    "rekindle",
		Version: "0.1.0",
	}, server.WithInstructions(`
Rekindle is an engagement and retention decision engine for a kids'
tutoring companion. It decides when a learner needs a re-engagement
nudge, renders age-appropriate messages, and advises on topic switches
during long conversations.

Available tools:
- rekindle_risk: Classify a learner's disengagement risk
- rekindle_nudge: Generate a re-engagement nudge if one is warranted
- rekindle_interact: Report a nudge lifecycle event (shown/accepted/dismissed/expired)
- rekindle_topic_switch: Ask whether the conversation should move to another goal
- rekindle_metrics: Summarize this session's nudge interactions
- rekindle_learner: Look up a learner's profile, goals and streaks

Report "shown" via rekindle_interact whenever you present a nudge:
that is what starts the cooldown and prevents nudge fatigue.
`))

	// Register tools
	s.registerTools()

	return s
}

// registerTools registers all Rekindle MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("rekindle_risk").
		Description("Classify a learner's disengagement risk as none, low, medium or high.").
		Handler(s.handleRisk)

	s.mcpServer.Tool("rekindle_nudge").
		Description("Generate a re-engagement nudge for a learner. Returns no nudge when the learner is healthy or a nudge was shown recently.").
		Handler(s.handleNudge)

	s.mcpServer.Tool("rekindle_interact").
		Description("Report what happened to a nudge: shown, accepted, dismissed or expired.").
		Handler(s.handleInteract)

	s.mcpServer.Tool("rekindle_topic_switch").
		Description("Ask whether the current conversation should switch to a different learning goal.").
		Handler(s.handleTopicSwitch)

	s.mcpServer.Tool("rekindle_metrics").
		Description("Summarize the learner's nudge interactions for this session.").
		Handler(s.handleMetrics)

	s.mcpServer.Tool("rekindle_learner").
		Description("Look up a learner's profile: age band, goals, streaks and recent activity.").
		Handler(s.handleLearner)
}

// Input/Output types for tools

type RiskInput struct {
	LearnerID string `json:"learner_id" jsonschema:"description=Learner ID"`
}

type RiskOutput struct {
	LearnerID    string `json:"learner_id"`
	Risk         string `json:"risk"`
	DaysInactive int    `json:"days_inactive"`
}

type NudgeInput struct {
	LearnerID string `json:"learner_id" jsonschema:"description=Learner ID"`
	Force     bool   `json:"force,omitempty" jsonschema:"description=Bypass risk gate and cooldown; rejected in production"`
}

type NudgeOutput struct {
	Generated     bool   `json:"generated"`
	NudgeID       string `json:"nudge_id,omitempty"`
	Trigger       string `json:"trigger,omitempty"`
	Celebration   string `json:"celebration,omitempty"`
	Encouragement string `json:"encouragement,omitempty"`
	CallToAction  string `json:"call_to_action,omitempty"`
	Intensity     string `json:"intensity,omitempty"`
	Priority      string `json:"priority,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
	Message       string `json:"message"`
}

type InteractInput struct {
	NudgeID   string `json:"nudge_id" jsonschema:"description=Nudge ID from rekindle_nudge"`
	LearnerID string `json:"learner_id" jsonschema:"description=Learner ID"`
	Trigger   string `json:"trigger,omitempty" jsonschema:"description=Trigger carried on the nudge"`
	Action    string `json:"action" jsonschema:"description=Lifecycle event,enum=shown,enum=accepted,enum=dismissed,enum=expired"`
	Priority  string `json:"priority,omitempty" jsonschema:"description=Priority carried on the nudge,enum=none,enum=low,enum=medium,enum=high"`
}

type InteractOutput struct {
	Message string `json:"message"`
}

type TopicSwitchInput struct {
	LearnerID           string   `json:"learner_id" jsonschema:"description=Learner ID"`
	CurrentGoalID       string   `json:"current_goal_id,omitempty" jsonschema:"description=Goal the conversation is currently about"`
	ConversationMinutes int      `json:"conversation_minutes,omitempty" jsonschema:"description=Minutes spent in the current conversation"`
	LastSuggestionAt    string   `json:"last_suggestion_at,omitempty" jsonschema:"description=RFC 3339 time of the previous switch suggestion"`
	DeclinedGoalIDs     []string `json:"declined_goal_ids,omitempty" jsonschema:"description=Goals the learner declined this session"`
}

type TopicSwitchOutput struct {
	ShouldSuggest    bool   `json:"should_suggest"`
	SuggestedGoalID  string `json:"suggested_goal_id,omitempty"`
	SuggestedSubject string `json:"suggested_subject,omitempty"`
	Trigger          string `json:"trigger"`
	Reason           string `json:"reason,omitempty"`
}

type MetricsInput struct {
	LearnerID string `json:"learner_id" jsonschema:"description=Learner ID"`
}

type MetricsOutput struct {
	Shown          int     `json:"shown"`
	Accepted       int     `json:"accepted"`
	Dismissed      int     `json:"dismissed"`
	Expired        int     `json:"expired"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	DismissalRate  float64 `json:"dismissal_rate"`
}

type LearnerInput struct {
	LearnerID string `json:"learner_id" jsonschema:"description=Learner ID"`
}

type LearnerGoal struct {
	ID       string  `json:"id"`
	Subject  string  `json:"subject"`
	Progress float64 `json:"progress"`
}

type LearnerOutput struct {
	LearnerID         string        `json:"learner_id"`
	Name              string        `json:"name"`
	Age               int           `json:"age"`
	AgeBand           string        `json:"age_band"`
	Grade             int           `json:"grade"`
	DaysInactive      int           `json:"days_inactive"`
	LoginStreak       int           `json:"login_streak"`
	PracticeStreak    int           `json:"practice_streak"`
	QuestionsAsked    int           `json:"questions_asked"`
	ConversationsDone int           `json:"conversations_done"`
	Goals             []LearnerGoal `json:"goals"`
}

// Tool handlers

func (s *Server) handleRisk(ctx context.Context, input RiskInput) (RiskOutput, error) {
	l, err := s.provider.Get(ctx, input.LearnerID)
	if err != nil {
		return RiskOutput{}, fmt.Errorf("load learner: %w", err)
	}

	now := time.Now()
	return RiskOutput{
		LearnerID:    l.ID,
		Risk:         s.assessor.Assess(l, now).String(),
		DaysInactive: l.DaysInactive(now),
	}, nil
}

func (s *Server) handleNudge(ctx context.Context, input NudgeInput) (NudgeOutput, error) {
	msg, err := s.nudges.Generate(ctx, input.LearnerID, input.Force)
	if err != nil {
		return NudgeOutput{}, fmt.Errorf("generate nudge: %w", err)
	}

	if msg == nil {
		return NudgeOutput{
			Generated: false,
			Message:   "No nudge needed: the learner is engaged or a nudge was shown recently.",
		}, nil
	}

	return NudgeOutput{
		Generated:     true,
		NudgeID:       msg.ID,
		Trigger:       string(msg.Trigger),
		Celebration:   msg.Celebration,
		Encouragement: msg.Encouragement,
		CallToAction:  msg.CallToAction,
		Intensity:     string(msg.Intensity),
		Priority:      msg.Priority.String(),
		ExpiresAt:     msg.ExpiresAt.Format(time.RFC3339),
		Message:       "Present the nudge, then report the outcome via rekindle_interact.",
	}, nil
}

func (s *Server) handleInteract(ctx context.Context, input InteractInput) (InteractOutput, error) {
	action, err := domain.ParseInteractionAction(input.Action)
	if err != nil {
		return InteractOutput{}, err
	}

	var trigger domain.ChurnReason
	if input.Trigger != "" {
		trigger, err = domain.ParseChurnReason(input.Trigger)
		if err != nil {
			return InteractOutput{}, err
		}
	}

	priority := domain.RiskNone
	if input.Priority != "" {
		priority, err = domain.ParseRiskLevel(input.Priority)
		if err != nil {
			return InteractOutput{}, err
		}
	}

	if err := s.recorder.Record(ctx, input.LearnerID, input.NudgeID, trigger, action, priority); err != nil {
		return InteractOutput{}, fmt.Errorf("record interaction: %w", err)
	}

	return InteractOutput{
		Message: fmt.Sprintf("Recorded %q for nudge %s.", action, input.NudgeID),
	}, nil
}

func (s *Server) handleTopicSwitch(ctx context.Context, input TopicSwitchInput) (TopicSwitchOutput, error) {
	l, err := s.provider.Get(ctx, input.LearnerID)
	if err != nil {
		return TopicSwitchOutput{}, fmt.Errorf("load learner: %w", err)
	}

	req := advisor.Request{
		CurrentGoalID:       input.CurrentGoalID,
		ConversationMinutes: input.ConversationMinutes,
		DeclinedGoalIDs:     input.DeclinedGoalIDs,
	}
	if input.LastSuggestionAt != "" {
		t, err := time.Parse(time.RFC3339, input.LastSuggestionAt)
		if err != nil {
			return TopicSwitchOutput{}, fmt.Errorf("parse last_suggestion_at: %w", err)
		}
		req.LastSuggestionAt = &t
	}

	// Callers that don't track the cooldown themselves fall back to the
	// persisted marker.
	if req.LastSuggestionAt == nil {
		req.LastSuggestionAt = l.Meta.LastSuggestionAt
	}

	suggestion := s.advisor.Suggest(l, req)

	if suggestion.ShouldSuggest {
		if err := s.markSuggested(ctx, input.LearnerID); err != nil {
			return TopicSwitchOutput{}, fmt.Errorf("persist suggestion marker: %w", err)
		}
	}

	out := TopicSwitchOutput{
		ShouldSuggest: suggestion.ShouldSuggest,
		Trigger:       string(suggestion.Trigger),
		Reason:        suggestion.Reason,
	}
	if suggestion.SuggestedGoal != nil {
		out.SuggestedGoalID = suggestion.SuggestedGoal.ID
		out.SuggestedSubject = suggestion.SuggestedGoal.Subject
	}
	return out, nil
}

// markSuggested advances the learner's suggestion-cooldown marker under
// the per-learner lock.
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

func (s *Server) handleMetrics(ctx context.Context, input MetricsInput) (MetricsOutput, error) {
	summary := s.recorder.Aggregate(input.LearnerID)
	return MetricsOutput{
		Shown:          summary.Shown,
		Accepted:       summary.Accepted,
		Dismissed:      summary.Dismissed,
		Expired:        summary.Expired,
		AcceptanceRate: summary.AcceptanceRate,
		DismissalRate:  summary.DismissalRate,
	}, nil
}

func (s *Server) handleLearner(ctx context.Context, input LearnerInput) (LearnerOutput, error) {
	l, err := s.provider.Get(ctx, input.LearnerID)
	if err != nil {
		return LearnerOutput{}, fmt.Errorf("load learner: %w", err)
	}

	goals := make([]LearnerGoal, 0, len(l.Goals))
	for _, g := range l.Goals {
		goals = append(goals, LearnerGoal{ID: g.ID, Subject: g.Subject, Progress: g.Progress})
	}

	return LearnerOutput{
		LearnerID:         l.ID,
		Name:              l.Name,
		Age:               l.Age,
		AgeBand:           string(l.Band()),
		Grade:             l.Grade,
		DaysInactive:      l.DaysInactive(time.Now()),
		LoginStreak:       l.LoginStreak.Current,
		PracticeStreak:    l.PracticeStreak.Current,
		QuestionsAsked:    l.QuestionsAsked,
		ConversationsDone: l.ConversationsDone,
		Goals:             goals,
	}, nil
}

// ServeStdio starts the MCP server on stdio (for assistant integration)
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
