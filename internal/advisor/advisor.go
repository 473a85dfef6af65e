// Package advisor decides whether to propose switching the active learning
// goal during a tutoring conversation. It is independent of the nudge
// pipeline and carries its own, much shorter cooldown.
package advisor

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/felixgeelhaar/rekindle/internal/domain"
)

// Config tunes the switch triggers.
type Config struct {
	// Cooldown is the minimum gap between suggestions in one session.
	Cooldown time.Duration
	// TimeThresholdMinutes is how long a conversation may dwell on one
	// goal before a change of pace is suggested. Keep it short in
	// development for fast feedback.
	TimeThresholdMinutes int
	// ProgressHigh and ProgressTrail drive the progress trigger: the
	// current goal is nearly done and an alternative trails it.
	ProgressHigh  float64
	ProgressTrail float64
	// BalanceHigh and BalanceSpread drive the balance trigger: progress
	// across goals has drifted badly out of balance.
	BalanceHigh   float64
	BalanceSpread float64
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Cooldown:             15 * time.Minute,
		TimeThresholdMinutes: 20,
		ProgressHigh:         85,
		ProgressTrail:        10,
		BalanceHigh:          60,
		BalanceSpread:        30,
	}
}

// Request carries the per-conversation state the caller tracks. The
// advisor itself persists nothing; declined goal ids live with the caller
// for the session so a decline is not repeated.
type Request struct {
	CurrentGoalID       string
	ConversationMinutes int
	LastSuggestionAt    *time.Time
	DeclinedGoalIDs     []string
}

// Advisor evaluates switch triggers in fixed order: time, then progress,
// then balance. The time trigger picks randomly for variety; the other two
// pick deterministically for relevance.
type Advisor struct {
	cfg Config

	now  func() time.Time
	pick func(n int) int // uniform in [0,n)
}

func New(cfg Config) *Advisor {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Minute
	}
	if cfg.TimeThresholdMinutes <= 0 {
		cfg.TimeThresholdMinutes = 20
	}
	return &Advisor{
		cfg:  cfg,
		now:  time.Now,
		pick: rand.Intn,
	}
}

// Suggest returns a switch suggestion, or the explicit "none" result when
// the gate fails or no trigger fires. Never an error: having nothing to
// suggest is normal control flow.
func (a *Advisor) Suggest(l *domain.Learner, req Request) domain.TopicSwitchSuggestion {
	if req.LastSuggestionAt != nil && a.now().Sub(*req.LastSuggestionAt) < a.cfg.Cooldown {
		return domain.NoSuggestion()
	}

	current := l.GoalByID(req.CurrentGoalID)
	if current == nil {
		return domain.NoSuggestion()
	}

	alternatives := eligibleAlternatives(l, req)
	if len(alternatives) == 0 {
		return domain.NoSuggestion()
	}

	if req.ConversationMinutes >= a.cfg.TimeThresholdMinutes {
		suggested := alternatives[a.pick(len(alternatives))]
		return a.suggestion(l, current, suggested, domain.SwitchTime)
	}

	if current.Progress >= a.cfg.ProgressHigh {
		if trailing := lowestTrailing(alternatives, current.Progress, a.cfg.ProgressTrail); trailing != nil {
			return a.suggestion(l, current, trailing, domain.SwitchProgress)
		}
	}

	if current.Progress > a.cfg.BalanceHigh && progressSpread(l.Goals) > a.cfg.BalanceSpread {
		lowest := lowestProgress(alternatives)
		if lowest != nil {
			return a.suggestion(l, current, lowest, domain.SwitchBalance)
		}
	}

	return domain.NoSuggestion()
}

func (a *Advisor) suggestion(l *domain.Learner, current, suggested *domain.Goal, trigger domain.SwitchTrigger) domain.TopicSwitchSuggestion {
	return domain.TopicSwitchSuggestion{
		ShouldSuggest: true,
		SuggestedGoal: suggested,
		CurrentGoal:   current,
		Reason:        reasonFor(trigger, l.Band(), current, suggested),
		Trigger:       trigger,
	}
}

// eligibleAlternatives filters out the current goal, declined goals, and
// anything already completed.
func eligibleAlternatives(l *domain.Learner, req Request) []*domain.Goal {
	declined := make(map[string]bool, len(req.DeclinedGoalIDs))
	for _, id := range req.DeclinedGoalIDs {
		declined[id] = true
	}

	var out []*domain.Goal
	for i := range l.Goals {
		g := &l.Goals[i]
		if g.ID == req.CurrentGoalID || declined[g.ID] || g.Completed() {
			continue
		}
		out = append(out, g)
	}
	return out
}

// lowestTrailing returns the lowest-progress alternative that trails the
// current goal by more than the trail margin, or nil.
func lowestTrailing(alternatives []*domain.Goal, currentProgress, trail float64) *domain.Goal {
	var best *domain.Goal
	for _, g := range alternatives {
		if currentProgress-g.Progress <= trail {
			continue
		}
		if best == nil || g.Progress < best.Progress {
			best = g
		}
	}
	return best
}

func lowestProgress(alternatives []*domain.Goal) *domain.Goal {
	var best *domain.Goal
	for _, g := range alternatives {
		if best == nil || g.Progress < best.Progress {
			best = g
		}
	}
	return best
}

// progressSpread is the gap between the learner's highest- and
// lowest-progress goals.
func progressSpread(goals []domain.Goal) float64 {
	if len(goals) == 0 {
		return 0
	}
	lo, hi := goals[0].Progress, goals[0].Progress
	for _, g := range goals[1:] {
		if g.Progress < lo {
			lo = g.Progress
		}
		if g.Progress > hi {
			hi = g.Progress
		}
	}
	return hi - lo
}

// reasonText parameterizes the suggestion reason per age band. Each band
// carries its own phrasing for the same semantic trigger, so the trigger
// stays the single source of truth.
type reasonText struct {
	young  string
	middle string
	teen   string
}

func (r reasonText) forBand(band domain.AgeBand) string {
	switch band {
	case domain.BandYoung:
		return r.young
	case domain.BandTeen:
		return r.teen
	default:
		return r.middle
	}
}

var reasons = map[domain.SwitchTrigger]reasonText{
	domain.SwitchTime: {
		young:  "You've been working on %s for a while — want to try some %s for fun?",
		middle: "You've spent a good stretch on %s. A switch to %s could freshen things up.",
		teen:   "Long session on %s. Rotating to %s now can make the return more productive.",
	},
	domain.SwitchProgress: {
		young:  "You're almost done with %s! %s could use some of your superpowers too.",
		middle: "You're nearly finished with %s — %s is falling behind and could use attention.",
		teen:   "%s is close to complete. %s is trailing; shifting focus there balances your progress.",
	},
	domain.SwitchBalance: {
		young:  "You're doing great at %s! Let's give %s a turn too.",
		middle: "Your %s progress is strong, but %s needs catching up.",
		teen:   "%s is well ahead of %s. Rebalancing now avoids a catch-up crunch later.",
	},
}

func reasonFor(trigger domain.SwitchTrigger, band domain.AgeBand, current, suggested *domain.Goal) string {
	r, ok := reasons[trigger]
	if !ok {
		return ""
	}
	return fmt.Sprintf(r.forBand(band), current.Subject, suggested.Subject)
}
