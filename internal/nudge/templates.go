package nudge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/rekindle/internal/domain"
)

// Template is an immutable message template identified by (trigger, age-band).
type Template struct {
	Celebration   string // optional; "" means no celebration line
	Encouragement string
	CallToAction  string
	Intensity     domain.Intensity
}

// Catalog is the static set of nudge templates. Not learner-specific.
type Catalog struct {
	templates map[domain.ChurnReason]map[domain.AgeBand]Template
}

// NewCatalog creates a catalog with the default templates.
func NewCatalog() *Catalog {
	return &Catalog{templates: defaultTemplates()}
}

// Select looks up a template by trigger and age band. A missing band falls
// back to the middle band; a trigger with no templates at all is a
// configuration defect and returns domain.ErrTemplateMissing.
func (c *Catalog) Select(trigger domain.ChurnReason, band domain.AgeBand) (Template, error) {
	byBand, ok := c.templates[trigger]
	if !ok || len(byBand) == 0 {
		return Template{}, fmt.Errorf("%w: %s", domain.ErrTemplateMissing, trigger)
	}

	if t, ok := byBand[band]; ok {
		return t, nil
	}
	if t, ok := byBand[domain.BandMiddle]; ok {
		return t, nil
	}

	// Any band beats failing outright.
	for _, t := range byBand {
		return t, nil
	}
	return Template{}, fmt.Errorf("%w: %s", domain.ErrTemplateMissing, trigger)
}

// FindCelebrationPoint scans goals and streaks for something genuinely
// worth celebrating. Returns "" when nothing qualifies.
func FindCelebrationPoint(l *domain.Learner) string {
	if goals := l.NewlyCompletedGoals(); len(goals) > 0 {
		return fmt.Sprintf("You finished your %s goal!", goals[0].Subject)
	}

	for _, g := range l.Goals {
		for _, topic := range g.Topics {
			if topic.Progress >= 90 && g.Progress < domain.GoalCompleteProgress {
				return fmt.Sprintf("You've nearly mastered %s!", topic.Name)
			}
		}
	}

	for _, st := range []domain.Streak{l.PracticeStreak, l.LoginStreak} {
		if st.Current >= 3 && st.Current >= st.Longest {
			return fmt.Sprintf("%d days in a row is your best streak yet!", st.Current)
		}
	}

	return ""
}

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// ReplacePlaceholders substitutes message tokens with current learner
// values. Tokens that cannot be resolved are stripped, never leaked as raw
// placeholder syntax.
func ReplacePlaceholders(text string, l *domain.Learner) string {
	r := strings.NewReplacer(
		"{name}", l.Name,
		"{subject}", primarySubject(l),
		"{goal}", primarySubject(l),
		"{streak}", strconv.Itoa(bestStreak(l)),
		"{progress}", strconv.Itoa(int(primaryProgress(l))),
	)
	out := r.Replace(text)

	// Anything left over is an unknown token; drop it cleanly.
	out = placeholderPattern.ReplaceAllString(out, "")
	out = strings.Join(strings.Fields(out), " ")
	return out
}

func primarySubject(l *domain.Learner) string {
	if goals := l.NewlyCompletedGoals(); len(goals) > 0 {
		return goals[0].Subject
	}
	if len(l.Goals) > 0 {
		return l.Goals[0].Subject
	}
	return "your subject"
}

func primaryProgress(l *domain.Learner) float64 {
	if len(l.Goals) > 0 {
		return l.Goals[0].Progress
	}
	return 0
}

func bestStreak(l *domain.Learner) int {
	best := l.LoginStreak.Current
	if l.PracticeStreak.Current > best {
		best = l.PracticeStreak.Current
	}
	if best == 0 {
		if l.LoginStreak.Longest > l.PracticeStreak.Longest {
			return l.LoginStreak.Longest
		}
		return l.PracticeStreak.Longest
	}
	return best
}

func defaultTemplates() map[domain.ChurnReason]map[domain.AgeBand]Template {
	return map[domain.ChurnReason]map[domain.AgeBand]Template{
		domain.ReasonStreakBroken: {
			domain.BandYoung: {
				Celebration:   "You kept a {streak}-day streak going!",
				Encouragement: "Oh no, your streak took a little break. That happens to everyone, {name}!",
				CallToAction:  "Hop back in today and start a brand new streak!",
				Intensity:     domain.IntensityModerate,
			},
			domain.BandMiddle: {
				Celebration:   "Your best streak so far: {streak} days.",
				Encouragement: "Your streak slipped, {name} — but streaks are made to be rebuilt.",
				CallToAction:  "One session today gets you back on the board.",
				Intensity:     domain.IntensityModerate,
			},
			domain.BandTeen: {
				Encouragement: "Your streak lapsed. Consistency is the hard part, and you had it.",
				CallToAction:  "A short session today restarts the count.",
				Intensity:     domain.IntensityModerate,
			},
		},
		domain.ReasonGoalCompleted: {
			domain.BandYoung: {
				Celebration:   "WOW! You finished your {goal} goal!",
				Encouragement: "You worked so hard for this, {name}. Amazing job!",
				CallToAction:  "Want to pick your next adventure?",
				Intensity:     domain.IntensityGentle,
			},
			domain.BandMiddle: {
				Celebration:   "Goal complete: {goal}!",
				Encouragement: "That took real persistence, {name}. Well earned.",
				CallToAction:  "Ready to set your next goal?",
				Intensity:     domain.IntensityGentle,
			},
			domain.BandTeen: {
				Celebration:   "{goal}: done.",
				Encouragement: "Solid work seeing that through to the end.",
				CallToAction:  "Worth deciding what you want to tackle next.",
				Intensity:     domain.IntensityGentle,
			},
		},
		domain.ReasonLowTaskCompletion: {
			domain.BandYoung: {
				Encouragement: "Finishing is the tricky part, {name} — and you're getting better at it!",
				CallToAction:  "Let's finish one small thing together today!",
				Intensity:     domain.IntensityGentle,
			},
			domain.BandMiddle: {
				Encouragement: "You've started a lot lately, {name}. Finishing even one builds momentum.",
				CallToAction:  "Pick your easiest open task and close it out.",
				Intensity:     domain.IntensityModerate,
			},
			domain.BandTeen: {
				Encouragement: "A lot of open threads right now. Completion beats volume.",
				CallToAction:  "Knock out one unfinished conversation today.",
				Intensity:     domain.IntensityModerate,
			},
		},
		domain.ReasonInactive: {
			domain.BandYoung: {
				Encouragement: "We miss you, {name}! {subject} is waiting for you.",
				CallToAction:  "Come play for just five minutes today!",
				Intensity:     domain.IntensityUrgent,
			},
			domain.BandMiddle: {
				Encouragement: "It's been a while, {name}. You were at {progress}% on {subject}.",
				CallToAction:  "Ten minutes today keeps the progress you've built.",
				Intensity:     domain.IntensityUrgent,
			},
			domain.BandTeen: {
				Encouragement: "You've been away a bit. Your {subject} progress ({progress}%) is still there.",
				CallToAction:  "A quick session today beats a long one never.",
				Intensity:     domain.IntensityUrgent,
			},
		},
		domain.ReasonEncouragement: {
			domain.BandYoung: {
				Encouragement: "You're doing great, {name}! Keep going!",
				CallToAction:  "What do you want to learn today?",
				Intensity:     domain.IntensityGentle,
			},
			domain.BandMiddle: {
				Encouragement: "Steady progress, {name}. It adds up faster than you think.",
				CallToAction:  "Keep the rhythm going with a session today.",
				Intensity:     domain.IntensityGentle,
			},
			domain.BandTeen: {
				Encouragement: "You're on track. Consistency is doing the work for you.",
				CallToAction:  "Keep it rolling whenever you're ready.",
				Intensity:     domain.IntensityGentle,
			},
		},
	}
}
