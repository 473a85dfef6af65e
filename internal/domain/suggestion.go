package domain

// SwitchTrigger is the reason a topic switch is proposed.
type SwitchTrigger string

const (
	SwitchTime     SwitchTrigger = "time"
	SwitchProgress SwitchTrigger = "progress"
	SwitchBalance  SwitchTrigger = "balance"
	SwitchNone     SwitchTrigger = "none"
)

// TopicSwitchSuggestion is produced fresh on every advisor call and never
// persisted by the engine. Callers track declined goal ids for the session.
type TopicSwitchSuggestion struct {
	ShouldSuggest bool          `json:"should_suggest"`
	SuggestedGoal *Goal         `json:"suggested_goal,omitempty"`
	CurrentGoal   *Goal         `json:"current_goal,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Trigger       SwitchTrigger `json:"trigger"`
}

// NoSuggestion is the explicit empty result for "nothing to do" outcomes.
func NoSuggestion() TopicSwitchSuggestion {
	return TopicSwitchSuggestion{ShouldSuggest: false, Trigger: SwitchNone}
}
