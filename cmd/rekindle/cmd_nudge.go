package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// cmdRisk classifies a learner's disengagement risk
func cmdRisk(args []string) error {
	fs := flag.NewFlagSet("risk", flag.ContinueOnError)
	learnerID := fs.String("learner", "", "learner id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *learnerID == "" {
		return fmt.Errorf("--learner is required (e.g., rekindle risk --learner eva)")
	}

	if !isRunning() {
		return fmt.Errorf("daemon not running (run 'rekindle start' first)")
	}

	q := url.Values{"learner_id": {*learnerID}}
	resp, err := http.Get(daemonAddr + "/v1/risk?" + q.Encode())
	if err != nil {
		return fmt.Errorf("assess risk: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return daemonRequestError(resp, "assess risk")
	}

	var result struct {
		LearnerID string `json:"learner_id"`
		Risk      string `json:"risk"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	fmt.Printf("Learner: %s\n", result.LearnerID)
	fmt.Printf("Risk:    %s\n", result.Risk)

	return nil
}

// cmdNudge generates a re-engagement nudge for a learner
func cmdNudge(args []string) error {
	fs := flag.NewFlagSet("nudge", flag.ContinueOnError)
	learnerID := fs.String("learner", "", "learner id (required)")
	force := fs.Bool("force", false, "bypass risk and cooldown gates (development mode only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *learnerID == "" {
		return fmt.Errorf("--learner is required (e.g., rekindle nudge --learner eva)")
	}

	if !isRunning() {
		return fmt.Errorf("daemon not running (run 'rekindle start' first)")
	}

	q := url.Values{"learner_id": {*learnerID}}
	if *force {
		q.Set("force", "true")
	}

	resp, err := http.Get(daemonAddr + "/v1/nudge?" + q.Encode())
	if err != nil {
		return fmt.Errorf("generate nudge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return daemonRequestError(resp, "generate nudge")
	}

	var result struct {
		LearnerID string `json:"learner_id"`
		Nudge     *struct {
			ID            string `json:"id"`
			Trigger       string `json:"trigger"`
			Celebration   string `json:"celebration"`
			Encouragement string `json:"encouragement"`
			CallToAction  string `json:"call_to_action"`
			Intensity     string `json:"intensity"`
			Priority      string `json:"priority"`
			ExpiresAt     string `json:"expires_at"`
		} `json:"nudge"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	if result.Nudge == nil {
		fmt.Printf("No nudge for %s right now (healthy or cooling down).\n", result.LearnerID)
		return nil
	}

	n := result.Nudge
	fmt.Printf("Nudge for %s\n", result.LearnerID)
	fmt.Println("================")
	fmt.Printf("ID:        %s\n", n.ID)
	fmt.Printf("Trigger:   %s\n", n.Trigger)
	fmt.Printf("Priority:  %s\n", n.Priority)
	fmt.Printf("Intensity: %s\n", n.Intensity)
	fmt.Printf("Expires:   %s\n", n.ExpiresAt)
	fmt.Println()
	if n.Celebration != "" {
		fmt.Println(n.Celebration)
	}
	fmt.Println(n.Encouragement)
	fmt.Println(n.CallToAction)
	fmt.Println()
	fmt.Println("Report the outcome with:")
	fmt.Printf("  rekindle interact --learner %s --nudge %s --action shown\n", result.LearnerID, n.ID)

	return nil
}

// cmdInteract reports a nudge outcome back to the daemon
func cmdInteract(args []string) error {
	fs := flag.NewFlagSet("interact", flag.ContinueOnError)
	learnerID := fs.String("learner", "", "learner id (required)")
	nudgeID := fs.String("nudge", "", "nudge id (required)")
	action := fs.String("action", "", "shown, accepted, dismissed, or expired (required)")
	trigger := fs.String("trigger", "", "trigger that produced the nudge")
	priority := fs.String("priority", "", "risk level the nudge carried")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *learnerID == "" || *nudgeID == "" || *action == "" {
		return fmt.Errorf("--learner, --nudge, and --action are required")
	}

	if !isRunning() {
		return fmt.Errorf("daemon not running (run 'rekindle start' first)")
	}

	body, err := json.Marshal(map[string]string{
		"learner_id": *learnerID,
		"nudge_id":   *nudgeID,
		"action":     *action,
		"trigger":    *trigger,
		"priority":   *priority,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := http.Post(daemonAddr+"/v1/nudge/interactions", "application/json", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return daemonRequestError(resp, "record interaction")
	}

	fmt.Printf("✓ Recorded %s for nudge %s\n", *action, *nudgeID)

	return nil
}

// cmdSwitch asks the daemon for a topic-switch suggestion
func cmdSwitch(args []string) error {
	fs := flag.NewFlagSet("switch", flag.ContinueOnError)
	learnerID := fs.String("learner", "", "learner id (required)")
	goalID := fs.String("goal", "", "goal id of the current conversation topic")
	minutes := fs.Int("minutes", 0, "minutes spent on the current topic")
	lastAt := fs.String("last", "", "RFC 3339 timestamp of the last suggestion shown")
	declined := fs.String("declined", "", "comma-separated goal ids the learner declined")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *learnerID == "" {
		return fmt.Errorf("--learner is required (e.g., rekindle switch --learner eva --goal g-fractions --minutes 25)")
	}

	if !isRunning() {
		return fmt.Errorf("daemon not running (run 'rekindle start' first)")
	}

	q := url.Values{"learner_id": {*learnerID}}
	if *goalID != "" {
		q.Set("current_goal_id", *goalID)
	}
	if *minutes > 0 {
		q.Set("conversation_minutes", strconv.Itoa(*minutes))
	}
	if *lastAt != "" {
		q.Set("last_suggestion_at", *lastAt)
	}
	if *declined != "" {
		q.Set("declined_goal_ids", *declined)
	}

	resp, err := http.Get(daemonAddr + "/v1/topic-switch?" + q.Encode())
	if err != nil {
		return fmt.Errorf("get suggestion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return daemonRequestError(resp, "get suggestion")
	}

	var suggestion struct {
		ShouldSuggest bool   `json:"should_suggest"`
		Trigger       string `json:"trigger"`
		Reason        string `json:"reason"`
		SuggestedGoal *struct {
			ID       string  `json:"id"`
			Subject  string  `json:"subject"`
			Progress float64 `json:"progress"`
		} `json:"suggested_goal"`
		CurrentGoal *struct {
			ID      string `json:"id"`
			Subject string `json:"subject"`
		} `json:"current_goal"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&suggestion); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	if !suggestion.ShouldSuggest {
		fmt.Println("No topic switch suggested right now.")
		return nil
	}

	fmt.Println("Topic Switch Suggested")
	fmt.Println("======================")
	fmt.Printf("Trigger: %s\n", suggestion.Trigger)
	if suggestion.CurrentGoal != nil {
		fmt.Printf("From:    %s (%s)\n", suggestion.CurrentGoal.Subject, suggestion.CurrentGoal.ID)
	}
	if suggestion.SuggestedGoal != nil {
		fmt.Printf("To:      %s (%s, %.0f%% progress)\n",
			suggestion.SuggestedGoal.Subject, suggestion.SuggestedGoal.ID, suggestion.SuggestedGoal.Progress)
	}
	fmt.Println()
	fmt.Println(suggestion.Reason)

	return nil
}

// daemonRequestError turns a non-success daemon response into an error
func daemonRequestError(resp *http.Response, op string) error {
	var errResp struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	if errResp.Error == "" {
		errResp.Error = resp.Status
	}
	return fmt.Errorf("%s failed: %s", op, errResp.Error)
}
