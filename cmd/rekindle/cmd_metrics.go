package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
)

// cmdMetrics shows nudge interaction metrics
func cmdMetrics(args []string) error {
	if len(args) > 0 && args[0] == "history" {
		return cmdMetricsHistory(args[1:])
	}
	return cmdMetricsSummary(args)
}

func cmdMetricsSummary(args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ContinueOnError)
	learnerID := fs.String("learner", "", "learner id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *learnerID == "" {
		return fmt.Errorf("--learner is required (e.g., rekindle metrics --learner eva)")
	}

	if !isRunning() {
		return fmt.Errorf("daemon not running (run 'rekindle start' first)")
	}

	q := url.Values{"learner_id": {*learnerID}}
	resp, err := http.Get(daemonAddr + "/v1/metrics?" + q.Encode())
	if err != nil {
		return fmt.Errorf("get metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return daemonRequestError(resp, "get metrics")
	}

	var result struct {
		LearnerID string `json:"learner_id"`
		Summary   struct {
			Shown          int     `json:"shown"`
			Accepted       int     `json:"accepted"`
			Dismissed      int     `json:"dismissed"`
			Expired        int     `json:"expired"`
			AcceptanceRate float64 `json:"acceptance_rate"`
			DismissalRate  float64 `json:"dismissal_rate"`
			ByTrigger      map[string]struct {
				Shown    int `json:"shown"`
				Accepted int `json:"accepted"`
			} `json:"by_trigger"`
		} `json:"summary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	s := result.Summary
	fmt.Printf("Nudge Metrics for %s\n", result.LearnerID)
	fmt.Println("=====================")
	fmt.Printf("Shown:      %d\n", s.Shown)
	fmt.Printf("Accepted:   %d\n", s.Accepted)
	fmt.Printf("Dismissed:  %d\n", s.Dismissed)
	fmt.Printf("Expired:    %d\n", s.Expired)
	fmt.Println()
	fmt.Printf("Acceptance: %s %.1f%%\n", renderProgressBar(s.AcceptanceRate, 20), s.AcceptanceRate*100)
	fmt.Printf("Dismissal:  %s %.1f%%\n", renderProgressBar(s.DismissalRate, 20), s.DismissalRate*100)

	if len(s.ByTrigger) > 0 {
		fmt.Println("\nBy Trigger")
		fmt.Println("----------")
		for trigger, stats := range s.ByTrigger {
			fmt.Printf("%-24s shown=%d accepted=%d\n", trigger, stats.Shown, stats.Accepted)
		}
	}

	return nil
}

func cmdMetricsHistory(args []string) error {
	fs := flag.NewFlagSet("metrics history", flag.ContinueOnError)
	learnerID := fs.String("learner", "", "learner id (required)")
	since := fs.String("since", "", "only show interactions after this RFC 3339 timestamp")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *learnerID == "" {
		return fmt.Errorf("--learner is required (e.g., rekindle metrics history --learner eva)")
	}

	if !isRunning() {
		return fmt.Errorf("daemon not running (run 'rekindle start' first)")
	}

	q := url.Values{"learner_id": {*learnerID}}
	if *since != "" {
		q.Set("since", *since)
	}

	resp, err := http.Get(daemonAddr + "/v1/interactions?" + q.Encode())
	if err != nil {
		return fmt.Errorf("get history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return daemonRequestError(resp, "get history")
	}

	var result struct {
		LearnerID    string `json:"learner_id"`
		Interactions []struct {
			NudgeID   string `json:"nudge_id"`
			Trigger   string `json:"trigger"`
			Action    string `json:"action"`
			Priority  string `json:"priority"`
			Timestamp string `json:"timestamp"`
		} `json:"interactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	fmt.Printf("Interaction History for %s\n", result.LearnerID)
	fmt.Println("==========================")

	if len(result.Interactions) == 0 {
		fmt.Println("No interactions recorded yet.")
		return nil
	}

	for _, rec := range result.Interactions {
		fmt.Printf("%s  %-10s %-24s %-7s %s\n",
			rec.Timestamp, rec.Action, rec.Trigger, rec.Priority, rec.NudgeID)
	}

	return nil
}
