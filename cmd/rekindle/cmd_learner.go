package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// cmdLearner manages learner records
func cmdLearner(args []string) error {
	if len(args) < 1 {
		fmt.Println(`Learner management commands:

  rekindle learner add <file.json>   Create or replace a learner from a JSON file
  rekindle learner show <id>         Show a learner record
  rekindle learner list              List learner ids
  rekindle learner remove <id>       Delete a learner record`)
		return nil
	}

	if !isRunning() {
		return fmt.Errorf("daemon not running (run 'rekindle start' first)")
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("file path required (e.g., rekindle learner add eva.json)")
		}
		return cmdLearnerAdd(args[1])
	case "show":
		if len(args) < 2 {
			return fmt.Errorf("learner id required (e.g., rekindle learner show eva)")
		}
		return cmdLearnerShow(args[1])
	case "list":
		return cmdLearnerList()
	case "remove":
		if len(args) < 2 {
			return fmt.Errorf("learner id required (e.g., rekindle learner remove eva)")
		}
		return cmdLearnerRemove(args[1])
	default:
		return fmt.Errorf("unknown learner command: %s (valid: add, show, list, remove)", args[0])
	}
}

func cmdLearnerAdd(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	// Catch malformed records client-side before the daemon sees them.
	var record struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if record.ID == "" {
		return fmt.Errorf("%s has no learner id", path)
	}

	resp, err := http.Post(daemonAddr+"/v1/learners", "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("store learner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return daemonRequestError(resp, "store learner")
	}

	fmt.Printf("✓ Stored learner %s\n", record.ID)

	return nil
}

func cmdLearnerShow(id string) error {
	resp, err := http.Get(daemonAddr + "/v1/learners/" + id)
	if err != nil {
		return fmt.Errorf("get learner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return daemonRequestError(resp, "get learner")
	}

	var l struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		Age          int    `json:"age"`
		Grade        int    `json:"grade"`
		LastActiveAt string `json:"last_active_at"`
		LoginStreak  struct {
			Current int `json:"current"`
			Longest int `json:"longest"`
		} `json:"login_streak"`
		PracticeStreak struct {
			Current int `json:"current"`
			Longest int `json:"longest"`
		} `json:"practice_streak"`
		Goals []struct {
			ID       string  `json:"id"`
			Subject  string  `json:"subject"`
			Progress float64 `json:"progress"`
		} `json:"goals"`
		QuestionsAsked    int `json:"questions_asked"`
		ConversationsDone int `json:"conversations_done"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&l); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	fmt.Printf("Learner: %s\n", l.ID)
	fmt.Println("================")
	fmt.Printf("Name:          %s\n", l.Name)
	fmt.Printf("Age:           %d (grade %d)\n", l.Age, l.Grade)
	if t, err := time.Parse(time.RFC3339, l.LastActiveAt); err == nil {
		fmt.Printf("Last active:   %s\n", t.Format("2006-01-02 15:04"))
	} else {
		fmt.Printf("Last active:   %s\n", l.LastActiveAt)
	}
	fmt.Printf("Login streak:  %d (longest %d)\n", l.LoginStreak.Current, l.LoginStreak.Longest)
	fmt.Printf("Practice:      %d (longest %d)\n", l.PracticeStreak.Current, l.PracticeStreak.Longest)
	fmt.Printf("Sessions:      %d asked, %d completed\n", l.QuestionsAsked, l.ConversationsDone)

	if len(l.Goals) > 0 {
		fmt.Println("\nGoals")
		fmt.Println("-----")
		for _, g := range l.Goals {
			bar := renderProgressBar(g.Progress/100, 20)
			fmt.Printf("%-16s %s %.0f%% (%s)\n", g.Subject, bar, g.Progress, g.ID)
		}
	}

	return nil
}

func cmdLearnerList() error {
	resp, err := http.Get(daemonAddr + "/v1/learners")
	if err != nil {
		return fmt.Errorf("list learners: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return daemonRequestError(resp, "list learners")
	}

	var result struct {
		LearnerIDs []string `json:"learner_ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	if len(result.LearnerIDs) == 0 {
		fmt.Println("No learners registered. Add one with 'rekindle learner add <file.json>'.")
		return nil
	}

	fmt.Println("Registered learners:")
	for _, id := range result.LearnerIDs {
		fmt.Printf("  %s\n", id)
	}

	return nil
}

func cmdLearnerRemove(id string) error {
	req, err := http.NewRequest(http.MethodDelete, daemonAddr+"/v1/learners/"+id, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete learner: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return daemonRequestError(resp, "delete learner")
	}

	fmt.Printf("✓ Removed learner %s\n", id)

	return nil
}
