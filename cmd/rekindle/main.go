package main

import (
	"fmt"
	"os"
	"strings"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	daemonAddr = "http://127.0.0.1:7433"
	pidFile    = "rekindled.pid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit()
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "doctor":
		err = cmdDoctor()
	case "config":
		err = cmdConfig()
	case "risk":
		err = cmdRisk(os.Args[2:])
	case "nudge":
		err = cmdNudge(os.Args[2:])
	case "interact":
		err = cmdInteract(os.Args[2:])
	case "switch":
		err = cmdSwitch(os.Args[2:])
	case "metrics":
		err = cmdMetrics(os.Args[2:])
	case "learner":
		err = cmdLearner(os.Args[2:])
	case "mcp":
		err = cmdMCP()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("rekindle %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Rekindle - Engagement Decisions for a Tutoring Companion

Usage:
  rekindle <command> [arguments]

Setup Commands:
  init            Initialize Rekindle (first-time setup)
  doctor          Check daemon and storage health
  config          Show current configuration

Daemon Commands:
  start           Start the Rekindle daemon
  stop            Stop the Rekindle daemon
  status          Show daemon status
  logs            View daemon logs

Engagement Commands:
  risk            Classify a learner's disengagement risk
  nudge           Generate a re-engagement nudge
  interact        Report a nudge outcome (shown/accepted/dismissed/expired)
  switch          Ask for a topic-switch suggestion

Metrics Commands:
  metrics         Show session nudge metrics
  metrics history Show persisted interaction history

Learner Commands:
  learner add     Create or replace a learner record from a JSON file
  learner show    Show a learner record
  learner list    List learner ids
  learner remove  Delete a learner record

Integration Commands:
  mcp             Start MCP server (for assistant integration)

Other:
  help            Show this help message
  version         Show version information

Examples:
  rekindle start                          # Start daemon
  rekindle learner add eva.json           # Register a learner
  rekindle risk --learner eva             # Classify risk
  rekindle nudge --learner eva            # Generate a nudge
  rekindle interact --learner eva --nudge <id> --action shown
  rekindle metrics --learner eva          # Session metrics`)
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}
