package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/rekindle/internal/config"
)

// cmdInit initializes Rekindle for first-time use
func cmdInit() error {
	fmt.Println("Rekindle - First-Time Setup")
	fmt.Println("===========================")
	fmt.Println()

	// 1. Create directory structure
	fmt.Print("Creating ~/.rekindle directory structure... ")
	rekindleDir, err := config.EnsureRekindleDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Println("✓")

	// 2. Create default config if it doesn't exist
	configPath := filepath.Join(rekindleDir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Print("Creating default configuration... ")
		if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("✓")
	} else {
		fmt.Println("Configuration already exists ✓")
	}

	// 3. Summary
	fmt.Println()
	fmt.Println("Setup Complete!")
	fmt.Println("===============")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. rekindle start                 # Start the daemon")
	fmt.Println("  2. rekindle doctor                # Verify configuration")
	fmt.Println("  3. rekindle learner add eva.json  # Register a learner")
	fmt.Println()
	fmt.Println("For assistant integration:")
	fmt.Println("  - Configure MCP with the 'rekindle mcp' command")

	return nil
}

// cmdDoctor checks system requirements
func cmdDoctor() error {
	fmt.Println("Checking system requirements...")

	allGood := true

	// Check rekindle directory
	fmt.Print("Directory: ")
	rekindleDir, err := config.RekindleDir()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else if _, err := os.Stat(rekindleDir); os.IsNotExist(err) {
		fmt.Println("✗ not created (run 'rekindle init' to create)")
		allGood = false
	} else {
		fmt.Printf("✓ %s\n", rekindleDir)
	}

	// Check config
	fmt.Print("Config:    ")
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else {
		fmt.Println("✓ loaded")

		fmt.Print("Storage:   ")
		switch cfg.Storage.Backend {
		case "", "local":
			fmt.Printf("✓ local (sqlite: %s)\n", cfg.Storage.SQLitePath)
		case "postgres":
			if cfg.Storage.PostgresDSN == "" {
				fmt.Println("✗ postgres selected but no postgres_dsn in secrets.yaml")
				allGood = false
			} else {
				fmt.Println("✓ postgres (DSN configured)")
			}
		default:
			fmt.Printf("✗ unknown backend %q\n", cfg.Storage.Backend)
			allGood = false
		}

		fmt.Print("Queue:     ")
		if !cfg.Queue.Enabled {
			fmt.Println("- disabled")
		} else if cfg.Queue.URL == "" {
			fmt.Println("✗ enabled but no amqp_url in secrets.yaml")
			allGood = false
		} else {
			fmt.Println("✓ enabled (URL configured)")
		}
	}

	// Check daemon status
	fmt.Print("\nDaemon:    ")
	if isRunning() {
		fmt.Println("✓ running")
	} else {
		fmt.Println("✗ not running (run 'rekindle start')")
	}

	fmt.Println()
	if allGood {
		fmt.Println("All checks passed! ✓")
	} else {
		fmt.Println("Some checks failed. Please fix the issues above.")
	}

	return nil
}

// cmdConfig shows current configuration
func cmdConfig() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("Rekindle Configuration")

	fmt.Println("Daemon:")
	fmt.Printf("  bind: %s:%d\n", cfg.Daemon.Bind, cfg.Daemon.Port)
	fmt.Printf("  log_level: %s\n", cfg.Daemon.LogLevel)

	fmt.Println("\nEngagement:")
	mode := "development"
	if cfg.Engagement.Production {
		mode = "production"
	}
	fmt.Printf("  mode: %s\n", mode)
	fmt.Printf("  nudge_cooldown: %dh\n", cfg.Engagement.NudgeCooldownHours)
	fmt.Printf("  nudge_ttl: %dh\n", cfg.Engagement.NudgeTTLHours)
	fmt.Printf("  switch_cooldown: %dm\n", cfg.Engagement.SwitchCooldownMins)
	fmt.Printf("  switch_after: %dm\n", cfg.Engagement.SwitchAfterMinutes)

	fmt.Println("\nRisk Thresholds:")
	fmt.Printf("  inactive_escalation: %dd\n", cfg.Engagement.Risk.InactiveEscalationDays)
	fmt.Printf("  inactive_high: %dd\n", cfg.Engagement.Risk.InactiveHighDays)
	fmt.Printf("  low_completion_floor: %.2f\n", cfg.Engagement.Risk.LowCompletionFloor)
	fmt.Printf("  high_completion_ceiling: %.2f\n", cfg.Engagement.Risk.HighCompletionCeiling)

	fmt.Println("\nStorage:")
	backend := cfg.Storage.Backend
	if backend == "" {
		backend = "local"
	}
	fmt.Printf("  backend: %s\n", backend)
	if backend == "postgres" {
		dsnStatus := "✗"
		if cfg.Storage.PostgresDSN != "" {
			dsnStatus = "✓"
		}
		fmt.Printf("  postgres_dsn: %s (from secrets.yaml)\n", dsnStatus)
	} else {
		fmt.Printf("  sqlite_path: %s\n", cfg.Storage.SQLitePath)
	}

	fmt.Println("\nQueue:")
	fmt.Printf("  enabled: %t\n", cfg.Queue.Enabled)
	if cfg.Queue.Enabled {
		urlStatus := "✗"
		if cfg.Queue.URL != "" {
			urlStatus = "✓"
		}
		fmt.Printf("  amqp_url: %s (from secrets.yaml)\n", urlStatus)
	}

	rekindleDir, _ := config.RekindleDir()
	fmt.Printf("\nConfig path: %s/config.yaml\n", rekindleDir)

	return nil
}
