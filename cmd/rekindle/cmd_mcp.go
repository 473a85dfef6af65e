package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/felixgeelhaar/rekindle/internal/advisor"
	"github.com/felixgeelhaar/rekindle/internal/config"
	"github.com/felixgeelhaar/rekindle/internal/learner"
	mcpserver "github.com/felixgeelhaar/rekindle/internal/mcp"
	"github.com/felixgeelhaar/rekindle/internal/metrics"
	"github.com/felixgeelhaar/rekindle/internal/nudge"
	"github.com/felixgeelhaar/rekindle/internal/risk"
	"github.com/felixgeelhaar/rekindle/internal/storage/sqlite"
)

// cmdMCP starts the MCP server for assistant integration. The MCP
// process runs the engine in-process against the local backend so it
// works without the daemon.
func cmdMCP() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rekindleDir, err := config.EnsureRekindleDir()
	if err != nil {
		return fmt.Errorf("get rekindle dir: %w", err)
	}

	store, err := learner.NewStore(filepath.Join(rekindleDir, "learners"))
	if err != nil {
		return fmt.Errorf("create learner store: %w", err)
	}

	db, err := sqlite.Open(filepath.Join(rekindleDir, cfg.Storage.SQLitePath))
	if err != nil {
		return fmt.Errorf("open interaction db: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate interaction db: %w", err)
	}

	thresholds := risk.Thresholds{
		InactiveEscalationDays: cfg.Engagement.Risk.InactiveEscalationDays,
		InactiveHighDays:       cfg.Engagement.Risk.InactiveHighDays,
		LowCompletionFloor:     cfg.Engagement.Risk.LowCompletionFloor,
		HighCompletionCeiling:  cfg.Engagement.Risk.HighCompletionCeiling,
	}

	locks := learner.NewKeyMutex()
	nudges := nudge.NewService(store, locks, nudge.Config{
		Cooldown:   time.Duration(cfg.Engagement.NudgeCooldownHours) * time.Hour,
		TTL:        time.Duration(cfg.Engagement.NudgeTTLHours) * time.Hour,
		Production: cfg.Engagement.Production,
		Thresholds: thresholds,
	})
	recorder := metrics.NewRecorder(store, locks, sqlite.NewInteractionStore(db))

	advisorCfg := advisor.DefaultConfig()
	advisorCfg.Cooldown = time.Duration(cfg.Engagement.SwitchCooldownMins) * time.Minute
	advisorCfg.TimeThresholdMinutes = cfg.Engagement.SwitchAfterMinutes

	mcpSrv := mcpserver.NewServer(mcpserver.Config{
		Provider: store,
		Assessor: risk.NewAssessorWithThresholds(thresholds),
		Nudges:   nudges,
		Advisor:  advisor.New(advisorCfg),
		Recorder: recorder,
		Locks:    locks,
	})

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Serve on stdio
	return mcpSrv.ServeStdio(ctx)
}
