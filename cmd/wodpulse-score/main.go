package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/claude/wodpulse/internal/batch"
	"github.com/claude/wodpulse/internal/capacity"
	"github.com/claude/wodpulse/internal/engine"
	"github.com/claude/wodpulse/internal/rules"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	root := flag.String("path", "", "directory containing workout JSON files")
	pattern := flag.String("glob", batch.DefaultPattern, "doublestar pattern relative to -path")
	level := flag.Float64("level", 0, "athlete level (0 uses each workout's own level)")
	serverURL := flag.String("server", "", "wodpulse server URL; scored workouts are submitted when set")
	apiKey := flag.String("api-key", os.Getenv("WODPULSE_AUTH_API_KEY"), "API key for -server")
	rulesPath := flag.String("rules", "", "movement rule table JSON (default: embedded)")
	stateDir := flag.String("state", "", "state directory (default: ~/.wodpulse-score)")
	dryRun := flag.Bool("dry-run", false, "score but don't submit or record state")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("wodpulse-score", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *root == "" {
		fmt.Fprintf(os.Stderr, "Usage: wodpulse-score -path <dir> [-glob pattern] [-level N] [-server URL -api-key KEY] [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *serverURL != "" && *apiKey == "" && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -api-key is required with -server\n")
		os.Exit(1)
	}

	repo := rules.Default()
	if *rulesPath != "" {
		var err error
		repo, err = rules.LoadFile(*rulesPath)
		if err != nil {
			log.Error("failed to load movement rules", "path", *rulesPath, "error", err)
			os.Exit(1)
		}
	}
	eng := engine.New(repo, capacity.DefaultModel(), 1)

	// Open state database
	dir := *stateDir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Error("failed to get home directory", "error", err)
			os.Exit(1)
		}
		dir = filepath.Join(homeDir, ".wodpulse-score")
	}
	state, err := batch.OpenStateDB(dir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	// Create client (nil when scoring locally)
	var client *batch.Client
	if *serverURL != "" && !*dryRun {
		client = batch.NewClient(*serverURL, *apiKey)
	}
	if *dryRun {
		log.Info("DRY RUN mode: workouts are scored but not submitted or recorded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := batch.New(eng, client, state, *root, *pattern, *level, *dryRun, log)
	stats, err := runner.Run(ctx)
	printStats(stats)
	if err != nil {
		log.Error("scoring failed", "error", err)
		os.Exit(1)
	}
	log.Info("scoring complete")
}

func printStats(stats *batch.Stats) {
	fmt.Println()
	fmt.Println("=== Scoring Summary ===")
	fmt.Printf("  Files total:      %d\n", stats.FilesTotal)
	fmt.Printf("  Files scored:     %d\n", stats.FilesScored)
	fmt.Printf("  Files skipped:    %d (unchanged)\n", stats.FilesSkipped)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Printf("  Files submitted:  %d\n", stats.FilesSubmitted)
	if stats.FilesScored > 0 {
		fmt.Println()
		fmt.Printf("  Mean fatigue:     %.1f\n", stats.FatigueSum/float64(stats.FilesScored))
		fmt.Printf("  Total XP:         %d\n", stats.XPSum)
	}
	fmt.Println()
}
