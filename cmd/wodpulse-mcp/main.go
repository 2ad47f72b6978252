package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/wodpulse/internal/capacity"
	"github.com/claude/wodpulse/internal/engine"
	wodmcp "github.com/claude/wodpulse/internal/mcp"
	"github.com/claude/wodpulse/internal/rules"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "wodpulse server URL for saved snapshots (e.g. https://wodpulse.tail1234.ts.net)")
	rulesPath := flag.String("rules", "", "movement rule table JSON (default: embedded)")
	level := flag.Float64("level", 1, "default athlete level")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("wodpulse-mcp", Version)
		return
	}

	// stdout carries the MCP protocol, so logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	repo := rules.Default()
	if *rulesPath != "" {
		var err error
		repo, err = rules.LoadFile(*rulesPath)
		if err != nil {
			log.Error("failed to load movement rules", "path", *rulesPath, "error", err)
			os.Exit(1)
		}
	}
	eng := engine.New(repo, capacity.DefaultModel(), *level)

	var source wodmcp.DataSource
	if *serverURL != "" {
		source = wodmcp.NewHTTPClient(*serverURL)
		log.Info("snapshot tools enabled", "server", *serverURL)
	}

	if err := mcpserver.ServeStdio(wodmcp.New(eng, source, Version, log)); err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
