// Package batch scores a directory of workout JSON files with the engine and
// optionally submits them to a wodpulse server.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/claude/wodpulse/internal/engine"
	"github.com/claude/wodpulse/internal/models"
)

// DefaultPattern matches every JSON file below the root.
const DefaultPattern = "**/*.json"

// Stats tracks scoring progress.
type Stats struct {
	FilesTotal     int
	FilesScored    int
	FilesSkipped   int
	FilesErrored   int
	FilesSubmitted int

	// FatigueSum is the sum of fatigue_total over scored files.
	FatigueSum float64
	XPSum      int
}

// Runner discovers workout files and scores each one.
type Runner struct {
	eng     *engine.Engine
	client  *Client
	state   *StateDB
	root    string
	pattern string
	level   float64
	dryRun  bool
	log     *slog.Logger
	stats   Stats
}

// New creates a Runner. A nil client scores locally only; a nil state
// rescans every file.
func New(eng *engine.Engine, client *Client, state *StateDB, root, pattern string, level float64, dryRun bool, log *slog.Logger) *Runner {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &Runner{
		eng:     eng,
		client:  client,
		state:   state,
		root:    root,
		pattern: pattern,
		level:   level,
		dryRun:  dryRun,
		log:     log,
	}
}

// Run scores every matching file. Per-file failures are counted and logged;
// only discovery failures and cancellation abort the run.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	files, err := r.discover()
	if err != nil {
		return &r.stats, err
	}
	r.stats.FilesTotal = len(files)
	r.log.Info("discovered workout files", "root", r.root, "pattern", r.pattern, "count", len(files))

	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return &r.stats, err
		}
		if err := r.processFile(ctx, rel); err != nil {
			r.stats.FilesErrored++
			r.log.Warn("scoring failed", "file", rel, "error", err)
		}
	}
	return &r.stats, nil
}

// discover returns the slash-separated paths below root that match the pattern.
func (r *Runner) discover() ([]string, error) {
	if !doublestar.ValidatePattern(r.pattern) {
		return nil, fmt.Errorf("invalid pattern %q", r.pattern)
	}
	files, err := doublestar.Glob(os.DirFS(r.root), r.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", r.root, err)
	}
	return files, nil
}

// processFile scores one file. A file counts as scored only once every
// step has succeeded, so scored, skipped and errored never overlap.
func (r *Runner) processFile(ctx context.Context, rel string) error {
	path := filepath.Join(r.root, filepath.FromSlash(rel))
	data, hash, err := ReadHashed(path)
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}
	size := int64(len(data))

	if r.state != nil {
		done, err := r.state.IsScored(rel, size, hash)
		if err != nil {
			return err
		}
		if done {
			r.stats.FilesSkipped++
			return nil
		}
	}

	var w models.Workout
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding workout: %w", err)
	}

	ev := r.eng.Evaluate(w, r.level)
	r.log.Info("scored",
		"file", rel,
		"title", ev.Title,
		"fatigue", ev.Payload.Difficulty,
		"xp", ev.XP.XP,
		"hyrox", ev.Hyrox.TransferScore,
		"warnings", len(ev.Impact.Warnings),
	)

	if r.dryRun {
		r.count(ev)
		return nil
	}

	scored := ScoredFile{
		Path:         rel,
		Size:         size,
		Hash:         hash,
		FatigueTotal: ev.Impact.FatigueTotal,
		XP:           ev.XP.XP,
	}
	if r.client != nil {
		id, err := r.client.Submit(ctx, w, r.level)
		if err != nil {
			return err
		}
		r.stats.FilesSubmitted++
		scored.SnapshotID = id.String()
	}
	if r.state != nil {
		if err := r.state.MarkScored(scored); err != nil {
			return err
		}
	}
	r.count(ev)
	return nil
}

func (r *Runner) count(ev engine.Evaluation) {
	r.stats.FilesScored++
	r.stats.FatigueSum += ev.Impact.FatigueTotal
	r.stats.XPSum += ev.XP.XP
}
