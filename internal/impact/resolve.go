package impact

import (
	"strings"

	"github.com/claude/wodpulse/internal/models"
	"github.com/claude/wodpulse/internal/rules"
)

const (
	// uncappedWorkShare is the fraction of an interval's work window that a
	// task without a pacing model is assumed to consume.
	uncappedWorkShare = 0.6
	// remainingBonusRate scales REMAINING-role work by the share of the
	// window left over after timed tasks.
	remainingBonusRate = 0.6
)

// Expand flattens a block into its ordered movement executions. A block
// with movements never expands to an empty sequence: scenarios or tasks
// that cannot be resolved fall back to the block's flat movement list.
func Expand(b models.Block, repo rules.Repository, level float64) []models.MovementExecution {
	switch blk := b.(type) {
	case models.StandardBlock:
		return expandStandard(blk)
	case models.RoundsBlock:
		return expandRounds(blk)
	case models.IntervalsBlock:
		return expandIntervals(blk, repo, level)
	default:
		return nil
	}
}

func expandStandard(b models.StandardBlock) []models.MovementExecution {
	return repeat(b.Movements, InferRepeats(b.Title, b.Notes))
}

func expandRounds(b models.RoundsBlock) []models.MovementExecution {
	rounds := roundCount(b.Rounds)
	if len(b.Scenarios) == 0 {
		return repeat(b.Movements, rounds)
	}

	seq := scenarioSequence(b.Scenarios, b.Pattern)
	var out []models.MovementExecution
	for r := 0; r < rounds; r++ {
		for _, s := range seq {
			execs := resolveScenario(s, b.Movements)
			if len(execs) == 0 {
				out = append(out, b.Movements...)
				continue
			}
			for _, re := range execs {
				out = append(out, re.exec)
			}
		}
	}
	return out
}

func expandIntervals(b models.IntervalsBlock, repo rules.Repository, level float64) []models.MovementExecution {
	rounds := roundCount(b.Rounds)
	var seq []*models.Scenario
	if len(b.Scenarios) == 0 {
		seq = []*models.Scenario{nil}
	} else {
		seq = scenarioSequence(b.Scenarios, b.Pattern)
	}

	var out []models.MovementExecution
	for r := 0; r < rounds; r++ {
		for _, s := range seq {
			work, rest := b.WorkSeconds.Float(), b.RestSeconds.Float()
			if s != nil {
				if s.WorkSeconds > 0 {
					work = s.WorkSeconds.Float()
				}
				if s.RestSeconds > 0 {
					rest = s.RestSeconds.Float()
				}
			}

			execs := resolveScenario(s, b.Movements)
			if len(execs) == 0 {
				out = append(out, b.Movements...)
			} else {
				out = append(out, allocateWindow(execs, work, repo, level)...)
			}
			if rest > 0 {
				out = append(out, models.NewRest(rest))
			}
		}
	}
	return out
}

// allocateWindow spends the work window on CAP and STANDARD tasks first,
// then scales REMAINING tasks by the share of the window left over.
func allocateWindow(execs []resolvedTask, work float64, repo rules.Repository, level float64) []models.MovementExecution {
	var elapsed float64
	for _, re := range execs {
		if re.role != models.RoleCap && re.role != models.RoleStandard {
			continue
		}
		if expected := rules.Find(repo, re.exec.Name).ExpectedTime(level); expected > 0 {
			elapsed += expected
		} else {
			elapsed += uncappedWorkShare * work
		}
	}

	bonus := 1.0
	if work > 0 {
		remaining := work - elapsed
		if remaining < 0 {
			remaining = 0
		}
		bonus = 1 + remainingBonusRate*(remaining/work)
	}

	out := make([]models.MovementExecution, 0, len(execs))
	for _, re := range execs {
		if re.role == models.RoleRemaining {
			out = append(out, re.exec.Scaled(bonus))
			continue
		}
		out = append(out, re.exec)
	}
	return out
}

type resolvedTask struct {
	role models.TaskRole
	exec models.MovementExecution
}

// resolveScenario maps each task to a block movement: first by reference
// to a movement id or name, then by explicit index, then by the task's
// position in the scenario. Unresolvable tasks are skipped; the caller
// falls back to the flat list when nothing resolves.
func resolveScenario(s *models.Scenario, movements []models.MovementExecution) []resolvedTask {
	if s == nil {
		return nil
	}

	var out []resolvedTask
	for pos, task := range s.Tasks {
		idx := findMovement(task, pos, movements)
		if idx < 0 {
			continue
		}
		out = append(out, resolvedTask{role: task.NormalizedRole(), exec: movements[idx]})
	}
	return out
}

func findMovement(task models.Task, pos int, movements []models.MovementExecution) int {
	if ref := strings.TrimSpace(task.MovementRef); ref != "" {
		for i, m := range movements {
			if m.ID != "" && m.ID == ref {
				return i
			}
		}
		for i, m := range movements {
			if strings.EqualFold(strings.TrimSpace(m.Name), ref) {
				return i
			}
		}
	}
	if task.Index != nil && *task.Index >= 0 && *task.Index < len(movements) {
		return *task.Index
	}
	if pos < len(movements) {
		return pos
	}
	return -1
}

// scenarioSequence orders scenarios by the pattern labels, or by declaration
// order without a pattern. Unknown pattern labels yield nil entries, which
// expand to the flat movement list.
func scenarioSequence(scenarios []models.Scenario, pattern []string) []*models.Scenario {
	if len(pattern) == 0 {
		seq := make([]*models.Scenario, len(scenarios))
		for i := range scenarios {
			seq[i] = &scenarios[i]
		}
		return seq
	}

	byLabel := make(map[string]*models.Scenario, len(scenarios))
	for i := range scenarios {
		label := strings.ToUpper(strings.TrimSpace(scenarios[i].Label))
		if _, dup := byLabel[label]; !dup {
			byLabel[label] = &scenarios[i]
		}
	}

	seq := make([]*models.Scenario, len(pattern))
	for i, label := range pattern {
		seq[i] = byLabel[strings.ToUpper(strings.TrimSpace(label))]
	}
	return seq
}

func roundCount(n models.Number) int {
	return clampRepeats(n.Int())
}

func repeat(movements []models.MovementExecution, n int) []models.MovementExecution {
	out := make([]models.MovementExecution, 0, len(movements)*n)
	for i := 0; i < n; i++ {
		out = append(out, movements...)
	}
	return out
}
