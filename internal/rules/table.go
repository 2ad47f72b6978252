package rules

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

//go:embed movements.json
var defaultTableJSON []byte

// Repository looks up movement rules by name.
type Repository interface {
	Lookup(name string) (MovementRule, bool)
}

// Table is an immutable, case-insensitive movement rule table.
type Table struct {
	rules map[string]MovementRule
	names []string
}

var _ Repository = (*Table)(nil)

// Lookup finds a rule by exact name, ignoring case and surrounding spaces.
func (t *Table) Lookup(name string) (MovementRule, bool) {
	if t == nil {
		return MovementRule{}, false
	}
	r, ok := t.rules[key(name)]
	return r, ok
}

// Names returns the canonical movement names, sorted.
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Len returns the number of rules in the table.
func (t *Table) Len() int {
	return len(t.rules)
}

// Find returns the rule for name or the default rule when the movement is unknown.
func Find(repo Repository, name string) MovementRule {
	if repo != nil {
		if r, ok := repo.Lookup(name); ok {
			return r
		}
	}
	return DefaultRule()
}

// SupportsTime reports whether a movement takes a target time.
func SupportsTime(repo Repository, name string) bool {
	if repo == nil {
		return false
	}
	r, ok := repo.Lookup(name)
	return ok && r.SupportsTime
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the embedded rule table. The embedded data is validated
// by tests, so a parse failure here is a build defect.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(defaultTableJSON)
		if err != nil {
			panic(fmt.Sprintf("embedded movement table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// LoadFile reads and validates a rule table from a JSON file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule table: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing rule table %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes a movement-name-keyed JSON table and validates every
// record against the rule schema.
func Parse(data []byte) (*Table, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding rule table: %w", err)
	}

	v, err := newValidator()
	if err != nil {
		return nil, err
	}

	t := &Table{rules: make(map[string]MovementRule, len(raw))}
	for name, rec := range raw {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("rule with empty movement name")
		}

		var generic map[string]any
		if err := json.Unmarshal(rec, &generic); err != nil {
			return nil, fmt.Errorf("decoding rule %q: %w", name, err)
		}
		if err := v.validate(generic); err != nil {
			return nil, fmt.Errorf("rule %q: %w", name, err)
		}

		var r MovementRule
		if err := json.Unmarshal(rec, &r); err != nil {
			return nil, fmt.Errorf("decoding rule %q: %w", name, err)
		}
		if r.Name == "" {
			r.Name = name
		}

		k := key(name)
		if _, dup := t.rules[k]; dup {
			return nil, fmt.Errorf("duplicate rule for movement %q", name)
		}
		t.rules[k] = r
		t.names = append(t.names, r.Name)
	}
	sort.Strings(t.names)
	return t, nil
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
