package capacity

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/claude/wodpulse/internal/models"
)

// DisplayItem is the normalized view of one capacity.
type DisplayItem struct {
	Key      string  `json:"key"`
	Label    string  `json:"label"`
	Raw      float64 `json:"raw"`
	Percent  int     `json:"percent"`
	Expected float64 `json:"expected"`
	Known    bool    `json:"is_known"`
}

// Record is one raw capacity entry as returned by profile APIs. Different
// endpoints name the same fields differently.
type Record map[string]any

var (
	keyFields   = []string{"capacity", "capacity_code", "name", "code"}
	valueFields = []string{"value", "score"}
)

// Key returns the first non-empty key field, normalized.
func (r Record) Key() string {
	for _, f := range keyFields {
		if s, ok := r[f].(string); ok && strings.TrimSpace(s) != "" {
			return NormalizeKey(s)
		}
	}
	return ""
}

// Value returns the first numeric value field. Strings are parsed leniently.
func (r Record) Value() (float64, bool) {
	for _, f := range valueFields {
		v, ok := r[f]
		if !ok || v == nil {
			continue
		}
		if n, ok := toFloat(v); ok {
			return n, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, false
		}
		return models.ParseNumber(n), true
	default:
		return 0, false
	}
}

// Label turns a capacity key into a display label, e.g. "aerobic_power"
// becomes "Aerobic Power". Metcon keeps its conventional spelling.
func Label(key string) string {
	if key == Metcon {
		return "MetCon"
	}
	// Casers are stateful, so each call gets its own.
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}

// MapRecords normalizes raw capacity records into display items. Records
// without a key or value are skipped; duplicate keys keep the highest raw
// score. Known capacities come first in model order, then the rest by key.
func (m Model) MapRecords(records []Record, level float64, mode Mode) []DisplayItem {
	best := make(map[string]float64)
	for _, r := range records {
		key := r.Key()
		if key == "" {
			continue
		}
		v, ok := r.Value()
		if !ok {
			continue
		}
		if cur, seen := best[key]; !seen || v > cur {
			best[key] = v
		}
	}

	items := make([]DisplayItem, 0, len(best))
	for key, raw := range best {
		res := m.Normalize(raw, key, level, mode)
		items = append(items, DisplayItem{
			Key:      key,
			Label:    Label(key),
			Raw:      raw,
			Percent:  res.Percent,
			Expected: res.Expected,
			Known:    res.Known,
		})
	}

	rank := make(map[string]int, len(m.Order))
	for i, k := range m.Order {
		rank[k] = i
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Known != b.Known {
			return a.Known
		}
		ra, okA := rank[a.Key]
		rb, okB := rank[b.Key]
		if okA && okB {
			return ra < rb
		}
		if okA != okB {
			return okA
		}
		return a.Key < b.Key
	})
	return items
}
