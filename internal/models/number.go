package models

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// numericPrefixRe matches the leading number of values like "500m", "1.5 km" or "-3".
var numericPrefixRe = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)`)

// Number is a float64 that decodes from a JSON number or a numeric string.
// Authoring layers and older persisted records store quantities as "500",
// "500m" or "1,5"; anything unparseable decodes as 0 instead of failing the
// whole workout.
type Number float64

// Float returns the value as float64.
func (n Number) Float() float64 {
	return float64(n)
}

// Int returns the value truncated to an int.
func (n Number) Int() int {
	return int(n)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(ParseNumber(s))
		return nil
	}

	switch data[0] {
	case 't':
		*n = 1
		return nil
	case 'f':
		*n = 0
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// ParseNumber extracts the leading number from s, accepting a decimal comma.
// Returns 0 when s holds no number.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	m := numericPrefixRe.FindString(s)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}
