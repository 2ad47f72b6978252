package impact

import (
	"math"
	"regexp"
	"strconv"
)

// AMRAPMinutesPerRound converts an AMRAP time window into an approximate
// number of completed rounds. It is a tuning constant, not a measured model.
const AMRAPMinutesPerRound = 2.0

// MaxRepeats bounds block repetition so a typo like "EMOM 6000" cannot
// expand into millions of executions.
const MaxRepeats = 120

// Each marker has a leading form ("EMOM 10") and a trailing form
// ("10 min EMOM"). The leading form wins anywhere in the text, so a stray
// number before the marker ("Part 2 EMOM 12") is not taken as the count.
var (
	emomRe          = regexp.MustCompile(`(?i)\bemom\s*[-:x]?\s*(\d+)`)
	emomTrailingRe  = regexp.MustCompile(`(?i)(\d+)\s*(?:'|min(?:ute)?s?)?\s*[-:]?\s*emom\b`)
	amrapRe         = regexp.MustCompile(`(?i)\bamrap\s*[-:]?\s*(\d+)`)
	amrapTrailingRe = regexp.MustCompile(`(?i)(\d+)\s*(?:'|min(?:ute)?s?)?\s*[-:]?\s*amrap\b`)
)

// InferRepeats derives how many times a standard block's movement list runs
// from its title and notes. "EMOM 10" repeats 10 times; "AMRAP 12" repeats
// round(12/2) times. Text without either marker repeats once. The title
// is checked before the notes.
func InferRepeats(title, notes string) int {
	for _, text := range []string{title, notes} {
		if n, ok := markerInt(emomRe, emomTrailingRe, text); ok {
			return clampRepeats(n)
		}
		if n, ok := markerInt(amrapRe, amrapTrailingRe, text); ok {
			r := int(math.Round(float64(n) / AMRAPMinutesPerRound))
			return clampRepeats(r)
		}
	}
	return 1
}

func clampRepeats(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxRepeats {
		return MaxRepeats
	}
	return n
}

// markerInt returns the positive count of the leading form, falling back
// to the trailing form.
func markerInt(leading, trailing *regexp.Regexp, text string) (int, bool) {
	if n, ok := firstInt(leading, text); ok && n > 0 {
		return n, true
	}
	if n, ok := firstInt(trailing, text); ok && n > 0 {
		return n, true
	}
	return 0, false
}

func firstInt(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		n, err := strconv.Atoi(g)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
