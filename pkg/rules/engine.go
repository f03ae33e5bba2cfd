package rules

import (
	"regexp"
	"sort"
	"sync"
)

// RedactionMarker replaces every span matched by a hard rule.
const RedactionMarker = "[REDACTED — blocked by filter]"

// Severity determines what a rule match does to the text.
type Severity string

const (
	// SeverityHard flags the content and redacts every matched span.
	SeverityHard Severity = "hard"
	// SeverityAdvisory flags the content for audit without modifying it.
	SeverityAdvisory Severity = "advisory"
)

// Rule is a single deterministic pattern check. Exempt, when set, is
// matched against each span the pattern found; exempt spans are ignored.
// This is how the external-fetch rule allows moltbook.com URLs without
// relying on lookahead, which Go's regexp does not support.
type Rule struct {
	ID       string
	Severity Severity
	Pattern  *regexp.Regexp
	Exempt   *regexp.Regexp
}

// Result is the outcome of evaluating every rule against one text.
type Result struct {
	HardMatches     []string
	AdvisoryMatches []string
	Redacted        string
}

// Clean reports whether no rule matched.
func (r Result) Clean() bool {
	return len(r.HardMatches) == 0 && len(r.AdvisoryMatches) == 0
}

// Engine applies an ordered rule list to text. Evaluation is
// deterministic: no randomness, no I/O, identical input yields
// identical output. The rule list can be swapped at runtime for
// hot reload; evaluation holds only a read lock.
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewEngine creates an engine with the given ordered rules.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Swap atomically replaces the rule list.
func (e *Engine) Swap(rules []Rule) {
	e.mu.Lock()
	e.rules = rules
	e.mu.Unlock()
}

// Rules returns a copy of the current rule list.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate runs every rule against text. Detection always reads the
// original text; redactions for hard matches accumulate into a single
// output buffer, so a redaction marker can never re-trigger another
// rule's pattern.
func (e *Engine) Evaluate(text string) Result {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	if text == "" {
		return Result{Redacted: text}
	}

	var hard, advisory []string
	var spans [][]int

	for _, rule := range rules {
		matched := matchSpans(rule, text)
		if len(matched) == 0 {
			continue
		}
		switch rule.Severity {
		case SeverityHard:
			hard = append(hard, rule.ID)
			spans = append(spans, matched...)
		default:
			advisory = append(advisory, rule.ID)
		}
	}

	return Result{
		HardMatches:     hard,
		AdvisoryMatches: advisory,
		Redacted:        redactSpans(text, spans),
	}
}

// RedactHard applies only the hard-rule redactions to the given buffer.
// Used when an upstream layer (the classifier) has already rewritten the
// text and rule redactions must land on top of that output.
func (e *Engine) RedactHard(text string) string {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	var spans [][]int
	for _, rule := range rules {
		if rule.Severity != SeverityHard {
			continue
		}
		spans = append(spans, matchSpans(rule, text)...)
	}
	return redactSpans(text, spans)
}

// matchSpans returns the non-exempt spans the rule's pattern found.
func matchSpans(rule Rule, text string) [][]int {
	locs := rule.Pattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	if rule.Exempt == nil {
		return locs
	}
	kept := locs[:0]
	for _, loc := range locs {
		if !rule.Exempt.MatchString(text[loc[0]:loc[1]]) {
			kept = append(kept, loc)
		}
	}
	return kept
}

// redactSpans rebuilds text with every span replaced by the marker.
// Overlapping spans are merged first so the output contains one marker
// per contiguous redacted region.
func redactSpans(text string, spans [][]int) string {
	if len(spans) == 0 {
		return text
	}

	merged := make([][]int, 0, len(spans))
	sorted := make([][]int, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i][0] < sorted[j][0] })
	for _, s := range sorted {
		if n := len(merged); n > 0 && s[0] <= merged[n-1][1] {
			if s[1] > merged[n-1][1] {
				merged[n-1][1] = s[1]
			}
			continue
		}
		merged = append(merged, []int{s[0], s[1]})
	}

	var out []byte
	last := 0
	for _, s := range merged {
		out = append(out, text[last:s[0]]...)
		out = append(out, RedactionMarker...)
		last = s[1]
	}
	out = append(out, text[last:]...)
	return string(out)
}
