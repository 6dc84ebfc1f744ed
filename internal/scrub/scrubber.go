package scrub

import (
	"regexp"
	"sort"
	"strings"
)

// Scrubber redacts sensitive values from text.
type Scrubber interface {
	Scrub(text string) Result
	Enabled() bool
}

// Result is the outcome of one Scrub call.
type Result struct {
	Scrubbed string         `json:"scrubbed"`
	Findings []Finding      `json:"findings,omitempty"`
	ByRule   map[string]int `json:"by_rule,omitempty"`
}

// Finding locates a redacted value in the original text.
type Finding struct {
	RuleID string `json:"rule_id"`
	Kind   Kind   `json:"kind"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// HasFindings reports whether anything was redacted.
func (r Result) HasFindings() bool {
	return len(r.Findings) > 0
}

// RuleIDs returns the matched rule IDs, sorted.
func (r Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type scrubber struct {
	redaction string
	rules     []*compiledRule
	allow     []*regexp.Regexp
}

// New compiles cfg. A nil cfg uses DefaultConfig; a disabled cfg returns Nop.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return Nop{}, nil
	}

	rules, allow, err := compile(cfg)
	if err != nil {
		return nil, err
	}
	redaction := cfg.Redaction
	if redaction == "" {
		redaction = DefaultRedaction
	}
	return &scrubber{redaction: redaction, rules: rules, allow: allow}, nil
}

type span struct {
	start, end int
}

// Scrub redacts every rule match. Overlapping and adjacent matches collapse
// into one redaction.
func (s *scrubber) Scrub(text string) Result {
	result := Result{Scrubbed: text, ByRule: map[string]int{}}

	var spans []span
	for _, rule := range s.rules {
		if !rule.applies(text) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(text, -1) {
			if s.allowed(text[m[0]:m[1]]) {
				continue
			}
			result.Findings = append(result.Findings, Finding{
				RuleID: rule.ID,
				Kind:   rule.Kind,
				Start:  m[0],
				End:    m[1],
			})
			result.ByRule[rule.ID]++
			spans = append(spans, span{m[0], m[1]})
		}
	}
	if len(spans) == 0 {
		return result
	}

	sort.Slice(result.Findings, func(i, j int) bool {
		return result.Findings[i].Start < result.Findings[j].Start
	})

	var b strings.Builder
	last := 0
	for _, sp := range merge(spans) {
		b.WriteString(text[last:sp.start])
		b.WriteString(s.redaction)
		last = sp.end
	}
	b.WriteString(text[last:])
	result.Scrubbed = b.String()
	return result
}

func (s *scrubber) Enabled() bool { return true }

func (r *compiledRule) applies(text string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(text) {
			return true
		}
	}
	return false
}

func (s *scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// merge sorts spans and joins overlapping or adjacent ones.
func merge(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	merged := []span{spans[0]}
	for _, cur := range spans[1:] {
		last := &merged[len(merged)-1]
		if cur.start <= last.end {
			if cur.end > last.end {
				last.end = cur.end
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Nop leaves text unchanged.
type Nop struct{}

// Scrub returns text unchanged.
func (Nop) Scrub(text string) Result { return Result{Scrubbed: text} }

// Enabled returns false.
func (Nop) Enabled() bool { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = Nop{}
)
