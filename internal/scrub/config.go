package scrub

import (
	"fmt"
	"regexp"
)

// DefaultRedaction replaces each redacted span.
const DefaultRedaction = "[REDACTED]"

// Config configures a Scrubber.
type Config struct {
	Enabled bool
	Rules   []Rule
	// Redaction replaces matched spans (default "[REDACTED]").
	Redaction string
	// AllowList holds patterns whose matches are left in place.
	AllowList []string
}

// Rule detects one kind of sensitive value.
type Rule struct {
	ID          string
	Description string
	Pattern     string
	// Keywords, when set, must appear somewhere in the text (case
	// insensitive) for the rule to run.
	Keywords []string
	Kind     Kind
}

// Kind groups rules.
type Kind string

const (
	KindPII        Kind = "pii"
	KindCredential Kind = "credential"
)

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

// DefaultConfig returns an enabled config with DefaultRules.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Rules:     DefaultRules(),
		Redaction: DefaultRedaction,
	}
}

func compile(cfg *Config) ([]*compiledRule, []*regexp.Regexp, error) {
	rules := make([]*compiledRule, 0, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		if rule.ID == "" {
			return nil, nil, fmt.Errorf("rule %d: ID is required", i)
		}
		if rule.Pattern == "" {
			return nil, nil, fmt.Errorf("rule %s: pattern is required", rule.ID)
		}
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}

		c := &compiledRule{Rule: rule, pattern: pattern}
		for _, kw := range rule.Keywords {
			c.keywords = append(c.keywords, regexp.MustCompile("(?i)"+regexp.QuoteMeta(kw)))
		}
		rules = append(rules, c)
	}

	allow := make([]*regexp.Regexp, 0, len(cfg.AllowList))
	for i, p := range cfg.AllowList {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("allow_list %d: invalid pattern: %w", i, err)
		}
		allow = append(allow, re)
	}
	return rules, allow, nil
}
