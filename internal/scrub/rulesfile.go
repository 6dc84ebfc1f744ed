package scrub

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/BurntSushi/toml"
)

// ErrInvalidRulesFile indicates a rules file could not be parsed or holds
// an invalid pattern.
var ErrInvalidRulesFile = errors.New("invalid scrub rules file")

// RulesFile holds site-specific rules loaded from TOML:
//
//	[[rules]]
//	id = "patient-id"
//	regex = '''PT-\d{6}'''
//	keywords = ["pt-"]
//
//	[allowlist]
//	regexes = ['''@example\.org''']
type RulesFile struct {
	Rules     []Rule
	AllowList []string
}

type tomlRules struct {
	Rules []struct {
		ID          string   `toml:"id"`
		Description string   `toml:"description"`
		Regex       string   `toml:"regex"`
		Keywords    []string `toml:"keywords"`
		Kind        string   `toml:"kind"`
	} `toml:"rules"`
	Allowlist struct {
		Regexes []string `toml:"regexes"`
	} `toml:"allowlist"`
}

// LoadRulesFile parses and validates the TOML rules file at path. Rules
// without a kind are treated as PII.
func LoadRulesFile(path string) (*RulesFile, error) {
	var raw tomlRules
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRulesFile, path, err)
	}

	out := &RulesFile{AllowList: raw.Allowlist.Regexes}
	for i, r := range raw.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("%w: %s: rule %d has no id", ErrInvalidRulesFile, path, i)
		}
		if _, err := regexp.Compile(r.Regex); err != nil || r.Regex == "" {
			return nil, fmt.Errorf("%w: %s: rule %s has an invalid regex", ErrInvalidRulesFile, path, r.ID)
		}
		kind := Kind(r.Kind)
		switch kind {
		case "":
			kind = KindPII
		case KindPII, KindCredential:
		default:
			return nil, fmt.Errorf("%w: %s: rule %s has unknown kind %q", ErrInvalidRulesFile, path, r.ID, r.Kind)
		}
		out.Rules = append(out.Rules, Rule{
			ID:          r.ID,
			Description: r.Description,
			Pattern:     r.Regex,
			Keywords:    r.Keywords,
			Kind:        kind,
		})
	}
	for _, p := range out.AllowList {
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("%w: %s: invalid allowlist pattern %q", ErrInvalidRulesFile, path, p)
		}
	}
	return out, nil
}

// MergeRules returns base with extra appended. An extra rule replaces the
// base rule with the same ID in place.
func MergeRules(base, extra []Rule) []Rule {
	out := make([]Rule, len(base))
	copy(out, base)
	index := make(map[string]int, len(out))
	for i, r := range out {
		index[r.ID] = i
	}
	for _, r := range extra {
		if i, ok := index[r.ID]; ok {
			out[i] = r
			continue
		}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	return out
}
