package schema

import "strings"

// Vocabulary is the single source of truth for the controlled field
// values used across validation, the API, and the import tooling.
// The base platform set matches the import validator; deployments that
// also track AI, SaaS or network-device techniques extend it through
// configuration rather than by editing a second hardcoded list.
type Vocabulary struct {
	Platforms  []string
	Tactics    []string
	Severities []string
	RuleTypes  []string
}

// DefaultVocabulary returns the stock MITRE Shield vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Platforms: []string{
			"Windows", "macOS", "Linux", "AWS", "Azure", "GCP", "Oracle", "Containers",
		},
		Tactics: []string{
			"Reconnaissance", "Resource Development", "Initial Access", "Execution",
			"Persistence", "Privilege Escalation", "Defense Evasion", "Credential Access",
			"Discovery", "Lateral Movement", "Collection", "Command and Control",
			"Exfiltration", "Impact", "AI Model Access", "AI Attack Staging",
		},
		Severities: []string{"Critical", "High", "Medium", "Low"},
		RuleTypes:  []string{"Product", "SOC"},
	}
}

// WithExtraPlatforms returns a copy of the vocabulary with additional
// platforms appended. Duplicates (case-insensitive) are ignored.
func (v Vocabulary) WithExtraPlatforms(extra ...string) Vocabulary {
	out := v
	out.Platforms = append([]string(nil), v.Platforms...)
	for _, p := range extra {
		if p == "" || v.hasFold(out.Platforms, p) {
			continue
		}
		out.Platforms = append(out.Platforms, p)
	}
	return out
}

// HasPlatform reports whether the platform is an exact member of the
// allowed set. Matching is case-sensitive: canonicalization happens
// before validation, not during it.
func (v Vocabulary) HasPlatform(p string) bool {
	return contains(v.Platforms, p)
}

// HasTactic reports whether the tactic is a standard vocabulary entry.
func (v Vocabulary) HasTactic(t string) bool {
	return contains(v.Tactics, t)
}

// HasSeverity reports whether the severity is an allowed value.
func (v Vocabulary) HasSeverity(s string) bool {
	return contains(v.Severities, s)
}

// HasRuleType reports whether the rule type is an allowed value.
func (v Vocabulary) HasRuleType(t string) bool {
	return contains(v.RuleTypes, t)
}

// CanonicalPlatform maps a case-insensitive platform spelling to its
// canonical capitalization ("windows" -> "Windows"). Strings with no
// canonical form are returned unchanged with ok=false; the validator
// decides what to do with them.
func (v Vocabulary) CanonicalPlatform(p string) (string, bool) {
	for _, known := range v.Platforms {
		if strings.EqualFold(known, p) {
			return known, true
		}
	}
	return p, false
}

func (v Vocabulary) hasFold(set []string, s string) bool {
	for _, m := range set {
		if strings.EqualFold(m, s) {
			return true
		}
	}
	return false
}

func contains(set []string, s string) bool {
	for _, m := range set {
		if m == s {
			return true
		}
	}
	return false
}
