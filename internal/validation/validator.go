package validation

import (
	"fmt"
	"regexp"
	"strings"

	"mitre-shield/internal/schema"
)

// ruleIDPattern is the recommended character set for rule IDs. Rule IDs
// that stray from it only draw a warning: rule IDs are free text owned
// by the SOC, unlike technique IDs which key into the MITRE dataset.
var ruleIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Outcome is the result of validating one row. A row with any error is
// blocked from import; warnings are advisory and the row may still be
// imported.
type Outcome struct {
	Row      Row     `json:"rule"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// IsValid reports whether the row has no blocking errors.
func (o Outcome) IsValid() bool {
	return len(o.Errors) == 0
}

// HasWarnings reports whether the row carries advisory findings.
func (o Outcome) HasWarnings() bool {
	return len(o.Warnings) > 0
}

// ErrorMessages returns the display text of all errors.
func (o Outcome) ErrorMessages() []string { return messages(o.Errors) }

// WarningMessages returns the display text of all warnings.
func (o Outcome) WarningMessages() []string { return messages(o.Warnings) }

// Validator runs the per-row import checks against a vocabulary.
// Validation is pure: the same row always yields the same outcome.
type Validator struct {
	vocab schema.Vocabulary
}

// New creates a Validator with the default vocabulary.
func New() *Validator {
	return NewWithVocabulary(schema.DefaultVocabulary())
}

// NewWithVocabulary creates a Validator bound to the given vocabulary.
func NewWithVocabulary(vocab schema.Vocabulary) *Validator {
	return &Validator{vocab: vocab}
}

// ValidateRule checks a single row and accumulates errors and warnings
// in field order. The error/warning split is deliberate and asymmetric:
// malformed rule IDs and short names are tolerated (warning), while a
// malformed technique ID, unknown platform, severity or rule type block
// the row (error). Off-vocabulary tactics warn only, and xql_query is
// never checked.
func (v *Validator) ValidateRule(row Row) Outcome {
	out := Outcome{Row: row}

	if strings.TrimSpace(row.RuleID) == "" {
		out.addError(CodeRuleIDMissing, "Rule ID is required")
	} else {
		if len(row.RuleID) < 3 {
			out.addWarning(CodeRuleIDShort, "Rule ID should be more descriptive (recommended: 5+ characters)")
		}
		if !ruleIDPattern.MatchString(row.RuleID) {
			out.addWarning(CodeRuleIDCharset, "Rule ID should only contain letters, numbers, hyphens, and underscores")
		}
	}

	if strings.TrimSpace(row.Name) == "" {
		out.addError(CodeNameMissing, "Rule name is required")
	} else if len(row.Name) < 5 {
		out.addWarning(CodeNameShort, "Rule name should be more descriptive (recommended: 10+ characters)")
	}

	if strings.TrimSpace(row.TechniqueID) == "" {
		out.addError(CodeTechniqueMissing, "Technique ID is required")
	} else if !schema.TechniqueIDPattern.MatchString(row.TechniqueID) {
		out.addError(CodeTechniqueFormat, "Technique ID must follow MITRE format (e.g., T1059 or T1059.001)")
	}

	if strings.TrimSpace(row.Platform) == "" {
		out.addError(CodePlatformMissing, "Platform is required")
	} else if !v.vocab.HasPlatform(row.Platform) {
		out.addError(CodePlatformUnknown,
			fmt.Sprintf("Platform must be one of: %s", strings.Join(v.vocab.Platforms, ", ")))
	}

	if strings.TrimSpace(row.Tactic) == "" {
		out.addError(CodeTacticMissing, "Tactic is required")
	} else if !v.vocab.HasTactic(row.Tactic) {
		out.addWarning(CodeTacticNonStandard,
			fmt.Sprintf("Tactic %q is not a standard MITRE ATT&CK tactic. Consider using: %s",
				row.Tactic, strings.Join(v.vocab.Tactics, ", ")))
	}

	// xql_query is deliberately not validated: any content, including
	// none, is accepted.

	if strings.TrimSpace(row.Severity) == "" {
		out.addError(CodeSeverityMissing, "Severity is required")
	} else if !v.vocab.HasSeverity(row.Severity) {
		out.addError(CodeSeverityUnknown,
			fmt.Sprintf("Severity must be one of: %s", strings.Join(v.vocab.Severities, ", ")))
	}

	if strings.TrimSpace(row.RuleType) == "" {
		out.addError(CodeRuleTypeMissing, "Rule type is required")
	} else if !v.vocab.HasRuleType(row.RuleType) {
		out.addError(CodeRuleTypeUnknown,
			fmt.Sprintf("Rule type must be one of: %s", strings.Join(v.vocab.RuleTypes, ", ")))
	}

	if row.Description != "" && len(row.Description) < 10 {
		out.addWarning(CodeDescriptionShort, "Description should be more detailed for better documentation")
	}

	if row.User != "" && strings.TrimSpace(row.User) == "" {
		out.addWarning(CodeUserEmpty, "User field is empty - consider assigning to a team member")
	}

	return out
}

func (o *Outcome) addError(code IssueCode, msg string) {
	o.Errors = append(o.Errors, Issue{Code: code, Message: msg})
}

func (o *Outcome) addWarning(code IssueCode, msg string) {
	o.Warnings = append(o.Warnings, Issue{Code: code, Message: msg})
}
