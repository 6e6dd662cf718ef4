// Package validation implements the import-time validation engine for
// detection rules: per-row checks with error/warning semantics and
// whole-batch duplicate detection.
package validation

// IssueCode identifies a validation finding independent of its display
// message, so callers and tests can branch on kind rather than text.
type IssueCode string

const (
	CodeRuleIDMissing     IssueCode = "rule_id_missing"
	CodeRuleIDShort       IssueCode = "rule_id_short"
	CodeRuleIDCharset     IssueCode = "rule_id_charset"
	CodeNameMissing       IssueCode = "name_missing"
	CodeNameShort         IssueCode = "name_short"
	CodeTechniqueMissing  IssueCode = "technique_id_missing"
	CodeTechniqueFormat   IssueCode = "technique_id_format"
	CodePlatformMissing   IssueCode = "platform_missing"
	CodePlatformUnknown   IssueCode = "platform_unknown"
	CodeTacticMissing     IssueCode = "tactic_missing"
	CodeTacticNonStandard IssueCode = "tactic_non_standard"
	CodeSeverityMissing   IssueCode = "severity_missing"
	CodeSeverityUnknown   IssueCode = "severity_unknown"
	CodeRuleTypeMissing   IssueCode = "rule_type_missing"
	CodeRuleTypeUnknown   IssueCode = "rule_type_unknown"
	CodeDescriptionShort  IssueCode = "description_short"
	CodeUserEmpty         IssueCode = "user_empty"
	CodeDuplicateRuleID   IssueCode = "duplicate_rule_id"
)

// Issue is a single validation finding. Whether it blocks import is
// decided by which list it lands in (errors vs warnings), not by the
// issue itself: the same check never produces both.
type Issue struct {
	Code    IssueCode `json:"code"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	return i.Message
}

// messages returns just the display text of a set of issues.
func messages(issues []Issue) []string {
	if len(issues) == 0 {
		return nil
	}
	out := make([]string, len(issues))
	for i, iss := range issues {
		out[i] = iss.Message
	}
	return out
}
