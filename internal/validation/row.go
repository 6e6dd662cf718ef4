package validation

import "mitre-shield/internal/schema"

// Row is a raw detection-rule row as parsed from an import file, before
// it has passed validation. All fields are plain strings: enforcement of
// the controlled vocabularies is the validator's job, not the parser's.
//
// User is the legacy column name some files still carry; the normalizer
// renames it to AssignedUser before persistence but the validator sees
// both so it can warn about a present-but-empty user column.
type Row struct {
	RuleID            string   `json:"rule_id"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	TechniqueID       string   `json:"technique_id"`
	Platform          string   `json:"platform"`
	Tactic            string   `json:"tactic"`
	XQLQuery          string   `json:"xql_query"`
	Severity          string   `json:"severity"`
	RuleType          string   `json:"rule_type"`
	Status            string   `json:"status,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	FalsePositiveRate string   `json:"false_positive_rate,omitempty"`
	AssignedUser      string   `json:"assigned_user,omitempty"`
	User              string   `json:"user,omitempty"`
}

// ToRule converts a validated row to the persisted model. The caller is
// expected to have run the row through validation first; conversion
// itself performs no checks.
func (r Row) ToRule() schema.DetectionRule {
	rule := schema.DetectionRule{
		RuleID:            r.RuleID,
		Name:              r.Name,
		Description:       r.Description,
		TechniqueID:       r.TechniqueID,
		Platform:          r.Platform,
		Tactic:            r.Tactic,
		XQLQuery:          r.XQLQuery,
		Severity:          schema.Severity(r.Severity),
		RuleType:          schema.RuleType(r.RuleType),
		Status:            schema.Status(r.Status),
		Tags:              r.Tags,
		FalsePositiveRate: r.FalsePositiveRate,
		AssignedUser:      r.AssignedUser,
	}
	if rule.AssignedUser == "" {
		rule.AssignedUser = r.User
	}
	rule.ApplyDefaults()
	return rule
}
