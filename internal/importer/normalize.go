package importer

import (
	"strings"

	"mitre-shield/internal/validation"
)

// Normalize applies the pre-validation cleanup pass to a raw row:
// whitespace trimming, case-mapping of platform names onto the
// vocabulary, the legacy user to assigned_user rename, and defaults for
// the optional workflow fields. Normalization never rejects a row;
// anything it cannot fix is left for the validator to flag.
func (e *Extractor) Normalize(row validation.Row) validation.Row {
	row.RuleID = strings.TrimSpace(row.RuleID)
	row.Name = strings.TrimSpace(row.Name)
	row.Description = strings.TrimSpace(row.Description)
	row.TechniqueID = strings.ToUpper(strings.TrimSpace(row.TechniqueID))
	row.Platform = strings.TrimSpace(row.Platform)
	row.Tactic = strings.TrimSpace(row.Tactic)
	row.Severity = strings.TrimSpace(row.Severity)
	row.RuleType = strings.TrimSpace(row.RuleType)
	row.Status = strings.TrimSpace(row.Status)
	row.FalsePositiveRate = strings.TrimSpace(row.FalsePositiveRate)
	row.AssignedUser = strings.TrimSpace(row.AssignedUser)
	row.User = strings.TrimSpace(row.User)

	// Map platform casing onto the vocabulary ("windows" -> "Windows").
	// Unrecognized platforms pass through unchanged so the validator can
	// report them against the configured platform set.
	if canonical, ok := e.vocab.CanonicalPlatform(row.Platform); ok {
		row.Platform = canonical
	}

	// Legacy files carry the assignee in a "user" column. Rows with no
	// assignee at all land on the admin queue for triage.
	if row.AssignedUser == "" && row.User != "" {
		row.AssignedUser = row.User
	}
	if row.AssignedUser == "" {
		row.AssignedUser = "admin"
	}

	if row.Status == "" {
		row.Status = "Testing"
	}
	if row.Severity == "" {
		row.Severity = "Medium"
	}
	if row.FalsePositiveRate == "" {
		row.FalsePositiveRate = "Medium"
	}

	return row
}
