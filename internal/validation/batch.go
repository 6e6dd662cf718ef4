package validation

import (
	"fmt"
	"strings"
)

// BatchResult partitions a validated batch. The three slices are
// disjoint and cover the whole input: a row with errors lands in Invalid
// even when it also has warnings.
type BatchResult struct {
	Valid   []Outcome `json:"valid"`
	Warned  []Outcome `json:"warnings"`
	Invalid []Outcome `json:"invalid"`
	Summary Summary   `json:"summary"`
}

// Summary holds the batch-level counts.
type Summary struct {
	Total          int `json:"total"`
	ValidCount     int `json:"validCount"`
	WarningCount   int `json:"warningCount"`
	InvalidCount   int `json:"invalidCount"`
	DuplicateCount int `json:"duplicateCount"`
}

// ValidateBatch validates every row in input order, then scans the whole
// batch for duplicate rule IDs. Duplicate detection is a second pass by
// design: a row that was individually clean is forced invalid when its
// rule ID appears more than once, so partitioning cannot happen until
// all rows have been seen.
func (v *Validator) ValidateBatch(rows []Row) BatchResult {
	outcomes := make([]Outcome, len(rows))
	for i, row := range rows {
		outcomes[i] = v.ValidateRule(row)
	}

	// Duplicate rule ID scan. Empty rule IDs already failed the required
	// check and never count as duplicates of each other.
	seen := make(map[string]bool)
	duplicates := make(map[string]bool)
	for _, o := range outcomes {
		id := o.Row.RuleID
		if id == "" {
			continue
		}
		if seen[id] {
			duplicates[id] = true
		}
		seen[id] = true
	}

	if len(duplicates) > 0 {
		for i := range outcomes {
			if duplicates[outcomes[i].Row.RuleID] {
				outcomes[i].addError(CodeDuplicateRuleID,
					fmt.Sprintf("Duplicate rule ID: %s appears multiple times in the import", outcomes[i].Row.RuleID))
			}
		}
	}

	var result BatchResult
	for _, o := range outcomes {
		switch {
		case !o.IsValid():
			result.Invalid = append(result.Invalid, o)
		case o.HasWarnings():
			result.Warned = append(result.Warned, o)
		default:
			result.Valid = append(result.Valid, o)
		}
	}

	result.Summary = Summary{
		Total:          len(outcomes),
		ValidCount:     len(result.Valid),
		WarningCount:   len(result.Warned),
		InvalidCount:   len(result.Invalid),
		DuplicateCount: len(duplicates),
	}

	return result
}

// ImportableRows returns the rows eligible for import: the clean subset
// when validOnly is set, otherwise everything that passed validation
// including rows with warnings.
func (r BatchResult) ImportableRows(validOnly bool) []Row {
	var rows []Row
	for _, o := range r.Valid {
		rows = append(rows, o.Row)
	}
	if !validOnly {
		for _, o := range r.Warned {
			rows = append(rows, o.Row)
		}
	}
	return rows
}

// Report renders a human-readable validation report for CLI output.
func (r BatchResult) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Validation Report\n")
	fmt.Fprintf(&b, "================\n")
	fmt.Fprintf(&b, "Total rules processed: %d\n", r.Summary.Total)
	fmt.Fprintf(&b, "Valid rules: %d\n", r.Summary.ValidCount)
	fmt.Fprintf(&b, "Rules with warnings: %d\n", r.Summary.WarningCount)
	fmt.Fprintf(&b, "Invalid rules: %d\n", r.Summary.InvalidCount)

	if r.Summary.DuplicateCount > 0 {
		fmt.Fprintf(&b, "Duplicate rule IDs found: %d\n", r.Summary.DuplicateCount)
	}

	canImport := r.Summary.ValidCount + r.Summary.WarningCount
	if canImport > 0 {
		fmt.Fprintf(&b, "\nReady to import: %d rules\n", canImport)
	} else {
		fmt.Fprintf(&b, "\nNo rules are ready for import. Please fix the validation errors.\n")
	}

	return b.String()
}
