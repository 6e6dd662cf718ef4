package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// TemplateHeaders is the canonical column order for import files. The
// first six columns are required; the rest are defaulted when omitted.
var TemplateHeaders = []string{
	"rule_id",
	"name",
	"description",
	"technique_id",
	"platform",
	"tactic",
	"xql_query",
	"severity",
	"rule_type",
	"status",
	"tags",
	"false_positive_rate",
	"assigned_user",
}

// templateSample is a worked example row so the template is usable as a
// starting point rather than a bare header line.
var templateSample = []string{
	"WIN-PS-001",
	"Suspicious PowerShell Execution",
	"Detects encoded PowerShell command lines",
	"T1059.001",
	"Windows",
	"Execution",
	`dataset = xdr_data | filter action_process_image_name = "powershell.exe"`,
	"High",
	"SOC",
	"Testing",
	"powershell, lolbin",
	"Medium",
	"admin",
}

// WriteTemplate writes a CSV import template with headers and one
// example row.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TemplateHeaders); err != nil {
		return fmt.Errorf("failed to write template header: %w", err)
	}
	if err := cw.Write(templateSample); err != nil {
		return fmt.Errorf("failed to write template row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// TemplateCSV returns the import template as a string.
func TemplateCSV() string {
	var b strings.Builder
	_ = WriteTemplate(&b)
	return b.String()
}
