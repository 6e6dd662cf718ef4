// Package importer implements the rule import pipeline: file
// extraction, row normalization, and the orchestrated parse/validate/
// submit workflow.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"mitre-shield/internal/schema"
	"mitre-shield/internal/validation"
)

// ErrUnsupportedFile is returned when a selected file is neither CSV nor
// XLSX.
var ErrUnsupportedFile = errors.New("unsupported file type: expected .csv or .xlsx")

// requiredColumns are the columns an import file must provide. Their
// cells must be non-empty on every row; the remaining columns are
// optional and defaulted by normalization.
var requiredColumns = []string{
	"rule_id", "name", "technique_id", "platform", "tactic", "xql_query",
}

// RowError is a structural parse error tied to a specific data row.
// Row numbers are 1-based file rows, so the first data row under the
// header reports as row 2.
type RowError struct {
	Row   int
	Field string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: missing required field %q", e.Row, e.Field)
}

// Extractor turns uploaded CSV/XLSX files into normalized rule rows.
type Extractor struct {
	vocab schema.Vocabulary
}

// NewExtractor creates an Extractor bound to the given vocabulary; the
// vocabulary drives platform canonicalization during normalization.
func NewExtractor(vocab schema.Vocabulary) *Extractor {
	return &Extractor{vocab: vocab}
}

// SupportedFile reports whether the filename has an importable
// extension.
func SupportedFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Extract parses the file contents into normalized rows. A missing
// required column, or a row with an empty required cell, is a structural
// error that fails the whole extraction: partial imports from broken
// files are worse than no import.
func (e *Extractor) Extract(r io.Reader, filename string) ([]validation.Row, error) {
	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = readCSV(r)
	case ".xlsx":
		records, err = readXLSX(r)
	default:
		return nil, ErrUnsupportedFile
	}
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return nil, errors.New("file is empty")
	}

	columns := headerIndex(records[0])
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	rows := make([]validation.Row, 0, len(records)-1)
	for i, record := range records[1:] {
		fileRow := i + 2 // 1-based, accounting for the header row

		cell := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		// Skip fully blank lines rather than failing on them.
		if blankRecord(record) {
			continue
		}

		for _, col := range requiredColumns {
			if cell(col) == "" && col != "xql_query" {
				return nil, &RowError{Row: fileRow, Field: col}
			}
		}
		// xql_query must be present as a column but its cells may be
		// empty: detection logic is deliberately unvalidated.

		row := validation.Row{
			RuleID:            cell("rule_id"),
			Name:              cell("name"),
			Description:       cell("description"),
			TechniqueID:       cell("technique_id"),
			Platform:          cell("platform"),
			Tactic:            cell("tactic"),
			XQLQuery:          cell("xql_query"),
			Severity:          cell("severity"),
			RuleType:          cell("rule_type"),
			Status:            cell("status"),
			FalsePositiveRate: cell("false_positive_rate"),
			AssignedUser:      cell("assigned_user"),
			User:              cell("user"),
		}
		if tags := cell("tags"); tags != "" {
			row.Tags = splitTags(tags)
		}

		rows = append(rows, e.Normalize(row))
	}

	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are handled per-cell
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// headerIndex maps normalized column names to their positions. Headers
// are matched case-insensitively with spaces treated as underscores, so
// "Rule ID" and "rule_id" address the same column.
func headerIndex(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.ReplaceAll(key, " ", "_")
		if key != "" {
			if _, exists := columns[key]; !exists {
				columns[key] = i
			}
		}
	}
	return columns
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
