package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mitre-shield/internal/schema"
	"mitre-shield/internal/validation"
)

// State names a position in the import session lifecycle.
type State string

const (
	StateIdle             State = "idle"
	StateFileSelected     State = "file_selected"
	StateParsing          State = "parsing"
	StateParsedClean      State = "parsed_clean"
	StateParsedWithIssues State = "parsed_with_issues"
	StateImporting        State = "importing"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
)

var (
	// ErrNoFile is returned when Parse is called before a file has been
	// selected.
	ErrNoFile = errors.New("no file selected")

	// ErrNotParsed is returned when Import is called before a successful
	// parse.
	ErrNotParsed = errors.New("file has not been parsed")

	// ErrReviewRequired is returned when a batch with validation issues
	// is imported without explicitly restricting to valid rows.
	ErrReviewRequired = errors.New("batch has validation issues: review them or import valid rows only")

	// ErrNothingToImport is returned when the eligible row set is empty.
	ErrNothingToImport = errors.New("no importable rules in the batch")

	// ErrBusy is returned when an operation is attempted while an import
	// is already in flight.
	ErrBusy = errors.New("import already in progress")
)

// BulkStats reports what a bulk submission did.
type BulkStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// BulkCreator accepts a batch of rules for persistence. The server-side
// store and the HTTP client both satisfy it, so sessions run identically
// in-process and against a remote API.
type BulkCreator interface {
	BulkCreate(ctx context.Context, rules []schema.DetectionRule, allowUpdate bool) (BulkStats, error)
}

// ImportOptions control how a parsed batch is submitted.
type ImportOptions struct {
	// ValidOnly restricts the submission to rows with neither errors nor
	// warnings. Required when the batch parsed with issues.
	ValidOnly bool

	// AllowUpdate lets rules whose IDs already exist overwrite the
	// stored versions instead of failing the batch.
	AllowUpdate bool
}

// Session drives one file through select, parse, review and import. It
// is a single-user workflow object and is not safe for concurrent use.
type Session struct {
	extractor *Extractor
	validator *validation.Validator
	sink      BulkCreator
	logger    *slog.Logger

	state    State
	filename string
	result   *validation.BatchResult
	lastErr  error
	stats    *BulkStats
}

// NewSession creates an idle import session.
func NewSession(extractor *Extractor, validator *validation.Validator, sink BulkCreator, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		extractor: extractor,
		validator: validator,
		sink:      sink,
		logger:    logger,
		state:     StateIdle,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Err returns the error that moved the session to its current state, if
// any.
func (s *Session) Err() error { return s.lastErr }

// Result returns the validation result of the last successful parse.
func (s *Session) Result() *validation.BatchResult { return s.result }

// Stats returns the outcome of a completed import.
func (s *Session) Stats() *BulkStats { return s.stats }

// SelectFile records the file to import. Selecting a file discards any
// previous parse or import outcome; an unsupported extension is rejected
// without changing state.
func (s *Session) SelectFile(filename string) error {
	if s.state == StateImporting {
		return ErrBusy
	}
	if !SupportedFile(filename) {
		return ErrUnsupportedFile
	}
	s.filename = filename
	s.result = nil
	s.stats = nil
	s.lastErr = nil
	s.state = StateFileSelected
	return nil
}

// Parse extracts, normalizes and validates the selected file. On a
// structural failure the session drops back to file_selected so the user
// can fix the file and try again; a batch that parses lands in
// parsed_clean or parsed_with_issues depending on whether any row drew
// an error or warning.
func (s *Session) Parse(ctx context.Context, r io.Reader) (*validation.BatchResult, error) {
	switch s.state {
	case StateFileSelected, StateParsedClean, StateParsedWithIssues:
	case StateImporting:
		return nil, ErrBusy
	default:
		return nil, ErrNoFile
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.state = StateParsing
	rows, err := s.extractor.Extract(r, s.filename)
	if err != nil {
		s.lastErr = err
		s.state = StateFileSelected
		s.logger.Warn("import parse failed", "file", s.filename, "error", err)
		return nil, err
	}

	result := s.validator.ValidateBatch(rows)
	s.result = &result
	s.lastErr = nil

	if result.Summary.InvalidCount == 0 && result.Summary.WarningCount == 0 {
		s.state = StateParsedClean
	} else {
		s.state = StateParsedWithIssues
	}

	s.logger.Info("import file parsed",
		"file", s.filename,
		"total", result.Summary.Total,
		"valid", result.Summary.ValidCount,
		"warnings", result.Summary.WarningCount,
		"invalid", result.Summary.InvalidCount)

	return s.result, nil
}

// Import submits the eligible rows. A batch with issues must be
// submitted with ValidOnly; a failed import keeps the parse result so it
// can be retried, with updates enabled for example, without re-parsing
// the file.
func (s *Session) Import(ctx context.Context, opts ImportOptions) (BulkStats, error) {
	switch s.state {
	case StateParsedClean, StateParsedWithIssues, StateFailed, StateSucceeded:
	case StateImporting:
		return BulkStats{}, ErrBusy
	default:
		return BulkStats{}, ErrNotParsed
	}
	if s.result == nil {
		return BulkStats{}, ErrNotParsed
	}

	hasIssues := s.result.Summary.InvalidCount > 0 || s.result.Summary.WarningCount > 0
	if hasIssues && !opts.ValidOnly {
		return BulkStats{}, ErrReviewRequired
	}

	rows := s.result.ImportableRows(opts.ValidOnly)
	if len(rows) == 0 {
		return BulkStats{}, ErrNothingToImport
	}

	rules := make([]schema.DetectionRule, len(rows))
	for i, row := range rows {
		rules[i] = row.ToRule()
	}

	s.state = StateImporting
	stats, err := s.sink.BulkCreate(ctx, rules, opts.AllowUpdate)
	if err != nil {
		err = friendlyImportError(err)
		s.lastErr = err
		s.state = StateFailed
		s.logger.Error("import failed", "file", s.filename, "rules", len(rules), "error", err)
		return BulkStats{}, err
	}

	s.stats = &stats
	s.lastErr = nil
	s.state = StateSucceeded
	s.logger.Info("import succeeded",
		"file", s.filename,
		"created", stats.Created,
		"updated", stats.Updated,
		"total", stats.Total)

	return stats, nil
}

// Reset returns the session to idle, dropping all per-file state.
func (s *Session) Reset() {
	if s.state == StateImporting {
		return
	}
	*s = Session{
		extractor: s.extractor,
		validator: s.validator,
		sink:      s.sink,
		logger:    s.logger,
		state:     StateIdle,
	}
}

// friendlyImportError rewrites the store's duplicate-ID failure into
// guidance the operator can act on.
func friendlyImportError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "already exist") || strings.Contains(msg, "Duplicate rule ID") {
		return fmt.Errorf("some rule IDs already exist in the system; re-run the import with updates enabled to overwrite them (%w)", err)
	}
	return err
}
