package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRuleNotFound is returned when no rule matches the requested rule ID.
var ErrRuleNotFound = errors.New("rule not found")

// ErrDuplicateRuleID is the sentinel matched by errors.Is for duplicate
// rule_id failures.
var ErrDuplicateRuleID = errors.New("rule ID already exists")

var errEmptyPlatform = errors.New("extraction platform must not be empty")

// DuplicateRuleIDError reports which rule IDs of a batch already exist.
// It blocks a bulk import unless the caller allows updates.
type DuplicateRuleIDError struct {
	IDs []string
}

func (e *DuplicateRuleIDError) Error() string {
	if len(e.IDs) == 1 {
		return fmt.Sprintf("rule ID already exists: %s", e.IDs[0])
	}
	return fmt.Sprintf("rule IDs already exist: %s", strings.Join(e.IDs, ", "))
}

func (e *DuplicateRuleIDError) Is(target error) bool {
	return target == ErrDuplicateRuleID
}
