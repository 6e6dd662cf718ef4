package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// TechniqueIDPattern defines the valid format for MITRE technique IDs:
// four digits with an optional three-digit sub-technique suffix.
// Examples: "T1059", "T1059.001", "T1110.003"
var TechniqueIDPattern = regexp.MustCompile(`^T\d{4}(\.\d{3})?$`)

// Validator validates DetectionRule payloads against the canonical
// schema. It backs the API create/update paths; the import pipeline has
// its own row-level validator with error/warning semantics.
type Validator struct {
	validate *validator.Validate
	vocab    Vocabulary
}

// NewValidator creates a Validator using the default vocabulary.
func NewValidator() *Validator {
	return NewValidatorWithVocabulary(DefaultVocabulary())
}

// NewValidatorWithVocabulary creates a Validator bound to the given
// vocabulary.
func NewValidatorWithVocabulary(vocab Vocabulary) *Validator {
	v := validator.New()

	// Register custom validation for technique ID format
	v.RegisterValidation("technique_id", func(fl validator.FieldLevel) bool {
		return TechniqueIDPattern.MatchString(fl.Field().String())
	})

	return &Validator{
		validate: v,
		vocab:    vocab,
	}
}

// Validate validates a detection rule against the canonical schema.
// Returns an error describing the first problem found.
func (v *Validator) Validate(rule *DetectionRule) error {
	if err := v.validate.Struct(rule); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Platform membership is vocabulary-driven, not a struct tag, so the
	// configured platform extensions apply here too.
	if !v.vocab.HasPlatform(rule.Platform) {
		return fmt.Errorf("platform must be one of: %s", strings.Join(v.vocab.Platforms, ", "))
	}

	return nil
}

// ValidateTechniqueID checks if a technique ID matches the MITRE format.
func ValidateTechniqueID(id string) bool {
	return TechniqueIDPattern.MatchString(id)
}
