// Package schema defines the canonical data model for MITRE Shield.
// Detection rules and techniques are stored in MongoDB collections and
// exchanged over the REST API in this shape.
package schema

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DetectionRule represents a security detection rule mapped to a MITRE
// ATT&CK technique. The rule_id field is the unique business key; the
// Mongo _id is internal.
type DetectionRule struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	RuleID            string             `bson:"rule_id" json:"rule_id" validate:"required"`
	Name              string             `bson:"name" json:"name" validate:"required"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	TechniqueID       string             `bson:"technique_id" json:"technique_id" validate:"required,technique_id"`
	Platform          string             `bson:"platform" json:"platform" validate:"required"`
	Tactic            string             `bson:"tactic" json:"tactic" validate:"required"`
	RuleType          RuleType           `bson:"rule_type" json:"rule_type" validate:"required,oneof=Product SOC"`
	Status            Status             `bson:"status,omitempty" json:"status,omitempty" validate:"omitempty,oneof=Active Testing Inactive"`
	XQLQuery          string             `bson:"xql_query,omitempty" json:"xql_query,omitempty"`
	Tags              []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Severity          Severity           `bson:"severity" json:"severity" validate:"required,oneof=Critical High Medium Low"`
	FalsePositiveRate string             `bson:"false_positive_rate,omitempty" json:"false_positive_rate,omitempty" validate:"omitempty,oneof=Low Medium High"`
	AssignedUser      string             `bson:"assigned_user,omitempty" json:"assigned_user,omitempty"`
	CreatedAt         time.Time          `bson:"created_at,omitempty" json:"created_date,omitempty"`
	UpdatedAt         time.Time          `bson:"updated_at,omitempty" json:"updated_date,omitempty"`
}

// ApplyDefaults fills the optional fields that carry defaults in the
// persisted model.
func (r *DetectionRule) ApplyDefaults() {
	if r.Status == "" {
		r.Status = StatusTesting
	}
	if r.Severity == "" {
		r.Severity = SeverityMedium
	}
	if r.FalsePositiveRate == "" {
		r.FalsePositiveRate = "Medium"
	}
}

// Severity classifies the impact of a detection firing.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// IsValid checks if the severity is a valid value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// RuleType distinguishes vendor-shipped rules from SOC-authored ones.
type RuleType string

const (
	RuleTypeProduct RuleType = "Product"
	RuleTypeSOC     RuleType = "SOC"
)

// IsValid checks if the rule type is a valid value.
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeProduct, RuleTypeSOC:
		return true
	}
	return false
}

// Status is the deployment state of a rule.
type Status string

const (
	StatusActive   Status = "Active"
	StatusTesting  Status = "Testing"
	StatusInactive Status = "Inactive"
)

// IsValid checks if the status is a valid value.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusTesting, StatusInactive:
		return true
	}
	return false
}
