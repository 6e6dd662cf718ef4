package schema

import "testing"

func TestValidateTechniqueID(t *testing.T) {
	valid := []string{"T1059", "T1059.001", "T1110.003", "T0001"}
	invalid := []string{"", "1059", "t1059", "T105", "T10599", "T1059.1", "T1059.0001", "T1059.001.002", " T1059"}

	for _, id := range valid {
		if !ValidateTechniqueID(id) {
			t.Errorf("ValidateTechniqueID(%q) = false, want true", id)
		}
	}
	for _, id := range invalid {
		if ValidateTechniqueID(id) {
			t.Errorf("ValidateTechniqueID(%q) = true, want false", id)
		}
	}
}

func TestCanonicalPlatform(t *testing.T) {
	vocab := DefaultVocabulary()

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"windows", "Windows", true},
		{"WINDOWS", "Windows", true},
		{"macos", "macOS", true},
		{"aws", "AWS", true},
		{"Linux", "Linux", true},
		{"Solaris", "Solaris", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := vocab.CanonicalPlatform(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("CanonicalPlatform(%q) = (%q, %v), want (%q, %v)",
				tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestWithExtraPlatforms(t *testing.T) {
	vocab := DefaultVocabulary().WithExtraPlatforms("Mainframe", "windows", "")

	if !vocab.HasPlatform("Mainframe") {
		t.Error("extra platform not added")
	}
	// Case-insensitive duplicates of stock platforms are dropped.
	count := 0
	for _, p := range vocab.Platforms {
		if p == "Windows" || p == "windows" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("windows appears %d times", count)
	}
	// The original vocabulary is not mutated.
	if DefaultVocabulary().HasPlatform("Mainframe") {
		t.Error("WithExtraPlatforms mutated the default vocabulary")
	}
}

func TestApplyDefaults(t *testing.T) {
	rule := DetectionRule{RuleID: "X-1"}
	rule.ApplyDefaults()

	if rule.Status != StatusTesting {
		t.Errorf("status = %q", rule.Status)
	}
	if rule.Severity != SeverityMedium {
		t.Errorf("severity = %q", rule.Severity)
	}
	if rule.FalsePositiveRate != "Medium" {
		t.Errorf("false_positive_rate = %q", rule.FalsePositiveRate)
	}

	// Explicit values are never overwritten.
	rule = DetectionRule{Status: StatusActive, Severity: SeverityLow, FalsePositiveRate: "High"}
	rule.ApplyDefaults()
	if rule.Status != StatusActive || rule.Severity != SeverityLow || rule.FalsePositiveRate != "High" {
		t.Errorf("defaults overwrote explicit values: %+v", rule)
	}
}

func TestValidatorRejectsBadRules(t *testing.T) {
	v := NewValidator()

	good := DetectionRule{
		RuleID:      "WIN-001",
		Name:        "Name",
		TechniqueID: "T1059",
		Platform:    "Windows",
		Tactic:      "Execution",
		RuleType:    RuleTypeSOC,
		Severity:    SeverityHigh,
	}
	if err := v.Validate(&good); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*DetectionRule)
	}{
		{"missing rule_id", func(r *DetectionRule) { r.RuleID = "" }},
		{"bad technique", func(r *DetectionRule) { r.TechniqueID = "T10" }},
		{"bad rule type", func(r *DetectionRule) { r.RuleType = "Vendor" }},
		{"bad severity", func(r *DetectionRule) { r.Severity = "Urgent" }},
		{"unknown platform", func(r *DetectionRule) { r.Platform = "BeOS" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := good
			tt.mutate(&rule)
			if err := v.Validate(&rule); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIsSubTechnique(t *testing.T) {
	sub := MitreTechnique{TechniqueID: "T1059.001"}
	parent := MitreTechnique{TechniqueID: "T1059"}
	if !sub.IsSubTechnique() {
		t.Error("T1059.001 should be a sub-technique")
	}
	if parent.IsSubTechnique() {
		t.Error("T1059 should not be a sub-technique")
	}
}
