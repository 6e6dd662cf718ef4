package storage

import (
	"context"
	"errors"
	"testing"

	"mitre-shield/internal/schema"
)

func testRule(id string) schema.DetectionRule {
	return schema.DetectionRule{
		RuleID:      id,
		Name:        "Test Rule " + id,
		TechniqueID: "T1059",
		Platform:    "Windows",
		Tactic:      "Execution",
		RuleType:    schema.RuleTypeSOC,
		Severity:    schema.SeverityHigh,
	}
}

func TestMemoryRuleStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRuleStore()

	created, err := store.Create(ctx, testRule("WIN-001"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Status != schema.StatusTesting {
		t.Errorf("defaults not applied on create: status = %q", created.Status)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("timestamps not set on create")
	}

	got, err := store.Get(ctx, "WIN-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != created.Name {
		t.Errorf("Get() returned wrong rule: %q", got.Name)
	}

	update := testRule("WIN-001")
	update.Name = "Renamed Rule"
	updated, err := store.Update(ctx, "WIN-001", update)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Renamed Rule" {
		t.Errorf("Update() name = %q", updated.Name)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Error("Update() must preserve created_at")
	}

	if err := store.Delete(ctx, "WIN-001"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "WIN-001"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Get() after delete: error = %v, want ErrRuleNotFound", err)
	}
	if err := store.Delete(ctx, "WIN-001"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("Delete() twice: error = %v, want ErrRuleNotFound", err)
	}
}

func TestMemoryRuleStoreDuplicateCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRuleStore()

	if _, err := store.Create(ctx, testRule("WIN-001")); err != nil {
		t.Fatal(err)
	}
	_, err := store.Create(ctx, testRule("WIN-001"))

	var dup *DuplicateRuleIDError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateRuleIDError, got %v", err)
	}
	if !errors.Is(err, ErrDuplicateRuleID) {
		t.Error("DuplicateRuleIDError should match ErrDuplicateRuleID")
	}
}

func TestMemoryRuleStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRuleStore()

	win := testRule("WIN-001")
	lin := testRule("LIN-001")
	lin.Platform = "Linux"
	lin.Tactic = "Persistence"
	lin.Description = "Watches crontab changes"
	for _, r := range []schema.DetectionRule{win, lin} {
		if _, err := store.Create(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter RuleFilter
		want   int
	}{
		{"no filter", RuleFilter{}, 2},
		{"by platform", RuleFilter{Platform: "Linux"}, 1},
		{"by tactic", RuleFilter{Tactic: "Execution"}, 1},
		{"by platform and tactic", RuleFilter{Platform: "Windows", Tactic: "Persistence"}, 0},
		{"search matches description", RuleFilter{Search: "crontab"}, 1},
		{"search matches rule id", RuleFilter{Search: "win-001"}, 1},
		{"search no match", RuleFilter{Search: "kubernetes"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(rules) != tt.want {
				t.Errorf("List() returned %d rules, want %d", len(rules), tt.want)
			}
		})
	}
}

func TestMemoryRuleStoreBulkCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("all new", func(t *testing.T) {
		store := NewMemoryRuleStore()
		stats, err := store.BulkCreate(ctx, []schema.DetectionRule{testRule("A-1"), testRule("A-2")}, false)
		if err != nil {
			t.Fatalf("BulkCreate() error = %v", err)
		}
		if stats.Created != 2 || stats.Updated != 0 || stats.Total != 2 {
			t.Errorf("stats = %+v", stats)
		}
	})

	t.Run("duplicates block without allowUpdate", func(t *testing.T) {
		store := NewMemoryRuleStore()
		if _, err := store.Create(ctx, testRule("A-1")); err != nil {
			t.Fatal(err)
		}

		_, err := store.BulkCreate(ctx, []schema.DetectionRule{testRule("A-1"), testRule("A-2")}, false)
		var dup *DuplicateRuleIDError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicateRuleIDError, got %v", err)
		}
		if len(dup.IDs) != 1 || dup.IDs[0] != "A-1" {
			t.Errorf("duplicate IDs = %v, want [A-1]", dup.IDs)
		}

		// Nothing from the failed batch may be written.
		if _, err := store.Get(ctx, "A-2"); !errors.Is(err, ErrRuleNotFound) {
			t.Error("failed bulk create must not write any rule")
		}
	})

	t.Run("allowUpdate splits created and updated", func(t *testing.T) {
		store := NewMemoryRuleStore()
		original, err := store.Create(ctx, testRule("A-1"))
		if err != nil {
			t.Fatal(err)
		}

		replacement := testRule("A-1")
		replacement.Name = "Replaced Rule"
		stats, err := store.BulkCreate(ctx, []schema.DetectionRule{replacement, testRule("A-2")}, true)
		if err != nil {
			t.Fatalf("BulkCreate(allowUpdate) error = %v", err)
		}
		if stats.Created != 1 || stats.Updated != 1 || stats.Total != 2 {
			t.Errorf("stats = %+v", stats)
		}

		got, err := store.Get(ctx, "A-1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Name != "Replaced Rule" {
			t.Errorf("update not applied: name = %q", got.Name)
		}
		if !got.CreatedAt.Equal(original.CreatedAt) {
			t.Error("update must preserve created_at")
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		store := NewMemoryRuleStore()
		stats, err := store.BulkCreate(ctx, nil, false)
		if err != nil {
			t.Fatalf("BulkCreate(nil) error = %v", err)
		}
		if stats.Total != 0 {
			t.Errorf("stats = %+v", stats)
		}
	})
}

func TestMemoryTechniqueStoreReplacePlatform(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTechniqueStore()

	seed := func(platform string, ids ...string) {
		t.Helper()
		techs := make([]schema.MitreTechnique, len(ids))
		for i, id := range ids {
			techs[i] = schema.MitreTechnique{TechniqueID: id, Name: "Technique " + id, Tactic: "Execution"}
		}
		if _, err := store.ReplacePlatform(ctx, platform, techs); err != nil {
			t.Fatal(err)
		}
	}

	seed("enterprise", "T1059", "T1053")
	seed("mobile", "T1660")

	stats, err := store.ReplacePlatform(ctx, "enterprise", []schema.MitreTechnique{
		{TechniqueID: "T1059", Name: "Command and Scripting Interpreter", Tactic: "Execution"},
	})
	if err != nil {
		t.Fatalf("ReplacePlatform() error = %v", err)
	}
	if stats.Deleted != 2 || stats.Inserted != 1 {
		t.Errorf("stats = %+v, want deleted 2 inserted 1", stats)
	}

	enterprise, err := store.List(ctx, TechniqueFilter{ExtractionPlatform: "enterprise"})
	if err != nil {
		t.Fatal(err)
	}
	if len(enterprise) != 1 || enterprise[0].TechniqueID != "T1059" {
		t.Errorf("enterprise set after replace = %+v", enterprise)
	}

	// Replacing one platform must not touch another.
	mobile, err := store.List(ctx, TechniqueFilter{ExtractionPlatform: "mobile"})
	if err != nil {
		t.Fatal(err)
	}
	if len(mobile) != 1 || mobile[0].TechniqueID != "T1660" {
		t.Errorf("mobile set disturbed by enterprise replace: %+v", mobile)
	}

	if _, err := store.ReplacePlatform(ctx, "", nil); err == nil {
		t.Error("empty platform must be rejected")
	}
}
