package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"mitre-shield/internal/schema"
)

// MemoryRuleStore is an in-memory RuleStore. It backs tests and the
// dev server mode that runs without MongoDB.
type MemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[string]schema.DetectionRule
}

var _ RuleStore = (*MemoryRuleStore)(nil)

// NewMemoryRuleStore creates an empty in-memory rule store.
func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{rules: make(map[string]schema.DetectionRule)}
}

func (s *MemoryRuleStore) List(_ context.Context, filter RuleFilter) ([]schema.DetectionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []schema.DetectionRule{}
	for _, rule := range s.rules {
		if matchesFilter(rule, filter) {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RuleID < out[j].RuleID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func matchesFilter(rule schema.DetectionRule, f RuleFilter) bool {
	if f.Platform != "" && rule.Platform != f.Platform {
		return false
	}
	if f.Tactic != "" && rule.Tactic != f.Tactic {
		return false
	}
	if f.Status != "" && string(rule.Status) != f.Status {
		return false
	}
	if f.RuleType != "" && string(rule.RuleType) != f.RuleType {
		return false
	}
	if f.Severity != "" && string(rule.Severity) != f.Severity {
		return false
	}
	if f.TechniqueID != "" && rule.TechniqueID != f.TechniqueID {
		return false
	}
	if f.AssignedUser != "" && rule.AssignedUser != f.AssignedUser {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(rule.RuleID), needle) &&
			!strings.Contains(strings.ToLower(rule.Name), needle) &&
			!strings.Contains(strings.ToLower(rule.Description), needle) {
			return false
		}
	}
	return true
}

func (s *MemoryRuleStore) Get(_ context.Context, ruleID string) (schema.DetectionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[ruleID]
	if !ok {
		return schema.DetectionRule{}, ErrRuleNotFound
	}
	return rule, nil
}

func (s *MemoryRuleStore) Create(_ context.Context, rule schema.DetectionRule) (schema.DetectionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.RuleID]; exists {
		return schema.DetectionRule{}, &DuplicateRuleIDError{IDs: []string{rule.RuleID}}
	}

	now := time.Now().UTC()
	rule.ID = primitive.NewObjectID()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	rule.ApplyDefaults()
	s.rules[rule.RuleID] = rule
	return rule, nil
}

func (s *MemoryRuleStore) Update(_ context.Context, ruleID string, rule schema.DetectionRule) (schema.DetectionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rules[ruleID]
	if !ok {
		return schema.DetectionRule{}, ErrRuleNotFound
	}

	rule.ID = current.ID
	rule.RuleID = ruleID
	rule.CreatedAt = current.CreatedAt
	rule.UpdatedAt = time.Now().UTC()
	s.rules[ruleID] = rule
	return rule, nil
}

func (s *MemoryRuleStore) Delete(_ context.Context, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[ruleID]; !ok {
		return ErrRuleNotFound
	}
	delete(s.rules, ruleID)
	return nil
}

func (s *MemoryRuleStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.rules)), nil
}

func (s *MemoryRuleStore) BulkCreate(_ context.Context, rules []schema.DetectionRule, allowUpdate bool) (BulkStats, error) {
	if len(rules) == 0 {
		return BulkStats{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var dup []string
	for _, rule := range rules {
		if _, exists := s.rules[rule.RuleID]; exists {
			dup = append(dup, rule.RuleID)
		}
	}
	if len(dup) > 0 && !allowUpdate {
		return BulkStats{}, &DuplicateRuleIDError{IDs: dup}
	}

	now := time.Now().UTC()
	stats := BulkStats{Total: len(rules)}
	for _, rule := range rules {
		rule.UpdatedAt = now
		rule.ApplyDefaults()
		if current, exists := s.rules[rule.RuleID]; exists {
			rule.ID = current.ID
			rule.CreatedAt = current.CreatedAt
			stats.Updated++
		} else {
			rule.ID = primitive.NewObjectID()
			rule.CreatedAt = now
			stats.Created++
		}
		s.rules[rule.RuleID] = rule
	}
	return stats, nil
}

// MemoryTechniqueStore is an in-memory TechniqueStore.
type MemoryTechniqueStore struct {
	mu         sync.RWMutex
	techniques []schema.MitreTechnique
}

var _ TechniqueStore = (*MemoryTechniqueStore)(nil)

// NewMemoryTechniqueStore creates an empty in-memory technique store.
func NewMemoryTechniqueStore() *MemoryTechniqueStore {
	return &MemoryTechniqueStore{}
}

func (s *MemoryTechniqueStore) List(_ context.Context, filter TechniqueFilter) ([]schema.MitreTechnique, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []schema.MitreTechnique{}
	for _, tech := range s.techniques {
		if filter.TechniqueID != "" && tech.TechniqueID != filter.TechniqueID {
			continue
		}
		if filter.Tactic != "" && tech.Tactic != filter.Tactic {
			continue
		}
		if filter.ExtractionPlatform != "" && tech.ExtractionPlatform != filter.ExtractionPlatform {
			continue
		}
		out = append(out, tech)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TechniqueID < out[j].TechniqueID })
	return out, nil
}

func (s *MemoryTechniqueStore) ReplacePlatform(_ context.Context, platform string, techniques []schema.MitreTechnique) (ReplaceStats, error) {
	if platform == "" {
		return ReplaceStats{}, errEmptyPlatform
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.techniques[:0]
	var deleted int64
	for _, tech := range s.techniques {
		if tech.ExtractionPlatform == platform {
			deleted++
			continue
		}
		kept = append(kept, tech)
	}
	s.techniques = kept

	now := time.Now().UTC()
	for _, tech := range techniques {
		tech.ID = primitive.NewObjectID()
		tech.ExtractionPlatform = platform
		tech.UpdatedAt = now
		s.techniques = append(s.techniques, tech)
	}

	return ReplaceStats{Deleted: deleted, Inserted: len(techniques)}, nil
}

func (s *MemoryTechniqueStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.techniques)), nil
}
