package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"mitre-shield/internal/schema"
	"mitre-shield/internal/storage"
)

func ruleFilterFromQuery(r *http.Request) storage.RuleFilter {
	q := r.URL.Query()
	return storage.RuleFilter{
		Platform:     q.Get("platform"),
		Tactic:       q.Get("tactic"),
		Status:       q.Get("status"),
		RuleType:     q.Get("rule_type"),
		Severity:     q.Get("severity"),
		TechniqueID:  q.Get("technique_id"),
		AssignedUser: q.Get("assigned_user"),
		Search:       q.Get("search"),
	}
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.List(r.Context(), ruleFilterFromQuery(r))
	if err != nil {
		s.logger.Error("failed to list rules", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch rules")
		return
	}

	if !sortRules(rules, r.URL.Query().Get("sort"), r.URL.Query().Get("order")) {
		respondError(w, http.StatusBadRequest, "invalid sort field")
		return
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if limit < len(rules) {
			rules = rules[:limit]
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(rules),
		"rules":   rules,
	})
}

// sortRules re-orders a listing in place. The default is creation time,
// newest first; other fields sort ascending unless order says otherwise.
// Returns false for an unknown sort field or order.
func sortRules(rules []schema.DetectionRule, field, order string) bool {
	var less func(a, b schema.DetectionRule) bool
	descDefault := false

	switch field {
	case "", "created_at":
		less = func(a, b schema.DetectionRule) bool { return a.CreatedAt.Before(b.CreatedAt) }
		descDefault = true
	case "rule_id":
		less = func(a, b schema.DetectionRule) bool { return a.RuleID < b.RuleID }
	case "name":
		less = func(a, b schema.DetectionRule) bool { return a.Name < b.Name }
	case "severity":
		less = func(a, b schema.DetectionRule) bool { return a.Severity < b.Severity }
	default:
		return false
	}

	desc := descDefault
	switch order {
	case "":
	case "asc":
		desc = false
	case "desc":
		desc = true
	default:
		return false
	}

	sort.SliceStable(rules, func(i, j int) bool {
		if desc {
			return less(rules[j], rules[i])
		}
		return less(rules[i], rules[j])
	})
	return true
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.rules.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrRuleNotFound) {
		respondError(w, http.StatusNotFound, "Rule not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get rule", "rule_id", r.PathValue("id"), "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch rule")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "rule": rule})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule schema.DetectionRule
	if !decodeJSON(w, r, &rule) {
		return
	}
	rule.ApplyDefaults()

	if err := s.ruleSchema.Validate(&rule); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.rules.Create(r.Context(), rule)
	var dup *storage.DuplicateRuleIDError
	if errors.As(err, &dup) {
		respondError(w, http.StatusBadRequest, "Rule ID already exists")
		return
	}
	if err != nil {
		s.logger.Error("failed to create rule", "rule_id", rule.RuleID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to create rule")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"success": true, "rule": created})
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var rule schema.DetectionRule
	if !decodeJSON(w, r, &rule) {
		return
	}

	ruleID := r.PathValue("id")
	rule.RuleID = ruleID
	rule.ApplyDefaults()

	if err := s.ruleSchema.Validate(&rule); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.rules.Update(r.Context(), ruleID, rule)
	if errors.Is(err, storage.ErrRuleNotFound) {
		respondError(w, http.StatusNotFound, "Rule not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to update rule", "rule_id", ruleID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to update rule")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "rule": updated})
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ruleID := r.PathValue("id")
	err := s.rules.Delete(r.Context(), ruleID)
	if errors.Is(err, storage.ErrRuleNotFound) {
		respondError(w, http.StatusNotFound, "Rule not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete rule", "rule_id", ruleID, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete rule")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Rule %s deleted", ruleID),
	})
}

type bulkCreateRequest struct {
	Items       []schema.DetectionRule `json:"items"`
	AllowUpdate bool                   `json:"allowUpdate"`
}

func (s *Server) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "items must be a non-empty array")
		return
	}

	s.importCount.Add(1)

	stats, err := s.rules.BulkCreate(r.Context(), req.Items, req.AllowUpdate)
	var dup *storage.DuplicateRuleIDError
	if errors.As(err, &dup) {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"success":      false,
			"error":        "Duplicate rule IDs found",
			"duplicateIds": dup.IDs,
			"details": map[string]int{
				"total":      len(req.Items),
				"duplicates": len(dup.IDs),
				"new":        len(req.Items) - len(dup.IDs),
			},
		})
		return
	}
	if err != nil {
		s.logger.Error("bulk create failed", "items", len(req.Items), "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to import rules")
		return
	}

	s.rulesIngested.Add(uint64(stats.Total))
	s.logger.Info("bulk import complete",
		"created", stats.Created, "updated", stats.Updated, "total", stats.Total)

	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": fmt.Sprintf("%d rules updated, %d rules created", stats.Updated, stats.Created),
		"stats":   stats,
	})
}
