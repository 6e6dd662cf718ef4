package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mitre-shield/internal/schema"
)

// RuleFilter narrows a rule listing. Zero-value fields are ignored;
// Search matches rule_id, name and description case-insensitively.
type RuleFilter struct {
	Platform     string
	Tactic       string
	Status       string
	RuleType     string
	Severity     string
	TechniqueID  string
	AssignedUser string
	Search       string
}

// BulkStats reports the outcome of a bulk create.
type BulkStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// RuleStore is the persistence surface for detection rules. Bulk
// ingestion is atomic with respect to duplicates: when allowUpdate is
// false and any incoming rule_id already exists, nothing is written.
type RuleStore interface {
	List(ctx context.Context, filter RuleFilter) ([]schema.DetectionRule, error)
	Get(ctx context.Context, ruleID string) (schema.DetectionRule, error)
	Create(ctx context.Context, rule schema.DetectionRule) (schema.DetectionRule, error)
	Update(ctx context.Context, ruleID string, rule schema.DetectionRule) (schema.DetectionRule, error)
	Delete(ctx context.Context, ruleID string) error
	BulkCreate(ctx context.Context, rules []schema.DetectionRule, allowUpdate bool) (BulkStats, error)
	Count(ctx context.Context) (int64, error)
}

// MongoRuleStore implements RuleStore on a MongoDB collection.
type MongoRuleStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

var _ RuleStore = (*MongoRuleStore)(nil)

func (s *MongoRuleStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (f RuleFilter) toBSON() bson.M {
	query := bson.M{}
	if f.Platform != "" {
		query["platform"] = f.Platform
	}
	if f.Tactic != "" {
		query["tactic"] = f.Tactic
	}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.RuleType != "" {
		query["rule_type"] = f.RuleType
	}
	if f.Severity != "" {
		query["severity"] = f.Severity
	}
	if f.TechniqueID != "" {
		query["technique_id"] = f.TechniqueID
	}
	if f.AssignedUser != "" {
		query["assigned_user"] = f.AssignedUser
	}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"rule_id": pattern},
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}
	return query
}

// List returns the rules matching the filter, newest first.
func (s *MongoRuleStore) List(ctx context.Context, filter RuleFilter) ([]schema.DetectionRule, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.coll.Find(ctx, filter.toBSON(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer cursor.Close(ctx)

	rules := []schema.DetectionRule{}
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}
	return rules, nil
}

// Get fetches a rule by its business key.
func (s *MongoRuleStore) Get(ctx context.Context, ruleID string) (schema.DetectionRule, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var rule schema.DetectionRule
	err := s.coll.FindOne(ctx, bson.M{"rule_id": ruleID}).Decode(&rule)
	if err == mongo.ErrNoDocuments {
		return schema.DetectionRule{}, ErrRuleNotFound
	}
	if err != nil {
		return schema.DetectionRule{}, fmt.Errorf("failed to get rule %s: %w", ruleID, err)
	}
	return rule, nil
}

// Create inserts a new rule. An existing rule_id is a conflict.
func (s *MongoRuleStore) Create(ctx context.Context, rule schema.DetectionRule) (schema.DetectionRule, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	now := time.Now().UTC()
	rule.ID = primitive.NilObjectID
	rule.CreatedAt = now
	rule.UpdatedAt = now
	rule.ApplyDefaults()

	res, err := s.coll.InsertOne(ctx, rule)
	if mongo.IsDuplicateKeyError(err) {
		return schema.DetectionRule{}, &DuplicateRuleIDError{IDs: []string{rule.RuleID}}
	}
	if err != nil {
		return schema.DetectionRule{}, fmt.Errorf("failed to create rule %s: %w", rule.RuleID, err)
	}

	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		rule.ID = oid
	}
	return rule, nil
}

// Update replaces the stored rule identified by ruleID. The rule_id
// itself is immutable; created_at is preserved.
func (s *MongoRuleStore) Update(ctx context.Context, ruleID string, rule schema.DetectionRule) (schema.DetectionRule, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rule.RuleID = ruleID
	rule.UpdatedAt = time.Now().UTC()

	update := bson.M{"$set": bson.M{
		"name":                rule.Name,
		"description":         rule.Description,
		"technique_id":        rule.TechniqueID,
		"platform":            rule.Platform,
		"tactic":              rule.Tactic,
		"rule_type":           rule.RuleType,
		"status":              rule.Status,
		"xql_query":           rule.XQLQuery,
		"tags":                rule.Tags,
		"severity":            rule.Severity,
		"false_positive_rate": rule.FalsePositiveRate,
		"assigned_user":       rule.AssignedUser,
		"updated_at":          rule.UpdatedAt,
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated schema.DetectionRule
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"rule_id": ruleID}, update, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		return schema.DetectionRule{}, ErrRuleNotFound
	}
	if err != nil {
		return schema.DetectionRule{}, fmt.Errorf("failed to update rule %s: %w", ruleID, err)
	}
	return updated, nil
}

// Delete removes a rule by its business key.
func (s *MongoRuleStore) Delete(ctx context.Context, ruleID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"rule_id": ruleID})
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", ruleID, err)
	}
	if res.DeletedCount == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// Count returns the total number of stored rules.
func (s *MongoRuleStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.coll.CountDocuments(ctx, bson.M{})
}

// BulkCreate ingests a batch. Existing rule IDs fail the whole batch
// with DuplicateRuleIDError unless allowUpdate is set, in which case
// existing rules are replaced and new ones inserted.
func (s *MongoRuleStore) BulkCreate(ctx context.Context, rules []schema.DetectionRule, allowUpdate bool) (BulkStats, error) {
	if len(rules) == 0 {
		return BulkStats{}, nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.RuleID
	}

	existing, err := s.existingIDs(ctx, ids)
	if err != nil {
		return BulkStats{}, err
	}

	if len(existing) > 0 && !allowUpdate {
		dup := make([]string, 0, len(existing))
		for _, id := range ids {
			if existing[id] {
				dup = append(dup, id)
			}
		}
		return BulkStats{}, &DuplicateRuleIDError{IDs: dup}
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(rules))
	stats := BulkStats{Total: len(rules)}

	for _, rule := range rules {
		rule.ID = primitive.NilObjectID
		rule.UpdatedAt = now
		rule.ApplyDefaults()

		if existing[rule.RuleID] {
			stats.Updated++
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(bson.M{"rule_id": rule.RuleID}).
				SetUpdate(bson.M{"$set": bson.M{
					"name":                rule.Name,
					"description":         rule.Description,
					"technique_id":        rule.TechniqueID,
					"platform":            rule.Platform,
					"tactic":              rule.Tactic,
					"rule_type":           rule.RuleType,
					"status":              rule.Status,
					"xql_query":           rule.XQLQuery,
					"tags":                rule.Tags,
					"severity":            rule.Severity,
					"false_positive_rate": rule.FalsePositiveRate,
					"assigned_user":       rule.AssignedUser,
					"updated_at":          now,
				}}))
		} else {
			stats.Created++
			rule.CreatedAt = now
			models = append(models, mongo.NewInsertOneModel().SetDocument(rule))
		}
	}

	_, err = s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if mongo.IsDuplicateKeyError(err) {
		// Raced with a concurrent insert; the unique index wins.
		return BulkStats{}, &DuplicateRuleIDError{IDs: ids}
	}
	if err != nil {
		return BulkStats{}, fmt.Errorf("bulk write failed: %w", err)
	}

	return stats, nil
}

func (s *MongoRuleStore) existingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	opts := options.Find().SetProjection(bson.M{"rule_id": 1})
	cursor, err := s.coll.Find(ctx, bson.M{"rule_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing rule IDs: %w", err)
	}
	defer cursor.Close(ctx)

	existing := make(map[string]bool)
	for cursor.Next(ctx) {
		var doc struct {
			RuleID string `bson:"rule_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode rule ID: %w", err)
		}
		existing[doc.RuleID] = true
	}
	return existing, cursor.Err()
}
