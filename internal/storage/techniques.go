package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mitre-shield/internal/schema"
)

// TechniqueFilter narrows a technique listing.
type TechniqueFilter struct {
	TechniqueID        string
	Tactic             string
	ExtractionPlatform string
}

// ReplaceStats reports what a platform replacement did.
type ReplaceStats struct {
	Deleted  int64 `json:"deleted"`
	Inserted int   `json:"inserted"`
}

// TechniqueStore is the persistence surface for MITRE technique data.
// ReplacePlatform swaps out one platform's records wholesale: delete
// everything tagged with that extraction platform, then insert the new
// set. Other platforms' records are never touched.
type TechniqueStore interface {
	List(ctx context.Context, filter TechniqueFilter) ([]schema.MitreTechnique, error)
	ReplacePlatform(ctx context.Context, platform string, techniques []schema.MitreTechnique) (ReplaceStats, error)
	Count(ctx context.Context) (int64, error)
}

// MongoTechniqueStore implements TechniqueStore on a MongoDB collection.
type MongoTechniqueStore struct {
	coll    *mongo.Collection
	timeout time.Duration
}

var _ TechniqueStore = (*MongoTechniqueStore)(nil)

func (s *MongoTechniqueStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// List returns the techniques matching the filter, ordered by technique
// ID.
func (s *MongoTechniqueStore) List(ctx context.Context, filter TechniqueFilter) ([]schema.MitreTechnique, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := bson.M{}
	if filter.TechniqueID != "" {
		query["technique_id"] = filter.TechniqueID
	}
	if filter.Tactic != "" {
		query["tactic"] = filter.Tactic
	}
	if filter.ExtractionPlatform != "" {
		query["extraction_platform"] = filter.ExtractionPlatform
	}

	opts := options.Find().SetSort(bson.D{{Key: "technique_id", Value: 1}})
	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list techniques: %w", err)
	}
	defer cursor.Close(ctx)

	techniques := []schema.MitreTechnique{}
	if err := cursor.All(ctx, &techniques); err != nil {
		return nil, fmt.Errorf("failed to decode techniques: %w", err)
	}
	return techniques, nil
}

// ReplacePlatform deletes the platform's current records and inserts the
// replacement set. Every inserted record is stamped with the platform so
// the next replacement finds it.
func (s *MongoTechniqueStore) ReplacePlatform(ctx context.Context, platform string, techniques []schema.MitreTechnique) (ReplaceStats, error) {
	if platform == "" {
		return ReplaceStats{}, errEmptyPlatform
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	del, err := s.coll.DeleteMany(ctx, bson.M{"extraction_platform": platform})
	if err != nil {
		return ReplaceStats{}, fmt.Errorf("failed to delete %s techniques: %w", platform, err)
	}
	stats := ReplaceStats{Deleted: del.DeletedCount}

	if len(techniques) == 0 {
		return stats, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, len(techniques))
	for i, tech := range techniques {
		tech.ExtractionPlatform = platform
		tech.UpdatedAt = now
		docs[i] = tech
	}

	res, err := s.coll.InsertMany(ctx, docs)
	if err != nil {
		return stats, fmt.Errorf("failed to insert %s techniques: %w", platform, err)
	}
	stats.Inserted = len(res.InsertedIDs)
	return stats, nil
}

// Count returns the total number of stored techniques.
func (s *MongoTechniqueStore) Count(ctx context.Context) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.coll.CountDocuments(ctx, bson.M{})
}
