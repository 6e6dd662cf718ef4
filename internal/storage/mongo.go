// Package storage provides MongoDB persistence for detection rules and
// MITRE technique data, plus in-memory implementations for tests.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mitre-shield/internal/config"
)

const (
	rulesCollection      = "rules"
	techniquesCollection = "mitretechniques"
)

// Client wraps the MongoDB connection and the collections the service
// uses.
type Client struct {
	client       *mongo.Client
	db           *mongo.Database
	queryTimeout time.Duration
}

// NewClient connects to MongoDB and verifies the connection with a ping.
func NewClient(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Client{
		client:       client,
		db:           client.Database(cfg.Database),
		queryTimeout: cfg.QueryTimeout,
	}, nil
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Ping verifies the server is still reachable. Used by the health
// endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// EnsureIndexes creates the indexes the stores rely on. The unique
// rule_id index is what turns concurrent duplicate inserts into clean
// conflicts instead of silent double rows.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	rules := c.db.Collection(rulesCollection)
	_, err := rules.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "rule_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "technique_id", Value: 1}}},
		{Keys: bson.D{{Key: "platform", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create rule indexes: %w", err)
	}

	techniques := c.db.Collection(techniquesCollection)
	_, err = techniques.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "technique_id", Value: 1}}},
		{Keys: bson.D{{Key: "extraction_platform", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create technique indexes: %w", err)
	}

	return nil
}

// Rules returns the Mongo-backed rule store.
func (c *Client) Rules() *MongoRuleStore {
	return &MongoRuleStore{coll: c.db.Collection(rulesCollection), timeout: c.queryTimeout}
}

// Techniques returns the Mongo-backed technique store.
func (c *Client) Techniques() *MongoTechniqueStore {
	return &MongoTechniqueStore{coll: c.db.Collection(techniquesCollection), timeout: c.queryTimeout}
}
