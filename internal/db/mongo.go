package db

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"candil-egov/internal/apperr"
)

var client *mongo.Client

// Connect dials the document store, retrying with exponential backoff so the
// service survives the database coming up after it.
func Connect(ctx context.Context, uri string, logger *zap.Logger) error {
	op := func() error {
		c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := c.Ping(pingCtx, readpref.Primary()); err != nil {
			_ = c.Disconnect(ctx)
			return err
		}
		client = c
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second

	err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), func(err error, next time.Duration) {
		logger.Warn("database connect failed, retrying",
			zap.Error(err),
			zap.Duration("next_attempt_in", next),
		)
	})
	if err != nil {
		return apperr.Wrap(err, apperr.CodeUnavailable, "database unreachable")
	}
	return nil
}

func Client() *mongo.Client {
	return client
}

func GetCollection(dbName, name string) *mongo.Collection {
	return client.Database(dbName).Collection(name)
}

func Disconnect(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the handlers query against. Text search
// on books needs the text index; the rest keep the hot borrow and identity
// look-ups from scanning.
func EnsureIndexes(ctx context.Context, dbName string) error {
	idx := map[string][]mongo.IndexModel{
		"books": {
			{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}}},
			{Keys: bson.D{{Key: "category_id", Value: 1}}},
		},
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"categories": {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"borrows": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "due_date", Value: 1}}},
		},
		"assets": {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"progress": {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "book_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"preferences": {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"audit_logs": {
			{Keys: bson.D{{Key: "exported", Value: 1}}},
		},
	}

	for coll, idxModels := range idx {
		if _, err := GetCollection(dbName, coll).Indexes().CreateMany(ctx, idxModels); err != nil {
			return apperr.Wrap(err, apperr.CodeUnavailable, "failed to create indexes for "+coll)
		}
	}
	return nil
}
