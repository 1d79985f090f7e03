// Package store is the generic repository layer over the document database.
// Store[T] carries the CRUD surface every entity handler shares; handlers
// that need a query the wrapper does not cover drop down to Collection().
package store

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"candil-egov/internal/apperr"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Page struct {
	Number int
	Size   int
}

// PageFromRequest reads ?page= and ?page_size=, falling back to defaults on
// anything unparseable.
func PageFromRequest(r *http.Request) Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return Page{Number: page, Size: size}.Normalized()
}

func (p Page) Normalized() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Skip() int64 {
	return int64(p.Number-1) * int64(p.Size)
}

func (p Page) Limit() int64 {
	return int64(p.Size)
}

type Store[T any] struct {
	coll *mongo.Collection
}

func New[T any](coll *mongo.Collection) *Store[T] {
	return &Store[T]{coll: coll}
}

// Collection exposes the underlying collection for queries the generic
// surface does not cover (aggregations, FindOneAndUpdate).
func (s *Store[T]) Collection() *mongo.Collection {
	return s.coll
}

func (s *Store[T]) Insert(ctx context.Context, doc T) (primitive.ObjectID, error) {
	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, apperr.Wrap(err, apperr.CodeConflict, "document already exists")
		}
		return primitive.NilObjectID, apperr.Wrap(err, apperr.CodeUnavailable, "insert failed")
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

func (s *Store[T]) Get(ctx context.Context, id primitive.ObjectID) (T, error) {
	return s.FindOne(ctx, bson.M{"_id": id})
}

func (s *Store[T]) FindOne(ctx context.Context, filter bson.M) (T, error) {
	var out T
	err := s.coll.FindOne(ctx, filter).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return out, apperr.New(apperr.CodeNotFound, "document not found")
		}
		return out, apperr.Wrap(err, apperr.CodeUnavailable, "query failed")
	}
	return out, nil
}

// List returns one page of matching documents plus the total match count so
// handlers can build paging envelopes.
func (s *Store[T]) List(ctx context.Context, filter bson.M, page Page, sort bson.D) ([]T, int64, error) {
	page = page.Normalized()

	opts := options.Find().SetSkip(page.Skip()).SetLimit(page.Limit())
	if len(sort) > 0 {
		opts.SetSort(sort)
	}

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.CodeUnavailable, "query failed")
	}
	defer cursor.Close(ctx)

	var items []T
	if err := cursor.All(ctx, &items); err != nil {
		return nil, 0, apperr.Wrap(err, apperr.CodeUnavailable, "failed to decode documents")
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Wrap(err, apperr.CodeUnavailable, "count failed")
	}
	return items, total, nil
}

func (s *Store[T]) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	res, err := s.coll.UpdateByID(ctx, id, bson.M{"$set": fields})
	if err != nil {
		return apperr.Wrap(err, apperr.CodeUnavailable, "update failed")
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.CodeNotFound, "document not found")
	}
	return nil
}

// Upsert writes fields into the single document matching filter, creating
// it when absent. Used for the one-doc-per-key collections (preferences,
// progress).
func (s *Store[T]) Upsert(ctx context.Context, filter bson.M, fields bson.M) error {
	_, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": fields}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Wrap(err, apperr.CodeConflict, "concurrent write conflict")
		}
		return apperr.Wrap(err, apperr.CodeUnavailable, "upsert failed")
	}
	return nil
}

func (s *Store[T]) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Wrap(err, apperr.CodeUnavailable, "delete failed")
	}
	if res.DeletedCount == 0 {
		return apperr.New(apperr.CodeNotFound, "document not found")
	}
	return nil
}

func (s *Store[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, apperr.Wrap(err, apperr.CodeUnavailable, "count failed")
	}
	return n, nil
}
