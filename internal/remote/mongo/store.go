// Package mongo implements remote.Store on MongoDB. Each table is a collection;
// the row "id" column maps to the document "_id".
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"alcyxob/fitness-sync/internal/logging"
	"alcyxob/fitness-sync/internal/remote"
)

const duplicateKeyCode = 11000

// Store implements remote.Store.
type Store struct {
	db *mongo.Database
}

// NewStore creates a Store backed by db.
func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

var _ remote.Store = (*Store)(nil)

func (s *Store) Query(ctx context.Context, table string, filter remote.Filter) ([]remote.Row, error) {
	f, err := filterToBSON(filter)
	if err != nil {
		return nil, err
	}

	cursor, err := s.db.Collection(table).Find(ctx, f)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	rows := make([]remote.Row, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, fromDocument(d))
	}
	return rows, nil
}

// Insert uses an unordered InsertMany so one duplicate does not stop the batch.
// Duplicate-key write errors mean the row is already there and are not errors.
func (s *Store) Insert(ctx context.Context, table string, rows []remote.Row) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	docs := make([]interface{}, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		id := r.ID()
		if id == "" {
			return nil, remote.ErrInvalidRow
		}
		docs = append(docs, toDocument(r))
		ids = append(ids, id)
	}

	_, err := s.db.Collection(table).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return ids, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
		return nil, err
	}
	skipped := make(map[int]bool, len(bwe.WriteErrors))
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return nil, err
		}
		skipped[we.Index] = true
	}

	written := make([]string, 0, len(ids)-len(skipped))
	for i, id := range ids {
		if !skipped[i] {
			written = append(written, id)
		}
	}
	logging.Debug().
		Str("table", table).
		Int("skipped", len(skipped)).
		Msg("insert skipped rows that already exist")
	return written, nil
}

func (s *Store) Update(ctx context.Context, table, id string, patch remote.Row) error {
	set := bson.M{}
	for k, v := range patch {
		if k == remote.IDField {
			continue
		}
		set[k] = v
	}
	if len(set) == 0 {
		return nil
	}

	result, err := s.db.Collection(table).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	result, err := s.db.Collection(table).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return remote.ErrNotFound
	}
	return nil
}

var bsonOps = map[remote.Op]string{
	remote.OpEq:  "$eq",
	remote.OpNe:  "$ne",
	remote.OpGt:  "$gt",
	remote.OpGte: "$gte",
	remote.OpLt:  "$lt",
	remote.OpLte: "$lte",
}

func filterToBSON(filter remote.Filter) (bson.M, error) {
	out := bson.M{}
	for _, c := range filter {
		op, ok := bsonOps[c.Op]
		if !ok {
			return nil, fmt.Errorf("unknown operator %q on field %q", c.Op, c.Field)
		}
		field := c.Field
		if field == remote.IDField {
			field = "_id"
		}
		clause, _ := out[field].(bson.M)
		if clause == nil {
			clause = bson.M{}
			out[field] = clause
		}
		clause[op] = c.Value
	}
	return out, nil
}

func toDocument(r remote.Row) bson.M {
	doc := make(bson.M, len(r))
	for k, v := range r {
		if k == remote.IDField {
			doc["_id"] = v
			continue
		}
		doc[k] = v
	}
	return doc
}

func fromDocument(doc bson.M) remote.Row {
	row := make(remote.Row, len(doc))
	for k, v := range doc {
		if k == "_id" {
			k = remote.IDField
			if oid, ok := v.(primitive.ObjectID); ok {
				v = oid.Hex()
			}
		}
		row[k] = fromBSONValue(v)
	}
	return row
}

func fromBSONValue(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.A:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = fromBSONValue(t[i])
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = fromBSONValue(val)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = fromBSONValue(e.Value)
		}
		return out
	}
	return v
}

// EnsureIndexes creates the indexes the sync queries rely on. Call during startup;
// failures are logged and do not stop the process.
func EnsureIndexes(ctx context.Context, db *mongo.Database) {
	indexes := map[string][]mongo.IndexModel{
		remote.TableUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		remote.TableWorkouts: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}}, Options: options.Index()},
		},
		remote.TableCompletions: {
			// Weekly count: owner + completion time range.
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "completed_at", Value: -1}}, Options: options.Index()},
		},
		remote.TableSchedules: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "date", Value: 1}, {Key: "time", Value: 1}}, Options: options.Index()},
			{Keys: bson.D{{Key: "status", Value: 1}}, Options: options.Index()},
		},
		remote.TablePhotos: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "taken_at", Value: -1}}, Options: options.Index()},
		},
	}

	for table, models := range indexes {
		idxCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if _, err := db.Collection(table).Indexes().CreateMany(idxCtx, models); err != nil {
			logging.Warn().Err(err).Str("collection", table).Msg("failed to create indexes")
		}
		cancel()
	}
}
