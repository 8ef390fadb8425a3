package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/fitness-sync/internal/remote"
)

func TestFilterToBSON(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f, err := filterToBSON(remote.Where(
		remote.Eq("owner_id", "u1"),
		remote.Gte("completed_at", since),
		remote.Lt("completed_at", since.Add(7*24*time.Hour)),
		remote.Eq("id", "a1"),
	))
	require.NoError(t, err)

	assert.Equal(t, bson.M{"$eq": "u1"}, f["owner_id"])
	assert.Equal(t, bson.M{"$gte": since, "$lt": since.Add(7 * 24 * time.Hour)}, f["completed_at"])
	assert.Equal(t, bson.M{"$eq": "a1"}, f["_id"])

	_, err = filterToBSON(remote.Filter{{Field: "x", Op: "regex", Value: ".*"}})
	require.Error(t, err)
}

func TestDocumentConversion(t *testing.T) {
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	doc := toDocument(remote.Row{"id": "o1", "owner_id": "u1"})
	assert.Equal(t, "o1", doc["_id"])
	_, hasID := doc["id"]
	assert.False(t, hasID)

	row := fromDocument(bson.M{
		"_id":        "o1",
		"created_at": primitive.NewDateTimeFromTime(at),
		"tags":       primitive.A{"a", primitive.NewDateTimeFromTime(at)},
		"nested":     bson.M{"at": primitive.NewDateTimeFromTime(at)},
	})
	assert.Equal(t, "o1", row.ID())
	got, ok := row.Time("created_at")
	require.True(t, ok)
	assert.True(t, got.Equal(at))
	assert.Equal(t, []interface{}{"a", at}, row["tags"])
	assert.Equal(t, map[string]interface{}{"at": at}, row["nested"])

	oid := primitive.NewObjectID()
	assert.Equal(t, oid.Hex(), fromDocument(bson.M{"_id": oid}).ID())
}
