package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func profilerEntry(ns, op string, millis int64, command bson.M) bson.M {
	entry := bson.M{
		"ns":     ns,
		"op":     op,
		"millis": millis,
		"ts":     time.Now(),
	}
	if command != nil {
		entry["command"] = command
	}
	return entry
}

func TestExtractFiltersByMinDurationAndSortsDescending(t *testing.T) {
	durations := []int64{10, 50, 100, 150, 300, 99, 101, 250, 40, 500}
	var entries []bson.M
	for _, d := range durations {
		entries = append(entries, profilerEntry("shop.orders", "query", d, bson.M{
			"find":   "orders",
			"filter": bson.M{"status": "x"},
		}))
	}
	records := ExtractSlowQueries(entries, ExtractOptions{MinDurationMillis: 100})

	require.Len(t, records, 6)
	want := []int64{500, 300, 250, 150, 101, 100}
	for i, rec := range records {
		assert.Equal(t, want[i], rec.DurationMillis)
	}
}

func TestExtractExcludesOperationKinds(t *testing.T) {
	entries := []bson.M{
		profilerEntry("shop.orders", "query", 200, bson.M{"find": "orders"}),
		profilerEntry("shop.orders", "insert", 300, nil),
		profilerEntry("shop.orders", "getmore", 400, nil),
	}
	records := ExtractSlowQueries(entries, ExtractOptions{
		MinDurationMillis: 100,
		ExcludedOpTypes:   []string{"insert", "getmore"},
	})
	require.Len(t, records, 1)
	assert.Equal(t, OpQuery, records[0].OpKind)
}

func TestExtractHonorsTimeWindow(t *testing.T) {
	recent := profilerEntry("shop.orders", "query", 200, bson.M{"find": "orders"})
	stale := profilerEntry("shop.orders", "query", 300, bson.M{"find": "orders"})
	stale["ts"] = time.Now().Add(-48 * time.Hour)

	records := ExtractSlowQueries([]bson.M{recent, stale}, ExtractOptions{
		MinDurationMillis: 100,
		TimeWindow:        24 * time.Hour,
	})
	require.Len(t, records, 1)
	assert.Equal(t, int64(200), records[0].DurationMillis)
}

func TestExtractDetectsFindShape(t *testing.T) {
	entry := profilerEntry("shop.orders", "query", 150, bson.M{
		"find":       "orders",
		"filter":     bson.M{"status": "delivered"},
		"sort":       bson.M{"ts": -1},
		"projection": bson.M{"_id": 0},
	})
	records := ExtractSlowQueries([]bson.M{entry}, ExtractOptions{})
	require.Len(t, records, 1)

	detail := records[0].Detail
	assert.Equal(t, ShapeFind, detail.Shape)
	assert.Equal(t, bson.M{"status": "delivered"}, detail.Filter)
	assert.Equal(t, bson.M{"ts": -1}, detail.Sort)
	assert.Equal(t, bson.M{"_id": 0}, detail.Projection)
	assert.Nil(t, detail.Pipeline)
	assert.Nil(t, detail.Update)
}

func TestExtractDetectsAggregateShape(t *testing.T) {
	pipeline := bson.A{bson.M{"$match": bson.M{"status": "x"}}}
	entry := profilerEntry("shop.orders", "command", 150, bson.M{
		"aggregate": "orders",
		"pipeline":  pipeline,
	})
	records := ExtractSlowQueries([]bson.M{entry}, ExtractOptions{})
	require.Len(t, records, 1)
	assert.Equal(t, ShapeAggregate, records[0].Detail.Shape)
	assert.Equal(t, pipeline, records[0].Detail.Pipeline)
}

func TestExtractDetectsUpdateAndDeleteShapes(t *testing.T) {
	update := profilerEntry("shop.orders", "update", 150, bson.M{
		"update": "orders",
		"q":      bson.M{"status": "pending"},
		"u":      bson.M{"$set": bson.M{"status": "done"}},
	})
	del := profilerEntry("shop.orders", "delete", 120, bson.M{
		"delete": "orders",
		"q":      bson.M{"status": "stale"},
	})
	records := ExtractSlowQueries([]bson.M{update, del}, ExtractOptions{})
	require.Len(t, records, 2)

	assert.Equal(t, ShapeUpdate, records[0].Detail.Shape)
	assert.Equal(t, bson.M{"status": "pending"}, records[0].Detail.Filter)
	assert.Equal(t, bson.M{"$set": bson.M{"status": "done"}}, records[0].Detail.Update)

	assert.Equal(t, ShapeDelete, records[1].Detail.Shape)
	assert.Equal(t, bson.M{"status": "stale"}, records[1].Detail.Filter)
}

func TestExtractDetectsLegacyQueryShape(t *testing.T) {
	entry := bson.M{
		"ns":      "shop.orders",
		"op":      "query",
		"millis":  int64(150),
		"ts":      time.Now(),
		"query":   bson.M{"status": "delivered"},
		"orderby": bson.M{"ts": -1},
	}
	records := ExtractSlowQueries([]bson.M{entry}, ExtractOptions{})
	require.Len(t, records, 1)
	assert.Equal(t, OpLegacyQuery, records[0].OpKind)
	assert.Equal(t, ShapeFind, records[0].Detail.Shape)
	assert.Equal(t, bson.M{"status": "delivered"}, records[0].Detail.Filter)
	assert.Equal(t, bson.M{"ts": -1}, records[0].Detail.Sort)
}

func TestExtractUnrecognizedShapeStillProducesRecord(t *testing.T) {
	entry := profilerEntry("shop.orders", "command", 150, bson.M{
		"count": "orders",
	})
	records := ExtractSlowQueries([]bson.M{entry}, ExtractOptions{})
	require.Len(t, records, 1)
	assert.Equal(t, ShapeNone, records[0].Detail.Shape)
}

func TestExtractKeepsMalformedNamespace(t *testing.T) {
	// A namespace without a separator is still extracted; the enrichment
	// step is the one that skips it.
	entry := profilerEntry("badnamespace", "query", 150, bson.M{"find": "x"})
	records := ExtractSlowQueries([]bson.M{entry}, ExtractOptions{MinDurationMillis: 100})
	require.Len(t, records, 1)
	assert.Equal(t, "badnamespace", records[0].Namespace)
}

func TestExtractReadsScanCounters(t *testing.T) {
	entry := profilerEntry("shop.orders", "query", 150, bson.M{"find": "orders"})
	entry["nscannedObjects"] = int32(4200)
	entry["nscanned"] = int64(13)
	entry["planSummary"] = "COLLSCAN"

	records := ExtractSlowQueries([]bson.M{entry}, ExtractOptions{})
	require.Len(t, records, 1)
	require.NotNil(t, records[0].DocsExamined)
	require.NotNil(t, records[0].KeysExamined)
	assert.Equal(t, int64(4200), *records[0].DocsExamined)
	assert.Equal(t, int64(13), *records[0].KeysExamined)
	assert.Equal(t, "COLLSCAN", records[0].PlanSummary)
}

func TestExtractStableSortKeepsInputOrderForEqualDurations(t *testing.T) {
	a := profilerEntry("shop.a", "query", 100, bson.M{"find": "a"})
	b := profilerEntry("shop.b", "query", 100, bson.M{"find": "b"})
	records := ExtractSlowQueries([]bson.M{a, b}, ExtractOptions{})
	require.Len(t, records, 2)
	assert.Equal(t, "shop.a", records[0].Namespace)
	assert.Equal(t, "shop.b", records[1].Namespace)
}

func TestSplitNamespace(t *testing.T) {
	db, coll, ok := splitNamespace("shop.orders")
	require.True(t, ok)
	assert.Equal(t, "shop", db)
	assert.Equal(t, "orders", coll)

	// First-dot split keeps dotted collection names intact.
	db, coll, ok = splitNamespace("shop.orders.archive")
	require.True(t, ok)
	assert.Equal(t, "shop", db)
	assert.Equal(t, "orders.archive", coll)

	_, _, ok = splitNamespace("badnamespace")
	assert.False(t, ok)
	_, _, ok = splitNamespace("shop.")
	assert.False(t, ok)
	_, _, ok = splitNamespace(".orders")
	assert.False(t, ok)
}
