package main

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/singleflight"
)

// ArtifactKind distinguishes the two cached metadata artifacts.
type ArtifactKind string

const (
	ArtifactSchema  ArtifactKind = "schema"
	ArtifactIndexes ArtifactKind = "indexes"
)

type cacheKey struct {
	Database   string
	Collection string
	Kind       ArtifactKind
}

func (k cacheKey) String() string {
	return k.Database + "." + k.Collection + ":" + string(k.Kind)
}

// CacheEntry holds one computed artifact plus its capture time. Entries
// are snapshots: they are never refreshed within a run.
type CacheEntry struct {
	Schema     map[string]string
	Indexes    []IndexDescriptor
	CapturedAt time.Time
}

// CacheStats is the observability view of the cache contents.
type CacheStats struct {
	TotalEntries  int `json:"totalEntries"`
	SchemaEntries int `json:"schemaEntries"`
	IndexEntries  int `json:"indexEntries"`
}

// MetadataSource is the engine-facing interface the cache computes
// artifacts through.
type MetadataSource interface {
	EstimatedDocumentCount(ctx context.Context, database, collection string) (int64, error)
	SampleDocuments(ctx context.Context, database, collection string, size int64) ([]bson.M, error)
	ListIndexes(ctx context.Context, database, collection string) ([]IndexDescriptor, error)
}

// MetadataCache memoizes schema-sampling and index-listing results per
// (database, collection, kind) for the lifetime of one analysis run.
// Concurrent misses for the same key are collapsed to a single
// computation.
type MetadataCache struct {
	source     MetadataSource
	sampleSize int64

	mu      sync.RWMutex
	entries map[cacheKey]*CacheEntry
	flight  singleflight.Group
}

func NewMetadataCache(source MetadataSource, sampleSize int64) *MetadataCache {
	if sampleSize <= 0 {
		sampleSize = 100
	}
	return &MetadataCache{
		source:     source,
		sampleSize: sampleSize,
		entries:    make(map[cacheKey]*CacheEntry),
	}
}

// GetSchema returns the inferred field-to-type mapping for a collection,
// computing it at most once per run. An unreadable collection yields an
// empty schema, logged but not fatal.
func (c *MetadataCache) GetSchema(ctx context.Context, database, collection string) map[string]string {
	key := cacheKey{Database: database, Collection: collection, Kind: ArtifactSchema}
	entry := c.lookupOrCompute(key, func() *CacheEntry {
		return &CacheEntry{
			Schema:     c.sampleSchema(ctx, database, collection),
			CapturedAt: time.Now(),
		}
	})
	return entry.Schema
}

// GetIndexes returns the collection's index descriptors verbatim,
// computing them at most once per run.
func (c *MetadataCache) GetIndexes(ctx context.Context, database, collection string) []IndexDescriptor {
	key := cacheKey{Database: database, Collection: collection, Kind: ArtifactIndexes}
	entry := c.lookupOrCompute(key, func() *CacheEntry {
		indexes, err := c.source.ListIndexes(ctx, database, collection)
		if err != nil {
			Logger.WithFields(logrus.Fields{
				"db":   database,
				"coll": collection,
			}).Error("Failed to list indexes: ", err)
			indexes = nil
		}
		return &CacheEntry{Indexes: indexes, CapturedAt: time.Now()}
	})
	return entry.Indexes
}

func (c *MetadataCache) lookupOrCompute(key cacheKey, compute func() *CacheEntry) *CacheEntry {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return entry
	}
	result, _, _ := c.flight.Do(key.String(), func() (interface{}, error) {
		c.mu.RLock()
		entry, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return entry, nil
		}
		entry = compute()
		c.mu.Lock()
		c.entries[key] = entry
		c.mu.Unlock()
		return entry, nil
	})
	return result.(*CacheEntry)
}

// sampleSchema folds the per-document type tags of a bounded random sample
// into a field-to-type mapping; a field seen with two distinct types
// becomes "mixed" and stays that way.
func (c *MetadataCache) sampleSchema(ctx context.Context, database, collection string) map[string]string {
	size := c.sampleSize
	if count, err := c.source.EstimatedDocumentCount(ctx, database, collection); err == nil && count > 0 && count < size {
		size = count
	}
	docs, err := c.source.SampleDocuments(ctx, database, collection, size)
	if err != nil {
		Logger.WithFields(logrus.Fields{
			"db":   database,
			"coll": collection,
		}).Error("Failed to sample documents for schema inference: ", err)
		return map[string]string{}
	}
	schema := make(map[string]string)
	for _, doc := range docs {
		for field, value := range doc {
			t := bsonTypeName(value)
			existing, seen := schema[field]
			if !seen {
				schema[field] = t
			} else if existing != t && existing != "mixed" {
				schema[field] = "mixed"
			}
		}
	}
	return schema
}

// Clear drops all entries. Called once at the start of each independent
// analysis run.
func (c *MetadataCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[cacheKey]*CacheEntry)
	c.mu.Unlock()
}

func (c *MetadataCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := CacheStats{TotalEntries: len(c.entries)}
	for key := range c.entries {
		switch key.Kind {
		case ArtifactSchema:
			stats.SchemaEntries++
		case ArtifactIndexes:
			stats.IndexEntries++
		}
	}
	return stats
}
