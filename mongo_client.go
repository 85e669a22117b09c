package main

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	clientInstance    *mongo.Client
	clientInstanceErr error
	mongoOnce         sync.Once
)

func GetMongoClient(ctx context.Context) (*mongo.Client, error) {
	mongoOnce.Do(func() {
		cfg, err := GetConfig()
		if err != nil {
			panic(err)
		}
		uri := cfg.MongoURI
		if uri == "" {
			uri = "mongodb://localhost:27017/?directConnection=true"
		}
		_, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		clientInstance, clientInstanceErr = mongo.Connect(options.Client().ApplyURI(uri))
	})
	return clientInstance, clientInstanceErr
}

func DisconnectMongoClient() error {
	if clientInstance == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return clientInstance.Disconnect(ctx)
}

const profileCollection = "system.profile"

// ProfilerTelemetrySource reads raw slow-operation entries from the
// target database's system.profile collection, slowest first.
type ProfilerTelemetrySource struct {
	client   *mongo.Client
	database string
}

func NewProfilerTelemetrySource(client *mongo.Client, database string) *ProfilerTelemetrySource {
	return &ProfilerTelemetrySource{client: client, database: database}
}

func (s *ProfilerTelemetrySource) FetchEntries(ctx context.Context) ([]bson.M, error) {
	db := s.client.Database(s.database)
	names, err := db.ListCollectionNames(ctx, bson.M{"name": profileCollection})
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		Logger.WithField("db", s.database).
			Warn("system.profile not found; ensure profiling is enabled")
		return nil, nil
	}
	filter := bson.M{
		"op": bson.M{"$in": bson.A{"query", "command", "update", "delete", "insert", "getmore"}},
	}
	opts := options.Find().
		SetProjection(bson.M{
			"ns":              1,
			"op":              1,
			"query":           1,
			"orderby":         1,
			"command":         1,
			"millis":          1,
			"planSummary":     1,
			"ts":              1,
			"nscannedObjects": 1,
			"nscanned":        1,
		}).
		SetSort(bson.D{{Key: "millis", Value: -1}})
	cursor, err := db.Collection(profileCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var entries []bson.M
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// MongoMetadataSource backs the metadata cache with real driver calls.
type MongoMetadataSource struct {
	client *mongo.Client
}

func NewMongoMetadataSource(client *mongo.Client) *MongoMetadataSource {
	return &MongoMetadataSource{client: client}
}

func (s *MongoMetadataSource) EstimatedDocumentCount(ctx context.Context, database, collection string) (int64, error) {
	return s.client.Database(database).Collection(collection).EstimatedDocumentCount(ctx)
}

func (s *MongoMetadataSource) SampleDocuments(ctx context.Context, database, collection string, size int64) ([]bson.M, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: size}}}},
	}
	cursor, err := s.client.Database(database).Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *MongoMetadataSource) ListIndexes(ctx context.Context, database, collection string) ([]IndexDescriptor, error) {
	cursor, err := s.client.Database(database).Collection(collection).Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	var indexes []IndexDescriptor
	if err := cursor.All(ctx, &indexes); err != nil {
		return nil, err
	}
	return indexes, nil
}

// MongoExplainRunner executes explain commands through RunCommand.
type MongoExplainRunner struct {
	client *mongo.Client
}

func NewMongoExplainRunner(client *mongo.Client) *MongoExplainRunner {
	return &MongoExplainRunner{client: client}
}

func (r *MongoExplainRunner) RunExplain(ctx context.Context, database string, explain bson.D) (bson.M, error) {
	var plan bson.M
	err := r.client.Database(database).RunCommand(ctx, explain).Decode(&plan)
	if err != nil {
		return nil, err
	}
	return plan, nil
}
