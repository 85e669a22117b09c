package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ExplainRunner executes an explain command against a database. Split out
// so plan construction is testable without a live engine.
type ExplainRunner interface {
	RunExplain(ctx context.Context, database string, explain bson.D) (bson.M, error)
}

// inertUpdate stands in when a captured update entry carried no update
// document; the explain then still reflects the query-selection cost.
var inertUpdate = bson.M{"$set": bson.M{"__dummy_field__": true}}

// BuildExplainCommand reconstructs the operation a representative stands
// for as an explain command document. Returns nil for getmore and
// unrecognized shapes, the documented unsupported cases.
func BuildExplainCommand(collection string, rec *QueryRecord) bson.D {
	if rec.OpKind == OpGetMore {
		return nil
	}
	switch rec.Detail.Shape {
	case ShapeFind:
		inner := bson.D{
			{Key: "find", Value: collection},
			{Key: "filter", Value: orEmptyDoc(rec.Detail.Filter)},
		}
		if rec.Detail.Sort != nil {
			inner = append(inner, bson.E{Key: "sort", Value: rec.Detail.Sort})
		}
		if rec.Detail.Projection != nil {
			inner = append(inner, bson.E{Key: "projection", Value: rec.Detail.Projection})
		}
		return wrapExplain(inner)
	case ShapeAggregate:
		pipeline := rec.Detail.Pipeline
		if pipeline == nil {
			pipeline = bson.A{}
		}
		return wrapExplain(bson.D{
			{Key: "aggregate", Value: collection},
			{Key: "pipeline", Value: pipeline},
			{Key: "cursor", Value: bson.M{}},
		})
	case ShapeUpdate:
		update := rec.Detail.Update
		if update == nil {
			update = inertUpdate
		}
		return wrapExplain(bson.D{
			{Key: "update", Value: collection},
			{Key: "updates", Value: bson.A{bson.M{"q": orEmptyDoc(rec.Detail.Filter), "u": update}}},
		})
	case ShapeDelete:
		return wrapExplain(bson.D{
			{Key: "delete", Value: collection},
			{Key: "deletes", Value: bson.A{bson.M{"q": orEmptyDoc(rec.Detail.Filter), "limit": 0}}},
		})
	default:
		return nil
	}
}

func wrapExplain(inner bson.D) bson.D {
	return bson.D{
		{Key: "explain", Value: inner},
		{Key: "verbosity", Value: "queryPlanner"},
	}
}

func orEmptyDoc(doc bson.M) bson.M {
	if doc == nil {
		return bson.M{}
	}
	return doc
}

// BuildPlan requests the execution plan for a representative. Best-effort:
// engine failures are logged and surface as a nil plan, never as an error.
func BuildPlan(ctx context.Context, runner ExplainRunner, database, collection string, rec *QueryRecord) bson.M {
	explain := BuildExplainCommand(collection, rec)
	if explain == nil {
		return nil
	}
	plan, err := runner.RunExplain(ctx, database, explain)
	if err != nil {
		Logger.WithFields(logrus.Fields{
			"db":   database,
			"coll": collection,
			"op":   string(rec.OpKind),
		}).Error("Failed to get explain plan: ", err)
		return nil
	}
	return plan
}
