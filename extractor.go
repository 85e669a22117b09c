package main

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ExtractOptions control which raw profiler entries survive extraction.
type ExtractOptions struct {
	MinDurationMillis int64
	ExcludedOpTypes   []string
	// TimeWindow keeps only entries recorded within the window before now;
	// zero disables the check.
	TimeWindow time.Duration
}

// ExtractSlowQueries filters raw profiler-style entries and normalizes
// each survivor into a QueryRecord, detecting the operation payload shape
// from the entry's own structure. Output is sorted by duration descending;
// representative tie-breaking downstream relies on that order.
func ExtractSlowQueries(entries []bson.M, opts ExtractOptions) []QueryRecord {
	excluded := make(map[string]bool, len(opts.ExcludedOpTypes))
	for _, op := range opts.ExcludedOpTypes {
		excluded[op] = true
	}
	cutoff := time.Time{}
	if opts.TimeWindow > 0 {
		cutoff = time.Now().Add(-opts.TimeWindow)
	}

	var records []QueryRecord
	for _, entry := range entries {
		op, _ := entry["op"].(string)
		if excluded[op] {
			continue
		}
		millis, ok := asInt64(entry["millis"])
		if !ok || millis < opts.MinDurationMillis {
			continue
		}
		ts := asTime(entry["ts"])
		if !cutoff.IsZero() && !ts.IsZero() && ts.Before(cutoff) {
			continue
		}

		rec := QueryRecord{
			Namespace:      stringField(entry, "ns"),
			OpKind:         OpKind(op),
			DurationMillis: millis,
			Timestamp:      ts,
			PlanSummary:    stringField(entry, "planSummary"),
		}
		if n, ok := asInt64(entry["nscannedObjects"]); ok {
			rec.DocsExamined = &n
		}
		if n, ok := asInt64(entry["nscanned"]); ok {
			rec.KeysExamined = &n
		}
		rec.Detail = detectDetail(entry, &rec)
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DurationMillis > records[j].DurationMillis
	})
	return records
}

// detectDetail inspects the entry's command (or legacy query) document and
// populates exactly the matching payload variant. Unrecognized shapes
// yield an empty detail rather than failing the entry.
func detectDetail(entry bson.M, rec *QueryRecord) OperationDetail {
	if cmd, ok := asDocument(entry["command"]); ok {
		switch {
		case cmd["find"] != nil:
			return OperationDetail{
				Shape:      ShapeFind,
				Filter:     docField(cmd, "filter"),
				Sort:       docField(cmd, "sort"),
				Projection: docField(cmd, "projection"),
			}
		case cmd["aggregate"] != nil:
			return OperationDetail{
				Shape:    ShapeAggregate,
				Pipeline: arrayField(cmd, "pipeline"),
			}
		case cmd["update"] != nil:
			return OperationDetail{
				Shape:  ShapeUpdate,
				Filter: docField(cmd, "q"),
				Update: docField(cmd, "u"),
			}
		case cmd["delete"] != nil:
			return OperationDetail{
				Shape:  ShapeDelete,
				Filter: docField(cmd, "q"),
			}
		}
		return OperationDetail{Shape: ShapeNone}
	}
	if q, ok := asDocument(entry["query"]); ok {
		rec.OpKind = OpLegacyQuery
		return OperationDetail{
			Shape:  ShapeFind,
			Filter: bson.M(q),
			Sort:   docField(map[string]interface{}(entry), "orderby"),
		}
	}
	return OperationDetail{Shape: ShapeNone}
}

func stringField(entry bson.M, key string) string {
	s, _ := entry[key].(string)
	return s
}

func docField(m map[string]interface{}, key string) bson.M {
	if d, ok := asDocument(m[key]); ok {
		return bson.M(d)
	}
	return nil
}

func arrayField(m map[string]interface{}, key string) bson.A {
	if s, ok := asSequence(m[key]); ok {
		return bson.A(s)
	}
	return nil
}

func asInt64(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func asTime(val interface{}) time.Time {
	switch v := val.(type) {
	case time.Time:
		return v
	case bson.DateTime:
		return v.Time()
	default:
		return time.Time{}
	}
}
