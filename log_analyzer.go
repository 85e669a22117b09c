package main

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const slowQueryMsg = "Slow query"

// LogEntry is one structured mongod log line.
type LogEntry struct {
	T struct {
		Date bson.DateTime `json:"$date"`
	} `json:"t"`
	S    string                 `json:"s"`
	C    string                 `json:"c"`
	ID   int64                  `json:"id"`
	Ctx  string                 `json:"ctx"`
	Msg  string                 `json:"msg"`
	Attr map[string]interface{} `json:"attr"`
}

func (t *LogEntry) UnmarshalJSON(data []byte) error {
	type Alias LogEntry
	aux := &struct {
		Time struct {
			Date string `json:"$date"`
		} `json:"t"`
		*Alias
	}{
		Alias: (*Alias)(t),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, aux.Time.Date)
	if err != nil {
		return err
	}
	t.T.Date = bson.DateTime(parsed.UnixMilli())
	return nil
}

type FileReader interface {
	Open(filePath string) (io.ReadCloser, error)
	GetExtension(filePath string) string
}

type DefaultFileReader struct{}

func (d *DefaultFileReader) Open(filePath string) (io.ReadCloser, error) {
	return os.Open(filePath)
}

func (d *DefaultFileReader) GetExtension(filePath string) string {
	return strings.ToLower(filepath.Ext(filePath))
}

// ParseSlowQueryLog scans a (possibly gzipped) mongod log file for
// "Slow query" lines and converts each into a profiler-style entry the
// extractor can consume. Malformed lines are skipped with a warning.
func ParseSlowQueryLog(fr FileReader, logPath string) ([]bson.M, error) {
	file, err := fr.Open(logPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var r io.Reader = file
	if fr.GetExtension(logPath) == ".gz" {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer gzReader.Close()
		r = gzReader
	}
	return parseSlowQueryStream(r)
}

func parseSlowQueryStream(r io.Reader) ([]bson.M, error) {
	var entries []bson.M
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, slowQueryMsg) {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			Logger.Warn("Skipping unparsable log line: ", err)
			continue
		}
		if entry.Msg != slowQueryMsg {
			continue
		}
		entries = append(entries, profilerEntryFromLog(entry))
	}
	if err := scanner.Err(); err != nil {
		return entries, err
	}
	return entries, nil
}

// profilerEntryFromLog maps a structured slow-query log attr payload onto
// the field names the system.profile collection uses, so both telemetry
// sources feed the extractor identically.
func profilerEntryFromLog(entry LogEntry) bson.M {
	attr := entry.Attr
	out := bson.M{
		"ts": time.UnixMilli(int64(entry.T.Date)),
	}
	if ns, ok := attr["ns"].(string); ok {
		out["ns"] = ns
	}
	if t, ok := attr["type"].(string); ok {
		out["op"] = logOpKind(t)
	}
	if millis, ok := asInt64(attr["durationMillis"]); ok {
		out["millis"] = millis
	}
	if plan, ok := attr["planSummary"].(string); ok {
		out["planSummary"] = plan
	}
	if n, ok := asInt64(attr["docsExamined"]); ok {
		out["nscannedObjects"] = n
	}
	if n, ok := asInt64(attr["keysExamined"]); ok {
		out["nscanned"] = n
	}
	if cmd, ok := asDocument(attr["command"]); ok {
		out["command"] = bson.M(cmd)
	}
	return out
}

// logOpKind translates the structured log's operation type vocabulary to
// the profiler's.
func logOpKind(t string) string {
	switch t {
	case "remove":
		return "delete"
	default:
		return t
	}
}
