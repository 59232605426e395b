package baseline

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// SchemaVersion is the current baseline document layout.
const SchemaVersion = 2

const (
	generalDescription         = "Fallback baseline derived from all data"
	migratedGeneralDescription = "Migrated from V1 flat baseline"
)

// Stat is a baseline mean and standard deviation for one metric.
type Stat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Metrics maps metric names to baseline statistics.
type Metrics map[string]Stat

// Clone returns a copy of m. A nil map clones to an empty map.
func (m Metrics) Clone() Metrics {
	out := make(Metrics, len(m))
	maps.Copy(out, m)
	return out
}

// Partition is one context slice of a baseline document.
type Partition struct {
	Description string  `json:"description"`
	Metrics     Metrics `json:"metrics"`
}

// Document is a baseline in the partitioned layout. SourceVersion records the
// layout the document was decoded from (1 for legacy flat documents).
type Document struct {
	UserID        int64
	Timestamp     time.Time
	SourceVersion int
	Partitions    map[ContextKey]Partition
}

// NewDocument returns an empty partitioned document with all three partitions.
func NewDocument(userID int64, ts time.Time) Document {
	doc := Document{UserID: userID, Timestamp: ts, SourceVersion: SchemaVersion, Partitions: map[ContextKey]Partition{}}
	for _, key := range Contexts {
		doc.Partitions[key] = Partition{Description: key.description(), Metrics: Metrics{}}
	}
	return doc
}

// UpgradeV1 wraps flat legacy metrics as the general partition and adds
// empty morning and evening partitions.
func UpgradeV1(userID int64, ts time.Time, flat Metrics) Document {
	doc := NewDocument(userID, ts)
	doc.SourceVersion = 1
	doc.Partitions[ContextGeneral] = Partition{Description: migratedGeneralDescription, Metrics: flat.Clone()}
	return doc
}

// Metrics returns the metrics of the named partition, or nil when it is absent.
func (d Document) Metrics(key ContextKey) Metrics {
	return d.Partitions[key].Metrics
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := d
	out.Partitions = make(map[ContextKey]Partition, len(d.Partitions))
	for key, part := range d.Partitions {
		out.Partitions[key] = Partition{Description: part.Description, Metrics: part.Metrics.Clone()}
	}
	return out
}

// mergeInto overlays updates onto the named partition, creating it when needed.
func (d Document) mergeInto(key ContextKey, updates Metrics) {
	part, ok := d.Partitions[key]
	if !ok {
		part = Partition{Description: key.description()}
	}
	merged := part.Metrics.Clone()
	maps.Copy(merged, updates)
	part.Metrics = merged
	d.Partitions[key] = part
}

type wireDocument struct {
	UserID            int64                    `json:"user_id"`
	Timestamp         string                   `json:"timestamp"`
	SchemaVersion     *int                     `json:"schema_version,omitempty"`
	Metrics           Metrics                  `json:"metrics,omitempty"`
	ContextPartitions map[ContextKey]Partition `json:"context_partitions,omitempty"`
}

// Decode parses a stored baseline and upgrades legacy layouts. storedVersion
// is the version indexed alongside the document; a version embedded in the
// body takes precedence. A partitioned document always comes back with a
// general partition.
func Decode(body []byte, storedVersion int) (Document, error) {
	var wire wireDocument
	if err := json.Unmarshal(body, &wire); err != nil {
		return Document{}, fmt.Errorf("decode baseline document: %w", err)
	}
	version := storedVersion
	if wire.SchemaVersion != nil {
		version = *wire.SchemaVersion
	}
	var ts time.Time
	if parsed, ok := ParseTimestamp(wire.Timestamp); ok {
		ts = parsed
	}

	if version < SchemaVersion {
		return UpgradeV1(wire.UserID, ts, wire.Metrics), nil
	}

	doc := Document{UserID: wire.UserID, Timestamp: ts, SourceVersion: version, Partitions: map[ContextKey]Partition{}}
	for key, part := range wire.ContextPartitions {
		doc.Partitions[key] = Partition{Description: part.Description, Metrics: part.Metrics.Clone()}
	}
	if _, ok := doc.Partitions[ContextGeneral]; !ok {
		doc.Partitions[ContextGeneral] = Partition{Description: generalDescription, Metrics: Metrics{}}
	}
	return doc, nil
}

// Encode serializes the document in the partitioned layout.
func Encode(doc Document) ([]byte, error) {
	version := SchemaVersion
	partitions := make(map[ContextKey]Partition, len(doc.Partitions))
	for key, part := range doc.Partitions {
		if part.Metrics == nil {
			part.Metrics = Metrics{}
		}
		partitions[key] = part
	}
	if _, ok := partitions[ContextGeneral]; !ok {
		partitions[ContextGeneral] = Partition{Description: generalDescription, Metrics: Metrics{}}
	}
	return json.Marshal(wireDocument{
		UserID:            doc.UserID,
		Timestamp:         formatTimestamp(doc.Timestamp),
		SchemaVersion:     &version,
		ContextPartitions: partitions,
	})
}

// EncodeV1 serializes the general partition as a legacy flat document.
func EncodeV1(doc Document) ([]byte, error) {
	flat := doc.Metrics(ContextGeneral).Clone()
	return json.Marshal(struct {
		UserID    int64   `json:"user_id"`
		Timestamp string  `json:"timestamp"`
		Metrics   Metrics `json:"metrics"`
	}{doc.UserID, formatTimestamp(doc.Timestamp), flat})
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format(time.RFC3339Nano)
}
