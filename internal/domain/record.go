package domain

import (
	"time"

	"github.com/cockroachdb/apd/v3"
	jsoniter "github.com/json-iterator/go"
)

// TimestampLayout is the fixed textual form of Record.Timestamp (UTC, second precision).
const TimestampLayout = "2006-01-02 15:04:05"

// Metadata is a free-form tag attached to a record. Values are strings or numbers.
type Metadata map[string]any

// Clone returns an independent copy; nil stays nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var metaJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON serializes m with sorted keys; empty metadata renders as "{}".
func (m Metadata) JSON() (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	return metaJSON.MarshalToString(m)
}

// ParseMetadata is the inverse of Metadata.JSON. Numbers decode as float64.
func ParseMetadata(s string) (Metadata, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m Metadata
	if err := metaJSON.UnmarshalFromString(s, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Merge returns a new Metadata holding m overlaid with extra.
func (m Metadata) Merge(extra Metadata) Metadata {
	if len(extra) == 0 {
		return m.Clone()
	}
	out := make(Metadata, len(m)+len(extra))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Record is the canonical unit forwarded to the remote sink.
type Record struct {
	Timestamp time.Time
	Value     *apd.Decimal
	Raw       string
	Metadata  Metadata
}

// HasValue reports whether the record carries a parsed measurement.
func (r *Record) HasValue() bool {
	return r != nil && r.Value != nil
}

// ValueText renders the value as plain decimal text (never exponent notation).
func (r *Record) ValueText() string {
	if !r.HasValue() {
		return ""
	}
	return r.Value.Text('f')
}

// Clone deep-copies the value and metadata.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{Timestamp: r.Timestamp, Raw: r.Raw, Metadata: r.Metadata.Clone()}
	if r.Value != nil {
		out.Value = new(apd.Decimal).Set(r.Value)
	}
	return out
}

// TimestampText renders the timestamp in TimestampLayout.
func (r *Record) TimestampText() string {
	return r.Timestamp.UTC().Format(TimestampLayout)
}

// Reading is a raw payload as produced by a collector, before parsing.
type Reading struct {
	Raw        string
	Tag        Metadata
	ReceivedAt time.Time
}

// IngestTime truncates t to the record timestamp precision.
func IngestTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
