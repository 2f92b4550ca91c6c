package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// knownFields enumerates every field a RawEvent payload may carry
// besides its envelope (event_id, timestamp, user_id, source,
// source_name). Keeping this explicit (rather than dumping the whole
// map generically) lets the codec preserve absent-vs-zero semantics
// precisely: a field only appears in Fields if the JSON key was present.
var knownFields = []string{
	"heart_rate", "hrv_ms", "spo2_percent", "skin_temp_c",
	"respiratory_rate", "activity_level", "steps_per_minute",
	"calories_per_minute", "sleep_quality",
}

// timestampLayouts covers both the millisecond-precision layout this
// package emits and the bare RFC3339 layout producers/tests commonly use.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	time.RFC3339Nano,
	time.RFC3339,
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// MarshalJSON flattens the sparse field map alongside the envelope, so
// only observed fields are present on the wire.
func (e RawEvent) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"event_id":    e.EventID,
		"timestamp":   e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		"user_id":     e.UserID,
		"source":      string(e.Source),
		"source_name": e.SourceName,
	}
	for k, v := range e.Fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the envelope plus whichever known metric keys
// are present, leaving unsupported/absent fields out of Fields
// entirely.
func (e *RawEvent) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode raw event envelope: %w", err)
	}

	if v, ok := raw["event_id"]; ok {
		_ = json.Unmarshal(v, &e.EventID)
	}
	if v, ok := raw["user_id"]; ok {
		_ = json.Unmarshal(v, &e.UserID)
	}
	if v, ok := raw["source"]; ok {
		var s string
		_ = json.Unmarshal(v, &s)
		e.Source = SourceID(s)
	}
	if v, ok := raw["source_name"]; ok {
		_ = json.Unmarshal(v, &e.SourceName)
	}
	if v, ok := raw["timestamp"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("decode timestamp: %w", err)
		}
		ts, err := parseTimestamp(s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		e.Timestamp = ts
	}

	e.Fields = make(map[string]float64)
	for _, field := range knownFields {
		v, ok := raw[field]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			continue
		}
		e.Fields[field] = f
	}

	return nil
}

// Normalise fills source_name from Registry when a decoded message
// omits it and its source_id is known. It does not fill source_id;
// the ingestion handler sets that from its own source before calling
// Normalise.
func Normalise(e RawEvent) RawEvent {
	if e.SourceName == "" {
		if profile, ok := Registry[e.Source]; ok {
			e.SourceName = profile.SourceName
		}
	}
	return e
}
