package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var localZone atomic.Pointer[time.Location]

// SetLocalZone sets the zone applied to ISO timestamps that carry no offset.
// Until it is called such timestamps are read as UTC.
func SetLocalZone(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	localZone.Store(loc)
}

func zone() *time.Location {
	if loc := localZone.Load(); loc != nil {
		return loc
	}
	return time.UTC
}

// Timestamp decodes either epoch milliseconds (number or numeric string) or an
// ISO-8601 string. Anything else decodes to the zero time rather than failing
// the whole record.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	if len(raw) == 0 || string(raw) == "null" {
		t.Time = time.Time{}
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		t.Time = ParseTimestamp(s)
		return nil
	}
	t.Time = ParseTimestamp(string(raw))
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// ParseTimestamp accepts epoch milliseconds or one of the ISO layouts seen
// upstream. Layouts without an offset are read in the zone set by SetLocalZone.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if ms, err := strconv.ParseFloat(s, 64); err == nil {
		if ms <= 0 {
			return time.Time{}
		}
		return time.UnixMilli(int64(ms)).UTC()
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, zone()); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// Marker mirrors notifications.abandoned_cart. Upstream has stored it as a bare
// boolean, as an object with sent_at and as a date string. Only true, an object
// or a non-empty string count as set.
type Marker struct {
	Set    bool
	SentAt Timestamp
}

func (m *Marker) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	*m = Marker{}
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '{':
		var body struct {
			SentAt     Timestamp `json:"sent_at"`
			NotifiedAt Timestamp `json:"notified_at"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return err
		}
		m.Set = true
		m.SentAt = body.SentAt
		if m.SentAt.IsZero() {
			m.SentAt = body.NotifiedAt
		}
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		if s != "" {
			m.Set = true
			m.SentAt = Timestamp{Time: ParseTimestamp(s)}
		}
	case 't':
		m.Set = true
	}
	return nil
}

func (m Marker) MarshalJSON() ([]byte, error) {
	if !m.Set {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		SentAt Timestamp `json:"sent_at"`
	}{SentAt: m.SentAt})
}
