package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// isoNaive is the offset-less layout older state files were written with.
const isoNaive = "2006-01-02T15:04:05.999999"

// Timestamp is a record time as kept in the state files. Besides RFC 3339 it
// reads offset-less ISO 8601 ("2024-05-02T10:15:30.123456"); such values carry
// no zone and are placed in one by Resolve.
type Timestamp struct {
	time.Time
	naive bool
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// Resolve returns the instant, reading an offset-less wall time in loc.
func (t Timestamp) Resolve(loc *time.Location) time.Time {
	if !t.naive || t.IsZero() {
		return t.Time
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// Naive reports whether the value was read without a UTC offset.
func (t Timestamp) Naive() bool {
	return t.naive
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	if t.naive {
		return json.Marshal(t.Format(isoNaive))
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}

	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		*t = Timestamp{Time: parsed}
		return nil
	}

	parsed, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", s, err)
	}
	*t = Timestamp{Time: parsed, naive: true}
	return nil
}

// Value stores the instant. Offset-less values should be resolved first.
func (t Timestamp) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Time, nil
}

func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = Timestamp{}
	case time.Time:
		*t = Timestamp{Time: v}
	default:
		return fmt.Errorf("timestamp: cannot scan %T", src)
	}
	return nil
}
