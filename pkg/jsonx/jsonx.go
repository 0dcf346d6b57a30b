// Package jsonx provides JSON wire helper types shared by the realtime,
// voice, and catalog payloads: base64 byte blobs, flexible durations, and
// millisecond timestamps.
package jsonx

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Base64Bytes is a byte slice carried as standard base64 in JSON. The
// Realtime API transports PCM audio this way.
type Base64Bytes []byte

// MarshalJSON implements json.Marshaler.
func (b Base64Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(b))
}

// UnmarshalJSON implements json.Unmarshaler. null leaves the slice
// untouched.
func (b *Base64Bytes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("jsonx: base64 field: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("jsonx: base64 field: %w", err)
	}
	*b = raw
	return nil
}

// String returns the base64 form.
func (b Base64Bytes) String() string {
	return base64.StdEncoding.EncodeToString(b)
}

// Duration is a time.Duration that marshals to its string form ("1m30s")
// and unmarshals from either that form or integer nanoseconds.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		dur, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("jsonx: duration %q: %w", s, err)
		}
		*d = Duration(dur)
		return nil
	}
	var ns int64
	if err := json.Unmarshal(b, &ns); err != nil {
		return err
	}
	*d = Duration(ns)
	return nil
}

// MarshalText implements encoding.TextMarshaler, so YAML codecs emit
// the string form too.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	dur, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("jsonx: duration %q: %w", b, err)
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration. A nil receiver reads as 0.
func (d *Duration) Duration() time.Duration {
	if d == nil {
		return 0
	}
	return time.Duration(*d)
}

func (d Duration) String() string { return time.Duration(d).String() }

// UnixMilli is a time.Time carried as Unix milliseconds in JSON.
type UnixMilli time.Time

// NowMilli returns the current time as UnixMilli.
func NowMilli() UnixMilli { return UnixMilli(time.Now()) }

// Time returns the underlying time.Time.
func (m UnixMilli) Time() time.Time { return time.Time(m) }

// IsZero reports whether m is the zero instant.
func (m UnixMilli) IsZero() bool { return time.Time(m).IsZero() }

// MarshalJSON implements json.Marshaler.
func (m UnixMilli) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(m).UnixMilli())
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *UnixMilli) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	*m = UnixMilli(time.UnixMilli(ms))
	return nil
}

func (m UnixMilli) String() string { return time.Time(m).String() }
