package jsonx

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBase64Bytes(t *testing.T) {
	in := Base64Bytes("hello")
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"aGVsbG8="` {
		t.Errorf("marshal = %s", b)
	}

	var out Base64Bytes
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(out) != "hello" {
		t.Errorf("round trip = %q", out)
	}

	out = Base64Bytes("keep")
	if err := json.Unmarshal([]byte("null"), &out); err != nil {
		t.Fatalf("null: %v", err)
	}
	if string(out) != "keep" {
		t.Errorf("null overwrote value: %q", out)
	}

	if err := json.Unmarshal([]byte(`"!!!"`), &out); err == nil {
		t.Error("invalid base64 accepted")
	}
}

func TestDuration(t *testing.T) {
	d := Duration(90 * time.Second)
	b, _ := json.Marshal(d)
	if string(b) != `"1m30s"` {
		t.Errorf("marshal = %s", b)
	}

	var fromString Duration
	if err := json.Unmarshal([]byte(`"250ms"`), &fromString); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if fromString.Duration() != 250*time.Millisecond {
		t.Errorf("from string = %v", fromString.Duration())
	}

	var fromInt Duration
	if err := json.Unmarshal([]byte(`1500000000`), &fromInt); err != nil {
		t.Fatalf("unmarshal int: %v", err)
	}
	if fromInt.Duration() != 1500*time.Millisecond {
		t.Errorf("from int = %v", fromInt.Duration())
	}

	var nilD *Duration
	if nilD.Duration() != 0 {
		t.Error("nil Duration should read 0")
	}

	if err := json.Unmarshal([]byte(`"not-a-duration"`), &fromString); err == nil {
		t.Error("bad duration accepted")
	}
}

func TestUnixMilli(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	m := UnixMilli(at)
	b, _ := json.Marshal(m)
	if string(b) != "1700000000123" {
		t.Errorf("marshal = %s", b)
	}
	var out UnixMilli
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Time().Equal(at) {
		t.Errorf("round trip = %v, want %v", out.Time(), at)
	}
	if out.IsZero() {
		t.Error("IsZero on non-zero time")
	}
}
