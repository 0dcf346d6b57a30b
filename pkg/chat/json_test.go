package chat

import "testing"

func TestUnmarshalJSON_Repair(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"valid", `{"name": "a", "value": 1}`},
		{"trailing comma", `{"name": "a", "value": 1,}`},
		{"unquoted keys", `{name: "a", value: 1}`},
		{"single quotes", `{'name': 'a', 'value': 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var arg TestArg
			if err := unmarshalJSON([]byte(tt.data), &arg); err != nil {
				t.Fatalf("unmarshalJSON(%q) error: %v", tt.data, err)
			}
			if arg.Name != "a" || arg.Value != 1 {
				t.Errorf("arg = %+v", arg)
			}
		})
	}
}

func TestUnmarshalJSON_TypeError(t *testing.T) {
	// Type mismatches are not syntax errors and must not be repaired away.
	var arg TestArg
	if err := unmarshalJSON([]byte(`{"name": 42}`), &arg); err == nil {
		t.Error("expected a type error")
	}
}

func TestAsJSONString(t *testing.T) {
	s, err := asJSONString("already a string")
	if err != nil || s != "already a string" {
		t.Errorf("string passthrough = %q, %v", s, err)
	}

	s, err = asJSONString(map[string]int{"n": 3})
	if err != nil || s != `{"n":3}` {
		t.Errorf("map = %q, %v", s, err)
	}

	s, err = asJSONString(nil)
	if err != nil || s != "null" {
		t.Errorf("nil = %q, %v", s, err)
	}
}

func TestHexString(t *testing.T) {
	a, b := hexString(), hexString()
	if len(a) != 16 {
		t.Errorf("len = %d, want 16", len(a))
	}
	if a == b {
		t.Error("two ids should differ")
	}
}
