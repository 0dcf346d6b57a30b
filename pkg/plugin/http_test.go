package plugin

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func httpPluginWith(t *testing.T, client *http.Client, defs ...map[string]any) *HTTP {
	t.Helper()
	p := NewHTTP(client)
	if err := p.Configure(map[string]any{"tools": defs}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return p
}

func TestHTTP_PostWithTransforms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sekrit" {
			t.Errorf("auth = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("request body: %v", err)
		}
		if req["city"] != "Oslo" {
			t.Errorf("body = %s", body)
		}
		fmt.Fprint(w, `{"data":{"temp_c":7.5,"wind":"NW"},"meta":{"id":1}}`)
	}))
	defer srv.Close()

	t.Setenv("WEATHER_TOKEN", "sekrit")

	p := httpPluginWith(t, srv.Client(), map[string]any{
		"name":         "get_weather",
		"description":  "Current weather for a city",
		"endpoint":     srv.URL + "/weather",
		"bearer_token": "${WEATHER_TOKEN}",
		"request":      `{city: .location}`,
		"response":     `.data`,
	})

	result, err := invokeTool(t, p, "get_weather", `{"location":"Oslo"}`)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("result type = %T", result)
	}
	if m["temp_c"] != 7.5 || m["wind"] != "NW" {
		t.Errorf("result = %v", m)
	}
}

func TestHTTP_GetHasNoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if body, _ := io.ReadAll(r.Body); len(body) != 0 {
			t.Errorf("unexpected body %q", body)
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	p := httpPluginWith(t, srv.Client(), map[string]any{
		"name":        "ping",
		"description": "ping",
		"method":      "GET",
		"endpoint":    srv.URL,
	})

	result, err := invokeTool(t, p, "ping", `{}`)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if result.(map[string]any)["ok"] != true {
		t.Errorf("result = %v", result)
	}
}

func TestHTTP_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	p := httpPluginWith(t, srv.Client(), map[string]any{
		"name":        "denied",
		"description": "always denied",
		"endpoint":    srv.URL,
	})

	_, err := invokeTool(t, p, "denied", `{}`)
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Errorf("err = %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "nope") {
		t.Errorf("error should carry the body: %v", err)
	}
}

func TestHTTP_ConfigureValidation(t *testing.T) {
	p := NewHTTP(nil)
	if err := p.Configure(map[string]any{"tools": []map[string]any{{"description": "x", "endpoint": "http://x"}}}); err == nil {
		t.Error("missing name should be rejected")
	}
	if err := p.Configure(map[string]any{"tools": []map[string]any{{"name": "x"}}}); err == nil {
		t.Error("missing endpoint should be rejected")
	}
	if err := p.Configure(map[string]any{"tools": []map[string]any{{"name": "x", "endpoint": "http://x", "request": ".[bad"}}}); err == nil {
		t.Error("bad jq should be rejected at load time")
	}
}
