package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const weatherSpec = `{
  "paths": {
    "/forecast": {
      "get": {
        "operationId": "get_forecast",
        "summary": "Get the forecast for a city",
        "parameters": [
          {"name": "city", "in": "query", "required": true, "schema": {"type": "string"}},
          {"name": "days", "in": "query", "schema": {"type": "integer"}}
        ]
      }
    },
    "/alerts": {
      "post": {
        "operationId": "create_alert",
        "summary": "Create a weather alert",
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "properties": {
                  "city": {"type": "string"},
                  "threshold": {"type": "number"}
                },
                "required": ["city"]
              }
            }
          }
        }
      }
    }
  }
}`

func TestRegisterOpenAPI(t *testing.T) {
	t.Parallel()
	r := quietRegistry()
	n, err := r.RegisterOpenAPI("weather", []byte(weatherSpec), "http://api.example.com", "tok")
	if err != nil {
		t.Fatalf("RegisterOpenAPI: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 tools, got %d", n)
	}

	byName := map[string]ToolSpec{}
	for _, s := range r.List() {
		byName[s.Name] = s
	}
	forecast, ok := byName["get_forecast"]
	if !ok {
		t.Fatalf("get_forecast not registered: %v", byName)
	}
	if !forecast.Parameters["city"].Required {
		t.Fatalf("required query param lost")
	}
	if forecast.Parameters["days"].Required {
		t.Fatalf("optional param marked required")
	}
	alert := byName["create_alert"]
	if !alert.Parameters["city"].Required || alert.Parameters["threshold"].Required {
		t.Fatalf("request body requireds wrong: %+v", alert.Parameters)
	}
}

func TestOpenAPIToolExecutesWithBearerAuth(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing bearer auth: %q", got)
		}
		switch r.URL.Path {
		case "/forecast":
			if r.URL.Query().Get("city") != "Bangkok" {
				t.Errorf("query arg not forwarded: %v", r.URL.Query())
			}
			_, _ = w.Write([]byte(`{"forecast":"sunny"}`))
		case "/alerts":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["city"] != "Bangkok" {
				t.Errorf("body arg not forwarded: %v", body)
			}
			_, _ = w.Write([]byte(`{"created":true}`))
		}
	}))
	defer srv.Close()

	r := quietRegistry()
	if _, err := r.RegisterOpenAPI("weather", []byte(weatherSpec), srv.URL, "tok"); err != nil {
		t.Fatalf("RegisterOpenAPI: %v", err)
	}

	res := r.Execute(context.Background(), ToolCall{Name: "get_forecast", Arguments: map[string]any{"city": "Bangkok"}})
	if !res.Success {
		t.Fatalf("get failed: %+v", res)
	}
	res = r.Execute(context.Background(), ToolCall{Name: "create_alert", Arguments: map[string]any{"city": "Bangkok"}})
	if !res.Success {
		t.Fatalf("post failed: %+v", res)
	}
}

func TestOpenAPIQueryArgsAreEscaped(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("city"); got != "machine learning & AI" {
			t.Errorf("query arg mangled: %q", got)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	r := quietRegistry()
	if _, err := r.RegisterOpenAPI("weather", []byte(weatherSpec), srv.URL, ""); err != nil {
		t.Fatalf("RegisterOpenAPI: %v", err)
	}
	res := r.Execute(context.Background(), ToolCall{
		Name:      "get_forecast",
		Arguments: map[string]any{"city": "machine learning & AI"},
	})
	if !res.Success {
		t.Fatalf("get with reserved characters failed: %+v", res)
	}
}

func TestRegisterOpenAPIFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "weather.json")
	if err := os.WriteFile(path, []byte(weatherSpec), 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	r := quietRegistry()
	n, err := r.RegisterOpenAPIFile("weather", path, "http://api.example.com", "tok")
	if err != nil {
		t.Fatalf("RegisterOpenAPIFile: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 tools, got %d", n)
	}

	if _, err := r.RegisterOpenAPIFile("weather", filepath.Join(t.TempDir(), "missing.json"), "http://x", ""); err == nil {
		t.Fatalf("expected error for missing spec file")
	}
}

func TestRegisterOpenAPIRejectsBadSpecs(t *testing.T) {
	t.Parallel()
	r := quietRegistry()
	if _, err := r.RegisterOpenAPI("x", []byte("not json"), "http://x", ""); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := r.RegisterOpenAPI("x", []byte(`{"paths":{}}`), "http://x", ""); err == nil {
		t.Fatalf("expected empty-paths error")
	}
}
