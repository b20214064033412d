package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoJSONRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "upstream busy", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(5*time.Second, 3, time.Millisecond)
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, &out); err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected decoded body")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestDoJSONResendsBodyOnRetry(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := make([]byte, 64)
		n, _ := r.Body.Read(b)
		if n == 0 {
			t.Errorf("attempt %d received empty body", atomic.LoadInt32(&calls))
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(5*time.Second, 1, time.Millisecond)
	err := c.DoJSON(context.Background(), http.MethodPost, srv.URL, nil, map[string]string{"q": "golang"}, nil)
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
}

func TestDoJSONReturnsLastError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(time.Second, 1, time.Millisecond)
	err := c.DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
	if err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
}

func TestDoJSONHonoursContextCancel(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(time.Second, 5, time.Hour)
	err := c.DoJSON(ctx, http.MethodGet, srv.URL, nil, nil, nil)
	if err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

func TestBearerHeader(t *testing.T) {
	t.Parallel()
	h := BearerHeader("tok", map[string]string{"Accept": "application/json"})
	if h["Authorization"] != "Bearer tok" {
		t.Fatalf("unexpected auth header: %q", h["Authorization"])
	}
	if h["Accept"] != "application/json" {
		t.Fatalf("extras not merged")
	}
	if _, ok := BearerHeader("", nil)["Authorization"]; ok {
		t.Fatalf("empty token must not set Authorization")
	}
}
