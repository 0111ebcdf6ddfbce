package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestGetSendsHeadersAndCounts(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := NewFetcher(time.Millisecond, map[string]string{"User-Agent": "test-agent"})
	body, err := f.Get(context.Background(), srv.URL, url.Values{"a": {"1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", body)
	}
	if gotUA != "test-agent" {
		t.Errorf("expected custom User-Agent, got %q", gotUA)
	}
	if f.CallCount() != 1 {
		t.Errorf("expected call count 1, got %d", f.CallCount())
	}
	f.ResetCallCount()
	if f.CallCount() != 0 {
		t.Errorf("expected reset count 0, got %d", f.CallCount())
	}
}

func TestGetAccessDeniedNotRetried(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher(time.Millisecond, nil)
	_, err := f.Get(context.Background(), srv.URL, nil)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if hits != 1 {
		t.Errorf("403 must not be retried, server saw %d hits", hits)
	}
}

func TestGetJSONRetriesMalformedBody(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.Write([]byte("<html>Service Temporarily Unavailable</html>"))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := NewFetcher(time.Millisecond, nil)
	f.backoff = time.Millisecond
	var out map[string]any
	if err := f.GetJSON(context.Background(), srv.URL, nil, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != 2 {
		t.Errorf("expected a retry after the malformed body, server saw %d hits", hits)
	}
	if out["ok"] != true {
		t.Errorf("unexpected decoded body: %v", out)
	}
}

func TestGetJSONPersistentDecodeFailure(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	f := NewFetcher(time.Millisecond, nil)
	f.backoff = time.Millisecond
	var out map[string]any
	err := f.GetJSON(context.Background(), srv.URL, nil, &out)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once retries run out, got %v", err)
	}
	if hits != 3 {
		t.Errorf("expected 3 attempts, server saw %d hits", hits)
	}
}

func TestGetContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFetcher(time.Millisecond, nil)
	if _, err := f.Get(ctx, srv.URL, nil); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
