package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/signalstack/signal-engine/internal/cache"
	"github.com/signalstack/signal-engine/internal/models"
)

type stubCache struct {
	mu    sync.Mutex
	store map[string][]byte
	sets  int
}

func newStubCache() *stubCache {
	return &stubCache{store: make(map[string][]byte)}
}

func (s *stubCache) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.store[key]; ok {
		return v, nil
	}
	return nil, cache.ErrCacheMiss
}

func (s *stubCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = value
	s.sets++
	return nil
}

func (s *stubCache) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, key)
	return nil
}

func (s *stubCache) Close() error { return nil }

func newTestClient(baseURL string, provider cache.Provider, ttl time.Duration) *TrackerClient {
	return NewTrackerClient(baseURL, "/search", "/issue", "/events", "/status", "test-token", time.Second, provider, ttl)
}

func TestSearchIssuesDecodesAndCaches(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("auth header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"issues": []map[string]any{
				{"id": "1", "title": "connection refused", "level": "error", "count": 12,
					"last_seen": "2026-08-28T10:00:00Z", "permalink": "https://tracker/1"},
			},
		})
	}))
	defer server.Close()

	provider := newStubCache()
	client := newTestClient(server.URL, provider, time.Minute)

	issues, err := client.SearchIssues(context.Background(), "billing-worker", "trace:abc")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(issues))
	}
	if issues[0].Service != "billing-worker" || issues[0].Count != 12 {
		t.Fatalf("unexpected issue: %+v", issues[0])
	}
	if issues[0].LastSeen.IsZero() {
		t.Fatal("last seen not parsed")
	}

	// Second call is served from cache.
	again, err := client.SearchIssues(context.Background(), "billing-worker", "trace:abc")
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", calls)
	}
	if len(again) != 1 || again[0].ID != "1" {
		t.Fatalf("unexpected cached result: %+v", again)
	}
	if provider.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", provider.sets)
	}
}

func TestFetchIssueFillsProject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.ErrorRecord{
			Title: "TypeError: cannot read property",
			Level: "error",
			Count: 40,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil, 0)
	record, err := client.FetchIssue(context.Background(), "checkout", "ISSUE-9")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if record.Project != "checkout" {
		t.Fatalf("project = %q, want fallback to request project", record.Project)
	}

	if _, err := client.FetchIssue(context.Background(), "checkout", ""); err == nil {
		t.Fatal("expected error for empty issue id")
	}
}

func TestFetchEventTimestamps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"timestamps": []string{"2026-08-28T10:00:00Z", "2026-08-28T10:01:00Z"},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil, 0)
	stamps, err := client.FetchEventTimestamps(context.Background(), "checkout", "ISSUE-9")
	if err != nil {
		t.Fatalf("fetch events: %v", err)
	}
	if len(stamps) != 2 {
		t.Fatalf("timestamps = %d, want 2", len(stamps))
	}
}

func TestUpdateIssueStatus(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil, 0)
	if err := client.UpdateIssueStatus(context.Background(), "checkout", "ISSUE-9", "resolved"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if received["status"] != "resolved" || received["issue_id"] != "ISSUE-9" {
		t.Fatalf("unexpected payload: %v", received)
	}
}

func TestTrackerErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil, 0)
	if _, err := client.SearchIssues(context.Background(), "checkout", "q"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestTrackerRequiresBaseURL(t *testing.T) {
	client := newTestClient("", nil, 0)
	if _, err := client.SearchIssues(context.Background(), "checkout", "q"); err == nil {
		t.Fatal("expected error without base URL")
	}
}
