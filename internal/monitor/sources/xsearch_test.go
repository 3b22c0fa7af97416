package sources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func searchBody() string {
	media := `{"__typename":"Tweet","rest_id":"1","core":{"user_results":{"result":{"core":{"name":"Alice","screen_name":"alice"},"legacy":{"followers_count":10}}}},"legacy":{"extended_entities":{"media":[{"type":"photo"}]}}}`
	plain := `{"__typename":"Tweet","rest_id":"2","core":{"user_results":{"result":{"core":{"name":"Bob","screen_name":"bob"},"legacy":{"followers_count":20}}}},"legacy":{}}`
	again := `{"__typename":"Tweet","rest_id":"3","core":{"user_results":{"result":{"core":{"name":"Alice Renamed","screen_name":"alice"},"legacy":{"followers_count":99}}}},"legacy":{}}`
	return `{"data":{"search_by_raw_query":{"search_timeline":{"timeline":` + timelineJSON(media, plain, again) + `}}}}`
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func testSearch(srv *httptest.Server, now time.Time, rec *sleepRecorder) *XSearch {
	return &XSearch{
		client:  srv.Client(),
		baseURL: srv.URL,
		now:     func() time.Time { return now },
		sleep:   rec.sleep,
	}
}

func TestXSearchAggregates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-remaining", "49")
		_, _ = w.Write([]byte(searchBody()))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	m, err := testSearch(srv, time.Now(), rec).Search(context.Background(), "PAIR1")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if !m.Success {
		t.Error("success = false, want true")
	}
	if m.TotalPosts != 3 || m.TotalMediaPosts != 1 || m.TotalNormalPosts != 2 {
		t.Errorf("counts = %d/%d/%d, want 3/1/2", m.TotalPosts, m.TotalMediaPosts, m.TotalNormalPosts)
	}
	if m.UniqueAuthorCount != 2 {
		t.Errorf("unique_authors_count = %d, want 2", m.UniqueAuthorCount)
	}
	if a := m.UniqueAuthors["alice"]; a.Name != "Alice" || a.Followers != 10 {
		t.Errorf("alice = %+v, want first occurrence", a)
	}
	if len(rec.calls) != 0 {
		t.Errorf("sleep called %d times, want 0", len(rec.calls))
	}
}

func TestXSearchRateLimitRetry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("x-rate-limit-remaining", "0")
			w.Header().Set("x-rate-limit-reset", strconv.FormatInt(now.Add(30*time.Second).Unix(), 10))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(searchBody()))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	m, err := testSearch(srv, now, rec).Search(context.Background(), "PAIR1")
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("requests = %d, want 2", hits.Load())
	}
	if len(rec.calls) != 1 || rec.calls[0] != 30*time.Second {
		t.Errorf("sleeps = %v, want [30s]", rec.calls)
	}
	if m.TotalPosts != 3 {
		t.Errorf("total_posts_count = %d, want 3", m.TotalPosts)
	}
}

func TestXSearchRateLimitTwice(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("x-rate-limit-remaining", "0")
		_, _ = w.Write([]byte(searchBody()))
	}))
	defer srv.Close()

	rec := &sleepRecorder{}
	m, err := testSearch(srv, time.Now(), rec).Search(context.Background(), "PAIR1")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if hits.Load() != 2 {
		t.Errorf("requests = %d, want exactly one retry", hits.Load())
	}
	if len(rec.calls) != 1 || rec.calls[0] != minRateLimitWait {
		t.Errorf("sleeps = %v, want [%v] when reset is missing", rec.calls, minRateLimitWait)
	}
	if m.Success || m.TotalPosts != 0 {
		t.Errorf("metrics = %+v, want empty", m)
	}
}

func TestXSearchWaitCapped(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &XSearch{now: func() time.Time { return now }}
	h := http.Header{}
	h.Set("x-rate-limit-remaining", "0")
	h.Set("x-rate-limit-reset", strconv.FormatInt(now.Add(2*time.Hour).Unix(), 10))

	wait, limited := s.rateLimitWait(h)
	if !limited {
		t.Fatal("limited = false, want true")
	}
	if wait != maxRateLimitWait {
		t.Errorf("wait = %v, want %v", wait, maxRateLimitWait)
	}

	h.Set("x-rate-limit-remaining", "3")
	if _, limited := s.rateLimitWait(h); limited {
		t.Error("limited = true with remaining quota")
	}
}

func TestXSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m, err := testSearch(srv, time.Now(), &sleepRecorder{}).Search(context.Background(), "PAIR1")
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if m.UniqueAuthors == nil {
		t.Error("unique_authors should be an empty map, not nil")
	}
}

func TestXSearchEmptyQuery(t *testing.T) {
	s := NewXSearch(nil)
	if _, err := s.Search(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty query")
	}
}
