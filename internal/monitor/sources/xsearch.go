package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/web3-frozen/pair-dashboard/internal/metrics"
	"github.com/web3-frozen/pair-dashboard/internal/record"
)

const (
	searchCount   = 20
	searchProduct = "Top"

	minRateLimitWait = 1 * time.Second
	maxRateLimitWait = 15 * time.Minute
)

// ErrRateLimited is returned when the search quota is still exhausted after
// the single retry.
var ErrRateLimited = errors.New("x search: rate limited")

type searchResp struct {
	Data struct {
		SearchByRawQuery struct {
			SearchTimeline struct {
				Timeline struct {
					Instructions []xInstruction `json:"instructions"`
				} `json:"timeline"`
			} `json:"search_timeline"`
		} `json:"search_by_raw_query"`
	} `json:"data"`
}

// XSearch is the social-search-metrics adapter.
type XSearch struct {
	client  *http.Client
	baseURL string
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

func NewXSearch(client *http.Client) *XSearch {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &XSearch{
		client:  client,
		baseURL: xGraphQLAPI,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func (s *XSearch) Name() string { return "x_search" }

// Search runs query and aggregates the matching posts. When the response
// reports an exhausted quota it waits until the reset time and retries
// exactly once.
func (s *XSearch) Search(ctx context.Context, query string) (record.SearchMetrics, error) {
	if query == "" {
		return record.EmptySearchMetrics(), errors.New("x search: empty query")
	}

	body, wait, err := s.do(ctx, query)
	if err == nil && wait > 0 {
		metrics.SearchRateLimitedTotal.Inc()
		if err := s.sleep(ctx, wait); err != nil {
			return record.EmptySearchMetrics(), err
		}
		body, wait, err = s.do(ctx, query)
		if err == nil && wait > 0 {
			metrics.SearchRateLimitedTotal.Inc()
			return record.EmptySearchMetrics(), ErrRateLimited
		}
	}
	if err != nil {
		return record.EmptySearchMetrics(), err
	}
	return aggregateSearch(body), nil
}

// do performs one request. A positive wait means the quota is exhausted and
// body must be ignored.
func (s *XSearch) do(ctx context.Context, query string) (*searchResp, time.Duration, error) {
	vars := map[string]any{
		"rawQuery":    query,
		"count":       searchCount,
		"querySource": "",
		"product":     searchProduct,
	}
	q := url.Values{"variables": {mustJSON(vars)}, "features": {xFeatures}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/"+opSearchTimeline+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("x search API: %w", err)
	}
	defer resp.Body.Close()

	if wait, limited := s.rateLimitWait(resp.Header); limited {
		return nil, wait, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("x search API status: %d", resp.StatusCode)
	}
	var body searchResp
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("decode x search: %w", err)
	}
	return &body, 0, nil
}

func (s *XSearch) rateLimitWait(h http.Header) (time.Duration, bool) {
	remaining, err := strconv.Atoi(h.Get("x-rate-limit-remaining"))
	if err != nil || remaining > 0 {
		return 0, false
	}
	wait := minRateLimitWait
	if reset, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64); err == nil {
		if d := time.Unix(reset, 0).Sub(s.now()); d > wait {
			wait = d
		}
	}
	if wait > maxRateLimitWait {
		wait = maxRateLimitWait
	}
	return wait, true
}

func aggregateSearch(body *searchResp) record.SearchMetrics {
	m := record.EmptySearchMetrics()
	for _, t := range tweets(body.Data.SearchByRawQuery.SearchTimeline.Timeline.Instructions, false) {
		m.TotalPosts++
		if len(t.Legacy.ExtendedEntities.Media) > 0 {
			m.TotalMediaPosts++
		} else {
			m.TotalNormalPosts++
		}
		u := t.Core.UserResults.Result
		handle := u.Core.ScreenName
		if handle == "" {
			continue
		}
		if _, ok := m.UniqueAuthors[handle]; !ok {
			m.UniqueAuthors[handle] = record.SearchAuthor{Name: u.Core.Name, Followers: int64(u.Legacy.FollowersCount)}
		}
	}
	m.UniqueAuthorCount = len(m.UniqueAuthors)
	m.Success = true
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
