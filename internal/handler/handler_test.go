package handler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/web3-frozen/pair-dashboard/internal/monitor"
	"github.com/web3-frozen/pair-dashboard/internal/record"
	"github.com/web3-frozen/pair-dashboard/internal/tickstore"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeMarket struct {
	platform record.PlatformData
	err      error
	calls    int
	pairs    []string
}

func (m *fakeMarket) Name() string { return "axiom" }

func (m *fakeMarket) FetchPlatform(_ context.Context, pair string, _ float64) (record.PlatformData, error) {
	m.calls++
	m.pairs = append(m.pairs, pair)
	return m.platform, m.err
}

type fakePipeline struct {
	mu          sync.Mutex
	market      monitor.MarketSource
	active      bool
	activations int
	started     time.Time
	search      bool
}

func (p *fakePipeline) Market(record.MarketVendor) (monitor.MarketSource, bool) {
	return p.market, p.market != nil
}

func (p *fakePipeline) Activate(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		return false
	}
	p.active = true
	p.activations++
	p.started = time.Now().Add(-time.Minute)
	return true
}

func (p *fakePipeline) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *fakePipeline) StartedAt() time.Time { return p.started }

func (p *fakePipeline) SetSearchEnabled(on bool) { p.search = on }

func (p *fakePipeline) SearchEnabled() bool { return p.search }

type fakePrices struct {
	price     float64
	refreshed int
	started   int
}

func (p *fakePrices) Get() float64 { return p.price }

func (p *fakePrices) Refresh(context.Context) error {
	p.refreshed++
	p.price = 150
	return nil
}

func (p *fakePrices) Start(context.Context, time.Duration) { p.started++ }

type fakeAlerts struct {
	patterns []string
}

func (a *fakeAlerts) ClearByPattern(_ context.Context, pattern string) {
	a.patterns = append(a.patterns, pattern)
}

func openLog(t *testing.T) *tickstore.Store {
	t.Helper()
	st, err := tickstore.Open(t.TempDir(), "PAIR1", tickstore.DefaultRetention, discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}

func appendTick(t *testing.T, st *tickstore.Store, i int, mc float64) {
	t.Helper()
	rec := &record.Record{
		Timestamp:    testNow.Add(time.Duration(i) * 3 * time.Second),
		MarketVendor: record.VendorAxiom,
		SocialKind:   record.KindPost,
		Social: record.SocialData{
			Kind: record.KindPost,
			Post: &record.PostData{Post: record.Post{ID: "9", Views: 100, Favorites: 7}},
		},
	}
	rec.Platform.MarketCapUSD = mc
	rec.Platform.NumHolders = int64(100 + i)
	if err := st.Append(rec); err != nil {
		t.Fatalf("append: %v", err)
	}
}
