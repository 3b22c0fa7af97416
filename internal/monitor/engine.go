package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/web3-frozen/pair-dashboard/internal/derive"
	"github.com/web3-frozen/pair-dashboard/internal/metrics"
	"github.com/web3-frozen/pair-dashboard/internal/record"
	"github.com/web3-frozen/pair-dashboard/internal/runconfig"
)

const (
	DefaultFetchInterval  = 3 * time.Second
	DefaultSearchInterval = 10 * time.Second
	DefaultRetryDelay     = 5 * time.Second

	archiveTimeout = 5 * time.Second
)

// Options tunes the polling loop.
type Options struct {
	FetchInterval  time.Duration
	SearchInterval time.Duration
	RetryDelay     time.Duration
	FibFloor       float64
}

func (o Options) withDefaults() Options {
	if o.FetchInterval <= 0 {
		o.FetchInterval = DefaultFetchInterval
	}
	if o.SearchInterval <= 0 {
		o.SearchInterval = DefaultSearchInterval
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.FibFloor <= 0 {
		o.FibFloor = derive.DefaultFibFloor
	}
	return o
}

// Scheduler is the polling loop. It stays dormant until Activate is called
// with a configuration in place, then ticks until its context ends.
type Scheduler struct {
	cfg       *runconfig.Holder
	markets   map[record.MarketVendor]MarketSource
	social    SocialSource
	search    SearchSource
	prices    *PriceCache
	store     Store
	exit      *ExitMonitor
	publisher Publisher
	archive   Archiver
	logger    *slog.Logger
	opts      Options
	now       func() time.Time

	active        atomic.Bool
	startedAt     atomic.Int64
	searchEnabled atomic.Bool

	// owned by the loop goroutine
	pair       string
	peak       float64
	lastSearch time.Time
}

// Deps groups the collaborators of a Scheduler. Publisher and Archive are
// optional.
type Deps struct {
	Config    *runconfig.Holder
	Social    SocialSource
	Search    SearchSource
	Prices    *PriceCache
	Store     Store
	Exit      *ExitMonitor
	Publisher Publisher
	Archive   Archiver
}

func NewScheduler(deps Deps, opts Options, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		cfg:       deps.Config,
		markets:   make(map[record.MarketVendor]MarketSource),
		social:    deps.Social,
		search:    deps.Search,
		prices:    deps.Prices,
		store:     deps.Store,
		exit:      deps.Exit,
		publisher: deps.Publisher,
		archive:   deps.Archive,
		logger:    logger,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
	s.searchEnabled.Store(true)
	return s
}

// Register adds the market adapter serving vendor.
func (s *Scheduler) Register(vendor record.MarketVendor, src MarketSource) {
	s.markets[vendor] = src
	s.logger.Info("registered source", "vendor", vendor, "source", src.Name())
}

// Market returns the adapter for vendor, used by the configuration call to
// discover the social link before activation.
func (s *Scheduler) Market(vendor record.MarketVendor) (MarketSource, bool) {
	src, ok := s.markets[vendor]
	return src, ok
}

// Activate starts the loop on the first call and reports whether it did.
// Later calls are no-ops; the running loop picks up configuration changes
// from the holder on its next tick.
func (s *Scheduler) Activate(ctx context.Context) bool {
	if !s.active.CompareAndSwap(false, true) {
		return false
	}
	s.startedAt.Store(s.now().UnixNano())
	go s.Run(ctx)
	return true
}

// Active reports whether the loop has been started.
func (s *Scheduler) Active() bool { return s.active.Load() }

// StartedAt returns when the loop was activated, or the zero time.
func (s *Scheduler) StartedAt() time.Time {
	ns := s.startedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// SetSearchEnabled toggles the search adapter.
func (s *Scheduler) SetSearchEnabled(on bool) { s.searchEnabled.Store(on) }

func (s *Scheduler) SearchEnabled() bool { return s.searchEnabled.Load() }

// Run ticks until ctx is cancelled. A failed tick is retried after
// RetryDelay instead of FetchInterval.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		"fetch_interval", s.opts.FetchInterval,
		"search_interval", s.opts.SearchInterval)

	for ctx.Err() == nil {
		delay := s.opts.FetchInterval
		if err := s.safeTick(ctx); err != nil {
			metrics.TickErrorsTotal.Inc()
			s.logger.Error("tick failed", "error", err, "retry_in", s.opts.RetryDelay)
			delay = s.opts.RetryDelay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in tick", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	_, err = s.Tick(ctx)
	return err
}

// Tick runs one fetch, merge, persist and publish cycle and returns the
// record it appended.
func (s *Scheduler) Tick(ctx context.Context) (*record.Record, error) {
	rc := s.cfg.Load()
	if rc == nil {
		return nil, fmt.Errorf("no run configuration")
	}
	market, ok := s.markets[rc.MarketVendor]
	if !ok {
		return nil, fmt.Errorf("no market source for %q", rc.MarketVendor)
	}
	if rc.PairAddress != s.pair {
		if err := s.switchPair(rc.PairAddress); err != nil {
			return nil, err
		}
	}

	rec, err := s.collect(ctx, rc, market)
	if err != nil {
		return nil, err
	}

	rec.Platform.FibLevel62, rec.Platform.FibLevel50 = derive.FibonacciLevels([]float64{s.peak}, s.opts.FibFloor)
	rec.AuthorFollowers = derive.UniqueAuthors(rec.Social)
	rec.UniqueAuthorsCount = len(rec.AuthorFollowers)
	mc := rec.Platform.MarketCapUSD
	if mc > s.peak {
		s.peak = mc
	}

	if err := s.store.Append(rec); err != nil {
		s.logger.Error("append tick failed", "pair", rc.PairAddress, "error", err)
	}
	if err := s.store.Rotate(); err != nil {
		s.logger.Warn("rotate shards failed", "error", err)
	}
	s.mirror(ctx, rc.PairAddress, rec)
	if s.publisher != nil {
		s.publisher.Publish(rec)
	}

	metrics.MarketCapUSD.Set(mc)
	metrics.Holders.Set(float64(rec.Platform.TotalHolders))
	s.logger.Debug("tick",
		"pair", rc.PairAddress,
		"market_cap_usd", mc,
		"holders", rec.Platform.TotalHolders,
		"unique_authors", rec.UniqueAuthorsCount,
		"search", rec.SearchMetrics != nil)

	if s.exit != nil {
		s.exit.Observe(ctx, mc, s.now())
	}
	return rec, nil
}

// collect fetches every fragment concurrently. Adapter errors are logged
// and counted; the fragments they return are used as-is. Only a panicking
// adapter fails the tick.
func (s *Scheduler) collect(ctx context.Context, rc *runconfig.RunConfig, market MarketSource) (*record.Record, error) {
	now := s.now()
	rec := &record.Record{
		MarketVendor: rc.MarketVendor,
		SocialKind:   rc.Social.Kind,
		Social:       record.EmptySocial(rc.Social.Kind),
	}

	var g errgroup.Group
	g.Go(guard(market.Name(), func() {
		start := time.Now()
		p, err := market.FetchPlatform(ctx, rc.PairAddress, s.prices.Get())
		s.fetched(market.Name(), start, err)
		rec.Platform = p
	}))
	g.Go(guard(s.social.Name(), func() {
		start := time.Now()
		d, err := s.social.FetchSocial(ctx, rc.Social)
		s.fetched(s.social.Name(), start, err)
		if d.Kind == rc.Social.Kind {
			rec.Social = d
		}
	}))
	if s.searchDue(now) {
		s.lastSearch = now
		g.Go(guard(s.search.Name(), func() {
			start := time.Now()
			m, err := s.search.Search(ctx, rc.SearchQuery)
			s.fetched(s.search.Name(), start, err)
			rec.SearchMetrics = &m
		}))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Stamped after the fetches so search metrics never postdate the record.
	rec.Timestamp = s.now().UTC()
	return rec, nil
}

func guard(source string, fn func()) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: panic: %v", source, r)
			}
		}()
		fn()
		return nil
	}
}

func (s *Scheduler) searchDue(now time.Time) bool {
	if s.search == nil || !s.searchEnabled.Load() {
		return false
	}
	return s.lastSearch.IsZero() || now.Sub(s.lastSearch) >= s.opts.SearchInterval
}

func (s *Scheduler) fetched(source string, start time.Time, err error) {
	observePoll(source, start, err)
	if err != nil {
		s.logger.Error("fetch failed", "source", source, "error", err)
	}
}

// switchPair points the store at pair and seeds the running peak from the
// records already logged for it.
func (s *Scheduler) switchPair(pair string) error {
	if err := s.store.Retarget(pair); err != nil {
		return fmt.Errorf("retarget store: %w", err)
	}
	var peak float64
	if err := s.store.Scan(func(r record.Record) {
		if r.Platform.MarketCapUSD > peak {
			peak = r.Platform.MarketCapUSD
		}
	}); err != nil {
		s.logger.Warn("seed peak failed", "pair", pair, "error", err)
	}
	s.pair = pair
	s.peak = peak
	if s.exit != nil {
		s.exit.Reset(pair)
	}
	s.logger.Info("tracking pair", "pair", pair, "peak_market_cap", peak)
	return nil
}

func (s *Scheduler) mirror(ctx context.Context, pair string, rec *record.Record) {
	if s.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()
	if err := s.archive.Archive(ctx, pair, rec); err != nil {
		metrics.ArchiveErrorsTotal.Inc()
		s.logger.Warn("archive tick failed", "pair", pair, "error", err)
	}
}

func observePoll(source string, start time.Time, err error) {
	metrics.PollDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PollTotal.WithLabelValues(source, "error").Inc()
		return
	}
	metrics.PollTotal.WithLabelValues(source, "ok").Inc()
	metrics.PollLastSuccess.WithLabelValues(source).SetToCurrentTime()
}
