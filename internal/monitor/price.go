package monitor

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/web3-frozen/pair-dashboard/internal/metrics"
)

// DefaultPriceInterval is how often the SOL price is refreshed.
const DefaultPriceInterval = 10 * time.Minute

// PriceCache holds the last known SOL/USD price. A failed refresh keeps the
// previous value; the price is 0 until the first success.
type PriceCache struct {
	src     PriceSource
	logger  *slog.Logger
	bits    atomic.Uint64
	updated atomic.Int64
	started atomic.Bool
}

func NewPriceCache(src PriceSource, logger *slog.Logger) *PriceCache {
	return &PriceCache{src: src, logger: logger}
}

// Get returns the cached price.
func (p *PriceCache) Get() float64 {
	return math.Float64frombits(p.bits.Load())
}

// LastUpdated returns the time of the last successful refresh, or the zero
// time if none succeeded yet.
func (p *PriceCache) LastUpdated() time.Time {
	ns := p.updated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (p *PriceCache) set(price float64) {
	p.bits.Store(math.Float64bits(price))
	p.updated.Store(time.Now().UnixNano())
	metrics.SolPriceUSD.Set(price)
}

// Refresh fetches the price once and updates the cache on success.
func (p *PriceCache) Refresh(ctx context.Context) error {
	start := time.Now()
	price, err := p.src.FetchSolPrice(ctx)
	observePoll(p.src.Name(), start, err)
	if err != nil {
		return err
	}
	p.set(price)
	return nil
}

// Start launches the refresher loop once; later calls are no-ops.
func (p *PriceCache) Start(ctx context.Context, interval time.Duration) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go p.run(ctx, interval)
}

func (p *PriceCache) run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPriceInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				p.logger.Error("sol price refresh failed", "source", p.src.Name(), "error", err)
				continue
			}
			p.logger.Info("sol price updated", "price", p.Get())
		}
	}
}
