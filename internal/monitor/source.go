package monitor

import (
	"context"

	"github.com/web3-frozen/pair-dashboard/internal/record"
)

// MarketSource fetches the platform fragment of a pair. Implementations
// return a usable (possibly zeroed) fragment even when err is non-nil.
type MarketSource interface {
	// Name returns a unique identifier for this source (e.g., "axiom").
	Name() string

	FetchPlatform(ctx context.Context, pair string, solPriceUSD float64) (record.PlatformData, error)
}

// SocialSource fetches the social fragment for a configured target.
type SocialSource interface {
	Name() string
	FetchSocial(ctx context.Context, target record.SocialTarget) (record.SocialData, error)
}

// SearchSource aggregates search results for a query.
type SearchSource interface {
	Name() string
	Search(ctx context.Context, query string) (record.SearchMetrics, error)
}

// PriceSource reports the current SOL/USD price.
type PriceSource interface {
	Name() string
	FetchSolPrice(ctx context.Context) (float64, error)
}

// Store is the subset of the tick log the scheduler writes to.
type Store interface {
	Append(rec *record.Record) error
	Rotate() error
	Scan(fn func(record.Record)) error
	Retarget(target string) error
}

// Publisher fans a freshly persisted record out to live subscribers. It
// must not block.
type Publisher interface {
	Publish(rec *record.Record)
}

// Archiver mirrors records to secondary storage. Failures are logged only.
type Archiver interface {
	Archive(ctx context.Context, pair string, rec *record.Record) error
}

// Deduper remembers which one-shot alerts were already delivered.
type Deduper interface {
	AlreadySent(ctx context.Context, key string) bool
	Record(ctx context.Context, key string)
	Clear(ctx context.Context, key string)
}

// AlertFunc delivers a message to the operator channel.
type AlertFunc func(ctx context.Context, message string) error
