// Package query derives the dashboard read views from the tick log. Every
// view tolerates an empty log and returns zeroed shapes instead of failing.
package query

import (
	"math"
	"time"

	"github.com/web3-frozen/pair-dashboard/internal/derive"
	"github.com/web3-frozen/pair-dashboard/internal/record"
)

// Window sizes of the history views.
const (
	MarketCapWindow = 100
	HoldersWindow   = 100
	BuysSellsWindow = 50
	SocialWindow    = 50
	HistoryWindow   = 50
	WalletAgeLimit  = 50
)

// Reader is the read side of the tick log.
type Reader interface {
	Tail() (record.Record, bool)
	Window(n int) ([]record.Record, error)
}

func lastUpdated(rec record.Record, ok bool) string {
	if !ok {
		return ""
	}
	return rec.Timestamp.Format(time.RFC3339Nano)
}

func clock(ts time.Time) string {
	return ts.UTC().Format("15:04")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ── Market cap ─────────────────────────────────────────────────────────

type MarketCapPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	Time         string    `json:"time"`
	MarketCapUSD float64   `json:"marketCapUSD"`
	MarketCapSol float64   `json:"marketCapSol"`
	VolumeUSD    float64   `json:"volumeUSD"`
	PriceSol     float64   `json:"priceSol"`
}

type MarketCapCurrent struct {
	MarketCapUSD float64 `json:"marketCapUSD"`
	MarketCapSol float64 `json:"marketCapSol"`
	VolumeUSD    float64 `json:"volumeUSD"`
	FibLevel62   float64 `json:"fibLevel62"`
	FibLevel50   float64 `json:"fibLevel50"`
	LastUpdated  string  `json:"lastUpdated"`
}

type MarketCapView struct {
	Current MarketCapCurrent `json:"current"`
	History []MarketCapPoint `json:"history"`
}

func MarketCap(r Reader) (MarketCapView, error) {
	recs, err := r.Window(MarketCapWindow)
	history := make([]MarketCapPoint, 0, len(recs))
	for _, rec := range recs {
		p := rec.Platform
		history = append(history, MarketCapPoint{
			Timestamp:    rec.Timestamp,
			Time:         clock(rec.Timestamp),
			MarketCapUSD: p.MarketCapUSD,
			MarketCapSol: p.MarketCapSol,
			VolumeUSD:    p.NetVolumeUSD,
			PriceSol:     p.PriceSol(),
		})
	}

	tail, ok := r.Tail()
	p := tail.Platform
	return MarketCapView{
		Current: MarketCapCurrent{
			MarketCapUSD: p.MarketCapUSD,
			MarketCapSol: p.MarketCapSol,
			VolumeUSD:    p.NetVolumeUSD,
			FibLevel62:   p.FibLevel62,
			FibLevel50:   p.FibLevel50,
			LastUpdated:  lastUpdated(tail, ok),
		},
		History: history,
	}, err
}

// ── Buys and sells ─────────────────────────────────────────────────────

type BuySell struct {
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	Time       string     `json:"time,omitempty"`
	BuyVolume  float64    `json:"buyVolume"`
	SellVolume float64    `json:"sellVolume"`
	NetVolume  float64    `json:"netVolume"`
	BuyCount   int64      `json:"buyCount"`
	SellCount  int64      `json:"sellCount"`
}

type BuysSellsView struct {
	Current struct {
		BuySell
		LastUpdated string `json:"lastUpdated"`
	} `json:"current"`
	History []BuySell `json:"history"`
}

func buySell(p record.PlatformData) BuySell {
	return BuySell{
		BuyVolume:  p.BuyVolumeUSD,
		SellVolume: p.SellVolumeUSD,
		NetVolume:  p.NetVolumeUSD,
		BuyCount:   p.BuyCount,
		SellCount:  p.SellCount,
	}
}

func BuysSells(r Reader) (BuysSellsView, error) {
	recs, err := r.Window(BuysSellsWindow)
	var v BuysSellsView
	v.History = make([]BuySell, 0, len(recs))
	for _, rec := range recs {
		b := buySell(rec.Platform)
		ts := rec.Timestamp
		b.Timestamp = &ts
		b.Time = clock(ts)
		v.History = append(v.History, b)
	}

	tail, ok := r.Tail()
	v.Current.BuySell = buySell(tail.Platform)
	v.Current.LastUpdated = lastUpdated(tail, ok)
	return v, err
}

// ── Holders ────────────────────────────────────────────────────────────

type HolderPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Time          string    `json:"time"`
	Value         int64     `json:"value"`
	MarketCap     float64   `json:"marketCap"`
	UniqueAuthors int       `json:"uniqueAuthors"`
	TotalViews    int64     `json:"totalViews"`
}

type HoldersCurrent struct {
	HolderCount           int64                  `json:"holderCount"`
	PercentChange         float64                `json:"percentChange"`
	HolderIncrease        int64                  `json:"holderIncrease"`
	LastUpdated           string                 `json:"lastUpdated"`
	WalletAgeDistribution record.WalletAgeCounts `json:"walletAgeDistribution"`
	TotalHolders          int64                  `json:"totalHolders"`
}

type HoldersView struct {
	Current  HoldersCurrent `json:"current"`
	History  []HolderPoint  `json:"history"`
	Timeline []record.Post  `json:"timeline"`
}

// Holders reports the holder count and its change against the previous
// record in the window.
func Holders(r Reader) (HoldersView, error) {
	recs, err := r.Window(HoldersWindow)
	history := make([]HolderPoint, 0, len(recs))
	for _, rec := range recs {
		history = append(history, HolderPoint{
			Timestamp:     rec.Timestamp,
			Time:          clock(rec.Timestamp),
			Value:         rec.Platform.NumHolders,
			MarketCap:     rec.Platform.MarketCapUSD,
			UniqueAuthors: rec.UniqueAuthorsCount,
			TotalViews:    derive.AggregateEngagement(rec.Social.Posts()).Views,
		})
	}

	tail, ok := r.Tail()
	cur := HoldersCurrent{
		HolderCount:           tail.Platform.NumHolders,
		LastUpdated:           lastUpdated(tail, ok),
		WalletAgeDistribution: tail.Platform.WalletAgeCounts,
		TotalHolders:          tail.Platform.TotalHolders,
	}
	if n := len(history); n >= 2 {
		prev := history[n-2].Value
		if prev > 0 {
			cur.PercentChange = round2(derive.PercentChange(float64(cur.HolderCount), float64(prev)))
			cur.HolderIncrease = cur.HolderCount - prev
		}
	}

	timeline := tail.Social.Posts()
	if timeline == nil {
		timeline = []record.Post{}
	}
	return HoldersView{Current: cur, History: history, Timeline: timeline}, err
}

// ── Wallet age ─────────────────────────────────────────────────────────

type WalletAgeView struct {
	Distribution record.WalletAgeCounts `json:"distribution"`
	TotalHolders int64                  `json:"totalHolders"`
	Holders      []record.HolderInfo    `json:"holders"`
	LastUpdated  string                 `json:"lastUpdated"`
}

func WalletAge(r Reader) WalletAgeView {
	tail, ok := r.Tail()
	holders := tail.Platform.Holders
	if len(holders) > WalletAgeLimit {
		holders = holders[:WalletAgeLimit]
	}
	if holders == nil {
		holders = []record.HolderInfo{}
	}
	return WalletAgeView{
		Distribution: tail.Platform.WalletAgeCounts,
		TotalHolders: tail.Platform.TotalHolders,
		Holders:      holders,
		LastUpdated:  lastUpdated(tail, ok),
	}
}

// ── Social ─────────────────────────────────────────────────────────────

type SocialPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Time          string    `json:"time"`
	Views         int64     `json:"views"`
	Likes         int64     `json:"likes"`
	Retweets      int64     `json:"retweets"`
	Replies       int64     `json:"replies"`
	Quotes        int64     `json:"quotes"`
	Bookmarks     int64     `json:"bookmarks"`
	UniqueAuthors int       `json:"uniqueAuthors"`
}

type SocialCurrent struct {
	Views         int64  `json:"views"`
	Likes         int64  `json:"likes"`
	Retweets      int64  `json:"retweets"`
	Replies       int64  `json:"replies"`
	Quotes        int64  `json:"quotes"`
	Bookmarks     int64  `json:"bookmarks"`
	UniqueAuthors int    `json:"uniqueAuthors"`
	MemberCount   int64  `json:"memberCount"`
	LastUpdated   string `json:"lastUpdated"`
}

type SocialView struct {
	Current       SocialCurrent         `json:"current"`
	History       []SocialPoint         `json:"history"`
	SearchMetrics *record.SearchMetrics `json:"search_metrics,omitempty"`
}

func Social(r Reader) (SocialView, error) {
	recs, err := r.Window(SocialWindow)
	history := make([]SocialPoint, 0, len(recs))
	for _, rec := range recs {
		e := derive.AggregateEngagement(rec.Social.Posts())
		history = append(history, SocialPoint{
			Timestamp:     rec.Timestamp,
			Time:          clock(rec.Timestamp),
			Views:         e.Views,
			Likes:         e.Likes,
			Retweets:      e.Retweets,
			Replies:       e.Replies,
			Quotes:        e.Quotes,
			Bookmarks:     e.Bookmarks,
			UniqueAuthors: rec.UniqueAuthorsCount,
		})
	}

	tail, ok := r.Tail()
	e := derive.AggregateEngagement(tail.Social.Posts())
	return SocialView{
		Current: SocialCurrent{
			Views:         e.Views,
			Likes:         e.Likes,
			Retweets:      e.Retweets,
			Replies:       e.Replies,
			Quotes:        e.Quotes,
			Bookmarks:     e.Bookmarks,
			UniqueAuthors: tail.UniqueAuthorsCount,
			MemberCount:   tail.Social.MemberCount(),
			LastUpdated:   lastUpdated(tail, ok),
		},
		History:       history,
		SearchMetrics: latestSearch(recs),
	}, err
}

// latestSearch returns the newest search result in recs. Ticks between
// searches carry none, so the view looks back through the window.
func latestSearch(recs []record.Record) *record.SearchMetrics {
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].SearchMetrics != nil {
			return recs[i].SearchMetrics
		}
	}
	return nil
}

// TwitterSearch returns the newest search metrics or the zero shape.
func TwitterSearch(r Reader) (record.SearchMetrics, error) {
	recs, err := r.Window(SocialWindow)
	if m := latestSearch(recs); m != nil {
		out := *m
		if out.UniqueAuthors == nil {
			out.UniqueAuthors = map[string]record.SearchAuthor{}
		}
		return out, err
	}
	return record.EmptySearchMetrics(), err
}

// ── Headline numbers ───────────────────────────────────────────────────

type MetricsView struct {
	MarketCapUSD  float64 `json:"marketCapUSD"`
	VolumeUSD     float64 `json:"volumeUSD"`
	Holders       int64   `json:"holders"`
	LiquidityUSD  float64 `json:"liquidityUSD"`
	UniqueAuthors int     `json:"uniqueAuthors"`
	MemberCount   int64   `json:"memberCount"`
	SolPrice      float64 `json:"solPrice"`
	LastUpdated   string  `json:"lastUpdated"`
}

func Metrics(r Reader) MetricsView {
	tail, ok := r.Tail()
	p := tail.Platform
	return MetricsView{
		MarketCapUSD:  p.MarketCapUSD,
		VolumeUSD:     p.NetVolumeUSD,
		Holders:       p.NumHolders,
		LiquidityUSD:  p.LiquidityUSD,
		UniqueAuthors: tail.UniqueAuthorsCount,
		MemberCount:   tail.Social.MemberCount(),
		SolPrice:      p.SolPriceUSD,
		LastUpdated:   lastUpdated(tail, ok),
	}
}

type TokenInfoView struct {
	TokenAddress        string  `json:"tokenAddress"`
	TokenName           string  `json:"tokenName"`
	TokenTicker         string  `json:"tokenTicker"`
	Twitter             string  `json:"twitter"`
	TokenImage          string  `json:"tokenImage"`
	CreatedAt           string  `json:"createdAt"`
	BundlersPercent     float64 `json:"bndpercentage"`
	Top10Percent        float64 `json:"top10"`
	InsidersHoldPercent float64 `json:"insidersHoldPercent"`
	SnipersHoldPercent  float64 `json:"snipersHoldPercent"`
	DexPaid             bool    `json:"dexPaid"`
}

func TokenInfo(r Reader) TokenInfoView {
	tail, _ := r.Tail()
	p := tail.Platform
	return TokenInfoView{
		TokenAddress:        p.TokenAddress,
		TokenName:           p.TokenName,
		TokenTicker:         p.TokenTicker,
		Twitter:             p.Twitter,
		TokenImage:          p.TokenImage,
		CreatedAt:           p.CreatedAt,
		BundlersPercent:     p.BundlersHoldPercent,
		Top10Percent:        p.Top10HoldersPercent,
		InsidersHoldPercent: p.InsidersHoldPercent,
		SnipersHoldPercent:  p.SnipersHoldPercent,
		DexPaid:             p.DexPaid,
	}
}

// ── Raw records ────────────────────────────────────────────────────────

// History returns the last records in append order.
func History(r Reader) ([]record.Record, error) {
	return r.Window(HistoryWindow)
}

// Latest returns the newest record.
func Latest(r Reader) (record.Record, bool) {
	return r.Tail()
}
