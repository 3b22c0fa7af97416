// Package record defines the tick record persisted once per poll cycle and
// the fragments the source adapters produce for it.
package record

import "time"

// MarketVendor identifies which market API produced the platform fragment.
type MarketVendor string

const (
	VendorAxiom MarketVendor = "axiom" // market-pair-data
	VendorAlpha MarketVendor = "alpha" // market-pair-data-alt
)

// ParseMarketVendor maps a configuration value to a vendor, defaulting to Axiom.
func ParseMarketVendor(s string) (MarketVendor, bool) {
	switch MarketVendor(s) {
	case "", VendorAxiom:
		return VendorAxiom, true
	case VendorAlpha:
		return VendorAlpha, true
	}
	return "", false
}

// Record is the unit of persistence: one per completed tick.
type Record struct {
	Timestamp          time.Time        `json:"timestamp"`
	MarketVendor       MarketVendor     `json:"data_source"`
	SocialKind         SocialKind       `json:"x_data_type"`
	Platform           PlatformData     `json:"platform_data"`
	Social             SocialData       `json:"x_data"`
	UniqueAuthorsCount int              `json:"unique_authors"`
	AuthorFollowers    []AuthorFollower `json:"author_followers"`
	SearchMetrics      *SearchMetrics   `json:"search_metrics,omitempty"`
}

// AuthorFollower is one entry of the per-tick author summary.
type AuthorFollower struct {
	Author     string `json:"author"`
	AuthorName string `json:"author_name"`
	Followers  int64  `json:"followers"`
}

// PlatformData is the normalized market fragment.
type PlatformData struct {
	TokenAddress string `json:"tokenAddress"`
	TokenName    string `json:"tokenName"`
	TokenTicker  string `json:"tokenTicker"`
	Twitter      string `json:"twitter"`
	TokenImage   string `json:"tokenImage"`
	DexPaid      bool   `json:"dexPaid"`
	CreatedAt    string `json:"createdAt"`

	MarketCapSol float64 `json:"marketCapSol"`
	MarketCapUSD float64 `json:"marketCapUSD"`
	FibLevel62   float64 `json:"fibLevel62"`
	FibLevel50   float64 `json:"fibLevel50"`

	BuyVolumeSol  float64 `json:"buyVolumeSol"`
	SellVolumeSol float64 `json:"sellVolumeSol"`
	BuyVolumeUSD  float64 `json:"buyVolumeUSD"`
	SellVolumeUSD float64 `json:"sellVolumeUSD"`
	NetVolumeSol  float64 `json:"volumeSol"`
	NetVolumeUSD  float64 `json:"volumeUSD"`
	BuyCount      int64   `json:"buyCount"`
	SellCount     int64   `json:"sellCount"`
	NetCount      int64   `json:"netCount"`

	LiquiditySol float64 `json:"liquiditySol"`
	LiquidityUSD float64 `json:"liquidityUSD"`
	Supply       float64 `json:"supply"`
	SolPriceUSD  float64 `json:"solPriceUSD"`

	NumHolders      int64           `json:"numHolders"`
	TotalHolders    int64           `json:"totalHolders"`
	Holders         []HolderInfo    `json:"holders_info"`
	WalletAgeCounts WalletAgeCounts `json:"walletAgeCounts"`

	Top10HoldersPercent float64 `json:"top10HoldersPercent"`
	InsidersHoldPercent float64 `json:"insidersHoldPercent"`
	BundlersHoldPercent float64 `json:"bundlersHoldPercent"`
	SnipersHoldPercent  float64 `json:"snipersHoldPercent"`
}

// PriceSol returns the per-token SOL price implied by market cap and supply.
func (p PlatformData) PriceSol() float64 {
	if p.Supply <= 0 {
		return 0
	}
	return p.MarketCapSol / p.Supply
}

// WalletAge is the funding-age bucket of a holder wallet.
type WalletAge string

const (
	AgeBaby    WalletAge = "baby"
	AgeAdult   WalletAge = "adult"
	AgeOld     WalletAge = "old"
	AgeUnknown WalletAge = "unknown"
)

// HolderInfo is one deduplicated holder wallet.
type HolderInfo struct {
	WalletAddress string    `json:"walletAddress"`
	FundedAt      string    `json:"fundedAt,omitempty"`
	AgeCategory   WalletAge `json:"ageCategory"`
}

// WalletAgeCounts is the holder age histogram.
type WalletAgeCounts struct {
	Baby    int `json:"baby"`
	Adult   int `json:"adult"`
	Old     int `json:"old"`
	Unknown int `json:"unknown"`
}

// Add increments the bucket for age.
func (c *WalletAgeCounts) Add(age WalletAge) {
	switch age {
	case AgeBaby:
		c.Baby++
	case AgeAdult:
		c.Adult++
	case AgeOld:
		c.Old++
	default:
		c.Unknown++
	}
}

// SearchMetrics aggregates one social search.
type SearchMetrics struct {
	TotalPosts        int                     `json:"total_posts_count"`
	TotalMediaPosts   int                     `json:"total_media_posts_count"`
	TotalNormalPosts  int                     `json:"total_normal_posts_count"`
	UniqueAuthorCount int                     `json:"unique_authors_count"`
	UniqueAuthors     map[string]SearchAuthor `json:"unique_authors"`
	Success           bool                    `json:"success"`
}

// SearchAuthor is the display info kept per unique search author.
type SearchAuthor struct {
	Name      string `json:"name"`
	Followers int64  `json:"followers_count"`
}

// EmptySearchMetrics is the zero shape served when no search is available.
func EmptySearchMetrics() SearchMetrics {
	return SearchMetrics{UniqueAuthors: map[string]SearchAuthor{}}
}
