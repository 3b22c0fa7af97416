package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/web3-frozen/pair-dashboard/internal/record"
)

const alphaAPI = "https://b.alph.ai/smart-web-gateway"

type alphaTokenDetailResp struct {
	Data struct {
		Chain           string     `json:"chain"`
		TokenFullName   string     `json:"tokenFullName"`
		Symbol          string     `json:"symbol"`
		MarketCap       flexFloat  `json:"marketCap"`
		TokenCreateTime flexString `json:"tokenCreateTime"`
		Logo            string     `json:"logo"`
		TokenMediaVo    struct {
			Twitter string `json:"twitter"`
		} `json:"tokenMediaVo"`
	} `json:"data"`
}

type alphaHolderStatsResp struct {
	Data struct {
		TotalHolders           flexInt   `json:"totalHolders"`
		Top10Percent           flexFloat `json:"top10Percent"`
		SnipersPercent         flexFloat `json:"snipersPercent"`
		InsidersTradingPercent flexFloat `json:"insidersTradingPercent"`
		BundlerWalletPercent   flexFloat `json:"bundlerWalletPercent"`
	} `json:"data"`
}

// Alpha is the alternate market adapter backed by alph.ai. It reports USD
// figures only; SOL-denominated fields stay zero.
type Alpha struct {
	client  *http.Client
	baseURL string
	chain   string
}

func NewAlpha(client *http.Client) *Alpha {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Alpha{
		client:  client,
		baseURL: alphaAPI,
		chain:   "solana",
	}
}

func (a *Alpha) Name() string { return string(record.VendorAlpha) }

func (a *Alpha) FetchPlatform(ctx context.Context, pair string, solPriceUSD float64) (record.PlatformData, error) {
	var errs []error

	detailQ := url.Values{"chain": {a.chain}, "token": {pair}, "language": {"en_US"}}.Encode()
	var detail alphaTokenDetailResp
	if err := getJSON(ctx, a.client, a.baseURL+"/token/token-detail?"+detailQ, &detail); err != nil {
		errs = append(errs, fmt.Errorf("alpha token-detail: %w", err))
		detail = alphaTokenDetailResp{}
	}

	statsQ := url.Values{"chain": {a.chain}, "token": {pair}}.Encode()
	var stats alphaHolderStatsResp
	if err := getJSON(ctx, a.client, a.baseURL+"/coin/detail/holders/stats?"+statsQ, &stats); err != nil {
		errs = append(errs, fmt.Errorf("alpha holders stats: %w", err))
		stats = alphaHolderStatsResp{}
	}

	d, h := detail.Data, stats.Data
	p := record.PlatformData{
		TokenAddress: pair,
		TokenName:    d.TokenFullName,
		TokenTicker:  d.Symbol,
		Twitter:      d.TokenMediaVo.Twitter,
		TokenImage:   d.Logo,
		CreatedAt:    string(d.TokenCreateTime),
		MarketCapUSD: float64(d.MarketCap),
		SolPriceUSD:  solPriceUSD,
		NumHolders:   int64(h.TotalHolders),
		TotalHolders: int64(h.TotalHolders),

		Top10HoldersPercent: float64(h.Top10Percent),
		InsidersHoldPercent: float64(h.InsidersTradingPercent),
		BundlersHoldPercent: float64(h.BundlerWalletPercent),
		SnipersHoldPercent:  float64(h.SnipersPercent),
	}
	if solPriceUSD > 0 {
		p.MarketCapSol = p.MarketCapUSD / solPriceUSD
	}
	return p, errors.Join(errs...)
}
