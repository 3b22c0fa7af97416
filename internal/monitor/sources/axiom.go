package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/web3-frozen/pair-dashboard/internal/derive"
	"github.com/web3-frozen/pair-dashboard/internal/record"
)

const (
	axiomAPI        = "https://api9.axiom.trade"
	axiomHoldersAPI = "https://api10.axiom.trade"
	axiomWalletsAPI = "https://api6.axiom.trade"
)

type axiomPairInfo struct {
	TokenAddress        string     `json:"tokenAddress"`
	TokenName           string     `json:"tokenName"`
	TokenTicker         string     `json:"tokenTicker"`
	DexPaid             bool       `json:"dexPaid"`
	Twitter             string     `json:"twitter"`
	TokenImage          string     `json:"tokenImage"`
	CreatedAt           flexString `json:"createdAt"`
	Supply              flexFloat  `json:"supply"`
	InitialLiquiditySol flexFloat  `json:"initialLiquiditySol"`
}

type axiomTokenInfo struct {
	NumHolders          flexInt   `json:"numHolders"`
	Top10HoldersPercent flexFloat `json:"top10HoldersPercent"`
	InsidersHoldPercent flexFloat `json:"insidersHoldPercent"`
	BundlersHoldPercent flexFloat `json:"bundlersHoldPercent"`
	SnipersHoldPercent  flexFloat `json:"snipersHoldPercent"`
}

type axiomPairStats struct {
	PriceSol      flexFloat `json:"priceSol"`
	BuyVolumeSol  flexFloat `json:"buyVolumeSol"`
	SellVolumeSol flexFloat `json:"sellVolumeSol"`
	BuyCount      flexInt   `json:"buyCount"`
	SellCount     flexInt   `json:"sellCount"`
}

type axiomHolder struct {
	WalletAddress string `json:"walletAddress"`
	WalletFunding *struct {
		FundedAt flexString `json:"fundedAt"`
	} `json:"walletFunding"`
}

// Axiom is the primary market-pair adapter.
type Axiom struct {
	client     *http.Client
	baseURL    string
	holdersURL string
	walletsURL string
	now        func() time.Time
}

func NewAxiom(client *http.Client) *Axiom {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Axiom{
		client:     client,
		baseURL:    axiomAPI,
		holdersURL: axiomHoldersAPI,
		walletsURL: axiomWalletsAPI,
		now:        time.Now,
	}
}

func (a *Axiom) Name() string { return string(record.VendorAxiom) }

// FetchPlatform fetches every sub-resource for pair. Each one fails
// independently; the returned fragment holds whatever succeeded and the
// error joins the failures.
func (a *Axiom) FetchPlatform(ctx context.Context, pair string, solPriceUSD float64) (record.PlatformData, error) {
	q := url.Values{"pairAddress": {pair}}.Encode()
	var errs []error

	var info axiomPairInfo
	if err := getJSON(ctx, a.client, a.baseURL+"/pair-info?"+q, &info); err != nil {
		errs = append(errs, fmt.Errorf("axiom pair-info: %w", err))
		info = axiomPairInfo{}
	}
	var token axiomTokenInfo
	if err := getJSON(ctx, a.client, a.baseURL+"/token-info?"+q, &token); err != nil {
		errs = append(errs, fmt.Errorf("axiom token-info: %w", err))
		token = axiomTokenInfo{}
	}
	var stats []axiomPairStats
	if err := getJSON(ctx, a.client, a.baseURL+"/pair-stats?"+q, &stats); err != nil {
		errs = append(errs, fmt.Errorf("axiom pair-stats: %w", err))
		stats = nil
	}
	var conc axiomTokenInfo
	if err := getJSON(ctx, a.client, a.holdersURL+"/token-info?"+q, &conc); err != nil {
		errs = append(errs, fmt.Errorf("axiom holders token-info: %w", err))
		conc = axiomTokenInfo{}
	}
	holders, err := a.fetchHolders(ctx, pair)
	if err != nil {
		errs = append(errs, fmt.Errorf("axiom holder-data: %w", err))
	}

	var first axiomPairStats
	if len(stats) > 0 {
		first = stats[0]
	}

	p := record.PlatformData{
		TokenAddress: info.TokenAddress,
		TokenName:    info.TokenName,
		TokenTicker:  info.TokenTicker,
		Twitter:      info.Twitter,
		TokenImage:   info.TokenImage,
		DexPaid:      info.DexPaid,
		CreatedAt:    string(info.CreatedAt),
		Supply:       float64(info.Supply),
		SolPriceUSD:  solPriceUSD,

		BuyVolumeSol:  float64(first.BuyVolumeSol),
		SellVolumeSol: float64(first.SellVolumeSol),
		BuyCount:      int64(first.BuyCount),
		SellCount:     int64(first.SellCount),

		LiquiditySol: float64(info.InitialLiquiditySol),
		NumHolders:   int64(token.NumHolders),

		Top10HoldersPercent: float64(conc.Top10HoldersPercent),
		InsidersHoldPercent: float64(conc.InsidersHoldPercent),
		BundlersHoldPercent: float64(conc.BundlersHoldPercent),
		SnipersHoldPercent:  float64(conc.SnipersHoldPercent),
	}
	p.MarketCapSol = float64(first.PriceSol) * p.Supply
	p.MarketCapUSD = p.MarketCapSol * solPriceUSD
	p.NetVolumeSol = p.BuyVolumeSol - p.SellVolumeSol
	p.NetVolumeUSD = p.NetVolumeSol * solPriceUSD
	p.BuyVolumeUSD = p.BuyVolumeSol * solPriceUSD
	p.SellVolumeUSD = p.SellVolumeSol * solPriceUSD
	p.NetCount = p.BuyCount - p.SellCount
	p.LiquidityUSD = p.LiquiditySol * solPriceUSD

	p.Holders, p.WalletAgeCounts = derive.DedupHolders(holders, a.now())
	p.TotalHolders = p.NumHolders
	if p.TotalHolders == 0 {
		p.TotalHolders = int64(len(p.Holders))
	}

	return p, errors.Join(errs...)
}

func (a *Axiom) fetchHolders(ctx context.Context, pair string) ([]record.HolderInfo, error) {
	q := url.Values{"pairAddress": {pair}, "onlyTrackedWallets": {"false"}}.Encode()
	var raw json.RawMessage
	if err := getJSON(ctx, a.client, a.walletsURL+"/holder-data-v3?"+q, &raw); err != nil {
		return nil, err
	}

	var list []axiomHolder
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		var one axiomHolder
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("decode holder: %w", err)
		}
		list = []axiomHolder{one}
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode holders: %w", err)
		}
	}

	out := make([]record.HolderInfo, 0, len(list))
	for _, h := range list {
		info := record.HolderInfo{WalletAddress: h.WalletAddress}
		if h.WalletFunding != nil {
			info.FundedAt = string(h.WalletFunding.FundedAt)
		}
		out = append(out, info)
	}
	return out, nil
}
