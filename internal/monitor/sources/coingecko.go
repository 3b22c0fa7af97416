package sources

import (
	"context"
	"fmt"
	"net/http"
)

const coingeckoAPI = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"

type coingeckoResp struct {
	Solana struct {
		USD float64 `json:"usd"`
	} `json:"solana"`
}

// CoinGecko fetches the SOL/USD price used for market cap conversions.
type CoinGecko struct {
	client  *http.Client
	baseURL string
}

func NewCoinGecko() *CoinGecko {
	return &CoinGecko{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: coingeckoAPI,
	}
}

func (c *CoinGecko) Name() string { return "coingecko" }

func (c *CoinGecko) FetchSolPrice(ctx context.Context) (float64, error) {
	var body coingeckoResp
	if err := getJSON(ctx, c.client, c.baseURL, &body); err != nil {
		return 0, fmt.Errorf("coingecko API: %w", err)
	}
	if body.Solana.USD <= 0 {
		return 0, fmt.Errorf("coingecko API: missing solana price")
	}
	return body.Solana.USD, nil
}
