package sources

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newAxiomTestServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("pairAddress") != "PAIR1" {
			http.Error(w, "bad pair", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testAxiom(srv *httptest.Server) *Axiom {
	return &Axiom{
		client:     srv.Client(),
		baseURL:    srv.URL,
		holdersURL: srv.URL + "/h",
		walletsURL: srv.URL,
		now:        func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestAxiomFetchPlatform(t *testing.T) {
	srv := newAxiomTestServer(t, map[string]string{
		"/pair-info":    `{"tokenAddress":"MINT","tokenName":"Pump","tokenTicker":"PMP","dexPaid":true,"twitter":"https://x.com/i/communities/42","supply":1000000,"initialLiquiditySol":30,"createdAt":"2026-02-28T00:00:00Z"}`,
		"/token-info":   `{"numHolders":250}`,
		"/pair-stats":   `[{"priceSol":0.0001,"buyVolumeSol":12,"sellVolumeSol":5,"buyCount":40,"sellCount":15},{"priceSol":9}]`,
		"/h/token-info": `{"top10HoldersPercent":31.5,"insidersHoldPercent":2,"bundlersHoldPercent":4.5,"snipersHoldPercent":1}`,
		"/holder-data-v3": `[
			{"walletAddress":"W1","walletFunding":{"fundedAt":"2026-02-20T00:00:00Z"}},
			{"walletAddress":"W1","walletFunding":{"fundedAt":"2020-01-01T00:00:00Z"}},
			{"walletAddress":"W1"},
			{"walletAddress":"W2","walletFunding":{"fundedAt":"2025-10-01T00:00:00Z"}},
			{"walletAddress":"W3","walletFunding":null}
		]`,
	})

	p, err := testAxiom(srv).FetchPlatform(context.Background(), "PAIR1", 150)
	if err != nil {
		t.Fatalf("FetchPlatform error: %v", err)
	}

	checks := []struct {
		name      string
		got, want float64
	}{
		{"marketCapSol", p.MarketCapSol, 100},
		{"marketCapUSD", p.MarketCapUSD, 15000},
		{"volumeSol", p.NetVolumeSol, 7},
		{"volumeUSD", p.NetVolumeUSD, 1050},
		{"buyVolumeUSD", p.BuyVolumeUSD, 1800},
		{"sellVolumeUSD", p.SellVolumeUSD, 750},
		{"liquidityUSD", p.LiquidityUSD, 4500},
		{"top10", p.Top10HoldersPercent, 31.5},
		{"bundlers", p.BundlersHoldPercent, 4.5},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-6 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if p.NetCount != 25 {
		t.Errorf("netCount = %d, want 25", p.NetCount)
	}
	if p.NumHolders != 250 || p.TotalHolders != 250 {
		t.Errorf("holders = %d/%d, want 250/250", p.NumHolders, p.TotalHolders)
	}
	if len(p.Holders) != 3 {
		t.Fatalf("len(holders_info) = %d, want 3", len(p.Holders))
	}
	if p.WalletAgeCounts.Baby != 1 || p.WalletAgeCounts.Adult != 1 || p.WalletAgeCounts.Unknown != 1 {
		t.Errorf("walletAgeCounts = %+v, want baby 1 adult 1 unknown 1", p.WalletAgeCounts)
	}
	if p.Twitter != "https://x.com/i/communities/42" {
		t.Errorf("twitter = %q", p.Twitter)
	}
}

func TestAxiomDuplicateWalletsCollapse(t *testing.T) {
	srv := newAxiomTestServer(t, map[string]string{
		"/pair-info":      `{}`,
		"/token-info":     `{}`,
		"/pair-stats":     `[]`,
		"/h/token-info":   `{}`,
		"/holder-data-v3": `[{"walletAddress":"SAME"},{"walletAddress":"SAME"},{"walletAddress":"SAME"}]`,
	})

	p, err := testAxiom(srv).FetchPlatform(context.Background(), "PAIR1", 100)
	if err != nil {
		t.Fatalf("FetchPlatform error: %v", err)
	}
	if len(p.Holders) != 1 {
		t.Errorf("len(holders_info) = %d, want 1", len(p.Holders))
	}
	if p.TotalHolders != 1 {
		t.Errorf("totalHolders = %d, want 1 when numHolders is absent", p.TotalHolders)
	}
}

func TestAxiomSingleHolderObject(t *testing.T) {
	srv := newAxiomTestServer(t, map[string]string{
		"/pair-info":      `{}`,
		"/token-info":     `{}`,
		"/pair-stats":     `[]`,
		"/h/token-info":   `{}`,
		"/holder-data-v3": `{"walletAddress":"ONLY","walletFunding":{"fundedAt":"2020-01-01T00:00:00Z"}}`,
	})

	p, _ := testAxiom(srv).FetchPlatform(context.Background(), "PAIR1", 100)
	if len(p.Holders) != 1 || p.WalletAgeCounts.Old != 1 {
		t.Errorf("holders = %+v counts = %+v, want one old wallet", p.Holders, p.WalletAgeCounts)
	}
}

func TestAxiomPartialFailure(t *testing.T) {
	srv := newAxiomTestServer(t, map[string]string{
		"/pair-info":  `{"tokenName":"Pump","supply":1000}`,
		"/pair-stats": `[{"priceSol":2}]`,
	})

	p, err := testAxiom(srv).FetchPlatform(context.Background(), "PAIR1", 10)
	if err == nil {
		t.Fatal("expected joined error for failing sub-resources")
	}
	if p.TokenName != "Pump" {
		t.Errorf("tokenName = %q, want Pump", p.TokenName)
	}
	if p.MarketCapUSD != 20000 {
		t.Errorf("marketCapUSD = %v, want 20000", p.MarketCapUSD)
	}
	if p.NumHolders != 0 || len(p.Holders) != 0 {
		t.Errorf("holders should default to zero, got %d/%d", p.NumHolders, len(p.Holders))
	}
}

func TestAxiomServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := testAxiom(srv).FetchPlatform(context.Background(), "PAIR1", 100)
	if err == nil {
		t.Fatal("expected error for 500 responses")
	}
	if p.MarketCapUSD != 0 || p.TokenName != "" {
		t.Errorf("fragment should be zeroed, got %+v", p)
	}
}
