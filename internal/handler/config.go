package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/web3-frozen/pair-dashboard/internal/monitor"
	"github.com/web3-frozen/pair-dashboard/internal/record"
	"github.com/web3-frozen/pair-dashboard/internal/runconfig"
)

// Pipeline is the part of the scheduler driven over HTTP.
type Pipeline interface {
	Market(vendor record.MarketVendor) (monitor.MarketSource, bool)
	Activate(ctx context.Context) bool
	Active() bool
	StartedAt() time.Time
	SetSearchEnabled(on bool)
	SearchEnabled() bool
}

// Prices is the SOL price refresher seeded by the first configuration.
type Prices interface {
	Get() float64
	Refresh(ctx context.Context) error
	Start(ctx context.Context, interval time.Duration)
}

// AlertReset forgets one-shot alert state, e.g. when the pair changes.
type AlertReset interface {
	ClearByPattern(ctx context.Context, pattern string)
}

// ConfigDeps wires the configuration routes. Run is the process lifetime
// context handed to the background loops; SavePath and Alerts are optional.
type ConfigDeps struct {
	Holder        *runconfig.Holder
	Pipeline      Pipeline
	Prices        Prices
	PriceInterval time.Duration
	SavePath      string
	Alerts        AlertReset
	Run           context.Context
	Logger        *slog.Logger
	Now           func() time.Time
}

const discoveryTimeout = 15 * time.Second

type configView struct {
	PairAddress    string `json:"pairAddress"`
	DataSource     string `json:"dataSource"`
	XDataType      string `json:"xDataType"`
	CommunityID    string `json:"communityId"`
	ScreenName     string `json:"screenName"`
	TweetID        string `json:"tweetId"`
	TwitterURL     string `json:"twitterUrl"`
	AutoDiscovered bool   `json:"autoDiscovered"`
}

func viewOf(rc *runconfig.RunConfig) configView {
	if rc == nil {
		return configView{}
	}
	return configView{
		PairAddress:    rc.PairAddress,
		DataSource:     string(rc.MarketVendor),
		XDataType:      string(rc.Social.Kind),
		CommunityID:    rc.Social.CommunityID,
		ScreenName:     rc.Social.ScreenName,
		TweetID:        rc.Social.TweetID,
		TwitterURL:     rc.TwitterURL,
		AutoDiscovered: rc.AutoDiscovered,
	}
}

// GetConfig returns the active configuration, or empty fields before the
// first configuration call.
func GetConfig(h *runconfig.Holder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, viewOf(h.Load()))
	}
}

// PostConfig validates a configuration call, auto-detects the social target
// when none is given, publishes the result and starts the pipeline on the
// first success.
func PostConfig(d ConfigDeps) http.HandlerFunc {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req runconfig.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Pair() == "" {
			writeError(w, http.StatusBadRequest, "Missing required field: pairAddress")
			return
		}
		vendor, ok := record.ParseMarketVendor(req.DataSource)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown dataSource: "+req.DataSource)
			return
		}

		var twitterURL string
		if req.NeedsDetection() {
			twitterURL = discoverTwitter(r.Context(), d, vendor, req.Pair())
		}

		rc, err := runconfig.Resolve(req, twitterURL, now().UTC())
		switch {
		case errors.Is(err, runconfig.ErrNoSocialKind):
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":      "Could not determine X data type",
				"twitterUrl": twitterURL,
				"suggestion": "Please provide communityId, screenName, or tweetId manually",
			})
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		prev := d.Holder.Load()
		d.Holder.Store(rc)
		if prev != nil && prev.PairAddress != rc.PairAddress && d.Alerts != nil {
			d.Alerts.ClearByPattern(r.Context(), "exit_low:"+prev.PairAddress)
		}
		if d.SavePath != "" {
			if err := runconfig.Save(d.SavePath, rc); err != nil {
				d.Logger.Warn("persist run config failed", "path", d.SavePath, "error", err)
			}
		}
		d.Logger.Info("configuration updated",
			"pair", rc.PairAddress,
			"data_source", rc.MarketVendor,
			"x_data_type", rc.Social.Kind,
			"x_key", rc.Social.Key(),
			"auto_discovered", rc.AutoDiscovered,
		)

		if !d.Pipeline.Active() {
			start(d)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "success",
			"message": "Configuration updated and fetching started",
			"config":  viewOf(&rc),
		})
	}
}

// discoverTwitter fetches the market fragment once to read its social link.
// Failures leave the link empty and the caller reports the missing kind.
func discoverTwitter(ctx context.Context, d ConfigDeps, vendor record.MarketVendor, pair string) string {
	market, ok := d.Pipeline.Market(vendor)
	if !ok {
		d.Logger.Warn("no market source registered", "vendor", vendor)
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	var price float64
	if d.Prices != nil {
		price = d.Prices.Get()
	}
	p, err := market.FetchPlatform(ctx, pair, price)
	if err != nil {
		d.Logger.Warn("social discovery fetch failed", "source", market.Name(), "pair", pair, "error", err)
	}
	return p.Twitter
}

// start seeds the SOL price and launches the refresher and the scheduler on
// the process lifetime context.
func start(d ConfigDeps) {
	run := d.Run
	if run == nil {
		run = context.Background()
	}
	if d.Prices != nil {
		if err := d.Prices.Refresh(run); err != nil {
			d.Logger.Warn("initial SOL price fetch failed", "error", err)
		}
		d.Prices.Start(run, d.PriceInterval)
	}
	if d.Pipeline.Activate(run) {
		d.Logger.Info("pipeline activated")
	}
}
