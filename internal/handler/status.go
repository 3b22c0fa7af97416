package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/web3-frozen/pair-dashboard/internal/record"
	"github.com/web3-frozen/pair-dashboard/internal/runconfig"
)

// Status reports whether the pipeline runs. bootTime stands in for the
// start time while idle.
func Status(p Pipeline, h *runconfig.Holder, bootTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, started := "idle", bootTime
		if p.Active() {
			state = "active"
			if t := p.StartedAt(); !t.IsZero() {
				started = t
			}
		}
		source := string(record.VendorAxiom)
		if rc := h.Load(); rc != nil {
			source = string(rc.MarketVendor)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         state,
			"started_at":     started.UTC().Format(time.RFC3339),
			"uptime_seconds": time.Since(started).Seconds(),
			"data_source":    source,
			"search_enabled": p.SearchEnabled(),
		})
	}
}

// ToggleSearch turns the search adapter on or off. A missing field enables it.
func ToggleSearch(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Enabled *bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		on := body.Enabled == nil || *body.Enabled
		p.SetSearchEnabled(on)
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": on})
	}
}

// XData describes the configured social target.
func XData(h *runconfig.Holder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := h.Load()
		if rc == nil {
			writeJSON(w, http.StatusOK, map[string]any{"success": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"pair_address": rc.PairAddress,
			"x_data_type":  rc.Social.Kind,
			"key":          rc.Social.Key(),
			"community_id": rc.Social.CommunityID,
			"screen_name":  rc.Social.ScreenName,
			"tweet_id":     rc.Social.TweetID,
		})
	}
}
