package handler

import (
	"log/slog"
	"net/http"

	"github.com/web3-frozen/pair-dashboard/internal/query"
)

// view adapts a query function to a route. A read error is logged and
// answered with 500; the partial view is dropped.
func view[T any](r query.Reader, logger *slog.Logger, name string, fn func(query.Reader) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		v, err := fn(r)
		if err != nil {
			logger.Error("read view failed", "view", name, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read data")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func MarketCap(r query.Reader, logger *slog.Logger) http.HandlerFunc {
	return view(r, logger, "marketcap", query.MarketCap)
}

func BuysSells(r query.Reader, logger *slog.Logger) http.HandlerFunc {
	return view(r, logger, "buys-sells", query.BuysSells)
}

func Holders(r query.Reader, logger *slog.Logger) http.HandlerFunc {
	return view(r, logger, "holders", query.Holders)
}

func Social(r query.Reader, logger *slog.Logger) http.HandlerFunc {
	return view(r, logger, "social", query.Social)
}

func TwitterSearch(r query.Reader, logger *slog.Logger) http.HandlerFunc {
	return view(r, logger, "twitter-search", query.TwitterSearch)
}

func History(r query.Reader, logger *slog.Logger) http.HandlerFunc {
	return view(r, logger, "history", query.History)
}

func WalletAge(r query.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, query.WalletAge(r))
	}
}

func Metrics(r query.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, query.Metrics(r))
	}
}

func TokenInfo(r query.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, query.TokenInfo(r))
	}
}

// Latest returns the newest record, or 404 before the first tick.
func Latest(r query.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rec, ok := query.Latest(r)
		if !ok {
			writeError(w, http.StatusNotFound, "No data available")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}
