package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/web3-frozen/pair-dashboard/internal/derive"
	"github.com/web3-frozen/pair-dashboard/internal/record"
)

// TickLog is the store surface the download route reads.
type TickLog interface {
	Path() string
	Scan(fn func(record.Record)) error
}

// ExportRow is the flat per-tick shape of the CSV and Parquet exports.
type ExportRow struct {
	Timestamp     string  `parquet:"timestamp"`
	DataSource    string  `parquet:"data_source"`
	XDataType     string  `parquet:"x_data_type"`
	MarketCapUSD  float64 `parquet:"market_cap_usd"`
	MarketCapSol  float64 `parquet:"market_cap_sol"`
	FibLevel62    float64 `parquet:"fib_level_62"`
	FibLevel50    float64 `parquet:"fib_level_50"`
	VolumeUSD     float64 `parquet:"volume_usd"`
	BuyVolumeUSD  float64 `parquet:"buy_volume_usd"`
	SellVolumeUSD float64 `parquet:"sell_volume_usd"`
	BuyCount      int64   `parquet:"buy_count"`
	SellCount     int64   `parquet:"sell_count"`
	LiquidityUSD  float64 `parquet:"liquidity_usd"`
	SolPriceUSD   float64 `parquet:"sol_price_usd"`
	NumHolders    int64   `parquet:"num_holders"`
	Posts         int64   `parquet:"posts"`
	Views         int64   `parquet:"views"`
	Likes         int64   `parquet:"likes"`
	Retweets      int64   `parquet:"retweets"`
	Replies       int64   `parquet:"replies"`
	MemberCount   int64   `parquet:"member_count"`
	UniqueAuthors int64   `parquet:"unique_authors"`
	SearchPosts   int64   `parquet:"search_posts"`
}

var csvHeader = []string{
	"timestamp", "data_source", "x_data_type", "market_cap_usd", "market_cap_sol",
	"fib_level_62", "fib_level_50", "volume_usd", "buy_volume_usd", "sell_volume_usd",
	"buy_count", "sell_count", "liquidity_usd", "sol_price_usd", "num_holders",
	"posts", "views", "likes", "retweets", "replies", "member_count", "unique_authors",
	"search_posts",
}

func exportRow(rec record.Record) ExportRow {
	p := rec.Platform
	e := derive.AggregateEngagement(rec.Social.Posts())
	row := ExportRow{
		Timestamp:     rec.Timestamp.UTC().Format(time.RFC3339Nano),
		DataSource:    string(rec.MarketVendor),
		XDataType:     string(rec.SocialKind),
		MarketCapUSD:  p.MarketCapUSD,
		MarketCapSol:  p.MarketCapSol,
		FibLevel62:    p.FibLevel62,
		FibLevel50:    p.FibLevel50,
		VolumeUSD:     p.NetVolumeUSD,
		BuyVolumeUSD:  p.BuyVolumeUSD,
		SellVolumeUSD: p.SellVolumeUSD,
		BuyCount:      p.BuyCount,
		SellCount:     p.SellCount,
		LiquidityUSD:  p.LiquidityUSD,
		SolPriceUSD:   p.SolPriceUSD,
		NumHolders:    p.NumHolders,
		Posts:         int64(e.Posts),
		Views:         e.Views,
		Likes:         e.Likes,
		Retweets:      e.Retweets,
		Replies:       e.Replies,
		MemberCount:   rec.Social.MemberCount(),
		UniqueAuthors: int64(rec.UniqueAuthorsCount),
	}
	if rec.SearchMetrics != nil {
		row.SearchPosts = int64(rec.SearchMetrics.TotalPosts)
	}
	return row
}

func (r ExportRow) csv() []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	i := func(v int64) string { return strconv.FormatInt(v, 10) }
	return []string{
		r.Timestamp, r.DataSource, r.XDataType, f(r.MarketCapUSD), f(r.MarketCapSol),
		f(r.FibLevel62), f(r.FibLevel50), f(r.VolumeUSD), f(r.BuyVolumeUSD), f(r.SellVolumeUSD),
		i(r.BuyCount), i(r.SellCount), f(r.LiquidityUSD), f(r.SolPriceUSD), i(r.NumHolders),
		i(r.Posts), i(r.Views), i(r.Likes), i(r.Retweets), i(r.Replies), i(r.MemberCount),
		i(r.UniqueAuthors), i(r.SearchPosts),
	}
}

func writeCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.csv()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Download streams the active pair's log: format=jsonl (default) serves the
// raw file, csv and parquet flatten each record into an ExportRow.
func Download(log TickLog, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "jsonl"
		}
		switch format {
		case "jsonl", "csv", "parquet":
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
			return
		}

		path := log.Path()
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				writeError(w, http.StatusNotFound, "No data available")
				return
			}
			logger.Error("stat tick log", "path", path, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read data")
			return
		}

		if format == "jsonl" {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Content-Disposition", `attachment; filename="trading_data.jsonl"`)
			http.ServeFile(w, r, path)
			return
		}

		var rows []ExportRow
		if err := log.Scan(func(rec record.Record) { rows = append(rows, exportRow(rec)) }); err != nil {
			logger.Error("scan tick log", "path", path, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to read data")
			return
		}

		var err error
		if format == "csv" {
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition", `attachment; filename="trading_data.csv"`)
			err = writeCSV(w, rows)
		} else {
			w.Header().Set("Content-Type", "application/vnd.apache.parquet")
			w.Header().Set("Content-Disposition", `attachment; filename="trading_data.parquet"`)
			err = parquet.Write(w, rows)
		}
		if err != nil {
			logger.Error("write export", "format", format, "error", err)
		}
	}
}
