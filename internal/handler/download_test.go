package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-frozen/pair-dashboard/internal/record"
)

func download(st TickLog, query string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	Download(st, discard()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/download"+query, nil))
	return rec
}

func TestDownloadEmptyStore(t *testing.T) {
	rec := download(openLog(t), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadUnknownFormat(t *testing.T) {
	rec := download(openLog(t), "?format=xlsx")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadJSONL(t *testing.T) {
	st := openLog(t)
	appendTick(t, st, 0, 9000)
	appendTick(t, st, 1, 9500)

	rec := download(st, "")
	require.Equal(t, http.StatusOK, rec.Code)

	raw, err := os.ReadFile(st.Path())
	require.NoError(t, err)
	assert.Equal(t, string(raw), rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "trading_data.jsonl")
}

func TestDownloadCSV(t *testing.T) {
	st := openLog(t)
	appendTick(t, st, 0, 9000)
	appendTick(t, st, 1, 9500)

	rec := download(st, "?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "9500", rows[2][3])
	assert.Equal(t, "post", rows[2][2])
}

func TestDownloadParquet(t *testing.T) {
	st := openLog(t)
	appendTick(t, st, 0, 9000)
	appendTick(t, st, 1, 9500)

	rec := download(st, "?format=parquet")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.Bytes()
	rows, err := parquet.Read[ExportRow](bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 9000.0, rows[0].MarketCapUSD)
	assert.Equal(t, int64(101), rows[1].NumHolders)
	assert.Equal(t, int64(100), rows[1].Views)
	assert.Equal(t, int64(7), rows[1].Likes)
}

func TestExportRowSearchPosts(t *testing.T) {
	rec := record.Record{SearchMetrics: &record.SearchMetrics{TotalPosts: 12}}
	assert.Equal(t, int64(12), exportRow(rec).SearchPosts)
	assert.Equal(t, int64(0), exportRow(record.Record{}).SearchPosts)
}
