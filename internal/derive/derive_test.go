package derive

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-frozen/pair-dashboard/internal/record"
)

func TestFibonacciLevels(t *testing.T) {
	tests := []struct {
		name    string
		history []float64
		floor   float64
		want62  float64
		want50  float64
	}{
		{"empty history collapses to floor", nil, 5750, 5750, 5750},
		{"history below floor", []float64{1000, 4000}, 5750, 5750, 5750},
		{"peak above floor", []float64{6000, 15750, 9000}, 5750, 5750 + 0.62*10000, 5750 + 0.5*10000},
		{"zero floor", []float64{100}, 0, 62, 50},
	}
	for _, tt := range tests {
		l62, l50 := FibonacciLevels(tt.history, tt.floor)
		assert.InDelta(t, tt.want62, l62, 1e-9, tt.name)
		assert.InDelta(t, tt.want50, l50, 1e-9, tt.name)
	}
}

func TestFibonacciLevelsOrdering(t *testing.T) {
	for _, floor := range []float64{0, 1, 5750, 1e6} {
		for _, extra := range []float64{0, 0.5, 10, 12345.678, 1e9} {
			peak := floor + extra
			l62, l50 := FibonacciLevels([]float64{peak}, floor)
			if !(floor <= l50 && l50 <= l62 && l62 <= peak) {
				t.Errorf("floor=%v peak=%v: got l50=%v l62=%v, want floor <= l50 <= l62 <= peak", floor, peak, l50, l62)
			}
		}
	}
}

func TestClassifyWalletAge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	daysAgo := func(d int) string { return now.AddDate(0, 0, -d).Format(time.RFC3339) }

	tests := []struct {
		fundedAt string
		want     record.WalletAge
	}{
		{"", record.AgeUnknown},
		{"not a date", record.AgeUnknown},
		{daysAgo(0), record.AgeBaby},
		{daysAgo(30), record.AgeBaby},
		{daysAgo(31), record.AgeAdult},
		{daysAgo(180), record.AgeAdult},
		{daysAgo(181), record.AgeOld},
		{daysAgo(2000), record.AgeOld},
		{now.Add(48 * time.Hour).Format(time.RFC3339), record.AgeBaby},
		{"2026-02-27T08:00:00.123Z", record.AgeBaby},
		{"2025-01-01", record.AgeOld},
	}
	for _, tt := range tests {
		if got := ClassifyWalletAge(tt.fundedAt, now); got != tt.want {
			t.Errorf("ClassifyWalletAge(%q) = %q, want %q", tt.fundedAt, got, tt.want)
		}
	}
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		curr, prev, want float64
	}{
		{110, 100, 10},
		{90, 100, -10},
		{500, 0, 0},
		{-3, 0, 0},
		{5, -5, 0},
		{100, 100, 0},
	}
	for _, tt := range tests {
		got := PercentChange(tt.curr, tt.prev)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("PercentChange(%v, %v) = %v, want %v", tt.curr, tt.prev, got, tt.want)
		}
	}
}

func TestAggregateEngagement(t *testing.T) {
	posts := []record.Post{
		{Views: 100, Favorites: 3, Retweets: 1, Replies: 2, Quotes: 1, Bookmarks: 4},
		{Views: 50},
		{},
	}
	got := AggregateEngagement(posts)
	want := Engagement{Posts: 3, Views: 150, Likes: 3, Retweets: 1, Replies: 2, Quotes: 1, Bookmarks: 4}
	assert.Equal(t, want, got)
	assert.Equal(t, Engagement{}, AggregateEngagement(nil))
}

func TestDedupHolders(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	holders := []record.HolderInfo{
		{WalletAddress: "W1", FundedAt: "2026-02-20T00:00:00Z"},
		{WalletAddress: "W1", FundedAt: "2020-01-01T00:00:00Z"},
		{WalletAddress: "W1"},
		{WalletAddress: ""},
	}
	got, counts := DedupHolders(holders, now)
	require.Len(t, got, 1)
	assert.Equal(t, record.AgeBaby, got[0].AgeCategory)
	assert.Equal(t, record.WalletAgeCounts{Baby: 1}, counts)
}

func TestUniqueAuthorsFirstSeenWins(t *testing.T) {
	social := record.SocialData{
		Kind: record.KindPost,
		Post: &record.PostData{
			Post:   record.Post{ID: "7", AuthorHandle: "dev", AuthorName: "Timeline Name", Followers: 1},
			Author: record.Profile{ScreenName: "dev", Name: "Dev", Followers: 900},
		},
	}
	got := UniqueAuthors(social)
	require.Len(t, got, 1)
	assert.Equal(t, record.AuthorFollower{Author: "dev", AuthorName: "Dev", Followers: 900}, got[0])

	assert.Empty(t, UniqueAuthors(record.EmptySocial(record.KindCommunity)))
}

func TestCountWalletAges(t *testing.T) {
	holders := []record.HolderInfo{
		{WalletAddress: "A", AgeCategory: record.AgeBaby},
		{WalletAddress: "B", AgeCategory: record.AgeOld},
		{WalletAddress: "C", AgeCategory: record.AgeOld},
		{WalletAddress: "D", AgeCategory: record.AgeUnknown},
	}
	assert.Equal(t, record.WalletAgeCounts{Baby: 1, Old: 2, Unknown: 1}, CountWalletAges(holders))
	assert.Equal(t, record.WalletAgeCounts{}, CountWalletAges(nil))
}
