// Package derive holds the pure metric computations shared by the poll
// scheduler and the query facade.
package derive

import (
	"strings"
	"time"

	"github.com/web3-frozen/pair-dashboard/internal/record"
)

// DefaultFibFloor is the market cap below which fibonacci levels collapse.
const DefaultFibFloor = 5750

const (
	babyMaxDays  = 30
	adultMaxDays = 180
)

// FibonacciLevels returns the 62% and 50% retracement levels between floor
// and the peak of history. The peak never drops below floor.
func FibonacciLevels(history []float64, floor float64) (level62, level50 float64) {
	peak := floor
	for _, mc := range history {
		if mc > peak {
			peak = mc
		}
	}
	span := peak - floor
	return floor + 0.62*span, floor + 0.50*span
}

var fundedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ClassifyWalletAge buckets a wallet by whole days since fundedAt.
func ClassifyWalletAge(fundedAt string, now time.Time) record.WalletAge {
	fundedAt = strings.TrimSpace(fundedAt)
	if fundedAt == "" {
		return record.AgeUnknown
	}
	var funded time.Time
	var err error
	for _, layout := range fundedAtLayouts {
		funded, err = time.Parse(layout, fundedAt)
		if err == nil {
			break
		}
	}
	if err != nil {
		return record.AgeUnknown
	}

	days := int(now.Sub(funded).Hours() / 24)
	switch {
	case days <= babyMaxDays:
		return record.AgeBaby
	case days <= adultMaxDays:
		return record.AgeAdult
	default:
		return record.AgeOld
	}
}

// PercentChange is (curr-prev)/prev*100, or 0 when prev is not positive.
func PercentChange(curr, prev float64) float64 {
	if prev <= 0 {
		return 0
	}
	return (curr - prev) / prev * 100
}

// Engagement is the summed interaction counts over a post list.
type Engagement struct {
	Posts     int   `json:"posts"`
	Views     int64 `json:"views"`
	Likes     int64 `json:"likes"`
	Retweets  int64 `json:"retweets"`
	Replies   int64 `json:"replies"`
	Quotes    int64 `json:"quotes"`
	Bookmarks int64 `json:"bookmarks"`
}

// AggregateEngagement sums engagement across posts.
func AggregateEngagement(posts []record.Post) Engagement {
	e := Engagement{Posts: len(posts)}
	for _, p := range posts {
		e.Views += p.Views
		e.Likes += p.Favorites
		e.Retweets += p.Retweets
		e.Replies += p.Replies
		e.Quotes += p.Quotes
		e.Bookmarks += p.Bookmarks
	}
	return e
}

// DedupHolders drops repeated and empty wallet addresses, keeping the first
// occurrence, and classifies each survivor.
func DedupHolders(holders []record.HolderInfo, now time.Time) ([]record.HolderInfo, record.WalletAgeCounts) {
	seen := make(map[string]struct{}, len(holders))
	out := make([]record.HolderInfo, 0, len(holders))
	for _, h := range holders {
		if h.WalletAddress == "" {
			continue
		}
		if _, ok := seen[h.WalletAddress]; ok {
			continue
		}
		seen[h.WalletAddress] = struct{}{}
		h.AgeCategory = ClassifyWalletAge(h.FundedAt, now)
		out = append(out, h)
	}
	return out, CountWalletAges(out)
}

// CountWalletAges builds the age histogram of already classified holders.
func CountWalletAges(holders []record.HolderInfo) record.WalletAgeCounts {
	var counts record.WalletAgeCounts
	for _, h := range holders {
		counts.Add(h.AgeCategory)
	}
	return counts
}

// UniqueAuthors unions the authors of a social fragment by handle. The first
// occurrence wins for display name and follower count.
func UniqueAuthors(s record.SocialData) []record.AuthorFollower {
	seen := make(map[string]struct{})
	out := []record.AuthorFollower{}
	for _, a := range s.Authors() {
		if _, ok := seen[a.Author]; ok {
			continue
		}
		seen[a.Author] = struct{}{}
		out = append(out, a)
	}
	return out
}
