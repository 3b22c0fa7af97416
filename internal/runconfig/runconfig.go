// Package runconfig holds the process-wide run configuration: which pair to
// poll, which social entity to follow and which market vendor to use.
package runconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/web3-frozen/pair-dashboard/internal/record"
)

var (
	ErrMissingPair    = errors.New("missing required field: pairAddress")
	ErrNoSocialKind   = errors.New("could not determine X data type")
	ErrUnknownVendor  = errors.New("unknown data source")
	communityPattern  = regexp.MustCompile(`communities/(\d+)`)
	statusPattern     = regexp.MustCompile(`/status/(\d+)`)
	screenNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// RunConfig is an immutable snapshot of one configuration call.
type RunConfig struct {
	PairAddress    string              `json:"pairAddress"`
	SearchQuery    string              `json:"searchQuery"`
	MarketVendor   record.MarketVendor `json:"dataSource"`
	Social         record.SocialTarget `json:"social"`
	TwitterURL     string              `json:"twitterUrl,omitempty"`
	AutoDiscovered bool                `json:"autoDiscovered"`
	ConfiguredAt   time.Time           `json:"configuredAt"`
}

// Request is the body of a configuration call.
type Request struct {
	PairAddress string `json:"pairAddress"`
	SearchQuery string `json:"search_query"`
	CommunityID string `json:"communityId"`
	ScreenName  string `json:"screenName"`
	TweetID     string `json:"tweetId"`
	DataSource  string `json:"dataSource"`
}

// Pair returns the target identifier, falling back to the search query.
func (r Request) Pair() string {
	if p := strings.TrimSpace(r.PairAddress); p != "" {
		return p
	}
	return strings.TrimSpace(r.SearchQuery)
}

// NeedsDetection reports whether no social identifier was supplied.
func (r Request) NeedsDetection() bool {
	return r.CommunityID == "" && r.ScreenName == "" && r.TweetID == ""
}

// Resolve builds a RunConfig from req. twitterURL is the market fragment's
// social link, consulted only when req carries no social identifier.
func Resolve(req Request, twitterURL string, now time.Time) (RunConfig, error) {
	pair := req.Pair()
	if pair == "" {
		return RunConfig{}, ErrMissingPair
	}
	vendor, ok := record.ParseMarketVendor(req.DataSource)
	if !ok {
		return RunConfig{}, fmt.Errorf("%w: %q", ErrUnknownVendor, req.DataSource)
	}

	rc := RunConfig{
		PairAddress:  pair,
		SearchQuery:  pair,
		MarketVendor: vendor,
		TwitterURL:   twitterURL,
		ConfiguredAt: now,
	}

	switch {
	case req.CommunityID != "":
		rc.Social = record.SocialTarget{Kind: record.KindCommunity, CommunityID: req.CommunityID}
	case req.ScreenName != "":
		rc.Social = record.SocialTarget{Kind: record.KindAccount, ScreenName: strings.TrimPrefix(req.ScreenName, "@")}
	case req.TweetID != "":
		rc.Social = record.SocialTarget{Kind: record.KindPost, TweetID: req.TweetID}
	default:
		target, ok := DetectSocial(twitterURL)
		if !ok {
			return RunConfig{}, ErrNoSocialKind
		}
		rc.Social = target
		rc.AutoDiscovered = true
	}
	return rc, nil
}

// DetectSocial classifies a social link: communities/<digits> is a
// community, /status/<digits> a post, otherwise the trailing path segment is
// an account handle.
func DetectSocial(link string) (record.SocialTarget, bool) {
	link = strings.TrimSpace(link)
	if link == "" {
		return record.SocialTarget{}, false
	}
	if m := communityPattern.FindStringSubmatch(link); m != nil {
		return record.SocialTarget{Kind: record.KindCommunity, CommunityID: m[1]}, true
	}
	if m := statusPattern.FindStringSubmatch(link); m != nil {
		return record.SocialTarget{Kind: record.KindPost, TweetID: m[1]}, true
	}

	path := link
	if u, err := url.Parse(link); err == nil && u.Path != "" {
		path = u.Path
	}
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	path = strings.TrimPrefix(path, "@")
	if !screenNamePattern.MatchString(path) {
		return record.SocialTarget{}, false
	}
	return record.SocialTarget{Kind: record.KindAccount, ScreenName: path}, true
}

// Holder publishes the current RunConfig. A nil value means the process has
// not been configured yet.
type Holder struct {
	p atomic.Pointer[RunConfig]
}

func (h *Holder) Load() *RunConfig { return h.p.Load() }

func (h *Holder) Store(rc RunConfig) { h.p.Store(&rc) }

// Save writes rc to path atomically.
func Save(path string, rc RunConfig) error {
	data, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".runconfig-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFile reads a saved RunConfig. A missing file returns nil, nil.
func LoadFile(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var rc RunConfig
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &rc, nil
}
