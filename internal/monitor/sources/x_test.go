package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path"
	"testing"

	"github.com/web3-frozen/pair-dashboard/internal/record"
)

const (
	testAdmin = `{"rest_id":"1","core":{"name":"Admin","screen_name":"admin"},"legacy":{"followers_count":500}}`
	testTweet = `{"__typename":"Tweet","rest_id":"900","core":{"user_results":{"result":{"rest_id":"2","core":{"name":"Alice","screen_name":"alice"},"legacy":{"followers_count":120}}}},"legacy":{"full_text":"gm","favorite_count":7,"retweet_count":2,"reply_count":1},"views":{"count":"3400"}}`
)

func timelineJSON(entries ...string) string {
	s := `{"instructions":[{"type":"TimelineClearCache"},{"type":"TimelineAddEntries","entries":[`
	for i, e := range entries {
		if i > 0 {
			s += ","
		}
		s += `{"content":{"itemContent":{"tweet_results":{"result":` + e + `}}}}`
	}
	return s + `]}]}`
}

func newXTestServer(t *testing.T, routes map[string]string) *X {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[path.Base(r.URL.Path)]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("variables") == "" || r.URL.Query().Get("features") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return &X{client: srv.Client(), baseURL: srv.URL}
}

func TestXFetchCommunity(t *testing.T) {
	x := newXTestServer(t, map[string]string{
		"CommunitiesFetchOneQuery": `{"data":{"communityResults":{"result":{"id_str":"42","name":"Pumpers","member_count":1234,"admin_results":{"result":` + testAdmin + `}}}}}`,
		"CommunityTweetsTimeline":  `{"data":{"communityResults":{"result":{"ranked_community_timeline":{"timeline":` + timelineJSON(testTweet, `{"__typename":"TweetTombstone"}`) + `}}}}}`,
	})

	s, err := x.FetchSocial(context.Background(), record.SocialTarget{Kind: record.KindCommunity, CommunityID: "42"})
	if err != nil {
		t.Fatalf("FetchSocial error: %v", err)
	}
	if s.Community == nil {
		t.Fatal("community data is nil")
	}
	if s.Community.MemberCount != 1234 {
		t.Errorf("member_count = %d, want 1234", s.Community.MemberCount)
	}
	if s.Community.Admin == nil || s.Community.Admin.ScreenName != "admin" {
		t.Errorf("admin = %+v, want admin", s.Community.Admin)
	}
	if len(s.Community.Timeline) != 1 {
		t.Fatalf("len(timeline) = %d, want 1", len(s.Community.Timeline))
	}
	p := s.Community.Timeline[0]
	if p.ID != "900" || p.Views != 3400 || p.Favorites != 7 || p.AuthorHandle != "alice" {
		t.Errorf("post = %+v", p)
	}
}

func TestXFetchCommunityPartial(t *testing.T) {
	x := newXTestServer(t, map[string]string{
		"CommunityTweetsTimeline": `{"data":{"communityResults":{"result":{"ranked_community_timeline":{"timeline":` + timelineJSON(testTweet) + `}}}}}`,
	})

	s, err := x.FetchSocial(context.Background(), record.SocialTarget{Kind: record.KindCommunity, CommunityID: "42"})
	if err == nil {
		t.Fatal("expected error for failed metadata call")
	}
	if s.Community == nil {
		t.Fatal("partial community data should be kept")
	}
	if s.Community.ID != "42" || len(s.Community.Timeline) != 1 {
		t.Errorf("community = %+v", s.Community)
	}
}

func TestXFetchAccount(t *testing.T) {
	x := newXTestServer(t, map[string]string{
		"UserByScreenName": `{"data":{"user":{"result":` + testAdmin + `}}}`,
		"UserTweets":       `{"data":{"user":{"result":{"timeline":{"timeline":` + timelineJSON(testTweet, testTweet) + `}}}}}`,
	})

	s, err := x.FetchSocial(context.Background(), record.SocialTarget{Kind: record.KindAccount, ScreenName: "admin"})
	if err != nil {
		t.Fatalf("FetchSocial error: %v", err)
	}
	if s.Account == nil {
		t.Fatal("account data is nil")
	}
	if s.Account.Profile.Followers != 500 {
		t.Errorf("followers = %d, want 500", s.Account.Profile.Followers)
	}
	if len(s.Account.Timeline) != 2 {
		t.Errorf("len(timeline) = %d, want 2", len(s.Account.Timeline))
	}
}

func TestXFetchAccountTimelineFails(t *testing.T) {
	x := newXTestServer(t, map[string]string{
		"UserByScreenName": `{"data":{"user":{"result":` + testAdmin + `}}}`,
	})

	s, err := x.FetchSocial(context.Background(), record.SocialTarget{Kind: record.KindAccount, ScreenName: "admin"})
	if err == nil {
		t.Fatal("expected error for failed timeline")
	}
	if s.Account == nil || s.Account.Profile.ScreenName != "admin" {
		t.Errorf("profile should survive timeline failure, got %+v", s.Account)
	}
}

func TestXFetchPost(t *testing.T) {
	x := newXTestServer(t, map[string]string{
		"TweetResultByRestId": `{"data":{"tweetResult":{"result":` + testTweet + `}}}`,
	})

	s, err := x.FetchSocial(context.Background(), record.SocialTarget{Kind: record.KindPost, TweetID: "900"})
	if err != nil {
		t.Fatalf("FetchSocial error: %v", err)
	}
	if s.Post == nil {
		t.Fatal("post data is nil")
	}
	if s.Post.Author.ScreenName != "alice" || s.Post.Post.Retweets != 2 {
		t.Errorf("post = %+v", s.Post)
	}
}

func TestXFetchPostNotFound(t *testing.T) {
	x := newXTestServer(t, map[string]string{
		"TweetResultByRestId": `{"data":{"tweetResult":{}}}`,
	})

	s, err := x.FetchSocial(context.Background(), record.SocialTarget{Kind: record.KindPost, TweetID: "1"})
	if err == nil {
		t.Fatal("expected error for missing tweet")
	}
	if s.Post != nil {
		t.Errorf("post = %+v, want nil", s.Post)
	}
	if s.Kind != record.KindPost {
		t.Errorf("kind = %q, want post", s.Kind)
	}
}

func TestXUnsupportedKind(t *testing.T) {
	x := newXTestServer(t, nil)
	if _, err := x.FetchSocial(context.Background(), record.SocialTarget{Kind: "list"}); err == nil {
		t.Fatal("expected error for unsupported kind")
	}
}
