package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/web3-frozen/pair-dashboard/internal/record"
)

const xGraphQLAPI = "https://x.com/i/api/graphql"

// GraphQL operations as "<queryId>/<operationName>".
const (
	opCommunityFetchOne = "pbuqwPzh0Ynrw8RQY3esYA/CommunitiesFetchOneQuery"
	opCommunityTimeline = "Nyt-88UX4-pPCImZNUl9RQ/CommunityTweetsTimeline"
	opUserByScreenName  = "96tVxbPqMZDoYB5pmzezKA/UserByScreenName"
	opUserTweets        = "oBjKz90dxeaKJLDRsW9RPw/UserTweets"
	opTweetByRestID     = "URPP6YZ5eDCjdVMSREn4gg/TweetResultByRestId"
	opSearchTimeline    = "4gROUrdRVzZmO2n_S-DKlA/SearchTimeline"

	timelineCount = 20
)

var xFeatures = mustJSON(map[string]bool{
	"responsive_web_graphql_timeline_navigation_enabled":                      true,
	"responsive_web_graphql_skip_user_profile_image_extensions_enabled":       false,
	"view_counts_everywhere_api_enabled":                                      true,
	"longform_notetweets_consumption_enabled":                                 true,
	"creator_subscriptions_tweet_preview_api_enabled":                         true,
	"communities_web_enable_tweet_community_results_fetch":                    true,
	"verified_phone_label_enabled":                                            true,
	"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled": true,
})

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

type xUser struct {
	RestID string `json:"rest_id"`
	Core   struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
		CreatedAt  string `json:"created_at"`
	} `json:"core"`
	Legacy struct {
		FollowersCount  flexInt `json:"followers_count"`
		FriendsCount    flexInt `json:"friends_count"`
		StatusesCount   flexInt `json:"statuses_count"`
		FavouritesCount flexInt `json:"favourites_count"`
		MediaCount      flexInt `json:"media_count"`
		Description     string  `json:"description"`
	} `json:"legacy"`
	Verification struct {
		Verified bool `json:"verified"`
	} `json:"verification"`
}

func (u xUser) profile() record.Profile {
	return record.Profile{
		RestID:      u.RestID,
		Name:        u.Core.Name,
		ScreenName:  u.Core.ScreenName,
		Description: u.Legacy.Description,
		CreatedAt:   u.Core.CreatedAt,
		Followers:   int64(u.Legacy.FollowersCount),
		Following:   int64(u.Legacy.FriendsCount),
		Statuses:    int64(u.Legacy.StatusesCount),
		Favourites:  int64(u.Legacy.FavouritesCount),
		Media:       int64(u.Legacy.MediaCount),
		Verified:    u.Verification.Verified,
	}
}

type xTweet struct {
	Typename string `json:"__typename"`
	RestID   string `json:"rest_id"`
	Core     struct {
		UserResults struct {
			Result xUser `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
	Legacy struct {
		FullText         string  `json:"full_text"`
		CreatedAt        string  `json:"created_at"`
		FavoriteCount    flexInt `json:"favorite_count"`
		RetweetCount     flexInt `json:"retweet_count"`
		ReplyCount       flexInt `json:"reply_count"`
		QuoteCount       flexInt `json:"quote_count"`
		BookmarkCount    flexInt `json:"bookmark_count"`
		ExtendedEntities struct {
			Media []json.RawMessage `json:"media"`
		} `json:"extended_entities"`
	} `json:"legacy"`
	Views struct {
		Count flexInt `json:"count"`
	} `json:"views"`
}

func (t xTweet) post() record.Post {
	u := t.Core.UserResults.Result
	return record.Post{
		ID:           t.RestID,
		Text:         t.Legacy.FullText,
		CreatedAt:    t.Legacy.CreatedAt,
		AuthorName:   u.Core.Name,
		AuthorHandle: u.Core.ScreenName,
		Followers:    int64(u.Legacy.FollowersCount),
		Retweets:     int64(t.Legacy.RetweetCount),
		Replies:      int64(t.Legacy.ReplyCount),
		Favorites:    int64(t.Legacy.FavoriteCount),
		Quotes:       int64(t.Legacy.QuoteCount),
		Bookmarks:    int64(t.Legacy.BookmarkCount),
		Views:        int64(t.Views.Count),
	}
}

type xInstruction struct {
	Type    string `json:"type"`
	Entries []struct {
		Content struct {
			ItemContent struct {
				TweetResults struct {
					Result xTweet `json:"result"`
				} `json:"tweet_results"`
			} `json:"itemContent"`
		} `json:"content"`
	} `json:"entries"`
}

// tweets returns the Tweet results in instructions. With addOnly set, only
// TimelineAddEntries instructions are considered.
func tweets(instructions []xInstruction, addOnly bool) []xTweet {
	var out []xTweet
	for _, ins := range instructions {
		if addOnly && ins.Type != "TimelineAddEntries" {
			continue
		}
		for _, e := range ins.Entries {
			t := e.Content.ItemContent.TweetResults.Result
			if t.Typename != "Tweet" {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

func timelinePosts(instructions []xInstruction) []record.Post {
	ts := tweets(instructions, true)
	posts := make([]record.Post, 0, len(ts))
	for _, t := range ts {
		posts = append(posts, t.post())
	}
	return posts
}

// X is the social-timeline adapter. One client serves all social kinds.
type X struct {
	client  *http.Client
	baseURL string
}

func NewX(client *http.Client) *X {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &X{client: client, baseURL: xGraphQLAPI}
}

func (x *X) Name() string { return "x" }

// FetchSocial dispatches on target.Kind. A variant left nil means the
// fetch failed; partial failures keep what was fetched.
func (x *X) FetchSocial(ctx context.Context, target record.SocialTarget) (record.SocialData, error) {
	switch target.Kind {
	case record.KindCommunity:
		c, err := x.community(ctx, target.CommunityID)
		return record.SocialData{Kind: target.Kind, Community: c}, err
	case record.KindAccount:
		a, err := x.account(ctx, target.ScreenName)
		return record.SocialData{Kind: target.Kind, Account: a}, err
	case record.KindPost:
		p, err := x.post(ctx, target.TweetID)
		return record.SocialData{Kind: target.Kind, Post: p}, err
	}
	return record.EmptySocial(target.Kind), fmt.Errorf("x: unsupported social kind %q", target.Kind)
}

func (x *X) graphql(ctx context.Context, op string, variables any, out any) error {
	q := url.Values{
		"variables": {mustJSON(variables)},
		"features":  {xFeatures},
	}
	if err := getJSON(ctx, x.client, x.baseURL+"/"+op+"?"+q.Encode(), out); err != nil {
		return fmt.Errorf("x API %s: %w", op, err)
	}
	return nil
}

func (x *X) community(ctx context.Context, id string) (*record.CommunityData, error) {
	var one struct {
		Data struct {
			CommunityResults struct {
				Result struct {
					IDStr        string  `json:"id_str"`
					Name         string  `json:"name"`
					Description  string  `json:"description"`
					MemberCount  flexInt `json:"member_count"`
					AdminResults struct {
						Result xUser `json:"result"`
					} `json:"admin_results"`
				} `json:"result"`
			} `json:"communityResults"`
		} `json:"data"`
	}
	var timeline struct {
		Data struct {
			CommunityResults struct {
				Result struct {
					RankedCommunityTimeline struct {
						Timeline struct {
							Instructions []xInstruction `json:"instructions"`
						} `json:"timeline"`
					} `json:"ranked_community_timeline"`
				} `json:"result"`
			} `json:"communityResults"`
		} `json:"data"`
	}

	var errs []error
	if err := x.graphql(ctx, opCommunityFetchOne, map[string]any{"communityId": id, "withDmMuting": false}, &one); err != nil {
		errs = append(errs, err)
	}
	vars := map[string]any{
		"communityId":     id,
		"count":           timelineCount,
		"displayLocation": "Community",
		"rankingMode":     "Relevance",
		"withCommunity":   true,
	}
	if err := x.graphql(ctx, opCommunityTimeline, vars, &timeline); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 2 {
		return nil, errors.Join(errs...)
	}

	r := one.Data.CommunityResults.Result
	c := &record.CommunityData{
		ID:          r.IDStr,
		Name:        r.Name,
		Description: r.Description,
		MemberCount: int64(r.MemberCount),
		Timeline:    timelinePosts(timeline.Data.CommunityResults.Result.RankedCommunityTimeline.Timeline.Instructions),
	}
	if c.ID == "" {
		c.ID = id
	}
	if admin := r.AdminResults.Result; admin.Core.ScreenName != "" {
		p := admin.profile()
		c.Admin = &p
	}
	return c, errors.Join(errs...)
}

func (x *X) account(ctx context.Context, screenName string) (*record.AccountData, error) {
	var user struct {
		Data struct {
			User struct {
				Result xUser `json:"result"`
			} `json:"user"`
		} `json:"data"`
	}
	vars := map[string]any{"screen_name": screenName, "withSafetyModeUserFields": true}
	if err := x.graphql(ctx, opUserByScreenName, vars, &user); err != nil {
		return nil, err
	}
	u := user.Data.User.Result
	if u.RestID == "" {
		return nil, fmt.Errorf("x API %s: user %q not found", opUserByScreenName, screenName)
	}
	a := &record.AccountData{Profile: u.profile()}

	var timeline struct {
		Data struct {
			User struct {
				Result struct {
					Timeline struct {
						Timeline struct {
							Instructions []xInstruction `json:"instructions"`
						} `json:"timeline"`
					} `json:"timeline"`
				} `json:"result"`
			} `json:"user"`
		} `json:"data"`
	}
	vars = map[string]any{
		"userId":                 u.RestID,
		"count":                  timelineCount,
		"includePromotedContent": false,
		"withVoice":              true,
	}
	if err := x.graphql(ctx, opUserTweets, vars, &timeline); err != nil {
		return a, err
	}
	a.Timeline = timelinePosts(timeline.Data.User.Result.Timeline.Timeline.Instructions)
	return a, nil
}

func (x *X) post(ctx context.Context, tweetID string) (*record.PostData, error) {
	var resp struct {
		Data struct {
			TweetResult struct {
				Result xTweet `json:"result"`
			} `json:"tweetResult"`
		} `json:"data"`
	}
	vars := map[string]any{
		"tweetId":                tweetID,
		"withCommunity":          false,
		"includePromotedContent": false,
		"withVoice":              false,
	}
	if err := x.graphql(ctx, opTweetByRestID, vars, &resp); err != nil {
		return nil, err
	}
	t := resp.Data.TweetResult.Result
	if t.RestID == "" {
		return nil, fmt.Errorf("x API %s: tweet %s not found", opTweetByRestID, tweetID)
	}
	return &record.PostData{Post: t.post(), Author: t.Core.UserResults.Result.profile()}, nil
}
