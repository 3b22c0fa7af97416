package record

import (
	"errors"
	"fmt"
)

// SocialKind is the social entity type a run targets.
type SocialKind string

const (
	KindCommunity SocialKind = "community"
	KindAccount   SocialKind = "single_account"
	KindPost      SocialKind = "post"
)

// Valid reports whether k is one of the known kinds.
func (k SocialKind) Valid() bool {
	switch k {
	case KindCommunity, KindAccount, KindPost:
		return true
	}
	return false
}

// SocialTarget identifies the social entity for a run. Exactly the field
// matching Kind is set.
type SocialTarget struct {
	Kind        SocialKind `json:"kind"`
	CommunityID string     `json:"communityId,omitempty"`
	ScreenName  string     `json:"screenName,omitempty"`
	TweetID     string     `json:"tweetId,omitempty"`
}

// Key returns the identifier matching Kind.
func (t SocialTarget) Key() string {
	switch t.Kind {
	case KindCommunity:
		return t.CommunityID
	case KindAccount:
		return t.ScreenName
	case KindPost:
		return t.TweetID
	}
	return ""
}

// Validate checks that Kind is known and its identifier is present.
func (t SocialTarget) Validate() error {
	if !t.Kind.Valid() {
		return fmt.Errorf("unknown social kind %q", t.Kind)
	}
	if t.Key() == "" {
		return errors.New("missing social identifier for " + string(t.Kind))
	}
	return nil
}

// Post is the uniform post shape shared by all social kinds.
type Post struct {
	ID           string `json:"tweet_id"`
	Text         string `json:"text"`
	CreatedAt    string `json:"created_at"`
	AuthorName   string `json:"author_name"`
	AuthorHandle string `json:"author_screen"`
	Followers    int64  `json:"followers_count"`
	Retweets     int64  `json:"retweet_count"`
	Replies      int64  `json:"reply_count"`
	Favorites    int64  `json:"favorite_count"`
	Quotes       int64  `json:"quote_count"`
	Bookmarks    int64  `json:"bookmark_count"`
	Views        int64  `json:"views"`
}

// Profile describes an account.
type Profile struct {
	RestID      string `json:"rest_id"`
	Name        string `json:"name"`
	ScreenName  string `json:"screen_name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	Followers   int64  `json:"followers_count"`
	Following   int64  `json:"friends_count"`
	Statuses    int64  `json:"statuses_count"`
	Favourites  int64  `json:"favourites_count"`
	Media       int64  `json:"media_count"`
	Verified    bool   `json:"verified"`
}

// CommunityData is the community variant: metadata plus its ranked timeline.
type CommunityData struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	MemberCount int64    `json:"member_count"`
	Admin       *Profile `json:"admin,omitempty"`
	Timeline    []Post   `json:"timeline"`
}

// AccountData is the single-account variant.
type AccountData struct {
	Profile  Profile `json:"profile"`
	Timeline []Post  `json:"timeline"`
}

// PostData is the single-post variant.
type PostData struct {
	Post   Post    `json:"post"`
	Author Profile `json:"user"`
}

// SocialData is a tagged union over the three social kinds. Only the
// variant matching Kind is non-nil; an empty variant means the fetch failed.
type SocialData struct {
	Kind      SocialKind     `json:"kind"`
	Community *CommunityData `json:"community,omitempty"`
	Account   *AccountData   `json:"account,omitempty"`
	Post      *PostData      `json:"post,omitempty"`
}

// EmptySocial returns the default fragment for kind.
func EmptySocial(kind SocialKind) SocialData {
	return SocialData{Kind: kind}
}

// Posts returns the uniform post list regardless of kind.
func (s SocialData) Posts() []Post {
	switch s.Kind {
	case KindCommunity:
		if s.Community != nil {
			return s.Community.Timeline
		}
	case KindAccount:
		if s.Account != nil {
			return s.Account.Timeline
		}
	case KindPost:
		if s.Post != nil && s.Post.Post.ID != "" {
			return []Post{s.Post.Post}
		}
	}
	return nil
}

// Authors returns the authors found in the fragment, profile or post author
// first, then timeline authors in order. Duplicates are kept; callers dedup.
func (s SocialData) Authors() []AuthorFollower {
	var out []AuthorFollower
	switch s.Kind {
	case KindAccount:
		if s.Account != nil && s.Account.Profile.ScreenName != "" {
			p := s.Account.Profile
			out = append(out, AuthorFollower{Author: p.ScreenName, AuthorName: p.Name, Followers: p.Followers})
		}
	case KindPost:
		if s.Post != nil && s.Post.Author.ScreenName != "" {
			a := s.Post.Author
			out = append(out, AuthorFollower{Author: a.ScreenName, AuthorName: a.Name, Followers: a.Followers})
		}
	}
	for _, p := range s.Posts() {
		if p.AuthorHandle == "" {
			continue
		}
		out = append(out, AuthorFollower{Author: p.AuthorHandle, AuthorName: p.AuthorName, Followers: p.Followers})
	}
	return out
}

// MemberCount is the audience size of the target: community members,
// account followers or the post author's followers.
func (s SocialData) MemberCount() int64 {
	switch s.Kind {
	case KindCommunity:
		if s.Community != nil {
			return s.Community.MemberCount
		}
	case KindAccount:
		if s.Account != nil {
			return s.Account.Profile.Followers
		}
	case KindPost:
		if s.Post != nil {
			return s.Post.Author.Followers
		}
	}
	return 0
}
