package record

import "testing"

func TestSocialDataPosts(t *testing.T) {
	post := Post{ID: "1", AuthorHandle: "dev", Views: 10}
	tests := []struct {
		name string
		data SocialData
		want int
	}{
		{"community", SocialData{Kind: KindCommunity, Community: &CommunityData{Timeline: []Post{post, post}}}, 2},
		{"account", SocialData{Kind: KindAccount, Account: &AccountData{Timeline: []Post{post}}}, 1},
		{"post", SocialData{Kind: KindPost, Post: &PostData{Post: post}}, 1},
		{"empty post", SocialData{Kind: KindPost, Post: &PostData{}}, 0},
		{"failed fetch", EmptySocial(KindCommunity), 0},
		{"mismatched variant", SocialData{Kind: KindAccount, Community: &CommunityData{Timeline: []Post{post}}}, 0},
	}
	for _, tt := range tests {
		if got := len(tt.data.Posts()); got != tt.want {
			t.Errorf("%s: len(Posts()) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestSocialDataAuthorsProfileFirst(t *testing.T) {
	data := SocialData{
		Kind: KindAccount,
		Account: &AccountData{
			Profile: Profile{ScreenName: "owner", Name: "Owner", Followers: 500},
			Timeline: []Post{
				{ID: "1", AuthorHandle: "owner", AuthorName: "Owner 2", Followers: 1},
				{ID: "2", AuthorHandle: ""},
				{ID: "3", AuthorHandle: "other", Followers: 7},
			},
		},
	}
	got := data.Authors()
	if len(got) != 3 {
		t.Fatalf("len(Authors()) = %d, want 3", len(got))
	}
	if got[0].Author != "owner" || got[0].Followers != 500 {
		t.Errorf("first author = %+v, want profile owner with 500 followers", got[0])
	}
	if got[2].Author != "other" {
		t.Errorf("last author = %q, want other", got[2].Author)
	}
}

func TestSocialTargetValidate(t *testing.T) {
	tests := []struct {
		target  SocialTarget
		wantErr bool
	}{
		{SocialTarget{Kind: KindCommunity, CommunityID: "42"}, false},
		{SocialTarget{Kind: KindAccount, ScreenName: "dev"}, false},
		{SocialTarget{Kind: KindPost, TweetID: "9"}, false},
		{SocialTarget{Kind: KindPost, ScreenName: "dev"}, true},
		{SocialTarget{Kind: "group", CommunityID: "1"}, true},
	}
	for _, tt := range tests {
		err := tt.target.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.target, err, tt.wantErr)
		}
	}
}

func TestMemberCount(t *testing.T) {
	tests := []struct {
		data SocialData
		want int64
	}{
		{SocialData{Kind: KindCommunity, Community: &CommunityData{MemberCount: 12}}, 12},
		{SocialData{Kind: KindAccount, Account: &AccountData{Profile: Profile{Followers: 30}}}, 30},
		{SocialData{Kind: KindPost, Post: &PostData{Author: Profile{Followers: 4}}}, 4},
		{EmptySocial(KindPost), 0},
	}
	for _, tt := range tests {
		if got := tt.data.MemberCount(); got != tt.want {
			t.Errorf("MemberCount(%s) = %d, want %d", tt.data.Kind, got, tt.want)
		}
	}
}

func TestParseMarketVendor(t *testing.T) {
	tests := []struct {
		in     string
		want   MarketVendor
		wantOK bool
	}{
		{"", VendorAxiom, true},
		{"axiom", VendorAxiom, true},
		{"alpha", VendorAlpha, true},
		{"dexscreener", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseMarketVendor(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseMarketVendor(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
