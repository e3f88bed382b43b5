package client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDoer struct {
	last Request
	body string
	err  error
}

func (f *fakeDoer) Issue(_ context.Context, req Request) (*Response, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Status: http.StatusOK, Body: []byte(f.body)}, nil
}

func TestAPI_AuthEndpointsNeverRenew(t *testing.T) {
	d := &fakeDoer{body: `{"token":"a","refreshToken":"r","user":{"id":3,"email":"u@x"}}`}
	api := NewAPI(d)
	ctx := context.Background()

	resp, err := api.Login(ctx, models.AuthRequest{Email: "u@x", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "/auth/login", d.last.Path)
	require.NotNil(t, d.last.Policy)
	assert.False(t, d.last.Policy.Renew)
	assert.Equal(t, int64(3), resp.User.ID)

	_, err = api.Register(ctx, models.RegisterRequest{Email: "u@x"})
	require.NoError(t, err)
	assert.Equal(t, "/auth/register", d.last.Path)
	assert.False(t, d.last.Policy.Renew)

	require.NoError(t, api.Logout(ctx))
	assert.Equal(t, "/auth/logout", d.last.Path)
	assert.False(t, d.last.Policy.Renew)
}

func TestAPI_PotentialMatchesQuery(t *testing.T) {
	d := &fakeDoer{body: `[{"id":5},{"id":6}]`}
	api := NewAPI(d)
	lat, lon := 40.4168, -3.7038

	users, err := api.PotentialMatches(context.Background(), models.CandidateQuery{
		UserID: 1, SportID: 2, Latitude: &lat, Longitude: &lon, MaxDistanceKm: 10, Page: 3, Size: 20,
	})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(6), users[1].ID)

	assert.Equal(t, "/matching/potential-matches", d.last.Path)
	q := d.last.Query
	assert.Equal(t, "1", q.Get("userId"))
	assert.Equal(t, "2", q.Get("sportId"))
	assert.Equal(t, "40.4168", q.Get("latitude"))
	assert.Equal(t, "-3.7038", q.Get("longitude"))
	assert.Equal(t, "10", q.Get("maxDistanceKm"))
	assert.Equal(t, "3", q.Get("page"))
	assert.Equal(t, "20", q.Get("size"))
}

func TestAPI_PotentialMatchesOmitsUnsetLocation(t *testing.T) {
	d := &fakeDoer{body: `[]`}
	_, err := NewAPI(d).PotentialMatches(context.Background(), models.CandidateQuery{UserID: 1, SportID: 2})
	require.NoError(t, err)

	assert.False(t, d.last.Query.Has("latitude"))
	assert.False(t, d.last.Query.Has("page"))
}

func TestAPI_Like(t *testing.T) {
	d := &fakeDoer{body: `{"isMatch":true,"targetUserId":9,"matchId":4,"status":"MATCH_CREATED"}`}
	res, err := NewAPI(d).Like(context.Background(), 1, 9, 2)
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusMatchCreated, res.Status)
	assert.Equal(t, http.MethodPost, d.last.Method)
	assert.Equal(t, "/matching/like", d.last.Path)
	assert.Equal(t, "9", d.last.Query.Get("targetUserId"))
	assert.Nil(t, d.last.Policy, "mutations use the default renewal policy")
}

func TestAPI_LikeWithoutStatus(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  models.MatchStatus
		isMatch bool
	}{
		{"match flag only", `{"isMatch":true,"targetUserId":9,"message":"It's a match!","matchId":4}`, "", true},
		{"empty object", `{}`, "", false},
		{"bare status string", `"TEAM_MATCH_PENDING"`, models.MatchStatusTeamMatchPending, false},
		{"empty body", ``, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDoer{body: tt.body}
			res, err := NewAPI(d).Like(context.Background(), 1, 9, 2)
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.isMatch, res.IsMatch)
			assert.Equal(t, int64(9), res.TargetUserID)
		})
	}
}

func TestAPI_PropagatesGatewayError(t *testing.T) {
	d := &fakeDoer{err: ErrNetwork}
	api := NewAPI(d)

	_, err := api.Sports(context.Background())
	require.ErrorIs(t, err, ErrNetwork)
	require.ErrorIs(t, api.Dislike(context.Background(), 1, 2, 3), ErrNetwork)
	_, err = api.UnreadCount(context.Background())
	require.True(t, errors.Is(err, ErrNetwork))
}

func TestAPI_Paths(t *testing.T) {
	ctx := context.Background()
	matchID := int64(8)

	tests := []struct {
		name   string
		body   string
		call   func(a *API) error
		method string
		path   string
	}{
		{"sport", `{}`, func(a *API) error { _, err := a.Sport(ctx, 4); return err }, http.MethodGet, "/sports/4"},
		{"individual", `[]`, func(a *API) error { _, err := a.IndividualSports(ctx); return err }, http.MethodGet, "/sports/individual"},
		{"team", `[]`, func(a *API) error { _, err := a.TeamSports(ctx); return err }, http.MethodGet, "/sports/team"},
		{"user", `{}`, func(a *API) error { _, err := a.User(ctx, 2); return err }, http.MethodGet, "/users/2"},
		{"profile", `{}`, func(a *API) error { _, err := a.UserProfile(ctx, 2); return err }, http.MethodGet, "/users/2/profile"},
		{"location", `{}`, func(a *API) error { _, err := a.UpdateLocation(ctx, 2, 1.5, 2.5); return err }, http.MethodPut, "/users/2/location"},
		{"distance", `{}`, func(a *API) error { _, err := a.UpdateMaxDistance(ctx, 2, 15); return err }, http.MethodPut, "/users/2/distance"},
		{"save sports", ``, func(a *API) error { return a.SaveUserSports(ctx, 2, []models.SportSkill{{SportID: 1, SkillLevel: models.SkillExpert}}) }, http.MethodPost, "/users/2/sports"},
		{"dislike", ``, func(a *API) error { return a.Dislike(ctx, 1, 2, 3) }, http.MethodPost, "/matching/dislike"},
		{"my matches", `[]`, func(a *API) error { _, err := a.MyMatches(ctx); return err }, http.MethodGet, "/matching/my-matches"},
		{"conversations", `[]`, func(a *API) error { _, err := a.Conversations(ctx); return err }, http.MethodGet, "/chat/conversations"},
		{"messages", `{"content":[]}`, func(a *API) error { _, err := a.Messages(ctx, 7, 0, 20); return err }, http.MethodGet, "/chat/conversations/7/messages"},
		{"send", `{}`, func(a *API) error { _, err := a.SendMessage(ctx, models.SendMessageRequest{ConversationID: 7, Content: "hi"}); return err }, http.MethodPost, "/chat/messages"},
		{"open conversation", `{}`, func(a *API) error { _, err := a.OpenConversation(ctx, 3, &matchID); return err }, http.MethodPost, "/chat/conversations"},
		{"mark read", ``, func(a *API) error { return a.MarkRead(ctx, 7) }, http.MethodPut, "/chat/conversations/7/read"},
		{"unread", `3`, func(a *API) error { _, err := a.UnreadCount(ctx); return err }, http.MethodGet, "/chat/unread-count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDoer{body: tt.body}
			require.NoError(t, tt.call(NewAPI(d)))
			assert.Equal(t, tt.method, d.last.Method)
			assert.Equal(t, tt.path, d.last.Path)
		})
	}
}

func TestAPI_SendMessageDefaultsToText(t *testing.T) {
	d := &fakeDoer{body: `{"id":1,"conversationId":7,"content":"hi","messageType":"TEXT"}`}
	msg, err := NewAPI(d).SendMessage(context.Background(), models.SendMessageRequest{ConversationID: 7, Content: "hi"})
	require.NoError(t, err)

	want := models.SendMessageRequest{ConversationID: 7, Content: "hi", MessageType: models.MessageTypeText}
	if diff := cmp.Diff(want, d.last.Body); diff != "" {
		t.Fatalf("request body mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "hi", msg.Content)
}

func TestAPI_OpenConversationQuery(t *testing.T) {
	d := &fakeDoer{body: `{}`}
	_, err := NewAPI(d).OpenConversation(context.Background(), 3, nil)
	require.NoError(t, err)
	assert.Equal(t, "3", d.last.Query.Get("otherUserId"))
	assert.False(t, d.last.Query.Has("matchId"))
}
