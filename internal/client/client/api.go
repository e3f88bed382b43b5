package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/sportmatch/internal/client/models"
)

// API implements Client on top of a Doer.
type API struct {
	d Doer
}

func NewAPI(d Doer) *API {
	return &API{d: d}
}

var _ Client = (*API)(nil)

func call[T any](ctx context.Context, d Doer, req Request) (*T, error) {
	resp, err := d.Issue(ctx, req)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := resp.Decode(out); err != nil {
		return nil, err
	}
	return out, nil
}

func list[T any](ctx context.Context, d Doer, path string) ([]T, error) {
	out, err := call[[]T](ctx, d, Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

// Login and Register never renew: a 401 there means wrong credentials.
func (a *API) Login(ctx context.Context, req models.AuthRequest) (*models.AuthResponse, error) {
	return call[models.AuthResponse](ctx, a.d, Request{Method: http.MethodPost, Path: "/auth/login", Body: req, Policy: &NoRenewal})
}

func (a *API) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	return call[models.AuthResponse](ctx, a.d, Request{Method: http.MethodPost, Path: "/auth/register", Body: req, Policy: &NoRenewal})
}

func (a *API) Logout(ctx context.Context) error {
	_, err := a.d.Issue(ctx, Request{Method: http.MethodPost, Path: "/auth/logout", Policy: &NoRenewal})
	return err
}

func (a *API) Sports(ctx context.Context) ([]models.Sport, error) {
	return list[models.Sport](ctx, a.d, "/sports")
}

func (a *API) Sport(ctx context.Context, sportID int64) (*models.Sport, error) {
	return call[models.Sport](ctx, a.d, Request{Method: http.MethodGet, Path: "/sports/" + id(sportID)})
}

func (a *API) IndividualSports(ctx context.Context) ([]models.Sport, error) {
	return list[models.Sport](ctx, a.d, "/sports/individual")
}

func (a *API) TeamSports(ctx context.Context) ([]models.Sport, error) {
	return list[models.Sport](ctx, a.d, "/sports/team")
}

func (a *API) User(ctx context.Context, userID int64) (*models.User, error) {
	return call[models.User](ctx, a.d, Request{Method: http.MethodGet, Path: "/users/" + id(userID)})
}

func (a *API) UserProfile(ctx context.Context, userID int64) (*models.User, error) {
	return call[models.User](ctx, a.d, Request{Method: http.MethodGet, Path: "/users/" + id(userID) + "/profile"})
}

func (a *API) UpdateLocation(ctx context.Context, userID int64, latitude, longitude float64) (*models.User, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	return call[models.User](ctx, a.d, Request{Method: http.MethodPut, Path: "/users/" + id(userID) + "/location", Query: q})
}

func (a *API) UpdateMaxDistance(ctx context.Context, userID int64, maxDistanceKm int) (*models.User, error) {
	q := url.Values{}
	q.Set("maxDistanceKm", strconv.Itoa(maxDistanceKm))
	return call[models.User](ctx, a.d, Request{Method: http.MethodPut, Path: "/users/" + id(userID) + "/distance", Query: q})
}

func (a *API) SaveUserSports(ctx context.Context, userID int64, sports []models.SportSkill) error {
	_, err := a.d.Issue(ctx, Request{Method: http.MethodPost, Path: "/users/" + id(userID) + "/sports", Body: sports})
	return err
}

func (a *API) PotentialMatches(ctx context.Context, q models.CandidateQuery) ([]models.User, error) {
	v := url.Values{}
	v.Set("userId", id(q.UserID))
	v.Set("sportId", id(q.SportID))
	if q.Latitude != nil && q.Longitude != nil {
		v.Set("latitude", strconv.FormatFloat(*q.Latitude, 'f', -1, 64))
		v.Set("longitude", strconv.FormatFloat(*q.Longitude, 'f', -1, 64))
	}
	if q.MaxDistanceKm > 0 {
		v.Set("maxDistanceKm", strconv.Itoa(q.MaxDistanceKm))
	}
	if q.Size > 0 {
		v.Set("page", strconv.Itoa(q.Page))
		v.Set("size", strconv.Itoa(q.Size))
	}

	out, err := call[[]models.User](ctx, a.d, Request{Method: http.MethodGet, Path: "/matching/potential-matches", Query: v})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

func decisionQuery(userID, targetUserID, sportID int64) url.Values {
	v := url.Values{}
	v.Set("userId", id(userID))
	v.Set("targetUserId", id(targetUserID))
	v.Set("sportId", id(sportID))
	return v
}

func (a *API) Like(ctx context.Context, userID, targetUserID, sportID int64) (*models.MatchResult, error) {
	res, err := call[models.MatchResult](ctx, a.d, Request{
		Method: http.MethodPost,
		Path:   "/matching/like",
		Query:  decisionQuery(userID, targetUserID, sportID),
	})
	if err != nil {
		return nil, err
	}
	// Older servers answer with isMatch only; callers derive the outcome.
	if res.TargetUserID == 0 {
		res.TargetUserID = targetUserID
	}
	return res, nil
}

func (a *API) Dislike(ctx context.Context, userID, targetUserID, sportID int64) error {
	_, err := a.d.Issue(ctx, Request{
		Method: http.MethodPost,
		Path:   "/matching/dislike",
		Query:  decisionQuery(userID, targetUserID, sportID),
	})
	return err
}

func (a *API) MyMatches(ctx context.Context) ([]models.Match, error) {
	return list[models.Match](ctx, a.d, "/matching/my-matches")
}

func (a *API) Conversations(ctx context.Context) ([]models.Conversation, error) {
	return list[models.Conversation](ctx, a.d, "/chat/conversations")
}

func (a *API) Messages(ctx context.Context, conversationID int64, page, size int) (*models.MessagePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	return call[models.MessagePage](ctx, a.d, Request{
		Method: http.MethodGet,
		Path:   "/chat/conversations/" + id(conversationID) + "/messages",
		Query:  q,
	})
}

func (a *API) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	if req.MessageType == "" {
		req.MessageType = models.MessageTypeText
	}
	return call[models.Message](ctx, a.d, Request{Method: http.MethodPost, Path: "/chat/messages", Body: req})
}

// OpenConversation returns the conversation with otherUserID, creating it
// if needed.
func (a *API) OpenConversation(ctx context.Context, otherUserID int64, matchID *int64) (*models.Conversation, error) {
	q := url.Values{}
	q.Set("otherUserId", id(otherUserID))
	if matchID != nil {
		q.Set("matchId", id(*matchID))
	}
	return call[models.Conversation](ctx, a.d, Request{Method: http.MethodPost, Path: "/chat/conversations", Query: q})
}

func (a *API) MarkRead(ctx context.Context, conversationID int64) error {
	_, err := a.d.Issue(ctx, Request{Method: http.MethodPut, Path: "/chat/conversations/" + id(conversationID) + "/read"})
	return err
}

func (a *API) UnreadCount(ctx context.Context) (int, error) {
	n, err := call[int](ctx, a.d, Request{Method: http.MethodGet, Path: "/chat/unread-count"})
	if err != nil {
		return 0, err
	}
	return *n, nil
}
