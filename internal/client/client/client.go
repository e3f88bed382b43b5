package client

import (
	"context"

	"github.com/dmitrijs2005/sportmatch/internal/client/models"
)

// Doer executes one request; Gateway is the production implementation.
type Doer interface {
	Issue(ctx context.Context, req Request) (*Response, error)
}

// Client is the typed surface of the remote API.
type Client interface {
	Login(ctx context.Context, req models.AuthRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Logout(ctx context.Context) error

	Sports(ctx context.Context) ([]models.Sport, error)
	Sport(ctx context.Context, id int64) (*models.Sport, error)
	IndividualSports(ctx context.Context) ([]models.Sport, error)
	TeamSports(ctx context.Context) ([]models.Sport, error)

	User(ctx context.Context, id int64) (*models.User, error)
	UserProfile(ctx context.Context, id int64) (*models.User, error)
	UpdateLocation(ctx context.Context, id int64, latitude, longitude float64) (*models.User, error)
	UpdateMaxDistance(ctx context.Context, id int64, maxDistanceKm int) (*models.User, error)
	SaveUserSports(ctx context.Context, id int64, sports []models.SportSkill) error

	PotentialMatches(ctx context.Context, q models.CandidateQuery) ([]models.User, error)
	Like(ctx context.Context, userID, targetUserID, sportID int64) (*models.MatchResult, error)
	Dislike(ctx context.Context, userID, targetUserID, sportID int64) error
	MyMatches(ctx context.Context) ([]models.Match, error)

	Conversations(ctx context.Context) ([]models.Conversation, error)
	Messages(ctx context.Context, conversationID int64, page, size int) (*models.MessagePage, error)
	SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error)
	OpenConversation(ctx context.Context, otherUserID int64, matchID *int64) (*models.Conversation, error)
	MarkRead(ctx context.Context, conversationID int64) error
	UnreadCount(ctx context.Context) (int, error)
}
