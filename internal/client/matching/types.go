package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sportmatch/internal/client/models"
)

var (
	// ErrAlreadyProcessing rejects a second decision on a candidate whose
	// first decision has not settled.
	ErrAlreadyProcessing = errors.New("decision already in progress")
	// ErrStale means a decision failed and the list must be reloaded.
	ErrStale     = errors.New("candidate list is stale, reload required")
	ErrNotLoaded = errors.New("candidate list not loaded")
	// ErrSuperseded is returned to callers whose result arrived after the
	// list was reloaded or forgotten.
	ErrSuperseded = errors.New("candidate list was reloaded or forgotten")
)

// Key is one browsing context: a user looking for partners in a sport.
type Key struct {
	UserID  int64
	SportID int64
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.UserID, k.SportID)
}

type Filters struct {
	Latitude      *float64
	Longitude     *float64
	MaxDistanceKm int
	PageSize      int
}

type Kind int

const (
	Like Kind = iota + 1
	Dislike
)

func (k Kind) String() string {
	switch k {
	case Like:
		return "like"
	case Dislike:
		return "dislike"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Outcome string

const (
	OutcomeLikeStored       Outcome = "LIKE_STORED"
	OutcomeMatchCreated     Outcome = "MATCH_CREATED"
	OutcomeTeamMatchPending Outcome = "TEAM_MATCH_PENDING"
	OutcomeDislikeStored    Outcome = "DISLIKE_STORED"
)

func outcomeOf(r *models.MatchResult) Outcome {
	switch r.Status {
	case models.MatchStatusMatchCreated:
		return OutcomeMatchCreated
	case models.MatchStatusTeamMatchPending:
		return OutcomeTeamMatchPending
	case models.MatchStatusLikeStored:
		return OutcomeLikeStored
	}
	if r.IsMatch {
		return OutcomeMatchCreated
	}
	return OutcomeLikeStored
}

// Snapshot is a copy of one entry, safe to keep after the call returns.
type Snapshot struct {
	Key        Key
	Candidates []models.User
	Page       int
	HasMore    bool
	Loading    bool
	Stale      bool
	Pending    int
}

// Contains reports whether candidateID is in the snapshot.
func (s Snapshot) Contains(candidateID int64) bool {
	for _, u := range s.Candidates {
		if u.ID == candidateID {
			return true
		}
	}
	return false
}

// API is the part of the remote API the cache calls.
type API interface {
	PotentialMatches(ctx context.Context, q models.CandidateQuery) ([]models.User, error)
	Like(ctx context.Context, userID, targetUserID, sportID int64) (*models.MatchResult, error)
	Dislike(ctx context.Context, userID, targetUserID, sportID int64) error
}
