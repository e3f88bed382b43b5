package models

import (
	"bytes"
	"encoding/json"
)

// MatchStatus is the server's verdict on a like.
type MatchStatus string

const (
	MatchStatusLikeStored       MatchStatus = "LIKE_STORED"
	MatchStatusMatchCreated     MatchStatus = "MATCH_CREATED"
	MatchStatusTeamMatchPending MatchStatus = "TEAM_MATCH_PENDING"
)

// MatchResult is returned by the like endpoint.
type MatchResult struct {
	IsMatch      bool        `json:"isMatch"`
	TargetUserID int64       `json:"targetUserId"`
	Message      string      `json:"message"`
	MatchID      *int64      `json:"matchId,omitempty"`
	Status       MatchStatus `json:"status"`
}

// UnmarshalJSON accepts the full result object as well as a bare status
// string, which some server versions return.
func (r *MatchResult) UnmarshalJSON(b []byte) error {
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '"' {
		var status string
		if err := json.Unmarshal(trimmed, &status); err != nil {
			return err
		}
		*r = MatchResult{Status: MatchStatus(status), IsMatch: MatchStatus(status) == MatchStatusMatchCreated}
		return nil
	}
	type plain MatchResult
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = MatchResult(p)
	return nil
}

// Match is an entry of the "my matches" listing.
type Match struct {
	ID                 int64              `json:"id"`
	Sport              Sport              `json:"sport"`
	MatchDate          string             `json:"matchDate,omitempty"`
	Status             string             `json:"status"`
	IsTeamMatch        bool               `json:"isTeamMatch"`
	MinPlayersRequired int                `json:"minPlayersRequired"`
	MaxPlayersAllowed  int                `json:"maxPlayersAllowed"`
	CreatedAt          string             `json:"createdAt"`
	Participants       []MatchParticipant `json:"participants,omitempty"`
}

type MatchParticipant struct {
	ID     int64  `json:"id"`
	User   User   `json:"user"`
	Status string `json:"status"`
}

// MatchNotification is pushed on the per-user matches topic.
type MatchNotification struct {
	MatchID   int64  `json:"matchId"`
	SportID   int64  `json:"sportId,omitempty"`
	UserID    int64  `json:"userId,omitempty"`
	Message   string `json:"message,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// CandidateQuery selects a page of potential matches.
type CandidateQuery struct {
	UserID        int64
	SportID       int64
	Latitude      *float64
	Longitude     *float64
	MaxDistanceKm int
	Page          int
	Size          int
}
