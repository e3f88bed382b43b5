package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the server's access-token claims the client reads.
// The server signs tokens; the client never verifies them and only uses the
// claims as hints (identity after restore, expiry for display).
type Claims struct {
	UserID int64  `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func parseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// IdentityFromToken extracts the user id and email from an access token.
// A numeric "sub" is used as id when "userId" is absent; a non-numeric one
// as email.
func IdentityFromToken(token string) (models.User, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return models.User{}, err
	}

	u := models.User{ID: claims.UserID, Email: claims.Email}
	if u.ID == 0 && claims.Subject != "" {
		if id, err := strconv.ParseInt(claims.Subject, 10, 64); err == nil {
			u.ID = id
		} else if u.Email == "" {
			u.Email = claims.Subject
		}
	}
	return u, nil
}

// ExpiresAt reports the token's "exp" claim, if present.
func ExpiresAt(token string) (time.Time, bool) {
	claims, err := parseClaims(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
