// Package session carries the signed-in user's identity into API calls.
//
// Tokens are issued and verified by the ordering API; this package only
// reads the claims it needs to address user-scoped endpoints.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSubject is returned when a token carries no usable user id.
var ErrNoSubject = errors.New("token has no user subject")

// Session is the identity used for user-scoped requests.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

// New builds a session from an already known user id.
func New(token string, userID int64) Session {
	return Session{Token: token, UserID: userID}
}

// FromToken reads the user id from the token's "sub" claim without
// verifying the signature.
func FromToken(token string) (Session, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Session{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}

	userID, err := subject(claims)
	if err != nil {
		return Session{}, err
	}

	s := Session{Token: token, UserID: userID}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	return s, nil
}

// The API issues numeric subjects; some proxies re-encode them as strings.
func subject(claims jwt.MapClaims) (int64, error) {
	switch sub := claims["sub"].(type) {
	case float64:
		if sub > 0 {
			return int64(sub), nil
		}
	case string:
		id, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNoSubject, sub)
		}
		if id > 0 {
			return id, nil
		}
	}
	return 0, ErrNoSubject
}

// Authenticated reports whether the session can address user endpoints.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.UserID > 0
}

// Expired reports whether the token's expiry has passed at now. Tokens
// without an expiry never expire.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
