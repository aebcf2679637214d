package core

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RememberMeToken is one persistent login series. The series identifier is
// stable; the token value rotates on every successful remember-me login.
type RememberMeToken struct {
	Series   string
	Token    string
	Email    string
	LastUsed time.Time
}

// TokenRepository persists remember-me series. Rotate must be a single
// conditional write (match-then-replace) so that of two concurrent requests
// presenting the same token value exactly one wins.
type TokenRepository interface {
	Create(ctx context.Context, token RememberMeToken) error
	Find(ctx context.Context, series string) (*RememberMeToken, error)
	Rotate(ctx context.Context, series, oldToken, newToken string, lastUsed time.Time) (bool, error)
	DeleteSeries(ctx context.Context, series string) error
	DeleteAllForUser(ctx context.Context, email string) error
}

const rememberTokenBytes = 24

// RememberMeService implements the issue/validate/revoke lifecycle on top of
// a TokenRepository. Expiry is checked lazily at validation time.
type RememberMeService struct {
	tokens   TokenRepository
	validity time.Duration
}

func NewRememberMeService(tokens TokenRepository, validity time.Duration) *RememberMeService {
	return &RememberMeService{tokens: tokens, validity: validity}
}

// Issue creates a new series for email and returns the opaque cookie value.
func (s *RememberMeService) Issue(ctx context.Context, email string) (string, error) {
	value, err := randomToken(rememberTokenBytes)
	if err != nil {
		return "", err
	}
	token := RememberMeToken{
		Series:   uuid.NewString(),
		Token:    value,
		Email:    email,
		LastUsed: time.Now(),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", err
	}
	return encodeRememberCookie(token.Series, token.Token), nil
}

// Validate checks a presented cookie value. On a match the token rotates in
// place and the new cookie value is returned alongside the owning email.
// A stale token value for a known series deletes the whole series and
// reports ErrSeriesCompromised. Unknown or expired series report
// ErrTokenInvalid.
func (s *RememberMeService) Validate(ctx context.Context, cookieValue string) (string, string, error) {
	series, presented, err := decodeRememberCookie(cookieValue)
	if err != nil {
		return "", "", ErrTokenInvalid
	}

	stored, err := s.tokens.Find(ctx, series)
	if err != nil {
		return "", "", err
	}
	if stored == nil {
		return "", "", ErrTokenInvalid
	}

	if time.Since(stored.LastUsed) > s.validity {
		_ = s.tokens.DeleteSeries(ctx, series)
		return "", "", ErrTokenInvalid
	}

	if stored.Token != presented {
		// Replay of an already-rotated value: treat the series as stolen.
		if err := s.tokens.DeleteSeries(ctx, series); err != nil {
			return "", "", err
		}
		return "", "", ErrSeriesCompromised
	}

	next, err := randomToken(rememberTokenBytes)
	if err != nil {
		return "", "", err
	}
	ok, err := s.tokens.Rotate(ctx, series, presented, next, time.Now())
	if err != nil {
		return "", "", err
	}
	if !ok {
		// Lost a rotation race; the other request already consumed this value.
		return "", "", ErrTokenInvalid
	}
	return stored.Email, encodeRememberCookie(series, next), nil
}

// Revoke deletes every series owned by email (logout, password change).
func (s *RememberMeService) Revoke(ctx context.Context, email string) error {
	return s.tokens.DeleteAllForUser(ctx, email)
}

func encodeRememberCookie(series, token string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(series + ":" + token))
}

func decodeRememberCookie(value string) (string, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", "", err
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("malformed remember-me cookie")
	}
	return parts[0], parts[1], nil
}
