package core

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// runAsClaims carries the elevated authorities granted for the lifetime of
// one internal operation.
type runAsClaims struct {
	jwt.RegisteredClaims
	Authorities []string `json:"authorities"`
}

var errRunAsTokenInvalid = errors.New("invalid runas token")

// IssueRunAsToken signs a short-lived HS256 token granting the named
// authorities, acting as principal name.
func IssueRunAsToken(name string, authorities []string, key []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, runAsClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Authorities: authorities,
	})
	return token.SignedString(key)
}

// ParseRunAsToken validates signature and expiry against the shared key and
// returns the embedded principal name and authorities.
func ParseRunAsToken(tokenString string, key []byte) (string, []string, error) {
	claims := &runAsClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errRunAsTokenInvalid
		}
		return key, nil
	})
	if err != nil {
		return "", nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return "", nil, errRunAsTokenInvalid
	}
	return claims.Subject, claims.Authorities, nil
}
