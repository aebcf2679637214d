package core

import (
	"context"
	"errors"
	"strings"
)

// Principal is an authenticated identity together with its granted authorities.
// It is immutable for the lifetime of a request.
type Principal struct {
	Name        string   // unique identifier (email)
	Authorities []string // role/permission strings, e.g. ROLE_USER
}

// HasAuthority reports whether the principal carries the named authority.
func (p Principal) HasAuthority(authority string) bool {
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// Credential is a transient, presented secret. Either Email+Password is set
// (end-user login) or RunAsToken is set (internally issued elevation token).
// Credentials are never persisted or logged.
type Credential struct {
	Email      string
	Password   string
	RunAsToken string
}

// OutcomeKind tags the result of a single provider attempt.
type OutcomeKind int

const (
	// OutcomeDeferred means the credential is not of a type this provider
	// understands; another provider may still succeed.
	OutcomeDeferred OutcomeKind = iota
	OutcomeSuccess
	OutcomeRejected
)

// Outcome is the tagged result of one provider attempt. Reason is internal
// only and never surfaces to the caller.
type Outcome struct {
	Kind      OutcomeKind
	Principal Principal
	Reason    error
}

// AuthenticationProvider validates one kind of credential.
type AuthenticationProvider interface {
	Authenticate(ctx context.Context, cred Credential) Outcome
}

var (
	// ErrInvalidCredentials is the single generic failure surfaced for any
	// rejected login, regardless of which provider rejected it or why.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenInvalid is returned when a remember-me cookie names an unknown
	// or expired series.
	ErrTokenInvalid = errors.New("remember-me token invalid")

	// ErrSeriesCompromised is returned when a stale token value is replayed
	// for a known series. Internal only; externally identical to ErrTokenInvalid.
	ErrSeriesCompromised = errors.New("remember-me series compromised")
)

// ProviderChain tries each provider in declaration order until one succeeds.
// Deferred outcomes are skipped; if no provider succeeds the chain reports
// ErrInvalidCredentials without distinguishing why.
type ProviderChain struct {
	providers []AuthenticationProvider
}

func NewProviderChain(providers ...AuthenticationProvider) *ProviderChain {
	return &ProviderChain{providers: providers}
}

// Authenticate runs the chain for a single credential.
func (c *ProviderChain) Authenticate(ctx context.Context, cred Credential) (Principal, error) {
	if strings.TrimSpace(cred.Email) == "" && cred.RunAsToken == "" {
		return Principal{}, ErrInvalidCredentials
	}
	for _, p := range c.providers {
		outcome := p.Authenticate(ctx, cred)
		if outcome.Kind == OutcomeSuccess {
			return outcome.Principal, nil
		}
	}
	return Principal{}, ErrInvalidCredentials
}
