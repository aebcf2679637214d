package core

import (
	"context"
	"errors"
	"strings"
)

// DaoProvider validates end-user email/password credentials against the user
// repository. It defers on credentials carrying a RunAs token.
type DaoProvider struct {
	users  UserRepository
	hasher PasswordHasher
}

func NewDaoProvider(users UserRepository, hasher PasswordHasher) *DaoProvider {
	return &DaoProvider{users: users, hasher: hasher}
}

func (p *DaoProvider) Authenticate(ctx context.Context, cred Credential) Outcome {
	if cred.RunAsToken != "" {
		return Outcome{Kind: OutcomeDeferred}
	}
	if strings.TrimSpace(cred.Email) == "" || cred.Password == "" {
		return Outcome{Kind: OutcomeRejected, Reason: ErrInvalidCredentials}
	}

	u, err := p.users.FindByEmail(ctx, cred.Email)
	if err != nil || u == nil {
		// Burn a comparison on a miss so unknown identifiers are
		// indistinguishable from wrong passwords.
		p.hasher.Verify(cred.Password, dummyHash)
		return Outcome{Kind: OutcomeRejected, Reason: ErrInvalidCredentials}
	}

	if !p.hasher.Verify(cred.Password, u.PasswordHash) {
		return Outcome{Kind: OutcomeRejected, Reason: ErrInvalidCredentials}
	}
	if !u.Enabled {
		return Outcome{Kind: OutcomeRejected, Reason: errors.New("account not confirmed")}
	}
	return Outcome{Kind: OutcomeSuccess, Principal: Principal{
		Name:        u.Email,
		Authorities: u.Authorities,
	}}
}

// RunAsProvider validates pre-issued elevation tokens against the shared
// RunAs key. It only understands RunAs tokens and defers on everything else;
// a RunAs token is never derived from end-user-supplied credentials.
type RunAsProvider struct {
	key []byte
}

func NewRunAsProvider(key string) *RunAsProvider {
	return &RunAsProvider{key: []byte(key)}
}

func (p *RunAsProvider) Authenticate(ctx context.Context, cred Credential) Outcome {
	if cred.RunAsToken == "" {
		return Outcome{Kind: OutcomeDeferred}
	}
	name, authorities, err := ParseRunAsToken(cred.RunAsToken, p.key)
	if err != nil {
		return Outcome{Kind: OutcomeRejected, Reason: err}
	}
	return Outcome{Kind: OutcomeSuccess, Principal: Principal{
		Name:        name,
		Authorities: authorities,
	}}
}
