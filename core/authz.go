package core

import (
	"net/http"
	"strings"
)

// Disposition is the access decision attached to a rule.
type Disposition int

const (
	DispositionPublic Disposition = iota
	DispositionAuthenticated
)

// Decision is the outcome of evaluating the rule set for one request.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionRequireAuthentication
)

// AuthorizationRule matches a URL pattern, optionally scoped to one HTTP
// method. Patterns are ant-style: exact, a trailing "*" for a prefix within
// the same path, or a trailing "/**" for everything below a base path.
type AuthorizationRule struct {
	Pattern     string
	Method      string // empty matches any method
	Disposition Disposition
}

// Matches reports whether the rule applies to path/method.
func (r AuthorizationRule) Matches(path, method string) bool {
	if r.Method != "" && r.Method != method {
		return false
	}
	switch {
	case strings.HasSuffix(r.Pattern, "/**"):
		base := strings.TrimSuffix(r.Pattern, "**")
		return strings.HasPrefix(path, base)
	case strings.HasSuffix(r.Pattern, "*"):
		return strings.HasPrefix(path, strings.TrimSuffix(r.Pattern, "*"))
	default:
		return path == r.Pattern
	}
}

// RuleSet is an ordered list of rules; the first matching rule governs and
// an implicit trailing catch-all requires authentication. Narrower patterns
// must be listed ahead of broader ones that would otherwise shadow them.
type RuleSet struct {
	rules []AuthorizationRule
}

func NewRuleSet(rules []AuthorizationRule) *RuleSet {
	return &RuleSet{rules: rules}
}

// Match returns the first rule matching path/method, or nil when only the
// implicit catch-all applies.
func (s *RuleSet) Match(path, method string) *AuthorizationRule {
	for i := range s.rules {
		if s.rules[i].Matches(path, method) {
			return &s.rules[i]
		}
	}
	return nil
}

// Authorize decides access for a request with or without a resolved principal.
func (s *RuleSet) Authorize(path, method string, authenticated bool) Decision {
	rule := s.Match(path, method)
	if rule != nil && rule.Disposition == DispositionPublic {
		return DecisionAllow
	}
	// Explicit AUTHENTICATED rule or implicit catch-all.
	if authenticated {
		return DecisionAllow
	}
	return DecisionRequireAuthentication
}

// DefaultPublicRoutes lists every route reachable without authentication:
// signup/registration, password recovery, the login surface, and static
// assets. The logout rule is method-scoped so a passive link cannot trigger
// it; everything else falls through to the authenticated catch-all.
func DefaultPublicRoutes() []AuthorizationRule {
	return []AuthorizationRule{
		{Pattern: "/healthz", Method: http.MethodGet, Disposition: DispositionPublic},
		{Pattern: "/signup", Disposition: DispositionPublic},
		{Pattern: "/user/register", Method: http.MethodPost, Disposition: DispositionPublic},
		{Pattern: "/registrationConfirm*", Disposition: DispositionPublic},
		{Pattern: "/badUser*", Disposition: DispositionPublic},
		{Pattern: "/forgotPassword*", Disposition: DispositionPublic},
		{Pattern: "/user/resetPassword*", Disposition: DispositionPublic},
		{Pattern: "/user/savePassword", Method: http.MethodPost, Disposition: DispositionPublic},
		{Pattern: "/js/**", Disposition: DispositionPublic},
		{Pattern: "/login", Disposition: DispositionPublic},
		{Pattern: "/doLogin", Method: http.MethodPost, Disposition: DispositionPublic},
		{Pattern: "/logout", Method: http.MethodPost, Disposition: DispositionAuthenticated},
	}
}
