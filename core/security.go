package core

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SecurityMiddleware is the per-request decision flow: resolve a principal
// from the session or a remember-me cookie, then consult the rule set.
// Requests to protected routes without a principal are turned away toward
// the login surface. Any failure while validating or rotating a remember-me
// token degrades to treating the caller as unauthenticated.
func SecurityMiddleware(cfg Config, rules *RuleSet, remember *RememberMeService, users UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := principalFromSession(c)

		if principal == nil {
			if cookie, err := c.Cookie(cfg.RememberMeKey); err == nil && cookie != "" {
				principal = resumeFromRememberMe(c, cfg, remember, users, cookie)
			}
		}

		if principal != nil {
			c.Set("principal", *principal)
		}

		decision := rules.Authorize(c.Request.URL.Path, c.Request.Method, principal != nil)
		if decision == DecisionRequireAuthentication {
			c.Header("Location", "/login")
			respondError(c, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "please log in")
			c.Abort()
			return
		}

		c.Next()
	}
}

// resumeFromRememberMe validates the presented cookie. On success the
// principal is re-established in the session and the rotated cookie is set;
// on compromise or any other failure the cookie is cleared and the caller
// stays anonymous.
func resumeFromRememberMe(c *gin.Context, cfg Config, remember *RememberMeService, users UserRepository, cookie string) *Principal {
	ctx := c.Request.Context()
	email, rotated, err := remember.Validate(ctx, cookie)
	if err != nil {
		if errors.Is(err, ErrSeriesCompromised) {
			log.Printf("security: remember-me series compromised, series revoked")
		}
		clearRememberCookie(c, cfg)
		return nil
	}

	u, err := users.FindByEmail(ctx, email)
	if err != nil || u == nil || !u.Enabled {
		// The account is gone or locked; its stored logins are worthless.
		_ = remember.Revoke(ctx, email)
		clearRememberCookie(c, cfg)
		return nil
	}

	p := Principal{Name: u.Email, Authorities: u.Authorities}
	if err := establishSession(c, cfg, p); err != nil {
		clearRememberCookie(c, cfg)
		return nil
	}
	setRememberCookie(c, cfg, rotated)
	return &p
}

// RequireAuthority guards a route group behind a granted authority.
func RequireAuthority(authority string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := currentPrincipal(c)
		if p == nil || !p.HasAuthority(authority) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "insufficient authority")
			c.Abort()
			return
		}
		c.Next()
	}
}

// currentPrincipal returns the principal resolved for this request, or nil.
func currentPrincipal(c *gin.Context) *Principal {
	v, ok := c.Get("principal")
	if !ok {
		return nil
	}
	p, ok := v.(Principal)
	if !ok {
		return nil
	}
	return &p
}

func setRememberCookie(c *gin.Context, cfg Config, value string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.RememberMeKey,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cfg.RememberMeValidity.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: sameSiteFromString(cfg.CookieSameSite),
	})
}

func clearRememberCookie(c *gin.Context, cfg Config) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cfg.RememberMeKey,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: sameSiteFromString(cfg.CookieSameSite),
	})
}
