package core

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const sessionName = "demosec_session"
const sessionMaxAge = 3600 // 1h

// SessionMiddleware ensures a session exists and applies consistent cookie options.
func SessionMiddleware(cfg Config, store *sessions.CookieStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := store.Get(c.Request, sessionName)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
			c.Abort()
			return
		}

		applySessionOptions(cfg, session)
		// Save to ensure options are persisted even for anonymous users.
		if err := session.Save(c.Request, c.Writer); err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to persist session")
			c.Abort()
			return
		}

		c.Set("session", session)
		c.Next()
	}
}

func applySessionOptions(cfg Config, session *sessions.Session) {
	if session.Options == nil {
		session.Options = &sessions.Options{}
	}
	session.Options.Path = "/"
	session.Options.MaxAge = sessionMaxAge
	session.Options.HttpOnly = true
	session.Options.Secure = cfg.CookieSecure
	session.Options.SameSite = sameSiteFromString(cfg.CookieSameSite)
}

func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

func sessionFromContext(c *gin.Context) *sessions.Session {
	sessionAny, _ := c.Get("session")
	sess, _ := sessionAny.(*sessions.Session)
	return sess
}

// principalFromSession reconstructs the principal bound to the session, if any.
func principalFromSession(c *gin.Context) *Principal {
	sess := sessionFromContext(c)
	if sess == nil {
		return nil
	}
	email, _ := sess.Values["email"].(string)
	if strings.TrimSpace(email) == "" {
		return nil
	}
	authorities, _ := sess.Values["authorities"].(string)
	return &Principal{Name: email, Authorities: splitAuthorities(authorities)}
}

// establishSession rotates the session and binds the principal to it.
func establishSession(c *gin.Context, cfg Config, p Principal) error {
	sess := sessionFromContext(c)
	sess.Values = map[interface{}]interface{}{}
	sess.Values["email"] = p.Name
	sess.Values["authorities"] = joinAuthorities(p.Authorities)
	applySessionOptions(cfg, sess)
	return sess.Save(c.Request, c.Writer)
}

// clearSession empties the session and expires its cookie.
func clearSession(c *gin.Context, cfg Config) error {
	sess := sessionFromContext(c)
	sess.Values = map[interface{}]interface{}{}
	applySessionOptions(cfg, sess)
	sess.Options.MaxAge = -1 // Must be set AFTER applySessionOptions to properly delete cookie
	return sess.Save(c.Request, c.Writer)
}
