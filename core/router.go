package core

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

// Dependencies carries the durable stores the router wires into the
// pipeline. Tests substitute in-memory fakes here.
type Dependencies struct {
	Users   UserRepository
	Tokens  TokenRepository
	OneTime OneTimeTokenRepository
}

const minPasswordLength = 8

// NewRouter constructs the Gin engine with the security pipeline and all
// routes wired: audit -> session -> security, then handlers.
func NewRouter(cfg Config, store *sessions.CookieStore, deps Dependencies) *gin.Engine {
	hasher := NewBcryptHasher(cfg.BcryptCost)
	chain := NewProviderChain(
		NewDaoProvider(deps.Users, hasher),
		NewRunAsProvider(cfg.RunAsKey),
	)
	remember := NewRememberMeService(deps.Tokens, cfg.RememberMeValidity)
	rules := NewRuleSet(cfg.PublicRoutes)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(AuditMiddleware())
	r.Use(SessionMiddleware(cfg, store))
	r.Use(SecurityMiddleware(cfg, rules, remember, deps.Users))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Login surface and processing endpoint are split, same as the form
	// page vs. its processing URL.
	r.GET("/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "please log in", "action": "/doLogin"})
	})

	r.POST("/doLogin", func(c *gin.Context) {
		var req struct {
			Email      string `json:"email"`
			Password   string `json:"password"`
			Remember   bool   `json:"remember"`
			RunAsToken string `json:"runas_token"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}

		principal, err := chain.Authenticate(c.Request.Context(), Credential{
			Email:      req.Email,
			Password:   req.Password,
			RunAsToken: req.RunAsToken,
		})
		if err != nil {
			// One generic outcome for every rejection reason.
			respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
			return
		}

		if err := establishSession(c, cfg, principal); err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to set session")
			return
		}

		if req.Remember {
			cookie, err := remember.Issue(c.Request.Context(), principal.Name)
			if err != nil {
				// Degrade: the login stands, only persistence is lost.
				log.Printf("security: failed to issue remember-me token: %v", err)
			} else {
				setRememberCookie(c, cfg, cookie)
			}
		}

		c.JSON(http.StatusOK, gin.H{"user": gin.H{
			"email":       principal.Name,
			"authorities": principal.Authorities,
		}})
	})

	// State-changing method only; a plain link can never log a user out.
	r.POST("/logout", func(c *gin.Context) {
		p := currentPrincipal(c)
		if p == nil {
			respondError(c, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "please log in")
			return
		}
		if err := clearSession(c, cfg); err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to clear session")
			return
		}
		if err := remember.Revoke(c.Request.Context(), p.Name); err != nil {
			log.Printf("security: failed to revoke remember-me tokens for %s: %v", p.Name, err)
		}
		clearRememberCookie(c, cfg)
		c.Status(http.StatusNoContent)
	})

	r.GET("/signup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "create an account", "action": "/user/register"})
	})

	r.POST("/user/register", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || len(req.Password) < minPasswordLength {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "email and a password of at least 8 characters are required")
			return
		}

		hash, err := hasher.Hash(req.Password)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to hash password")
			return
		}

		ctx := c.Request.Context()
		if _, err := deps.Users.Create(ctx, req.Email, hash, []string{"ROLE_USER"}, false); err != nil {
			// naive duplicate detection
			if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
				respondError(c, http.StatusConflict, "CONFLICT", "email already registered")
				return
			}
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
			return
		}

		token := OneTimeToken{
			Token:     uuid.NewString(),
			Email:     req.Email,
			Purpose:   PurposeConfirmRegistration,
			ExpiresAt: time.Now().Add(cfg.ResetTokenValidity),
		}
		if err := deps.OneTime.Create(ctx, token); err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create confirmation token")
			return
		}
		// Delivered out of band in a real deployment.
		log.Printf("security: registration confirmation token issued for %s", req.Email)

		c.JSON(http.StatusCreated, gin.H{"email": req.Email, "confirmation_required": true})
	})

	r.GET("/registrationConfirm", func(c *gin.Context) {
		token := c.Query("token")
		ctx := c.Request.Context()
		t, err := deps.OneTime.Consume(ctx, token, PurposeConfirmRegistration)
		if err != nil {
			c.Header("Location", "/badUser")
			respondError(c, http.StatusBadRequest, "BAD_TOKEN", "confirmation token invalid or expired")
			return
		}
		if err := deps.Users.Enable(ctx, t.Email); err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to enable account")
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": t.Email, "confirmed": true})
	})

	r.GET("/badUser", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "this confirmation link is invalid or has expired"})
	})

	r.POST("/forgotPassword", func(c *gin.Context) {
		var req struct {
			Email string `json:"email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}

		ctx := c.Request.Context()
		if _, err := deps.Users.FindByEmail(ctx, req.Email); err == nil {
			token := OneTimeToken{
				Token:     uuid.NewString(),
				Email:     req.Email,
				Purpose:   PurposePasswordReset,
				ExpiresAt: time.Now().Add(cfg.ResetTokenValidity),
			}
			if err := deps.OneTime.Create(ctx, token); err != nil {
				log.Printf("security: failed to create reset token for %s: %v", req.Email, err)
			} else {
				log.Printf("security: password reset token issued for %s", req.Email)
			}
		}
		// Identical response whether or not the account exists.
		c.JSON(http.StatusOK, gin.H{"message": "if the account exists, a reset link has been sent"})
	})

	r.GET("/user/resetPassword", func(c *gin.Context) {
		if _, err := deps.OneTime.Peek(c.Request.Context(), c.Query("token"), PurposePasswordReset); err != nil {
			respondError(c, http.StatusBadRequest, "BAD_TOKEN", "reset token invalid or expired")
			return
		}
		c.JSON(http.StatusOK, gin.H{"valid": true, "action": "/user/savePassword"})
	})

	// Publicly reachable, but only a valid, unconsumed reset token gets
	// through; possession of the token is the credential here.
	r.POST("/user/savePassword", func(c *gin.Context) {
		var req struct {
			Token    string `json:"token"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		if len(req.Password) < minPasswordLength {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "password must be at least 8 characters")
			return
		}

		ctx := c.Request.Context()
		t, err := deps.OneTime.Consume(ctx, req.Token, PurposePasswordReset)
		if err != nil {
			respondError(c, http.StatusBadRequest, "BAD_TOKEN", "reset token invalid or expired")
			return
		}

		hash, err := hasher.Hash(req.Password)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to hash password")
			return
		}
		if err := deps.Users.UpdatePassword(ctx, t.Email, hash); err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update password")
			return
		}
		// Stored logins predate the new password; drop them all.
		if err := remember.Revoke(ctx, t.Email); err != nil {
			log.Printf("security: failed to revoke remember-me tokens for %s: %v", t.Email, err)
		}
		c.Status(http.StatusNoContent)
	})

	// Requires an active session, unlike the token-driven reset flow.
	r.POST("/user/changePassword", func(c *gin.Context) {
		p := currentPrincipal(c)
		if p == nil {
			respondError(c, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "please log in")
			return
		}
		var req struct {
			CurrentPassword string `json:"current_password"`
			NewPassword     string `json:"new_password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
			return
		}
		if len(req.NewPassword) < minPasswordLength {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "password must be at least 8 characters")
			return
		}

		ctx := c.Request.Context()
		u, err := deps.Users.FindByEmail(ctx, p.Name)
		if err != nil || !hasher.Verify(req.CurrentPassword, u.PasswordHash) {
			respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
			return
		}

		hash, err := hasher.Hash(req.NewPassword)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to hash password")
			return
		}
		if err := deps.Users.UpdatePassword(ctx, p.Name, hash); err != nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update password")
			return
		}
		if err := remember.Revoke(ctx, p.Name); err != nil {
			log.Printf("security: failed to revoke remember-me tokens for %s: %v", p.Name, err)
		}
		c.Status(http.StatusNoContent)
	})

	r.GET("/account/settings", func(c *gin.Context) {
		p := currentPrincipal(c)
		if p == nil {
			respondError(c, http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "please log in")
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": p.Name, "authorities": p.Authorities})
	})

	admin := r.Group("/admin")
	admin.Use(RequireAuthority("ROLE_ADMIN"))
	{
		// Issues an elevation token for one internal operation. Tokens are
		// signed with the shared RunAs key, never derived from user input.
		admin.POST("/runas", func(c *gin.Context) {
			var req struct {
				Authorities []string `json:"authorities"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}
			if len(req.Authorities) == 0 {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "authorities are required")
				return
			}
			p := currentPrincipal(c)
			token, err := IssueRunAsToken(p.Name, req.Authorities, []byte(cfg.RunAsKey), cfg.RunAsValidity)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to issue token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token, "expires_in": int(cfg.RunAsValidity.Seconds())})
		})
	}

	r.Static("/js", cfg.AssetDir)

	return r
}
