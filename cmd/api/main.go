package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gorilla/sessions"

	"demosec-api/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if err := core.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	userRepo := core.NewPgUserRepository(db)
	oneTimeRepo := core.NewPgOneTimeTokenRepository(db)

	var tokenRepo core.TokenRepository
	if cfg.RememberMeStore == "redis" {
		redisClient, err := core.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer redisClient.Close()
		tokenRepo = core.NewRedisTokenRepository(redisClient, cfg.RememberMeValidity)
	} else {
		tokenRepo = core.NewPgTokenRepository(db)
	}

	hasher := core.NewBcryptHasher(cfg.BcryptCost)
	if err := core.BootstrapTestUser(ctx, userRepo, hasher, cfg); err != nil {
		log.Fatalf("bootstrap test user failed: %v", err)
	}

	// Gorilla cookie store for session management.
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))

	router := core.NewRouter(cfg, store, core.Dependencies{
		Users:   userRepo,
		Tokens:  tokenRepo,
		OneTime: oneTimeRepo,
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
