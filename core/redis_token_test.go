package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTokenRepo(t *testing.T) *RedisTokenRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTokenRepository(client, time.Hour)
}

func TestRedisTokenRepositoryCreateFind(t *testing.T) {
	repo := newRedisTokenRepo(t)
	ctx := context.Background()

	issued := RememberMeToken{
		Series:   "series-1",
		Token:    "token-1",
		Email:    "u1@mail.com",
		LastUsed: time.Now().Truncate(time.Millisecond),
	}
	if err := repo.Create(ctx, issued); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := repo.Find(ctx, "series-1")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if got == nil {
		t.Fatalf("Find returned nil for existing series")
	}
	if got.Token != issued.Token || got.Email != issued.Email {
		t.Fatalf("Find returned %+v, want %+v", got, issued)
	}
	if !got.LastUsed.Equal(issued.LastUsed) {
		t.Fatalf("LastUsed mismatch: %v vs %v", got.LastUsed, issued.LastUsed)
	}

	missing, err := repo.Find(ctx, "no-such-series")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if missing != nil {
		t.Fatalf("Find returned %+v for unknown series", missing)
	}
}

func TestRedisTokenRepositoryConditionalRotate(t *testing.T) {
	repo := newRedisTokenRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, RememberMeToken{Series: "s", Token: "t1", Email: "u1@mail.com", LastUsed: time.Now()}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	ok, err := repo.Rotate(ctx, "s", "t1", "t2", time.Now())
	if err != nil || !ok {
		t.Fatalf("rotation with matching value must succeed: ok=%v err=%v", ok, err)
	}

	// The losing side of the race presents the consumed value.
	ok, err = repo.Rotate(ctx, "s", "t1", "t3", time.Now())
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}
	if ok {
		t.Fatalf("rotation with a consumed value must fail")
	}

	got, err := repo.Find(ctx, "s")
	if err != nil || got == nil {
		t.Fatalf("Find error: %v", err)
	}
	if got.Token != "t2" {
		t.Fatalf("stored token is %q, want the first winner's value t2", got.Token)
	}
}

func TestRedisTokenRepositoryDeleteSeries(t *testing.T) {
	repo := newRedisTokenRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, RememberMeToken{Series: "s", Token: "t1", Email: "u1@mail.com", LastUsed: time.Now()}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := repo.DeleteSeries(ctx, "s"); err != nil {
		t.Fatalf("DeleteSeries error: %v", err)
	}
	got, err := repo.Find(ctx, "s")
	if err != nil || got != nil {
		t.Fatalf("series survived deletion: %+v, %v", got, err)
	}
}

func TestRedisTokenRepositoryDeleteAllForUser(t *testing.T) {
	repo := newRedisTokenRepo(t)
	ctx := context.Background()

	for _, s := range []string{"s1", "s2"} {
		if err := repo.Create(ctx, RememberMeToken{Series: s, Token: "t", Email: "u1@mail.com", LastUsed: time.Now()}); err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}
	if err := repo.Create(ctx, RememberMeToken{Series: "other", Token: "t", Email: "u2@mail.com", LastUsed: time.Now()}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := repo.DeleteAllForUser(ctx, "u1@mail.com"); err != nil {
		t.Fatalf("DeleteAllForUser error: %v", err)
	}

	for _, s := range []string{"s1", "s2"} {
		if got, err := repo.Find(ctx, s); err != nil || got != nil {
			t.Fatalf("series %s survived revoke: %+v, %v", s, got, err)
		}
	}
	if got, err := repo.Find(ctx, "other"); err != nil || got == nil {
		t.Fatalf("other user's series affected by revoke: %+v, %v", got, err)
	}
}

func TestRememberMeServiceOnRedisRepository(t *testing.T) {
	repo := newRedisTokenRepo(t)
	svc := NewRememberMeService(repo, time.Hour)
	ctx := context.Background()

	stolen, err := svc.Issue(ctx, "u1@mail.com")
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	_, rotated, err := svc.Validate(ctx, stolen)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if _, _, err := svc.Validate(ctx, stolen); !errors.Is(err, ErrSeriesCompromised) {
		t.Fatalf("stale replay: got %v, want ErrSeriesCompromised", err)
	}
	if _, _, err := svc.Validate(ctx, rotated); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("rotated value after compromise: got %v, want ErrTokenInvalid", err)
	}
}
