package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/domain"
	apperrors "github.com/jkindrix/bluehome/internal/errors"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, time.Hour, zap.NewNop())
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStore_SaveGet(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	sess := domain.NewSession("sub-1", "Ana")
	sess.Stage = domain.StageAwaitingRooms
	sess.Filters = domain.SearchFilters{Type: domain.PropertyTypeApartment, MaxRent: 2500000}
	sess.AppendHistory(10, domain.ChatMessage{Role: domain.RoleUser, Content: "hola"})

	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("bluehome:session:sub-1") {
		t.Fatal("expected namespaced key in redis")
	}
	if ttl := mr.TTL("bluehome:session:sub-1"); ttl != time.Hour {
		t.Errorf("expected ttl 1h, got %v", ttl)
	}

	got, err := store.Get(ctx, "sub-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stage != domain.StageAwaitingRooms || got.Filters.MaxRent != 2500000 || got.Filters.Type != domain.PropertyTypeApartment {
		t.Errorf("unexpected round trip: %+v", got)
	}
	if len(got.History) != 1 || got.History[0].Content != "hola" {
		t.Errorf("expected history preserved, got %+v", got.History)
	}
}

func TestRedisStore_MissingAndExpired(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "nobody"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	store.Save(ctx, domain.NewSession("sub-1", ""))
	mr.FastForward(2 * time.Hour)
	if _, err := store.Get(ctx, "sub-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected expired session to be missing, got %v", err)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	store.Save(ctx, domain.NewSession("sub-1", ""))
	if err := store.Delete(ctx, "sub-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("bluehome:session:sub-1") {
		t.Error("expected key removed")
	}
}

func TestRedisStore_CorruptValue(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Set("bluehome:session:sub-1", "{not json")

	_, err := store.Get(context.Background(), "sub-1")
	if apperrors.GetCode(err) != apperrors.CodeSessionStore {
		t.Errorf("expected SESSION_STORE error, got %v", err)
	}
}

func TestRedisStore_ServerDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	store := NewRedisStore(client, time.Hour, zap.NewNop())
	defer store.Close()

	if err := store.Ping(context.Background()); err == nil {
		t.Error("expected ping to fail")
	}
	err := store.Save(context.Background(), domain.NewSession("sub-1", ""))
	if apperrors.GetCode(err) != apperrors.CodeSessionStore {
		t.Errorf("expected SESSION_STORE error, got %v", err)
	}
}
