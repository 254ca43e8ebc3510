package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/clock"
	"github.com/jkindrix/bluehome/internal/domain"
)

func TestMemoryStore_SaveGetDelete(t *testing.T) {
	store := NewMemoryStore(time.Hour, clock.NewMock(time.Now()), zap.NewNop())
	ctx := context.Background()

	sess := domain.NewSession("sub-1", "Ana")
	sess.Stage = domain.StageAwaitingBudget
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "sub-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stage != domain.StageAwaitingBudget || got.UserName != "Ana" {
		t.Errorf("unexpected session %+v", got)
	}

	if err := store.Delete(ctx, "sub-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "sub-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_StoresCopies(t *testing.T) {
	store := NewMemoryStore(time.Hour, clock.NewMock(time.Now()), zap.NewNop())
	ctx := context.Background()

	sess := domain.NewSession("sub-1", "")
	sess.AppendHistory(10, domain.ChatMessage{Role: domain.RoleUser, Content: "hola"})
	store.Save(ctx, sess)

	sess.Stage = domain.StageMenu
	sess.History[0].Content = "mutated"

	got, _ := store.Get(ctx, "sub-1")
	if got.Stage != domain.StageIdle {
		t.Errorf("expected stored stage to be unaffected, got %q", got.Stage)
	}
	if got.History[0].Content != "hola" {
		t.Errorf("expected stored history to be unaffected, got %q", got.History[0].Content)
	}

	got.Stage = domain.StageSellerName
	again, _ := store.Get(ctx, "sub-1")
	if again.Stage != domain.StageIdle {
		t.Error("expected returned sessions to be independent copies")
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(time.Hour, clk, zap.NewNop())
	ctx := context.Background()

	store.Save(ctx, domain.NewSession("sub-1", ""))
	clk.Advance(59 * time.Minute)
	if _, err := store.Get(ctx, "sub-1"); err != nil {
		t.Fatalf("expected live session, got %v", err)
	}

	clk.Advance(time.Minute)
	if _, err := store.Get(ctx, "sub-1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected expired session, got %v", err)
	}

	if n := store.Sweep(); n != 1 {
		t.Errorf("expected sweep to remove 1 entry, got %d", n)
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
}

func TestMemoryStore_SaveRestartsTTL(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(time.Hour, clk, zap.NewNop())
	ctx := context.Background()

	sess := domain.NewSession("sub-1", "")
	store.Save(ctx, sess)
	clk.Advance(50 * time.Minute)
	store.Save(ctx, sess)
	clk.Advance(50 * time.Minute)

	if _, err := store.Get(ctx, "sub-1"); err != nil {
		t.Errorf("expected ttl restarted by save, got %v", err)
	}
}

func TestMemoryStore_StartCleanup(t *testing.T) {
	clk := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(time.Minute, clk, zap.NewNop())
	defer store.Close()

	store.Save(context.Background(), domain.NewSession("sub-1", ""))
	store.StartCleanup(10 * time.Minute)
	clk.Advance(10 * time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected cleanup goroutine to sweep the expired session")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryStore_CloseIdempotent(t *testing.T) {
	store := NewMemoryStore(time.Minute, nil, zap.NewNop())
	store.StartCleanup(time.Minute)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
