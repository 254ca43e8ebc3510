package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jkindrix/bluehome/internal/clock"
	"github.com/jkindrix/bluehome/internal/domain"
)

// Runs only when BLUEHOME_TEST_DATABASE_URL points at a migrated database.
func TestPostgresStore_Integration(t *testing.T) {
	dsn := os.Getenv("BLUEHOME_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BLUEHOME_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	clk := clock.NewMock(time.Now())
	store := NewPostgresStore(pool, time.Hour, clk, zap.NewNop())
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	id := "test-" + uuid.NewString()
	t.Cleanup(func() { store.Delete(ctx, id) })

	sess := domain.NewSession(id, "Ana")
	sess.Stage = domain.StageSellerPhone
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	sess.Seller.Name = "Ana Gómez"
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stage != domain.StageSellerPhone || got.Seller.Name != "Ana Gómez" {
		t.Errorf("unexpected session %+v", got)
	}

	clk.Advance(2 * time.Hour)
	if _, err := store.Get(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected expired row to be missing, got %v", err)
	}
	n, err := store.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n < 1 {
		t.Errorf("expected at least 1 expired row removed, got %d", n)
	}
}
