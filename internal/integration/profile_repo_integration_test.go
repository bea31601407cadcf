package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"duel_webapp/internal/domain"
	"duel_webapp/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

func applyMigrations(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	migDir := filepath.Join("..", "migrations")
	files, err := os.ReadDir(migDir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if _, err := db.Exec(context.Background(), string(b)); err != nil {
			t.Fatalf("apply migration %s: %v", f.Name(), err)
		}
	}
}

func connect(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)
	applyMigrations(t, db)
	return db
}

func TestProfileRepository_ApplyResult(t *testing.T) {
	db := connect(t)
	repo := repository.NewProfileRepository(db)
	ctx := context.Background()

	u := &domain.User{Username: fmt.Sprintf("it_%d", time.Now().UnixNano())}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, u.ID)
	})

	totals, err := repo.ApplyResult(ctx, u.ID, true, 100, 0)
	if err != nil {
		t.Fatalf("apply win: %v", err)
	}
	if totals.Wins != 1 || totals.Credits != u.Credits+100 {
		t.Fatalf("after win got %+v", totals)
	}

	// penalty larger than the balance floors at zero
	totals, err = repo.ApplyResult(ctx, u.ID, false, 100, 1_000_000)
	if err != nil {
		t.Fatalf("apply loss: %v", err)
	}
	if totals.Losses != 1 || totals.Credits != 0 {
		t.Fatalf("after loss got %+v", totals)
	}

	got, err := repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Wins != 1 || got.Losses != 1 || got.Credits != 0 {
		t.Fatalf("stored user %+v", got)
	}
}

func TestProfileRepository_UnknownUser(t *testing.T) {
	db := connect(t)
	repo := repository.NewProfileRepository(db)

	_, err := repo.ApplyResult(context.Background(), -1, true, 1, 0)
	if !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
