package repository

import (
	"context"
	"errors"

	"duel_webapp/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type ProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, username, credits, wins, losses, created_at
		 FROM users
		 WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, username, credits, wins, losses, created_at
		 FROM users
		 WHERE username = $1`,
		username,
	)
	return scanUser(row)
}

func (r *ProfileRepository) Create(ctx context.Context, u *domain.User) error {
	// starting credits for new accounts
	const initialCredits = 1000

	return r.db.QueryRow(ctx,
		`INSERT INTO users (username, credits)
		 VALUES ($1, $2)
		 RETURNING id, credits, created_at`,
		u.Username,
		initialCredits,
	).Scan(&u.ID, &u.Credits, &u.CreatedAt)
}

// ApplyResult records one finished match for userID: a win adds reward
// credits, a loss subtracts penalty without going below zero.
func (r *ProfileRepository) ApplyResult(ctx context.Context, userID int64, won bool, reward, penalty int64) (domain.ProfileTotals, error) {
	totals := domain.ProfileTotals{UserID: userID}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return totals, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var credits int64
	err = tx.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return totals, ErrUserNotFound
		}
		return totals, err
	}

	if won {
		err = tx.QueryRow(ctx,
			`UPDATE users SET credits = credits + $1, wins = wins + 1
			 WHERE id = $2
			 RETURNING credits, wins, losses`,
			reward, userID,
		).Scan(&totals.Credits, &totals.Wins, &totals.Losses)
	} else {
		err = tx.QueryRow(ctx,
			`UPDATE users SET credits = GREATEST(credits - $1, 0), losses = losses + 1
			 WHERE id = $2
			 RETURNING credits, wins, losses`,
			penalty, userID,
		).Scan(&totals.Credits, &totals.Wins, &totals.Losses)
	}
	if err != nil {
		return totals, err
	}

	if err := tx.Commit(ctx); err != nil {
		return totals, err
	}
	return totals, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Credits,
		&u.Wins,
		&u.Losses,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
