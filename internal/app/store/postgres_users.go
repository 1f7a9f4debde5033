package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tidechat/internal/app/db"
)

// PgUserStore is the PostgreSQL implementation of UserStore. Username
// uniqueness rests on the users_username_key index.
type PgUserStore struct {
	pool *pgxpool.Pool
}

var _ UserStore = (*PgUserStore)(nil)

func (s *PgUserStore) Insert(ctx context.Context, u *User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, display_name, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)
	`, u.ID, u.Username, u.DisplayName, u.CreatedAt)

	if db.IsUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PgUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, COALESCE(display_name, ''), created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *PgUserStore) GetByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, username, COALESCE(display_name, ''), created_at
		FROM users
		WHERE id = ANY ($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

func (s *PgUserStore) ListAll(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, COALESCE(display_name, ''), created_at
		FROM users
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	return scanUsers(rows)
}

func scanUsers(rows pgx.Rows) ([]User, error) {
	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
