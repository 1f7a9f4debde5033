package store

import "github.com/jackc/pgx/v5/pgxpool"

// NewPostgres wires the Postgres-backed implementations of all three
// collections over a shared connection pool.
func NewPostgres(pool *pgxpool.Pool) *Store {
	return &Store{
		Users:         &PgUserStore{pool: pool},
		Conversations: &PgConversationStore{pool: pool},
		Messages:      &PgMessageStore{pool: pool},
	}
}
