package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tidechat/internal/app/db"
)

// PgConversationStore is the PostgreSQL implementation of ConversationStore.
// Direct-conversation uniqueness rests on the partial unique index over
// participants_key (scoped to type = 'direct').
type PgConversationStore struct {
	pool *pgxpool.Pool
}

var _ ConversationStore = (*PgConversationStore)(nil)

func (s *PgConversationStore) Insert(ctx context.Context, c *Conversation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, type, member_ids, participants_key, title, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
	`, c.ID, string(c.Type), c.MemberIDs, c.ParticipantsKey, c.Title, c.CreatedAt, c.UpdatedAt)

	if db.IsUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *PgConversationStore) GetByID(ctx context.Context, id string) (*Conversation, error) {
	return s.get(ctx, `
		SELECT id, type, member_ids, COALESCE(participants_key, ''), COALESCE(title, ''), created_at, updated_at
		FROM conversations
		WHERE id = $1
	`, id)
}

func (s *PgConversationStore) GetDirectByKey(ctx context.Context, key string) (*Conversation, error) {
	return s.get(ctx, `
		SELECT id, type, member_ids, COALESCE(participants_key, ''), COALESCE(title, ''), created_at, updated_at
		FROM conversations
		WHERE type = 'direct' AND participants_key = $1
	`, key)
}

func (s *PgConversationStore) ListForUser(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, member_ids, COALESCE(participants_key, ''), COALESCE(title, ''), created_at, updated_at
		FROM conversations
		WHERE member_ids @> ARRAY[$1]
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convos := []Conversation{}
	for rows.Next() {
		var c Conversation
		var typ string
		if err := rows.Scan(&c.ID, &typ, &c.MemberIDs, &c.ParticipantsKey, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Type = ConversationType(typ)
		convos = append(convos, c)
	}
	return convos, rows.Err()
}

func (s *PgConversationStore) get(ctx context.Context, query string, arg any) (*Conversation, error) {
	c := &Conversation{}
	var typ string
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&c.ID, &typ, &c.MemberIDs, &c.ParticipantsKey, &c.Title, &c.CreatedAt, &c.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	c.Type = ConversationType(typ)
	return c, nil
}
