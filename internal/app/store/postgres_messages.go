package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgMessageStore is the PostgreSQL implementation of MessageStore. Delivery
// receipts live in text[] columns mutated with set semantics inside single
// UPDATE statements, so per-message transitions stay atomic.
type PgMessageStore struct {
	pool *pgxpool.Pool
}

var _ MessageStore = (*PgMessageStore)(nil)

func (s *PgMessageStore) Insert(ctx context.Context, m *Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, room_id, sender_id, body, delivered_to, seen_by, client_token, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
	`, m.ID, m.ConversationID, m.RoomID, m.SenderID, m.Body, m.DeliveredTo, m.SeenBy, m.ClientToken, m.CreatedAt)

	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PgMessageStore) Recent(ctx context.Context, target string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	where := `room_id = $1`
	if IsIdentity(target) {
		where = `conversation_id = $1`
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, COALESCE(conversation_id, ''), room_id, sender_id, body, delivered_to, seen_by, COALESCE(client_token, ''), created_at
		FROM messages
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $2
	`, where), target, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (s *PgMessageStore) MarkSeen(ctx context.Context, conversationID, viewerID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET seen_by = array_append(seen_by, $2),
		    delivered_to = CASE
		        WHEN $2 = ANY (delivered_to) THEN delivered_to
		        ELSE array_append(delivered_to, $2)
		    END
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND NOT ($2 = ANY (seen_by))
	`, conversationID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgMessageStore) AddDelivered(ctx context.Context, conversationID string, receiverIDs []string) error {
	if len(receiverIDs) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET delivered_to = (
		    SELECT array_agg(DISTINCT x) FROM unnest(delivered_to || $2::text[]) AS x
		)
		WHERE conversation_id = $1
		  AND NOT (delivered_to @> $2::text[])
	`, conversationID, receiverIDs)
	if err != nil {
		return fmt.Errorf("add delivered: %w", err)
	}
	return nil
}

func (s *PgMessageStore) UnreadCounts(ctx context.Context, userID string) ([]UnreadCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT conversation_id, COUNT(*)
		FROM messages
		WHERE conversation_id IS NOT NULL
		  AND sender_id <> $1
		  AND NOT ($1 = ANY (seen_by))
		GROUP BY conversation_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	defer rows.Close()

	counts := []UnreadCount{}
	for rows.Next() {
		var c UnreadCount
		if err := rows.Scan(&c.ConversationID, &c.Count); err != nil {
			return nil, fmt.Errorf("scan unread count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func scanMessages(rows pgx.Rows) ([]Message, error) {
	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.RoomID, &m.SenderID, &m.Body,
			&m.DeliveredTo, &m.SeenBy, &m.ClientToken, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
