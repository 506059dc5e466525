package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rxchain/rxchain/internal/platform/db"
)

type storePG struct {
	pool *pgxpool.Pool
}

func NewStorePG(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

func (s *storePG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, s.pool)
}

const columns = `id, user_id, title, message, notification_type, related_entity_type,
	related_entity_id, is_read, read_at, created_at`

func (s *storePG) Create(ctx context.Context, n *Notification) error {
	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO notification (id, user_id, title, message, notification_type,
			related_entity_type, related_entity_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, n.Title, n.Message, string(n.Type),
		n.RelatedEntityType, n.RelatedEntityID, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *storePG) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT `+columns+`, COUNT(*) OVER()
		FROM notification
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		userID, unreadOnly, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var (
		out   []*Notification
		total int
	)
	for rows.Next() {
		var n Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ,
			&n.RelatedEntityType, &n.RelatedEntityID, &n.IsRead, &n.ReadAt, &n.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = Type(typ)
		out = append(out, &n)
	}
	return out, total, rows.Err()
}

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	var typ string
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ,
		&n.RelatedEntityType, &n.RelatedEntityID, &n.IsRead, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Type = Type(typ)
	return &n, nil
}

// MarkRead keeps the first read_at when the notification was already read.
func (s *storePG) MarkRead(ctx context.Context, userID string, id uuid.UUID, at time.Time) (*Notification, error) {
	n, err := scanNotification(s.conn(ctx).QueryRow(ctx, `
		UPDATE notification
		SET is_read = TRUE, read_at = COALESCE(read_at, $3)
		WHERE id = $1 AND user_id = $2
		RETURNING `+columns,
		id, userID, at,
	))
	if db.IsNoRows(err) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

func (s *storePG) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE notification SET is_read = TRUE, read_at = $2
		WHERE user_id = $1 AND NOT is_read`,
		userID, at,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *storePG) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	tag, err := s.conn(ctx).Exec(ctx,
		`DELETE FROM notification WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}
