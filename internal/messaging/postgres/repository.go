// Package postgres provides PostgreSQL implementation of the messaging repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/azstore/crm-server/internal/domain"
	"github.com/azstore/crm-server/internal/messaging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements messaging.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateThread inserts a thread.
func (r *Repository) CreateThread(ctx context.Context, t *domain.MessageThread) error {
	query := `
		INSERT INTO message_threads (customer_id, subject)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, t.CustomerID, t.Subject).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create thread: %w", err)
	}
	return nil
}

// GetThread retrieves a thread by ID.
func (r *Repository) GetThread(ctx context.Context, id string) (*domain.MessageThread, error) {
	query := `
		SELECT id, customer_id, subject, is_closed, created_at, updated_at
		FROM message_threads WHERE id = $1
	`
	var t domain.MessageThread
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.CustomerID, &t.Subject, &t.IsClosed, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, messaging.ErrThreadNotFound
		}
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return &t, nil
}

// ListThreads retrieves threads matching the filter, most recently active
// first. The unread count is taken from the caller's perspective: a customer
// listing counts unread staff replies, a staff listing counts unread customer
// messages.
func (r *Repository) ListThreads(ctx context.Context, filter messaging.ThreadFilter) ([]domain.MessageThread, error) {
	unreadStaffReplies := filter.CustomerID != nil

	query := `
		SELECT t.id, t.customer_id, t.subject, t.is_closed, t.created_at, t.updated_at,
			(SELECT COUNT(*) FROM messages m
				WHERE m.thread_id = t.id AND m.is_read = FALSE AND m.is_staff_reply = ` +
		strconv.FormatBool(unreadStaffReplies) + `) AS unread_count
		FROM message_threads t
	`

	var args []interface{}
	where := ""

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		where = " WHERE t.customer_id = $1"
	}
	if filter.OpenOnly {
		if where == "" {
			where = " WHERE t.is_closed = FALSE"
		} else {
			where += " AND t.is_closed = FALSE"
		}
	}

	query += where + " ORDER BY t.updated_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	list := make([]domain.MessageThread, 0)
	for rows.Next() {
		var t domain.MessageThread
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.Subject, &t.IsClosed, &t.CreatedAt, &t.UpdatedAt, &t.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return list, nil
}

// SetThreadClosed toggles a thread's closed flag.
func (r *Repository) SetThreadClosed(ctx context.Context, id string, closed bool) error {
	query := `UPDATE message_threads SET is_closed = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.Exec(ctx, query, id, closed)
	if err != nil {
		return fmt.Errorf("set thread closed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return messaging.ErrThreadNotFound
	}
	return nil
}

// TouchThread bumps a thread's updated_at so activity ordering stays correct.
func (r *Repository) TouchThread(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `UPDATE message_threads SET updated_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touch thread: %w", err)
	}
	return nil
}

// CreateMessage inserts a message.
func (r *Repository) CreateMessage(ctx context.Context, m *domain.Message) error {
	query := `
		INSERT INTO messages (thread_id, sender_id, body, is_staff_reply)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, m.ThreadID, m.SenderID, m.Body, m.IsStaffReply).
		Scan(&m.ID, &m.CreatedAt)

	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// ListMessages retrieves a thread's messages, oldest first.
func (r *Repository) ListMessages(ctx context.Context, threadID string) ([]domain.Message, error) {
	query := `
		SELECT id, thread_id, sender_id, body, is_read, is_staff_reply, created_at
		FROM messages WHERE thread_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	list := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.IsRead, &m.IsStaffReply, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return list, nil
}

// MarkMessagesRead flags the thread's messages from one side as read.
func (r *Repository) MarkMessagesRead(ctx context.Context, threadID string, staffReplies bool) (int64, error) {
	query := `
		UPDATE messages SET is_read = TRUE
		WHERE thread_id = $1 AND is_staff_reply = $2 AND is_read = FALSE
	`
	result, err := r.db.Exec(ctx, query, threadID, staffReplies)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return result.RowsAffected(), nil
}
