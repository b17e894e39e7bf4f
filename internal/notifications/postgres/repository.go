// Package postgres provides PostgreSQL implementation of the notifications repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/azstore/crm-server/internal/domain"
	"github.com/azstore/crm-server/internal/notifications"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository implements notifications.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const notificationColumns = `id, target_kind, customer_id, group_id, title, message, category, is_read, is_active, created_at, expires_at`

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	var kind string
	err := row.Scan(
		&n.ID,
		&kind,
		&n.Target.CustomerID,
		&n.Target.GroupID,
		&n.Title,
		&n.Message,
		&n.Category,
		&n.IsRead,
		&n.IsActive,
		&n.CreatedAt,
		&n.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	n.Target.Kind = domain.TargetKind(kind)
	return &n, nil
}

// Create inserts a notification record. The target_kind check constraint in
// the schema backs up the domain-level target exclusivity invariant.
func (r *Repository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (target_kind, customer_id, group_id, title, message, category, is_read, is_active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		n.Target.Kind,
		n.Target.CustomerID,
		n.Target.GroupID,
		n.Title,
		n.Message,
		n.Category,
		n.IsRead,
		n.IsActive,
		n.ExpiresAt,
	).Scan(&n.ID, &n.CreatedAt)

	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// List retrieves notifications matching the staff filter, newest first.
func (r *Repository) List(ctx context.Context, filter notifications.ListFilter) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications`

	var conditions []string
	var args []interface{}

	if filter.TargetKind != nil {
		args = append(args, *filter.TargetKind)
		conditions = append(conditions, "target_kind = $"+strconv.Itoa(len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		conditions = append(conditions, "category = $"+strconv.Itoa(len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

// ListForCustomer retrieves the customer's inbox: active, unexpired records
// addressed to them, optionally plus broadcasts, newest first.
func (r *Repository) ListForCustomer(ctx context.Context, customerID string, filter notifications.InboxFilter) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE is_active = TRUE
		AND (expires_at IS NULL OR expires_at > $2)`

	args := []interface{}{customerID, filter.Now}

	if filter.IncludeBroadcast {
		query += ` AND (customer_id = $1 OR target_kind = 'broadcast')`
	} else {
		query += ` AND customer_id = $1`
	}
	if filter.UnreadOnly {
		query += ` AND is_read = FALSE`
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list customer notifications: %w", err)
	}
	defer rows.Close()

	return collectNotifications(rows)
}

func collectNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	list := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		list = append(list, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return list, nil
}

// CountUnread counts the customer's unread, active, customer-targeted records.
func (r *Repository) CountUnread(ctx context.Context, customerID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE customer_id = $1 AND is_read = FALSE AND is_active = TRUE
	`
	var count int
	if err := r.db.QueryRow(ctx, query, customerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// SetReadFlag updates the read flag on the customer's own records only.
func (r *Repository) SetReadFlag(ctx context.Context, customerID string, ids []string, read bool) (int64, error) {
	query := `
		UPDATE notifications SET is_read = $3
		WHERE customer_id = $1 AND id = ANY($2)
	`
	result, err := r.db.Exec(ctx, query, customerID, ids, read)
	if err != nil {
		return 0, fmt.Errorf("set read flag: %w", err)
	}
	return result.RowsAffected(), nil
}

// SetReadFlagByIDs updates the read flag without ownership scoping.
func (r *Repository) SetReadFlagByIDs(ctx context.Context, ids []string, read bool) (int64, error) {
	query := `UPDATE notifications SET is_read = $2 WHERE id = ANY($1)`
	result, err := r.db.Exec(ctx, query, ids, read)
	if err != nil {
		return 0, fmt.Errorf("set read flag by ids: %w", err)
	}
	return result.RowsAffected(), nil
}

// SetActiveFlag updates the active flag on the given records.
func (r *Repository) SetActiveFlag(ctx context.Context, ids []string, active bool) (int64, error) {
	query := `UPDATE notifications SET is_active = $2 WHERE id = ANY($1)`
	result, err := r.db.Exec(ctx, query, ids, active)
	if err != nil {
		return 0, fmt.Errorf("set active flag: %w", err)
	}
	return result.RowsAffected(), nil
}

// Delete removes a notification.
func (r *Repository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notifications.ErrNotificationNotFound
	}
	return nil
}

// CreateExpansion claims the expansion ledger row for a notification.
// The unique constraint on notification_id turns a concurrent or repeated
// expansion into ErrAlreadyExpanded.
func (r *Repository) CreateExpansion(ctx context.Context, exp *domain.NotificationExpansion) error {
	query := `
		INSERT INTO notification_expansions (notification_id, batch_id, member_count, created_count, expanded_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, expanded_at
	`
	err := r.db.QueryRow(ctx, query,
		exp.NotificationID,
		exp.BatchID,
		exp.MemberCount,
		exp.CreatedCount,
		exp.ExpandedBy,
	).Scan(&exp.ID, &exp.ExpandedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return notifications.ErrAlreadyExpanded
		}
		return fmt.Errorf("create expansion: %w", err)
	}
	return nil
}

// UpdateExpansionCounts records the final created count after a fan-out.
func (r *Repository) UpdateExpansionCounts(ctx context.Context, batchID string, createdCount int) error {
	query := `UPDATE notification_expansions SET created_count = $2 WHERE batch_id = $1`
	if _, err := r.db.Exec(ctx, query, batchID, createdCount); err != nil {
		return fmt.Errorf("update expansion counts: %w", err)
	}
	return nil
}

// GetExpansion retrieves the expansion ledger entry for a notification.
func (r *Repository) GetExpansion(ctx context.Context, notificationID string) (*domain.NotificationExpansion, error) {
	query := `
		SELECT id, notification_id, batch_id, member_count, created_count, expanded_by, expanded_at
		FROM notification_expansions
		WHERE notification_id = $1
	`
	var exp domain.NotificationExpansion
	err := r.db.QueryRow(ctx, query, notificationID).Scan(
		&exp.ID,
		&exp.NotificationID,
		&exp.BatchID,
		&exp.MemberCount,
		&exp.CreatedCount,
		&exp.ExpandedBy,
		&exp.ExpandedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notifications.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("get expansion: %w", err)
	}
	return &exp, nil
}
