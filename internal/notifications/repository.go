// Package notifications implements the notification targeting and fan-out engine:
// creating customer/group/broadcast notifications, expanding group notifications
// into per-member records, and serving each customer's inbox.
package notifications

import (
	"context"
	"time"

	"github.com/azstore/crm-server/internal/domain"
)

// Repository defines the interface for notification data access.
type Repository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Notification, error)
	Delete(ctx context.Context, id string) error

	// ListForCustomer returns notifications addressed to the customer,
	// optionally including broadcast records.
	ListForCustomer(ctx context.Context, customerID string, filter InboxFilter) ([]domain.Notification, error)
	CountUnread(ctx context.Context, customerID string) (int, error)

	// SetReadFlag updates the read flag on the customer's own records only.
	// Returns the number of affected rows.
	SetReadFlag(ctx context.Context, customerID string, ids []string, read bool) (int64, error)
	// SetReadFlagByIDs updates the read flag without ownership scoping (staff actions).
	SetReadFlagByIDs(ctx context.Context, ids []string, read bool) (int64, error)
	SetActiveFlag(ctx context.Context, ids []string, active bool) (int64, error)

	// Expansion ledger. CreateExpansion fails with ErrAlreadyExpanded when a
	// ledger row for the notification already exists.
	CreateExpansion(ctx context.Context, exp *domain.NotificationExpansion) error
	UpdateExpansionCounts(ctx context.Context, batchID string, createdCount int) error
	GetExpansion(ctx context.Context, notificationID string) (*domain.NotificationExpansion, error)
}

// ListFilter narrows staff notification listings.
type ListFilter struct {
	TargetKind *domain.TargetKind
	Category   *domain.NotificationCategory
	ActiveOnly bool
	Limit      int
	Offset     int
}

// InboxFilter narrows a customer's inbox query.
type InboxFilter struct {
	UnreadOnly       bool
	IncludeBroadcast bool
	Now              time.Time // records expired at this instant are excluded
	Limit            int
}
