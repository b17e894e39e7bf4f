package domain

import (
	"fmt"
	"time"
)

// NotificationCategory classifies a notification.
type NotificationCategory string

// Notification categories.
const (
	CategoryPromotion     NotificationCategory = "promotion"
	CategorySystemUpdate  NotificationCategory = "system_update"
	CategorySystemMessage NotificationCategory = "system_message"
	CategoryAnnouncement  NotificationCategory = "announcement"
)

// IsValid checks if the category is one of the known values.
func (c NotificationCategory) IsValid() bool {
	switch c {
	case CategoryPromotion, CategorySystemUpdate, CategorySystemMessage, CategoryAnnouncement:
		return true
	}
	return false
}

// TargetKind discriminates the notification target variant.
type TargetKind string

// Target kinds.
const (
	TargetCustomer  TargetKind = "customer"
	TargetGroup     TargetKind = "group"
	TargetBroadcast TargetKind = "broadcast"
)

// Target identifies who a notification addresses. Exactly one kind is set:
// a single customer, a customer group, or broadcast (everyone). The two ID
// fields are never both set; constructors are the only intended way to build one.
type Target struct {
	Kind       TargetKind `json:"kind"`
	CustomerID *string    `json:"customer_id,omitempty"`
	GroupID    *string    `json:"group_id,omitempty"`
}

// CustomerTarget returns a target addressing a single customer.
func CustomerTarget(customerID string) Target {
	return Target{Kind: TargetCustomer, CustomerID: &customerID}
}

// GroupTarget returns a target addressing a customer group.
func GroupTarget(groupID string) Target {
	return Target{Kind: TargetGroup, GroupID: &groupID}
}

// BroadcastTarget returns a target addressing all customers.
func BroadcastTarget() Target {
	return Target{Kind: TargetBroadcast}
}

// Validate checks the target's internal consistency.
func (t Target) Validate() error {
	switch t.Kind {
	case TargetCustomer:
		if t.CustomerID == nil || *t.CustomerID == "" {
			return fmt.Errorf("customer target requires customer_id")
		}
		if t.GroupID != nil {
			return fmt.Errorf("customer target must not carry group_id")
		}
	case TargetGroup:
		if t.GroupID == nil || *t.GroupID == "" {
			return fmt.Errorf("group target requires group_id")
		}
		if t.CustomerID != nil {
			return fmt.Errorf("group target must not carry customer_id")
		}
	case TargetBroadcast:
		if t.CustomerID != nil || t.GroupID != nil {
			return fmt.Errorf("broadcast target must not carry ids")
		}
	default:
		return fmt.Errorf("unknown target kind: %q", t.Kind)
	}
	return nil
}

// Notification represents a single notification record. Group-targeted records
// are summaries: they carry no per-member state until expanded.
type Notification struct {
	ID        string               `json:"id"`
	Target    Target               `json:"target"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Category  NotificationCategory `json:"category"`
	IsRead    bool                 `json:"is_read"`
	IsActive  bool                 `json:"is_active"`
	CreatedAt time.Time            `json:"created_at"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
}

// IsExpired reports whether the notification has passed its expiry at the given time.
func (n *Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// NotificationExpansion records a completed fan-out of a group notification.
// The unique constraint on notification_id makes accidental re-expansion a
// detectable conflict rather than a silent duplicate fan-out.
type NotificationExpansion struct {
	ID             string    `json:"id"`
	NotificationID string    `json:"notification_id"`
	BatchID        string    `json:"batch_id"`
	MemberCount    int       `json:"member_count"`
	CreatedCount   int       `json:"created_count"`
	ExpandedBy     *string   `json:"expanded_by,omitempty"`
	ExpandedAt     time.Time `json:"expanded_at"`
}
