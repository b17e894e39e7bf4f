package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/azstore/crm-server/internal/domain"
	"github.com/azstore/crm-server/internal/pkg/ctxlog"
	"github.com/google/uuid"
)

// GroupDirectory resolves customer groups for fan-out. Implemented by the
// customers service.
type GroupDirectory interface {
	// GroupMemberIDs returns a stable snapshot of the group's current members.
	GroupMemberIDs(ctx context.Context, groupID string) ([]string, error)
	GroupExists(ctx context.Context, groupID string) (bool, error)
	CustomerExists(ctx context.Context, customerID string) (bool, error)
}

// Input carries the content fields shared by all create operations.
type Input struct {
	Title     string
	Message   string
	Category  domain.NotificationCategory
	Active    bool
	ExpiresAt *time.Time
}

func (in Input) validate() error {
	if in.Title == "" {
		return ErrEmptyTitle
	}
	if in.Message == "" {
		return ErrEmptyMessage
	}
	if !in.Category.IsValid() {
		return ErrInvalidCategory
	}
	return nil
}

// FanoutReport is the manifest returned by Expand and BulkNotify so callers
// can detect and report partial completion precisely instead of inferring it
// from a count mismatch.
type FanoutReport struct {
	NotificationID    string   `json:"notification_id,omitempty"`
	BatchID           string   `json:"batch_id"`
	TargetCount       int      `json:"target_count"`
	CreatedCount      int      `json:"created_count"`
	FailedCustomerIDs []string `json:"failed_customer_ids"`
}

// Service implements the notification targeting and fan-out engine.
type Service struct {
	repo      Repository
	directory GroupDirectory
	now       func() time.Time
}

// NewService creates a new notifications service.
func NewService(repo Repository, directory GroupDirectory) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		now:       time.Now,
	}
}

// CreateForCustomer creates one notification addressed to a single customer.
func (s *Service) CreateForCustomer(ctx context.Context, customerID string, in Input) (*domain.Notification, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ok, err := s.directory.CustomerExists(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("check customer: %w", err)
	}
	if !ok {
		return nil, ErrCustomerNotFound
	}

	return s.create(ctx, domain.CustomerTarget(customerID), in)
}

// CreateForGroup creates one group-targeted summary notification. Per-member
// records are materialized lazily by Expand, so a large group costs one write
// until someone asks for the fan-out.
func (s *Service) CreateForGroup(ctx context.Context, groupID string, in Input) (*domain.Notification, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ok, err := s.directory.GroupExists(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("check group: %w", err)
	}
	if !ok {
		return nil, ErrGroupNotFound
	}

	return s.create(ctx, domain.GroupTarget(groupID), in)
}

// CreateBroadcast creates one notification visible to all customers.
func (s *Service) CreateBroadcast(ctx context.Context, in Input) (*domain.Notification, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	return s.create(ctx, domain.BroadcastTarget(), in)
}

func (s *Service) create(ctx context.Context, target domain.Target, in Input) (*domain.Notification, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	n := &domain.Notification{
		Target:    target,
		Title:     in.Title,
		Message:   in.Message,
		Category:  in.Category,
		IsActive:  in.Active,
		ExpiresAt: in.ExpiresAt,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	notificationsCreated.WithLabelValues(string(target.Kind)).Inc()
	return n, nil
}

// Expand materializes a group notification into per-member records. Membership
// is read at expansion time, so members added after creation are included.
// Each per-member write commits independently; failures are collected in the
// report rather than aborting the loop, and the summary record is left as-is.
//
// A ledger row claimed before the fan-out makes a repeat call fail with
// ErrAlreadyExpanded. Passing force skips the ledger and deliberately re-sends,
// which duplicates per-member records.
func (s *Service) Expand(ctx context.Context, notificationID string, expandedBy string, force bool) (*FanoutReport, error) {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	if n.Target.Kind != domain.TargetGroup {
		return nil, ErrNotGroupTargeted
	}

	members, err := s.directory.GroupMemberIDs(ctx, *n.Target.GroupID)
	if err != nil {
		return nil, fmt.Errorf("resolve group members: %w", err)
	}

	batchID := uuid.NewString()

	if !force {
		exp := &domain.NotificationExpansion{
			NotificationID: n.ID,
			BatchID:        batchID,
			MemberCount:    len(members),
		}
		if expandedBy != "" {
			exp.ExpandedBy = &expandedBy
		}
		if err := s.repo.CreateExpansion(ctx, exp); err != nil {
			return nil, err
		}
	}

	start := s.now()
	report := &FanoutReport{
		NotificationID:    n.ID,
		BatchID:           batchID,
		TargetCount:       len(members),
		FailedCustomerIDs: make([]string, 0),
	}

	in := Input{
		Title:     n.Title,
		Message:   n.Message,
		Category:  n.Category,
		Active:    n.IsActive,
		ExpiresAt: n.ExpiresAt,
	}

	for _, customerID := range members {
		if _, err := s.create(ctx, domain.CustomerTarget(customerID), in); err != nil {
			fanoutFailures.Inc()
			ctxlog.FromContext(ctx).Error("fan-out write failed",
				"notification_id", n.ID,
				"customer_id", customerID,
				"error", err,
			)
			report.FailedCustomerIDs = append(report.FailedCustomerIDs, customerID)
			continue
		}
		report.CreatedCount++
	}

	fanoutDuration.Observe(s.now().Sub(start).Seconds())

	if !force {
		if err := s.repo.UpdateExpansionCounts(ctx, batchID, report.CreatedCount); err != nil {
			ctxlog.FromContext(ctx).Error("update expansion ledger failed",
				"batch_id", batchID, "error", err)
		}
	}

	ctxlog.FromContext(ctx).Info("group notification expanded",
		"notification_id", n.ID,
		"group_id", *n.Target.GroupID,
		"members", report.TargetCount,
		"created", report.CreatedCount,
		"failed", len(report.FailedCustomerIDs),
	)

	return report, nil
}

// BulkNotify creates one customer-targeted notification per recipient without
// a group summary record. Used by staff bulk actions over an ad-hoc selection.
func (s *Service) BulkNotify(ctx context.Context, customerIDs []string, in Input) (*FanoutReport, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if len(customerIDs) == 0 {
		return nil, ErrNoRecipients
	}

	start := s.now()
	report := &FanoutReport{
		BatchID:           uuid.NewString(),
		TargetCount:       len(customerIDs),
		FailedCustomerIDs: make([]string, 0),
	}

	for _, customerID := range customerIDs {
		if _, err := s.create(ctx, domain.CustomerTarget(customerID), in); err != nil {
			fanoutFailures.Inc()
			ctxlog.FromContext(ctx).Error("bulk notify write failed",
				"customer_id", customerID,
				"error", err,
			)
			report.FailedCustomerIDs = append(report.FailedCustomerIDs, customerID)
			continue
		}
		report.CreatedCount++
	}

	fanoutDuration.Observe(s.now().Sub(start).Seconds())
	return report, nil
}

// ListActiveForCustomer returns the customer's active, unexpired notifications,
// newest first. Broadcast records are included when includeBroadcast is set.
func (s *Service) ListActiveForCustomer(ctx context.Context, customerID string, unreadOnly, includeBroadcast bool) ([]domain.Notification, error) {
	return s.repo.ListForCustomer(ctx, customerID, InboxFilter{
		UnreadOnly:       unreadOnly,
		IncludeBroadcast: includeBroadcast,
		Now:              s.now(),
	})
}

// CountUnread returns the customer's unread notification count.
func (s *Service) CountUnread(ctx context.Context, customerID string) (int, error) {
	return s.repo.CountUnread(ctx, customerID)
}

// MarkRead sets the read flag on the customer's own notifications.
func (s *Service) MarkRead(ctx context.Context, customerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.repo.SetReadFlag(ctx, customerID, ids, true)
}

// MarkUnread clears the read flag on the customer's own notifications.
func (s *Service) MarkUnread(ctx context.Context, customerID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.repo.SetReadFlag(ctx, customerID, ids, false)
}

// StaffMarkRead sets the read flag on arbitrary notifications (staff action).
func (s *Service) StaffMarkRead(ctx context.Context, ids []string, read bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.repo.SetReadFlagByIDs(ctx, ids, read)
}

// SetActive toggles the active flag on notifications (staff action).
func (s *Service) SetActive(ctx context.Context, ids []string, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.repo.SetActiveFlag(ctx, ids, active)
}

// Get returns a single notification by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Notification, error) {
	return s.repo.GetByID(ctx, id)
}

// GetExpansion returns the expansion ledger entry for a notification, if any.
func (s *Service) GetExpansion(ctx context.Context, notificationID string) (*domain.NotificationExpansion, error) {
	return s.repo.GetExpansion(ctx, notificationID)
}

// List returns notifications matching the staff filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Notification, error) {
	return s.repo.List(ctx, filter)
}

// Delete removes a notification (staff action).
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// OnCustomerCreated sends a welcome notification to a newly registered
// customer. Implements the identity package's CustomerCreatedHandler.
func (s *Service) OnCustomerCreated(ctx context.Context, customer *domain.Customer) error {
	name := customer.FirstName
	if name == "" {
		name = customer.Email
	}

	_, err := s.CreateForCustomer(ctx, customer.ID, Input{
		Title:    "Welcome to A-Z African & Caribbean Store",
		Message:  fmt.Sprintf("Hi %s, thanks for creating an account. Watch this inbox for promotions and announcements.", name),
		Category: domain.CategorySystemMessage,
		Active:   true,
	})
	return err
}
