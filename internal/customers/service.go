package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/azstore/crm-server/internal/domain"
	"github.com/azstore/crm-server/internal/pkg/ctxlog"
	"golang.org/x/text/language"
)

// Languages the store serves. Profile updates normalize any regional variant
// to one of these base tags (en-CA stays en, fr-CA stays fr).
var supportedLanguages = []language.Tag{
	language.English,
	language.French,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

func normalizeLanguage(pref string) (string, error) {
	tag, err := language.Parse(pref)
	if err != nil {
		return "", ErrUnsupportedLanguage
	}
	matched, _, conf := languageMatcher.Match(tag)
	if conf == language.No {
		return "", ErrUnsupportedLanguage
	}
	base, _ := matched.Base()
	return base.String(), nil
}

// ProfileUpdate carries optional profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName          *string
	LastName           *string
	Phone              *string
	StreetAddress      *string
	City               *string
	Province           *string
	PostalCode         *string
	Country            *string
	PreferredLanguage  *string
	DietaryPreferences *string
	EmailNotifications *bool
	SMSNotifications   *bool
	PushNotifications  *bool
}

// Service implements the customer directory: profiles, groups and notes.
type Service struct {
	repo Repository
}

// NewService creates a new customers service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetCustomer returns a customer by ID.
func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// ListCustomers returns customers matching the staff filter.
func (s *Service) ListCustomers(ctx context.Context, filter CustomerFilter) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, filter)
}

// UpdateProfile applies a partial profile update. The preferred language, when
// given, is normalized against the supported set.
func (s *Service) UpdateProfile(ctx context.Context, customerID string, upd ProfileUpdate) (*domain.Customer, error) {
	c, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if upd.FirstName != nil {
		c.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		c.LastName = *upd.LastName
	}
	if upd.Phone != nil {
		c.Phone = *upd.Phone
	}
	if upd.StreetAddress != nil {
		c.StreetAddress = *upd.StreetAddress
	}
	if upd.City != nil {
		c.City = *upd.City
	}
	if upd.Province != nil {
		c.Province = *upd.Province
	}
	if upd.PostalCode != nil {
		c.PostalCode = *upd.PostalCode
	}
	if upd.Country != nil {
		c.Country = *upd.Country
	}
	if upd.PreferredLanguage != nil {
		lang, err := normalizeLanguage(*upd.PreferredLanguage)
		if err != nil {
			return nil, err
		}
		c.PreferredLanguage = lang
	}
	if upd.DietaryPreferences != nil {
		c.DietaryPreferences = *upd.DietaryPreferences
	}
	if upd.EmailNotifications != nil {
		c.EmailNotifications = *upd.EmailNotifications
	}
	if upd.SMSNotifications != nil {
		c.SMSNotifications = *upd.SMSNotifications
	}
	if upd.PushNotifications != nil {
		c.PushNotifications = *upd.PushNotifications
	}

	if err := s.repo.UpdateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetCustomerActive activates or deactivates a customer account.
func (s *Service) SetCustomerActive(ctx context.Context, id string, active bool) error {
	return s.repo.SetCustomerActive(ctx, id, active)
}

// CreateGroup creates a new customer group.
func (s *Service) CreateGroup(ctx context.Context, name, description string, createdBy string) (*domain.CustomerGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyGroupName
	}

	g := &domain.CustomerGroup{
		Name:        name,
		Description: description,
	}
	if createdBy != "" {
		g.CreatedBy = &createdBy
	}

	if err := s.repo.CreateGroup(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// EnsureGroup returns the group with the given name, creating it if it does
// not exist yet. Safe under concurrent callers: a create that loses the race
// on the unique name falls back to reading the winner's row.
func (s *Service) EnsureGroup(ctx context.Context, name, description string, createdBy string) (*domain.CustomerGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyGroupName
	}

	g, err := s.repo.GetGroupByName(ctx, name)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, ErrGroupNotFound) {
		return nil, err
	}

	g, err = s.CreateGroup(ctx, name, description, createdBy)
	if errors.Is(err, ErrGroupNameTaken) {
		return s.repo.GetGroupByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("customer group created on demand", "group", name)
	return g, nil
}

// GetGroup returns a group by ID.
func (s *Service) GetGroup(ctx context.Context, id string) (*domain.CustomerGroup, error) {
	return s.repo.GetGroup(ctx, id)
}

// ListGroups returns all groups with member counts.
func (s *Service) ListGroups(ctx context.Context) ([]domain.CustomerGroup, error) {
	return s.repo.ListGroups(ctx)
}

// UpdateGroup changes a group's name or description.
func (s *Service) UpdateGroup(ctx context.Context, id string, name, description *string) (*domain.CustomerGroup, error) {
	g, err := s.repo.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, ErrEmptyGroupName
		}
		g.Name = trimmed
	}
	if description != nil {
		g.Description = *description
	}

	if err := s.repo.UpdateGroup(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// DeleteGroup removes a group and its membership rows. Customers themselves
// are untouched.
func (s *Service) DeleteGroup(ctx context.Context, id string) error {
	return s.repo.DeleteGroup(ctx, id)
}

// AddGroupMembers adds customers to a group. Already-present members are
// skipped. Returns the number actually added.
func (s *Service) AddGroupMembers(ctx context.Context, groupID string, customerIDs []string) (int64, error) {
	if len(customerIDs) == 0 {
		return 0, ErrNoMembers
	}

	ok, err := s.repo.GroupExists(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("check group: %w", err)
	}
	if !ok {
		return 0, ErrGroupNotFound
	}

	for _, id := range customerIDs {
		exists, err := s.repo.CustomerExists(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("check customer: %w", err)
		}
		if !exists {
			return 0, fmt.Errorf("%w: %s", ErrCustomerNotFound, id)
		}
	}

	return s.repo.AddGroupMembers(ctx, groupID, customerIDs)
}

// RemoveGroupMembers removes customers from a group.
func (s *Service) RemoveGroupMembers(ctx context.Context, groupID string, customerIDs []string) (int64, error) {
	if len(customerIDs) == 0 {
		return 0, ErrNoMembers
	}

	ok, err := s.repo.GroupExists(ctx, groupID)
	if err != nil {
		return 0, fmt.Errorf("check group: %w", err)
	}
	if !ok {
		return 0, ErrGroupNotFound
	}

	return s.repo.RemoveGroupMembers(ctx, groupID, customerIDs)
}

// ListGroupMembers returns the full customer records of a group's members.
func (s *Service) ListGroupMembers(ctx context.Context, groupID string) ([]domain.Customer, error) {
	ok, err := s.repo.GroupExists(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("check group: %w", err)
	}
	if !ok {
		return nil, ErrGroupNotFound
	}
	return s.repo.ListGroupMembers(ctx, groupID)
}

// AddNote attaches a staff note to a customer.
func (s *Service) AddNote(ctx context.Context, customerID, note string, createdBy string) (*domain.CustomerNote, error) {
	if strings.TrimSpace(note) == "" {
		return nil, ErrEmptyNote
	}

	ok, err := s.repo.CustomerExists(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("check customer: %w", err)
	}
	if !ok {
		return nil, ErrCustomerNotFound
	}

	n := &domain.CustomerNote{
		CustomerID: customerID,
		Note:       note,
	}
	if createdBy != "" {
		n.CreatedBy = &createdBy
	}

	if err := s.repo.CreateNote(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// ListNotes returns a customer's notes, newest first.
func (s *Service) ListNotes(ctx context.Context, customerID string) ([]domain.CustomerNote, error) {
	return s.repo.ListNotes(ctx, customerID)
}

// UpdateNote replaces a note's text.
func (s *Service) UpdateNote(ctx context.Context, id, note string) (*domain.CustomerNote, error) {
	if strings.TrimSpace(note) == "" {
		return nil, ErrEmptyNote
	}

	n, err := s.repo.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}

	n.Note = note
	if err := s.repo.UpdateNote(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// DeleteNote removes a note.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	return s.repo.DeleteNote(ctx, id)
}

// GroupMemberIDs returns a snapshot of the group's current member IDs.
// Part of the notification engine's GroupDirectory contract.
func (s *Service) GroupMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	return s.repo.GroupMemberIDs(ctx, groupID)
}

// GroupExists reports whether a group exists.
func (s *Service) GroupExists(ctx context.Context, groupID string) (bool, error) {
	return s.repo.GroupExists(ctx, groupID)
}

// CustomerExists reports whether a customer exists.
func (s *Service) CustomerExists(ctx context.Context, customerID string) (bool, error) {
	return s.repo.CustomerExists(ctx, customerID)
}
