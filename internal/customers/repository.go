package customers

import (
	"context"

	"github.com/azstore/crm-server/internal/domain"
)

// CustomerFilter narrows staff customer listings.
type CustomerFilter struct {
	// Search matches email, first name and last name, case-insensitive.
	Search     string
	GroupID    *string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Repository defines the data access contract for the customer directory.
type Repository interface {
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, filter CustomerFilter) ([]domain.Customer, error)
	UpdateCustomer(ctx context.Context, c *domain.Customer) error
	SetCustomerActive(ctx context.Context, id string, active bool) error
	CustomerExists(ctx context.Context, id string) (bool, error)

	CreateGroup(ctx context.Context, g *domain.CustomerGroup) error
	GetGroup(ctx context.Context, id string) (*domain.CustomerGroup, error)
	GetGroupByName(ctx context.Context, name string) (*domain.CustomerGroup, error)
	ListGroups(ctx context.Context) ([]domain.CustomerGroup, error)
	UpdateGroup(ctx context.Context, g *domain.CustomerGroup) error
	DeleteGroup(ctx context.Context, id string) error
	GroupExists(ctx context.Context, id string) (bool, error)

	AddGroupMembers(ctx context.Context, groupID string, customerIDs []string) (int64, error)
	RemoveGroupMembers(ctx context.Context, groupID string, customerIDs []string) (int64, error)
	GroupMemberIDs(ctx context.Context, groupID string) ([]string, error)
	ListGroupMembers(ctx context.Context, groupID string) ([]domain.Customer, error)

	CreateNote(ctx context.Context, n *domain.CustomerNote) error
	GetNote(ctx context.Context, id string) (*domain.CustomerNote, error)
	ListNotes(ctx context.Context, customerID string) ([]domain.CustomerNote, error)
	UpdateNote(ctx context.Context, n *domain.CustomerNote) error
	DeleteNote(ctx context.Context, id string) error
}
