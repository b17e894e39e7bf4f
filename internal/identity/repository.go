package identity

import (
	"context"

	"github.com/azstore/crm-server/internal/domain"
)

// Repository defines the data access contract for accounts and sessions.
type Repository interface {
	CreateCustomer(ctx context.Context, c *domain.Customer) error
	GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)

	SaveRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
	DeleteCustomerRefreshTokens(ctx context.Context, customerID string) error
}
