// Package postgres provides PostgreSQL implementation of the identity repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/azstore/crm-server/internal/domain"
	"github.com/azstore/crm-server/internal/identity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository implements identity.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const accountColumns = `id, email, password, role, first_name, last_name, phone,
	street_address, city, province, postal_code, country,
	preferred_language, dietary_preferences,
	loyalty_points, total_purchases, last_purchase_date,
	email_notifications, sms_notifications, push_notifications,
	is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID,
		&c.Email,
		&c.Password,
		&c.Role,
		&c.FirstName,
		&c.LastName,
		&c.Phone,
		&c.StreetAddress,
		&c.City,
		&c.Province,
		&c.PostalCode,
		&c.Country,
		&c.PreferredLanguage,
		&c.DietaryPreferences,
		&c.LoyaltyPoints,
		&c.TotalPurchases,
		&c.LastPurchaseDate,
		&c.EmailNotifications,
		&c.SMSNotifications,
		&c.PushNotifications,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCustomer inserts a new customer account. A duplicate email maps to
// ErrEmailExists.
func (r *Repository) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	query := `
		INSERT INTO customers (email, password, role, first_name, last_name, phone,
			preferred_language, email_notifications, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		c.Email,
		c.Password,
		c.Role,
		c.FirstName,
		c.LastName,
		c.Phone,
		c.PreferredLanguage,
		c.EmailNotifications,
		c.IsActive,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return identity.ErrEmailExists
		}
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

// GetCustomerByID retrieves a customer account by ID.
func (r *Repository) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	query := `SELECT ` + accountColumns + ` FROM customers WHERE id = $1`

	c, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// GetCustomerByEmail retrieves a customer account by email.
func (r *Repository) GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	query := `SELECT ` + accountColumns + ` FROM customers WHERE email = $1`

	c, err := scanAccount(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer by email: %w", err)
	}
	return c, nil
}

// SaveRefreshToken stores a refresh token hash.
func (r *Repository) SaveRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (customer_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, token.CustomerID, token.TokenHash, token.ExpiresAt).
		Scan(&token.ID, &token.CreatedAt)

	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken retrieves a refresh token by its hash.
func (r *Repository) GetRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, customer_id, token_hash, expires_at, created_at
		FROM refresh_tokens WHERE token_hash = $1
	`
	var token domain.RefreshToken
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.CustomerID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrInvalidToken
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &token, nil
}

// DeleteRefreshToken removes a refresh token by its hash.
func (r *Repository) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return identity.ErrInvalidToken
	}
	return nil
}

// DeleteCustomerRefreshTokens removes all of a customer's refresh tokens.
func (r *Repository) DeleteCustomerRefreshTokens(ctx context.Context, customerID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE customer_id = $1`, customerID); err != nil {
		return fmt.Errorf("delete customer refresh tokens: %w", err)
	}
	return nil
}
