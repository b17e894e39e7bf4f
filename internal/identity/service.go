package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/azstore/crm-server/internal/domain"
	"github.com/azstore/crm-server/internal/pkg/ctxlog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// TokenPair holds an access/refresh token pair issued on login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Authenticator issues and validates session tokens.
type Authenticator interface {
	GenerateTokens(ctx context.Context, customer *domain.Customer) (*TokenPair, error)
	ValidateAccessToken(ctx context.Context, token string) (string, domain.Role, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
	Type() string
}

// CustomerCreatedHandler is notified after a successful registration.
// Implemented by the notifications service to send the welcome message.
type CustomerCreatedHandler interface {
	OnCustomerCreated(ctx context.Context, customer *domain.Customer) error
}

// RegisterInput represents registration input.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// LoginInput represents login input.
type LoginInput struct {
	Email    string
	Password string
}

// LimiterSettings configures the per-email login rate limit.
type LimiterSettings struct {
	PerMinute int
	Burst     int
}

// Service implements account and session management.
type Service struct {
	repo      Repository
	auth      Authenticator
	onCreated CustomerCreatedHandler

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	limit     rate.Limit
	burst     int
}

// NewService creates a new identity service. handler may be nil.
func NewService(repo Repository, auth Authenticator, handler CustomerCreatedHandler, limits LimiterSettings) *Service {
	if limits.PerMinute <= 0 {
		limits.PerMinute = 10
	}
	if limits.Burst <= 0 {
		limits.Burst = limits.PerMinute
	}
	return &Service{
		repo:      repo,
		auth:      auth,
		onCreated: handler,
		limiters:  make(map[string]*rate.Limiter),
		limit:     rate.Limit(float64(limits.PerMinute) / 60.0),
		burst:     limits.Burst,
	}
}

func (s *Service) loginLimiter(email string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	l, ok := s.limiters[email]
	if !ok {
		l = rate.NewLimiter(s.limit, s.burst)
		s.limiters[email] = l
	}
	return l
}

// Register creates a new customer account. The created handler runs after the
// account is stored; its failure is logged but never fails the registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	_, err := s.repo.GetCustomerByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailExists
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	customer := &domain.Customer{
		Email:              email,
		Password:           string(hash),
		Role:               domain.RoleCustomer,
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Phone:              in.Phone,
		PreferredLanguage:  "en",
		EmailNotifications: true,
		IsActive:           true,
	}

	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}

	if s.onCreated != nil {
		if err := s.onCreated.OnCustomerCreated(ctx, customer); err != nil {
			ctxlog.FromContext(ctx).Warn("customer created handler failed",
				"customer_id", customer.ID, "error", err)
		}
	}

	return customer, nil
}

// Login verifies credentials and issues a token pair. Attempts are rate
// limited per email to slow down credential stuffing.
func (s *Service) Login(ctx context.Context, in LoginInput) (*domain.Customer, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if !s.loginLimiter(email).Allow() {
		return nil, nil, ErrTooManyAttempts
	}

	customer, err := s.repo.GetCustomerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("get customer: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(customer.Password), []byte(in.Password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !customer.IsActive {
		return nil, nil, ErrAccountDisabled
	}

	tokens, err := s.auth.GenerateTokens(ctx, customer)
	if err != nil {
		return nil, nil, fmt.Errorf("generate tokens: %w", err)
	}

	return customer, tokens, nil
}

// RefreshTokens exchanges a valid refresh token for a new pair.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.auth.RefreshTokens(ctx, refreshToken)
}

// Logout revokes the given refresh token.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	return s.auth.RevokeRefreshToken(ctx, refreshToken)
}

// GetCustomerByID returns a customer by ID.
func (s *Service) GetCustomerByID(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.GetCustomerByID(ctx, id)
}

// ValidateToken validates an access token and returns the account identity.
// Implements the auth middleware's TokenValidator contract.
func (s *Service) ValidateToken(ctx context.Context, token string) (string, domain.Role, error) {
	return s.auth.ValidateAccessToken(ctx, token)
}
