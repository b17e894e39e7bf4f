package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/azstore/crm-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	customers          map[string]*domain.Customer
	createCustomerErr  error
	getCustomerByEmail func(email string) (*domain.Customer, error)
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		customers: make(map[string]*domain.Customer),
	}
}

func (m *mockRepository) CreateCustomer(_ context.Context, c *domain.Customer) error {
	if m.createCustomerErr != nil {
		return m.createCustomerErr
	}
	c.ID = "test-customer-id"
	m.customers[c.Email] = c
	return nil
}

func (m *mockRepository) GetCustomerByID(_ context.Context, id string) (*domain.Customer, error) {
	for _, c := range m.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (m *mockRepository) GetCustomerByEmail(_ context.Context, email string) (*domain.Customer, error) {
	if m.getCustomerByEmail != nil {
		return m.getCustomerByEmail(email)
	}
	if c, ok := m.customers[email]; ok {
		return c, nil
	}
	return nil, ErrCustomerNotFound
}

func (m *mockRepository) SaveRefreshToken(_ context.Context, _ *domain.RefreshToken) error {
	return nil
}

func (m *mockRepository) GetRefreshToken(_ context.Context, _ string) (*domain.RefreshToken, error) {
	return nil, ErrInvalidToken
}

func (m *mockRepository) DeleteRefreshToken(_ context.Context, _ string) error {
	return nil
}

func (m *mockRepository) DeleteCustomerRefreshTokens(_ context.Context, _ string) error {
	return nil
}

// mockAuthenticator implements Authenticator for testing.
type mockAuthenticator struct{}

func (m *mockAuthenticator) GenerateTokens(_ context.Context, _ *domain.Customer) (*TokenPair, error) {
	return &TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *mockAuthenticator) ValidateAccessToken(_ context.Context, _ string) (string, domain.Role, error) {
	return "", "", nil
}

func (m *mockAuthenticator) RefreshTokens(_ context.Context, _ string) (*TokenPair, error) {
	return &TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *mockAuthenticator) RevokeRefreshToken(_ context.Context, _ string) error {
	return nil
}

func (m *mockAuthenticator) Type() string {
	return "mock"
}

// mockCustomerCreatedHandler implements CustomerCreatedHandler for testing.
type mockCustomerCreatedHandler struct {
	called           bool
	receivedCustomer *domain.Customer
	err              error
}

func (m *mockCustomerCreatedHandler) OnCustomerCreated(_ context.Context, c *domain.Customer) error {
	m.called = true
	m.receivedCustomer = c
	return m.err
}

func defaultLimits() LimiterSettings {
	return LimiterSettings{PerMinute: 60, Burst: 10}
}

func TestRegister_CallsCustomerCreatedHandler(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	auth := &mockAuthenticator{}
	handler := &mockCustomerCreatedHandler{}

	service := NewService(repo, auth, handler, defaultLimits())

	// Act
	customer, err := service.Register(context.Background(), RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.True(t, handler.called, "handler should be called")
	assert.Equal(t, customer.ID, handler.receivedCustomer.ID)
	assert.Equal(t, customer.Email, handler.receivedCustomer.Email)
}

func TestRegister_ContinuesIfHandlerFails(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	auth := &mockAuthenticator{}
	handler := &mockCustomerCreatedHandler{err: errors.New("handler error")}

	service := NewService(repo, auth, handler, defaultLimits())

	// Act
	customer, err := service.Register(context.Background(), RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert — registration succeeds despite handler error
	require.NoError(t, err)
	assert.NotNil(t, customer)
	assert.True(t, handler.called, "handler should still be called")
}

func TestRegister_WorksWithNilHandler(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	auth := &mockAuthenticator{}

	service := NewService(repo, auth, nil, defaultLimits()) // nil handler

	// Act
	customer, err := service.Register(context.Background(), RegisterInput{
		Email:    "Test@Example.com",
		Password: "password123",
	})

	// Assert
	require.NoError(t, err)
	assert.NotNil(t, customer)
	assert.Equal(t, "test@example.com", customer.Email, "email is normalized")
	assert.Equal(t, domain.RoleCustomer, customer.Role)
	assert.True(t, customer.IsActive)
}

func TestRegister_EmailAlreadyExists(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.customers["existing@example.com"] = &domain.Customer{Email: "existing@example.com"}
	auth := &mockAuthenticator{}
	handler := &mockCustomerCreatedHandler{}

	service := NewService(repo, auth, handler, defaultLimits())

	// Act
	customer, err := service.Register(context.Background(), RegisterInput{
		Email:    "existing@example.com",
		Password: "password123",
	})

	// Assert
	assert.Nil(t, customer)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.False(t, handler.called, "handler should not be called for duplicate email")
}

func TestRegister_CreateCustomerFails(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	repo.createCustomerErr = errors.New("database error")
	auth := &mockAuthenticator{}
	handler := &mockCustomerCreatedHandler{}

	service := NewService(repo, auth, handler, defaultLimits())

	// Act
	customer, err := service.Register(context.Background(), RegisterInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert
	assert.Nil(t, customer)
	assert.Error(t, err)
	assert.False(t, handler.called, "handler should not be called if creation fails")
}

func registeredCustomer(t *testing.T, repo *mockRepository, email, password string) *domain.Customer {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	c := &domain.Customer{
		ID:       "cust-1",
		Email:    email,
		Password: string(hash),
		Role:     domain.RoleCustomer,
		IsActive: true,
	}
	repo.customers[email] = c
	return c
}

func TestLogin_Success(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	registeredCustomer(t, repo, "test@example.com", "password123")
	service := NewService(repo, &mockAuthenticator{}, nil, defaultLimits())

	// Act
	customer, tokens, err := service.Login(context.Background(), LoginInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "cust-1", customer.ID)
	require.NotNil(t, tokens)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func TestLogin_WrongPassword(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	registeredCustomer(t, repo, "test@example.com", "password123")
	service := NewService(repo, &mockAuthenticator{}, nil, defaultLimits())

	// Act
	_, _, err := service.Login(context.Background(), LoginInput{
		Email:    "test@example.com",
		Password: "not-the-password",
	})

	// Assert
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmail(t *testing.T) {
	// Arrange
	service := NewService(newMockRepository(), &mockAuthenticator{}, nil, defaultLimits())

	// Act
	_, _, err := service.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "password123",
	})

	// Assert — same error as a wrong password, no account enumeration
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_DisabledAccount(t *testing.T) {
	// Arrange
	repo := newMockRepository()
	c := registeredCustomer(t, repo, "test@example.com", "password123")
	c.IsActive = false
	service := NewService(repo, &mockAuthenticator{}, nil, defaultLimits())

	// Act
	_, _, err := service.Login(context.Background(), LoginInput{
		Email:    "test@example.com",
		Password: "password123",
	})

	// Assert
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestLogin_RateLimited(t *testing.T) {
	// Arrange — burst of 2, effectively no refill within the test
	repo := newMockRepository()
	registeredCustomer(t, repo, "test@example.com", "password123")
	service := NewService(repo, &mockAuthenticator{}, nil, LimiterSettings{PerMinute: 1, Burst: 2})

	in := LoginInput{Email: "test@example.com", Password: "not-the-password"}

	// Act
	_, _, err1 := service.Login(context.Background(), in)
	_, _, err2 := service.Login(context.Background(), in)
	_, _, err3 := service.Login(context.Background(), in)

	// Assert
	assert.ErrorIs(t, err1, ErrInvalidCredentials)
	assert.ErrorIs(t, err2, ErrInvalidCredentials)
	assert.ErrorIs(t, err3, ErrTooManyAttempts)

	// Other emails are unaffected.
	_, _, err := service.Login(context.Background(), LoginInput{
		Email:    "other@example.com",
		Password: "whatever",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
