package domain

import "time"

// Role represents the access level of an account.
type Role string

// Roles, ordered by privilege.
const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleCustomer: 1,
	RoleStaff:    2,
	RoleAdmin:    3,
}

// HasPermission reports whether the role grants at least the given role's access.
func (r Role) HasPermission(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// IsStaff reports whether the role is a staff-level role.
func (r Role) IsStaff() bool {
	return r.HasPermission(RoleStaff)
}

// Customer represents a customer account with profile and loyalty data.
type Customer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Password  string `json:"-"`
	Role      Role   `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`

	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	Province      string `json:"province"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`

	PreferredLanguage  string `json:"preferred_language"`
	DietaryPreferences string `json:"dietary_preferences"`

	LoyaltyPoints    int        `json:"loyalty_points"`
	TotalPurchases   float64    `json:"total_purchases"`
	LastPurchaseDate *time.Time `json:"last_purchase_date,omitempty"`

	EmailNotifications bool `json:"email_notifications"`
	SMSNotifications   bool `json:"sms_notifications"`
	PushNotifications  bool `json:"push_notifications"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the customer's display name.
func (c *Customer) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// RefreshToken represents a stored refresh token for session renewal.
type RefreshToken struct {
	ID         string
	CustomerID string
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}
