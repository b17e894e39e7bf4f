package domain

import "time"

// CustomerGroup represents a named set of customers used for targeting.
// Membership is many-to-many; deleting a group never deletes its members.
type CustomerGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   *string   `json:"created_by,omitempty"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CustomerNote is a free-text staff annotation on a customer.
type CustomerNote struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Note       string    `json:"note"`
	CreatedBy  *string   `json:"created_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
