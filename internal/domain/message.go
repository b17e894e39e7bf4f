package domain

import "time"

// MessageThread is a support conversation between one customer and staff.
type MessageThread struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	Subject     string    `json:"subject"`
	IsClosed    bool      `json:"is_closed"`
	UnreadCount int       `json:"unread_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message is a single message within a thread. IsStaffReply is derived from
// the sender's role at creation time, never supplied by the client.
type Message struct {
	ID           string    `json:"id"`
	ThreadID     string    `json:"thread_id"`
	SenderID     string    `json:"sender_id"`
	Body         string    `json:"body"`
	IsRead       bool      `json:"is_read"`
	IsStaffReply bool      `json:"is_staff_reply"`
	CreatedAt    time.Time `json:"created_at"`
}
