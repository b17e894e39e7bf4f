package messaging

import (
	"context"

	"github.com/azstore/crm-server/internal/domain"
)

// ThreadFilter narrows thread listings.
type ThreadFilter struct {
	CustomerID *string
	OpenOnly   bool
	Limit      int
	Offset     int
}

// Repository defines the data access contract for the support inbox.
type Repository interface {
	CreateThread(ctx context.Context, t *domain.MessageThread) error
	GetThread(ctx context.Context, id string) (*domain.MessageThread, error)
	ListThreads(ctx context.Context, filter ThreadFilter) ([]domain.MessageThread, error)
	SetThreadClosed(ctx context.Context, id string, closed bool) error
	TouchThread(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, m *domain.Message) error
	ListMessages(ctx context.Context, threadID string) ([]domain.Message, error)
	// MarkMessagesRead flags the thread's messages whose staff-reply flag
	// matches staffReplies as read.
	MarkMessagesRead(ctx context.Context, threadID string, staffReplies bool) (int64, error)
}
