package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/azstore/crm-server/internal/domain"
	"github.com/azstore/crm-server/internal/pkg/ctxlog"
)

// ThreadView is a thread with its full message history.
type ThreadView struct {
	Thread   *domain.MessageThread `json:"thread"`
	Messages []domain.Message      `json:"messages"`
}

// Service implements the two-party support inbox.
type Service struct {
	repo Repository
}

// NewService creates a new messaging service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Compose opens a new thread with its first message.
func (s *Service) Compose(ctx context.Context, customerID, subject, body string) (*ThreadView, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, ErrEmptySubject
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}

	thread := &domain.MessageThread{
		CustomerID: customerID,
		Subject:    subject,
	}
	if err := s.repo.CreateThread(ctx, thread); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ThreadID:     thread.ID,
		SenderID:     customerID,
		Body:         body,
		IsStaffReply: false,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create first message: %w", err)
	}

	return &ThreadView{Thread: thread, Messages: []domain.Message{*msg}}, nil
}

// ListMyThreads returns the customer's threads with unread staff-reply counts.
func (s *Service) ListMyThreads(ctx context.Context, customerID string) ([]domain.MessageThread, error) {
	return s.repo.ListThreads(ctx, ThreadFilter{CustomerID: &customerID})
}

// ListThreads returns threads for staff, optionally open ones only.
func (s *Service) ListThreads(ctx context.Context, openOnly bool) ([]domain.MessageThread, error) {
	return s.repo.ListThreads(ctx, ThreadFilter{OpenOnly: openOnly})
}

// ViewThread returns a thread with its messages. Viewing marks the other
// party's messages read: a customer's view marks staff replies, a staff view
// marks customer messages. Customers can only view their own threads.
func (s *Service) ViewThread(ctx context.Context, threadID, viewerID string, viewerRole domain.Role) (*ThreadView, error) {
	thread, err := s.getThreadFor(ctx, threadID, viewerID, viewerRole)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.MarkMessagesRead(ctx, threadID, !viewerRole.IsStaff()); err != nil {
		return nil, fmt.Errorf("mark messages read: %w", err)
	}

	messages, err := s.repo.ListMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}

	return &ThreadView{Thread: thread, Messages: messages}, nil
}

// Reply appends a message to a thread. The staff-reply flag comes from the
// sender's role, never from the client. Replying to a closed thread is
// rejected rather than reopening it.
func (s *Service) Reply(ctx context.Context, threadID, senderID string, senderRole domain.Role, body string) (*domain.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}

	thread, err := s.getThreadFor(ctx, threadID, senderID, senderRole)
	if err != nil {
		return nil, err
	}
	if thread.IsClosed {
		return nil, ErrThreadClosed
	}

	msg := &domain.Message{
		ThreadID:     thread.ID,
		SenderID:     senderID,
		Body:         body,
		IsStaffReply: senderRole.IsStaff(),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	if err := s.repo.TouchThread(ctx, thread.ID); err != nil {
		ctxlog.FromContext(ctx).Warn("touch thread failed", "thread_id", thread.ID, "error", err)
	}

	return msg, nil
}

// CloseThread closes a thread. Customers can only close their own.
func (s *Service) CloseThread(ctx context.Context, threadID, actorID string, actorRole domain.Role) error {
	if _, err := s.getThreadFor(ctx, threadID, actorID, actorRole); err != nil {
		return err
	}
	return s.repo.SetThreadClosed(ctx, threadID, true)
}

func (s *Service) getThreadFor(ctx context.Context, threadID, actorID string, actorRole domain.Role) (*domain.MessageThread, error) {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !actorRole.IsStaff() && thread.CustomerID != actorID {
		return nil, ErrNotThreadOwner
	}
	return thread, nil
}
