package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"maestro/internal/domain"
	"maestro/internal/repo"
)

const (
	KindInvitation   = "invitation"
	KindStatusChange = "status_change"
	KindCompletion   = "completion"
)

const DefaultDedupeWindow = time.Hour

// Message is one notification addressed to one user. CorrelationID names the
// object the notification is about.
type Message struct {
	UserID        string
	Kind          string
	Title         string
	Message       string
	Context       map[string]any
	CorrelationID string
}

// Notifier delivers notifications. Callers treat failures as best effort.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// Store records notifications in the outbox table for the dispatcher. A
// message repeating the same user, kind and correlation id as one delivered
// within Window is dropped.
type Store struct {
	Repo   repo.Repo
	Window time.Duration
	Now    func() time.Time
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Store) Notify(ctx context.Context, m Message) error {
	if m.UserID == "" {
		return errors.New("notification user required")
	}
	if m.Kind == "" {
		return errors.New("notification kind required")
	}
	now := s.now().UTC()
	window := s.Window
	if window == 0 {
		window = DefaultDedupeWindow
	}
	if window > 0 {
		dup, err := s.Repo.NotificationExistsSince(ctx, m.UserID, m.Kind, m.CorrelationID, now.Add(-window).Format(time.RFC3339))
		if err != nil {
			return err
		}
		if dup {
			return nil
		}
	}
	return s.Repo.InsertNotification(ctx, domain.Notification{
		ID:            uuid.NewString(),
		UserID:        m.UserID,
		Kind:          m.Kind,
		Title:         m.Title,
		Message:       m.Message,
		Context:       m.Context,
		CorrelationID: m.CorrelationID,
		CreatedAt:     now.Format(time.RFC3339),
	})
}
