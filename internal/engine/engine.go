package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"maestro/internal/config"
	"maestro/internal/domain"
	"maestro/internal/engine/auth"
	"maestro/internal/events"
	"maestro/internal/notify"
	"maestro/internal/profile"
	"maestro/internal/repo"
)

type Engine struct {
	DB       *sqlx.DB
	Repo     repo.Repo
	Events   events.Writer
	Auth     auth.Service
	Profiles profile.Resolver
	Notifier notify.Notifier
	Config   *config.Config
	Log      logrus.FieldLogger
	Now      func() time.Time
}

func New(db *sqlx.DB, cfg *config.Config, log logrus.FieldLogger) Engine {
	r := repo.Repo{DB: db}
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return Engine{
		DB:       db,
		Repo:     r,
		Events:   events.Writer{Repo: r},
		Auth:     auth.Service{Repo: r},
		Profiles: profile.Resolver{Repo: r},
		Notifier: notify.Store{Repo: r, Window: cfg.Notifications.DedupeWindow},
		Config:   cfg,
		Log:      log,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() logrus.FieldLogger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

// session is one command running against a locked interaction.
type session struct {
	tx     *sqlx.Tx
	actor  domain.User
	it     domain.Interaction
	before string
	links  []domain.ParticipantLink
	outbox []notify.Message
}

// begin opens a transaction, locks the interaction row and resolves the actor.
func (e Engine) begin(ctx context.Context, interactionID, actorID string) (*session, error) {
	if actorID == "" {
		return nil, errors.New("actor_id required")
	}
	tx, err := e.Repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	s := &session{tx: tx}
	if err := e.Repo.LockInteractionTx(ctx, tx, interactionID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if s.it, err = e.Repo.GetInteractionTx(ctx, tx, interactionID); err != nil {
		tx.Rollback()
		return nil, err
	}
	s.before = s.it.Status
	if s.actor, err = e.actorTx(ctx, tx, actorID); err != nil {
		tx.Rollback()
		return nil, err
	}
	return s, nil
}

func (e Engine) actorTx(ctx context.Context, tx *sqlx.Tx, actorID string) (domain.User, error) {
	u, err := e.Repo.GetUserTx(ctx, tx, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, auth.UnknownActorError{ActorID: actorID}
	}
	return u, err
}

// reloadLinks re-reads the persisted links of the interaction.
func (e Engine) reloadLinks(ctx context.Context, s *session) error {
	links, err := e.Repo.ListLinksTx(ctx, s.tx, s.it.ID)
	if err != nil {
		return fmt.Errorf("load participants: %w", err)
	}
	s.links = links
	return nil
}

// recompute derives the aggregate status from the persisted links and drops
// the completion workflow when the interaction falls back to draft or
// proposal_sent.
func (e Engine) recompute(ctx context.Context, s *session) error {
	if err := e.reloadLinks(ctx, s); err != nil {
		return err
	}
	s.it.Status = domain.DeriveStatus(s.it.Status, s.links)
	if domain.NeedsCompletionReset(s.it.Status) {
		return e.resetCompletion(ctx, s)
	}
	return nil
}

func (e Engine) resetCompletion(ctx context.Context, s *session) error {
	for _, i := range domain.ResetCompletion(&s.it, s.links) {
		if err := e.Repo.UpdateLinkTx(ctx, s.tx, s.links[i]); err != nil {
			return fmt.Errorf("reset completion of %s: %w", s.links[i].ID, err)
		}
	}
	return nil
}

func (e Engine) saveLinks(ctx context.Context, s *session) error {
	for _, l := range s.links {
		if err := e.Repo.UpdateLinkTx(ctx, s.tx, l); err != nil {
			return fmt.Errorf("update participant %s: %w", l.ID, err)
		}
	}
	return nil
}

// commit persists the interaction, logs a status move, commits, then hands
// queued notifications to the notifier.
func (e Engine) commit(ctx context.Context, s *session) (domain.Interaction, error) {
	s.it.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateInteractionTx(ctx, s.tx, s.it); err != nil {
		return domain.Interaction{}, fmt.Errorf("update interaction: %w", err)
	}
	if s.it.Status != s.before {
		if err := e.Events.StatusChange(ctx, s.tx, s.it.ID, s.actor.ID, s.before, s.it.Status, nil); err != nil {
			return domain.Interaction{}, err
		}
		e.queueStatusNotifications(s)
	}
	if err := s.tx.Commit(); err != nil {
		return domain.Interaction{}, err
	}
	if s.it.Status != s.before {
		e.log().WithFields(logrus.Fields{
			"interaction_id": s.it.ID,
			"actor_id":       s.actor.ID,
			"from":           s.before,
			"to":             s.it.Status,
		}).Info("interaction status changed")
	}
	e.deliver(ctx, s.outbox)
	return s.it, nil
}

func (e Engine) queueStatusNotifications(s *session) {
	ctx := map[string]any{
		"interaction_id": s.it.ID,
		"title":          s.it.Title,
		"from_status":    s.before,
		"to_status":      s.it.Status,
		"url":            interactionURL(s.it.ID),
	}
	for _, l := range domain.AcceptedLinks(s.links) {
		if l.UserID == s.actor.ID {
			continue
		}
		s.outbox = append(s.outbox, notify.Message{
			UserID:        l.UserID,
			Kind:          notify.KindStatusChange,
			Title:         "Project status changed",
			Message:       fmt.Sprintf("%q is now %s", s.it.Title, s.it.Status),
			Context:       ctx,
			CorrelationID: s.it.ID,
		})
	}
	if s.it.Status != domain.StatusCompleted {
		return
	}
	for _, l := range domain.AcceptedLinks(s.links) {
		s.outbox = append(s.outbox, notify.Message{
			UserID:        l.UserID,
			Kind:          notify.KindCompletion,
			Title:         "Project completed",
			Message:       fmt.Sprintf("All participants confirmed completion of %q", s.it.Title),
			Context:       ctx,
			CorrelationID: s.it.ID,
		})
	}
}

func (e Engine) queueInvitation(s *session, l domain.ParticipantLink) {
	if l.Status != domain.LinkPending || l.UserID == s.actor.ID {
		return
	}
	s.outbox = append(s.outbox, notify.Message{
		UserID:  l.UserID,
		Kind:    notify.KindInvitation,
		Title:   "New project invitation",
		Message: fmt.Sprintf("%s invited you to %q as %s", s.actor.DisplayName(), s.it.Title, l.Role),
		Context: map[string]any{
			"interaction_id": s.it.ID,
			"title":          s.it.Title,
			"description":    truncate(s.it.Description, 200),
			"link_id":        l.ID,
			"role":           l.Role,
			"inviter":        s.actor.DisplayName(),
			"url":            interactionURL(s.it.ID),
		},
		CorrelationID: l.ID,
	})
}

// deliver never fails the caller: state has already been committed.
func (e Engine) deliver(ctx context.Context, msgs []notify.Message) {
	if e.Notifier == nil {
		return
	}
	for _, m := range msgs {
		if err := e.Notifier.Notify(ctx, m); err != nil {
			e.log().WithError(err).WithFields(logrus.Fields{
				"user_id": m.UserID,
				"kind":    m.Kind,
				"ref":     m.CorrelationID,
			}).Warn("notification failed")
		}
	}
}

func interactionURL(id string) string {
	return "/interactions/" + id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
