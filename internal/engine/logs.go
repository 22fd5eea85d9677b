package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"maestro/internal/domain"
	"maestro/internal/engine/auth"
	"maestro/internal/repo"
)

type AddEventOptions struct {
	InteractionID string
	ActorID       string
	Type          string
	Text          string
	Attachment    string
	Metadata      map[string]any
}

// AddEvent appends a note, file or milestone to the interaction log. Status
// changes are only written by the engine itself.
func (e Engine) AddEvent(ctx context.Context, opts AddEventOptions) (domain.InteractionEvent, error) {
	if opts.Type == "" {
		opts.Type = domain.EventNote
	}
	switch opts.Type {
	case domain.EventNote, domain.EventFile, domain.EventMilestone:
	case domain.EventStatusChange:
		return domain.InteractionEvent{}, invalid("event_type", "status_change events are recorded automatically")
	default:
		return domain.InteractionEvent{}, invalid("event_type", "unknown event type %q", opts.Type)
	}
	if strings.TrimSpace(opts.Text) == "" && opts.Attachment == "" {
		return domain.InteractionEvent{}, invalid("text", "text or attachment is required")
	}
	s, err := e.begin(ctx, opts.InteractionID, opts.ActorID)
	if err != nil {
		return domain.InteractionEvent{}, err
	}
	defer s.tx.Rollback()
	if err := e.reloadLinks(ctx, s); err != nil {
		return domain.InteractionEvent{}, err
	}
	if !auth.CanView(s.it, s.links, s.actor) {
		return domain.InteractionEvent{}, repo.ErrNotFound
	}
	ev := domain.InteractionEvent{
		ID:            uuid.NewString(),
		InteractionID: s.it.ID,
		ActorID:       s.actor.ID,
		Type:          opts.Type,
		Text:          opts.Text,
		Attachment:    opts.Attachment,
		Metadata:      opts.Metadata,
		CreatedAt:     e.stamp(),
	}
	if err := e.Repo.InsertEventTx(ctx, s.tx, ev); err != nil {
		return domain.InteractionEvent{}, err
	}
	if err := s.tx.Commit(); err != nil {
		return domain.InteractionEvent{}, err
	}
	return ev, nil
}

func (e Engine) ListEvents(ctx context.Context, interactionID, actorID, eventType string) ([]domain.InteractionEvent, error) {
	if err := e.ensureVisible(ctx, interactionID, actorID); err != nil {
		return nil, err
	}
	return e.Repo.ListEvents(ctx, interactionID, eventType)
}

type AddReportOptions struct {
	InteractionID string
	ActorID       string
	Summary       string
	Highlights    []string
	Audience      string
	Feedback      string
	MediaLink     string
	Attachment    string
}

// AddReport attaches a project report. Only managers write reports.
func (e Engine) AddReport(ctx context.Context, opts AddReportOptions) (domain.ProjectReport, error) {
	if strings.TrimSpace(opts.Summary) == "" {
		return domain.ProjectReport{}, invalid("summary", "is required")
	}
	if err := validateMediaLink(opts.MediaLink); err != nil {
		return domain.ProjectReport{}, err
	}
	s, err := e.begin(ctx, opts.InteractionID, opts.ActorID)
	if err != nil {
		return domain.ProjectReport{}, err
	}
	defer s.tx.Rollback()
	if err := auth.RequireManage(s.it, s.actor); err != nil {
		return domain.ProjectReport{}, err
	}
	rep := domain.ProjectReport{
		ID:            uuid.NewString(),
		InteractionID: s.it.ID,
		AuthorID:      s.actor.ID,
		Summary:       strings.TrimSpace(opts.Summary),
		Highlights:    opts.Highlights,
		Audience:      opts.Audience,
		Feedback:      opts.Feedback,
		MediaLink:     opts.MediaLink,
		Attachment:    opts.Attachment,
		CreatedAt:     e.stamp(),
	}
	if err := e.Repo.InsertReportTx(ctx, s.tx, rep); err != nil {
		return domain.ProjectReport{}, err
	}
	if err := s.tx.Commit(); err != nil {
		return domain.ProjectReport{}, err
	}
	return rep, nil
}

func (e Engine) ListReports(ctx context.Context, interactionID, actorID string) ([]domain.ProjectReport, error) {
	if err := e.ensureVisible(ctx, interactionID, actorID); err != nil {
		return nil, err
	}
	return e.Repo.ListReports(ctx, interactionID)
}

func (e Engine) ensureVisible(ctx context.Context, interactionID, actorID string) error {
	actor, err := e.Auth.Actor(ctx, actorID)
	if err != nil {
		return err
	}
	it, err := e.Repo.GetInteraction(ctx, interactionID)
	if err != nil {
		return err
	}
	links, err := e.Repo.ListLinks(ctx, interactionID)
	if err != nil {
		return err
	}
	if !auth.CanView(it, links, actor) {
		return repo.ErrNotFound
	}
	return nil
}
