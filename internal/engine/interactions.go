package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"maestro/internal/domain"
	"maestro/internal/engine/auth"
	"maestro/internal/repo"
)

// CreateOptions are parameters for creating an interaction. Participants maps
// a role to the users wanted in it; the creator is added for every role they
// hold a profile in.
type CreateOptions struct {
	ID             string
	ActorID        string
	Title          string
	Description    string
	Type           string
	StartDate      *string
	EndDate        *string
	BudgetAmount   *string
	BudgetCurrency string
	ResultNotes    string
	Participants   map[string][]string
}

func (e Engine) CreateInteraction(ctx context.Context, opts CreateOptions) (domain.Interaction, error) {
	if opts.ActorID == "" {
		return domain.Interaction{}, errors.New("actor_id required")
	}
	if opts.Type == "" {
		opts.Type = domain.TypeOneTime
	}
	if opts.BudgetCurrency == "" {
		opts.BudgetCurrency = domain.DefaultCurrency
	}
	now := e.stamp()
	it := domain.Interaction{
		ID:             opts.ID,
		Title:          strings.TrimSpace(opts.Title),
		Description:    opts.Description,
		Type:           opts.Type,
		Status:         domain.StatusDraft,
		BudgetCurrency: opts.BudgetCurrency,
		ResultNotes:    opts.ResultNotes,
		CreatedBy:      opts.ActorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	var err error
	if it.StartDate, err = normalizeDate("start_date", opts.StartDate); err != nil {
		return domain.Interaction{}, err
	}
	if it.EndDate, err = normalizeDate("end_date", opts.EndDate); err != nil {
		return domain.Interaction{}, err
	}
	if it.BudgetAmount, err = normalizeBudget(opts.BudgetAmount); err != nil {
		return domain.Interaction{}, err
	}
	if err := validateInteraction(it); err != nil {
		return domain.Interaction{}, err
	}

	tx, err := e.Repo.Begin(ctx)
	if err != nil {
		return domain.Interaction{}, err
	}
	defer tx.Rollback()

	actor, err := e.actorTx(ctx, tx, opts.ActorID)
	if err != nil {
		return domain.Interaction{}, err
	}
	if err := e.Repo.InsertInteractionTx(ctx, tx, it); err != nil {
		return domain.Interaction{}, fmt.Errorf("insert interaction: %w", err)
	}
	if _, err := e.Events.Append(ctx, tx, it.ID, actor.ID, domain.EventNote, "interaction created", nil); err != nil {
		return domain.Interaction{}, err
	}
	s := &session{tx: tx, actor: actor, it: it, before: it.Status}
	if _, err := e.syncParticipants(ctx, s, opts.Participants); err != nil {
		return domain.Interaction{}, err
	}
	if err := e.recompute(ctx, s); err != nil {
		return domain.Interaction{}, err
	}
	return e.commit(ctx, s)
}

// UpdateOptions carries the fields to change; nil leaves a field untouched.
// A non-nil Participants replaces the participant sets of every role.
type UpdateOptions struct {
	ID             string
	ActorID        string
	Title          *string
	Description    *string
	Type           *string
	StartDate      *string
	EndDate        *string
	BudgetAmount   *string
	BudgetCurrency *string
	ResultNotes    *string
	Participants   map[string][]string
}

func (e Engine) UpdateInteraction(ctx context.Context, opts UpdateOptions) (domain.Interaction, error) {
	s, err := e.begin(ctx, opts.ID, opts.ActorID)
	if err != nil {
		return domain.Interaction{}, err
	}
	defer s.tx.Rollback()
	if err := auth.RequireManage(s.it, s.actor); err != nil {
		return domain.Interaction{}, err
	}
	it := &s.it
	if opts.Title != nil {
		it.Title = strings.TrimSpace(*opts.Title)
	}
	if opts.Description != nil {
		it.Description = *opts.Description
	}
	if opts.Type != nil {
		it.Type = *opts.Type
	}
	if opts.StartDate != nil {
		if it.StartDate, err = normalizeDate("start_date", opts.StartDate); err != nil {
			return domain.Interaction{}, err
		}
	}
	if opts.EndDate != nil {
		if it.EndDate, err = normalizeDate("end_date", opts.EndDate); err != nil {
			return domain.Interaction{}, err
		}
	}
	if opts.BudgetAmount != nil {
		if it.BudgetAmount, err = normalizeBudget(opts.BudgetAmount); err != nil {
			return domain.Interaction{}, err
		}
	}
	if opts.BudgetCurrency != nil {
		it.BudgetCurrency = *opts.BudgetCurrency
	}
	if opts.ResultNotes != nil {
		it.ResultNotes = *opts.ResultNotes
	}
	if err := validateInteraction(*it); err != nil {
		return domain.Interaction{}, err
	}
	if opts.Participants != nil {
		if _, err := e.syncParticipants(ctx, s, opts.Participants); err != nil {
			return domain.Interaction{}, err
		}
	}
	if err := e.recompute(ctx, s); err != nil {
		return domain.Interaction{}, err
	}
	return e.commit(ctx, s)
}

// CancelInteraction moves a non-terminal interaction to cancelled and clears
// its completion workflow. Cancelling a cancelled interaction is a no-op.
func (e Engine) CancelInteraction(ctx context.Context, id, actorID string) (domain.Interaction, error) {
	s, err := e.begin(ctx, id, actorID)
	if err != nil {
		return domain.Interaction{}, err
	}
	defer s.tx.Rollback()
	if err := auth.RequireManage(s.it, s.actor); err != nil {
		return domain.Interaction{}, err
	}
	switch s.it.Status {
	case domain.StatusCancelled:
		return s.it, nil
	case domain.StatusCompleted:
		return domain.Interaction{}, PreconditionError{Reason: "completed interactions cannot be cancelled"}
	}
	if err := e.reloadLinks(ctx, s); err != nil {
		return domain.Interaction{}, err
	}
	s.it.Status = domain.StatusCancelled
	if err := e.resetCompletion(ctx, s); err != nil {
		return domain.Interaction{}, err
	}
	return e.commit(ctx, s)
}

// RecomputeStatus runs the status derivation pass on demand.
func (e Engine) RecomputeStatus(ctx context.Context, id, actorID string) (domain.Interaction, error) {
	s, err := e.begin(ctx, id, actorID)
	if err != nil {
		return domain.Interaction{}, err
	}
	defer s.tx.Rollback()
	if err := auth.RequireManage(s.it, s.actor); err != nil {
		return domain.Interaction{}, err
	}
	if err := e.recompute(ctx, s); err != nil {
		return domain.Interaction{}, err
	}
	return e.commit(ctx, s)
}

// Participant is a link together with the name shown for it.
type Participant struct {
	domain.ParticipantLink
	DisplayName string `json:"display_name"`
}

// Detail is the view of one interaction for one user.
type Detail struct {
	Interaction         domain.Interaction       `json:"interaction"`
	Participants        map[string][]Participant `json:"participants"`
	IsCreator           bool                     `json:"is_creator"`
	CanManage           bool                     `json:"can_manage"`
	ParticipationStatus string                   `json:"participation_status,omitempty"`
	MyLinks             []domain.ParticipantLink `json:"my_links,omitempty"`
	CompletionActive    bool                     `json:"completion_active"`
	CompletionPending   []Participant            `json:"completion_pending,omitempty"`
	CompletionDeclined  []Participant            `json:"completion_declined,omitempty"`
}

// GetInteraction returns the detail view. Interactions the user may not see
// are reported as not found.
func (e Engine) GetInteraction(ctx context.Context, id, actorID string) (Detail, error) {
	actor, err := e.Auth.Actor(ctx, actorID)
	if err != nil {
		return Detail{}, err
	}
	it, err := e.Repo.GetInteraction(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	links, err := e.Repo.ListLinks(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !auth.CanView(it, links, actor) {
		return Detail{}, repo.ErrNotFound
	}
	d := Detail{
		Interaction:         it,
		Participants:        map[string][]Participant{},
		IsCreator:           auth.IsCreator(it, actor.ID),
		CanManage:           auth.CanManage(it, actor),
		ParticipationStatus: auth.ParticipationStatus(it, links, actor),
		CompletionActive:    domain.CompletionActive(links),
	}
	for _, role := range domain.Roles {
		d.Participants[role] = []Participant{}
	}
	for _, l := range links {
		name, err := e.Profiles.DisplayName(ctx, l.UserID, l.Role)
		if err != nil {
			return Detail{}, fmt.Errorf("resolve participant %s: %w", l.UserID, err)
		}
		p := Participant{ParticipantLink: l, DisplayName: name}
		d.Participants[l.Role] = append(d.Participants[l.Role], p)
		if l.UserID == actor.ID {
			d.MyLinks = append(d.MyLinks, l)
		}
		if l.Status != domain.LinkAccepted {
			continue
		}
		switch l.CompletionStatus {
		case domain.CompletionPending:
			d.CompletionPending = append(d.CompletionPending, p)
		case domain.CompletionDeclined:
			d.CompletionDeclined = append(d.CompletionDeclined, p)
		}
	}
	return d, nil
}

// ListInteractions returns interactions visible to the actor, every
// interaction for superusers.
func (e Engine) ListInteractions(ctx context.Context, actorID, status string) ([]domain.Interaction, error) {
	actor, err := e.Auth.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	f := repo.InteractionFilter{Status: status}
	if !actor.IsSuperuser {
		f.VisibleTo = actor.ID
	}
	return e.Repo.ListInteractions(ctx, f)
}

// ProjectSummary is one row of a user's project list.
type ProjectSummary struct {
	Interaction         domain.Interaction      `json:"interaction"`
	ParticipationStatus string                  `json:"participation_status,omitempty"`
	Link                *domain.ParticipantLink `json:"link,omitempty"`
	CompletionStatus    string                  `json:"completion_status,omitempty"`
	CompletionRequested bool                    `json:"completion_requested"`
	CompletionDeclined  bool                    `json:"completion_declined"`
	CompletionActive    bool                    `json:"completion_active"`
}

// MyProjects lists the interactions the actor created or takes part in, with
// what each one expects from them.
func (e Engine) MyProjects(ctx context.Context, actorID string) ([]ProjectSummary, error) {
	actor, err := e.Auth.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	list, err := e.Repo.ListInteractions(ctx, repo.InteractionFilter{VisibleTo: actor.ID})
	if err != nil {
		return nil, err
	}
	res := make([]ProjectSummary, 0, len(list))
	for _, it := range list {
		links, err := e.Repo.ListLinks(ctx, it.ID)
		if err != nil {
			return nil, err
		}
		sum := ProjectSummary{
			Interaction:         it,
			ParticipationStatus: auth.ParticipationStatus(it, links, actor),
			CompletionActive:    domain.CompletionActive(links),
		}
		if !auth.IsCreator(it, actor.ID) {
			if l, ok := auth.UserLink(links, actor.ID); ok {
				sum.Link = &l
				sum.CompletionStatus = l.CompletionStatus
				sum.CompletionRequested = l.Status == domain.LinkAccepted && l.CompletionStatus == domain.CompletionPending
				sum.CompletionDeclined = l.CompletionStatus == domain.CompletionDeclined
			}
		}
		res = append(res, sum)
	}
	return res, nil
}

// Participants lists the links of one role, only accepted ones when
// acceptedOnly is set. An empty role lists every role.
func (e Engine) Participants(ctx context.Context, id, actorID, role string, acceptedOnly bool) ([]Participant, error) {
	if role != "" {
		if err := validateRole(role); err != nil {
			return nil, err
		}
	}
	if err := e.ensureVisible(ctx, id, actorID); err != nil {
		return nil, err
	}
	links, err := e.Repo.ListLinks(ctx, id)
	if err != nil {
		return nil, err
	}
	if acceptedOnly {
		links = domain.AcceptedLinks(links)
	}
	res := []Participant{}
	for _, l := range links {
		if role != "" && l.Role != role {
			continue
		}
		name, err := e.Profiles.DisplayName(ctx, l.UserID, l.Role)
		if err != nil {
			return nil, fmt.Errorf("resolve participant %s: %w", l.UserID, err)
		}
		res = append(res, Participant{ParticipantLink: l, DisplayName: name})
	}
	return res, nil
}
