package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"maestro/internal/domain"
	"maestro/internal/engine/auth"
	"maestro/internal/events"
	"maestro/internal/repo"
)

type AddParticipantOptions struct {
	InteractionID string
	ActorID       string
	UserID        string
	Role          string
}

// AddParticipant invites a user under a role. Re-adding an existing link
// resets its invitation. A manager adding themself is accepted at once.
func (e Engine) AddParticipant(ctx context.Context, opts AddParticipantOptions) (domain.ParticipantLink, error) {
	if err := validateRole(opts.Role); err != nil {
		return domain.ParticipantLink{}, err
	}
	s, err := e.begin(ctx, opts.InteractionID, opts.ActorID)
	if err != nil {
		return domain.ParticipantLink{}, err
	}
	defer s.tx.Rollback()
	if err := auth.RequireManage(s.it, s.actor); err != nil {
		return domain.ParticipantLink{}, err
	}
	l, err := e.upsertLink(ctx, s, opts.UserID, opts.Role)
	if err != nil {
		return domain.ParticipantLink{}, err
	}
	if err := e.recompute(ctx, s); err != nil {
		return domain.ParticipantLink{}, err
	}
	if _, err := e.commit(ctx, s); err != nil {
		return domain.ParticipantLink{}, err
	}
	return l, nil
}

func (e Engine) initialLinkStatus(s *session, userID string) string {
	if userID == s.actor.ID && auth.CanManage(s.it, s.actor) {
		return domain.LinkAccepted
	}
	return domain.LinkPending
}

func (e Engine) upsertLink(ctx context.Context, s *session, userID, role string) (domain.ParticipantLink, error) {
	if _, err := e.Repo.GetUserTx(ctx, s.tx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.ParticipantLink{}, invalid("user_id", "unknown user %s", userID)
		}
		return domain.ParticipantLink{}, err
	}
	now := e.stamp()
	status := e.initialLinkStatus(s, userID)
	var respondedAt *string
	if status != domain.LinkPending {
		respondedAt = &now
	}
	l, err := e.Repo.GetLinkByKeyTx(ctx, s.tx, s.it.ID, userID, role)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		l = domain.ParticipantLink{
			ID:               uuid.NewString(),
			InteractionID:    s.it.ID,
			UserID:           userID,
			Role:             role,
			Status:           status,
			InvitedBy:        s.actor.ID,
			InvitedAt:        now,
			RespondedAt:      respondedAt,
			CompletionStatus: domain.CompletionNotRequested,
		}
		if err := e.Repo.InsertLinkTx(ctx, s.tx, l); err != nil {
			return domain.ParticipantLink{}, fmt.Errorf("insert participant: %w", err)
		}
		e.queueInvitation(s, l)
	case err != nil:
		return domain.ParticipantLink{}, err
	default:
		wasPending := l.Status == domain.LinkPending
		l.Status = status
		l.InvitedBy = s.actor.ID
		l.RespondedAt = respondedAt
		if err := e.Repo.UpdateLinkTx(ctx, s.tx, l); err != nil {
			return domain.ParticipantLink{}, fmt.Errorf("update participant: %w", err)
		}
		if !wasPending {
			e.queueInvitation(s, l)
		}
	}
	return l, nil
}

type RemoveParticipantOptions struct {
	InteractionID string
	ActorID       string
	UserID        string
	// Role limits removal to one link; empty removes all of the user's links.
	Role string
}

func (e Engine) RemoveParticipant(ctx context.Context, opts RemoveParticipantOptions) (domain.Interaction, error) {
	if opts.Role != "" {
		if err := validateRole(opts.Role); err != nil {
			return domain.Interaction{}, err
		}
	}
	s, err := e.begin(ctx, opts.InteractionID, opts.ActorID)
	if err != nil {
		return domain.Interaction{}, err
	}
	defer s.tx.Rollback()
	if err := auth.RequireManage(s.it, s.actor); err != nil {
		return domain.Interaction{}, err
	}
	n, err := e.Repo.DeleteUserLinksTx(ctx, s.tx, s.it.ID, opts.UserID, opts.Role)
	if err != nil {
		return domain.Interaction{}, err
	}
	if n == 0 {
		return domain.Interaction{}, repo.ErrNotFound
	}
	if err := e.recompute(ctx, s); err != nil {
		return domain.Interaction{}, err
	}
	return e.commit(ctx, s)
}

type SyncOptions struct {
	InteractionID string
	ActorID       string
	Participants  map[string][]string
}

// SyncResult lists the links created and removed by a synchronization.
type SyncResult struct {
	Interaction domain.Interaction       `json:"interaction"`
	Added       []domain.ParticipantLink `json:"added"`
	Removed     []domain.ParticipantLink `json:"removed"`
}

// SyncParticipants replaces the participant set of every role with the
// desired one.
func (e Engine) SyncParticipants(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	s, err := e.begin(ctx, opts.InteractionID, opts.ActorID)
	if err != nil {
		return SyncResult{}, err
	}
	defer s.tx.Rollback()
	if err := auth.RequireManage(s.it, s.actor); err != nil {
		return SyncResult{}, err
	}
	res, err := e.syncParticipants(ctx, s, opts.Participants)
	if err != nil {
		return SyncResult{}, err
	}
	if err := e.recompute(ctx, s); err != nil {
		return SyncResult{}, err
	}
	if res.Interaction, err = e.commit(ctx, s); err != nil {
		return SyncResult{}, err
	}
	return res, nil
}

// syncParticipants diffs desired users against existing links per role. The
// actor is always kept in the roles they hold a profile for.
func (e Engine) syncParticipants(ctx context.Context, s *session, desired map[string][]string) (SyncResult, error) {
	var res SyncResult
	for role := range desired {
		if err := validateRole(role); err != nil {
			return res, err
		}
	}
	actorRoles, err := e.Repo.ProfileRolesTx(ctx, s.tx, s.actor.ID)
	if err != nil {
		return res, err
	}
	if err := e.reloadLinks(ctx, s); err != nil {
		return res, err
	}
	for _, role := range domain.Roles {
		want := map[string]bool{}
		for _, id := range desired[role] {
			if id != "" {
				want[id] = true
			}
		}
		for _, r := range actorRoles {
			if r == role {
				want[s.actor.ID] = true
			}
		}
		have := map[string]bool{}
		for _, l := range s.links {
			if l.Role != role {
				continue
			}
			have[l.UserID] = true
			if want[l.UserID] {
				continue
			}
			if err := e.Repo.DeleteLinkTx(ctx, s.tx, l.ID); err != nil {
				return res, fmt.Errorf("remove participant %s: %w", l.UserID, err)
			}
			res.Removed = append(res.Removed, l)
		}
		for _, id := range sortedKeys(want) {
			if have[id] {
				continue
			}
			l, err := e.upsertLink(ctx, s, id, role)
			if err != nil {
				return res, err
			}
			res.Added = append(res.Added, l)
		}
	}
	return res, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type RespondOptions struct {
	LinkID   string
	ActorID  string
	Decision string
}

// RespondToInvitation accepts or declines an invitation addressed to the
// actor. A declined link is deleted and the decline is kept in the event log.
func (e Engine) RespondToInvitation(ctx context.Context, opts RespondOptions) (domain.Interaction, error) {
	if !domain.ValidInvitationDecision(opts.Decision) {
		return domain.Interaction{}, ErrInvalidDecision
	}
	s, l, err := e.beginOwnLink(ctx, opts.LinkID, opts.ActorID)
	if err != nil {
		return domain.Interaction{}, err
	}
	defer s.tx.Rollback()
	domain.ApplyInvitationDecision(&l, opts.Decision, e.stamp())
	if opts.Decision == domain.LinkAccepted {
		if err := e.Repo.UpdateLinkTx(ctx, s.tx, l); err != nil {
			return domain.Interaction{}, err
		}
	} else {
		if _, err := e.Events.Append(ctx, s.tx, s.it.ID, s.actor.ID, domain.EventStatusChange, "invitation declined", events.Metadata{
			"user_id":      l.UserID,
			"role":         l.Role,
			"decision":     opts.Decision,
			"invited_by":   l.InvitedBy,
			"invited_at":   l.InvitedAt,
			"responded_at": *l.RespondedAt,
		}); err != nil {
			return domain.Interaction{}, err
		}
		if err := e.Repo.DeleteLinkTx(ctx, s.tx, l.ID); err != nil {
			return domain.Interaction{}, err
		}
	}
	if err := e.recompute(ctx, s); err != nil {
		return domain.Interaction{}, err
	}
	return e.commit(ctx, s)
}

// beginOwnLink locks the interaction owning a link the actor holds. Links of
// other users are reported as not found.
func (e Engine) beginOwnLink(ctx context.Context, linkID, actorID string) (*session, domain.ParticipantLink, error) {
	l, err := e.Repo.GetLink(ctx, linkID)
	if err != nil {
		return nil, domain.ParticipantLink{}, err
	}
	s, err := e.begin(ctx, l.InteractionID, actorID)
	if err != nil {
		return nil, domain.ParticipantLink{}, err
	}
	if l, err = e.Repo.GetLinkTx(ctx, s.tx, linkID); err != nil {
		s.tx.Rollback()
		return nil, domain.ParticipantLink{}, err
	}
	if l.UserID != s.actor.ID {
		s.tx.Rollback()
		return nil, domain.ParticipantLink{}, repo.ErrNotFound
	}
	return s, l, nil
}
