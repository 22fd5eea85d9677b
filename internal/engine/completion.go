package engine

import (
	"context"

	"maestro/internal/domain"
	"maestro/internal/engine/auth"
	"maestro/internal/events"
)

// RequestCompletion asks every accepted participant to confirm the
// interaction is done. Managers' own links are confirmed immediately. The
// returned bool is false when the interaction is not in progress or has no
// accepted participant; nothing changes in that case.
func (e Engine) RequestCompletion(ctx context.Context, id, actorID string) (domain.Interaction, bool, error) {
	s, err := e.begin(ctx, id, actorID)
	if err != nil {
		return domain.Interaction{}, false, err
	}
	defer s.tx.Rollback()
	if err := auth.RequireManage(s.it, s.actor); err != nil {
		return domain.Interaction{}, false, err
	}
	if err := e.reloadLinks(ctx, s); err != nil {
		return domain.Interaction{}, false, err
	}
	ids := make([]string, 0, len(s.links))
	for _, l := range s.links {
		ids = append(ids, l.UserID)
	}
	supers, err := e.Repo.SuperusersTx(ctx, s.tx, ids)
	if err != nil {
		return domain.Interaction{}, false, err
	}
	isManager := func(userID string) bool {
		return auth.IsCreator(s.it, userID) || supers[userID]
	}
	now := e.stamp()
	if !domain.StartCompletion(&s.it, s.links, isManager, now) {
		return s.it, false, nil
	}
	if err := e.saveLinks(ctx, s); err != nil {
		return domain.Interaction{}, false, err
	}
	if _, err := e.Events.Append(ctx, s.tx, s.it.ID, s.actor.ID, domain.EventMilestone, "completion requested", events.Metadata{
		"requested_at": now,
	}); err != nil {
		return domain.Interaction{}, false, err
	}
	domain.EvaluateCompletion(&s.it, s.links, now)
	it, err := e.commit(ctx, s)
	if err != nil {
		return domain.Interaction{}, false, err
	}
	return it, true, nil
}

// RespondToCompletion records the actor's confirmation or decline on one of
// their accepted links and re-evaluates consensus.
func (e Engine) RespondToCompletion(ctx context.Context, opts RespondOptions) (domain.Interaction, error) {
	if !domain.ValidCompletionDecision(opts.Decision) {
		return domain.Interaction{}, ErrInvalidDecision
	}
	s, l, err := e.beginOwnLink(ctx, opts.LinkID, opts.ActorID)
	if err != nil {
		return domain.Interaction{}, err
	}
	defer s.tx.Rollback()
	if l.Status != domain.LinkAccepted {
		return domain.Interaction{}, ErrNotAccepted
	}
	if s.it.Terminal() {
		return domain.Interaction{}, PreconditionError{Reason: "interaction is " + s.it.Status}
	}
	now := e.stamp()
	domain.ApplyCompletionDecision(&l, opts.Decision, now)
	if err := e.Repo.UpdateLinkTx(ctx, s.tx, l); err != nil {
		return domain.Interaction{}, err
	}
	if _, err := e.Events.Append(ctx, s.tx, s.it.ID, s.actor.ID, domain.EventMilestone, "completion "+opts.Decision, events.Metadata{
		"user_id":  l.UserID,
		"role":     l.Role,
		"decision": opts.Decision,
	}); err != nil {
		return domain.Interaction{}, err
	}
	if err := e.reloadLinks(ctx, s); err != nil {
		return domain.Interaction{}, err
	}
	domain.EvaluateCompletion(&s.it, s.links, now)
	return e.commit(ctx, s)
}
