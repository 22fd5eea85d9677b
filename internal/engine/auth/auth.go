package auth

import (
	"context"
	"errors"
	"fmt"

	"maestro/internal/domain"
	"maestro/internal/repo"
)

// ForbiddenError indicates the actor may not perform an action.
type ForbiddenError struct {
	Action string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Action)
}

// Actions checked by the engine.
const (
	ActionManage          = "interaction.manage"
	ActionView            = "interaction.view"
	ActionRespond         = "participant.respond"
	ActionRespondComplete = "participant.completion"
)

// UnknownActorError is returned when an actor id does not resolve to a user.
type UnknownActorError struct {
	ActorID string
}

func (e UnknownActorError) Error() string {
	return fmt.Sprintf("unknown actor %s", e.ActorID)
}

// Service resolves actors from the user table. The superuser flag is always
// read from storage.
type Service struct {
	Repo repo.Repo
}

func (s Service) Actor(ctx context.Context, actorID string) (domain.User, error) {
	if actorID == "" {
		return domain.User{}, errors.New("actor_id required")
	}
	u, err := s.Repo.GetUser(ctx, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, UnknownActorError{ActorID: actorID}
	}
	return u, err
}

func IsCreator(it domain.Interaction, userID string) bool {
	return userID != "" && it.CreatedBy == userID
}

// CanManage is true for the creator and for superusers.
func CanManage(it domain.Interaction, u domain.User) bool {
	return IsCreator(it, u.ID) || u.IsSuperuser
}

// ParticipationStatus is accepted for managers, otherwise the status of the
// user's first link, or empty when the user has none.
func ParticipationStatus(it domain.Interaction, links []domain.ParticipantLink, u domain.User) string {
	if CanManage(it, u) {
		return domain.LinkAccepted
	}
	if l, ok := UserLink(links, u.ID); ok {
		return l.Status
	}
	return ""
}

// UserLink returns the user's first link among links.
func UserLink(links []domain.ParticipantLink, userID string) (domain.ParticipantLink, bool) {
	for _, l := range links {
		if l.UserID == userID {
			return l, true
		}
	}
	return domain.ParticipantLink{}, false
}

// CanView is true for managers and for anyone holding a link.
func CanView(it domain.Interaction, links []domain.ParticipantLink, u domain.User) bool {
	if CanManage(it, u) {
		return true
	}
	_, ok := UserLink(links, u.ID)
	return ok
}

func RequireManage(it domain.Interaction, u domain.User) error {
	if !CanManage(it, u) {
		return ForbiddenError{Action: ActionManage}
	}
	return nil
}
