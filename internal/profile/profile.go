package profile

import (
	"context"
	"errors"
	"fmt"

	"maestro/internal/domain"
	"maestro/internal/repo"
)

// Profile is the role-specific profile of a participant. At most one of the
// pointers is set and it always matches Role.
type Profile struct {
	Role      string
	Agent     *domain.AgentProfile
	Venue     *domain.VenueProfile
	Performer *domain.PerformerProfile
}

// None reports whether the user has no profile for the role.
func (p Profile) None() bool {
	return p.Agent == nil && p.Venue == nil && p.Performer == nil
}

// DisplayName returns the profile's public name, empty when there is no profile.
func (p Profile) DisplayName() string {
	switch {
	case p.Agent != nil:
		return p.Agent.DisplayName
	case p.Venue != nil:
		return p.Venue.CompanyName
	case p.Performer != nil:
		if spec := p.Performer.Specialization(); spec != "" {
			return p.Performer.FullName + " — " + spec
		}
		return p.Performer.FullName
	}
	return ""
}

type Resolver struct {
	Repo repo.Repo
}

// Resolve loads the profile matching role. A missing profile is not an error.
func (r Resolver) Resolve(ctx context.Context, userID, role string) (Profile, error) {
	p := Profile{Role: role}
	var err error
	switch role {
	case domain.RoleAgent:
		var a domain.AgentProfile
		if a, err = r.Repo.GetAgentProfile(ctx, userID); err == nil {
			p.Agent = &a
		}
	case domain.RoleVenue:
		var v domain.VenueProfile
		if v, err = r.Repo.GetVenueProfile(ctx, userID); err == nil {
			p.Venue = &v
		}
	case domain.RolePerformer:
		var pp domain.PerformerProfile
		if pp, err = r.Repo.GetPerformerProfile(ctx, userID); err == nil {
			p.Performer = &pp
		}
	default:
		return p, fmt.Errorf("unknown role %q", role)
	}
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return p, err
	}
	return p, nil
}

// DisplayName resolves the name shown for a participant, falling back to the
// account name when the user has no profile for the role.
func (r Resolver) DisplayName(ctx context.Context, userID, role string) (string, error) {
	p, err := r.Resolve(ctx, userID, role)
	if err != nil {
		return "", err
	}
	if name := p.DisplayName(); name != "" {
		return name, nil
	}
	u, err := r.Repo.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.DisplayName(), nil
}
