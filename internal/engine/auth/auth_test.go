package auth

import (
	"errors"
	"testing"

	"maestro/internal/domain"
)

func TestManagePredicates(t *testing.T) {
	it := domain.Interaction{ID: "it-1", CreatedBy: "creator"}
	creator := domain.User{ID: "creator"}
	admin := domain.User{ID: "admin", IsSuperuser: true}
	guest := domain.User{ID: "guest"}

	if !IsCreator(it, "creator") || IsCreator(it, "admin") || IsCreator(it, "") {
		t.Fatalf("IsCreator mismatch")
	}
	if !CanManage(it, creator) || !CanManage(it, admin) || CanManage(it, guest) {
		t.Fatalf("CanManage mismatch")
	}
	err := RequireManage(it, guest)
	var forbidden ForbiddenError
	if !errors.As(err, &forbidden) || forbidden.Action != ActionManage {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestParticipationStatus(t *testing.T) {
	it := domain.Interaction{ID: "it-1", CreatedBy: "creator"}
	links := []domain.ParticipantLink{{UserID: "perf", Status: domain.LinkPending}}

	cases := []struct {
		user domain.User
		want string
	}{
		{domain.User{ID: "creator"}, domain.LinkAccepted},
		{domain.User{ID: "root", IsSuperuser: true}, domain.LinkAccepted},
		{domain.User{ID: "perf"}, domain.LinkPending},
		{domain.User{ID: "nobody"}, ""},
	}
	for _, tc := range cases {
		if got := ParticipationStatus(it, links, tc.user); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.user.ID, got, tc.want)
		}
	}
	if CanView(it, links, domain.User{ID: "nobody"}) {
		t.Fatalf("stranger can view")
	}
	if !CanView(it, links, domain.User{ID: "perf"}) {
		t.Fatalf("participant cannot view")
	}
}
