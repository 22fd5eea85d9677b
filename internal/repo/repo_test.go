package repo_test

import (
	"context"
	"errors"
	"testing"

	"maestro/internal/db"
	"maestro/internal/domain"
	"maestro/internal/migrate"
	"maestro/internal/repo"
)

const ts = "2024-01-01T00:00:00Z"

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	for _, u := range []domain.User{
		{ID: "u1", Username: "one", IsSuperuser: true},
		{ID: "u2", Username: "two"},
		{ID: "u3", Username: "three"},
	} {
		if err := r.UpsertUser(context.Background(), u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return r
}

func seedInteraction(t *testing.T, r repo.Repo, id, createdBy string, links ...domain.ParticipantLink) {
	t.Helper()
	ctx := context.Background()
	tx, err := r.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	it := domain.Interaction{
		ID: id, Title: id, Type: domain.TypeOneTime, Status: domain.StatusDraft,
		BudgetCurrency: domain.DefaultCurrency, CreatedBy: createdBy, CreatedAt: ts, UpdatedAt: ts,
	}
	if err := r.InsertInteractionTx(ctx, tx, it); err != nil {
		t.Fatalf("insert interaction: %v", err)
	}
	for _, l := range links {
		if err := r.InsertLinkTx(ctx, tx, l); err != nil {
			t.Fatalf("insert link: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func link(id, interactionID, userID, role string) domain.ParticipantLink {
	return domain.ParticipantLink{
		ID: id, InteractionID: interactionID, UserID: userID, Role: role,
		Status: domain.LinkPending, InvitedAt: ts, CompletionStatus: domain.CompletionNotRequested,
	}
}

func TestLinkKeyIsUnique(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedInteraction(t, r, "i1", "u1", link("l1", "i1", "u2", domain.RoleAgent))

	tx, err := r.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	if err := r.InsertLinkTx(ctx, tx, link("l2", "i1", "u2", domain.RoleAgent)); err == nil {
		t.Fatalf("duplicate (interaction, user, role) accepted")
	}
}

func TestSameUserMayHoldSeveralRoles(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedInteraction(t, r, "i1", "u1",
		link("l1", "i1", "u2", domain.RoleAgent),
		link("l2", "i1", "u2", domain.RolePerformer),
	)
	links, err := r.ListLinks(ctx, "i1")
	if err != nil || len(links) != 2 {
		t.Fatalf("links = %d %v", len(links), err)
	}

	tx, err := r.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	n, err := r.DeleteUserLinksTx(ctx, tx, "i1", "u2", domain.RolePerformer)
	if err != nil || n != 1 {
		t.Fatalf("delete one role: %d %v", n, err)
	}
	n, err = r.DeleteUserLinksTx(ctx, tx, "i1", "u2", "")
	if err != nil || n != 1 {
		t.Fatalf("delete remaining: %d %v", n, err)
	}
}

func TestListInteractionsVisibility(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedInteraction(t, r, "i1", "u1", link("l1", "i1", "u2", domain.RoleVenue))
	seedInteraction(t, r, "i2", "u3")

	cases := map[string]int{"u1": 1, "u2": 1, "u3": 1, "": 2}
	for user, want := range cases {
		list, err := r.ListInteractions(ctx, repo.InteractionFilter{VisibleTo: user})
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != want {
			t.Fatalf("visible to %q = %d, want %d", user, len(list), want)
		}
	}
	list, err := r.ListInteractions(ctx, repo.InteractionFilter{Status: domain.StatusInProgress})
	if err != nil || len(list) != 0 {
		t.Fatalf("status filter = %d %v", len(list), err)
	}
}

func TestSuperusersAndLock(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	tx, err := r.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	supers, err := r.SuperusersTx(ctx, tx, []string{"u1", "u2", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if !supers["u1"] || supers["u2"] || len(supers) != 1 {
		t.Fatalf("superusers = %v", supers)
	}
	if err := r.LockInteractionTx(ctx, tx, "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("lock missing interaction: %v", err)
	}
}

func TestEventMetadataRoundTrip(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedInteraction(t, r, "i1", "u1")
	tx, err := r.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	ev := domain.InteractionEvent{ID: "e1", InteractionID: "i1", ActorID: "u1", Type: domain.EventNote, Text: "hello", Metadata: map[string]any{"k": "v"}, CreatedAt: ts}
	if err := r.InsertEventTx(ctx, tx, ev); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	evs, err := r.ListEvents(ctx, "i1", "")
	if err != nil || len(evs) != 1 || evs[0].Metadata["k"] != "v" {
		t.Fatalf("events = %+v %v", evs, err)
	}
	none, err := r.ListEvents(ctx, "i1", domain.EventFile)
	if err != nil || len(none) != 0 {
		t.Fatalf("type filter = %+v %v", none, err)
	}
}
