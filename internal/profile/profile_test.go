package profile_test

import (
	"context"
	"testing"

	"maestro/internal/db"
	"maestro/internal/domain"
	"maestro/internal/migrate"
	"maestro/internal/profile"
	"maestro/internal/repo"
)

func newResolver(t *testing.T) (profile.Resolver, repo.Repo) {
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
	return profile.Resolver{Repo: r}, r
}

func TestDisplayNames(t *testing.T) {
	ctx := context.Background()
	res, r := newResolver(t)
	now := "2024-01-01T00:00:00Z"
	for _, u := range []domain.User{
		{ID: "u1", Username: "anna", FullName: "Anna Petrova", CreatedAt: now},
		{ID: "u2", Username: "boris", CreatedAt: now},
	} {
		if err := r.UpsertUser(ctx, u); err != nil {
			t.Fatalf("user: %v", err)
		}
	}
	if err := r.UpsertAgentProfile(ctx, domain.AgentProfile{UserID: "u1", DisplayName: "Anna Agency", UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := r.UpsertVenueProfile(ctx, domain.VenueProfile{UserID: "u1", CompanyName: "Blue Hall", UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := r.UpsertPerformerProfile(ctx, domain.PerformerProfile{UserID: "u1", FullName: "Anna P.", PerformerType: domain.PerformerVocalist, VoiceType: "soprano", Instrument: "piano", UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := r.UpsertPerformerProfile(ctx, domain.PerformerProfile{UserID: "u2", FullName: "Boris K.", UpdatedAt: now}); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		user, role, want string
	}{
		{"u1", domain.RoleAgent, "Anna Agency"},
		{"u1", domain.RoleVenue, "Blue Hall"},
		{"u1", domain.RolePerformer, "Anna P. — soprano"},
		{"u2", domain.RolePerformer, "Boris K."},
		{"u2", domain.RoleVenue, "boris"},
	}
	for _, tc := range cases {
		got, err := res.DisplayName(ctx, tc.user, tc.role)
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.user, tc.role, err)
		}
		if got != tc.want {
			t.Fatalf("%s/%s: got %q want %q", tc.user, tc.role, got, tc.want)
		}
	}

	p, err := res.Resolve(ctx, "u2", domain.RoleAgent)
	if err != nil {
		t.Fatal(err)
	}
	if !p.None() {
		t.Fatalf("expected no agent profile")
	}
	if _, err := res.Resolve(ctx, "u2", "manager"); err == nil {
		t.Fatalf("expected unknown role error")
	}
	roles, err := r.ProfileRoles(ctx, "u1")
	if err != nil || len(roles) != 3 {
		t.Fatalf("profile roles = %v, %v", roles, err)
	}
}

func TestInstrumentalistSpecialization(t *testing.T) {
	p := domain.PerformerProfile{PerformerType: domain.PerformerInstrumentalist, Instrument: "cello", VoiceType: "bass"}
	if p.Specialization() != "cello" {
		t.Fatalf("specialization = %s", p.Specialization())
	}
}
