package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"maestro/internal/db"
	"maestro/internal/domain"
	"maestro/internal/migrate"
	"maestro/internal/notify"
	"maestro/internal/repo"
)

type testEnv struct {
	Repo repo.Repo
	Ctx  context.Context
	Now  time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	env := &testEnv{Repo: repo.Repo{DB: conn}, Ctx: context.Background(), Now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	if err := env.Repo.UpsertUser(env.Ctx, domain.User{ID: "u1", Username: "anna", CreatedAt: "2024-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("user: %v", err)
	}
	return env
}

func (e *testEnv) store() notify.Store {
	return notify.Store{Repo: e.Repo, Now: func() time.Time { return e.Now }}
}

func (e *testEnv) count(t *testing.T) int {
	t.Helper()
	list, err := e.Repo.ListNotifications(e.Ctx, repo.NotificationFilter{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	return len(list)
}

func TestStoreDedupesWithinWindow(t *testing.T) {
	env := newTestEnv(t)
	msg := notify.Message{UserID: "u1", Kind: notify.KindInvitation, Title: "Invite", Message: "join", CorrelationID: "link-1"}
	if err := env.store().Notify(env.Ctx, msg); err != nil {
		t.Fatalf("notify: %v", err)
	}
	list, err := env.Repo.ListNotifications(env.Ctx, repo.NotificationFilter{UserID: "u1"})
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
	if err := env.Repo.MarkNotificationSent(env.Ctx, list[0].ID, env.Now.Format(time.RFC3339)); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	env.Now = env.Now.Add(30 * time.Minute)
	if err := env.store().Notify(env.Ctx, msg); err != nil {
		t.Fatalf("notify dup: %v", err)
	}
	if n := env.count(t); n != 1 {
		t.Fatalf("duplicate of a delivered notification stored: %d", n)
	}
	other := msg
	other.CorrelationID = "link-2"
	if err := env.store().Notify(env.Ctx, other); err != nil {
		t.Fatalf("notify other: %v", err)
	}
	if n := env.count(t); n != 2 {
		t.Fatalf("expected 2 notifications, got %d", n)
	}

	env.Now = env.Now.Add(2 * time.Hour)
	if err := env.store().Notify(env.Ctx, msg); err != nil {
		t.Fatalf("notify after window: %v", err)
	}
	if n := env.count(t); n != 3 {
		t.Fatalf("expected 3 notifications after window, got %d", n)
	}
}

func TestStoreQueuesAgainWhileUndelivered(t *testing.T) {
	env := newTestEnv(t)
	msg := notify.Message{UserID: "u1", Kind: notify.KindStatusChange, Title: "Status", Message: "in progress", CorrelationID: "it-1"}
	for i := 0; i < 2; i++ {
		if err := env.store().Notify(env.Ctx, msg); err != nil {
			t.Fatalf("notify %d: %v", i, err)
		}
		env.Now = env.Now.Add(time.Minute)
	}
	if n := env.count(t); n != 2 {
		t.Fatalf("undelivered notifications must not suppress new ones, got %d", n)
	}
}

func TestStoreRejectsIncompleteMessage(t *testing.T) {
	env := newTestEnv(t)
	if err := env.store().Notify(env.Ctx, notify.Message{Kind: notify.KindCompletion}); err == nil {
		t.Fatalf("expected missing user error")
	}
}

func TestDispatcherDeliversAndMarksSent(t *testing.T) {
	env := newTestEnv(t)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("X-Maestro-Secret") != "s3cret" {
			t.Errorf("missing secret header")
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body["kind"] != notify.KindCompletion {
			t.Errorf("kind = %v", body["kind"])
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := env.store().Notify(env.Ctx, notify.Message{UserID: "u1", Kind: notify.KindCompletion, Title: "Done", Message: "done", CorrelationID: "it-1"}); err != nil {
		t.Fatal(err)
	}
	d := &notify.Dispatcher{Repo: env.Repo, URL: srv.URL, Secret: "s3cret"}
	n, err := d.RunOnce(env.Ctx)
	if err != nil || n != 1 {
		t.Fatalf("run once: n=%d err=%v", n, err)
	}
	n, err = d.RunOnce(env.Ctx)
	if err != nil || n != 0 {
		t.Fatalf("second run: n=%d err=%v", n, err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("hits = %d", hits)
	}
	list, _ := env.Repo.ListNotifications(env.Ctx, repo.NotificationFilter{UserID: "u1"})
	if len(list) != 1 || !list[0].IsSent || list[0].SentAt == nil {
		t.Fatalf("notification not marked sent: %+v", list)
	}
}

func TestDispatcherKeepsFailedDeliveries(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := env.store().Notify(env.Ctx, notify.Message{UserID: "u1", Kind: notify.KindStatusChange, Title: "t", Message: "m", CorrelationID: "it-1"}); err != nil {
		t.Fatal(err)
	}
	d := &notify.Dispatcher{Repo: env.Repo, URL: srv.URL}
	if _, err := d.RunOnce(env.Ctx); err == nil {
		t.Fatalf("expected delivery error")
	}
	unsent, _ := env.Repo.ListNotifications(env.Ctx, repo.NotificationFilter{UnsentOnly: true})
	if len(unsent) != 1 {
		t.Fatalf("expected notification to stay unsent, got %d", len(unsent))
	}
}
