package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"maestro/internal/config"
	"maestro/internal/db"
	"maestro/internal/domain"
	"maestro/internal/engine"
	"maestro/internal/logger"
	"maestro/internal/migrate"
	"maestro/internal/repo"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default(), logger.Discard())
	ctx := context.Background()
	for _, u := range []domain.User{
		{ID: "venue", Username: "venue"},
		{ID: "perf", Username: "perf"},
		{ID: "stranger", Username: "stranger"},
	} {
		if err := e.Repo.UpsertUser(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	if err := e.Repo.UpsertVenueProfile(ctx, domain.VenueProfile{UserID: "venue", CompanyName: "Blue Hall", UpdatedAt: "2024-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	if err := e.Repo.InsertAPIKey(ctx, domain.APIKey{
		ID: "key-1", UserID: "perf", Name: "ci", KeyHash: repo.HashAPIKey("perf-key"), CreatedAt: "2024-01-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("seed api key: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, AllowLegacyUserHeader: true},
		Log:      logger.Discard(),
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func bearer(t *testing.T, userID string) map[string]string {
	t.Helper()
	token, err := SignToken(testSecret, userID, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal %s: %v", string(data), err)
	}
	return v
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope %s: %v", string(data), err)
	}
	return env.Error.Code
}

func TestCompletionFlowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	venue, perf := bearer(t, "venue"), bearer(t, "perf")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/interactions", map[string]any{
		"title":        "Jazz night",
		"participants": map[string][]string{"performer": {"perf"}},
	}, venue)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	it := decode[domain.Interaction](t, data)
	if it.Status != domain.StatusProposalSent {
		t.Fatalf("status = %s", it.Status)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me/projects", nil, perf)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("projects status %d: %s", res.StatusCode, string(data))
	}
	projects := decode[projectList](t, data)
	if len(projects.Items) != 1 || projects.Items[0].Link == nil {
		t.Fatalf("projects = %s", string(data))
	}
	linkID := projects.Items[0].Link.ID

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/links/"+linkID+"/respond", map[string]any{"decision": "accepted"}, perf)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("respond status %d: %s", res.StatusCode, string(data))
	}
	if got := decode[domain.Interaction](t, data).Status; got != domain.StatusInProgress {
		t.Fatalf("status after accept = %s", got)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/interactions/"+it.ID+"/completion", nil, venue)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("request completion status %d: %s", res.StatusCode, string(data))
	}
	if started := decode[CompletionRequestResponse](t, data); !started.Started {
		t.Fatalf("completion not started: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/links/"+linkID+"/completion", map[string]any{"decision": "confirmed"}, perf)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("confirm status %d: %s", res.StatusCode, string(data))
	}
	done := decode[domain.Interaction](t, data)
	if done.Status != domain.StatusCompleted || !done.SuccessFlag {
		t.Fatalf("after confirm: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/interactions/"+it.ID+"/events?type=status_change", nil, perf)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	if evs := decode[eventList](t, data); len(evs.Items) != 3 {
		t.Fatalf("status changes = %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me/notifications", nil, perf)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("notifications status %d: %s", res.StatusCode, string(data))
	}
	if n := decode[notificationList](t, data); len(n.Items) == 0 {
		t.Fatalf("no notifications for performer")
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	venue := bearer(t, "venue")

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/interactions", nil, nil)
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "unauthorized" {
		t.Fatalf("anonymous list %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/interactions", nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "invalid_credentials" {
		t.Fatalf("bad token %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/interactions", map[string]any{"title": "Gala"}, venue)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	it := decode[domain.Interaction](t, data)

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/interactions/"+it.ID, nil, bearer(t, "stranger"))
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "not_found" {
		t.Fatalf("stranger get %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/interactions/"+it.ID, map[string]any{"title": "Mine"}, map[string]string{"X-Api-Key": "perf-key"})
	if res.StatusCode != http.StatusForbidden || errorCode(t, data) != "forbidden" {
		t.Fatalf("participant update %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/interactions", map[string]any{"title": "Bad", "budget_amount": "1.234"}, venue)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad budget %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/interactions/"+it.ID+"/participants", map[string]any{"user_id": "perf", "role": "performer"}, venue)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add participant %d: %s", res.StatusCode, string(data))
	}
	link := decode[domain.ParticipantLink](t, data)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/links/"+link.ID+"/respond", map[string]any{"decision": "maybe"}, map[string]string{LegacyUserHeader: "perf"})
	if res.StatusCode != http.StatusBadRequest || errorCode(t, data) != "invalid_decision" {
		t.Fatalf("invalid decision %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/links/"+link.ID+"/completion", map[string]any{"decision": "confirmed"}, map[string]string{LegacyUserHeader: "perf"})
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "precondition_failed" {
		t.Fatalf("completion on pending link %d: %s", res.StatusCode, string(data))
	}
}

func TestWhoAmI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"X-Api-Key": "perf-key"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	who := decode[WhoAmIResponse](t, data)
	if who.User.ID != "perf" || who.Via != "api_key" {
		t.Fatalf("whoami = %+v", who)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, bearer(t, "venue"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	if who := decode[WhoAmIResponse](t, data); len(who.Roles) != 1 || who.Roles[0] != domain.RoleVenue {
		t.Fatalf("venue roles = %+v", who.Roles)
	}
}
