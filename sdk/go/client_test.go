package maestrosdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSendsAuthAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "k1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/v0/interactions/i-1/completion":
			json.NewEncoder(w).Encode(map[string]any{
				"started":     true,
				"interaction": map[string]any{"id": "i-1", "status": "in_progress"},
			})
		case "/v0/me/projects":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{"interaction": map[string]any{"id": "i-1"}, "link": map[string]any{"id": "l-1"}}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "k1"
	it, started, err := c.RequestCompletion(context.Background(), "i-1")
	if err != nil || !started || it.Status != "in_progress" {
		t.Fatalf("request completion: %+v %v %v", it, started, err)
	}
	projects, err := c.MyProjects(context.Background())
	if err != nil || len(projects) != 1 || projects[0].Link == nil || projects[0].Link.ID != "l-1" {
		t.Fatalf("projects: %+v %v", projects, err)
	}
}

func TestClientParsesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"precondition_failed","message":"interaction is cancelled"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).RespondCompletion(context.Background(), "l-1", "confirmed")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Code != "precondition_failed" {
		t.Fatalf("api error = %+v", apiErr)
	}
}
