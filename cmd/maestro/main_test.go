package main

import (
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"maestro/internal/domain"
	"maestro/internal/engine"
)

func TestSetEnvValueKeepsOtherEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := setEnvValue(path, "MAESTRO_LOG_LEVEL", "debug"); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := setEnvValue(path, "MAESTRO_ACTOR_ID", "u1"); err != nil {
		t.Fatalf("second write: %v", err)
	}
	env, err := godotenv.Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if env["MAESTRO_LOG_LEVEL"] != "debug" || env["MAESTRO_ACTOR_ID"] != "u1" {
		t.Fatalf("env = %v", env)
	}
}

func TestRoleFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	rf := addRoleFlags(fs)
	if err := fs.Parse([]string{"--performer", "p1,p2", "--venue", "v1"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := rf.participants(fs, false)
	if len(got) != 2 || len(got[domain.RolePerformer]) != 2 || got[domain.RoleVenue][0] != "v1" {
		t.Fatalf("partial = %v", got)
	}
	if _, ok := got[domain.RoleAgent]; ok {
		t.Fatalf("agent should be untouched: %v", got)
	}
	all := rf.participants(fs, true)
	if ids, ok := all[domain.RoleAgent]; !ok || len(ids) != 0 {
		t.Fatalf("sync-all should empty agent: %v", all)
	}
}

func TestProjectAction(t *testing.T) {
	p := engine.ProjectSummary{
		Link:                &domain.ParticipantLink{Status: domain.LinkPending},
		CompletionRequested: true,
	}
	if got := projectAction(p); got != "respond to invitation, confirm completion" {
		t.Fatalf("action = %q", got)
	}
	if got := projectAction(engine.ProjectSummary{}); got != "" {
		t.Fatalf("empty action = %q", got)
	}
}
