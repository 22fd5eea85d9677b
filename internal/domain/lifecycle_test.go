package domain

import "testing"

func link(user, status, completion string) ParticipantLink {
	return ParticipantLink{UserID: user, Role: RolePerformer, Status: status, CompletionStatus: completion}
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name    string
		current string
		links   []ParticipantLink
		want    string
	}{
		{"no links", StatusProposalSent, nil, StatusDraft},
		{"pending wins", StatusInProgress, []ParticipantLink{link("a", LinkAccepted, ""), link("b", LinkPending, "")}, StatusProposalSent},
		{"accepted", StatusProposalSent, []ParticipantLink{link("a", LinkAccepted, "")}, StatusInProgress},
		{"only declined", StatusInProgress, []ParticipantLink{link("a", LinkDeclined, "")}, StatusProposalSent},
		{"completed sticky", StatusCompleted, []ParticipantLink{link("a", LinkPending, "")}, StatusCompleted},
		{"cancelled sticky without links", StatusCancelled, nil, StatusCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStatus(tc.current, tc.links)
			if got != tc.want {
				t.Fatalf("DeriveStatus = %s, want %s", got, tc.want)
			}
			if again := DeriveStatus(got, tc.links); again != got {
				t.Fatalf("not idempotent: %s then %s", got, again)
			}
		})
	}
}

func TestStartCompletion(t *testing.T) {
	it := Interaction{Status: StatusInProgress, CreatedBy: "venue"}
	links := []ParticipantLink{
		link("venue", LinkAccepted, CompletionNotRequested),
		link("perf", LinkAccepted, CompletionDeclined),
	}
	isManager := func(id string) bool { return id == it.CreatedBy }
	if !StartCompletion(&it, links, isManager, "2024-01-01T00:00:00Z") {
		t.Fatalf("expected start")
	}
	if it.CompletionRequestedAt == nil {
		t.Fatalf("requested_at not stamped")
	}
	if links[0].CompletionStatus != CompletionConfirmed || links[0].CompletionRespondedAt == nil {
		t.Fatalf("manager link not auto-confirmed: %+v", links[0])
	}
	if links[1].CompletionStatus != CompletionPending || links[1].CompletionRespondedAt != nil {
		t.Fatalf("participant link not pending: %+v", links[1])
	}
}

func TestStartCompletionPreconditions(t *testing.T) {
	draft := Interaction{Status: StatusProposalSent}
	if StartCompletion(&draft, []ParticipantLink{link("a", LinkAccepted, "")}, nil, "now") {
		t.Fatalf("started outside in_progress")
	}
	if draft.CompletionRequestedAt != nil {
		t.Fatalf("failed start must not mutate")
	}
	open := Interaction{Status: StatusInProgress}
	if StartCompletion(&open, []ParticipantLink{link("a", LinkPending, "")}, nil, "now") {
		t.Fatalf("started without accepted participants")
	}
}

func TestEvaluateCompletionConsensus(t *testing.T) {
	cases := []struct {
		name        string
		links       []ParticipantLink
		wantStatus  string
		wantSuccess bool
	}{
		{"all confirmed", []ParticipantLink{link("a", LinkAccepted, CompletionConfirmed), link("b", LinkAccepted, CompletionConfirmed)}, StatusCompleted, true},
		{"one pending", []ParticipantLink{link("a", LinkAccepted, CompletionConfirmed), link("b", LinkAccepted, CompletionPending)}, StatusInProgress, false},
		{"one declined", []ParticipantLink{link("a", LinkAccepted, CompletionConfirmed), link("b", LinkAccepted, CompletionDeclined)}, StatusInProgress, false},
		{"non accepted ignored", []ParticipantLink{link("a", LinkAccepted, CompletionConfirmed), link("b", LinkPending, CompletionDeclined)}, StatusCompleted, true},
		{"no accepted", []ParticipantLink{link("a", LinkPending, CompletionConfirmed)}, StatusInProgress, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			it := Interaction{Status: StatusInProgress}
			EvaluateCompletion(&it, tc.links, "2024-01-01T00:00:00Z")
			if it.Status != tc.wantStatus || it.SuccessFlag != tc.wantSuccess {
				t.Fatalf("got status=%s success=%v, want %s %v", it.Status, it.SuccessFlag, tc.wantStatus, tc.wantSuccess)
			}
			if tc.wantSuccess && it.CompletionCompletedAt == nil {
				t.Fatalf("completed_at not stamped")
			}
		})
	}
}

func TestEvaluateCompletionIgnoresTerminal(t *testing.T) {
	it := Interaction{Status: StatusCancelled}
	if EvaluateCompletion(&it, []ParticipantLink{link("a", LinkAccepted, CompletionDeclined)}, "now") {
		t.Fatalf("terminal interaction changed")
	}
	if it.Status != StatusCancelled {
		t.Fatalf("status = %s", it.Status)
	}
}

func TestResetCompletion(t *testing.T) {
	req := "2024-01-01T00:00:00Z"
	it := Interaction{Status: StatusCompleted, CompletionRequestedAt: &req, CompletionCompletedAt: &req}
	links := []ParticipantLink{
		{Status: LinkAccepted, CompletionStatus: CompletionConfirmed, CompletionRequestedAt: &req, CompletionRespondedAt: &req},
		{Status: LinkAccepted, CompletionStatus: CompletionNotRequested},
	}
	changed := ResetCompletion(&it, links)
	if len(changed) != 1 || changed[0] != 0 {
		t.Fatalf("changed = %v", changed)
	}
	if it.CompletionRequestedAt != nil {
		t.Fatalf("requested_at kept")
	}
	if it.CompletionCompletedAt == nil {
		t.Fatalf("completed_at cleared on completed interaction")
	}
	if links[0].CompletionStatus != CompletionNotRequested || links[0].CompletionRequestedAt != nil || links[0].CompletionRespondedAt != nil {
		t.Fatalf("link not reset: %+v", links[0])
	}

	it.Status = StatusCancelled
	ResetCompletion(&it, links)
	if it.CompletionCompletedAt != nil {
		t.Fatalf("completed_at kept on cancelled interaction")
	}
}

func TestCompletionActive(t *testing.T) {
	if CompletionActive([]ParticipantLink{link("a", LinkAccepted, CompletionConfirmed)}) {
		t.Fatalf("confirmed round reported active")
	}
	if !CompletionActive([]ParticipantLink{link("a", LinkAccepted, CompletionDeclined)}) {
		t.Fatalf("declined round reported inactive")
	}
	if CompletionActive([]ParticipantLink{link("a", LinkPending, CompletionPending)}) {
		t.Fatalf("non accepted link counted")
	}
}
