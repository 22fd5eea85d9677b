package domain

// DeriveStatus computes the aggregate status of an interaction from its
// persisted participant links. Completed and cancelled interactions keep
// their status whatever the links look like.
func DeriveStatus(current string, links []ParticipantLink) string {
	if current == StatusCompleted || current == StatusCancelled {
		return current
	}
	if len(links) == 0 {
		return StatusDraft
	}
	accepted := false
	for _, l := range links {
		switch l.Status {
		case LinkPending:
			return StatusProposalSent
		case LinkAccepted:
			accepted = true
		}
	}
	if accepted {
		return StatusInProgress
	}
	return StatusProposalSent
}

// NeedsCompletionReset reports whether a status drops the completion workflow.
func NeedsCompletionReset(status string) bool {
	return status == StatusDraft || status == StatusProposalSent
}

// ResetCompletion clears the completion workflow on the interaction and its
// links. It returns the indexes of links that changed.
func ResetCompletion(it *Interaction, links []ParticipantLink) []int {
	it.CompletionRequestedAt = nil
	if it.Status != StatusCompleted {
		it.CompletionCompletedAt = nil
	}
	var changed []int
	for i := range links {
		l := &links[i]
		if l.CompletionStatus == CompletionNotRequested && l.CompletionRequestedAt == nil && l.CompletionRespondedAt == nil {
			continue
		}
		l.CompletionStatus = CompletionNotRequested
		l.CompletionRequestedAt = nil
		l.CompletionRespondedAt = nil
		changed = append(changed, i)
	}
	return changed
}

// AcceptedLinks filters links down to accepted ones.
func AcceptedLinks(links []ParticipantLink) []ParticipantLink {
	var out []ParticipantLink
	for _, l := range links {
		if l.Status == LinkAccepted {
			out = append(out, l)
		}
	}
	return out
}

// CanStartCompletion reports whether a completion request may be issued.
func CanStartCompletion(it Interaction, links []ParticipantLink) bool {
	return it.Status == StatusInProgress && len(AcceptedLinks(links)) > 0
}

// StartCompletion opens a completion request. Links owned by a manager are
// confirmed on the spot, every other link is asked again. Returns false and
// leaves everything untouched when the request cannot start.
func StartCompletion(it *Interaction, links []ParticipantLink, isManager func(userID string) bool, now string) bool {
	if !CanStartCompletion(*it, links) {
		return false
	}
	it.CompletionRequestedAt = strPtr(now)
	for i := range links {
		l := &links[i]
		if isManager != nil && isManager(l.UserID) {
			l.CompletionStatus = CompletionConfirmed
			if l.CompletionRequestedAt == nil {
				l.CompletionRequestedAt = strPtr(now)
			}
			l.CompletionRespondedAt = strPtr(now)
			continue
		}
		l.CompletionStatus = CompletionPending
		l.CompletionRequestedAt = strPtr(now)
		l.CompletionRespondedAt = nil
	}
	return true
}

// EvaluateCompletion applies the consensus rule over accepted links and
// reports whether the interaction changed.
func EvaluateCompletion(it *Interaction, links []ParticipantLink, now string) bool {
	if it.Terminal() {
		return false
	}
	accepted := AcceptedLinks(links)
	if len(accepted) == 0 {
		return false
	}
	for _, l := range accepted {
		if l.CompletionStatus == CompletionDeclined {
			if it.Status == StatusInProgress {
				return false
			}
			it.Status = StatusInProgress
			return true
		}
	}
	for _, l := range accepted {
		if l.CompletionStatus == CompletionNotRequested || l.CompletionStatus == CompletionPending {
			return false
		}
	}
	it.Status = StatusCompleted
	it.SuccessFlag = true
	it.CompletionCompletedAt = strPtr(now)
	return true
}

// CompletionActive reports whether a completion round is waiting on or was
// blocked by an accepted participant.
func CompletionActive(links []ParticipantLink) bool {
	for _, l := range links {
		if l.Status != LinkAccepted {
			continue
		}
		if l.CompletionStatus == CompletionPending || l.CompletionStatus == CompletionDeclined {
			return true
		}
	}
	return false
}

// ValidInvitationDecision reports whether a decision answers an invitation.
func ValidInvitationDecision(decision string) bool {
	return decision == LinkAccepted || decision == LinkDeclined
}

// ValidCompletionDecision reports whether a decision answers a completion request.
func ValidCompletionDecision(decision string) bool {
	return decision == CompletionConfirmed || decision == CompletionDeclined
}

// ApplyInvitationDecision records the answer on the link and clears its
// completion fields.
func ApplyInvitationDecision(l *ParticipantLink, decision, now string) {
	l.Status = decision
	l.RespondedAt = strPtr(now)
	l.CompletionStatus = CompletionNotRequested
	l.CompletionRequestedAt = nil
	l.CompletionRespondedAt = nil
}

// ApplyCompletionDecision records a completion answer on the link.
func ApplyCompletionDecision(l *ParticipantLink, decision, now string) {
	l.CompletionStatus = decision
	if l.CompletionRequestedAt == nil {
		l.CompletionRequestedAt = strPtr(now)
	}
	l.CompletionRespondedAt = strPtr(now)
}

func strPtr(s string) *string {
	return &s
}
