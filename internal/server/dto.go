package server

import (
	"maestro/internal/domain"
	"maestro/internal/engine"
)

// Request payloads

type CreateInteractionRequest struct {
	ID             *string             `json:"id,omitempty"`
	Title          string              `json:"title" minLength:"1"`
	Description    *string             `json:"description,omitempty"`
	Type           *string             `json:"interaction_type,omitempty" enum:"one_time,long_term"`
	StartDate      *string             `json:"start_date,omitempty" format:"date"`
	EndDate        *string             `json:"end_date,omitempty" format:"date"`
	BudgetAmount   *string             `json:"budget_amount,omitempty" example:"15000.00"`
	BudgetCurrency *string             `json:"budget_currency,omitempty" enum:"RUB,USD,EUR"`
	ResultNotes    *string             `json:"result_notes,omitempty"`
	Participants   map[string][]string `json:"participants,omitempty" doc:"user ids keyed by role (agent, venue, performer)"`
}

type UpdateInteractionRequest struct {
	Title          *string             `json:"title,omitempty"`
	Description    *string             `json:"description,omitempty"`
	Type           *string             `json:"interaction_type,omitempty" enum:"one_time,long_term"`
	StartDate      *string             `json:"start_date,omitempty"`
	EndDate        *string             `json:"end_date,omitempty"`
	BudgetAmount   *string             `json:"budget_amount,omitempty"`
	BudgetCurrency *string             `json:"budget_currency,omitempty" enum:"RUB,USD,EUR"`
	ResultNotes    *string             `json:"result_notes,omitempty"`
	Participants   map[string][]string `json:"participants,omitempty"`
}

type AddParticipantRequest struct {
	UserID string `json:"user_id" minLength:"1"`
	Role   string `json:"role" enum:"agent,venue,performer"`
}

type SyncParticipantsRequest struct {
	Participants map[string][]string `json:"participants"`
}

type DecisionRequest struct {
	Decision string `json:"decision" example:"accepted" doc:"accepted|declined for invitations, confirmed|declined for completion"`
}

type CreateEventRequest struct {
	Type       string         `json:"event_type,omitempty" enum:"note,file,milestone"`
	Text       string         `json:"text,omitempty"`
	Attachment string         `json:"attachment,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type CreateReportRequest struct {
	Summary    string   `json:"summary" minLength:"1"`
	Highlights []string `json:"highlights,omitempty"`
	Audience   string   `json:"audience,omitempty"`
	Feedback   string   `json:"feedback,omitempty"`
	MediaLink  string   `json:"media_link,omitempty"`
	Attachment string   `json:"attachment,omitempty"`
}

// Response payloads

type CompletionRequestResponse struct {
	Started     bool               `json:"started"`
	Interaction domain.Interaction `json:"interaction"`
}

type WhoAmIResponse struct {
	User  domain.User `json:"user"`
	Roles []string    `json:"roles" doc:"roles the user holds a profile for"`
	Via   string      `json:"via" enum:"jwt,api_key,legacy_header"`
}

type interactionList struct {
	Items []domain.Interaction `json:"items"`
}

type projectList struct {
	Items []engine.ProjectSummary `json:"items"`
}

type participantList struct {
	Items []engine.Participant `json:"items"`
}

type eventList struct {
	Items []domain.InteractionEvent `json:"items"`
}

type reportList struct {
	Items []domain.ProjectReport `json:"items"`
}

type notificationList struct {
	Items []domain.Notification `json:"items"`
}

func (r CreateInteractionRequest) options(actorID string) engine.CreateOptions {
	return engine.CreateOptions{
		ID:             stringOrEmpty(r.ID),
		ActorID:        actorID,
		Title:          r.Title,
		Description:    stringOrEmpty(r.Description),
		Type:           stringOrEmpty(r.Type),
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		BudgetAmount:   r.BudgetAmount,
		BudgetCurrency: stringOrEmpty(r.BudgetCurrency),
		ResultNotes:    stringOrEmpty(r.ResultNotes),
		Participants:   r.Participants,
	}
}

func (r UpdateInteractionRequest) options(id, actorID string) engine.UpdateOptions {
	return engine.UpdateOptions{
		ID:             id,
		ActorID:        actorID,
		Title:          r.Title,
		Description:    r.Description,
		Type:           r.Type,
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		BudgetAmount:   r.BudgetAmount,
		BudgetCurrency: r.BudgetCurrency,
		ResultNotes:    r.ResultNotes,
		Participants:   r.Participants,
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
