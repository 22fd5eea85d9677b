package domain

// Interaction statuses.
const (
	StatusDraft        = "draft"
	StatusProposalSent = "proposal_sent"
	StatusInProgress   = "in_progress"
	StatusCompleted    = "completed"
	StatusCancelled    = "cancelled"
)

// Participant roles. These are business labels, not permissions.
const (
	RoleAgent     = "agent"
	RoleVenue     = "venue"
	RolePerformer = "performer"
)

// Invitation statuses of a participant link.
const (
	LinkPending  = "pending"
	LinkAccepted = "accepted"
	LinkDeclined = "declined"
)

// Completion statuses of a participant link.
const (
	CompletionNotRequested = "not_requested"
	CompletionPending      = "pending"
	CompletionConfirmed    = "confirmed"
	CompletionDeclined     = "declined"
)

const (
	TypeOneTime  = "one_time"
	TypeLongTerm = "long_term"
)

const DefaultCurrency = "RUB"

// Roles lists participant roles in display order.
var Roles = []string{RoleAgent, RoleVenue, RolePerformer}

type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name,omitempty"`
	Email       string `json:"email,omitempty"`
	IsSuperuser bool   `json:"is_superuser"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// DisplayName returns the account-level name of the user.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

type Interaction struct {
	ID                    string  `json:"id"`
	Title                 string  `json:"title"`
	Description           string  `json:"description,omitempty"`
	Type                  string  `json:"interaction_type" enum:"one_time,long_term"`
	Status                string  `json:"status" enum:"draft,proposal_sent,in_progress,completed,cancelled"`
	StartDate             *string `json:"start_date,omitempty" format:"date"`
	EndDate               *string `json:"end_date,omitempty" format:"date"`
	BudgetAmount          *string `json:"budget_amount,omitempty"`
	BudgetCurrency        string  `json:"budget_currency" enum:"RUB,USD,EUR"`
	SuccessFlag           bool    `json:"success_flag"`
	ResultNotes           string  `json:"result_notes,omitempty"`
	CompletionRequestedAt *string `json:"completion_requested_at,omitempty" format:"date-time"`
	CompletionCompletedAt *string `json:"completion_completed_at,omitempty" format:"date-time"`
	CreatedBy             string  `json:"created_by"`
	CreatedAt             string  `json:"created_at" format:"date-time"`
	UpdatedAt             string  `json:"updated_at" format:"date-time"`
}

// Terminal reports whether the status is out of reach of automatic recomputation.
func (it Interaction) Terminal() bool {
	return it.Status == StatusCompleted || it.Status == StatusCancelled
}

type ParticipantLink struct {
	ID                    string  `json:"id"`
	InteractionID         string  `json:"interaction_id"`
	UserID                string  `json:"user_id"`
	Role                  string  `json:"role" enum:"agent,venue,performer"`
	Status                string  `json:"status" enum:"pending,accepted,declined"`
	InvitedBy             string  `json:"invited_by,omitempty"`
	InvitedAt             string  `json:"invited_at" format:"date-time"`
	RespondedAt           *string `json:"responded_at,omitempty" format:"date-time"`
	CompletionStatus      string  `json:"completion_status" enum:"not_requested,pending,confirmed,declined"`
	CompletionRequestedAt *string `json:"completion_requested_at,omitempty" format:"date-time"`
	CompletionRespondedAt *string `json:"completion_responded_at,omitempty" format:"date-time"`
}

// Event types of the interaction log.
const (
	EventNote         = "note"
	EventStatusChange = "status_change"
	EventFile         = "file"
	EventMilestone    = "milestone"
)

type InteractionEvent struct {
	ID            string         `json:"id"`
	InteractionID string         `json:"interaction_id"`
	ActorID       string         `json:"actor_id,omitempty"`
	Type          string         `json:"event_type" enum:"note,status_change,file,milestone"`
	Text          string         `json:"text,omitempty"`
	Attachment    string         `json:"attachment,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     string         `json:"created_at" format:"date-time"`
}

type ProjectReport struct {
	ID            string   `json:"id"`
	InteractionID string   `json:"interaction_id"`
	AuthorID      string   `json:"author_id"`
	Summary       string   `json:"summary"`
	Highlights    []string `json:"highlights,omitempty"`
	Audience      string   `json:"audience,omitempty"`
	Feedback      string   `json:"feedback,omitempty"`
	MediaLink     string   `json:"media_link,omitempty"`
	Attachment    string   `json:"attachment,omitempty"`
	CreatedAt     string   `json:"created_at" format:"date-time"`
}

type Notification struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Kind          string         `json:"kind" enum:"invitation,status_change,completion"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Context       map[string]any `json:"context,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	IsSent        bool           `json:"is_sent"`
	SentAt        *string        `json:"sent_at,omitempty" format:"date-time"`
	CreatedAt     string         `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Performer types.
const (
	PerformerVocalist        = "vocalist"
	PerformerInstrumentalist = "instrumentalist"
)

type AgentProfile struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AgencyName  string `json:"agency_name,omitempty"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type VenueProfile struct {
	UserID        string `json:"user_id"`
	CompanyName   string `json:"company_name"`
	ContactPerson string `json:"contact_person,omitempty"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

type PerformerProfile struct {
	UserID        string `json:"user_id"`
	FullName      string `json:"full_name"`
	PerformerType string `json:"performer_type,omitempty"`
	VoiceType     string `json:"voice_type,omitempty"`
	Instrument    string `json:"instrument,omitempty"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`
}

// Specialization is the instrument of an instrumentalist or the voice type
// of a vocalist.
func (p PerformerProfile) Specialization() string {
	switch p.PerformerType {
	case PerformerInstrumentalist:
		return p.Instrument
	case PerformerVocalist:
		return p.VoiceType
	}
	return ""
}
