package maestrosdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Maestro HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Interaction is the API interaction model.
type Interaction struct {
	ID                    string  `json:"id"`
	Title                 string  `json:"title"`
	Description           string  `json:"description,omitempty"`
	Type                  string  `json:"interaction_type"`
	Status                string  `json:"status"`
	StartDate             *string `json:"start_date,omitempty"`
	EndDate               *string `json:"end_date,omitempty"`
	BudgetAmount          *string `json:"budget_amount,omitempty"`
	BudgetCurrency        string  `json:"budget_currency"`
	SuccessFlag           bool    `json:"success_flag"`
	CompletionRequestedAt *string `json:"completion_requested_at,omitempty"`
	CompletionCompletedAt *string `json:"completion_completed_at,omitempty"`
	CreatedBy             string  `json:"created_by"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at"`
}

// Link is a participant link.
type Link struct {
	ID               string `json:"id"`
	InteractionID    string `json:"interaction_id"`
	UserID           string `json:"user_id"`
	Role             string `json:"role"`
	Status           string `json:"status"`
	CompletionStatus string `json:"completion_status"`
	DisplayName      string `json:"display_name,omitempty"`
}

// Detail is the per-user view of one interaction.
type Detail struct {
	Interaction         Interaction       `json:"interaction"`
	Participants        map[string][]Link `json:"participants"`
	IsCreator           bool              `json:"is_creator"`
	CanManage           bool              `json:"can_manage"`
	ParticipationStatus string            `json:"participation_status,omitempty"`
	MyLinks             []Link            `json:"my_links,omitempty"`
	CompletionActive    bool              `json:"completion_active"`
}

// Project is one row of the caller's project list.
type Project struct {
	Interaction         Interaction `json:"interaction"`
	ParticipationStatus string      `json:"participation_status,omitempty"`
	Link                *Link       `json:"link,omitempty"`
	CompletionRequested bool        `json:"completion_requested"`
	CompletionDeclined  bool        `json:"completion_declined"`
	CompletionActive    bool        `json:"completion_active"`
}

// CreateInteractionInput carries the fields of a new interaction.
// Participants maps a role to user ids.
type CreateInteractionInput struct {
	Title          string              `json:"title"`
	Description    string              `json:"description,omitempty"`
	Type           string              `json:"interaction_type,omitempty"`
	StartDate      string              `json:"start_date,omitempty"`
	EndDate        string              `json:"end_date,omitempty"`
	BudgetAmount   string              `json:"budget_amount,omitempty"`
	BudgetCurrency string              `json:"budget_currency,omitempty"`
	Participants   map[string][]string `json:"participants,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateInteraction creates an interaction owned by the caller.
func (c *Client) CreateInteraction(ctx context.Context, in CreateInteractionInput) (Interaction, error) {
	var resp Interaction
	err := c.do(ctx, http.MethodPost, "interactions", in, &resp)
	return resp, err
}

// ListInteractions lists interactions visible to the caller, optionally by status.
func (c *Client) ListInteractions(ctx context.Context, status string) ([]Interaction, error) {
	endpoint := "interactions"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Items []Interaction `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// GetInteraction fetches the detail view of an interaction.
func (c *Client) GetInteraction(ctx context.Context, id string) (Detail, error) {
	var resp Detail
	err := c.do(ctx, http.MethodGet, "interactions/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CancelInteraction cancels an interaction the caller manages.
func (c *Client) CancelInteraction(ctx context.Context, id string) (Interaction, error) {
	var resp Interaction
	err := c.do(ctx, http.MethodPost, "interactions/"+url.PathEscape(id)+"/cancel", nil, &resp)
	return resp, err
}

// AddParticipant invites a user under a role.
func (c *Client) AddParticipant(ctx context.Context, interactionID, userID, role string) (Link, error) {
	body := map[string]any{
		"user_id": userID,
		"role":    role,
	}
	var resp Link
	err := c.do(ctx, http.MethodPost, "interactions/"+url.PathEscape(interactionID)+"/participants", body, &resp)
	return resp, err
}

// RespondInvitation accepts or declines an invitation.
func (c *Client) RespondInvitation(ctx context.Context, linkID, decision string) (Interaction, error) {
	var resp Interaction
	err := c.do(ctx, http.MethodPost, "links/"+url.PathEscape(linkID)+"/respond", map[string]any{"decision": decision}, &resp)
	return resp, err
}

// RequestCompletion starts the completion workflow. started is false when the
// interaction was not eligible.
func (c *Client) RequestCompletion(ctx context.Context, interactionID string) (it Interaction, started bool, err error) {
	var resp struct {
		Started     bool        `json:"started"`
		Interaction Interaction `json:"interaction"`
	}
	err = c.do(ctx, http.MethodPost, "interactions/"+url.PathEscape(interactionID)+"/completion", nil, &resp)
	return resp.Interaction, resp.Started, err
}

// RespondCompletion confirms or declines completion on one of the caller's links.
func (c *Client) RespondCompletion(ctx context.Context, linkID, decision string) (Interaction, error) {
	var resp Interaction
	err := c.do(ctx, http.MethodPost, "links/"+url.PathEscape(linkID)+"/completion", map[string]any{"decision": decision}, &resp)
	return resp, err
}

// MyProjects lists interactions the caller created or takes part in.
func (c *Client) MyProjects(ctx context.Context) ([]Project, error) {
	var resp struct {
		Items []Project `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "me/projects", nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	u := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.BasePath != "" {
		base += "/" + strings.Trim(c.BasePath, "/")
	}
	return base
}
