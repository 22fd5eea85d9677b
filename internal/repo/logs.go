package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"maestro/internal/domain"
)

type eventRow struct {
	ID            string         `db:"id"`
	InteractionID string         `db:"interaction_id"`
	ActorID       sql.NullString `db:"actor_id"`
	Type          string         `db:"event_type"`
	Text          sql.NullString `db:"text"`
	Attachment    sql.NullString `db:"attachment"`
	MetadataJSON  string         `db:"metadata_json"`
	CreatedAt     string         `db:"created_at"`
}

func (r Repo) InsertEventTx(ctx context.Context, tx *sqlx.Tx, ev domain.InteractionEvent) error {
	meta := ev.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal event metadata: %w", err)
	}
	_, err = exec(ctx, tx, `INSERT INTO interaction_events(id,interaction_id,actor_id,event_type,text,attachment,metadata_json,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		ev.ID, ev.InteractionID, nullable(ev.ActorID), ev.Type, nullable(ev.Text), nullable(ev.Attachment), string(data), ev.CreatedAt)
	return err
}

// ListEvents returns the event log of an interaction, oldest first.
func (r Repo) ListEvents(ctx context.Context, interactionID, eventType string) ([]domain.InteractionEvent, error) {
	query := `SELECT id,interaction_id,actor_id,event_type,text,attachment,metadata_json,created_at FROM interaction_events WHERE interaction_id=?`
	args := []any{interactionID}
	if eventType != "" {
		query += ` AND event_type=?`
		args = append(args, eventType)
	}
	query += ` ORDER BY created_at, id`
	var rows []eventRow
	if err := selectAll(ctx, r.DB, &rows, query, args...); err != nil {
		return nil, err
	}
	res := make([]domain.InteractionEvent, 0, len(rows))
	for _, row := range rows {
		ev := domain.InteractionEvent{
			ID:            row.ID,
			InteractionID: row.InteractionID,
			ActorID:       row.ActorID.String,
			Type:          row.Type,
			Text:          row.Text.String,
			Attachment:    row.Attachment.String,
			CreatedAt:     row.CreatedAt,
		}
		if row.MetadataJSON != "" {
			if err := json.Unmarshal([]byte(row.MetadataJSON), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("event %s metadata: %w", row.ID, err)
			}
		}
		res = append(res, ev)
	}
	return res, nil
}

type reportRow struct {
	ID             string         `db:"id"`
	InteractionID  string         `db:"interaction_id"`
	AuthorID       string         `db:"author_id"`
	Summary        string         `db:"summary"`
	HighlightsJSON string         `db:"highlights_json"`
	Audience       sql.NullString `db:"audience"`
	Feedback       sql.NullString `db:"feedback"`
	MediaLink      sql.NullString `db:"media_link"`
	Attachment     sql.NullString `db:"attachment"`
	CreatedAt      string         `db:"created_at"`
}

func (r Repo) InsertReportTx(ctx context.Context, tx *sqlx.Tx, rep domain.ProjectReport) error {
	highlights := rep.Highlights
	if highlights == nil {
		highlights = []string{}
	}
	data, err := json.Marshal(highlights)
	if err != nil {
		return fmt.Errorf("marshal highlights: %w", err)
	}
	_, err = exec(ctx, tx, `INSERT INTO project_reports(id,interaction_id,author_id,summary,highlights_json,audience,feedback,media_link,attachment,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rep.ID, rep.InteractionID, rep.AuthorID, rep.Summary, string(data), nullable(rep.Audience), nullable(rep.Feedback), nullable(rep.MediaLink), nullable(rep.Attachment), rep.CreatedAt)
	return err
}

// ListReports returns reports of an interaction, newest first.
func (r Repo) ListReports(ctx context.Context, interactionID string) ([]domain.ProjectReport, error) {
	var rows []reportRow
	if err := selectAll(ctx, r.DB, &rows, `SELECT id,interaction_id,author_id,summary,highlights_json,audience,feedback,media_link,attachment,created_at
FROM project_reports WHERE interaction_id=? ORDER BY created_at DESC, id DESC`, interactionID); err != nil {
		return nil, err
	}
	res := make([]domain.ProjectReport, 0, len(rows))
	for _, row := range rows {
		rep := domain.ProjectReport{
			ID:            row.ID,
			InteractionID: row.InteractionID,
			AuthorID:      row.AuthorID,
			Summary:       row.Summary,
			Audience:      row.Audience.String,
			Feedback:      row.Feedback.String,
			MediaLink:     row.MediaLink.String,
			Attachment:    row.Attachment.String,
			CreatedAt:     row.CreatedAt,
		}
		if err := json.Unmarshal([]byte(row.HighlightsJSON), &rep.Highlights); err != nil {
			return nil, fmt.Errorf("report %s highlights: %w", row.ID, err)
		}
		res = append(res, rep)
	}
	return res, nil
}
