package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"maestro/internal/domain"
)

type linkRow struct {
	ID                    string         `db:"id"`
	InteractionID         string         `db:"interaction_id"`
	UserID                string         `db:"user_id"`
	Role                  string         `db:"role"`
	Status                string         `db:"status"`
	InvitedBy             sql.NullString `db:"invited_by"`
	InvitedAt             string         `db:"invited_at"`
	RespondedAt           sql.NullString `db:"responded_at"`
	CompletionStatus      string         `db:"completion_status"`
	CompletionRequestedAt sql.NullString `db:"completion_requested_at"`
	CompletionRespondedAt sql.NullString `db:"completion_responded_at"`
}

const linkColumns = `id,interaction_id,user_id,role,status,invited_by,invited_at,responded_at,completion_status,completion_requested_at,completion_responded_at`

func (row linkRow) toDomain() domain.ParticipantLink {
	return domain.ParticipantLink{
		ID:                    row.ID,
		InteractionID:         row.InteractionID,
		UserID:                row.UserID,
		Role:                  row.Role,
		Status:                row.Status,
		InvitedBy:             row.InvitedBy.String,
		InvitedAt:             row.InvitedAt,
		RespondedAt:           optional(row.RespondedAt),
		CompletionStatus:      row.CompletionStatus,
		CompletionRequestedAt: optional(row.CompletionRequestedAt),
		CompletionRespondedAt: optional(row.CompletionRespondedAt),
	}
}

func linkArgs(l domain.ParticipantLink) map[string]any {
	return map[string]any{
		"id":                      l.ID,
		"interaction_id":          l.InteractionID,
		"user_id":                 l.UserID,
		"role":                    l.Role,
		"status":                  l.Status,
		"invited_by":              nullable(l.InvitedBy),
		"invited_at":              l.InvitedAt,
		"responded_at":            nullablePtr(l.RespondedAt),
		"completion_status":       l.CompletionStatus,
		"completion_requested_at": nullablePtr(l.CompletionRequestedAt),
		"completion_responded_at": nullablePtr(l.CompletionRespondedAt),
	}
}

func (r Repo) InsertLinkTx(ctx context.Context, tx *sqlx.Tx, l domain.ParticipantLink) error {
	_, err := sqlx.NamedExecContext(ctx, tx, `INSERT INTO participant_links(`+linkColumns+`) VALUES (:id,:interaction_id,:user_id,:role,:status,:invited_by,:invited_at,:responded_at,:completion_status,:completion_requested_at,:completion_responded_at)`,
		linkArgs(l))
	return err
}

// UpdateLinkTx writes the invitation and completion state of a link.
func (r Repo) UpdateLinkTx(ctx context.Context, tx *sqlx.Tx, l domain.ParticipantLink) error {
	res, err := sqlx.NamedExecContext(ctx, tx, `UPDATE participant_links SET status=:status, invited_by=:invited_by, responded_at=:responded_at,
completion_status=:completion_status, completion_requested_at=:completion_requested_at, completion_responded_at=:completion_responded_at
WHERE id=:id`, linkArgs(l))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetLink(ctx context.Context, id string) (domain.ParticipantLink, error) {
	return getLink(ctx, r.DB, `SELECT `+linkColumns+` FROM participant_links WHERE id=?`, id)
}

func (r Repo) GetLinkTx(ctx context.Context, tx *sqlx.Tx, id string) (domain.ParticipantLink, error) {
	return getLink(ctx, tx, `SELECT `+linkColumns+` FROM participant_links WHERE id=?`, id)
}

func (r Repo) GetLinkByKeyTx(ctx context.Context, tx *sqlx.Tx, interactionID, userID, role string) (domain.ParticipantLink, error) {
	return getLink(ctx, tx, `SELECT `+linkColumns+` FROM participant_links WHERE interaction_id=? AND user_id=? AND role=?`, interactionID, userID, role)
}

func getLink(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (domain.ParticipantLink, error) {
	var row linkRow
	if err := get(ctx, q, &row, query, args...); err != nil {
		return domain.ParticipantLink{}, err
	}
	return row.toDomain(), nil
}

// ListLinks returns the links of an interaction in invitation order.
func (r Repo) ListLinks(ctx context.Context, interactionID string) ([]domain.ParticipantLink, error) {
	return listLinks(ctx, r.DB, `SELECT `+linkColumns+` FROM participant_links WHERE interaction_id=? ORDER BY invited_at, id`, interactionID)
}

func (r Repo) ListLinksTx(ctx context.Context, tx *sqlx.Tx, interactionID string) ([]domain.ParticipantLink, error) {
	return listLinks(ctx, tx, `SELECT `+linkColumns+` FROM participant_links WHERE interaction_id=? ORDER BY invited_at, id`, interactionID)
}

func listLinks(ctx context.Context, q sqlx.ExtContext, query string, args ...any) ([]domain.ParticipantLink, error) {
	var rows []linkRow
	if err := selectAll(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}
	res := make([]domain.ParticipantLink, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toDomain())
	}
	return res, nil
}

func (r Repo) DeleteLinkTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	return execAffecting(ctx, tx, `DELETE FROM participant_links WHERE id=?`, id)
}

// DeleteUserLinksTx removes the user's links from an interaction, limited to
// one role when role is set. Returns the number of links removed.
func (r Repo) DeleteUserLinksTx(ctx context.Context, tx *sqlx.Tx, interactionID, userID, role string) (int64, error) {
	query := `DELETE FROM participant_links WHERE interaction_id=? AND user_id=?`
	args := []any{interactionID, userID}
	if role != "" {
		query += ` AND role=?`
		args = append(args, role)
	}
	res, err := exec(ctx, tx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
