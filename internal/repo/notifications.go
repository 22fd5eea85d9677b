package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"maestro/internal/domain"
)

type notificationRow struct {
	ID            string         `db:"id"`
	UserID        string         `db:"user_id"`
	Kind          string         `db:"kind"`
	Title         string         `db:"title"`
	Message       string         `db:"message"`
	ContextJSON   string         `db:"context_json"`
	CorrelationID sql.NullString `db:"correlation_id"`
	IsSent        bool           `db:"is_sent"`
	SentAt        sql.NullString `db:"sent_at"`
	CreatedAt     string         `db:"created_at"`
}

const notificationColumns = `id,user_id,kind,title,message,context_json,correlation_id,is_sent,sent_at,created_at`

func (row notificationRow) toDomain() (domain.Notification, error) {
	n := domain.Notification{
		ID:            row.ID,
		UserID:        row.UserID,
		Kind:          row.Kind,
		Title:         row.Title,
		Message:       row.Message,
		CorrelationID: row.CorrelationID.String,
		IsSent:        row.IsSent,
		SentAt:        optional(row.SentAt),
		CreatedAt:     row.CreatedAt,
	}
	if row.ContextJSON != "" {
		if err := json.Unmarshal([]byte(row.ContextJSON), &n.Context); err != nil {
			return n, fmt.Errorf("notification %s context: %w", row.ID, err)
		}
	}
	return n, nil
}

func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	payload := n.Context
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification context: %w", err)
	}
	_, err = exec(ctx, r.DB, `INSERT INTO notifications(`+notificationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, n.Kind, n.Title, n.Message, string(data), nullable(n.CorrelationID), n.IsSent, nullablePtr(n.SentAt), n.CreatedAt)
	return err
}

// NotificationExistsSince reports whether a notification of this kind about
// the same object was delivered to the user at or after since. Rows still
// waiting in the outbox do not count.
func (r Repo) NotificationExistsSince(ctx context.Context, userID, kind, correlationID, since string) (bool, error) {
	var n int
	err := get(ctx, r.DB, &n, `SELECT COUNT(*) FROM notifications WHERE user_id=? AND kind=? AND COALESCE(correlation_id,'')=? AND is_sent=? AND sent_at>=?`,
		userID, kind, correlationID, true, since)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// NotificationFilter narrows ListNotifications.
type NotificationFilter struct {
	UserID     string
	UnsentOnly bool
	Limit      int
}

func (r Repo) ListNotifications(ctx context.Context, f NotificationFilter) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE 1=1`
	var args []any
	if f.UserID != "" {
		query += ` AND user_id=?`
		args = append(args, f.UserID)
	}
	if f.UnsentOnly {
		query += ` AND is_sent=?`
		args = append(args, false)
		query += ` ORDER BY created_at, id`
	} else {
		query += ` ORDER BY created_at DESC, id DESC`
	}
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	var rows []notificationRow
	if err := selectAll(ctx, r.DB, &rows, query, args...); err != nil {
		return nil, err
	}
	res := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}

func (r Repo) MarkNotificationSent(ctx context.Context, id, sentAt string) error {
	return execAffecting(ctx, r.DB, `UPDATE notifications SET is_sent=?, sent_at=? WHERE id=?`, true, sentAt, id)
}
