package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"maestro/internal/domain"
)

type Repo struct {
	DB *sqlx.DB
}

var ErrNotFound = errors.New("not found")

// Begin opens a transaction on the underlying database.
func (r Repo) Begin(ctx context.Context) (*sqlx.Tx, error) {
	return r.DB.BeginTxx(ctx, nil)
}

func get(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func selectAll(ctx context.Context, q sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func exec(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, q.Rebind(query), args...)
}

func execAffecting(ctx context.Context, q sqlx.ExtContext, query string, args ...any) error {
	res, err := exec(ctx, q, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type interactionRow struct {
	ID                    string         `db:"id"`
	Title                 string         `db:"title"`
	Description           sql.NullString `db:"description"`
	Type                  string         `db:"interaction_type"`
	Status                string         `db:"status"`
	StartDate             sql.NullString `db:"start_date"`
	EndDate               sql.NullString `db:"end_date"`
	BudgetAmount          sql.NullString `db:"budget_amount"`
	BudgetCurrency        string         `db:"budget_currency"`
	SuccessFlag           bool           `db:"success_flag"`
	ResultNotes           sql.NullString `db:"result_notes"`
	CompletionRequestedAt sql.NullString `db:"completion_requested_at"`
	CompletionCompletedAt sql.NullString `db:"completion_completed_at"`
	CreatedBy             string         `db:"created_by"`
	CreatedAt             string         `db:"created_at"`
	UpdatedAt             string         `db:"updated_at"`
}

const interactionColumns = `id,title,description,interaction_type,status,start_date,end_date,budget_amount,budget_currency,success_flag,result_notes,completion_requested_at,completion_completed_at,created_by,created_at,updated_at`

func (row interactionRow) toDomain() domain.Interaction {
	return domain.Interaction{
		ID:                    row.ID,
		Title:                 row.Title,
		Description:           row.Description.String,
		Type:                  row.Type,
		Status:                row.Status,
		StartDate:             optional(row.StartDate),
		EndDate:               optional(row.EndDate),
		BudgetAmount:          optional(row.BudgetAmount),
		BudgetCurrency:        row.BudgetCurrency,
		SuccessFlag:           row.SuccessFlag,
		ResultNotes:           row.ResultNotes.String,
		CompletionRequestedAt: optional(row.CompletionRequestedAt),
		CompletionCompletedAt: optional(row.CompletionCompletedAt),
		CreatedBy:             row.CreatedBy,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
}

func interactionArgs(it domain.Interaction) map[string]any {
	return map[string]any{
		"id":                      it.ID,
		"title":                   it.Title,
		"description":             nullable(it.Description),
		"interaction_type":        it.Type,
		"status":                  it.Status,
		"start_date":              nullablePtr(it.StartDate),
		"end_date":                nullablePtr(it.EndDate),
		"budget_amount":           nullablePtr(it.BudgetAmount),
		"budget_currency":         it.BudgetCurrency,
		"success_flag":            it.SuccessFlag,
		"result_notes":            nullable(it.ResultNotes),
		"completion_requested_at": nullablePtr(it.CompletionRequestedAt),
		"completion_completed_at": nullablePtr(it.CompletionCompletedAt),
		"created_by":              it.CreatedBy,
		"created_at":              it.CreatedAt,
		"updated_at":              it.UpdatedAt,
	}
}

func (r Repo) InsertInteractionTx(ctx context.Context, tx *sqlx.Tx, it domain.Interaction) error {
	_, err := sqlx.NamedExecContext(ctx, tx, `INSERT INTO interactions(`+interactionColumns+`) VALUES (:id,:title,:description,:interaction_type,:status,:start_date,:end_date,:budget_amount,:budget_currency,:success_flag,:result_notes,:completion_requested_at,:completion_completed_at,:created_by,:created_at,:updated_at)`,
		interactionArgs(it))
	return err
}

// UpdateInteractionTx writes every mutable column of the interaction.
func (r Repo) UpdateInteractionTx(ctx context.Context, tx *sqlx.Tx, it domain.Interaction) error {
	res, err := sqlx.NamedExecContext(ctx, tx, `UPDATE interactions SET title=:title, description=:description, interaction_type=:interaction_type, status=:status,
start_date=:start_date, end_date=:end_date, budget_amount=:budget_amount, budget_currency=:budget_currency, success_flag=:success_flag,
result_notes=:result_notes, completion_requested_at=:completion_requested_at, completion_completed_at=:completion_completed_at, updated_at=:updated_at
WHERE id=:id`, interactionArgs(it))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LockInteractionTx takes the row write lock on an interaction for the rest of
// the transaction.
func (r Repo) LockInteractionTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	return execAffecting(ctx, tx, `UPDATE interactions SET updated_at=updated_at WHERE id=?`, id)
}

func (r Repo) GetInteraction(ctx context.Context, id string) (domain.Interaction, error) {
	return getInteraction(ctx, r.DB, id)
}

func (r Repo) GetInteractionTx(ctx context.Context, tx *sqlx.Tx, id string) (domain.Interaction, error) {
	return getInteraction(ctx, tx, id)
}

func getInteraction(ctx context.Context, q sqlx.ExtContext, id string) (domain.Interaction, error) {
	var row interactionRow
	if err := get(ctx, q, &row, `SELECT `+interactionColumns+` FROM interactions WHERE id=?`, id); err != nil {
		return domain.Interaction{}, err
	}
	return row.toDomain(), nil
}

// InteractionFilter narrows ListInteractions. VisibleTo restricts the result to
// interactions the user created or participates in.
type InteractionFilter struct {
	VisibleTo string
	Status    string
	Limit     int
}

func (r Repo) ListInteractions(ctx context.Context, f InteractionFilter) ([]domain.Interaction, error) {
	var (
		clauses []string
		args    []any
	)
	if f.VisibleTo != "" {
		clauses = append(clauses, `(created_by=? OR EXISTS (SELECT 1 FROM participant_links pl WHERE pl.interaction_id=interactions.id AND pl.user_id=?))`)
		args = append(args, f.VisibleTo, f.VisibleTo)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + interactionColumns + ` FROM interactions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	var rows []interactionRow
	if err := selectAll(ctx, r.DB, &rows, query, args...); err != nil {
		return nil, err
	}
	res := make([]domain.Interaction, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toDomain())
	}
	return res, nil
}

func optional(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullablePtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
