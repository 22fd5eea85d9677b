package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"maestro/internal/domain"
)

type userRow struct {
	ID          string         `db:"id"`
	Username    string         `db:"username"`
	FullName    sql.NullString `db:"full_name"`
	Email       sql.NullString `db:"email"`
	IsSuperuser bool           `db:"is_superuser"`
	CreatedAt   string         `db:"created_at"`
}

func (row userRow) toDomain() domain.User {
	return domain.User{
		ID:          row.ID,
		Username:    row.Username,
		FullName:    row.FullName.String,
		Email:       row.Email.String,
		IsSuperuser: row.IsSuperuser,
		CreatedAt:   row.CreatedAt,
	}
}

// UpsertUser inserts the user or refreshes its account fields.
func (r Repo) UpsertUser(ctx context.Context, u domain.User) error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("id required")
	}
	if strings.TrimSpace(u.Username) == "" {
		return errors.New("username required")
	}
	if u.CreatedAt == "" {
		u.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := exec(ctx, r.DB, `INSERT INTO users(id,username,full_name,email,is_superuser,created_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET username=excluded.username, full_name=excluded.full_name, email=excluded.email, is_superuser=excluded.is_superuser`,
		u.ID, u.Username, nullable(u.FullName), nullable(u.Email), u.IsSuperuser, u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return getUser(ctx, r.DB, `SELECT id,username,full_name,email,is_superuser,created_at FROM users WHERE id=?`, id)
}

func (r Repo) GetUserTx(ctx context.Context, tx *sqlx.Tx, id string) (domain.User, error) {
	return getUser(ctx, tx, `SELECT id,username,full_name,email,is_superuser,created_at FROM users WHERE id=?`, id)
}

func (r Repo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	return getUser(ctx, r.DB, `SELECT id,username,full_name,email,is_superuser,created_at FROM users WHERE username=?`, username)
}

func getUser(ctx context.Context, q sqlx.ExtContext, query string, args ...any) (domain.User, error) {
	var row userRow
	if err := get(ctx, q, &row, query, args...); err != nil {
		return domain.User{}, err
	}
	return row.toDomain(), nil
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := selectAll(ctx, r.DB, &rows, `SELECT id,username,full_name,email,is_superuser,created_at FROM users ORDER BY username`); err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toDomain())
	}
	return res, nil
}

// SuperusersTx returns which of the given users carry the superuser flag.
func (r Repo) SuperusersTx(ctx context.Context, tx *sqlx.Tx, ids []string) (map[string]bool, error) {
	res := map[string]bool{}
	if len(ids) == 0 {
		return res, nil
	}
	query, args, err := sqlx.In(`SELECT id FROM users WHERE is_superuser=? AND id IN (?)`, true, ids)
	if err != nil {
		return nil, err
	}
	var found []string
	if err := selectAll(ctx, tx, &found, query, args...); err != nil {
		return nil, err
	}
	for _, id := range found {
		res[id] = true
	}
	return res, nil
}

func (r Repo) UpsertAgentProfile(ctx context.Context, p domain.AgentProfile) error {
	_, err := exec(ctx, r.DB, `INSERT INTO agent_profiles(user_id,display_name,agency_name,updated_at) VALUES (?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET display_name=excluded.display_name, agency_name=excluded.agency_name, updated_at=excluded.updated_at`,
		p.UserID, p.DisplayName, nullable(p.AgencyName), p.UpdatedAt)
	return err
}

func (r Repo) UpsertVenueProfile(ctx context.Context, p domain.VenueProfile) error {
	_, err := exec(ctx, r.DB, `INSERT INTO venue_profiles(user_id,company_name,contact_person,updated_at) VALUES (?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET company_name=excluded.company_name, contact_person=excluded.contact_person, updated_at=excluded.updated_at`,
		p.UserID, p.CompanyName, nullable(p.ContactPerson), p.UpdatedAt)
	return err
}

func (r Repo) UpsertPerformerProfile(ctx context.Context, p domain.PerformerProfile) error {
	_, err := exec(ctx, r.DB, `INSERT INTO performer_profiles(user_id,full_name,performer_type,voice_type,instrument,updated_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET full_name=excluded.full_name, performer_type=excluded.performer_type, voice_type=excluded.voice_type,
instrument=excluded.instrument, updated_at=excluded.updated_at`,
		p.UserID, p.FullName, nullable(p.PerformerType), nullable(p.VoiceType), nullable(p.Instrument), p.UpdatedAt)
	return err
}

func (r Repo) GetAgentProfile(ctx context.Context, userID string) (domain.AgentProfile, error) {
	var row struct {
		UserID      string         `db:"user_id"`
		DisplayName string         `db:"display_name"`
		AgencyName  sql.NullString `db:"agency_name"`
		UpdatedAt   string         `db:"updated_at"`
	}
	if err := get(ctx, r.DB, &row, `SELECT user_id,display_name,agency_name,updated_at FROM agent_profiles WHERE user_id=?`, userID); err != nil {
		return domain.AgentProfile{}, err
	}
	return domain.AgentProfile{UserID: row.UserID, DisplayName: row.DisplayName, AgencyName: row.AgencyName.String, UpdatedAt: row.UpdatedAt}, nil
}

func (r Repo) GetVenueProfile(ctx context.Context, userID string) (domain.VenueProfile, error) {
	var row struct {
		UserID        string         `db:"user_id"`
		CompanyName   string         `db:"company_name"`
		ContactPerson sql.NullString `db:"contact_person"`
		UpdatedAt     string         `db:"updated_at"`
	}
	if err := get(ctx, r.DB, &row, `SELECT user_id,company_name,contact_person,updated_at FROM venue_profiles WHERE user_id=?`, userID); err != nil {
		return domain.VenueProfile{}, err
	}
	return domain.VenueProfile{UserID: row.UserID, CompanyName: row.CompanyName, ContactPerson: row.ContactPerson.String, UpdatedAt: row.UpdatedAt}, nil
}

func (r Repo) GetPerformerProfile(ctx context.Context, userID string) (domain.PerformerProfile, error) {
	var row struct {
		UserID        string         `db:"user_id"`
		FullName      string         `db:"full_name"`
		PerformerType sql.NullString `db:"performer_type"`
		VoiceType     sql.NullString `db:"voice_type"`
		Instrument    sql.NullString `db:"instrument"`
		UpdatedAt     string         `db:"updated_at"`
	}
	if err := get(ctx, r.DB, &row, `SELECT user_id,full_name,performer_type,voice_type,instrument,updated_at FROM performer_profiles WHERE user_id=?`, userID); err != nil {
		return domain.PerformerProfile{}, err
	}
	return domain.PerformerProfile{
		UserID:        row.UserID,
		FullName:      row.FullName,
		PerformerType: row.PerformerType.String,
		VoiceType:     row.VoiceType.String,
		Instrument:    row.Instrument.String,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

// ProfileRoles returns the roles the user holds a profile for.
func (r Repo) ProfileRoles(ctx context.Context, userID string) ([]string, error) {
	return profileRoles(ctx, r.DB, userID)
}

func (r Repo) ProfileRolesTx(ctx context.Context, tx *sqlx.Tx, userID string) ([]string, error) {
	return profileRoles(ctx, tx, userID)
}

func profileRoles(ctx context.Context, q sqlx.ExtContext, userID string) ([]string, error) {
	var roles []string
	err := selectAll(ctx, q, &roles, `SELECT 'agent' FROM agent_profiles WHERE user_id=?
UNION ALL SELECT 'venue' FROM venue_profiles WHERE user_id=?
UNION ALL SELECT 'performer' FROM performer_profiles WHERE user_id=?`, userID, userID, userID)
	if err != nil {
		return nil, err
	}
	return roles, nil
}
