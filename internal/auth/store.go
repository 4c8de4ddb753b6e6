package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warung-ops/backend-warung/internal/tenant"
)

// Roles assignable to staff accounts.
const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// Staff is an employee account scoped to a tenant.
type Staff struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"fullName"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store provides tenant-scoped staff persistence.
type Store struct {
	Pool *pgxpool.Pool
}

const staffColumns = `id, username, full_name, role, password_hash, active, created_at`

func scanStaff(row pgx.Row) (Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.Username, &s.FullName, &s.Role, &s.PasswordHash, &s.Active, &s.CreatedAt)
	return s, err
}

func tenantFrom(ctx context.Context) (string, error) {
	tid, ok := tenant.From(ctx)
	if !ok {
		return "", errors.New("auth: tenant missing")
	}
	return tid, nil
}

// GetByUsername fetches a staff account by username.
func (s *Store) GetByUsername(ctx context.Context, username string) (Staff, error) {
	if s == nil || s.Pool == nil {
		return Staff{}, errors.New("auth: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Staff{}, err
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE tenant_id = $1 AND username = $2`, tid, username)
	return scanStaff(row)
}

// Get fetches a staff account by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Staff, error) {
	if s == nil || s.Pool == nil {
		return Staff{}, errors.New("auth: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Staff{}, err
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+staffColumns+` FROM staff WHERE tenant_id = $1 AND id = $2`, tid, id)
	return scanStaff(row)
}

// List returns staff accounts, active first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Staff, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("auth: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+staffColumns+` FROM staff WHERE tenant_id = $1 ORDER BY active DESC, username LIMIT $2 OFFSET $3`, tid, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Staff, 0, limit)
	for rows.Next() {
		st, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Create inserts a staff account with an already-hashed password.
func (s *Store) Create(ctx context.Context, st Staff) (Staff, error) {
	if s == nil || s.Pool == nil {
		return Staff{}, errors.New("auth: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Staff{}, err
	}
	row := s.Pool.QueryRow(ctx, `INSERT INTO staff (tenant_id, username, full_name, role, password_hash, active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+staffColumns, tid, st.Username, st.FullName, st.Role, st.PasswordHash, st.Active)
	return scanStaff(row)
}

// SetActive toggles an account without deleting its history.
func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if s == nil || s.Pool == nil {
		return errors.New("auth: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	tag, err := s.Pool.Exec(ctx, `UPDATE staff SET active = $3 WHERE tenant_id = $1 AND id = $2`, tid, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
