// Package cashbox tracks cash drawer sessions and the money that moves
// through them during a shift.
package cashbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warung-ops/backend-warung/internal/pricing"
	"github.com/warung-ops/backend-warung/internal/tenant"
)

// Session lifecycle.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// Entry kinds. Sales and deposits add to the drawer, payouts and
// withdrawals take from it.
const (
	KindSale       = "sale"
	KindPayout     = "payout"
	KindDeposit    = "deposit"
	KindWithdrawal = "withdrawal"
)

// ErrSessionClosed is returned when appending to or closing an already
// closed session.
var ErrSessionClosed = errors.New("cashbox: session already closed")

// Session is one cash drawer shift.
type Session struct {
	ID            uuid.UUID     `json:"id"`
	Status        string        `json:"status"`
	OpenedBy      uuid.UUID     `json:"openedBy"`
	ClosedBy      *uuid.UUID    `json:"closedBy,omitempty"`
	OpeningFloat  pricing.Money `json:"openingFloat"`
	CountedAmount *int64        `json:"countedAmount,omitempty"`
	Note          string        `json:"note,omitempty"`
	OpenedAt      time.Time     `json:"openedAt"`
	ClosedAt      *time.Time    `json:"closedAt,omitempty"`
}

// Entry is one movement of cash in or out of the drawer.
type Entry struct {
	ID        uuid.UUID     `json:"id"`
	SessionID uuid.UUID     `json:"sessionId"`
	Kind      string        `json:"kind"`
	Amount    pricing.Money `json:"amount"`
	Reference string        `json:"reference,omitempty"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Store provides tenant-scoped cash session persistence.
type Store struct {
	Pool *pgxpool.Pool
}

const sessionColumns = `id, status, opened_by, closed_by, opening_float, counted_amount, note, opened_at, closed_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.Status, &s.OpenedBy, &s.ClosedBy, &s.OpeningFloat, &s.CountedAmount, &s.Note, &s.OpenedAt, &s.ClosedAt)
	return s, err
}

func tenantFrom(ctx context.Context) (string, error) {
	tid, ok := tenant.From(ctx)
	if !ok {
		return "", errors.New("cashbox: tenant missing")
	}
	return tid, nil
}

// Open starts a new session with the given float.
func (s *Store) Open(ctx context.Context, openedBy uuid.UUID, openingFloat pricing.Money, note string) (Session, error) {
	if s == nil || s.Pool == nil {
		return Session{}, errors.New("cashbox: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Session{}, err
	}
	row := s.Pool.QueryRow(ctx, `INSERT INTO cash_sessions (tenant_id, opened_by, opening_float, note)
VALUES ($1, $2, $3, $4)
RETURNING `+sessionColumns, tid, openedBy, openingFloat, note)
	return scanSession(row)
}

// Get fetches one session.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	if s == nil || s.Pool == nil {
		return Session{}, errors.New("cashbox: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Session{}, err
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM cash_sessions WHERE tenant_id = $1 AND id = $2`, tid, id)
	return scanSession(row)
}

// Close marks the session closed with the counted drawer amount. Only an
// open session can be closed, enforced in the WHERE clause.
func (s *Store) Close(ctx context.Context, id, closedBy uuid.UUID, counted pricing.Money) (Session, error) {
	if s == nil || s.Pool == nil {
		return Session{}, errors.New("cashbox: store unavailable")
	}
	tid, err := tenantFrom(ctx)
	if err != nil {
		return Session{}, err
	}
	row := s.Pool.QueryRow(ctx, `UPDATE cash_sessions
SET status = 'closed', closed_by = $3, counted_amount = $4, closed_at = now()
WHERE tenant_id = $1 AND id = $2 AND status = 'open'
RETURNING `+sessionColumns, tid, id, closedBy, int64(counted))
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish missing from already closed.
		if _, getErr := s.Get(ctx, id); getErr == nil {
			return Session{}, ErrSessionClosed
		}
		return Session{}, pgx.ErrNoRows
	}
	return sess, err
}

// AddEntry appends a cash movement to an open session.
func (s *Store) AddEntry(ctx context.Context, e Entry) (Entry, error) {
	if s == nil || s.Pool == nil {
		return Entry{}, errors.New("cashbox: store unavailable")
	}
	sess, err := s.Get(ctx, e.SessionID)
	if err != nil {
		return Entry{}, err
	}
	if sess.Status != StatusOpen {
		return Entry{}, ErrSessionClosed
	}
	row := s.Pool.QueryRow(ctx, `INSERT INTO cash_entries (session_id, kind, amount, reference, note)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, session_id, kind, amount, reference, note, created_at`,
		e.SessionID, e.Kind, e.Amount, e.Reference, e.Note)
	var stored Entry
	err = row.Scan(&stored.ID, &stored.SessionID, &stored.Kind, &stored.Amount, &stored.Reference, &stored.Note, &stored.CreatedAt)
	return stored, err
}

// Entries lists a session's movements oldest first.
func (s *Store) Entries(ctx context.Context, sessionID uuid.UUID) ([]Entry, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("cashbox: store unavailable")
	}
	if _, err := s.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT id, session_id, kind, amount, reference, note, created_at
FROM cash_entries WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Amount, &e.Reference, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
