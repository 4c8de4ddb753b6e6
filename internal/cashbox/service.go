package cashbox

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warung-ops/backend-warung/internal/events"
	"github.com/warung-ops/backend-warung/internal/obs"
	"github.com/warung-ops/backend-warung/internal/pricing"
)

// SessionStore is the persistence surface the service needs.
type SessionStore interface {
	Open(ctx context.Context, openedBy uuid.UUID, openingFloat pricing.Money, note string) (Session, error)
	Get(ctx context.Context, id uuid.UUID) (Session, error)
	Close(ctx context.Context, id, closedBy uuid.UUID, counted pricing.Money) (Session, error)
	AddEntry(ctx context.Context, e Entry) (Entry, error)
	Entries(ctx context.Context, sessionID uuid.UUID) ([]Entry, error)
}

// Publisher emits domain events.
type Publisher interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// Summary reconciles a session's drawer.
type Summary struct {
	Session   Session       `json:"session"`
	Sales     pricing.Money `json:"sales"`
	Deposits  pricing.Money `json:"deposits"`
	Payouts   pricing.Money `json:"payouts"`
	Expected  pricing.Money `json:"expected"`
	Counted   *int64        `json:"counted,omitempty"`
	Variance  *int64        `json:"variance,omitempty"`
	EntryRows int           `json:"entryCount"`
}

// Service layers drawer reconciliation and event emission over the store.
type Service struct {
	Store  SessionStore
	Bus    Publisher
	Logger zerolog.Logger
}

// Open starts a drawer session for the acting staff member.
func (s *Service) Open(ctx context.Context, openedBy uuid.UUID, openingFloat pricing.Money, note string) (Session, error) {
	return s.Store.Open(ctx, openedBy, openingFloat, note)
}

// AddEntry appends a movement to an open session.
func (s *Service) AddEntry(ctx context.Context, e Entry) (Entry, error) {
	return s.Store.AddEntry(ctx, e)
}

// Close settles the session against the counted amount and emits
// cashbox.closed. The event failing does not undo the close.
func (s *Service) Close(ctx context.Context, id, closedBy uuid.UUID, counted pricing.Money) (Summary, error) {
	if _, err := s.Store.Close(ctx, id, closedBy, counted); err != nil {
		return Summary{}, err
	}
	summary, err := s.Summary(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	if obs.CashboxSessionsTotal != nil {
		obs.CashboxSessionsTotal.Inc()
	}
	if s.Bus != nil {
		if _, err := s.Bus.Emit(ctx, events.TopicCashboxClosed, id, summary); err != nil {
			s.Logger.Error().Err(err).Stringer("session_id", id).Msg("cashbox.closed event failed")
		}
	}
	return summary, nil
}

// Summary computes expected cash from the opening float and entries.
func (s *Service) Summary(ctx context.Context, id uuid.UUID) (Summary, error) {
	sess, err := s.Store.Get(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	entries, err := s.Store.Entries(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Session: sess, EntryRows: len(entries)}
	for _, e := range entries {
		switch e.Kind {
		case KindSale:
			sum.Sales += e.Amount
		case KindDeposit:
			sum.Deposits += e.Amount
		case KindPayout, KindWithdrawal:
			sum.Payouts += e.Amount
		}
	}
	sum.Expected = sess.OpeningFloat + sum.Sales + sum.Deposits - sum.Payouts
	if sess.CountedAmount != nil {
		counted := *sess.CountedAmount
		variance := counted - int64(sum.Expected)
		sum.Counted = &counted
		sum.Variance = &variance
	}
	return sum, nil
}
