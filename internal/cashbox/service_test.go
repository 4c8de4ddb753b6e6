package cashbox

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/warung-ops/backend-warung/internal/events"
	"github.com/warung-ops/backend-warung/internal/pricing"
)

type memSessions struct {
	sessions map[uuid.UUID]Session
	entries  map[uuid.UUID][]Entry
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[uuid.UUID]Session{}, entries: map[uuid.UUID][]Entry{}}
}

func (m *memSessions) Open(_ context.Context, openedBy uuid.UUID, openingFloat pricing.Money, note string) (Session, error) {
	s := Session{ID: uuid.New(), Status: StatusOpen, OpenedBy: openedBy, OpeningFloat: openingFloat, Note: note}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memSessions) Get(_ context.Context, id uuid.UUID) (Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *memSessions) Close(_ context.Context, id, closedBy uuid.UUID, counted pricing.Money) (Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, pgx.ErrNoRows
	}
	if s.Status != StatusOpen {
		return Session{}, ErrSessionClosed
	}
	amount := int64(counted)
	s.Status = StatusClosed
	s.ClosedBy = &closedBy
	s.CountedAmount = &amount
	m.sessions[id] = s
	return s, nil
}

func (m *memSessions) AddEntry(_ context.Context, e Entry) (Entry, error) {
	s, ok := m.sessions[e.SessionID]
	if !ok {
		return Entry{}, pgx.ErrNoRows
	}
	if s.Status != StatusOpen {
		return Entry{}, ErrSessionClosed
	}
	e.ID = uuid.New()
	m.entries[e.SessionID] = append(m.entries[e.SessionID], e)
	return e, nil
}

func (m *memSessions) Entries(_ context.Context, sessionID uuid.UUID) ([]Entry, error) {
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, pgx.ErrNoRows
	}
	return m.entries[sessionID], nil
}

type memBus struct{ emitted []string }

func (b *memBus) Emit(_ context.Context, topic string, aggregateID uuid.UUID, _ any) (events.Event, error) {
	b.emitted = append(b.emitted, topic)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID}, nil
}

func TestCloseComputesVarianceAndEmits(t *testing.T) {
	store := newMemSessions()
	bus := &memBus{}
	svc := &Service{Store: store, Bus: bus, Logger: zerolog.Nop()}
	staff := uuid.New()

	sess, err := svc.Open(context.Background(), staff, 50_000, "pagi")
	require.NoError(t, err)

	for _, e := range []Entry{
		{SessionID: sess.ID, Kind: KindSale, Amount: 120_000},
		{SessionID: sess.ID, Kind: KindSale, Amount: 30_000},
		{SessionID: sess.ID, Kind: KindPayout, Amount: 20_000, Note: "beli gas"},
		{SessionID: sess.ID, Kind: KindDeposit, Amount: 10_000},
	} {
		_, err := svc.AddEntry(context.Background(), e)
		require.NoError(t, err)
	}

	// expected = 50000 + 150000 + 10000 - 20000 = 190000
	summary, err := svc.Close(context.Background(), sess.ID, staff, 185_000)
	require.NoError(t, err)
	require.Equal(t, pricing.Money(190_000), summary.Expected)
	require.NotNil(t, summary.Variance)
	require.Equal(t, int64(-5_000), *summary.Variance)
	require.Equal(t, []string{events.TopicCashboxClosed}, bus.emitted)
}

func TestCloseTwiceRejected(t *testing.T) {
	store := newMemSessions()
	svc := &Service{Store: store, Logger: zerolog.Nop()}
	staff := uuid.New()

	sess, err := svc.Open(context.Background(), staff, 0, "")
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), sess.ID, staff, 0)
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), sess.ID, staff, 0)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestEntryOnClosedSessionRejected(t *testing.T) {
	store := newMemSessions()
	svc := &Service{Store: store, Logger: zerolog.Nop()}
	staff := uuid.New()

	sess, err := svc.Open(context.Background(), staff, 0, "")
	require.NoError(t, err)
	_, err = svc.Close(context.Background(), sess.ID, staff, 0)
	require.NoError(t, err)
	_, err = svc.AddEntry(context.Background(), Entry{SessionID: sess.ID, Kind: KindSale, Amount: 1000})
	require.ErrorIs(t, err, ErrSessionClosed)
}
