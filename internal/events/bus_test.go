package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	inserted []Event
	fail     bool
}

func (m *memStore) Insert(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error) {
	if m.fail {
		return Event{}, errors.New("boom")
	}
	ev := Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload}
	m.inserted = append(m.inserted, ev)
	return ev, nil
}

type recordingNotifier struct {
	events []Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev Event) error {
	n.events = append(n.events, ev)
	return n.err
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	store := &memStore{}
	notifier := &recordingNotifier{}
	bus := &Bus{Store: store, Notifiers: []Notifier{notifier}}

	ev, err := bus.Emit(context.Background(), TopicOrderCreated, uuid.New(), map[string]any{"total": 21000})
	require.NoError(t, err)
	require.Equal(t, TopicOrderCreated, ev.Topic)
	require.Len(t, store.inserted, 1)
	require.Len(t, notifier.events, 1)
}

func TestEmitNotifierFailureIsNotFatal(t *testing.T) {
	store := &memStore{}
	bus := &Bus{Store: store, Notifiers: []Notifier{&recordingNotifier{err: errors.New("sink down")}}}

	_, err := bus.Emit(context.Background(), TopicOrderCreated, uuid.New(), nil)
	require.Error(t, err)
	require.Len(t, store.inserted, 1, "event persists even when a notifier fails")
}

func TestEmitRequiresTopicAndAggregate(t *testing.T) {
	bus := &Bus{Store: &memStore{}}
	if _, err := bus.Emit(context.Background(), " ", uuid.New(), nil); err == nil {
		t.Fatal("expected topic error")
	}
	if _, err := bus.Emit(context.Background(), TopicOrderCreated, uuid.Nil, nil); err == nil {
		t.Fatal("expected aggregate error")
	}
}

func TestEmitRejectsInvalidJSONPayload(t *testing.T) {
	bus := &Bus{Store: &memStore{}}
	_, err := bus.Emit(context.Background(), TopicOrderCreated, uuid.New(), []byte("{nope"))
	require.Error(t, err)
}
