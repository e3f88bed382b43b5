package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/sportmatch/internal/client/events"
	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/dmitrijs2005/sportmatch/internal/client/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	mu           sync.Mutex
	handlers     map[string]realtime.Handler
	topics       []string
	unsubscribed int
	failTopic    string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: map[string]realtime.Handler{}}
}

func (f *fakeSubscriber) Subscribe(topic string, h realtime.Handler) (realtime.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if topic == f.failTopic {
		return realtime.Handle{}, errors.New("boom")
	}
	f.handlers[topic] = h
	f.topics = append(f.topics, topic)
	return realtime.Handle{}, nil
}

func (f *fakeSubscriber) Unsubscribe(realtime.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed++
	return nil
}

func (f *fakeSubscriber) deliver(t *testing.T, topic, body string) error {
	t.Helper()
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	require.NotNil(t, h, "no handler for %s", topic)
	return h(realtime.Message{Topic: topic, Body: []byte(body)})
}

func TestNotificationService_BridgesTopicsToBus(t *testing.T) {
	rt := newFakeSubscriber()
	bus := events.NewBus(nil)
	n := NewNotificationService(rt, bus, nil)
	t.Cleanup(func() { _ = n.Close() })

	var got []events.Event
	bus.Subscribe(events.MessageReceived, func(ev events.Event) { got = append(got, ev) })
	bus.Subscribe(events.MatchFound, func(ev events.Event) { got = append(got, ev) })

	require.NoError(t, n.Start(7))
	assert.Equal(t, []string{"/user/7/queue/messages", "/user/7/queue/matches"}, rt.topics)

	require.NoError(t, rt.deliver(t, "/user/7/queue/messages", `{"id":1,"conversationId":3,"senderId":9,"content":"hi","messageType":"TEXT"}`))
	require.NoError(t, rt.deliver(t, "/user/7/queue/matches", `{"matchId":44,"sportId":2,"message":"It's a match"}`))

	require.Len(t, got, 2)
	assert.Equal(t, events.MessageReceived, got[0].Kind)
	assert.Equal(t, models.Message{ID: 1, ConversationID: 3, SenderID: 9, Content: "hi", MessageType: models.MessageTypeText}, got[0].Payload)
	assert.Equal(t, events.MatchFound, got[1].Kind)
	assert.Equal(t, models.MatchNotification{MatchID: 44, SportID: 2, Message: "It's a match"}, got[1].Payload)
}

func TestNotificationService_BadPayload(t *testing.T) {
	rt := newFakeSubscriber()
	bus := events.NewBus(nil)
	n := NewNotificationService(rt, bus, nil)
	t.Cleanup(func() { _ = n.Close() })

	published := 0
	bus.Subscribe(events.MessageReceived, func(events.Event) { published++ })

	require.NoError(t, n.Start(1))
	require.Error(t, rt.deliver(t, "/user/1/queue/messages", `not json`))
	assert.Zero(t, published)
}

func TestNotificationService_StartIsIdempotentPerUser(t *testing.T) {
	rt := newFakeSubscriber()
	n := NewNotificationService(rt, events.NewBus(nil), nil)
	t.Cleanup(func() { _ = n.Close() })

	require.NoError(t, n.Start(1))
	require.NoError(t, n.Start(1))
	assert.Len(t, rt.topics, 2)

	require.NoError(t, n.Start(2))
	assert.Equal(t, 2, rt.unsubscribed)
	assert.Equal(t, []string{"/user/2/queue/messages", "/user/2/queue/matches"}, rt.topics[2:])
}

func TestNotificationService_StopsOnSessionEnd(t *testing.T) {
	rt := newFakeSubscriber()
	bus := events.NewBus(nil)
	n := NewNotificationService(rt, bus, nil)
	t.Cleanup(func() { _ = n.Close() })

	require.NoError(t, n.Start(1))
	bus.Publish(events.SessionEnded, events.SessionEndedPayload{Reason: events.ReasonLogout})
	assert.Equal(t, 2, rt.unsubscribed)

	require.NoError(t, n.Start(1))
	assert.Len(t, rt.topics, 4, "a new session subscribes again")
}

func TestNotificationService_PartialSubscribeRollsBack(t *testing.T) {
	rt := newFakeSubscriber()
	rt.failTopic = "/user/1/queue/matches"
	n := NewNotificationService(rt, events.NewBus(nil), nil)
	t.Cleanup(func() { _ = n.Close() })

	require.Error(t, n.Start(1))
	assert.Equal(t, 1, rt.unsubscribed)
}
