package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	b := NewBus(nil)
	var got []string

	b.Subscribe(MatchFound, func(Event) { got = append(got, "first") })
	b.Subscribe(MatchFound, func(Event) { got = append(got, "second") })
	b.Subscribe(MessageReceived, func(Event) { got = append(got, "other-kind") })

	b.Publish(MatchFound, nil)

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	b := NewBus(nil)
	delivered := false

	b.Subscribe(SessionEnded, func(Event) { panic("boom") })
	b.Subscribe(SessionEnded, func(ev Event) {
		p, ok := ev.Payload.(SessionEndedPayload)
		require.True(t, ok)
		assert.Equal(t, ReasonRenewalFailed, p.Reason)
		delivered = true
	})

	require.NotPanics(t, func() {
		b.Publish(SessionEnded, SessionEndedPayload{Reason: ReasonRenewalFailed, Err: errors.New("x")})
	})
	assert.True(t, delivered)
}

func TestBus_CancelRemovesOnlyThatHandler(t *testing.T) {
	b := NewBus(nil)
	var a, c int

	cancelA := b.Subscribe(CandidateRemoved, func(Event) { a++ })
	b.Subscribe(CandidateRemoved, func(Event) { c++ })

	b.Publish(CandidateRemoved, CandidateRemovedPayload{CandidateID: 1})
	cancelA()
	cancelA()
	b.Publish(CandidateRemoved, CandidateRemovedPayload{CandidateID: 2})

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, c)
}

func TestBus_NilBusPublishIsNoop(t *testing.T) {
	var b *Bus
	require.NotPanics(t, func() { b.Publish(TransportUnavailable, nil) })
}
