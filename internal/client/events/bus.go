// Package events is the typed publish/subscribe surface through which the
// client core reports what happened to whoever renders it: session ended,
// candidate removed, match found, message received, transport unavailable.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/sportmatch/internal/logging"
)

type Kind string

const (
	SessionEnded         Kind = "session_ended"
	CandidateRemoved     Kind = "candidate_removed"
	MatchFound           Kind = "match_found"
	MessageReceived      Kind = "message_received"
	TransportUnavailable Kind = "transport_unavailable"
)

// Event carries one of the payload types below in Payload.
type Event struct {
	Kind    Kind
	At      time.Time
	Payload any
}

// SessionEndReason tells whether the user asked to leave or the session
// could not be renewed.
type SessionEndReason string

const (
	ReasonLogout         SessionEndReason = "logout"
	ReasonRenewalFailed  SessionEndReason = "renewal_failed"
	ReasonRejectedRetry  SessionEndReason = "rejected_after_renewal"
	ReasonValidationFail SessionEndReason = "validation_failed"
)

type SessionEndedPayload struct {
	Reason SessionEndReason
	Err    error
}

type CandidateRemovedPayload struct {
	UserID      int64
	SportID     int64
	CandidateID int64
}

type TransportUnavailablePayload struct {
	Attempts int
	Err      error
}

// Handler must not block for long; it runs on the publisher's goroutine.
type Handler func(Event)

type subscriber struct {
	id uint64
	h  Handler
}

// Bus fans events out to handlers in subscription order. A panicking
// handler is logged and skipped; the rest still run.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Kind][]subscriber
	log    logging.Logger
}

func NewBus(log logging.Logger) *Bus {
	if log == nil {
		log = logging.Discard()
	}
	return &Bus{subs: make(map[Kind][]subscriber), log: log}
}

// Subscribe registers h for kind. The returned func removes it and is safe
// to call more than once.
func (b *Bus) Subscribe(kind Kind, h Handler) (cancel func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscriber{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[kind]
			for i, s := range list {
				if s.id == id {
					b.subs[kind] = append(list[:i:i], list[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers the event synchronously. A nil Bus drops it.
func (b *Bus) Publish(kind Kind, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	list := append([]subscriber(nil), b.subs[kind]...)
	b.mu.RUnlock()

	ev := Event{Kind: kind, At: time.Now(), Payload: payload}
	for _, s := range list {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s subscriber, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			b.log.Error(context.Background(), "event handler panicked",
				"kind", ev.Kind, "panic", fmt.Sprint(p))
		}
	}()
	s.h(ev)
}
