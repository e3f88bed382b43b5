package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/sportmatch/internal/client/events"
	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/dmitrijs2005/sportmatch/internal/client/realtime"
	"github.com/dmitrijs2005/sportmatch/internal/logging"
)

// Subscriber is the part of realtime.Transport the push bridge needs.
type Subscriber interface {
	Subscribe(topic string, h realtime.Handler) (realtime.Handle, error)
	Unsubscribe(h realtime.Handle) error
}

// NotificationService turns the per-user push topics into bus events:
// chat messages become MessageReceived, match notifications MatchFound.
// It unsubscribes by itself when the session ends.
type NotificationService struct {
	rt  Subscriber
	bus *events.Bus
	log logging.Logger

	mu      sync.Mutex
	userID  int64
	handles []realtime.Handle

	stopBus func()
}

func NewNotificationService(rt Subscriber, bus *events.Bus, log logging.Logger) *NotificationService {
	if log == nil {
		log = logging.Discard()
	}
	n := &NotificationService{rt: rt, bus: bus, log: log}
	n.stopBus = bus.Subscribe(events.SessionEnded, func(events.Event) {
		if err := n.Stop(); err != nil {
			n.log.Warn(context.Background(), "unsubscribe after session end", "error", err)
		}
	})
	return n
}

// Start subscribes to userID's topics. Starting again for the same user is
// a no-op; a different user replaces the previous subscriptions.
func (n *NotificationService) Start(userID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.handles) > 0 {
		if n.userID == userID {
			return nil
		}
		if err := n.unsubscribeLocked(); err != nil {
			return err
		}
	}

	msgs, err := n.rt.Subscribe(realtime.MessagesTopic(userID), n.onMessage)
	if err != nil {
		return fmt.Errorf("subscribe messages: %w", err)
	}
	matches, err := n.rt.Subscribe(realtime.MatchesTopic(userID), n.onMatch)
	if err != nil {
		_ = n.rt.Unsubscribe(msgs)
		return fmt.Errorf("subscribe matches: %w", err)
	}
	n.userID = userID
	n.handles = []realtime.Handle{msgs, matches}
	return nil
}

func (n *NotificationService) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unsubscribeLocked()
}

// Close stops the bridge and detaches it from the bus.
func (n *NotificationService) Close() error {
	n.stopBus()
	return n.Stop()
}

func (n *NotificationService) unsubscribeLocked() error {
	var errs []error
	for _, h := range n.handles {
		if err := n.rt.Unsubscribe(h); err != nil {
			errs = append(errs, err)
		}
	}
	n.handles = nil
	n.userID = 0
	return errors.Join(errs...)
}

func (n *NotificationService) onMessage(m realtime.Message) error {
	var msg models.Message
	if err := json.Unmarshal(m.Body, &msg); err != nil {
		return fmt.Errorf("decode chat message: %w", err)
	}
	n.bus.Publish(events.MessageReceived, msg)
	return nil
}

func (n *NotificationService) onMatch(m realtime.Message) error {
	var note models.MatchNotification
	if err := json.Unmarshal(m.Body, &note); err != nil {
		return fmt.Errorf("decode match notification: %w", err)
	}
	n.bus.Publish(events.MatchFound, note)
	return nil
}
