package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/sportmatch/internal/client/events"
	"github.com/dmitrijs2005/sportmatch/internal/client/models"
)

// watchEvents prints pushed messages, matches and session/transport
// trouble as they arrive.
func (a *App) watchEvents() {
	if a.bus == nil {
		return
	}
	cancels := []func(){
		a.bus.Subscribe(events.MessageReceived, a.onMessage),
		a.bus.Subscribe(events.MatchFound, a.onMatch),
		a.bus.Subscribe(events.SessionEnded, a.onSessionEnded),
		a.bus.Subscribe(events.TransportUnavailable, a.onTransportUnavailable),
	}

	a.mu.Lock()
	a.unwatch = append(a.unwatch, cancels...)
	a.mu.Unlock()
}

func (a *App) onMessage(ev events.Event) {
	m, ok := ev.Payload.(models.Message)
	if !ok {
		return
	}
	a.printf("\n[chat %d] %d: %s\n", m.ConversationID, m.SenderID, m.Content)
}

func (a *App) onMatch(ev events.Event) {
	n, ok := ev.Payload.(models.MatchNotification)
	if !ok || !a.firstAnnouncement(n.MatchID) {
		return
	}
	msg := n.Message
	if msg == "" {
		msg = "It's a match!"
	}
	a.printf("\n*** %s (match %d)\n", msg, n.MatchID)
}

// firstAnnouncement reports whether matchID has not been printed yet. Zero
// ids are unknown and always printed.
func (a *App) firstAnnouncement(matchID int64) bool {
	if matchID == 0 {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, seen := a.announced[matchID]; seen {
		return false
	}
	if a.announced == nil {
		a.announced = map[int64]struct{}{}
	}
	a.announced[matchID] = struct{}{}
	return true
}

func (a *App) onSessionEnded(ev events.Event) {
	p, _ := ev.Payload.(events.SessionEndedPayload)

	a.mu.Lock()
	a.browsing = false
	a.announced = nil
	a.mu.Unlock()
	if a.cache != nil {
		a.cache.Close()
	}

	if p.Reason == events.ReasonLogout {
		return
	}
	a.printf("\nYour session has ended (%s). Please log in again.\n", p.Reason)
}

func (a *App) onTransportUnavailable(ev events.Event) {
	p, _ := ev.Payload.(events.TransportUnavailablePayload)
	detail := ""
	if p.Err != nil && !errors.Is(p.Err, context.Canceled) {
		detail = ": " + p.Err.Error()
	}
	a.printf("\nRealtime connection lost after %d attempts%s. Type 'connect' to retry.\n", p.Attempts, detail)
}
