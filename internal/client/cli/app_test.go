package cli

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/sportmatch/internal/client/client"
	"github.com/dmitrijs2005/sportmatch/internal/client/config"
	"github.com/dmitrijs2005/sportmatch/internal/client/events"
	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/dmitrijs2005/sportmatch/internal/client/realtime"
	"github.com/dmitrijs2005/sportmatch/internal/client/session"
)

func TestIsLoggedIn(t *testing.T) {
	app := &App{}
	if app.isLoggedIn() {
		t.Fatalf("expected isLoggedIn() == false without a store")
	}

	ta := newTestApp(t)
	if ta.isLoggedIn() {
		t.Fatalf("expected isLoggedIn() == false before login")
	}
	ta.login(t)
	if !ta.isLoggedIn() {
		t.Fatalf("expected isLoggedIn() == true after login")
	}
}

func TestGetStatus(t *testing.T) {
	ta := newTestApp(t)
	if got := ta.getStatus(); got != "(anonymous)" {
		t.Fatalf("status: %q", got)
	}

	ta.login(t)
	ta.rt.state = realtime.Connected
	if got := ta.getStatus(); got != "(alice@example.org connected)" {
		t.Fatalf("status: %q", got)
	}
}

func TestWatchEvents_PrintsPushedEvents(t *testing.T) {
	ta := newTestApp(t)
	ta.watchEvents()

	ta.bus.Publish(events.MessageReceived, models.Message{ConversationID: 3, SenderID: 9, Content: "hi"})
	ta.bus.Publish(events.MatchFound, models.MatchNotification{MatchID: 44})
	ta.bus.Publish(events.TransportUnavailable, events.TransportUnavailablePayload{Attempts: 5, Err: errors.New("refused")})

	out := ta.out.String()
	for _, want := range []string{"[chat 3] 9: hi", "It's a match! (match 44)", "after 5 attempts: refused"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q lacks %q", out, want)
		}
	}
}

func TestWatchEvents_MatchPrintedOnce(t *testing.T) {
	ta := newTestApp(t)
	ta.watchEvents()

	ta.bus.Publish(events.MatchFound, models.MatchNotification{MatchID: 7, UserID: 2, Message: "It's a match!"})
	ta.bus.Publish(events.MatchFound, models.MatchNotification{MatchID: 7})
	ta.bus.Publish(events.MatchFound, models.MatchNotification{MatchID: 8})

	out := ta.out.String()
	if n := strings.Count(out, "(match 7)"); n != 1 {
		t.Fatalf("match 7 printed %d times: %q", n, out)
	}
	if !strings.Contains(out, "(match 8)") {
		t.Fatalf("match 8 missing: %q", out)
	}
}

func TestWatchEvents_SessionEnded(t *testing.T) {
	ta := newTestApp(t)
	ta.watchEvents()
	ta.browsing = true

	ta.bus.Publish(events.SessionEnded, events.SessionEndedPayload{Reason: events.ReasonLogout})
	if ta.out.Len() != 0 {
		t.Fatalf("logout must be quiet, got %q", ta.out.String())
	}
	if ta.browsing || ta.cache.closed != 1 {
		t.Fatalf("browse state not reset")
	}

	ta.bus.Publish(events.SessionEnded, events.SessionEndedPayload{Reason: events.ReasonRenewalFailed})
	if !strings.Contains(ta.out.String(), "log in again") {
		t.Fatalf("missing relogin hint: %q", ta.out.String())
	}
}

func TestClose_ReleasesEverything(t *testing.T) {
	ta := newTestApp(t)
	ta.watchEvents()
	ta.Close(context.Background())

	if !ta.notifier.closed || !ta.rt.closed || ta.cache.closed != 1 {
		t.Fatalf("not all closed: notifier=%v rt=%v cache=%d", ta.notifier.closed, ta.rt.closed, ta.cache.closed)
	}

	ta.bus.Publish(events.MatchFound, models.MatchNotification{MatchID: 1})
	if ta.out.Len() != 0 {
		t.Fatalf("events printed after Close: %q", ta.out.String())
	}
}

func TestRun_RestoresValidSession(t *testing.T) {
	silence(t)
	ta := newTestApp(t)
	ta.login(t)
	ta.auth.restored = true
	ta.auth.valid = true

	ta.Run(context.Background())

	if len(ta.notifier.started) != 1 || ta.notifier.started[0] != 7 {
		t.Fatalf("notifications not started: %v", ta.notifier.started)
	}
	if ta.rt.connects != 1 {
		t.Fatalf("transport not connected")
	}
	if !ta.rt.closed {
		t.Fatalf("Run must close the app on exit")
	}
}

func TestNewApp_WithoutSecretPurgesPersistedSession(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "app.db")

	repos, err := client.InitDatabase(ctx, dsn)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	p := session.NewSQLitePersister(repos.DB, []byte("old-secret"))
	if err := p.Save(ctx, session.Snapshot{Credential: session.Credential{AccessToken: "a", RefreshToken: "r"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = repos.Close()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DatabaseDSN = dsn
	cfg.LogLevel = "error"

	app, err := NewApp(ctx, cfg)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	defer app.Close(ctx)

	left, err := app.repos.Metadata.List(ctx, "session.")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("persisted session kept: %v", left)
	}
}
