package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/dmitrijs2005/sportmatch/internal/client/client"
	"github.com/dmitrijs2005/sportmatch/internal/client/config"
	"github.com/dmitrijs2005/sportmatch/internal/client/events"
	"github.com/dmitrijs2005/sportmatch/internal/client/matching"
	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/dmitrijs2005/sportmatch/internal/client/realtime"
	"github.com/dmitrijs2005/sportmatch/internal/client/services"
	"github.com/dmitrijs2005/sportmatch/internal/client/session"
	"github.com/dmitrijs2005/sportmatch/internal/logging"
)

// catalog is the read-only part of the remote API the commands show.
type catalog interface {
	Sports(ctx context.Context) ([]models.Sport, error)
	MyMatches(ctx context.Context) ([]models.Match, error)
}

type candidates interface {
	Load(ctx context.Context, key matching.Key, filters matching.Filters) (matching.Snapshot, error)
	LoadMore(ctx context.Context, key matching.Key) (matching.Snapshot, error)
	RecordDecision(ctx context.Context, key matching.Key, candidateID int64, kind matching.Kind) (matching.Outcome, error)
	Focus(key matching.Key)
	Close()
}

type connection interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Close(ctx context.Context) error
	State() realtime.State
}

type chatter interface {
	Conversations(ctx context.Context) ([]models.Conversation, error)
	History(ctx context.Context, conversationID int64, page, size int) (*models.MessagePage, error)
	Send(ctx context.Context, conversationID int64, content string) (*models.Message, error)
	Join(ctx context.Context, conversationID int64) error
}

type notifier interface {
	Start(userID int64) error
	Stop() error
	Close() error
}

type App struct {
	config *config.Config
	log    logging.Logger
	out    io.Writer
	reader *bufio.Reader

	repos       *client.Repositories
	store       session.Reader
	bus         *events.Bus
	api         catalog
	authService services.AuthService
	cache       candidates
	rt          connection
	chat        chatter
	notifier    notifier

	mu       sync.Mutex
	key      matching.Key
	browsing bool
	unwatch  []func()
	// announced holds match ids already printed; a like that creates a
	// match is reported both locally and by the server push.
	announced map[int64]struct{}
}

// NewApp wires the local database, the credential store, the HTTP gateway,
// the realtime transport and the services on top of them.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := c.Logger()

	repos, err := client.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	storeOpts := []session.Option{session.WithLogger(log)}
	if c.StoreSecret != "" {
		storeOpts = append(storeOpts, session.WithPersister(session.NewSQLitePersister(repos.DB, []byte(c.StoreSecret))))
	} else {
		log.Info(ctx, "no store secret configured, session will not survive restarts")
		if n, err := session.Purge(ctx, repos.Metadata); err != nil {
			log.Warn(ctx, "failed to purge persisted session", "error", err)
		} else if n > 0 {
			log.Info(ctx, "purged previously persisted session", "keys", n)
		}
	}
	store := session.NewStore(storeOpts...)
	bus := events.NewBus(log)

	gw := client.NewGateway(c.APIBaseURL, store, bus,
		client.WithLogger(log),
		client.WithHTTPClient(&http.Client{Timeout: c.RequestTimeout}),
	)
	api := client.NewAPI(gw)

	rt := realtime.New(realtime.Config{
		URL:               c.RealtimeURL,
		BaseDelay:         c.ReconnectBaseDelay,
		MaxDelay:          c.ReconnectMaxDelay,
		MaxAttempts:       c.ReconnectMaxAttempts,
		HeartbeatOutgoing: c.HeartbeatOutgoing,
		HeartbeatIncoming: c.HeartbeatIncoming,
	}, store, bus, realtime.WithLogger(log))

	cache := matching.NewCache(api, bus,
		matching.WithLogger(log),
		matching.WithDefaults(matching.Filters{PageSize: c.PageSize, MaxDistanceKm: c.MaxDistanceKm}),
	)

	return &App{
		config:      c,
		log:         log,
		out:         os.Stdout,
		reader:      bufio.NewReader(os.Stdin),
		repos:       repos,
		store:       store,
		bus:         bus,
		api:         api,
		authService: services.NewAuthService(api, store, bus, c.Policy(), log),
		cache:       cache,
		rt:          rt,
		chat:        services.NewChatService(api, rt, log),
		notifier:    services.NewNotificationService(rt, bus, log),
	}, nil
}

// Run restores a saved session, then serves the REPL until the user exits
// or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	defer a.Close(context.WithoutCancel(ctx))

	a.println("Welcome to SportMatch CLI (type 'help' for commands)")
	a.watchEvents()

	restored, err := a.authService.Restore(ctx)
	if err != nil {
		a.log.Warn(ctx, "could not restore session", "error", err)
	}
	if restored {
		if valid, _ := a.authService.Validate(ctx); valid {
			a.println("Session restored.")
			a.goOnline(ctx)
		}
	}

	runREPL(ctx, a, a.getStatus, a.reader)
}

// Close releases everything NewApp opened, in reverse order.
func (a *App) Close(ctx context.Context) {
	a.mu.Lock()
	unwatch := a.unwatch
	a.unwatch = nil
	a.mu.Unlock()
	for _, fn := range unwatch {
		fn()
	}

	if a.notifier != nil {
		if err := a.notifier.Close(); err != nil {
			a.log.Warn(ctx, "notifications close", "error", err)
		}
	}
	if a.rt != nil {
		if err := a.rt.Close(ctx); err != nil {
			a.log.Warn(ctx, "realtime close", "error", err)
		}
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.repos != nil {
		if err := a.repos.Close(); err != nil {
			a.log.Warn(ctx, "database close", "error", err)
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.store != nil && a.store.IsAuthenticated()
}

func (a *App) currentUser() (models.User, bool) {
	if a.store == nil {
		return models.User{}, false
	}
	return a.store.User()
}

func (a *App) getStatus() string {
	u, ok := a.currentUser()
	if !ok {
		return "(anonymous)"
	}
	name := u.Email
	if name == "" {
		name = fmt.Sprintf("user %d", u.ID)
	}
	state := realtime.Disconnected
	if a.rt != nil {
		state = a.rt.State()
	}
	return fmt.Sprintf("(%s %s)", name, state)
}

// goOnline connects the realtime transport and subscribes to the user's
// push topics. Failures are reported but never block the session.
func (a *App) goOnline(ctx context.Context) {
	u, ok := a.currentUser()
	if !ok {
		return
	}
	if err := a.notifier.Start(u.ID); err != nil {
		a.printf("Notifications unavailable: %v\n", err)
	}
	if err := a.rt.Connect(ctx); err != nil {
		a.printf("Realtime connection failed: %v\n", err)
	}
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
