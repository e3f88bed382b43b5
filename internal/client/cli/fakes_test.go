package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/dmitrijs2005/sportmatch/internal/client/events"
	"github.com/dmitrijs2005/sportmatch/internal/client/matching"
	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/dmitrijs2005/sportmatch/internal/client/realtime"
	"github.com/dmitrijs2005/sportmatch/internal/client/session"
	"github.com/dmitrijs2005/sportmatch/internal/logging"
)

// ------------ helpers ------------

func stubInputs(t *testing.T, answers []string, password []byte) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	i := 0
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) {
		if i >= len(answers) {
			return "", io.EOF
		}
		i++
		return answers[i-1], nil
	}
	getPassword = func(_ io.Writer) ([]byte, error) { return append([]byte(nil), password...), nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}

type testApp struct {
	*App
	out      *bytes.Buffer
	store    *session.Store
	auth     *fakeAuth
	cache    *fakeCache
	rt       *fakeConn
	chat     *fakeChat
	notifier *fakeNotifier
	api      *fakeCatalog
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	out := &bytes.Buffer{}
	store := session.NewStore()
	bus := events.NewBus(nil)
	ta := &testApp{
		out:      out,
		store:    store,
		auth:     &fakeAuth{store: store},
		cache:    &fakeCache{},
		rt:       &fakeConn{},
		chat:     &fakeChat{},
		notifier: &fakeNotifier{},
		api:      &fakeCatalog{},
	}
	ta.App = &App{
		log:         logging.Discard(),
		out:         out,
		reader:      rdr(""),
		store:       store,
		bus:         bus,
		api:         ta.api,
		authService: ta.auth,
		cache:       ta.cache,
		rt:          ta.rt,
		chat:        ta.chat,
		notifier:    ta.notifier,
	}
	return ta
}

func (ta *testApp) login(t *testing.T) {
	t.Helper()
	err := ta.store.Install(context.Background(),
		session.Credential{AccessToken: "a", RefreshToken: "r"},
		models.User{ID: 7, Email: "alice@example.org", FirstName: "Alice"})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
}

// ------------ fakes ------------

type fakeAuth struct {
	store *session.Store

	loginEmail string
	loginPass  []byte
	loginErr   error

	regReq  models.RegisterRequest
	regPass []byte
	regErr  error

	logoutCalled bool
	valid        bool
	validErr     error
	restored     bool
}

func (f *fakeAuth) Login(ctx context.Context, email string, pw []byte) (models.User, error) {
	f.loginEmail, f.loginPass = email, append([]byte(nil), pw...)
	if f.loginErr != nil {
		return models.User{}, f.loginErr
	}
	u := models.User{ID: 7, Email: email}
	_ = f.store.Install(ctx, session.Credential{AccessToken: "a", RefreshToken: "r"}, u)
	return u, nil
}

func (f *fakeAuth) Register(ctx context.Context, req models.RegisterRequest, pw []byte) (models.User, error) {
	f.regReq, f.regPass = req, append([]byte(nil), pw...)
	if f.regErr != nil {
		return models.User{}, f.regErr
	}
	u := models.User{ID: 8, Email: req.Email, FirstName: req.FirstName, LastName: req.LastName}
	_ = f.store.Install(ctx, session.Credential{AccessToken: "a", RefreshToken: "r"}, u)
	return u, nil
}

func (f *fakeAuth) Logout(ctx context.Context) error {
	f.logoutCalled = true
	f.store.Clear(ctx)
	return nil
}

func (f *fakeAuth) Validate(context.Context) (bool, error) { return f.valid, f.validErr }
func (f *fakeAuth) Restore(context.Context) (bool, error)  { return f.restored, nil }

type fakeCache struct {
	focused  []matching.Key
	loadKey  matching.Key
	filters  matching.Filters
	snap     matching.Snapshot
	err      error
	decided  []int64
	kinds    []matching.Kind
	outcome  matching.Outcome
	closed   int
	moreKeys []matching.Key
}

func (f *fakeCache) Load(_ context.Context, key matching.Key, filters matching.Filters) (matching.Snapshot, error) {
	f.loadKey, f.filters = key, filters
	return f.snap, f.err
}

func (f *fakeCache) LoadMore(_ context.Context, key matching.Key) (matching.Snapshot, error) {
	f.moreKeys = append(f.moreKeys, key)
	return f.snap, f.err
}

func (f *fakeCache) RecordDecision(_ context.Context, _ matching.Key, id int64, kind matching.Kind) (matching.Outcome, error) {
	f.decided = append(f.decided, id)
	f.kinds = append(f.kinds, kind)
	return f.outcome, f.err
}

func (f *fakeCache) Focus(key matching.Key) { f.focused = append(f.focused, key) }
func (f *fakeCache) Close()                 { f.closed++ }

type fakeConn struct {
	state       realtime.State
	connects    int
	disconnects int
	closed      bool
}

func (f *fakeConn) Connect(context.Context) error {
	f.connects++
	f.state = realtime.Connected
	return nil
}

func (f *fakeConn) Disconnect(context.Context) error {
	f.disconnects++
	f.state = realtime.Disconnected
	return nil
}

func (f *fakeConn) Close(context.Context) error { f.closed = true; return nil }
func (f *fakeConn) State() realtime.State       { return f.state }

type fakeChat struct {
	convs    []models.Conversation
	page     *models.MessagePage
	histArgs [3]int64
	sentTo   int64
	sentText string
	sendResp *models.Message
	joinErr  error
	joined   int64
}

func (f *fakeChat) Conversations(context.Context) ([]models.Conversation, error) { return f.convs, nil }

func (f *fakeChat) History(_ context.Context, id int64, page, size int) (*models.MessagePage, error) {
	f.histArgs = [3]int64{id, int64(page), int64(size)}
	if f.page == nil {
		return &models.MessagePage{}, nil
	}
	return f.page, nil
}

func (f *fakeChat) Send(_ context.Context, id int64, text string) (*models.Message, error) {
	f.sentTo, f.sentText = id, text
	return f.sendResp, nil
}

func (f *fakeChat) Join(_ context.Context, id int64) error {
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joined = id
	return nil
}

type fakeNotifier struct {
	started []int64
	stopped int
	closed  bool
}

func (f *fakeNotifier) Start(id int64) error { f.started = append(f.started, id); return nil }
func (f *fakeNotifier) Stop() error          { f.stopped++; return nil }
func (f *fakeNotifier) Close() error         { f.closed = true; return nil }

type fakeCatalog struct {
	sports  []models.Sport
	matches []models.Match
	err     error
}

func (f *fakeCatalog) Sports(context.Context) ([]models.Sport, error)   { return f.sports, f.err }
func (f *fakeCatalog) MyMatches(context.Context) ([]models.Match, error) { return f.matches, f.err }
