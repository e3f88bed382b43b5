package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmitrijs2005/sportmatch/internal/client/events"
	"github.com/dmitrijs2005/sportmatch/internal/client/session"
	"github.com/dmitrijs2005/sportmatch/internal/common"
	"github.com/dmitrijs2005/sportmatch/internal/logging"
	"github.com/google/uuid"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrNotConnected         = errors.New("realtime transport not connected")
	ErrTransportUnavailable = errors.New("realtime transport unavailable")
	ErrHeartbeatTimeout     = errors.New("heartbeat timeout")
	ErrNoCredential         = errors.New("no credential for realtime connection")
)

// FrameError is a STOMP ERROR frame sent by the server.
type FrameError struct {
	Message string
	Body    string
}

func (e *FrameError) Error() string {
	if e.Body == "" {
		return "stomp error: " + e.Message
	}
	return fmt.Sprintf("stomp error: %s: %s", e.Message, e.Body)
}

// Message is an inbound MESSAGE frame routed to a topic.
type Message struct {
	Topic  string
	Header Header
	Body   []byte
}

// Handler processes one inbound message. An error or panic is logged and
// does not affect other handlers.
type Handler func(Message) error

// Handle identifies one Subscribe call.
type Handle struct {
	id    string
	topic string
}

func (h Handle) Topic() string { return h.topic }

type Config struct {
	URL               string
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	MaxAttempts       int
	HeartbeatOutgoing time.Duration
	HeartbeatIncoming time.Duration
	ConnectTimeout    time.Duration
	WriteTimeout      time.Duration
}

func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		MaxAttempts:       5,
		HeartbeatOutgoing: 4 * time.Second,
		HeartbeatIncoming: 4 * time.Second,
		ConnectTimeout:    10 * time.Second,
		WriteTimeout:      5 * time.Second,
	}
}

// withDefaults fills unset delays and timeouts. Heartbeats stay as given;
// zero disables them.
func (c Config) withDefaults() Config {
	d := DefaultConfig(c.URL)
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = max(d.MaxDelay, c.BaseDelay)
	}
	if c.MaxAttempts < 0 {
		c.MaxAttempts = 0
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}

type subscription struct {
	id      string
	topic   string
	handler Handler
}

type heartbeat struct {
	out, in time.Duration
}

// Transport keeps one STOMP connection alive and owns the subscription
// registry. Subscriptions outlive connections: every (re)connect
// registers each subscribed topic once with the server.
type Transport struct {
	cfg    Config
	dialer Dialer
	creds  session.Reader
	bus    *events.Bus
	log    logging.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	state   State
	changed chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
	conn    Conn
	subs    []subscription
	remote  map[string]string
	byID    map[string]string
	nextID  int

	wmu sync.Mutex

	stopWatch func()
}

type Option func(*Transport)

func WithDialer(d Dialer) Option {
	return func(t *Transport) { t.dialer = d }
}

func WithLogger(l logging.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// WithSleep replaces the reconnect delay wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Transport) { t.sleep = fn }
}

func New(cfg Config, creds session.Reader, bus *events.Bus, opts ...Option) *Transport {
	t := &Transport{
		cfg:     cfg.withDefaults(),
		dialer:  WebSocketDialer{},
		creds:   creds,
		bus:     bus,
		log:     logging.Discard(),
		sleep:   sleepCtx,
		changed: make(chan struct{}),
		remote:  map[string]string{},
		byID:    map[string]string{},
	}
	for _, o := range opts {
		o(t)
	}

	t.stopWatch = creds.OnChange(func(c session.Change) {
		if !c.Active {
			go func() { _ = t.Disconnect(context.Background()) }()
		}
	})
	return t
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) IsConnected() bool {
	return t.State() == Connected
}

// Connect starts the connection loop. It is a no-op unless the transport
// is Disconnected.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Disconnected {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	t.setStateLocked(Connecting)

	go t.run(runCtx, done)
	return nil
}

// Disconnect stops the loop and waits for it to exit. Subscriptions are
// kept for the next Connect.
func (t *Transport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	cancel, done, conn := t.cancel, t.done, t.conn
	connected := t.state == Connected
	t.mu.Unlock()
	if cancel == nil {
		return nil
	}

	if connected && conn != nil {
		_ = t.write(ctx, conn, &Frame{Command: cmdDisconnect})
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects and stops following credential changes.
func (t *Transport) Close(ctx context.Context) error {
	if t.stopWatch != nil {
		t.stopWatch()
	}
	return t.Disconnect(ctx)
}

// AwaitConnected blocks until the transport is Connected (nil) or has
// given up and is Disconnected (ErrTransportUnavailable).
func (t *Transport) AwaitConnected(ctx context.Context) error {
	for {
		t.mu.Lock()
		state, ch := t.state, t.changed
		t.mu.Unlock()

		switch state {
		case Connected:
			return nil
		case Disconnected:
			return ErrTransportUnavailable
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Subscribe registers h for topic. The topic is registered with the
// server at most once per connection however many handlers it has.
func (t *Transport) Subscribe(topic string, h Handler) (Handle, error) {
	if topic == "" || h == nil {
		return Handle{}, errors.New("subscribe: topic and handler are required")
	}

	t.mu.Lock()
	sub := subscription{id: uuid.NewString(), topic: topic, handler: h}
	t.subs = append(t.subs, sub)

	var conn Conn
	var sid string
	if t.state == Connected && t.conn != nil {
		if _, ok := t.remote[topic]; !ok {
			sid = t.registerLocked(topic)
			conn = t.conn
		}
	}
	t.mu.Unlock()

	if conn != nil {
		if err := t.write(context.Background(), conn, subscribeFrame(sid, topic)); err != nil {
			// The read loop will see the broken connection and re-register.
			t.log.Warn(context.Background(), "subscribe frame not sent", "topic", topic, "error", err)
		}
	}
	return Handle{id: sub.id, topic: topic}, nil
}

// Unsubscribe removes the handler; the server registration is dropped
// with the topic's last handler.
func (t *Transport) Unsubscribe(h Handle) error {
	t.mu.Lock()
	idx := -1
	for i, s := range t.subs {
		if s.id == h.id {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return nil
	}
	t.subs = append(t.subs[:idx:idx], t.subs[idx+1:]...)

	var conn Conn
	var sid string
	if !t.hasTopicLocked(h.topic) {
		if id, ok := t.remote[h.topic]; ok {
			delete(t.remote, h.topic)
			delete(t.byID, id)
			if t.state == Connected {
				conn, sid = t.conn, id
			}
		}
	}
	t.mu.Unlock()

	if conn != nil {
		f := &Frame{Command: cmdUnsubscribe}
		f.Header.Add("id", sid)
		if err := t.write(context.Background(), conn, f); err != nil {
			return fmt.Errorf("unsubscribe %s: %w", h.topic, err)
		}
	}
	return nil
}

// Publish sends payload to destination once. It fails with
// ErrNotConnected instead of queueing.
func (t *Transport) Publish(ctx context.Context, destination string, payload any) error {
	t.mu.Lock()
	conn := t.conn
	ok := t.state == Connected && conn != nil
	t.mu.Unlock()
	if !ok {
		return ErrNotConnected
	}

	body, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("publish %s: %w", destination, err)
	}
	f := &Frame{Command: cmdSend, Body: body}
	f.Header.Add("destination", destination)
	f.Header.Add("content-type", "application/json")

	if err := t.write(ctx, conn, f); err != nil {
		return fmt.Errorf("publish %s: %w", destination, err)
	}
	return nil
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(p)
	}
}

func (t *Transport) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer t.finish(done)

	bo := t.newBackOff()
	failures := 0
	for {
		connected, err := t.session(ctx, done)
		if ctx.Err() != nil {
			t.log.Info(ctx, "realtime disconnected")
			return
		}
		if errors.Is(err, ErrNoCredential) {
			t.log.Warn(ctx, "realtime stopped", "error", err)
			return
		}
		if connected {
			failures = 0
			bo.Reset()
		}

		failures++
		if failures > t.cfg.MaxAttempts {
			t.log.Warn(ctx, "realtime unavailable", "attempts", t.cfg.MaxAttempts, "error", err)
			t.finish(done)
			t.bus.Publish(events.TransportUnavailable, events.TransportUnavailablePayload{Attempts: t.cfg.MaxAttempts, Err: err})
			return
		}

		delay := bo.NextBackOff()
		t.setState(done, Reconnecting)
		t.log.Info(ctx, "realtime reconnecting", "attempt", failures, "delay", delay, "error", err)
		if err := t.sleep(ctx, delay); err != nil {
			return
		}
		t.setState(done, Connecting)
	}
}

// session runs one connection from dial to failure. connected reports
// whether the handshake completed.
func (t *Transport) session(ctx context.Context, done chan struct{}) (connected bool, err error) {
	conn, hb, err := t.establish(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	regs, ok := t.attach(done, conn)
	if !ok {
		return false, ctx.Err()
	}
	defer t.detach(done)

	for _, r := range regs {
		if err := t.write(ctx, conn, subscribeFrame(r.id, r.topic)); err != nil {
			return true, fmt.Errorf("resubscribe %s: %w", r.topic, err)
		}
	}
	t.log.Info(ctx, "realtime connected", "subscriptions", len(regs), "heartbeat_out", hb.out, "heartbeat_in", hb.in)

	hbCtx, stop := context.WithCancel(ctx)
	defer stop()
	if hb.out > 0 {
		go t.sendHeartbeats(hbCtx, conn, hb.out)
	}

	return true, t.readLoop(ctx, conn, hb.in)
}

// establish dials with the credential current at this moment, so a
// rotation while disconnected is picked up.
func (t *Transport) establish(ctx context.Context) (Conn, heartbeat, error) {
	cred, ok := t.creds.Current()
	if !ok {
		return nil, heartbeat{}, ErrNoCredential
	}
	header := http.Header{}
	header.Set(common.AuthorizationHeader, common.Bearer(cred.AccessToken))

	dctx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout)
	defer cancel()

	conn, err := t.dialer.Dial(dctx, t.cfg.URL, header)
	if err != nil {
		return nil, heartbeat{}, fmt.Errorf("dial: %w", err)
	}

	connect := &Frame{Command: cmdConnect}
	connect.Header.Add("accept-version", "1.2")
	if u, err := url.Parse(t.cfg.URL); err == nil && u.Host != "" {
		connect.Header.Add("host", u.Host)
	}
	connect.Header.Add("heart-beat", fmt.Sprintf("%d,%d", t.cfg.HeartbeatOutgoing.Milliseconds(), t.cfg.HeartbeatIncoming.Milliseconds()))
	connect.Header.Add(common.AuthorizationHeader, common.Bearer(cred.AccessToken))

	if err := conn.Write(dctx, connect.Encode()); err != nil {
		_ = conn.Close()
		return nil, heartbeat{}, fmt.Errorf("send connect: %w", err)
	}

	for {
		data, err := conn.Read(dctx)
		if err != nil {
			_ = conn.Close()
			return nil, heartbeat{}, fmt.Errorf("await connected: %w", err)
		}
		f, err := ParseFrame(data)
		if err != nil {
			_ = conn.Close()
			return nil, heartbeat{}, err
		}
		if f == nil {
			continue
		}
		switch f.Command {
		case cmdConnected:
			return conn, t.negotiate(f.Header.Get("heart-beat")), nil
		case cmdError:
			_ = conn.Close()
			return nil, heartbeat{}, &FrameError{Message: f.Header.Get("message"), Body: string(f.Body)}
		default:
			_ = conn.Close()
			return nil, heartbeat{}, fmt.Errorf("%w: expected CONNECTED, got %s", ErrMalformedFrame, f.Command)
		}
	}
}

// negotiate applies the STOMP heart-beat rule: each direction runs at the
// slower of the two requested rates, or not at all if either side is 0.
func (t *Transport) negotiate(server string) heartbeat {
	sx, sy := parseHeartbeat(server)
	cx, cy := t.cfg.HeartbeatOutgoing, t.cfg.HeartbeatIncoming
	srvOut, srvIn := time.Duration(sx)*time.Millisecond, time.Duration(sy)*time.Millisecond

	var hb heartbeat
	if cx > 0 && srvIn > 0 {
		hb.out = max(cx, srvIn)
	}
	if cy > 0 && srvOut > 0 {
		hb.in = max(cy, srvOut)
	}
	return hb
}

type registration struct {
	id, topic string
}

// attach installs conn as current and reserves a server subscription id
// for every subscribed topic.
func (t *Transport) attach(done chan struct{}, conn Conn) ([]registration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != done {
		return nil, false
	}

	t.conn = conn
	t.remote = map[string]string{}
	t.byID = map[string]string{}

	var regs []registration
	for _, s := range t.subs {
		if _, ok := t.remote[s.topic]; ok {
			continue
		}
		regs = append(regs, registration{id: t.registerLocked(s.topic), topic: s.topic})
	}
	t.setStateLocked(Connected)
	return regs, true
}

func (t *Transport) detach(done chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != done {
		return
	}
	t.conn = nil
	t.remote = map[string]string{}
	t.byID = map[string]string{}
}

// finish moves the transport to Disconnected if done still owns it.
func (t *Transport) finish(done chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != done {
		return
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.cancel = nil
	t.done = nil
	t.conn = nil
	t.setStateLocked(Disconnected)
}

func (t *Transport) setState(done chan struct{}, s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == done {
		t.setStateLocked(s)
	}
}

func (t *Transport) setStateLocked(s State) {
	if t.state == s {
		return
	}
	t.state = s
	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *Transport) registerLocked(topic string) string {
	t.nextID++
	id := fmt.Sprintf("sub-%d", t.nextID)
	t.remote[topic] = id
	t.byID[id] = topic
	return id
}

func (t *Transport) hasTopicLocked(topic string) bool {
	for _, s := range t.subs {
		if s.topic == topic {
			return true
		}
	}
	return false
}

func (t *Transport) readLoop(ctx context.Context, conn Conn, in time.Duration) error {
	var window time.Duration
	if in > 0 {
		window = in + in/2
	}

	for {
		rctx, cancel := ctx, context.CancelFunc(func() {})
		if window > 0 {
			rctx, cancel = context.WithTimeout(ctx, window)
		}
		data, err := conn.Read(rctx)
		missed := ctx.Err() == nil && errors.Is(rctx.Err(), context.DeadlineExceeded)
		cancel()

		if err != nil {
			if missed {
				t.log.Warn(ctx, "realtime heartbeat missed", "window", window)
				return ErrHeartbeatTimeout
			}
			return err
		}

		f, err := ParseFrame(data)
		if err != nil {
			t.log.Warn(ctx, "dropping malformed frame", "error", err)
			continue
		}
		if f == nil {
			continue
		}

		switch f.Command {
		case cmdMessage:
			t.dispatch(ctx, f)
		case cmdError:
			return &FrameError{Message: f.Header.Get("message"), Body: string(f.Body)}
		case cmdReceipt:
		default:
			t.log.Debug(ctx, "ignoring frame", "command", f.Command)
		}
	}
}

// dispatch delivers f to every handler of its topic in subscription order.
func (t *Transport) dispatch(ctx context.Context, f *Frame) {
	t.mu.Lock()
	topic := t.byID[f.Header.Get("subscription")]
	if topic == "" {
		topic = f.Header.Get("destination")
	}
	var targets []subscription
	for _, s := range t.subs {
		if s.topic == topic {
			targets = append(targets, s)
		}
	}
	t.mu.Unlock()

	msg := Message{Topic: topic, Header: f.Header, Body: f.Body}
	for _, s := range targets {
		t.deliver(ctx, s, msg)
	}
}

func (t *Transport) deliver(ctx context.Context, s subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error(ctx, "realtime handler panicked", "topic", s.topic, "panic", r)
		}
	}()
	if err := s.handler(msg); err != nil {
		t.log.Warn(ctx, "realtime handler failed", "topic", s.topic, "error", err)
	}
}

func (t *Transport) sendHeartbeats(ctx context.Context, conn Conn, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.writeRaw(ctx, conn, []byte("\n")); err != nil {
				t.log.Debug(ctx, "heartbeat not sent", "error", err)
				return
			}
		}
	}
}

func (t *Transport) write(ctx context.Context, conn Conn, f *Frame) error {
	return t.writeRaw(ctx, conn, f.Encode())
}

func (t *Transport) writeRaw(ctx context.Context, conn Conn, data []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	wctx, cancel := context.WithTimeout(ctx, t.cfg.WriteTimeout)
	defer cancel()
	return conn.Write(wctx, data)
}

func subscribeFrame(id, topic string) *Frame {
	f := &Frame{Command: cmdSubscribe}
	f.Header.Add("id", id)
	f.Header.Add("destination", topic)
	f.Header.Add("ack", "auto")
	return f
}

func (t *Transport) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = t.cfg.MaxDelay
	b.Reset()
	return b
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
