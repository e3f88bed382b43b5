package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/sportmatch/internal/client/events"
	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/dmitrijs2005/sportmatch/internal/client/session"
	"github.com/dmitrijs2005/sportmatch/internal/common"
	"github.com/dmitrijs2005/sportmatch/internal/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const (
	refreshPath         = "/auth/refresh"
	maxResponseBytes    = 4 << 20
	defaultRenewTimeout = 15 * time.Second
)

// Credentials is the part of the session store the gateway writes: it
// rotates the pair after renewal and clears it when renewal is impossible.
type Credentials interface {
	session.Reader
	Rotate(ctx context.Context, cred session.Credential) error
	ClearIfEpoch(ctx context.Context, epoch uint64) bool
}

// Gateway sends authenticated requests to the remote API. Concurrent
// callers rejected with 401 under the same credential share one renewal.
type Gateway struct {
	baseURL      string
	http         *http.Client
	store        Credentials
	bus          *events.Bus
	log          logging.Logger
	tracer       trace.Tracer
	renewTimeout time.Duration

	flight singleflight.Group

	gateMu sync.Mutex
	gate   chan struct{}
}

type GatewayOption func(*Gateway)

func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) { g.http = c }
}

func WithLogger(l logging.Logger) GatewayOption {
	return func(g *Gateway) { g.log = l }
}

func WithRenewTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.renewTimeout = d }
}

func NewGateway(baseURL string, store Credentials, bus *events.Bus, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         &http.Client{Timeout: 10 * time.Second},
		store:        store,
		bus:          bus,
		log:          logging.Discard(),
		tracer:       otel.Tracer("sportmatch/client"),
		renewTimeout: defaultRenewTimeout,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Issue sends req. A 401 on a renewable request triggers one renewal and
// one re-send; any other failure is returned as is.
func (g *Gateway) Issue(ctx context.Context, req Request) (*Response, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.Issue",
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.path", req.Path),
		),
	)
	defer span.End()

	resp, err := g.issue(ctx, req, req.policy())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status", resp.Status))
	return resp, nil
}

func (g *Gateway) issue(ctx context.Context, req Request, policy RetryPolicy) (*Response, error) {
	explicit := req.hasExplicitAuth()
	if !explicit {
		if err := g.awaitRenewal(ctx); err != nil {
			return nil, err
		}
	}

	// Epoch first: if a rotation lands in between, the 401 path sees a
	// newer epoch and re-sends instead of renewing twice.
	epoch := g.store.Epoch()
	cred, active := g.store.Current()

	token := ""
	if !explicit && active {
		token = cred.AccessToken
	}

	resp, err := g.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized {
		if err := statusError(resp); err != nil {
			return nil, err
		}
		return resp, nil
	}

	switch {
	case explicit || !active || !policy.Renew:
		return nil, ErrUnauthorized
	case policy.Retries <= 0:
		g.log.Warn(ctx, "request rejected after renewal", "path", req.Path)
		g.endSession(ctx, epoch, events.ReasonRejectedRetry, ErrUnauthorized)
		return nil, ErrUnauthorized
	}

	if err := g.renew(ctx, epoch); err != nil {
		return nil, err
	}
	return g.issue(ctx, req, policy.spend())
}

// renew makes sure the credential is newer than epoch, exchanging the
// refresh token at most once per epoch.
func (g *Gateway) renew(ctx context.Context, epoch uint64) error {
	if g.store.Epoch() != epoch {
		if g.store.IsAuthenticated() {
			return nil
		}
		return ErrUnauthorized
	}

	ch := g.flight.DoChan("renew", func() (any, error) {
		return nil, g.runRenewal(context.WithoutCancel(ctx), epoch)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (g *Gateway) runRenewal(ctx context.Context, epoch uint64) (err error) {
	// Deferred before closeGate so it runs after it: SessionEnded handlers
	// may issue requests of their own.
	var ended *events.SessionEndedPayload
	defer func() {
		if ended != nil {
			g.announce(ended.Reason, ended.Err)
		}
	}()
	g.openGate()
	defer g.closeGate()

	ctx, cancel := context.WithTimeout(ctx, g.renewTimeout)
	defer cancel()

	ctx, span := g.tracer.Start(ctx, "gateway.renew")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "renewal failed")
		}
		span.End()
	}()

	// Lost a race with another renewal or a logout.
	if g.store.Epoch() != epoch {
		if g.store.IsAuthenticated() {
			return nil
		}
		return ErrUnauthorized
	}

	cred, _ := g.store.Current()
	if cred.RefreshToken == "" {
		ended = g.clearSession(ctx, epoch, events.ReasonRenewalFailed, ErrNoRefreshToken)
		return fmt.Errorf("%w: %w", ErrUnauthorized, ErrNoRefreshToken)
	}

	g.log.Info(ctx, "renewing credential", "epoch", epoch)
	auth, err := g.refresh(ctx, cred.RefreshToken)
	if err == nil {
		err = g.store.Rotate(ctx, session.Credential{AccessToken: auth.Token, RefreshToken: auth.RefreshToken})
		if err != nil && !errors.Is(err, session.ErrNoSession) && !errors.Is(err, session.ErrIncompleteCredential) {
			// Rotated in memory; only persisting it failed.
			g.log.Warn(ctx, "renewed credential not persisted", "error", err)
			err = nil
		}
	}
	if err != nil {
		g.log.Warn(ctx, "credential renewal failed", "error", err)
		ended = g.clearSession(ctx, epoch, events.ReasonRenewalFailed, err)
		return fmt.Errorf("%w: renewal failed: %w", ErrUnauthorized, err)
	}

	g.log.Info(ctx, "credential renewed")
	return nil
}

func (g *Gateway) refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	header := http.Header{}
	header.Set(common.AuthorizationHeader, common.Bearer(refreshToken))

	resp, err := g.issue(ctx, Request{Method: http.MethodPost, Path: refreshPath, Header: header, Policy: &NoRenewal}, NoRenewal)
	if err != nil {
		return nil, err
	}
	var auth models.AuthResponse
	if err := resp.Decode(&auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// endSession clears the store if nothing rotated it since epoch and
// reports the end of the session once.
func (g *Gateway) endSession(ctx context.Context, epoch uint64, reason events.SessionEndReason, cause error) {
	if p := g.clearSession(ctx, epoch, reason, cause); p != nil {
		g.announce(p.Reason, p.Err)
	}
}

// clearSession returns the payload to announce, or nil if another caller
// already ended or rotated the session.
func (g *Gateway) clearSession(ctx context.Context, epoch uint64, reason events.SessionEndReason, cause error) *events.SessionEndedPayload {
	if !g.store.ClearIfEpoch(ctx, epoch) {
		return nil
	}
	g.log.Info(ctx, "session ended", "reason", reason)
	return &events.SessionEndedPayload{Reason: reason, Err: cause}
}

func (g *Gateway) announce(reason events.SessionEndReason, cause error) {
	g.bus.Publish(events.SessionEnded, events.SessionEndedPayload{Reason: reason, Err: cause})
}

func (g *Gateway) openGate() {
	g.gateMu.Lock()
	defer g.gateMu.Unlock()
	g.gate = make(chan struct{})
}

func (g *Gateway) closeGate() {
	g.gateMu.Lock()
	defer g.gateMu.Unlock()
	if g.gate != nil {
		close(g.gate)
		g.gate = nil
	}
}

// awaitRenewal holds new requests back while a renewal is in flight so
// they go out with the renewed token.
func (g *Gateway) awaitRenewal(ctx context.Context) error {
	g.gateMu.Lock()
	gate := g.gate
	g.gateMu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) send(ctx context.Context, req Request, token string) (*Response, error) {
	target := g.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set(common.AuthorizationHeader, common.Bearer(token))
	}
	reqID := uuid.NewString()
	httpReq.Header.Set(common.RequestIDHeader, reqID)

	started := time.Now()
	httpResp, err := g.http.Do(httpReq)
	if err != nil {
		g.log.Debug(ctx, "request failed", "method", req.Method, "path", req.Path, "request_id", reqID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}

	g.log.Debug(ctx, "request done",
		"method", req.Method, "path", req.Path, "status", httpResp.StatusCode,
		"request_id", reqID, "elapsed", time.Since(started))

	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

// statusError maps a non-401 status to the error taxonomy; nil for success.
func statusError(resp *Response) error {
	switch {
	case resp.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.Status >= 500:
		return &ServerError{Status: resp.Status, Body: resp.Body}
	case resp.Status >= 400:
		return &ValidationError{Status: resp.Status, Payload: resp.Body}
	default:
		return nil
	}
}
