package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/dmitrijs2005/sportmatch/internal/client/events"
	"github.com/dmitrijs2005/sportmatch/internal/client/models"
	"github.com/dmitrijs2005/sportmatch/internal/client/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stompServer accepts one STOMP session, checks the bearer token, and
// pushes one MESSAGE on the first subscription.
func stompServer(t *testing.T, wantAuth string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != wantAuth {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{stompSubprotocol}})
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		read := func() *Frame {
			for {
				_, data, err := conn.Read(ctx)
				if err != nil {
					return nil
				}
				f, err := ParseFrame(data)
				if err != nil || f != nil {
					return f
				}
			}
		}

		if f := read(); f == nil || f.Command != cmdConnect || f.Header.Get("Authorization") != wantAuth {
			return
		}
		ok := &Frame{Command: cmdConnected}
		ok.Header.Add("version", "1.2")
		ok.Header.Add("heart-beat", "0,0")
		_ = conn.Write(ctx, websocket.MessageText, ok.Encode())

		sub := read()
		if sub == nil || sub.Command != cmdSubscribe {
			return
		}
		msg := &Frame{Command: cmdMessage, Body: []byte(`{"content":"hola"}`)}
		msg.Header.Add("subscription", sub.Header.Get("id"))
		msg.Header.Add("destination", sub.Header.Get("destination"))
		_ = conn.Write(ctx, websocket.MessageText, msg.Encode())

		for read() != nil {
		}
	}))
}

func TestWebSocketDialer_EndToEnd(t *testing.T) {
	srv := stompServer(t, "Bearer live-token")
	defer srv.Close()

	store := session.NewStore()
	require.NoError(t, store.Install(context.Background(),
		session.Credential{AccessToken: "live-token", RefreshToken: "r"}, models.User{ID: 3}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	tr := New(Config{URL: url, MaxAttempts: 1}, store, events.NewBus(nil))
	defer tr.Close(context.Background())

	got := make(chan Message, 1)
	_, err := tr.Subscribe(MessagesTopic(3), func(m Message) error {
		got <- m
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, tr.Connect(context.Background()))

	select {
	case m := <-got:
		assert.Equal(t, "/user/3/queue/messages", m.Topic)
		assert.JSONEq(t, `{"content":"hola"}`, string(m.Body))
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered")
	}
	assert.True(t, tr.IsConnected())
}

func TestWebSocketDialer_RejectedHandshake(t *testing.T) {
	srv := stompServer(t, "Bearer other")
	defer srv.Close()

	_, err := WebSocketDialer{}.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), http.Header{})
	require.Error(t, err)
}
