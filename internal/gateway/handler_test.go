package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/livequiz/internal/game"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

type fakeSession struct {
	hub     *ws.Hub
	joinErr error

	mu       sync.Mutex
	commands []string
	answers  []ws.SubmitAnswerPayload
	left     chan uuid.UUID
	done     chan struct{}
}

func newFakeSession(hub *ws.Hub) *fakeSession {
	return &fakeSession{hub: hub, left: make(chan uuid.UUID, 4), done: make(chan struct{})}
}

func (f *fakeSession) Join(_ context.Context, connID uuid.UUID, requestID string, req ws.JoinPayload) (ws.JoinAckPayload, error) {
	if f.joinErr != nil {
		return ws.JoinAckPayload{}, f.joinErr
	}
	ack := ws.JoinAckPayload{Role: req.Role, Pin: "482913", Nickname: req.Nickname}
	msg, _ := ws.NewMessage(ws.TypeJoinAck, ack)
	msg.RequestID = requestID
	_ = f.hub.SendTo(connID, msg)
	return ack, nil
}

func (f *fakeSession) record(cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
}

func (f *fakeSession) Start(context.Context, uuid.UUID) error {
	f.record(ws.TypeStart)
	return nil
}

func (f *fakeSession) Advance(context.Context, uuid.UUID) error {
	f.record(ws.TypeAdvance)
	return game.ErrForbidden
}

func (f *fakeSession) SubmitAnswer(_ context.Context, _ uuid.UUID, req ws.SubmitAnswerPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, req)
	return nil
}

func (f *fakeSession) Leave(connID uuid.UUID) { f.left <- connID }

func (f *fakeSession) Done() <-chan struct{} { return f.done }

func newTestServer(t *testing.T, session *fakeSession, hub *ws.Hub, opts Options) *httptest.Server {
	t.Helper()
	open := func(_ context.Context, pin string) (Session, error) {
		if pin != "482913" {
			return nil, game.ErrNotFound
		}
		return session, nil
	}
	h := NewHandler(open, hub, opts, zerolog.Nop())

	router := mux.NewRouter()
	router.HandleFunc("/ws/games/{pin}", h.HandleWebSocket)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, pin string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/games/" + pin
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType, requestID string, payload any) {
	t.Helper()
	msg, err := ws.NewMessage(msgType, payload)
	require.NoError(t, err)
	msg.RequestID = requestID
	require.NoError(t, conn.WriteJSON(msg))
}

func read(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readError(t *testing.T, conn *websocket.Conn) (ws.Message, ws.ErrorPayload) {
	t.Helper()
	msg := read(t, conn)
	require.Equal(t, ws.TypeError, msg.Type)
	var payload ws.ErrorPayload
	require.NoError(t, msg.Decode(&payload))
	return msg, payload
}

func TestHandleWebSocket_UnknownPin(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	srv := newTestServer(t, newFakeSession(hub), hub, Options{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/games/000000"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleWebSocket_CommandBeforeJoin(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	session := newFakeSession(hub)
	conn := dial(t, newTestServer(t, session, hub, Options{}), "482913")

	send(t, conn, ws.TypeStart, "r1", nil)
	msg, payload := readError(t, conn)
	assert.Equal(t, "r1", msg.RequestID)
	assert.Equal(t, "not_connected", payload.Code)
	assert.Empty(t, session.commands)
}

func TestHandleWebSocket_JoinThenCommands(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	session := newFakeSession(hub)
	conn := dial(t, newTestServer(t, session, hub, Options{}), "482913")

	send(t, conn, ws.TypeJoin, "j1", ws.JoinPayload{Role: ws.RoleHost, Token: "secret"})
	ack := read(t, conn)
	assert.Equal(t, ws.TypeJoinAck, ack.Type)
	assert.Equal(t, "j1", ack.RequestID)

	send(t, conn, ws.TypeStart, "r2", nil)
	reply := read(t, conn)
	assert.Equal(t, ws.TypeReply, reply.Type)
	assert.Equal(t, "r2", reply.RequestID)

	send(t, conn, ws.TypeAdvance, "r3", nil)
	msg, payload := readError(t, conn)
	assert.Equal(t, "r3", msg.RequestID)
	assert.Equal(t, "forbidden", payload.Code)

	choice := int64(11)
	send(t, conn, ws.TypeSubmitAnswer, "r4", ws.SubmitAnswerPayload{QuestionID: 1, AnswerValue: ws.AnswerValue{ChoiceID: &choice}})
	assert.Equal(t, ws.TypeReply, read(t, conn).Type)

	session.mu.Lock()
	defer session.mu.Unlock()
	assert.Equal(t, []string{ws.TypeStart, ws.TypeAdvance}, session.commands)
	require.Len(t, session.answers, 1)
	assert.Equal(t, int64(11), *session.answers[0].ChoiceID)
}

func TestHandleWebSocket_RejectedJoinLeavesConnectionUnjoined(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	session := newFakeSession(hub)
	session.joinErr = game.ErrNicknameTaken
	conn := dial(t, newTestServer(t, session, hub, Options{}), "482913")

	send(t, conn, ws.TypeJoin, "j1", ws.JoinPayload{Role: ws.RolePlayer, Nickname: "Alex"})
	msg, payload := readError(t, conn)
	assert.Equal(t, "j1", msg.RequestID)
	assert.Equal(t, "nickname_taken", payload.Code)

	send(t, conn, ws.TypeAdvance, "r2", nil)
	_, payload = readError(t, conn)
	assert.Equal(t, "not_connected", payload.Code)
}

func TestHandleWebSocket_UnknownType(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	conn := dial(t, newTestServer(t, newFakeSession(hub), hub, Options{}), "482913")

	send(t, conn, "dance", "r1", nil)
	_, payload := readError(t, conn)
	assert.Equal(t, "unknown_message_type", payload.Code)
}

func TestHandleWebSocket_DisconnectLeavesSession(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	session := newFakeSession(hub)
	conn := dial(t, newTestServer(t, session, hub, Options{}), "482913")

	send(t, conn, ws.TypeJoin, "j1", ws.JoinPayload{Role: ws.RolePlayer, Nickname: "Alex"})
	read(t, conn)
	require.Equal(t, 1, hub.Count())

	require.NoError(t, conn.Close())

	select {
	case <-session.left:
	case <-time.After(2 * time.Second):
		t.Fatal("session.Leave not called on disconnect")
	}
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandleWebSocket_JoinTimeout(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	clock := clockwork.NewFakeClock()
	conn := dial(t, newTestServer(t, newFakeSession(hub), hub, Options{JoinTimeout: 5 * time.Second, Clock: clock}), "482913")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(5 * time.Second)

	_, payload := readError(t, conn)
	assert.Equal(t, "timeout", payload.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected close frame, got %v", err)
}

func TestHandleWebSocket_SessionClosedDisconnects(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	session := newFakeSession(hub)
	conn := dial(t, newTestServer(t, session, hub, Options{}), "482913")

	send(t, conn, ws.TypeJoin, "j1", ws.JoinPayload{Role: ws.RoleHost})
	read(t, conn)

	close(session.done)
	_, payload := readError(t, conn)
	assert.Equal(t, "session_closed", payload.Code)
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(nil, nil, Options{AllowedOrigins: []string{"http://localhost:3000"}}, zerolog.Nop())

	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "api.example.com", true},
		{"same host", "https://api.example.com", "api.example.com", true},
		{"allowed", "http://localhost:3000", "api.example.com", true},
		{"foreign", "https://evil.example.org", "api.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws/games/1", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.checkOrigin(r))
		})
	}
}
