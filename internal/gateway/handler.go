package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/game"
	httperrors "github.com/gokatarajesh/livequiz/pkg/http/errors"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

// Session is the slice of game.Session the gateway drives.
type Session interface {
	Join(ctx context.Context, connID uuid.UUID, requestID string, req ws.JoinPayload) (ws.JoinAckPayload, error)
	Start(ctx context.Context, connID uuid.UUID) error
	Advance(ctx context.Context, connID uuid.UUID) error
	SubmitAnswer(ctx context.Context, connID uuid.UUID, req ws.SubmitAnswerPayload) error
	Leave(connID uuid.UUID)
	Done() <-chan struct{}
}

// OpenFunc resolves a pin to its live session.
type OpenFunc func(ctx context.Context, pin string) (Session, error)

// ManagerOpener adapts a game.Manager.
func ManagerOpener(m *game.Manager) OpenFunc {
	return func(ctx context.Context, pin string) (Session, error) {
		s, err := m.Open(ctx, pin)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// ConnMetrics counts open sockets.
type ConnMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
}

type Options struct {
	JoinTimeout    time.Duration
	CommandTimeout time.Duration
	AllowedOrigins []string
	Connection     ws.ConnectionConfig
	Clock          clockwork.Clock
	Metrics        ConnMetrics
}

func (o Options) withDefaults() Options {
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = 10 * time.Second
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
	return o
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened() {}
func (noopMetrics) ConnectionClosed() {}

// Handler upgrades /ws/games/{pin} requests and routes their commands to the session.
type Handler struct {
	open     OpenFunc
	hub      *ws.Hub
	opts     Options
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewHandler(open OpenFunc, hub *ws.Hub, opts Options, logger zerolog.Logger) *Handler {
	opts = opts.withDefaults()
	h := &Handler{
		open:   open,
		hub:    hub,
		opts:   opts,
		logger: logger.With().Str("component", "gateway").Logger(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// HandleWebSocket resolves the pin before upgrading so unknown games fail with a plain 404.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	pin := mux.Vars(r)["pin"]
	if pin == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Missing game pin")
		return
	}

	session, err := h.open(r.Context(), pin)
	if err != nil {
		if errors.Is(err, game.ErrNotFound) {
			httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Game not found")
			return
		}
		h.logger.Error().Err(err).Str("pin", pin).Msg("open session failed")
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "Game unavailable")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("pin", pin).Msg("websocket upgrade failed")
		return
	}

	h.serve(pin, session, ws.NewConnection(conn, h.opts.Connection, h.logger))
}

type client struct {
	pin     string
	conn    *ws.Connection
	session Session
	joined  atomic.Bool
	logger  zerolog.Logger
}

func (h *Handler) serve(pin string, session Session, conn *ws.Connection) {
	c := &client{
		pin:     pin,
		conn:    conn,
		session: session,
		logger:  h.logger.With().Str("pin", pin).Str("conn_id", conn.ID().String()).Logger(),
	}

	h.hub.RegisterConnection(conn)
	h.opts.Metrics.ConnectionOpened()
	go conn.WritePump()

	joinTimer := h.opts.Clock.AfterFunc(h.opts.JoinTimeout, func() {
		if c.joined.Load() {
			return
		}
		c.logger.Info().Msg("join timeout")
		h.sendError(c, "", &game.Error{Code: httperrors.ErrCodeTimeout, Message: "join not received in time"})
		conn.Close()
	})

	stop := make(chan struct{})
	go func() {
		select {
		case <-session.Done():
			h.sendError(c, "", game.ErrSessionClosed)
			conn.Close()
		case <-stop:
		}
	}()

	conn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(c, msg)
	})

	close(stop)
	joinTimer.Stop()
	session.Leave(conn.ID())
	h.hub.UnregisterConnection(conn.ID())
	h.opts.Metrics.ConnectionClosed()
	c.logger.Debug().Msg("connection closed")
}

func (h *Handler) handleMessage(c *client, msg ws.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.CommandTimeout)
	defer cancel()

	switch msg.Type {
	case ws.TypeJoin:
		return h.handleJoin(ctx, c, msg)
	case ws.TypeStart, ws.TypeAdvance, ws.TypeSubmitAnswer:
		if !c.joined.Load() {
			return h.sendError(c, msg.RequestID, game.ErrNotConnected)
		}
		return h.reply(c, msg.RequestID, h.dispatch(ctx, c, msg))
	default:
		return h.sendError(c, msg.RequestID, &game.Error{
			Code:    httperrors.ErrCodeUnknownMessageType,
			Message: fmt.Sprintf("Unknown message type: %s", msg.Type),
		})
	}
}

func (h *Handler) handleJoin(ctx context.Context, c *client, msg ws.Message) error {
	var req ws.JoinPayload
	if err := msg.Decode(&req); err != nil {
		return h.sendError(c, msg.RequestID, game.ErrInvalidPayload.With("invalid join payload"))
	}
	// The session queues join_ack on the connection itself so it precedes any later broadcast.
	if _, err := c.session.Join(ctx, c.conn.ID(), msg.RequestID, req); err != nil {
		return h.sendError(c, msg.RequestID, err)
	}
	c.joined.Store(true)
	return nil
}

func (h *Handler) dispatch(ctx context.Context, c *client, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeStart:
		return c.session.Start(ctx, c.conn.ID())
	case ws.TypeAdvance:
		return c.session.Advance(ctx, c.conn.ID())
	default:
		var req ws.SubmitAnswerPayload
		if err := msg.Decode(&req); err != nil {
			return game.ErrInvalidPayload.With("invalid submit_answer payload")
		}
		return c.session.SubmitAnswer(ctx, c.conn.ID(), req)
	}
}

func (h *Handler) reply(c *client, requestID string, err error) error {
	if err != nil {
		return h.sendError(c, requestID, err)
	}
	msg, mErr := ws.NewMessage(ws.TypeReply, ws.ReplyPayload{Status: "ok"})
	if mErr != nil {
		return mErr
	}
	msg.RequestID = requestID
	return c.conn.Send(msg)
}

func (h *Handler) sendError(c *client, requestID string, err error) error {
	code, reason := game.CodeOf(err), err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code, reason = httperrors.ErrCodeTimeout, "request timed out"
	case code == httperrors.ErrCodeInternalError:
		c.logger.Error().Err(err).Msg("command failed")
		reason = "internal error"
	}

	msg, mErr := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: code, Reason: reason})
	if mErr != nil {
		return mErr
	}
	msg.RequestID = requestID
	return c.conn.Send(msg)
}
