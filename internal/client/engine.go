package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/gokatarajesh/livequiz/internal/game"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

type Config struct {
	// URL is the game endpoint, e.g. ws://localhost:8080/ws/games/482913.
	URL       string
	Pin       string
	Role      string
	HostToken string
	Nickname  string
	Tokens    TokenStore

	RequestTimeout time.Duration
	RetryBase      time.Duration
	RetryMax       time.Duration
	MaxRetries     uint64
	Dialer         *websocket.Dialer
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 250 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 10 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 8
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Tokens == nil {
		c.Tokens = NewMemoryTokenStore()
	}
	return c
}

// Engine keeps one client's view of a game in sync with the server.
type Engine struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	joined  bool
	pending map[string]chan ws.Message
	seq     uint64

	writeMu sync.Mutex
	updates chan State
}

func New(cfg Config, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:     cfg.withDefaults(),
		logger:  logger.With().Str("component", "client").Str("pin", cfg.Pin).Logger(),
		state:   State{Phase: PhaseIdle},
		pending: make(map[string]chan ws.Message),
		updates: make(chan State, 64),
	}
}

// State returns the current rendered state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Updates delivers a snapshot after every applied change. Snapshots are dropped when the reader lags.
func (e *Engine) Updates() <-chan State {
	return e.updates
}

// Run connects, joins and follows the event stream until ctx ends or the server rejects the join.
// Transport failures flag the state as disconnected and trigger a reconnect with backoff.
func (e *Engine) Run(ctx context.Context) error {
	for {
		conn, err := e.connectWithRetry(ctx)
		if err != nil {
			return err
		}

		err = e.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.markDisconnected(err)
	}
}

func (e *Engine) connectWithRetry(ctx context.Context) (*websocket.Conn, error) {
	b := retry.NewExponential(e.cfg.RetryBase)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(e.cfg.RetryMax, b)
	b = retry.WithMaxRetries(e.cfg.MaxRetries, b)

	var conn *websocket.Conn
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		c, err := e.connect(ctx)
		if err == nil {
			conn = c
			return nil
		}
		if errors.Is(err, game.ErrTransport) {
			e.logger.Warn().Err(err).Msg("connect failed, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
	return conn, err
}

// connect dials and completes the join handshake. Application rejections are returned as
// *game.Error; anything network related is wrapped in game.ErrTransport.
func (e *Engine) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := e.cfg.Dialer.DialContext(ctx, e.cfg.URL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, game.ErrNotFound
		}
		return nil, fmt.Errorf("%w: dial: %v", game.ErrTransport, err)
	}

	join, err := e.joinPayload()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	requestID := e.nextRequestID()
	msg, err := ws.NewMessage(ws.TypeJoin, join)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	msg.RequestID = requestID

	_ = conn.SetWriteDeadline(time.Now().Add(e.cfg.RequestTimeout))
	if err := conn.WriteJSON(msg); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: send join: %v", game.ErrTransport, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(e.cfg.RequestTimeout))
	for {
		var in ws.Message
		if err := conn.ReadJSON(&in); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%w: await join_ack: %v", game.ErrTransport, err)
		}
		if in.RequestID != requestID {
			continue
		}
		if in.Type == ws.TypeError {
			_ = conn.Close()
			var p ws.ErrorPayload
			_ = in.Decode(&p)
			return nil, game.ErrorFromCode(p.Code, p.Reason)
		}
		if err := e.acceptJoin(conn, in); err != nil {
			_ = conn.Close()
			return nil, err
		}
		_ = conn.SetReadDeadline(time.Time{})
		return conn, nil
	}
}

func (e *Engine) joinPayload() (ws.JoinPayload, error) {
	if e.cfg.Role == ws.RoleHost {
		return ws.JoinPayload{Role: ws.RoleHost, Token: e.cfg.HostToken}, nil
	}
	token, err := e.cfg.Tokens.Load(e.cfg.Pin)
	if err != nil {
		return ws.JoinPayload{}, fmt.Errorf("load player token: %w", err)
	}
	return ws.JoinPayload{Role: ws.RolePlayer, Nickname: e.cfg.Nickname, PlayerToken: token}, nil
}

func (e *Engine) acceptJoin(conn *websocket.Conn, msg ws.Message) error {
	var ack ws.JoinAckPayload
	if err := msg.Decode(&ack); err != nil {
		return fmt.Errorf("decode join_ack: %w", err)
	}
	if ack.PlayerToken != "" {
		if err := e.cfg.Tokens.Save(e.cfg.Pin, ack.PlayerToken); err != nil {
			e.logger.Warn().Err(err).Msg("persist player token failed")
		}
	}

	e.mu.Lock()
	e.conn = conn
	e.joined = true
	e.state = FromJoinAck(ack)
	st := e.state
	e.mu.Unlock()

	e.logger.Info().Str("role", ack.Role).Str("phase", string(st.Phase)).Msg("joined")
	e.publish(st)
	return nil
}

func (e *Engine) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		e.dispatch(msg)
	}
}

func (e *Engine) dispatch(msg ws.Message) {
	if msg.RequestID != "" && (msg.Type == ws.TypeReply || msg.Type == ws.TypeError) {
		e.mu.Lock()
		ch, ok := e.pending[msg.RequestID]
		delete(e.pending, msg.RequestID)
		e.mu.Unlock()
		if ok {
			ch <- msg
			return
		}
	}

	e.mu.Lock()
	next, err := Reduce(e.state, msg)
	if err != nil {
		e.mu.Unlock()
		e.logger.Error().Err(err).Str("type", msg.Type).Msg("event rejected by reducer")
		return
	}
	e.state = next
	e.mu.Unlock()
	e.publish(next)
}

func (e *Engine) markDisconnected(cause error) {
	e.mu.Lock()
	e.conn = nil
	e.joined = false
	e.state.Disconnected = true
	for id, ch := range e.pending {
		ch <- transportReply(id)
		delete(e.pending, id)
	}
	st := e.state
	e.mu.Unlock()

	e.logger.Warn().Err(cause).Msg("disconnected")
	e.publish(st)
}

func transportReply(requestID string) ws.Message {
	msg, _ := ws.NewMessage(ws.TypeError, ws.ErrorPayload{Code: game.ErrTransport.Code, Reason: game.ErrTransport.Message})
	msg.RequestID = requestID
	return msg
}

func (e *Engine) publish(st State) {
	select {
	case e.updates <- st:
	default:
	}
}

func (e *Engine) nextRequestID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	return strconv.FormatUint(e.seq, 10)
}

// Start asks the server to open the first question.
func (e *Engine) Start(ctx context.Context) error {
	return e.command(ctx, ws.TypeStart, nil)
}

// Advance reveals the running question early or moves past a reveal.
func (e *Engine) Advance(ctx context.Context) error {
	return e.command(ctx, ws.TypeAdvance, nil)
}

// SubmitAnswer answers questionID.
func (e *Engine) SubmitAnswer(ctx context.Context, questionID int64, answer ws.AnswerValue) error {
	return e.command(ctx, ws.TypeSubmitAnswer, ws.SubmitAnswerPayload{QuestionID: questionID, AnswerValue: answer})
}

// command fails fast with ErrNotConnected unless a join has completed on the live connection.
func (e *Engine) command(ctx context.Context, msgType string, payload any) error {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if !e.joined || e.conn == nil {
		e.mu.Unlock()
		return game.ErrNotConnected
	}
	conn := e.conn
	e.seq++
	msg.RequestID = strconv.FormatUint(e.seq, 10)
	ch := make(chan ws.Message, 1)
	e.pending[msg.RequestID] = ch
	e.mu.Unlock()

	e.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(e.cfg.RequestTimeout))
	err = conn.WriteJSON(msg)
	e.writeMu.Unlock()
	if err != nil {
		e.forget(msg.RequestID)
		return fmt.Errorf("%w: %v", game.ErrTransport, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	select {
	case reply := <-ch:
		if reply.Type == ws.TypeReply {
			return nil
		}
		var p ws.ErrorPayload
		if err := reply.Decode(&p); err != nil {
			return fmt.Errorf("decode error reply: %w", err)
		}
		return game.ErrorFromCode(p.Code, p.Reason)
	case <-ctx.Done():
		e.forget(msg.RequestID)
		return ctx.Err()
	}
}

func (e *Engine) forget(requestID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, requestID)
}

// Close drops the live connection. Run returns once its context is cancelled.
func (e *Engine) Close() error {
	e.mu.Lock()
	conn := e.conn
	e.conn = nil
	e.joined = false
	e.mu.Unlock()

	if conn == nil {
		return nil
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return conn.Close()
}
