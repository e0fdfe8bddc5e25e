package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/presence"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

const maxNicknameLength = 32

// SessionOptions tunes a session's lifetime.
type SessionOptions struct {
	// Retention keeps a finished session joinable before it is evicted.
	Retention time.Duration
	// IOTimeout bounds registry and token calls made while handling a command.
	IOTimeout time.Duration
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Retention <= 0 {
		o.Retention = 10 * time.Minute
	}
	if o.IOTimeout <= 0 {
		o.IOTimeout = 2 * time.Second
	}
	return o
}

type subscriber struct {
	role     string
	playerID string
}

// Status is a read-only view of a session, used for diagnostics and tests.
type Status struct {
	Pin            string
	Phase          Phase
	QuestionIndex  int
	TotalQuestions int
	Subscribers    int
	Players        int
	Connected      int
	History        []Phase
	UpdatedAt      time.Time
}

// Session is the single authoritative state machine of one live game. Every mutation
// runs on the session's own goroutine; public methods submit work and wait for the result.
type Session struct {
	meta      SessionMeta
	questions []Question
	deps      Deps
	opts      SessionOptions
	logger    zerolog.Logger
	onStop    func(*Session)

	inbox    chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// owned by the run goroutine
	phase      Phase
	history    []Phase
	index      int
	players    map[string]*Player
	roster     presence.Roster
	conns      map[uuid.UUID]subscriber
	window     *Collector
	current    *ws.QuestionStartedPayload
	standings  *Standings
	lastReveal *ws.QuestionRevealPayload
	final      []ws.LeaderboardEntry
	deadline   func()
	retention  func()
	evicted    bool
	startedAt  time.Time
	updatedAt  time.Time
}

func newSession(meta SessionMeta, questions []Question, deps Deps, opts SessionOptions, onStop func(*Session)) *Session {
	deps = deps.withDefaults()
	s := &Session{
		meta:      meta,
		questions: questions,
		deps:      deps,
		opts:      opts.withDefaults(),
		logger:    deps.Logger.With().Str("component", "game_session").Str("pin", meta.Pin).Logger(),
		onStop:    onStop,
		inbox:     make(chan func(), 64),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		phase:     PhaseLobby,
		history:   []Phase{PhaseLobby},
		players:   make(map[string]*Player),
		conns:     make(map[uuid.UUID]subscriber),
		standings: NewStandings(),
		updatedAt: deps.Clock.Now(),
	}
	deps.Metrics.SessionOpened()
	go s.run()
	return s
}

// Pin returns the session's pin.
func (s *Session) Pin() string { return s.meta.Pin }

// Meta returns the registry metadata the session was opened with.
func (s *Session) Meta() SessionMeta { return s.meta }

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop terminates the session and waits for it to wind down.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.quit:
			s.shutdown()
			return
		}
	}
}

func (s *Session) shutdown() {
	if s.deadline != nil {
		s.deadline()
		s.deadline = nil
	}
	if s.retention != nil {
		s.retention()
		s.retention = nil
	}
	for connID := range s.conns {
		s.deps.Broadcaster.LeaveSession(s.meta.Pin, connID)
	}
	if s.evicted {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.IOTimeout)
		if err := s.deps.Registry.Release(ctx, s.meta.Pin); err != nil {
			s.logger.Warn().Err(err).Msg("registry release failed")
		}
		cancel()
	}
	s.deps.Metrics.SessionClosed()
	if s.onStop != nil {
		s.onStop(s)
	}
	s.logger.Info().Bool("evicted", s.evicted).Msg("session stopped")
}

// post schedules fn on the session goroutine without waiting.
func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

type result[T any] struct {
	val T
	err error
}

const (
	ticketPending int32 = iota
	ticketCommitted
	ticketAbandoned
)

// ticket settles the race between a job applying its effects and its caller giving up.
// A job calls commit before its first mutation; a caller that abandons first wins and the
// job must leave the session untouched.
type ticket struct {
	state atomic.Int32
}

func (t *ticket) commit() bool {
	return t.state.CompareAndSwap(ticketPending, ticketCommitted) || t.state.Load() == ticketCommitted
}

func (t *ticket) abandon() bool {
	return t.state.CompareAndSwap(ticketPending, ticketAbandoned) || t.state.Load() == ticketAbandoned
}

// errAbandoned is returned by jobs whose caller already gave up. Nobody reads it.
var errAbandoned = errors.New("caller gave up before commit")

// call runs fn on the session goroutine and waits for its result or ctx. fn runs only if
// the caller is still waiting when the session reaches it.
func call[T any](ctx context.Context, s *Session, fn func() (T, error)) (T, error) {
	return callCommit(ctx, s, func(t *ticket) (T, error) {
		if !t.commit() {
			var zero T
			return zero, errAbandoned
		}
		return fn()
	})
}

// callCommit is call for jobs that do I/O before committing. Once the job has committed
// the caller waits for its outcome even past ctx, so the reply always matches the state.
func callCommit[T any](ctx context.Context, s *Session, fn func(*ticket) (T, error)) (T, error) {
	var zero T
	t := &ticket{}
	reply := make(chan result[T], 1)
	job := func() {
		v, err := fn(t)
		reply <- result[T]{val: v, err: err}
	}

	select {
	case s.inbox <- job:
	case <-s.done:
		return zero, ErrSessionClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.val, r.err
	case <-s.done:
		return zero, ErrSessionClosed
	case <-ctx.Done():
		if t.abandon() {
			return zero, ctx.Err()
		}
	}

	select {
	case r := <-reply:
		return r.val, r.err
	case <-s.done:
		return zero, ErrSessionClosed
	}
}

// Join admits a connection as host or player. On success the join_ack is queued on the
// connection before any broadcast that follows it, and the connection is subscribed.
// On failure nothing is registered.
func (s *Session) Join(ctx context.Context, connID uuid.UUID, requestID string, req ws.JoinPayload) (ack ws.JoinAckPayload, err error) {
	defer func() { s.deps.Metrics.CommandHandled(ws.TypeJoin, err) }()
	return callCommit(ctx, s, func(t *ticket) (ws.JoinAckPayload, error) {
		return s.join(t, connID, requestID, req)
	})
}

// Start moves the lobby to the first question. Host only.
func (s *Session) Start(ctx context.Context, connID uuid.UUID) (err error) {
	defer func() { s.deps.Metrics.CommandHandled(ws.TypeStart, err) }()
	_, err = call(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.start(connID)
	})
	return err
}

// Advance closes the running question early, or moves past a reveal. Host only.
func (s *Session) Advance(ctx context.Context, connID uuid.UUID) (err error) {
	defer func() { s.deps.Metrics.CommandHandled(ws.TypeAdvance, err) }()
	_, err = call(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.advance(connID)
	})
	return err
}

// SubmitAnswer records a player's answer for the running question.
func (s *Session) SubmitAnswer(ctx context.Context, connID uuid.UUID, req ws.SubmitAnswerPayload) (err error) {
	defer func() { s.deps.Metrics.CommandHandled(ws.TypeSubmitAnswer, err) }()
	_, err = call(ctx, s, func() (struct{}, error) {
		return struct{}{}, s.submit(connID, req)
	})
	return err
}

// Leave deregisters a connection. It is safe to call for connections that never joined.
func (s *Session) Leave(connID uuid.UUID) {
	s.post(func() { s.leave(connID) })
}

// Status returns a snapshot of the session.
func (s *Session) Status(ctx context.Context) (Status, error) {
	return call(ctx, s, func() (Status, error) {
		history := make([]Phase, len(s.history))
		copy(history, s.history)
		return Status{
			Pin:            s.meta.Pin,
			Phase:          s.phase,
			QuestionIndex:  s.index,
			TotalQuestions: len(s.questions),
			Subscribers:    len(s.conns),
			Players:        len(s.players),
			Connected:      s.roster.Len(),
			History:        history,
			UpdatedAt:      s.updatedAt,
		}, nil
	})
}

func (s *Session) ioContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opts.IOTimeout)
}

func (s *Session) join(t *ticket, connID uuid.UUID, requestID string, req ws.JoinPayload) (ws.JoinAckPayload, error) {
	if _, dup := s.conns[connID]; dup {
		return ws.JoinAckPayload{}, ErrInvalidTransition.With("connection already joined")
	}

	switch req.Role {
	case ws.RoleHost:
		if !s.deps.Hosts.VerifyHostToken(req.Token, s.meta.HostID) {
			return ws.JoinAckPayload{}, ErrUnauthorized
		}
		if !t.commit() {
			return ws.JoinAckPayload{}, errAbandoned
		}
		s.conns[connID] = subscriber{role: ws.RoleHost}
		ack := ws.JoinAckPayload{
			Role:    ws.RoleHost,
			Pin:     s.meta.Pin,
			Players: s.rosterPayload(),
			Resume:  s.resume(),
		}
		s.subscribe(connID, requestID, ack)
		s.logger.Info().Str("conn_id", connID.String()).Msg("host joined")
		return ack, nil

	case ws.RolePlayer:
		player, err := s.admitPlayer(t, req)
		if err != nil {
			return ws.JoinAckPayload{}, err
		}

		if player.ConnID != uuid.Nil && player.ConnID != connID {
			delete(s.conns, player.ConnID)
			s.deps.Broadcaster.LeaveSession(s.meta.Pin, player.ConnID)
		}
		player.ConnID = connID
		s.conns[connID] = subscriber{role: ws.RolePlayer, playerID: player.ID}
		s.standings.Track(player.ID)

		var added bool
		s.roster, added = s.roster.Join(presence.Member{PlayerID: player.ID, Nickname: player.Nickname})

		ack := ws.JoinAckPayload{
			Role:        ws.RolePlayer,
			Pin:         s.meta.Pin,
			PlayerID:    player.ID,
			Nickname:    player.Nickname,
			PlayerToken: player.Token,
			Players:     s.rosterPayload(),
			Resume:      s.resume(),
		}
		s.subscribe(connID, requestID, ack)
		if added {
			s.broadcast(ws.TypePlayerJoined, ws.Player{PlayerID: player.ID, Nickname: player.Nickname})
		}
		s.logger.Info().
			Str("conn_id", connID.String()).
			Str("player_id", player.ID).
			Str("nickname", player.Nickname).
			Bool("rejoined", !added).
			Msg("player joined")
		return ack, nil

	default:
		return ws.JoinAckPayload{}, ErrInvalidPayload.With("unknown role %q", req.Role)
	}
}

// admitPlayer resolves a reconnecting player by token or creates a new one.
// It claims the nickname in the registry but leaves session state untouched on failure.
// admitPlayer validates a player join and commits t right before its first side effect,
// the nickname claim.
func (s *Session) admitPlayer(t *ticket, req ws.JoinPayload) (*Player, error) {
	ctx, cancel := s.ioContext()
	defer cancel()

	if req.PlayerToken != "" {
		if p := s.reclaim(req.PlayerToken); p != nil {
			if m, taken := s.roster.ByNickname(p.Nickname); taken && m.PlayerID != p.ID {
				return nil, ErrNicknameTaken
			}
			if !t.commit() {
				return nil, errAbandoned
			}
			if p.ConnID == uuid.Nil {
				if err := s.deps.Registry.ClaimNickname(ctx, s.meta.Pin, p.Nickname); err != nil {
					return nil, fmt.Errorf("claim nickname: %w", err)
				}
			}
			return p, nil
		}
	}

	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		return nil, ErrInvalidPayload.With("nickname is required")
	}
	if len([]rune(nickname)) > maxNicknameLength {
		return nil, ErrInvalidPayload.With("nickname longer than %d characters", maxNicknameLength)
	}
	if s.phase == PhaseFinished {
		return nil, ErrInvalidTransition.With("game already finished")
	}
	if _, taken := s.roster.ByNickname(nickname); taken {
		return nil, ErrNicknameTaken
	}
	available, err := s.deps.Registry.NicknameAvailable(ctx, s.meta.Pin, nickname)
	if err != nil {
		return nil, fmt.Errorf("check nickname: %w", err)
	}
	if !available {
		return nil, ErrNicknameTaken
	}

	playerID := uuid.NewString()
	token, err := s.deps.Tokens.IssuePlayerToken(s.meta.Pin, playerID, nickname)
	if err != nil {
		return nil, fmt.Errorf("issue player token: %w", err)
	}
	if !t.commit() {
		return nil, errAbandoned
	}
	if err := s.deps.Registry.ClaimNickname(ctx, s.meta.Pin, nickname); err != nil {
		return nil, fmt.Errorf("claim nickname: %w", err)
	}

	p := &Player{
		ID:       playerID,
		Nickname: nickname,
		Token:    token,
		JoinedAt: s.deps.Clock.Now(),
	}
	s.players[playerID] = p
	return p, nil
}

// reclaim returns the player a token belongs to, only when it resolves to that exact
// player in this session.
func (s *Session) reclaim(token string) *Player {
	playerID, nickname, err := s.deps.Tokens.ResolvePlayerToken(token, s.meta.Pin)
	if err != nil {
		s.logger.Debug().Err(err).Msg("player token rejected")
		return nil
	}
	p, ok := s.players[playerID]
	if !ok || p.Nickname != nickname || p.Token != token {
		return nil
	}
	return p
}

func (s *Session) subscribe(connID uuid.UUID, requestID string, ack ws.JoinAckPayload) {
	msg, err := ws.NewMessage(ws.TypeJoinAck, ack)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal join_ack")
		return
	}
	msg.RequestID = requestID
	if err := s.deps.Broadcaster.SendTo(connID, msg); err != nil {
		s.logger.Warn().Err(err).Str("conn_id", connID.String()).Msg("join_ack not delivered")
	}
	s.deps.Broadcaster.JoinSession(s.meta.Pin, connID)
}

func (s *Session) leave(connID uuid.UUID) {
	sub, ok := s.conns[connID]
	if !ok {
		return
	}
	delete(s.conns, connID)
	s.deps.Broadcaster.LeaveSession(s.meta.Pin, connID)

	if sub.role != ws.RolePlayer {
		s.logger.Info().Str("conn_id", connID.String()).Msg("host left")
		return
	}
	p := s.players[sub.playerID]
	if p == nil || p.ConnID != connID {
		return
	}
	p.ConnID = uuid.Nil

	var removed bool
	s.roster, removed = s.roster.Leave(p.ID, p.Nickname)

	ctx, cancel := s.ioContext()
	if err := s.deps.Registry.ReleaseNickname(ctx, s.meta.Pin, p.Nickname); err != nil {
		s.logger.Warn().Err(err).Str("nickname", p.Nickname).Msg("release nickname failed")
	}
	cancel()

	if removed {
		s.broadcast(ws.TypePlayerLeft, ws.PlayerLeftPayload{PlayerID: p.ID, Nickname: p.Nickname})
	}
	s.logger.Info().Str("player_id", p.ID).Msg("player left")
}

func (s *Session) requireHost(connID uuid.UUID) error {
	sub, ok := s.conns[connID]
	if !ok {
		return ErrNotConnected
	}
	if sub.role != ws.RoleHost {
		return ErrForbidden
	}
	return nil
}

func (s *Session) start(connID uuid.UUID) error {
	if err := s.requireHost(connID); err != nil {
		return err
	}
	if s.phase != PhaseLobby {
		return ErrInvalidTransition.With("game already started")
	}
	if len(s.questions) == 0 {
		return ErrInvalidTransition.With("quiz has no questions")
	}

	s.startedAt = s.deps.Clock.Now()
	s.openQuestion(0)
	return nil
}

func (s *Session) advance(connID uuid.UUID) error {
	if err := s.requireHost(connID); err != nil {
		return err
	}

	switch s.phase {
	case PhaseQuestion:
		s.closeWindow(s.window.Question().ID, "advance")
	case PhaseReveal:
		if s.index+1 < len(s.questions) {
			s.openQuestion(s.index + 1)
		} else {
			s.finish()
		}
	case PhaseLobby:
		return ErrInvalidTransition.With("game has not started")
	default:
		return ErrInvalidTransition.With("game already finished")
	}
	return nil
}

func (s *Session) submit(connID uuid.UUID, req ws.SubmitAnswerPayload) error {
	sub, ok := s.conns[connID]
	if !ok {
		return ErrNotConnected
	}
	if sub.role != ws.RolePlayer {
		return ErrForbidden.With("only players may answer")
	}

	switch s.phase {
	case PhaseLobby:
		return ErrInvalidTransition.With("game has not started")
	case PhaseReveal, PhaseFinished:
		return ErrWindowClosed
	}

	answer, err := s.window.Submit(sub.playerID, req.QuestionID, req.AnswerValue, s.deps.Clock.Now(), s.deps.Scorer)
	if err != nil {
		return err
	}
	s.deps.Metrics.AnswerRecorded(answer.IsCorrect)
	s.logger.Info().
		Str("player_id", answer.PlayerID).
		Int64("question_id", answer.QuestionID).
		Bool("correct", answer.IsCorrect).
		Int("points", answer.Points).
		Int64("latency_ms", answer.LatencyMs).
		Msg("answer submitted")
	return nil
}

func (s *Session) openQuestion(index int) {
	s.transition(PhaseQuestion)

	q := s.questions[index]
	now := s.deps.Clock.Now()
	s.index = index
	s.window = NewCollector(q, index, now)
	s.lastReveal = nil

	payload := questionPayload(q, index, len(s.questions), s.window.EndsAt())
	s.current = &payload

	questionID := q.ID
	s.deadline = s.schedule(q.TimeLimit, func() { s.closeWindow(questionID, "deadline") })

	s.broadcast(ws.TypeQuestionStarted, payload)
	s.logger.Info().Int64("question_id", q.ID).Int("index", index+1).Msg("question started")
}

// closeWindow transitions question -> reveal for questionID. A trigger for a question that
// is no longer running is a no-op, so a stale deadline racing a manual advance is harmless.
func (s *Session) closeWindow(questionID int64, trigger string) {
	if s.phase != PhaseQuestion || s.window == nil || s.window.Question().ID != questionID {
		s.logger.Debug().Int64("question_id", questionID).Str("trigger", trigger).Msg("stale reveal trigger ignored")
		return
	}
	if s.deadline != nil {
		s.deadline()
		s.deadline = nil
	}

	s.transition(PhaseReveal)
	reveal := ComposeReveal(s.window, s.standings, s.nicknames())
	s.lastReveal = &reveal
	s.current = nil

	s.deps.Metrics.RevealBroadcast()
	s.broadcast(ws.TypeQuestionReveal, reveal)
	s.logger.Info().
		Int64("question_id", questionID).
		Str("trigger", trigger).
		Int("answers", len(reveal.Answers)).
		Msg("question revealed")
}

func (s *Session) finish() {
	s.transition(PhaseFinished)
	s.final = s.standings.Leaderboard(s.nicknames())
	finishedAt := s.deps.Clock.Now()

	s.broadcast(ws.TypeGameFinished, ws.GameFinishedPayload{Leaderboard: s.final})
	s.deps.Results.Submit(Summary{
		Pin:         s.meta.Pin,
		QuizID:      s.meta.QuizID,
		HostID:      s.meta.HostID,
		StartedAt:   s.startedAt,
		FinishedAt:  finishedAt,
		Questions:   len(s.questions),
		Leaderboard: s.final,
	})

	s.retention = s.schedule(s.opts.Retention, func() {
		s.evicted = true
		s.stopOnce.Do(func() { close(s.quit) })
	})
	s.logger.Info().Int("players", len(s.final)).Msg("game finished")
}

// transition enforces the phase table. Any other edge means two authoritative
// transitions were applied out of order, which is unrecoverable.
func (s *Session) transition(to Phase) {
	if !canTransition(s.phase, to) {
		panic(InvariantViolation{Pin: s.meta.Pin, From: s.phase, To: to})
	}
	s.phase = to
	s.history = append(s.history, to)
	s.updatedAt = s.deps.Clock.Now()
}

// schedule runs fn on the session goroutine after d unless the returned cancel is called first.
func (s *Session) schedule(d time.Duration, fn func()) func() {
	ctx, cancel := context.WithCancel(context.Background())
	t := s.deps.Clock.NewTimer(d)

	go func() {
		select {
		case <-t.Chan():
			s.post(fn)
		case <-ctx.Done():
		}
	}()

	return func() {
		cancel()
		stopAndDrainTimer(t)
	}
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

func (s *Session) broadcast(msgType string, payload any) {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("type", msgType).Msg("marshal broadcast")
		return
	}
	if err := s.deps.Broadcaster.BroadcastToSession(s.meta.Pin, msg); err != nil {
		s.logger.Debug().Err(err).Str("type", msgType).Msg("broadcast partially delivered")
	}
	s.deps.Events.Publish(s.meta.Pin, msg)
}

func (s *Session) resume() *ws.ResumePayload {
	total := len(s.questions)
	switch s.phase {
	case PhaseQuestion:
		current := *s.current
		return &ws.ResumePayload{
			Phase:           ws.PhaseQuestion,
			QuestionIndex:   s.index + 1,
			TotalQuestions:  total,
			CurrentQuestion: &current,
		}
	case PhaseReveal:
		return &ws.ResumePayload{
			Phase:          ws.PhaseLeaderboard,
			QuestionIndex:  s.index + 1,
			TotalQuestions: total,
			Leaderboard:    s.lastReveal.Leaderboard,
		}
	case PhaseFinished:
		return &ws.ResumePayload{
			Phase:          ws.PhaseFinished,
			QuestionIndex:  s.index + 1,
			TotalQuestions: total,
			Leaderboard:    s.final,
		}
	default:
		return &ws.ResumePayload{
			Phase:          ws.PhaseLobby,
			TotalQuestions: total,
		}
	}
}

func (s *Session) rosterPayload() []ws.Player {
	members := s.roster.Members()
	out := make([]ws.Player, len(members))
	for i, m := range members {
		out[i] = ws.Player{PlayerID: m.PlayerID, Nickname: m.Nickname}
	}
	return out
}

func (s *Session) nicknames() map[string]string {
	out := make(map[string]string, len(s.players))
	for id, p := range s.players {
		out[id] = p.Nickname
	}
	return out
}

func questionPayload(q Question, index, total int, endsAt time.Time) ws.QuestionStartedPayload {
	choices := make([]ws.ChoicePayload, len(q.Choices))
	for i, c := range q.Choices {
		choices[i] = ws.ChoicePayload{ID: c.ID, Text: c.Text, Position: c.Position}
	}
	return ws.QuestionStartedPayload{
		QuestionID:     q.ID,
		QuestionIndex:  index + 1,
		TotalQuestions: total,
		Type:           string(q.Kind),
		Prompt:         q.Prompt,
		Choices:        choices,
		TimeLimitMs:    q.TimeLimit.Milliseconds(),
		EndsAt:         endsAt.UnixMilli(),
	}
}
