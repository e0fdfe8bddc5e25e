package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

// Clock abstracts time so deadlines can be driven by a fake clock in tests.
// In production, use clockwork.NewRealClock().
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Broadcaster fans messages out to the connections subscribed to a session.
// Sends must not block on slow subscribers.
type Broadcaster interface {
	JoinSession(pin string, connID uuid.UUID)
	LeaveSession(pin string, connID uuid.UUID)
	BroadcastToSession(pin string, msg ws.Message) error
	SendTo(connID uuid.UUID, msg ws.Message) error
}

// Registry resolves pins and keeps nickname claims for active players.
type Registry interface {
	Lookup(ctx context.Context, pin string) (SessionMeta, error)
	NicknameAvailable(ctx context.Context, pin, nickname string) (bool, error)
	ClaimNickname(ctx context.Context, pin, nickname string) error
	ReleaseNickname(ctx context.Context, pin, nickname string) error
	ClearNicknames(ctx context.Context, pin string) error
	Release(ctx context.Context, pin string) error
}

// HostVerifier checks a host bearer token against the session owner.
type HostVerifier interface {
	VerifyHostToken(token string, hostID uuid.UUID) bool
}

// PlayerTokens issues and resolves the reconnection credential scoped to (pin, nickname).
type PlayerTokens interface {
	IssuePlayerToken(pin, playerID, nickname string) (string, error)
	ResolvePlayerToken(token, pin string) (playerID, nickname string, err error)
}

// QuizLoader snapshots quiz content when a session opens.
type QuizLoader interface {
	LoadQuestions(ctx context.Context, quizID int64) ([]Question, error)
}

// ResultSink receives finished games. Submit must not block.
type ResultSink interface {
	Submit(summary Summary)
}

// EventPublisher mirrors broadcast events to an external stream. Publish must not block.
type EventPublisher interface {
	Publish(pin string, msg ws.Message)
}

// Metrics observes session activity.
type Metrics interface {
	SessionOpened()
	SessionClosed()
	CommandHandled(command string, err error)
	AnswerRecorded(correct bool)
	RevealBroadcast()
}

// Deps bundles the collaborators a session needs.
type Deps struct {
	Broadcaster Broadcaster
	Registry    Registry
	Hosts       HostVerifier
	Tokens      PlayerTokens
	Scorer      Scorer
	Results     ResultSink
	Events      EventPublisher
	Metrics     Metrics
	Clock       Clock
	Logger      zerolog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Results == nil {
		d.Results = noopSink{}
	}
	if d.Events == nil {
		d.Events = noopPublisher{}
	}
	if d.Metrics == nil {
		d.Metrics = NoopMetrics{}
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return d
}

type noopSink struct{}

func (noopSink) Submit(Summary) {}

type noopPublisher struct{}

func (noopPublisher) Publish(string, ws.Message) {}

// NoopMetrics discards observations.
type NoopMetrics struct{}

func (NoopMetrics) SessionOpened() {}
func (NoopMetrics) SessionClosed() {}
func (NoopMetrics) CommandHandled(string, error) {}
func (NoopMetrics) AnswerRecorded(bool) {}
func (NoopMetrics) RevealBroadcast() {}
