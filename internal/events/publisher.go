package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/livequiz/internal/game"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

type JetStreamConfig struct {
	URL           string
	StreamName    string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration
	MaxPending    int
	StallWait     time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:           nats.DefaultURL,
		StreamName:    "QUIZ_EVENTS",
		SubjectPrefix: "quiz.events",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		MaxAge:        24 * time.Hour,
		MaxPending:    4096,
		StallWait:     50 * time.Millisecond,
	}
}

func (c JetStreamConfig) withDefaults() JetStreamConfig {
	d := DefaultJetStreamConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.StreamName == "" {
		c.StreamName = d.StreamName
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = d.SubjectPrefix
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = d.MaxReconnects
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = d.ReconnectWait
	}
	if c.MaxAge <= 0 {
		c.MaxAge = d.MaxAge
	}
	if c.MaxPending <= 0 {
		c.MaxPending = d.MaxPending
	}
	if c.StallWait <= 0 {
		c.StallWait = d.StallWait
	}
	return c
}

// Event is the envelope published for every authoritative game event.
type Event struct {
	EventID   string          `json:"event_id"`
	Pin       string          `json:"pin"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type asyncPublisher interface {
	PublishMsgAsync(msg *nats.Msg, opts ...jetstream.PublishOpt) (jetstream.PubAckFuture, error)
}

// JetStreamPublisher mirrors game broadcasts to a JetStream stream for downstream consumers.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	pub    asyncPublisher
	config JetStreamConfig
	logger zerolog.Logger
	now    func() time.Time
}

func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig, logger zerolog.Logger) (*JetStreamPublisher, error) {
	cfg = cfg.withDefaults()
	logger = logger.With().Str("component", "events").Logger()

	opts := []nats.Option{
		nats.Name("livequiz-api"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc, jetstream.WithPublishAsyncMaxPending(cfg.MaxPending))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, pub: js, config: cfg, logger: logger, now: time.Now}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	logger.Info().Str("url", cfg.URL).Str("stream", cfg.StreamName).Msg("event publisher ready")
	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Live quiz game events",
		Subjects:    []string{p.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Duplicates:  2 * time.Minute,
	}

	if _, err := p.js.CreateOrUpdateStream(ctx, sc); err != nil {
		return fmt.Errorf("create or update stream: %w", err)
	}
	return nil
}

// Publish sends msg without waiting for the server acknowledgement.
func (p *JetStreamPublisher) Publish(pin string, msg ws.Message) {
	natsMsg, eventID, err := p.buildMsg(pin, msg)
	if err != nil {
		p.logger.Warn().Err(err).Str("pin", pin).Str("type", msg.Type).Msg("failed to encode event")
		return
	}

	if _, err := p.pub.PublishMsgAsync(natsMsg,
		jetstream.WithMsgID(eventID),
		jetstream.WithStallWait(p.config.StallWait),
	); err != nil {
		p.logger.Warn().Err(err).Str("pin", pin).Str("type", msg.Type).Msg("failed to publish event")
	}
}

func (p *JetStreamPublisher) buildMsg(pin string, msg ws.Message) (*nats.Msg, string, error) {
	eventID := uuid.NewString()
	data, err := json.Marshal(Event{
		EventID:   eventID,
		Pin:       pin,
		Type:      msg.Type,
		Timestamp: p.now().UTC(),
		Payload:   msg.Payload,
	})
	if err != nil {
		return nil, "", err
	}

	return &nats.Msg{
		Subject: Subject(p.config.SubjectPrefix, pin, msg.Type),
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{msg.Type},
			"Game-Pin":   []string{pin},
			"Event-ID":   []string{eventID},
		},
	}, eventID, nil
}

// Close waits briefly for in-flight publishes, then drains the connection.
func (p *JetStreamPublisher) Close(ctx context.Context) error {
	select {
	case <-p.js.PublishAsyncComplete():
	case <-ctx.Done():
		p.logger.Warn().Int("pending", p.js.PublishAsyncPending()).Msg("closing with unacknowledged events")
	}
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("drain NATS: %w", err)
	}
	return nil
}

// Subject builds the subject an event is published on.
func Subject(prefix, pin, eventType string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, pin, eventType)
}

// Noop discards events when no broker is configured.
type Noop struct{}

func (Noop) Publish(string, ws.Message) {}

var (
	_ game.EventPublisher = (*JetStreamPublisher)(nil)
	_ game.EventPublisher = Noop{}
)
