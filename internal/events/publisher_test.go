package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

type capturePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (c *capturePublisher) PublishMsgAsync(msg *nats.Msg, _ ...jetstream.PublishOpt) (jetstream.PubAckFuture, error) {
	c.msgs = append(c.msgs, msg)
	return nil, c.err
}

func newTestPublisher(pub asyncPublisher) *JetStreamPublisher {
	return &JetStreamPublisher{
		pub:    pub,
		config: DefaultJetStreamConfig(),
		logger: zerolog.Nop(),
		now:    func() time.Time { return time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC) },
	}
}

func TestPublish_EnvelopeAndSubject(t *testing.T) {
	capture := &capturePublisher{}
	p := newTestPublisher(capture)

	msg, err := ws.NewMessage(ws.TypeQuestionStarted, ws.QuestionStartedPayload{QuestionID: 9, QuestionIndex: 1})
	require.NoError(t, err)
	p.Publish("482913", msg)

	require.Len(t, capture.msgs, 1)
	sent := capture.msgs[0]
	assert.Equal(t, "quiz.events.482913.question_started", sent.Subject)
	assert.Equal(t, ws.TypeQuestionStarted, sent.Header.Get("Event-Type"))
	assert.Equal(t, "482913", sent.Header.Get("Game-Pin"))

	var evt Event
	require.NoError(t, json.Unmarshal(sent.Data, &evt))
	assert.Equal(t, sent.Header.Get("Event-ID"), evt.EventID)
	assert.Equal(t, "482913", evt.Pin)
	assert.Equal(t, ws.TypeQuestionStarted, evt.Type)
	assert.JSONEq(t, string(msg.Payload), string(evt.Payload))
}

func TestPublish_ErrorsAreSwallowed(t *testing.T) {
	p := newTestPublisher(&capturePublisher{err: errors.New("stalled")})
	msg, err := ws.NewMessage(ws.TypeGameFinished, nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() { p.Publish("1", msg) })
}

func TestJetStreamConfig_Defaults(t *testing.T) {
	cfg := JetStreamConfig{URL: "nats://broker:4222"}.withDefaults()
	assert.Equal(t, "nats://broker:4222", cfg.URL)
	assert.Equal(t, "QUIZ_EVENTS", cfg.StreamName)
	assert.Equal(t, "quiz.events", cfg.SubjectPrefix)
	assert.Equal(t, -1, cfg.MaxReconnects)
}
