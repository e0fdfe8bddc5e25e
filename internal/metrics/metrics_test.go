package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/gokatarajesh/livequiz/internal/game"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

func TestCollector(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.SessionOpened()
	c.SessionOpened()
	c.SessionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessions))

	c.ConnectionOpened()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connections))
	c.ConnectionClosed()
	assert.Equal(t, 0.0, testutil.ToFloat64(c.connections))

	c.CommandHandled(ws.TypeStart, nil)
	c.CommandHandled(ws.TypeSubmitAnswer, game.ErrWindowClosed)
	c.CommandHandled(ws.TypeSubmitAnswer, game.ErrWindowClosed.With("question %d closed", 4))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.commands.WithLabelValues(ws.TypeStart, "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.commands.WithLabelValues(ws.TypeSubmitAnswer, "window_closed")))

	c.AnswerRecorded(true)
	c.AnswerRecorded(false)
	c.AnswerRecorded(true)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.answers.WithLabelValues("true")))

	c.RevealBroadcast()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reveals))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "forbidden", Outcome(game.ErrForbidden))
	assert.Equal(t, "internal_error", Outcome(errors.New("boom")))
}
