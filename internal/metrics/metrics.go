package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gokatarajesh/livequiz/internal/game"
)

const namespace = "livequiz"

// Collector records game and gateway activity in Prometheus.
type Collector struct {
	sessions    prometheus.Gauge
	connections prometheus.Gauge
	commands    *prometheus.CounterVec
	answers     *prometheus.CounterVec
	reveals     prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to expose them on /metrics.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Live game sessions currently held in memory.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Open websocket connections.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Inbound commands by type and outcome code.",
		}, []string{"type", "outcome"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Accepted answers by correctness.",
		}, []string{"correct"}),
		reveals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reveals_total",
			Help:      "Question reveals broadcast.",
		}),
	}
	reg.MustRegister(c.sessions, c.connections, c.commands, c.answers, c.reveals)
	return c
}

func (c *Collector) SessionOpened() { c.sessions.Inc() }
func (c *Collector) SessionClosed() { c.sessions.Dec() }

func (c *Collector) CommandHandled(command string, err error) {
	c.commands.WithLabelValues(command, Outcome(err)).Inc()
}

func (c *Collector) AnswerRecorded(correct bool) {
	label := "false"
	if correct {
		label = "true"
	}
	c.answers.WithLabelValues(label).Inc()
}

func (c *Collector) RevealBroadcast() { c.reveals.Inc() }

func (c *Collector) ConnectionOpened() { c.connections.Inc() }
func (c *Collector) ConnectionClosed() { c.connections.Dec() }

// Outcome maps a command error to a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return game.CodeOf(err)
}

var _ game.Metrics = (*Collector)(nil)
