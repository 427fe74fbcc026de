package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mathbattle"

// Collectors groups the server's metrics. A nil *Collectors is valid and
// records nothing.
type Collectors struct {
	RoomsActive         prometheus.Gauge
	ConnectionsActive   *prometheus.GaugeVec
	ConnectionsRejected prometheus.Counter
	Answers             *prometheus.CounterVec
	Rounds              *prometheus.CounterVec
	OutboundDropped     prometheus.Counter
}

func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		RoomsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Rooms currently held in memory.",
		}),
		ConnectionsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Registered connections by kind.",
		}, []string{"kind"}),
		ConnectionsRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Connections rejected for a duplicate name.",
		}),
		Answers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answers processed by result: correct, incorrect or late.",
		}, []string{"result"}),
		Rounds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Battles replaced by outcome.",
		}, []string{"outcome"}),
		OutboundDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_dropped_total",
			Help:      "Messages dropped because a connection's send buffer was full.",
		}),
	}
}

func (c *Collectors) RoomOpened() {
	if c != nil {
		c.RoomsActive.Inc()
	}
}

func (c *Collectors) RoomClosed() {
	if c != nil {
		c.RoomsActive.Dec()
	}
}

func (c *Collectors) Connected(kind string) {
	if c != nil {
		c.ConnectionsActive.WithLabelValues(kind).Inc()
	}
}

func (c *Collectors) Disconnected(kind string) {
	if c != nil {
		c.ConnectionsActive.WithLabelValues(kind).Dec()
	}
}

func (c *Collectors) Rejected() {
	if c != nil {
		c.ConnectionsRejected.Inc()
	}
}

func (c *Collectors) Answer(correct bool) {
	if c == nil {
		return
	}
	result := "incorrect"
	if correct {
		result = "correct"
	}
	c.Answers.WithLabelValues(result).Inc()
}

// AnswerLate counts a correct answer that arrived after the player's window.
func (c *Collectors) AnswerLate() {
	if c != nil {
		c.Answers.WithLabelValues("late").Inc()
	}
}

func (c *Collectors) Round(outcome string) {
	if c != nil {
		c.Rounds.WithLabelValues(outcome).Inc()
	}
}

func (c *Collectors) Dropped() {
	if c != nil {
		c.OutboundDropped.Inc()
	}
}
