package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "funeral_inventory"

// Recorder counts inventory and transfer operations. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	operations *prometheus.CounterVec
	ghostLines prometheus.Counter
	alerts     *prometheus.CounterVec
	transfers  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Reservation engine operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		ghostLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ghost_lines_total",
			Help:      "Inventory lines provisioned with zero stock on demand.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Stock alerts raised by severity.",
		}, []string{"severity"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_events_total",
			Help:      "Transfer lifecycle events by event and outcome.",
		}, []string{"event", "outcome"}),
	}
	reg.MustRegister(r.operations, r.ghostLines, r.alerts, r.transfers)
	return r
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (r *Recorder) Operation(op string, err error) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(op, outcome(err)).Inc()
}

func (r *Recorder) GhostLine() {
	if r == nil {
		return
	}
	r.ghostLines.Inc()
}

func (r *Recorder) Alert(severity string) {
	if r == nil {
		return
	}
	r.alerts.WithLabelValues(severity).Inc()
}

func (r *Recorder) Transfer(event string, err error) {
	if r == nil {
		return
	}
	r.transfers.WithLabelValues(event, outcome(err)).Inc()
}
