package remote

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the transfer counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	connections *prometheus.CounterVec
	transfers   *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	integrity   *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xferkit_connections_total",
				Help: "Connection attempts by security mode and result",
			},
			[]string{"mode", "result"},
		),
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xferkit_transfers_total",
				Help: "Completed transfer calls by direction, security mode and result",
			},
			[]string{"direction", "mode", "result"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xferkit_transfer_bytes_total",
				Help: "Bytes moved over data channels",
			},
			[]string{"direction"},
		),
		integrity: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xferkit_integrity_checks_total",
				Help: "Integrity verification outcomes",
			},
			[]string{"outcome"},
		),
	}
	for _, c := range []prometheus.Collector{m.connections, m.transfers, m.bytes, m.integrity} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) connection(mode SecurityMode, err error) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(mode.String(), result(err)).Inc()
}

func (m *Metrics) transfer(direction string, mode SecurityMode, n int64, err error) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(direction, mode.String(), result(err)).Inc()
	if n > 0 {
		m.bytes.WithLabelValues(direction).Add(float64(n))
	}
}

func (m *Metrics) integrityOutcome(o IntegrityOutcome) {
	if m == nil {
		return
	}
	m.integrity.WithLabelValues(o.Status.String()).Inc()
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	if k := KindOf(err); k != 0 {
		return k.String()
	}
	return "error"
}
