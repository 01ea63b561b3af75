package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"i4.energy/across/loragw/modem"
)

// Metrics exposes counters about the traffic going through the modem.
type Metrics struct {
	uplinks *prometheus.CounterVec
	keys    *prometheus.CounterVec
	adr     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		uplinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loragw",
			Name:      "uplinks_total",
			Help:      "Payloads sent with AT+CMSGHEX by result (acked, unacked, failed).",
		}, []string{"result"}),
		keys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loragw",
			Name:      "key_provisioning_total",
			Help:      "AT+KEY exchanges by key type and outcome (accepted, rejected, failed).",
		}, []string{"key", "outcome"}),
		adr: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loragw",
			Name:      "adr_enabled",
			Help:      "Adaptive data rate setting last sent to the modem.",
		}),
	}
	reg.MustRegister(m.uplinks, m.keys, m.adr)
	return m
}

func (m *Metrics) ObserveUplink(acked bool, err error) {
	switch {
	case err != nil:
		m.uplinks.WithLabelValues("failed").Inc()
	case acked:
		m.uplinks.WithLabelValues("acked").Inc()
	default:
		m.uplinks.WithLabelValues("unacked").Inc()
	}
}

func (m *Metrics) ObserveKey(result modem.KeyResult, err error) {
	outcome := "accepted"
	switch {
	case result.Reason != "":
		outcome = "rejected"
	case err != nil:
		outcome = "failed"
	}
	m.keys.WithLabelValues(string(result.Key), outcome).Inc()
}

func (m *Metrics) ObserveADR(enabled bool) {
	if enabled {
		m.adr.Set(1)
		return
	}
	m.adr.Set(0)
}
