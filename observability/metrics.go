// Package observability exposes delivery and presence metrics.
// The runtime reports through MetricsCollector so tests and tools can run
// without a Prometheus registry.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type MetricsCollector interface {
	RecordPushDelivered()
	RecordPushDropped()
	RecordPushFailed()
	RecordPresenceMiss()
	RecordTypingSignal()
	RecordUserOnline()
	RecordUserOffline()
}

// Collector is the Prometheus implementation.
type Collector struct {
	pushDelivered prometheus.Counter
	pushDropped   prometheus.Counter
	pushFailed    prometheus.Counter
	presenceMiss  prometheus.Counter
	typingSignals prometheus.Counter
	onlineUsers   prometheus.Gauge
}

// NewCollector registers all metrics on reg and returns the collector.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pushDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_push_delivered_total",
			Help: "Message events pushed to a live connection",
		}),
		pushDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_push_dropped_total",
			Help: "Message events dropped by a full connection buffer",
		}),
		pushFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_push_failed_total",
			Help: "Message events that failed to reach a live connection",
		}),
		presenceMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_presence_miss_total",
			Help: "Fan-out targets with no live connection",
		}),
		typingSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatrelay_typing_signals_total",
			Help: "Typing start/stop signals relayed",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatrelay_online_users",
			Help: "Users with at least one live connection",
		}),
	}

	reg.MustRegister(
		c.pushDelivered,
		c.pushDropped,
		c.pushFailed,
		c.presenceMiss,
		c.typingSignals,
		c.onlineUsers,
	)

	return c
}

func (c *Collector) RecordPushDelivered() { c.pushDelivered.Inc() }
func (c *Collector) RecordPushDropped()   { c.pushDropped.Inc() }
func (c *Collector) RecordPushFailed()    { c.pushFailed.Inc() }
func (c *Collector) RecordPresenceMiss()  { c.presenceMiss.Inc() }
func (c *Collector) RecordTypingSignal()  { c.typingSignals.Inc() }
func (c *Collector) RecordUserOnline()    { c.onlineUsers.Inc() }
func (c *Collector) RecordUserOffline()   { c.onlineUsers.Dec() }

// NopCollector is used by tests and read-only tools.
type NopCollector struct{}

func (NopCollector) RecordPushDelivered() {}
func (NopCollector) RecordPushDropped()   {}
func (NopCollector) RecordPushFailed()    {}
func (NopCollector) RecordPresenceMiss()  {}
func (NopCollector) RecordTypingSignal()  {}
func (NopCollector) RecordUserOnline()    {}
func (NopCollector) RecordUserOffline()   {}
