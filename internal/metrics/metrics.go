// Package metrics provides Prometheus metrics for the capture engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	busTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sc0710",
		Subsystem: "iic",
		Name:      "transactions_total",
		Help:      "Register bus read transactions by outcome",
	}, []string{"result"})

	signalPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sc0710",
		Subsystem: "signal",
		Name:      "polls_total",
		Help:      "HDMI status polls by resulting state",
	}, []string{"state"})

	signalLocked = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sc0710",
		Subsystem: "signal",
		Name:      "locked",
		Help:      "1 while an HDMI signal is locked",
	})

	dmaResyncs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sc0710",
		Subsystem: "dma",
		Name:      "resyncs_total",
		Help:      "DMA channel resync sequences performed",
	})

	framesDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sc0710",
		Subsystem: "stream",
		Name:      "frames_total",
		Help:      "Frames handed to clients, by source",
	}, []string{"source"})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sc0710",
		Subsystem: "stream",
		Name:      "frames_dropped_total",
		Help:      "Frames discarded because a client had no free buffer",
	})

	streamingClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sc0710",
		Subsystem: "stream",
		Name:      "streaming_clients",
		Help:      "Clients currently streaming",
	})
)

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordBusTransaction counts one register bus transaction. result is
// "ok", "ack_timeout", "read_timeout" or "bad_status".
func RecordBusTransaction(result string) {
	busTransactions.WithLabelValues(result).Inc()
}

// RecordPoll counts one status poll. state is the monitor state after
// the poll ("locked", "unlocked", "no_device").
func RecordPoll(state string) {
	signalPolls.WithLabelValues(state).Inc()
}

// SetLocked publishes the lock state.
func SetLocked(locked bool) {
	if locked {
		signalLocked.Set(1)
	} else {
		signalLocked.Set(0)
	}
}

// RecordResync counts one completed resync sequence.
func RecordResync() {
	dmaResyncs.Inc()
}

// RecordFrame counts one delivered frame. source is "capture" or
// "placeholder".
func RecordFrame(source string) {
	framesDelivered.WithLabelValues(source).Inc()
}

// RecordDroppedFrame counts a frame discarded for lack of a buffer.
func RecordDroppedFrame() {
	framesDropped.Inc()
}

// SetStreamingClients publishes the streaming client count.
func SetStreamingClients(n int) {
	streamingClients.Set(float64(n))
}
