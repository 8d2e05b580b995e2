// Package metrics defines Prometheus counters, gauges and histograms for
// the bridge, the session orchestrator and per-turn latency (spec §11
// DOMAIN STACK), modeled on the teacher's ManagedStream latency timestamps
// (GetLatencyBreakdown). No other package in this repository updates these
// collectors or calls Register.
// Grounded on github.com/prometheus/client_golang, which the pack already
// depends on transitively via dmzoneill-ollama-proxy and
// hubenschmidt-go-gateway-microservice.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BridgeBytesIn = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_bridge_bytes_in_total",
		Help: "Cumulative linear-16 bytes read from the SIP-side socket.",
	})
	BridgeBytesOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_bridge_bytes_out_total",
		Help: "Cumulative linear-16 bytes written to the SIP-side socket.",
	})
	BridgeWriteQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "voicebridge_bridge_write_queue_depth",
		Help: "Current number of μ-law blobs queued for the write worker.",
	})

	TurnLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicebridge_turn_latency_seconds",
		Help:    "Per-turn latency by pipeline stage (stt, llm, tts).",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "voicebridge_sessions_active",
		Help: "1 while a session orchestrator holds the PID lock, 0 otherwise.",
	})

	TriggerFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebridge_trigger_fired_total",
		Help: "Count of trigger fires by trigger name and action.",
	}, []string{"trigger", "action"})
)

// Register adds every collector to reg. Call once at process startup.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		BridgeBytesIn, BridgeBytesOut, BridgeWriteQueueDepth,
		TurnLatency, SessionsActive, TriggerFired,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
