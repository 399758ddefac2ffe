// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const (
	metricsNamespace = "documind"
	clientSubsystem  = "client"
)

// StreamingMetrics holds the client-side Prometheus metrics for chat
// streams and side-channel requests.
//
// # Description
//
// Create one instance per registry with NewStreamingMetrics. All record
// methods are safe on a nil receiver, so components can run without
// metrics.
//
// # Fields
//
//   - RequestsTotal: requests by endpoint and outcome
//   - RecordsTotal: stream records by kind (token, sources, both, unrecognized)
//   - DroppedRecordsTotal: unrecognized records by reason
//   - TimeToFirstTokenSeconds: request start to first content delta
//   - StreamDurationSeconds: request start to stream end, by outcome
//   - ActiveStreams: streams in flight (0 or 1 for one session)
//   - BytesTotal: response body bytes consumed
//
// # Thread Safety
//
// All operations are thread-safe.
type StreamingMetrics struct {
	RequestsTotal           *prometheus.CounterVec
	RecordsTotal            *prometheus.CounterVec
	DroppedRecordsTotal     *prometheus.CounterVec
	TimeToFirstTokenSeconds prometheus.Histogram
	StreamDurationSeconds   *prometheus.HistogramVec
	ActiveStreams           prometheus.Gauge
	BytesTotal              prometheus.Counter
}

// NewStreamingMetrics creates and registers the metrics on reg.
//
// # Limitations
//
//   - Panics if called twice with the same registry (duplicate registration).
func NewStreamingMetrics(reg prometheus.Registerer) *StreamingMetrics {
	factory := promauto.With(reg)

	return &StreamingMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "requests_total",
				Help:      "Total backend requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "stream_records_total",
				Help:      "Chat stream records by kind",
			},
			[]string{"kind"},
		),

		DroppedRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "dropped_records_total",
				Help:      "Unrecognized chat stream records by reason",
			},
			[]string{"reason"},
		),

		TimeToFirstTokenSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "time_to_first_token_seconds",
				Help:      "Time from chat request to first content delta",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),

		StreamDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "stream_duration_seconds",
				Help:      "Total chat stream duration by outcome",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),

		ActiveStreams: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "active_streams",
				Help:      "Chat streams currently being consumed",
			},
		),

		BytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "stream_bytes_total",
				Help:      "Chat response body bytes consumed",
			},
		),
	}
}

// =============================================================================
// Labels
// =============================================================================

// Endpoint labels backend requests.
type Endpoint string

const (
	EndpointChat      Endpoint = "chat"
	EndpointModels    Endpoint = "models"
	EndpointIngest    Endpoint = "ingest"
	EndpointIngestURL Endpoint = "ingest_url"
	EndpointAudio     Endpoint = "audio_summary"
)

// Outcome labels how a request or stream ended.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTransport Outcome = "transport_error"
	OutcomeStream    Outcome = "stream_error"
	OutcomeCancelled Outcome = "cancelled"
)

// RecordKind labels stream records.
type RecordKind string

const (
	RecordToken        RecordKind = "token"
	RecordSources      RecordKind = "sources"
	RecordBoth         RecordKind = "token_and_sources"
	RecordUnrecognized RecordKind = "unrecognized"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest counts one backend request.
func (m *StreamingMetrics) RecordRequest(endpoint Endpoint, outcome Outcome) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), string(outcome)).Inc()
}

// RecordStreamRecord counts one framed record.
func (m *StreamingMetrics) RecordStreamRecord(kind RecordKind) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(string(kind)).Inc()
}

// RecordDropped counts one unrecognized record.
func (m *StreamingMetrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(string(RecordUnrecognized)).Inc()
	m.DroppedRecordsTotal.WithLabelValues(reason).Inc()
}

// RecordTimeToFirstToken observes first-token latency in seconds.
func (m *StreamingMetrics) RecordTimeToFirstToken(seconds float64) {
	if m == nil {
		return
	}
	m.TimeToFirstTokenSeconds.Observe(seconds)
}

// StreamStarted increments the active streams gauge.
func (m *StreamingMetrics) StreamStarted() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

// StreamEnded decrements the active streams gauge and records duration
// and body size.
func (m *StreamingMetrics) StreamEnded(outcome Outcome, seconds float64, bytes int64) {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
	m.StreamDurationSeconds.WithLabelValues(string(outcome)).Observe(seconds)
	m.BytesTotal.Add(float64(bytes))
}
