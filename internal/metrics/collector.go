// Package metrics exports media server counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/velaterm/vela/domain/entities"
	"github.com/velaterm/vela/usecase"
)

// Collector implements usecase.MediaObserver on Prometheus counters. All
// methods are called synchronously from the media server, so they only do
// counter increments.
type Collector struct {
	streamsOpened     *prometheus.CounterVec
	streamsClosed     *prometheus.CounterVec
	utterancesQueued  *prometheus.CounterVec
	utterancesDone    prometheus.Counter
	resultsDelivered  prometheus.Counter
	streamTimeouts    prometheus.Counter
	latencyViolations prometheus.Counter
}

var _ usecase.MediaObserver = (*Collector)(nil)

// NewCollector registers the media metrics with the registerer. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewCollector(namespace string, registerer prometheus.Registerer) *Collector {
	factory := promauto.With(registerer)
	return &Collector{
		streamsOpened: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "streams_opened_total",
				Help:      "Total number of audio streams opened",
			},
			[]string{"direction"},
		),
		streamsClosed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "streams_closed_total",
				Help:      "Total number of audio streams closed",
			},
			[]string{"direction"},
		),
		utterancesQueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tts_utterances_queued_total",
				Help:      "Total number of utterances queued for playback",
			},
			[]string{"priority"},
		),
		utterancesDone: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tts_utterances_finished_total",
				Help:      "Total number of utterances played to completion",
			},
		),
		resultsDelivered: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stt_results_delivered_total",
				Help:      "Total number of final recognition results delivered",
			},
		),
		streamTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_timeouts_total",
				Help:      "Total number of streams closed for exceeding max duration",
			},
		),
		latencyViolations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_latency_violations_total",
				Help:      "Total number of latency bound violations observed",
			},
		),
	}
}

func (c *Collector) StreamOpened(direction entities.StreamDirection) {
	c.streamsOpened.WithLabelValues(string(direction)).Inc()
}

func (c *Collector) StreamClosed(direction entities.StreamDirection) {
	c.streamsClosed.WithLabelValues(string(direction)).Inc()
}

func (c *Collector) UtteranceQueued(priority entities.Priority) {
	c.utterancesQueued.WithLabelValues(string(priority)).Inc()
}

func (c *Collector) UtteranceFinished() {
	c.utterancesDone.Inc()
}

func (c *Collector) ResultDelivered() {
	c.resultsDelivered.Inc()
}

func (c *Collector) StreamTimeouts(count int) {
	c.streamTimeouts.Add(float64(count))
}

func (c *Collector) LatencyViolations(count int) {
	c.latencyViolations.Add(float64(count))
}
