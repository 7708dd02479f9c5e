/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"time"

	"github.com/Seednode/partyhub/party"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry *prometheus.Registry
	actions  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	limited  prometheus.Counter
}

func newMetrics(m *party.Manager) *metrics {
	mt := &metrics{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "partyhub",
			Name:      "actions_total",
			Help:      "Actions handled, by game, action and outcome.",
		}, []string{"game", "action", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "partyhub",
			Name:      "action_duration_seconds",
			Help:      "Time spent handling an action.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"game"}),
		limited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "partyhub",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter.",
		}),
	}

	mt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		mt.actions,
		mt.duration,
		mt.limited,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "partyhub",
			Name:      "rooms",
			Help:      "Rooms currently open.",
		}, func() float64 { return float64(m.Len()) }),
	)

	return mt
}

func (mt *metrics) observe(game, action string, err error, d time.Duration) {
	mt.actions.WithLabelValues(game, action, outcome(err)).Inc()
	mt.duration.WithLabelValues(game).Observe(d.Seconds())
}

func (mt *metrics) handler() http.Handler {
	return promhttp.HandlerFor(mt.registry, promhttp.HandlerOpts{})
}
