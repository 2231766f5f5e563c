package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess    = "success"
	outcomeMalformed  = "malformed"
	outcomeRejected   = "rejected"
	outcomeStoreError = "store_error"
)

var loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "teleserver_telegram_login_total",
	Help: "Telegram login attempts by outcome",
}, []string{"outcome"})

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "teleserver_http_request_duration_seconds",
	Help:    "HTTP request latency",
	Buckets: prometheus.ExponentialBucketsRange(0.0005, 5, 16),
}, []string{"method", "route", "status"})

func recordLoginOutcome(outcome string) {
	loginAttempts.WithLabelValues(outcome).Inc()
}
