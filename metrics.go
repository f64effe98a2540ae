package main

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	challengeCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_challenges",
		Help: "The total number of payment challenges issued",
	})
	settledCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_settled",
		Help: "The total number of payments settled",
	})
	rejectedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_rejected",
		Help: "The total number of settlement attempts rejected",
	})
	servedCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resources_served",
		Help: "The total number of paid resources served",
	})
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_response_duration_seconds",
		Help: "Latency of requests in second.",
	}, []string{"path"})
)

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := prometheus.NewTimer(httpDuration.WithLabelValues(r.URL.Path))

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		timer.ObserveDuration()
	})
}
