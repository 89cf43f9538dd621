package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lichsu_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lichsu_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	PointsTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lichsu_points_transactions_total",
		Help: "Ledger transactions, labeled by kind",
	}, []string{"kind"})

	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lichsu_redemptions_total",
		Help: "Voucher redemption attempts, labeled by provider and result",
	}, []string{"provider", "result"})

	QuizAnswers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lichsu_quiz_answers_total",
		Help: "Quiz submissions, labeled by outcome (correct, wrong, timeout, locked)",
	}, []string{"outcome"})

	QuizLocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lichsu_quiz_locks_total",
		Help: "Times an attempt gate entered the locked state",
	})

	StoreFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lichsu_store_failures_total",
		Help: "Absorbed store failures, labeled by operation (read_corrupt, read, write)",
	}, []string{"op"})

	ActiveQuizRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lichsu_quiz_runs_active",
		Help: "Quiz runs currently attached to a websocket",
	})
)
