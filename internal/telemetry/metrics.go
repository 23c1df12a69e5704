package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка. Регистрируются в default registry и отдаются
// через promhttp.Handler() на /metrics каждого сервиса.
var (
	// RunsStarted — количество запущенных runs по pipeline.
	RunsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketmind_runs_started_total",
		Help: "Total pipeline runs started",
	}, []string{"pipeline"})

	// RunsCompleted — количество успешно завершённых runs.
	RunsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketmind_runs_completed_total",
		Help: "Total pipeline runs completed successfully",
	}, []string{"pipeline"})

	// RunsFailed — количество упавших runs по виду ошибки.
	RunsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketmind_runs_failed_total",
		Help: "Total pipeline runs failed, by classified error kind",
	}, []string{"pipeline", "kind"})

	// StageDuration — длительность выполнения стадии (с retries).
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketmind_stage_duration_seconds",
		Help:    "Stage execution duration including retries",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"pipeline", "stage"})

	// BudgetDenials — отказы Budget Guard по тенантам.
	BudgetDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketmind_budget_denials_total",
		Help: "Stage admissions denied by the budget guard",
	}, []string{"tenant_id"})

	// RouteBacks — количество route-back переходов.
	RouteBacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketmind_route_backs_total",
		Help: "Route-back transitions, by pipeline and target stage",
	}, []string{"pipeline", "target"})

	// Subscribers — текущее число broadcast-подписчиков.
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketmind_broadcast_subscribers",
		Help: "Currently connected broadcast subscribers",
	})
)
