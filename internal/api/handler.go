package api

import (
	"log/slog"

	"github.com/shaiso/MarketMind/internal/mq"
	"github.com/shaiso/MarketMind/internal/pipeline"
	"github.com/shaiso/MarketMind/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runRepo      *repo.RunRepo
	decisionRepo *repo.DecisionRepo
	ledgerRepo   *repo.LedgerRepo
	scheduleRepo *repo.ScheduleRepo
	pipelines    *pipeline.Registry
	publisher    *mq.Publisher
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	RunRepo      *repo.RunRepo
	DecisionRepo *repo.DecisionRepo
	LedgerRepo   *repo.LedgerRepo
	ScheduleRepo *repo.ScheduleRepo
	Pipelines    *pipeline.Registry
	Publisher    *mq.Publisher
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	pipelines := cfg.Pipelines
	if pipelines == nil {
		pipelines = pipeline.DefaultRegistry()
	}

	return &Handler{
		runRepo:      cfg.RunRepo,
		decisionRepo: cfg.DecisionRepo,
		ledgerRepo:   cfg.LedgerRepo,
		scheduleRepo: cfg.ScheduleRepo,
		pipelines:    pipelines,
		publisher:    cfg.Publisher,
		logger:       cfg.Logger,
	}
}
