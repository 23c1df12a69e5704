package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/MarketMind/internal/mq"
	"github.com/shaiso/MarketMind/internal/pipeline"
	"github.com/shaiso/MarketMind/internal/repo"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// Orchestrator — приёмный слой движка.
//
// Orchestrator подаёт runs в pipeline.Engine:
//   - Получает новые runs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending runs в БД (polling fallback —
//     работает и когда RabbitMQ недоступен)
//   - Принимает запросы на отмену и передаёт их движку
//
// Само выполнение стадий, route-back и бюджетный контроль живут
// в pipeline.Engine; Orchestrator не знает про стадии.
type Orchestrator struct {
	engine  *pipeline.Engine
	runRepo *repo.RunRepo
	conn    *mq.Connection

	// Consumers
	runConsumer    *mq.Consumer
	cancelConsumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Engine — движок выполнения (обязателен).
	Engine *pipeline.Engine

	// RunRepo — репозиторий runs (обязателен).
	RunRepo *repo.RunRepo

	// Conn — соединение RabbitMQ (nil: только polling).
	Conn *mq.Connection

	// PollInterval — интервал polling fallback (default: 10s).
	PollInterval time.Duration

	// BatchSize — количество runs за один poll (default: 100).
	BatchSize int

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		engine:       cfg.Engine,
		runRepo:      cfg.RunRepo,
		conn:         cfg.Conn,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Consumer для runs.requested (если есть MQ)
//   - Consumer для runs.cancel (если есть MQ)
//   - Polling горутину для fallback
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
		"mq", o.conn != nil,
	)

	if o.conn != nil {
		o.runConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsRequested),
			Handler:  o.handleRunRequested,
			Prefetch: 10,
		})

		o.cancelConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsCancel),
			Handler:  o.handleRunCancel,
			Prefetch: 10,
		})

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.runConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("run consumer error", "error", err)
			}
		}()

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.cancelConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("cancel consumer error", "error", err)
			}
		}()
	}

	// Polling fallback
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator и движок.
func (o *Orchestrator) Stop() {
	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	if o.runConsumer != nil {
		o.runConsumer.Stop()
	}
	if o.cancelConsumer != nil {
		o.cancelConsumer.Stop()
	}

	o.wg.Wait()

	// Движок останавливается последним: активные runs отменяются
	o.engine.Stop()

	o.logger.Info("orchestrator stopped")
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs созданные пока были выключены)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (o *Orchestrator) poll(ctx context.Context) {
	runs, err := o.runRepo.ListPending(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list pending runs", "error", err)
		return
	}

	if len(runs) == 0 {
		return
	}

	o.logger.Debug("poll found pending runs", "count", len(runs))

	for i := range runs {
		run := &runs[i]

		// Проверяем, не обрабатывается ли уже
		if _, active := o.engine.Snapshot(run.ID); active {
			continue
		}

		if err := o.processRun(ctx, run.ID); err != nil {
			o.logger.Error("failed to process run from poll",
				"run_id", run.ID,
				"error", err,
			)
		}
	}
}
