package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/MarketMind/internal/broadcast"
	"github.com/shaiso/MarketMind/internal/budget"
	"github.com/shaiso/MarketMind/internal/domain"
	"github.com/shaiso/MarketMind/internal/routeback"
	"github.com/shaiso/MarketMind/internal/step"
	"github.com/shaiso/MarketMind/internal/telemetry"
)

// Default configuration values.
const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second
)

// Store — персистентность итогов run и route-back решений.
//
// Движок не зависит от схемы хранения: только save-операции для
// последующего инспектирования.
type Store interface {
	// SaveRun сохраняет текущее состояние run (upsert по ID).
	SaveRun(ctx context.Context, run *domain.Run) error

	// SaveDecision сохраняет запись о route-back решении.
	SaveDecision(ctx context.Context, decision *domain.RouteBackDecision) error
}

// NopStore — Store, который ничего не сохраняет (degraded-режим, тесты).
type NopStore struct{}

// SaveRun реализует Store.
func (NopStore) SaveRun(context.Context, *domain.Run) error { return nil }

// SaveDecision реализует Store.
func (NopStore) SaveDecision(context.Context, *domain.RouteBackDecision) error { return nil }

// Notifier — необязательное уведомление внешних потребителей о
// завершении run (например, публикация runs.finished в RabbitMQ).
type Notifier interface {
	RunFinished(ctx context.Context, run *domain.Run) error
}

// Engine выполняет pipelines.
//
// Engine — ядро системы, которое:
//   - Резолвит статическую топологию pipeline
//   - Выполняет стадии строго последовательно в рамках одного run
//   - Допускает каждую стадию через Budget Guard
//   - Делает retry recoverable-ошибок шага (фиксированное число
//     попыток с короткой фиксированной задержкой)
//   - Оценивает вердикт decision-стадии и выполняет route-back
//   - Рассылает события жизненного цикла через Broadcaster
//
// Каждый run выполняется на собственной горутине; runs разных (и
// одного) тенантов выполняются конкурентно, порядок между runs не
// гарантируется.
type Engine struct {
	pipelines   *Registry
	steps       *step.Registry
	guard       *budget.Guard
	broadcaster *broadcast.Broadcaster
	store       Store
	notifier    Notifier

	retryAttempts  int
	retryDelay     time.Duration
	scoreThreshold float64

	// Active runs — runs в процессе выполнения (runID → handle).
	activeRuns map[uuid.UUID]*runHandle
	mu         sync.RWMutex

	// Lifecycle
	logger    *slog.Logger
	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup
	stopped   bool
	stoppedMu sync.RWMutex
}

// Config — конфигурация Engine.
type Config struct {
	// Pipelines — реестр топологий (default: DefaultRegistry()).
	Pipelines *Registry

	// Steps — реестр шагов по имени стадии (обязателен).
	Steps *step.Registry

	// Guard — Budget Guard (обязателен).
	Guard *budget.Guard

	// Broadcaster — fan-out событий (default: новый Broadcaster).
	Broadcaster *broadcast.Broadcaster

	// Store — персистентность итогов (default: NopStore).
	Store Store

	// Notifier — уведомление о завершении run (опционально).
	Notifier Notifier

	// RetryAttempts — всего попыток шага при recoverable-ошибках (default: 3).
	RetryAttempts int

	// RetryDelay — фиксированная задержка между попытками (default: 2s).
	RetryDelay time.Duration

	// ScoreThreshold — порог route-back оценок (default: routeback.DefaultThreshold).
	ScoreThreshold float64

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	pipelines := cfg.Pipelines
	if pipelines == nil {
		pipelines = DefaultRegistry()
	}

	broadcaster := cfg.Broadcaster
	if broadcaster == nil {
		broadcaster = broadcast.New(cfg.Logger)
	}

	store := cfg.Store
	if store == nil {
		store = NopStore{}
	}

	retryAttempts := cfg.RetryAttempts
	if retryAttempts <= 0 {
		retryAttempts = defaultRetryAttempts
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	threshold := cfg.ScoreThreshold
	if threshold <= 0 {
		threshold = routeback.DefaultThreshold
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, cancelAll := context.WithCancel(context.Background())

	return &Engine{
		pipelines:      pipelines,
		steps:          cfg.Steps,
		guard:          cfg.Guard,
		broadcaster:    broadcaster,
		store:          store,
		notifier:       cfg.Notifier,
		retryAttempts:  retryAttempts,
		retryDelay:     retryDelay,
		scoreThreshold: threshold,
		activeRuns:     make(map[uuid.UUID]*runHandle),
		logger:         logger,
		baseCtx:        baseCtx,
		cancelAll:      cancelAll,
	}
}

// Broadcaster возвращает broadcaster движка (для API-стримов).
func (e *Engine) Broadcaster() *broadcast.Broadcaster {
	return e.broadcaster
}

// Execute создаёт run и запускает его выполнение.
//
// Вызов асинхронный: возвращается, как только run зарегистрирован и
// первая стадия запланирована. Результат получают опросом run
// (Store/API) или подпиской через Broadcaster.
func (e *Engine) Execute(ctx context.Context, pipelineName, tenantID string, input map[string]any) (*domain.Run, error) {
	run := &domain.Run{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Pipeline:  pipelineName,
		Status:    domain.RunStatusPending,
		Input:     input,
		CreatedAt: time.Now(),
	}

	h, err := e.start(ctx, run)
	if err != nil {
		return nil, err
	}

	// Снапшот через handle, а не через activeRuns: быстрый run мог
	// уже завершиться и выпасть из реестра активных.
	h.mu.Lock()
	snapshot := e.cloneRunLocked(h)
	h.mu.Unlock()

	return snapshot, nil
}

// Start запускает выполнение существующего PENDING run
// (путь MQ-consumer и polling fallback).
func (e *Engine) Start(ctx context.Context, run *domain.Run) error {
	_, err := e.start(ctx, run)
	return err
}

// start регистрирует run и запускает его runLoop.
func (e *Engine) start(ctx context.Context, run *domain.Run) (*runHandle, error) {
	if e.IsStopped() {
		return nil, ErrEngineStopped
	}

	if run.Status != domain.RunStatusPending {
		return nil, ErrRunNotPending
	}

	p, err := e.pipelines.Get(run.Pipeline)
	if err != nil {
		return nil, err
	}

	if run.State == nil {
		run.State = domain.NewState()
	}

	startIdx := 0
	if run.CurrentStage != "" {
		idx, ok := p.StageIndex(run.CurrentStage)
		if !ok {
			return nil, fmt.Errorf("%w: %s: %s", ErrUnknownRouteTarget, p.Name, run.CurrentStage)
		}
		startIdx = idx
	}
	run.CurrentStage = p.Stages[startIdx].Name

	h := &runHandle{
		run:      run,
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}

	if err := e.addActiveRun(h); err != nil {
		return nil, err
	}

	run.MarkRunning()
	e.saveRun(ctx, h)

	telemetry.RunsStarted.WithLabelValues(p.Name).Inc()
	e.logger.Info("run started",
		"run_id", run.ID,
		"tenant_id", run.TenantID,
		"pipeline", p.Name,
		"stages", len(p.Stages),
	)

	e.wg.Add(1)
	go e.runLoop(h, p, startIdx)

	return h, nil
}

// Cancel запрашивает кооперативную отмену run.
//
// Отмена срабатывает только между стадиями: текущий шаг не
// прерывается, движок дожидается его завершения (иначе возможна
// неучтённая стоимость).
func (e *Engine) Cancel(runID uuid.UUID) error {
	h := e.getActiveRun(runID)
	if h == nil {
		return ErrRunNotActive
	}

	h.cancelOnce.Do(func() { close(h.cancelCh) })
	return nil
}

// Snapshot возвращает копию состояния активного run.
func (e *Engine) Snapshot(runID uuid.UUID) (*domain.Run, bool) {
	run := e.snapshotOf(runID)
	return run, run != nil
}

// ActiveRunsCount возвращает количество активных runs.
func (e *Engine) ActiveRunsCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.activeRuns)
}

// IsStopped проверяет, остановлен ли Engine.
func (e *Engine) IsStopped() bool {
	e.stoppedMu.RLock()
	defer e.stoppedMu.RUnlock()
	return e.stopped
}

// Stop останавливает Engine.
//
// Новые runs не принимаются; активные runs отменяются кооперативно
// (после завершения текущей стадии) и помечаются cancelled.
func (e *Engine) Stop() {
	e.stoppedMu.Lock()
	e.stopped = true
	e.stoppedMu.Unlock()

	e.logger.Info("stopping engine...")
	e.cancelAll()
	e.wg.Wait()
	e.logger.Info("engine stopped")
}

// --- Run lifecycle ---

// runHandle — выполняющийся run и его управляющие каналы.
//
// run принадлежит горутине runLoop; все мутации — под mu.
type runHandle struct {
	mu  sync.Mutex
	run *domain.Run

	cancelCh   chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
}

// runLoop — основной цикл выполнения run. Выполняется на собственной горутине.
func (e *Engine) runLoop(h *runHandle, p *Pipeline, startIdx int) {
	defer e.wg.Done()
	defer close(h.done)
	defer e.removeActiveRun(h.run.ID)

	ctx := e.baseCtx
	logger := telemetry.WithRunID(e.logger, h.run.ID.String())

	total := len(p.Stages)
	idx := startIdx
	evaluations := 0

	for idx < total {
		// Отмена — только между стадиями.
		select {
		case <-h.cancelCh:
			e.failRun(ctx, h, "", domain.ErrorKindCancelled, "run cancelled")
			return
		case <-ctx.Done():
			e.failRun(ctx, h, "", domain.ErrorKindCancelled, "engine shutting down")
			return
		default:
		}

		stage := p.Stages[idx]
		h.setCurrentStage(stage.Name)

		// 1. Допуск по бюджету — ДО вызова шага.
		admit, err := e.guard.Admit(ctx, h.run.TenantID, stage.EstimatedCost)
		if err != nil {
			// Книга недоступна — допуск нельзя подтвердить, стадия не выполняется.
			e.failRun(ctx, h, stage.Name, domain.ErrorKindBudgetExceeded,
				fmt.Sprintf("budget check failed: %v", err))
			return
		}
		if !admit.Allowed {
			telemetry.BudgetDenials.WithLabelValues(h.run.TenantID).Inc()
			e.failRun(ctx, h, stage.Name, domain.ErrorKindBudgetExceeded, admit.Reason)
			return
		}

		// 2. Вызов шага с retry.
		res, err := e.invokeStage(ctx, h, p, stage)
		if err != nil {
			kind := domain.ErrorKindStageFailed
			if step.Classify(err) == step.KindFatal {
				kind = domain.ErrorKindFatalStep
			}
			e.failRun(ctx, h, stage.Name, kind, err.Error())
			return
		}

		// 3. Результат в состояние, расход в книгу, progress подписчикам.
		h.mergeOutput(stage.Name, res.Output)

		if err := e.guard.Record(ctx, domain.LedgerEntry{
			ID:        uuid.New(),
			TenantID:  h.run.TenantID,
			RunID:     h.run.ID,
			Stage:     stage.Name,
			CostUnits: res.CostUnits,
		}); err != nil {
			// Учёт best-effort: результат стадии не отменяется.
			logger.Error("failed to record cost", "stage", stage.Name, "error", err)
		}

		e.saveRun(ctx, h)
		e.broadcaster.Publish(h.run.ID, domain.NewEvent(domain.EventKindProgress, h.run.ID,
			domain.ProgressPayload{
				Stage:   stage.Name,
				Percent: float64(idx+1) / float64(total) * 100,
			},
		))

		logger.Debug("stage completed", "stage", stage.Name, "cost_units", res.CostUnits)

		// 4. Decision-стадия → оценка вердикта route-back.
		if stage.Name == p.DecisionStage {
			evaluations++
			targetIdx, redo := e.evaluateRouteBack(ctx, h, p, res.Output, evaluations, logger)
			if redo {
				idx = targetIdx
				continue
			}
		}

		idx++
	}

	e.completeRun(ctx, h, p)
}

// invokeStage вызывает шаг стадии с retry-политикой.
//
// Recoverable-ошибки повторяются до retryAttempts попыток с
// фиксированной задержкой; fatal возвращается сразу.
func (e *Engine) invokeStage(ctx context.Context, h *runHandle, p *Pipeline, stage StageDef) (*step.Result, error) {
	st, err := e.steps.Get(stage.Name)
	if err != nil {
		// Незарегистрированный шаг — нарушение контракта, не retry.
		return nil, step.Fatal(err)
	}

	start := time.Now()
	defer func() {
		telemetry.StageDuration.WithLabelValues(p.Name, stage.Name).Observe(time.Since(start).Seconds())
	}()

	state := h.stateSnapshot()

	var lastErr error
	for attempt := 1; attempt <= e.retryAttempts; attempt++ {
		res, err := e.invokeOnce(ctx, st, stage, state)
		if err == nil {
			return res, nil
		}

		if step.Classify(err) == step.KindFatal {
			return nil, err
		}

		lastErr = err
		e.logger.Warn("stage attempt failed",
			"run_id", h.run.ID,
			"stage", stage.Name,
			"attempt", attempt,
			"error", err,
		)

		if attempt < e.retryAttempts {
			select {
			case <-time.After(e.retryDelay):
			case <-ctx.Done():
				return nil, step.Recoverable(ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("stage %s failed after %d attempts: %w", stage.Name, e.retryAttempts, lastErr)
}

// invokeOnce — один вызов шага с таймаутом стадии.
func (e *Engine) invokeOnce(ctx context.Context, st step.Step, stage StageDef, state map[string]map[string]any) (*step.Result, error) {
	if stage.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, stage.Timeout)
		defer cancel()
	}

	res, err := st.Invoke(ctx, stage.Name, state)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, step.Fatal(fmt.Errorf("step for stage %s returned nil result", stage.Name))
	}
	return res, nil
}

// evaluateRouteBack оценивает output decision-стадии и применяет вердикт.
//
// Возвращает (индекс целевой стадии, true) если нужен redo, иначе
// (0, false). Решение персистится всегда, включая принудительное
// продолжение при исчерпанном лимите итераций.
func (e *Engine) evaluateRouteBack(ctx context.Context, h *runHandle, p *Pipeline, output map[string]any, iteration int, logger *slog.Logger) (int, bool) {
	h.setStatus(domain.RunStatusAwaitingRouteBack)

	scores, successful, err := routeback.ParseOutput(output)
	if err != nil {
		// Некорректный output decision-стадии — причина вне стадий,
		// переделывать нечего: идём вперёд.
		logger.Warn("decision output not evaluable, continuing forward", "error", err)
		h.setStatus(domain.RunStatusRunning)
		return 0, false
	}

	verdict := routeback.Evaluate(scores, successful, e.scoreThreshold)

	decision := &domain.RouteBackDecision{
		ID:        uuid.New(),
		RunID:     h.run.ID,
		Iteration: iteration,
		Scores:    scores.Map(),
		DecidedAt: time.Now(),
	}

	redo := false
	targetIdx := 0

	if verdict.Action == routeback.ActionRedo {
		target := p.RouteTargets[verdict.Dimension]
		decision.TargetStage = target

		limitReached := h.routeBackCount() >= p.MaxRouteBacks
		if limitReached {
			// Лимит итераций: liveness важнее вердикта — принудительно вперёд.
			decision.Forced = true
			logger.Info("route-back limit reached, forcing continuation",
				"target", target,
				"route_back_count", h.routeBackCount(),
			)
		} else {
			idx, ok := p.StageIndex(target)
			if ok {
				redo = true
				targetIdx = idx
				h.incrementRouteBack(target)
				telemetry.RouteBacks.WithLabelValues(p.Name, target).Inc()
				logger.Info("route-back",
					"dimension", verdict.Dimension,
					"target", target,
					"iteration", iteration,
				)
			}
		}
	} else if verdict.Action == routeback.ActionNoActionable {
		logger.Info("no actionable route-back, continuing forward", "iteration", iteration)
	}

	if err := e.store.SaveDecision(ctx, decision); err != nil {
		logger.Error("failed to save route-back decision", "error", err)
	}

	h.setStatus(domain.RunStatusRunning)
	return targetIdx, redo
}

// completeRun финализирует успешный run.
func (e *Engine) completeRun(ctx context.Context, h *runHandle, p *Pipeline) {
	h.mu.Lock()
	h.run.MarkCompleted()
	h.run.CurrentStage = ""
	state := h.run.State.Snapshot()
	routeBacks := h.run.RouteBackCount
	h.mu.Unlock()

	e.saveRun(ctx, h)
	e.notifyFinished(ctx, h)

	e.broadcaster.Publish(h.run.ID, domain.NewEvent(domain.EventKindComplete, h.run.ID,
		domain.CompletePayload{
			State:          state,
			RouteBackCount: routeBacks,
		},
	))
	e.broadcaster.CloseRun(h.run.ID)

	telemetry.RunsCompleted.WithLabelValues(p.Name).Inc()
	e.logger.Info("run completed",
		"run_id", h.run.ID,
		"pipeline", p.Name,
		"route_backs", routeBacks,
		"duration", h.run.Duration(),
	)
}

// failRun финализирует run с классифицированной ошибкой.
func (e *Engine) failRun(ctx context.Context, h *runHandle, stage string, kind domain.ErrorKind, msg string) {
	h.mu.Lock()
	h.run.MarkFailed(kind, msg)
	h.mu.Unlock()

	e.saveRun(ctx, h)
	e.notifyFinished(ctx, h)

	e.broadcaster.Publish(h.run.ID, domain.NewEvent(domain.EventKindError, h.run.ID,
		domain.ErrorPayload{
			Kind:    kind,
			Message: msg,
			Stage:   stage,
		},
	))
	e.broadcaster.CloseRun(h.run.ID)

	telemetry.RunsFailed.WithLabelValues(h.run.Pipeline, string(kind)).Inc()
	e.logger.Warn("run failed",
		"run_id", h.run.ID,
		"pipeline", h.run.Pipeline,
		"kind", kind,
		"stage", stage,
		"error", msg,
	)
}

// saveRun сохраняет run через Store; ошибка логируется, run не прерывается.
func (e *Engine) saveRun(ctx context.Context, h *runHandle) {
	h.mu.Lock()
	cp := e.cloneRunLocked(h)
	h.mu.Unlock()

	if err := e.store.SaveRun(ctx, cp); err != nil {
		e.logger.Error("failed to save run", "run_id", cp.ID, "error", err)
	}
}

// notifyFinished уведомляет внешних потребителей о терминальном статусе.
func (e *Engine) notifyFinished(ctx context.Context, h *runHandle) {
	if e.notifier == nil {
		return
	}

	h.mu.Lock()
	cp := e.cloneRunLocked(h)
	h.mu.Unlock()

	if err := e.notifier.RunFinished(ctx, cp); err != nil {
		e.logger.Warn("failed to notify run finished", "run_id", cp.ID, "error", err)
	}
}

// cloneRunLocked копирует run. Вызывается под h.mu.
func (e *Engine) cloneRunLocked(h *runHandle) *domain.Run {
	cp := *h.run
	if h.run.State != nil {
		cp.State = h.run.State.Clone()
	}
	return &cp
}

// --- Active runs registry ---

// addActiveRun добавляет run в активные.
func (e *Engine) addActiveRun(h *runHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.activeRuns[h.run.ID]; exists {
		return ErrRunAlreadyActive
	}

	e.activeRuns[h.run.ID] = h
	return nil
}

// removeActiveRun удаляет run из активных.
func (e *Engine) removeActiveRun(runID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.activeRuns, runID)
}

// getActiveRun возвращает handle активного run.
func (e *Engine) getActiveRun(runID uuid.UUID) *runHandle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activeRuns[runID]
}

// snapshotOf возвращает копию run или nil, если run не активен.
func (e *Engine) snapshotOf(runID uuid.UUID) *domain.Run {
	h := e.getActiveRun(runID)
	if h == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return e.cloneRunLocked(h)
}

// --- runHandle helpers ---

// setCurrentStage обновляет текущую стадию run.
func (h *runHandle) setCurrentStage(stage string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.run.CurrentStage = stage
}

// setStatus обновляет статус run.
func (h *runHandle) setStatus(status domain.RunStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.run.Status = status
}

// mergeOutput записывает output стадии в состояние run.
func (h *runHandle) mergeOutput(stage string, output map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.run.State.Set(stage, output)
}

// stateSnapshot возвращает копию состояния run для передачи шагу.
func (h *runHandle) stateSnapshot() map[string]map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.run.State.Snapshot()
}

// routeBackCount возвращает текущее число route-back.
func (h *runHandle) routeBackCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.run.RouteBackCount
}

// incrementRouteBack фиксирует route-back к целевой стадии.
func (h *runHandle) incrementRouteBack(target string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.run.RouteBackCount++
	h.run.CurrentStage = target
}
