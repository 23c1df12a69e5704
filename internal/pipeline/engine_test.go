package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/MarketMind/internal/budget"
	"github.com/shaiso/MarketMind/internal/domain"
	"github.com/shaiso/MarketMind/internal/routeback"
	"github.com/shaiso/MarketMind/internal/step"
)

// captureStore запоминает все сохранения run и решений.
type captureStore struct {
	mu        sync.Mutex
	runs      []*domain.Run
	decisions []*domain.RouteBackDecision
}

func (s *captureStore) SaveRun(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.runs = append(s.runs, &cp)
	return nil
}

func (s *captureStore) SaveDecision(_ context.Context, d *domain.RouteBackDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.decisions = append(s.decisions, &cp)
	return nil
}

func (s *captureStore) lastRun() *domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) == 0 {
		return nil
	}
	return s.runs[len(s.runs)-1]
}

func (s *captureStore) runByID(id uuid.UUID) *domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].ID == id {
			return s.runs[i]
		}
	}
	return nil
}

func (s *captureStore) decisionList() []*domain.RouteBackDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.RouteBackDecision(nil), s.decisions...)
}

// invocationLog — потокобезопасный журнал вызовов стадий.
type invocationLog struct {
	mu     sync.Mutex
	stages []string
}

func (l *invocationLog) add(stage string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stages = append(l.stages, stage)
}

func (l *invocationLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.stages...)
}

func linearPipeline(stages ...string) *Registry {
	r := NewRegistry()
	defs := make([]StageDef, len(stages))
	for i, name := range stages {
		defs[i] = StageDef{Name: name, EstimatedCost: 1}
	}
	r.MustRegister(&Pipeline{Name: "test", Stages: defs})
	return r
}

func okStep(log *invocationLog, cost float64) step.Step {
	return step.Func(func(_ context.Context, stage string, _ map[string]map[string]any) (*step.Result, error) {
		log.add(stage)
		return &step.Result{
			Output:    map[string]any{"stage": stage},
			CostUnits: cost,
		}, nil
	})
}

func newTestEngine(pipelines *Registry, steps *step.Registry, store Store, ledger budget.Ledger, ceiling float64) *Engine {
	if ledger == nil {
		ledger = budget.NewMemoryLedger()
	}

	guard := budget.New(budget.Config{
		Ledger:   ledger,
		Ceilings: budget.StaticCeilings{"acme": ceiling},
	})

	return New(Config{
		Pipelines:  pipelines,
		Steps:      steps,
		Guard:      guard,
		Store:      store,
		RetryDelay: time.Millisecond,
	})
}

func newPendingRun(pipeline string) *domain.Run {
	return &domain.Run{
		ID:        uuid.New(),
		TenantID:  "acme",
		Pipeline:  pipeline,
		Status:    domain.RunStatusPending,
		CreatedAt: time.Now(),
	}
}

// runToCompletion запускает run и собирает события до закрытия подписки.
func runToCompletion(t *testing.T, e *Engine, run *domain.Run) []domain.Event {
	t.Helper()

	sub := e.Broadcaster().Subscribe(run.ID)

	if err := e.Start(context.Background(), run); err != nil {
		t.Fatalf("start: %v", err)
	}

	var events []domain.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for run to finish")
		}
	}
}

func terminalEvent(t *testing.T, events []domain.Event) domain.Event {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events received")
	}
	return events[len(events)-1]
}

func TestEngine_SequentialExecution(t *testing.T) {
	log := &invocationLog{}
	steps := step.NewRegistry()
	for _, name := range []string{"research", "content", "review"} {
		steps.Register(name, okStep(log, 2))
	}

	store := &captureStore{}
	ledger := budget.NewMemoryLedger()
	e := newTestEngine(linearPipeline("research", "content", "review"), steps, store, ledger, 100)

	run := newPendingRun("test")
	events := runToCompletion(t, e, run)

	// Стадии выполнены строго по порядку
	got := log.list()
	want := []string{"research", "content", "review"}
	if len(got) != len(want) {
		t.Fatalf("expected %d invocations, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("invocation %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	// Терминальное событие — complete
	last := terminalEvent(t, events)
	if last.Kind != domain.EventKindComplete {
		t.Errorf("expected complete, got %s", last.Kind)
	}

	// Финальное состояние персистировано
	final := store.lastRun()
	if final.Status != domain.RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", final.Status)
	}
	if final.State.Len() != 3 {
		t.Errorf("expected 3 stage outputs, got %d", final.State.Len())
	}

	// Фактическая стоимость записана для каждой стадии
	spend, _ := ledger.SpendSince(context.Background(), "acme", time.Time{})
	if spend != 6 {
		t.Errorf("expected spend 6, got %v", spend)
	}

	// progress по одному на стадию + complete
	if len(events) != 4 {
		t.Errorf("expected 4 events, got %d", len(events))
	}
}

func TestEngine_BudgetDenied(t *testing.T) {
	log := &invocationLog{}
	steps := step.NewRegistry()
	steps.Register("research", okStep(log, 5))

	pipelines := NewRegistry()
	pipelines.MustRegister(&Pipeline{
		Name:   "test",
		Stages: []StageDef{{Name: "research", EstimatedCost: 10}},
	})

	store := &captureStore{}
	ledger := budget.NewMemoryLedger()
	e := newTestEngine(pipelines, steps, store, ledger, 5) // потолок ниже оценки

	run := newPendingRun("test")
	events := runToCompletion(t, e, run)

	// Шаг не вызывался: допуск по оценке идёт до выполнения
	if got := log.list(); len(got) != 0 {
		t.Errorf("step must not be invoked on budget denial, got %v", got)
	}
	if ledger.Len() != 0 {
		t.Errorf("no cost must be recorded, got %d entries", ledger.Len())
	}

	last := terminalEvent(t, events)
	if last.Kind != domain.EventKindError {
		t.Fatalf("expected error event, got %s", last.Kind)
	}
	payload, ok := last.Payload.(domain.ErrorPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", last.Payload)
	}
	if payload.Kind != domain.ErrorKindBudgetExceeded {
		t.Errorf("expected budget_exceeded, got %s", payload.Kind)
	}

	if store.lastRun().Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", store.lastRun().Status)
	}
}

func TestEngine_RetryExhausted(t *testing.T) {
	var attempts int
	var mu sync.Mutex

	steps := step.NewRegistry()
	steps.Register("research", step.Func(func(_ context.Context, _ string, _ map[string]map[string]any) (*step.Result, error) {
		mu.Lock()
		attempts++
		mu.Unlock()
		return nil, step.Recoverable(errors.New("upstream unavailable"))
	}))

	store := &captureStore{}
	e := newTestEngine(linearPipeline("research"), steps, store, nil, 100)

	run := newPendingRun("test")
	events := runToCompletion(t, e, run)

	mu.Lock()
	got := attempts
	mu.Unlock()
	if got != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", got)
	}

	last := terminalEvent(t, events)
	payload := last.Payload.(domain.ErrorPayload)
	if payload.Kind != domain.ErrorKindStageFailed {
		t.Errorf("expected stage_failed, got %s", payload.Kind)
	}
}

func TestEngine_RetryThenSuccess(t *testing.T) {
	var attempts int
	var mu sync.Mutex

	steps := step.NewRegistry()
	steps.Register("research", step.Func(func(_ context.Context, _ string, _ map[string]map[string]any) (*step.Result, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()

		if n < 3 {
			return nil, step.Recoverable(errors.New("flaky"))
		}
		return &step.Result{Output: map[string]any{}, CostUnits: 1}, nil
	}))

	store := &captureStore{}
	e := newTestEngine(linearPipeline("research"), steps, store, nil, 100)

	run := newPendingRun("test")
	events := runToCompletion(t, e, run)

	if terminalEvent(t, events).Kind != domain.EventKindComplete {
		t.Errorf("expected complete after retry, got %s", terminalEvent(t, events).Kind)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestEngine_FatalNoRetry(t *testing.T) {
	var attempts int
	var mu sync.Mutex

	steps := step.NewRegistry()
	steps.Register("research", step.Func(func(_ context.Context, _ string, _ map[string]map[string]any) (*step.Result, error) {
		mu.Lock()
		attempts++
		mu.Unlock()
		return nil, step.Fatal(errors.New("contract violation"))
	}))

	store := &captureStore{}
	e := newTestEngine(linearPipeline("research"), steps, store, nil, 100)

	run := newPendingRun("test")
	events := runToCompletion(t, e, run)

	mu.Lock()
	got := attempts
	mu.Unlock()
	if got != 1 {
		t.Errorf("fatal error must not be retried, got %d attempts", got)
	}

	payload := terminalEvent(t, events).Payload.(domain.ErrorPayload)
	if payload.Kind != domain.ErrorKindFatalStep {
		t.Errorf("expected fatal_step, got %s", payload.Kind)
	}
}

// decisionRegistry — research → review, провал audience_fit возвращает к research.
func decisionRegistry(maxRouteBacks int) *Registry {
	r := NewRegistry()
	r.MustRegister(&Pipeline{
		Name: "test",
		Stages: []StageDef{
			{Name: "research", EstimatedCost: 1},
			{Name: "review", EstimatedCost: 1},
		},
		DecisionStage: "review",
		RouteTargets: map[routeback.Dimension]string{
			routeback.DimensionAudienceFit: "research",
		},
		MaxRouteBacks: maxRouteBacks,
	})
	return r
}

func reviewOutput(audienceFit float64) map[string]any {
	return map[string]any{
		"scores": map[string]any{
			"clarity":           0.9,
			"audience_fit":      audienceFit,
			"execution_quality": 0.9,
		},
		"successful": true,
	}
}

func TestEngine_RouteBack(t *testing.T) {
	log := &invocationLog{}
	var reviews int
	var mu sync.Mutex

	steps := step.NewRegistry()
	steps.Register("research", okStep(log, 1))
	steps.Register("review", step.Func(func(_ context.Context, stage string, _ map[string]map[string]any) (*step.Result, error) {
		log.add(stage)
		mu.Lock()
		reviews++
		n := reviews
		mu.Unlock()

		// Первая оценка проваливает audience_fit, вторая проходит
		fit := 0.2
		if n > 1 {
			fit = 0.9
		}
		return &step.Result{Output: reviewOutput(fit), CostUnits: 1}, nil
	}))

	store := &captureStore{}
	e := newTestEngine(decisionRegistry(3), steps, store, nil, 100)

	run := newPendingRun("test")
	events := runToCompletion(t, e, run)

	if terminalEvent(t, events).Kind != domain.EventKindComplete {
		t.Fatalf("expected complete, got %s", terminalEvent(t, events).Kind)
	}

	// research переделан после провала оценки
	got := log.list()
	want := []string{"research", "review", "research", "review"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	final := store.lastRun()
	if final.RouteBackCount != 1 {
		t.Errorf("expected 1 route-back, got %d", final.RouteBackCount)
	}

	// Оба решения персистированы
	decisions := store.decisionList()
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}
	if decisions[0].TargetStage != "research" {
		t.Errorf("expected target research, got %s", decisions[0].TargetStage)
	}
	if decisions[0].Iteration != 1 || decisions[1].Iteration != 2 {
		t.Errorf("unexpected iterations: %d, %d", decisions[0].Iteration, decisions[1].Iteration)
	}
}

func TestEngine_RouteBackLimitForcesContinuation(t *testing.T) {
	log := &invocationLog{}

	steps := step.NewRegistry()
	steps.Register("research", okStep(log, 1))
	steps.Register("review", step.Func(func(_ context.Context, stage string, _ map[string]map[string]any) (*step.Result, error) {
		log.add(stage)
		// Оценка всегда провальная
		return &step.Result{Output: reviewOutput(0.1), CostUnits: 1}, nil
	}))

	store := &captureStore{}
	e := newTestEngine(decisionRegistry(1), steps, store, nil, 100)

	run := newPendingRun("test")
	events := runToCompletion(t, e, run)

	// Лимит 1: один redo, затем принудительное продолжение
	if terminalEvent(t, events).Kind != domain.EventKindComplete {
		t.Fatalf("run must complete despite failing verdict, got %s", terminalEvent(t, events).Kind)
	}

	got := log.list()
	if len(got) != 4 {
		t.Fatalf("expected 4 invocations (research, review ×2), got %v", got)
	}

	final := store.lastRun()
	if final.RouteBackCount != 1 {
		t.Errorf("expected route-back count capped at 1, got %d", final.RouteBackCount)
	}

	decisions := store.decisionList()
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}
	if decisions[0].Forced {
		t.Error("first decision must not be forced")
	}
	if !decisions[1].Forced {
		t.Error("second decision must be forced continuation")
	}
}

func TestEngine_CancelBetweenStages(t *testing.T) {
	log := &invocationLog{}

	store := &captureStore{}
	ledger := budget.NewMemoryLedger()

	var e *Engine
	steps := step.NewRegistry()

	runID := uuid.New()

	// Первая стадия запрашивает отмену во время своего выполнения:
	// шаг довыполняется, вторая стадия уже не стартует
	steps.Register("research", step.Func(func(_ context.Context, stage string, _ map[string]map[string]any) (*step.Result, error) {
		log.add(stage)
		if err := e.Cancel(runID); err != nil {
			t.Errorf("cancel: %v", err)
		}
		return &step.Result{Output: map[string]any{}, CostUnits: 3}, nil
	}))
	steps.Register("content", okStep(log, 1))

	e = newTestEngine(linearPipeline("research", "content"), steps, store, ledger, 100)

	run := newPendingRun("test")
	run.ID = runID
	events := runToCompletion(t, e, run)

	got := log.list()
	if len(got) != 1 || got[0] != "research" {
		t.Errorf("expected only research to run, got %v", got)
	}

	payload := terminalEvent(t, events).Payload.(domain.ErrorPayload)
	if payload.Kind != domain.ErrorKindCancelled {
		t.Errorf("expected cancelled, got %s", payload.Kind)
	}

	// Стоимость завершившейся стадии учтена
	spend, _ := ledger.SpendSince(context.Background(), "acme", time.Time{})
	if spend != 3 {
		t.Errorf("expected cost of finished stage recorded, got %v", spend)
	}
}

func TestEngine_StartRejectsDuplicates(t *testing.T) {
	gate := make(chan struct{})

	steps := step.NewRegistry()
	steps.Register("research", step.Func(func(_ context.Context, _ string, _ map[string]map[string]any) (*step.Result, error) {
		<-gate
		return &step.Result{Output: map[string]any{}}, nil
	}))

	store := &captureStore{}
	e := newTestEngine(linearPipeline("research"), steps, store, nil, 100)

	run := newPendingRun("test")
	sub := e.Broadcaster().Subscribe(run.ID)

	if err := e.Start(context.Background(), run); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Повторный запуск того же run (например, из polling)
	dup := newPendingRun("test")
	dup.ID = run.ID
	if err := e.Start(context.Background(), dup); !errors.Is(err, ErrRunAlreadyActive) {
		t.Errorf("expected ErrRunAlreadyActive, got %v", err)
	}

	// Run не в PENDING запускать нельзя
	finished := newPendingRun("test")
	finished.Status = domain.RunStatusCompleted
	if err := e.Start(context.Background(), finished); !errors.Is(err, ErrRunNotPending) {
		t.Errorf("expected ErrRunNotPending, got %v", err)
	}

	close(gate)
	for range sub.Events() {
	}
}

func TestEngine_SnapshotOfActiveRun(t *testing.T) {
	gate := make(chan struct{})

	steps := step.NewRegistry()
	steps.Register("research", step.Func(func(_ context.Context, _ string, _ map[string]map[string]any) (*step.Result, error) {
		<-gate
		return &step.Result{Output: map[string]any{}}, nil
	}))

	store := &captureStore{}
	e := newTestEngine(linearPipeline("research"), steps, store, nil, 100)

	run := newPendingRun("test")
	sub := e.Broadcaster().Subscribe(run.ID)

	if err := e.Start(context.Background(), run); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap, ok := e.Snapshot(run.ID)
	if !ok {
		t.Fatal("expected active run snapshot")
	}
	if snap.Status != domain.RunStatusRunning {
		t.Errorf("expected RUNNING, got %s", snap.Status)
	}
	if snap.CurrentStage != "research" {
		t.Errorf("expected current stage research, got %s", snap.CurrentStage)
	}

	close(gate)
	for range sub.Events() {
	}

	// После завершения run больше не активен
	if _, ok := e.Snapshot(run.ID); ok {
		t.Error("finished run must not be active")
	}
}

func TestEngine_Execute(t *testing.T) {
	log := &invocationLog{}
	steps := step.NewRegistry()
	steps.Register("research", okStep(log, 1))

	store := &captureStore{}
	e := newTestEngine(linearPipeline("research"), steps, store, nil, 100)

	run, err := e.Execute(context.Background(), "test", "acme", map[string]any{"topic": "espresso"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if run == nil {
		t.Fatal("execute returned nil run without error")
	}
	if run.ID == uuid.Nil {
		t.Error("run ID is not assigned")
	}
	if run.TenantID != "acme" {
		t.Errorf("expected tenant acme, got %q", run.TenantID)
	}
	if run.Pipeline != "test" {
		t.Errorf("expected pipeline test, got %q", run.Pipeline)
	}
	if got := run.Input["topic"]; got != "espresso" {
		t.Errorf("input not carried into run: got %v", got)
	}

	// Execute асинхронен: дожидаемся терминального состояния через store
	deadline := time.Now().Add(5 * time.Second)
	for {
		if saved := store.runByID(run.ID); saved != nil && saved.Status.IsTerminal() {
			if saved.Status != domain.RunStatusCompleted {
				t.Errorf("expected COMPLETED, got %s", saved.Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for run to finish")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := log.list(); len(got) != 1 || got[0] != "research" {
		t.Errorf("expected single research invocation, got %v", got)
	}
}

func TestEngine_Execute_FastRunReturnsSnapshot(t *testing.T) {
	// Мгновенный run успевает завершиться и выпасть из реестра активных
	// до возврата из Execute; снапшот обязан вернуться всё равно.
	steps := step.NewRegistry()
	steps.Register("research", okStep(&invocationLog{}, 0.01))

	e := newTestEngine(linearPipeline("research"), steps, NopStore{}, nil, 1000000)

	for i := 0; i < 200; i++ {
		run, err := e.Execute(context.Background(), "test", "acme", nil)
		if err != nil {
			t.Fatalf("execute #%d: %v", i, err)
		}
		if run == nil {
			t.Fatalf("execute #%d returned nil run without error", i)
		}
	}
}

func TestEngine_Execute_UnknownPipeline(t *testing.T) {
	e := newTestEngine(linearPipeline("research"), step.NewRegistry(), NopStore{}, nil, 100)

	run, err := e.Execute(context.Background(), "nonexistent", "acme", nil)
	if !errors.Is(err, ErrPipelineNotFound) {
		t.Errorf("expected ErrPipelineNotFound, got %v", err)
	}
	if run != nil {
		t.Error("expected nil run on error")
	}
}
