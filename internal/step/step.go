package step

import (
	"context"
	"fmt"
)

// Step — именованная единица работы внутри pipeline.
//
// Реализации поставляются внешними коллабораторами (инструменты,
// вызывающие модели и внешние сервисы); движок рассматривает шаг как
// чёрный ящик с этим контрактом.
//
// Шаг обязан быть идемпотентным: при retry и route-back один и тот же
// вход может прийти повторно.
type Step interface {
	// Invoke выполняет шаг для стадии stage.
	//
	// state — snapshot накопленного состояния run (стадия → output);
	// шаг читает outputs предыдущих стадий, но его изменения snapshot'а
	// не влияют на run.
	//
	// Ошибки оборачиваются в Recoverable (retry) или Fatal (терминально);
	// необёрнутая ошибка считается recoverable (см. Classify).
	Invoke(ctx context.Context, stage string, state map[string]map[string]any) (*Result, error)
}

// Result — результат успешного выполнения шага.
type Result struct {
	// Output — выходные данные шага. Попадают в состояние run
	// под именем стадии.
	Output map[string]any

	// CostUnits — фактическая стоимость выполнения в условных единицах.
	// Передаётся в Budget Guard после завершения стадии.
	CostUnits float64
}

// Func — адаптер функции к интерфейсу Step.
type Func func(ctx context.Context, stage string, state map[string]map[string]any) (*Result, error)

// Invoke реализует Step.
func (f Func) Invoke(ctx context.Context, stage string, state map[string]map[string]any) (*Result, error) {
	return f(ctx, stage, state)
}

// Registry — реестр шагов по имени стадии.
type Registry struct {
	steps map[string]Step
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]Step)}
}

// Register добавляет шаг для стадии.
func (r *Registry) Register(stage string, s Step) {
	r.steps[stage] = s
}

// Get возвращает шаг для стадии.
func (r *Registry) Get(stage string) (Step, error) {
	s, ok := r.steps[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	return s, nil
}
