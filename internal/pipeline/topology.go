package pipeline

import (
	"fmt"
	"time"

	"github.com/shaiso/MarketMind/internal/routeback"
)

// StageDef — статическое описание стадии pipeline.
//
// Топология фиксирована на этапе компиляции: упорядоченный список
// стадий плюс одно явное правило условного перехода назад. Никакого
// generic-графа — классы ошибок "недостижимый узел" и "цикл"
// исключены конструкцией.
type StageDef struct {
	// Name — уникальное в рамках pipeline имя стадии.
	Name string

	// EstimatedCost — оценка стоимости стадии в условных единицах.
	// Используется Budget Guard при допуске (факт записывается после).
	EstimatedCost float64

	// Timeout — верхняя граница ожидания одного вызова шага.
	// Превышение — recoverable ошибка (считается в retry-лимит).
	Timeout time.Duration
}

// Pipeline — статическая топология: упорядоченные стадии и одна
// decision-стадия, способная вызвать route-back.
type Pipeline struct {
	// Name — имя pipeline.
	Name string

	// Stages — стадии в порядке выполнения.
	Stages []StageDef

	// DecisionStage — имя стадии, после которой оценивается вердикт
	// route-back. Пустая строка — pipeline без условного перехода.
	DecisionStage string

	// RouteTargets — отображение провального измерения вердикта на
	// стадию, которую нужно переделать. Каждая цель обязана
	// предшествовать DecisionStage.
	RouteTargets map[routeback.Dimension]string

	// MaxRouteBacks — максимум возвратов за один run. После
	// исчерпания run принудительно идёт вперёд (liveness важнее
	// вердикта).
	MaxRouteBacks int
}

// StageIndex возвращает позицию стадии и признак её наличия.
func (p *Pipeline) StageIndex(name string) (int, bool) {
	for i := range p.Stages {
		if p.Stages[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// Validate проверяет корректность топологии.
func (p *Pipeline) Validate() error {
	if p.Name == "" {
		return ErrEmptyPipelineName
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("%w: %s", ErrNoStages, p.Name)
	}

	seen := make(map[string]bool, len(p.Stages))
	for i := range p.Stages {
		name := p.Stages[i].Name
		if name == "" {
			return fmt.Errorf("%w: %s: stage %d", ErrEmptyStageName, p.Name, i)
		}
		if seen[name] {
			return fmt.Errorf("%w: %s: %s", ErrDuplicateStage, p.Name, name)
		}
		seen[name] = true
	}

	if p.DecisionStage == "" {
		if len(p.RouteTargets) > 0 {
			return fmt.Errorf("%w: %s", ErrTargetsWithoutDecision, p.Name)
		}
		return nil
	}

	decisionIdx, ok := p.StageIndex(p.DecisionStage)
	if !ok {
		return fmt.Errorf("%w: %s: %s", ErrUnknownDecisionStage, p.Name, p.DecisionStage)
	}

	for dim, target := range p.RouteTargets {
		targetIdx, ok := p.StageIndex(target)
		if !ok {
			return fmt.Errorf("%w: %s: %s → %s", ErrUnknownRouteTarget, p.Name, dim, target)
		}
		// Возврат только назад: цель строго раньше decision-стадии.
		if targetIdx >= decisionIdx {
			return fmt.Errorf("%w: %s: %s", ErrRouteTargetNotEarlier, p.Name, target)
		}
	}

	if p.MaxRouteBacks < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeRouteBackLimit, p.Name)
	}

	return nil
}

// Registry — реестр статических pipelines по имени.
type Registry struct {
	pipelines map[string]*Pipeline
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[string]*Pipeline)}
}

// Register валидирует и добавляет pipeline.
func (r *Registry) Register(p *Pipeline) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.pipelines[p.Name] = p
	return nil
}

// MustRegister — Register с panic при ошибке. Для статических
// деклараций в DefaultRegistry: невалидная топология — ошибка
// программиста, обнаруживаемая на старте.
func (r *Registry) MustRegister(p *Pipeline) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Get возвращает pipeline по имени.
func (r *Registry) Get(name string) (*Pipeline, error) {
	p, ok := r.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
	}
	return p, nil
}

// Names возвращает имена зарегистрированных pipelines.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry возвращает реестр со встроенными pipelines.
//
// campaign-intelligence — основной маркетинговый конвейер:
//
//	research → positioning → content → analytics → review
//
// review — decision-стадия; провальные измерения возвращают run к
// стадии, отвечающей за измерение:
//
//	audience_fit      → research    (не та аудитория — пересобрать research)
//	clarity           → positioning (мутное сообщение — переформулировать)
//	execution_quality → content     (слабое исполнение — переделать контент)
//
// competitor-scan — линейный конвейер без decision-стадии.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.MustRegister(&Pipeline{
		Name: "campaign-intelligence",
		Stages: []StageDef{
			{Name: "research", EstimatedCost: 4, Timeout: 3 * time.Minute},
			{Name: "positioning", EstimatedCost: 3, Timeout: 2 * time.Minute},
			{Name: "content", EstimatedCost: 5, Timeout: 3 * time.Minute},
			{Name: "analytics", EstimatedCost: 2, Timeout: 2 * time.Minute},
			{Name: "review", EstimatedCost: 1, Timeout: time.Minute},
		},
		DecisionStage: "review",
		RouteTargets: map[routeback.Dimension]string{
			routeback.DimensionAudienceFit:      "research",
			routeback.DimensionClarity:          "positioning",
			routeback.DimensionExecutionQuality: "content",
		},
		MaxRouteBacks: 3,
	})

	r.MustRegister(&Pipeline{
		Name: "competitor-scan",
		Stages: []StageDef{
			{Name: "discover", EstimatedCost: 2, Timeout: 2 * time.Minute},
			{Name: "analyze", EstimatedCost: 3, Timeout: 2 * time.Minute},
			{Name: "summarize", EstimatedCost: 1, Timeout: time.Minute},
		},
	})

	return r
}
