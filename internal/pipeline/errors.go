package pipeline

import "errors"

// Ошибки валидации топологии.
var (
	// ErrEmptyPipelineName — pipeline без имени.
	ErrEmptyPipelineName = errors.New("pipeline has empty name")

	// ErrNoStages — pipeline не содержит стадий.
	ErrNoStages = errors.New("pipeline has no stages")

	// ErrEmptyStageName — стадия без имени.
	ErrEmptyStageName = errors.New("stage has empty name")

	// ErrDuplicateStage — несколько стадий с одинаковым именем.
	ErrDuplicateStage = errors.New("duplicate stage name")

	// ErrUnknownDecisionStage — decision-стадия не входит в список стадий.
	ErrUnknownDecisionStage = errors.New("decision stage not in pipeline")

	// ErrUnknownRouteTarget — цель route-back не входит в список стадий.
	ErrUnknownRouteTarget = errors.New("route target not in pipeline")

	// ErrRouteTargetNotEarlier — цель route-back не предшествует decision-стадии.
	ErrRouteTargetNotEarlier = errors.New("route target must precede decision stage")

	// ErrTargetsWithoutDecision — заданы цели route-back без decision-стадии.
	ErrTargetsWithoutDecision = errors.New("route targets without decision stage")

	// ErrNegativeRouteBackLimit — отрицательный лимит route-back.
	ErrNegativeRouteBackLimit = errors.New("negative route-back limit")
)

// Ошибки движка.
var (
	// ErrPipelineNotFound — pipeline не зарегистрирован.
	ErrPipelineNotFound = errors.New("pipeline not found")

	// ErrRunAlreadyActive — run уже выполняется.
	ErrRunAlreadyActive = errors.New("run already being executed")

	// ErrRunNotActive — run не найден среди активных.
	ErrRunNotActive = errors.New("run not active")

	// ErrRunNotPending — run не в статусе PENDING.
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrEngineStopped — движок остановлен, новые runs не принимаются.
	ErrEngineStopped = errors.New("engine stopped")
)
