package domain

import (
	"time"

	"github.com/google/uuid"
)

// RouteBackDecision — запись о принятом route-back решении.
//
// Сохраняется движком после каждой оценки вердикта decision-стадии,
// включая случай принудительного продолжения при достижении лимита
// итераций (Forced=true).
type RouteBackDecision struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// RunID — run, для которого принято решение.
	RunID uuid.UUID `json:"run_id"`

	// Iteration — порядковый номер оценки в рамках run (с 1).
	Iteration int `json:"iteration"`

	// TargetStage — стадия, к которой решено вернуться.
	// Пустая строка — продолжение вперёд (route-back не нужен
	// или не actionable).
	TargetStage string `json:"target_stage,omitempty"`

	// Scores — оценки decision-стадии (измерение → 0.0–1.0).
	Scores map[string]float64 `json:"scores,omitempty"`

	// Forced — true, если вердикт требовал redo, но лимит итераций
	// заставил продолжить вперёд.
	Forced bool `json:"forced"`

	// DecidedAt — время принятия решения.
	DecidedAt time.Time `json:"decided_at"`
}
