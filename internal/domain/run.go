package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — экземпляр выполнения pipeline для одного тенанта.
//
// Run создаётся когда:
// - Клиент запускает pipeline вручную (через API/CLI)
// - Scheduler создаёт run по расписанию
//
// Run выполняется движком строго последовательно: одна стадия за другой,
// с возможным route-back (возврат к более ранней стадии по вердикту
// decision-стадии).
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// TenantID — тенант, от имени которого выполняется run.
	// Используется Budget Guard для учёта расходов.
	TenantID string `json:"tenant_id"`

	// Pipeline — имя pipeline (статическая топология, см. pipeline.Registry).
	Pipeline string `json:"pipeline"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// State — накопленное состояние: стадия → её последний output.
	// Append-only: поздние стадии читают, но не изменяют outputs ранних.
	State *State `json:"state,omitempty"`

	// CurrentStage — стадия, которая выполняется или будет выполняться следующей.
	CurrentStage string `json:"current_stage,omitempty"`

	// RouteBackCount — сколько раз произошёл route-back.
	// Ограничен сверху (MaxRouteBacks в топологии) для защиты от бесконечного цикла.
	RouteBackCount int `json:"route_back_count"`

	// Input — входные данные, переданные при запуске.
	Input map[string]any `json:"input,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// ErrorKind — классифицированный вид ошибки.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Для scheduled runs: "{schedule_id}_{next_due_at}"
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён.
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkCompleted переводит run в статус COMPLETED.
func (r *Run) MarkCompleted() {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с классифицированной ошибкой.
func (r *Run) MarkFailed(kind ErrorKind, err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.ErrorKind = kind
	r.Error = err
}
