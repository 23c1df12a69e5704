package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	RUNNING ↔ AWAITING_ROUTE_BACK (после decision-стадии, пока оценивается вердикт)
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusAwaitingRouteBack — decision-стадия завершилась,
	// движок оценивает вердикт route-back.
	RunStatusAwaitingRouteBack RunStatus = "AWAITING_ROUTE_BACK"

	// RunStatusCompleted — run успешно завершён.
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusFailed — run завершился с ошибкой (включая отмену).
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
// После терминального статуса ни одна стадия не выполняется.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// ErrorKind — классифицированный вид терминальной ошибки run.
//
// Любая ошибка шага нормализуется к одному из этих видов до того,
// как движок изменит состояние run.
type ErrorKind string

const (
	// ErrorKindBudgetExceeded — Budget Guard отклонил допуск стадии.
	// Терминально, без retry.
	ErrorKindBudgetExceeded ErrorKind = "budget_exceeded"

	// ErrorKindStageFailed — стадия исчерпала retry-попытки.
	ErrorKindStageFailed ErrorKind = "stage_failed"

	// ErrorKindFatalStep — шаг сигнализировал невосстановимую ошибку.
	// Терминально сразу, без retry.
	ErrorKindFatalStep ErrorKind = "fatal_step"

	// ErrorKindCancelled — run отменён клиентом (между стадиями).
	ErrorKindCancelled ErrorKind = "cancelled"
)
