package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind — вид broadcast-события.
type EventKind string

const (
	// EventKindProgress — стадия завершилась, run продвинулся.
	EventKindProgress EventKind = "progress"

	// EventKindError — run завершился с ошибкой.
	EventKindError EventKind = "error"

	// EventKindComplete — run успешно завершён.
	EventKindComplete EventKind = "complete"
)

// Event — событие жизненного цикла run, рассылаемое подписчикам.
//
// Доставка — best-effort для текущих подписчиков; события не
// сохраняются и не переигрываются для поздно подключившихся.
type Event struct {
	// Kind — вид события.
	Kind EventKind `json:"event_kind"`

	// RunID — run, к которому относится событие.
	RunID uuid.UUID `json:"run_id"`

	// Payload — полезная нагрузка (зависит от Kind, см. *Payload типы).
	Payload any `json:"payload"`

	// Timestamp — время создания события.
	Timestamp time.Time `json:"timestamp"`
}

// ProgressPayload — payload события progress.
type ProgressPayload struct {
	// Stage — имя завершившейся стадии.
	Stage string `json:"stage"`

	// Percent — процент выполнения (завершённые стадии / всего стадий).
	// Монотонно неубывающий в рамках одного прохода.
	Percent float64 `json:"percent"`
}

// ErrorPayload — payload события error.
type ErrorPayload struct {
	// Kind — классифицированный вид ошибки.
	Kind ErrorKind `json:"kind"`

	// Message — текст ошибки.
	Message string `json:"message"`

	// Stage — стадия, на которой run упал (пустая для отмены).
	Stage string `json:"stage,omitempty"`
}

// CompletePayload — payload события complete.
type CompletePayload struct {
	// State — финальное накопленное состояние run.
	State map[string]map[string]any `json:"state"`

	// RouteBackCount — сколько route-back произошло за время run.
	RouteBackCount int `json:"route_back_count"`
}

// NewEvent создаёт событие с текущим временем.
func NewEvent(kind EventKind, runID uuid.UUID, payload any) Event {
	return Event{
		Kind:      kind,
		RunID:     runID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}
