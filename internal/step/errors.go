package step

import (
	"context"
	"errors"
)

// Ошибки реестра шагов.
var (
	// ErrUnknownStage — для стадии не зарегистрирован шаг.
	ErrUnknownStage = errors.New("no step registered for stage")
)

// Kind — класс ошибки шага с точки зрения движка.
type Kind int

const (
	// KindRecoverable — временная ошибка (таймаут, upstream 5xx).
	// Движок повторяет шаг до исчерпания retry-лимита.
	KindRecoverable Kind = iota

	// KindFatal — невосстановимая ошибка (некорректный вход,
	// нарушение контракта). Терминально сразу.
	KindFatal
)

// RecoverableError помечает ошибку как временную.
type RecoverableError struct {
	Err error
}

// Error реализует интерфейс error.
func (e *RecoverableError) Error() string {
	return "recoverable: " + e.Err.Error()
}

// Unwrap возвращает базовую ошибку.
func (e *RecoverableError) Unwrap() error {
	return e.Err
}

// Recoverable оборачивает ошибку как временную.
func Recoverable(err error) error {
	return &RecoverableError{Err: err}
}

// FatalError помечает ошибку как невосстановимую.
type FatalError struct {
	Err error
}

// Error реализует интерфейс error.
func (e *FatalError) Error() string {
	return "fatal: " + e.Err.Error()
}

// Unwrap возвращает базовую ошибку.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal оборачивает ошибку как невосстановимую.
func Fatal(err error) error {
	return &FatalError{Err: err}
}

// Classify нормализует ошибку шага к одному из двух классов.
//
// Правила:
//   - явный Fatal → KindFatal
//   - явный Recoverable → KindRecoverable
//   - превышение таймаута шага → KindRecoverable (считается в retry-лимит)
//   - всё остальное → KindRecoverable
func Classify(err error) Kind {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return KindFatal
	}

	var recoverable *RecoverableError
	if errors.As(err, &recoverable) {
		return KindRecoverable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindRecoverable
	}

	return KindRecoverable
}
