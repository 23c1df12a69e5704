package routeback

import "errors"

// Ошибки разбора output decision-стадии.
var (
	// ErrMissingScores — output не содержит объект scores.
	ErrMissingScores = errors.New("decision output has no scores")

	// ErrMissingScore — в scores нет числового значения для измерения.
	ErrMissingScore = errors.New("missing dimension score")

	// ErrScoreOutOfRange — оценка вне диапазона [0, 1].
	ErrScoreOutOfRange = errors.New("score out of range")
)
