// Package routeback оценивает output decision-стадии и выносит вердикт:
// продолжать вперёд или вернуться к более ранней стадии.
//
// Evaluate — чистая функция над тремя оценками (clarity, audience_fit,
// execution_quality): минимальная оценка ниже порога определяет
// измерение для redo; движок сам отображает измерение на стадию
// своей топологии и ограничивает число возвратов.
package routeback
