// Package step определяет контракт шага pipeline.
//
// Структура:
//   - step.go   — интерфейс Step, Result, Registry
//   - errors.go — классы ошибок (recoverable/fatal) и Classify
//   - http.go   — HTTPStep, адаптер внешнего tool-сервиса
//
// Шаги — внешние коллабораторы (построение промптов, вызов моделей,
// аналитика); движок видит только контракт Invoke.
package step
