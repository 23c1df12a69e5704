// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go            — Handler с DI (репозитории, publisher, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - pipeline_handler.go   — обработчики для /pipelines
//   - run_handler.go        — обработчики для /runs
//   - budget_handler.go     — обработчики для /tenants/{id}/budget
//   - schedule_handler.go   — обработчики для /schedules
//   - stream_handler.go     — SSE-стрим прогресса (процесс движка)
//
// API предоставляет REST endpoints для управления runs, pipelines,
// schedules и просмотра бюджета.
package api
