// Package orchestrator — приёмный слой движка выполнения.
//
// Orchestrator подаёт runs в pipeline.Engine из двух источников:
// очередей RabbitMQ (runs.requested, runs.cancel) и периодического
// опроса БД на pending runs. Polling fallback гарантирует, что runs
// выполняются даже при недоступности RabbitMQ.
//
// Выполнение стадий, route-back и бюджет — зона ответственности
// pipeline.Engine; orchestrator занимается только доставкой.
package orchestrator
