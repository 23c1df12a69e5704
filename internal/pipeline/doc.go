// Package pipeline содержит ядро оркестрации — движок выполнения
// статических pipelines.
//
// Включает:
//   - topology.go — StageDef, Pipeline, Registry (статические топологии)
//   - engine.go   — Engine: последовательное выполнение стадий,
//     budget-допуск, retry, route-back, broadcast событий
//
// Топология — упорядоченный список стадий плюс одно явное правило
// условного перехода назад (route-back от decision-стадии); generic
// графов и runtime-определяемых DAG здесь нет намеренно.
package pipeline
