// Package broadcast реализует fan-out событий жизненного цикла runs
// живым подписчикам (SSE-стримы API, run watch в CLI).
//
// Реестр — lockable multi-map run → множество подписок, с
// remove-on-failure: подписчик, не принимающий события, отписывается
// автоматически. Буферизации сверх канала подписчика и replay нет.
package broadcast
