// Package mq реализует обмен сообщениями через RabbitMQ.
//
// Содержит:
//   - Connection: устойчивое соединение с автоматическим reconnect
//   - Publisher: публикация событий о запусках (run.requested, run.finished)
//   - Consumer: потребление сообщений с ручным ack/nack и DLQ
//   - Топология: exchanges, очереди и binding'и
package mq
