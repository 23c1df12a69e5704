// Package repo реализует доступ к данным в PostgreSQL через pgx.
//
// Репозитории:
//   - RunRepo: runs (создание, upsert по ходу выполнения, выборки)
//   - LedgerRepo: бюджетная книга расходов тенантов
//   - DecisionRepo: записи route-back решений
//   - ScheduleRepo: расписания автоматических запусков
//
// Store объединяет RunRepo и DecisionRepo в хранилище для движка.
package repo
