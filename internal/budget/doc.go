// Package budget реализует Budget Guard — допуск стадий по бюджету
// тенанта на биллинговый период (календарный месяц).
//
// Структура:
//   - guard.go  — Guard.Admit / Guard.Record, потолки по тенантам
//   - ledger.go — интерфейс Ledger и in-memory реализация
//
// Гарантия мягкая: admit по оценке до выполнения, record по факту
// после; перерасход в пределах одной конкурентной стадии допустим.
package budget
