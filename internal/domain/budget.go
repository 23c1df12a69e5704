package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry — одна запись о расходе в бюджетной книге тенанта.
//
// Запись создаётся после завершения шага с его фактической стоимостью
// (admit использует оценку, record — факт). Сумма записей тенанта за
// текущий биллинговый период сравнивается с потолком при допуске
// каждой новой стадии.
type LedgerEntry struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// TenantID — тенант, понёсший расход.
	TenantID string `json:"tenant_id"`

	// RunID — run, в рамках которого расход произошёл.
	RunID uuid.UUID `json:"run_id"`

	// Stage — стадия, породившая расход.
	Stage string `json:"stage,omitempty"`

	// CostUnits — стоимость в условных единицах.
	CostUnits float64 `json:"cost_units"`

	// RecordedAt — время фиксации расхода.
	RecordedAt time.Time `json:"recorded_at"`
}

// PeriodStart возвращает начало биллингового периода (календарный месяц),
// в который попадает момент t.
func PeriodStart(t time.Time) time.Time {
	year, month, _ := t.UTC().Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}
