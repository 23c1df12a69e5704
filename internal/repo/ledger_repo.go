package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/MarketMind/internal/domain"
)

// LedgerRepo — репозиторий бюджетной книги.
// Реализует budget.Ledger поверх Postgres.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

// NewLedgerRepo создаёт новый LedgerRepo.
func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append добавляет запись о расходе.
func (r *LedgerRepo) Append(ctx context.Context, entry domain.LedgerEntry) error {
	query := `
		INSERT INTO budget_ledger (id, tenant_id, run_id, stage, cost_units, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.TenantID,
		entry.RunID,
		nullString(entry.Stage),
		entry.CostUnits,
		entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// SpendSince возвращает сумму расходов тенанта начиная с since.
func (r *LedgerRepo) SpendSince(ctx context.Context, tenantID string, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost_units), 0)
		FROM budget_ledger
		WHERE tenant_id = $1 AND recorded_at >= $2
	`
	var spend float64
	if err := r.pool.QueryRow(ctx, query, tenantID, since).Scan(&spend); err != nil {
		return 0, fmt.Errorf("sum spend: %w", err)
	}
	return spend, nil
}

// ListByRun возвращает записи расходов для конкретного run.
func (r *LedgerRepo) ListByRun(ctx context.Context, runID string) ([]domain.LedgerEntry, error) {
	query := `
		SELECT id, tenant_id, run_id, stage, cost_units, recorded_at
		FROM budget_ledger
		WHERE run_id = $1::uuid
		ORDER BY recorded_at ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var stage *string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.RunID, &stage, &e.CostUnits, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if stage != nil {
			e.Stage = *stage
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
