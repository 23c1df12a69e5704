package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/MarketMind/internal/domain"
)

// RunRepo — репозиторий для работы с runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	inputJSON, err := json.Marshal(run.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	query := `
		INSERT INTO runs (id, tenant_id, pipeline, status, input, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.TenantID,
		run.Pipeline,
		run.Status,
		inputJSON,
		nullString(run.IdempotencyKey),
		run.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert run: %w", ErrAlreadyExists)
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SaveRun сохраняет run целиком (upsert по ID).
// Используется движком после каждой стадии.
func (r *RunRepo) SaveRun(ctx context.Context, run *domain.Run) error {
	inputJSON, err := json.Marshal(run.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	stateJSON, err := json.Marshal(run.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	query := `
		INSERT INTO runs (id, tenant_id, pipeline, status, state, current_stage,
		                  route_back_count, input, error, error_kind, idempotency_key,
		                  started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    state = EXCLUDED.state,
		    current_stage = EXCLUDED.current_stage,
		    route_back_count = EXCLUDED.route_back_count,
		    error = EXCLUDED.error,
		    error_kind = EXCLUDED.error_kind,
		    started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.TenantID,
		run.Pipeline,
		run.Status,
		stateJSON,
		nullString(run.CurrentStage),
		run.RouteBackCount,
		inputJSON,
		nullString(run.Error),
		nullString(string(run.ErrorKind)),
		nullString(run.IdempotencyKey),
		run.StartedAt,
		run.FinishedAt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := selectRun + ` WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает run по ключу идемпотентности.
func (r *RunRepo) GetByIdempotencyKey(ctx context.Context, tenantID, key string) (*domain.Run, error) {
	query := selectRun + ` WHERE tenant_id = $1 AND idempotency_key = $2`
	return scanRun(r.pool.QueryRow(ctx, query, tenantID, key))
}

// List возвращает список runs с фильтрацией.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	query := selectRun + `
		WHERE ($1::text IS NULL OR tenant_id = $1)
		  AND ($2::text IS NULL OR pipeline = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.TenantID),
		nullString(filter.Pipeline),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListPending возвращает runs в статусе PENDING.
// Используется движком как polling fallback, когда MQ недоступен.
func (r *RunRepo) ListPending(ctx context.Context, limit int) ([]domain.Run, error) {
	query := selectRun + `
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	TenantID string
	Pipeline string
	Status   domain.RunStatus
	Limit    int
	Offset   int
}

const selectRun = `
	SELECT id, tenant_id, pipeline, status, state, current_stage, route_back_count,
	       input, error, error_kind, idempotency_key, started_at, finished_at, created_at
	FROM runs
`

// scanRun сканирует одну строку в Run.
// pgx.Row и pgx.Rows совместимы по Scan, поэтому helper один.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var stateJSON, inputJSON []byte
	var currentStage, runError, errorKind, idempotencyKey *string

	err := row.Scan(
		&run.ID,
		&run.TenantID,
		&run.Pipeline,
		&run.Status,
		&stateJSON,
		&currentStage,
		&run.RouteBackCount,
		&inputJSON,
		&runError,
		&errorKind,
		&idempotencyKey,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if stateJSON != nil {
		state := domain.NewState()
		if err := json.Unmarshal(stateJSON, state); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
		run.State = state
	}
	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &run.Input); err != nil {
			return nil, fmt.Errorf("unmarshal input: %w", err)
		}
	}

	if currentStage != nil {
		run.CurrentStage = *currentStage
	}
	if runError != nil {
		run.Error = *runError
	}
	if errorKind != nil {
		run.ErrorKind = domain.ErrorKind(*errorKind)
	}
	if idempotencyKey != nil {
		run.IdempotencyKey = *idempotencyKey
	}

	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
