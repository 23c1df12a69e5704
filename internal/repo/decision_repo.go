package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/MarketMind/internal/domain"
)

// DecisionRepo — репозиторий записей route-back решений.
type DecisionRepo struct {
	pool *pgxpool.Pool
}

// NewDecisionRepo создаёт новый DecisionRepo.
func NewDecisionRepo(pool *pgxpool.Pool) *DecisionRepo {
	return &DecisionRepo{pool: pool}
}

// SaveDecision сохраняет запись о решении.
func (r *DecisionRepo) SaveDecision(ctx context.Context, decision *domain.RouteBackDecision) error {
	scoresJSON, err := json.Marshal(decision.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}

	query := `
		INSERT INTO route_back_decisions (id, run_id, iteration, target_stage, scores, forced, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		decision.ID,
		decision.RunID,
		decision.Iteration,
		nullString(decision.TargetStage),
		scoresJSON,
		decision.Forced,
		decision.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// ListByRun возвращает решения для run в порядке принятия.
func (r *DecisionRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RouteBackDecision, error) {
	query := `
		SELECT id, run_id, iteration, target_stage, scores, forced, decided_at
		FROM route_back_decisions
		WHERE run_id = $1
		ORDER BY iteration ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []domain.RouteBackDecision
	for rows.Next() {
		var d domain.RouteBackDecision
		var targetStage *string
		var scoresJSON []byte
		if err := rows.Scan(&d.ID, &d.RunID, &d.Iteration, &targetStage, &scoresJSON, &d.Forced, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		if targetStage != nil {
			d.TargetStage = *targetStage
		}
		if scoresJSON != nil {
			if err := json.Unmarshal(scoresJSON, &d.Scores); err != nil {
				return nil, fmt.Errorf("unmarshal scores: %w", err)
			}
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}
