package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/MarketMind/internal/domain"
)

// Store объединяет репозитории runs и решений в единое хранилище
// для движка (pipeline.Store).
type Store struct {
	Runs      *RunRepo
	Decisions *DecisionRepo
}

// NewStore создаёт Store поверх общего пула соединений.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Runs:      NewRunRepo(pool),
		Decisions: NewDecisionRepo(pool),
	}
}

// SaveRun сохраняет run (upsert).
func (s *Store) SaveRun(ctx context.Context, run *domain.Run) error {
	return s.Runs.SaveRun(ctx, run)
}

// SaveDecision сохраняет route-back решение.
func (s *Store) SaveDecision(ctx context.Context, decision *domain.RouteBackDecision) error {
	return s.Decisions.SaveDecision(ctx, decision)
}
