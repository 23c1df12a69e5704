package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/MarketMind/internal/domain"
	"github.com/shaiso/MarketMind/internal/mq"
	"github.com/shaiso/MarketMind/internal/pipeline"
	"github.com/shaiso/MarketMind/internal/repo"
)

// handleRunRequested обрабатывает сообщение run.requested.
func (o *Orchestrator) handleRunRequested(ctx context.Context, d *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&d.Message)
	if err != nil {
		return fmt.Errorf("invalid run.requested payload: %w", err)
	}

	o.logger.Debug("received run.requested", "run_id", payload.RunID)

	if err := o.processRun(ctx, payload.RunID); err != nil {
		// Дубликат (poll успел раньше или сообщение доставлено дважды) —
		// не ошибка, подтверждаем сообщение.
		if errors.Is(err, pipeline.ErrRunAlreadyActive) || errors.Is(err, pipeline.ErrRunNotPending) {
			o.logger.Debug("run already handled", "run_id", payload.RunID, "reason", err)
			return nil
		}
		if errors.Is(err, ErrRunNotFound) {
			o.logger.Warn("run.requested for unknown run", "run_id", payload.RunID)
			return nil
		}
		return err
	}

	return nil
}

// handleRunCancel обрабатывает сообщение run.cancel.
func (o *Orchestrator) handleRunCancel(ctx context.Context, d *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunCancelPayload](&d.Message)
	if err != nil {
		return fmt.Errorf("invalid run.cancel payload: %w", err)
	}

	o.logger.Info("received run.cancel", "run_id", payload.RunID)

	err = o.engine.Cancel(payload.RunID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pipeline.ErrRunNotActive) {
		return fmt.Errorf("cancel run %s: %w", payload.RunID, err)
	}

	// Run не активен в этом движке. Если он ещё PENDING в БД —
	// помечаем отменённым напрямую, чтобы poll его не подхватил.
	run, err := o.runRepo.GetByID(ctx, payload.RunID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			o.logger.Warn("run.cancel for unknown run", "run_id", payload.RunID)
			return nil
		}
		return fmt.Errorf("get run %s: %w", payload.RunID, err)
	}

	if run.Status != domain.RunStatusPending {
		o.logger.Debug("run.cancel ignored, run not pending",
			"run_id", payload.RunID,
			"status", run.Status,
		)
		return nil
	}

	run.MarkFailed(domain.ErrorKindCancelled, "run cancelled before start")
	if err := o.runRepo.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save cancelled run %s: %w", payload.RunID, err)
	}

	o.logger.Info("pending run cancelled", "run_id", payload.RunID)
	return nil
}

// processRun загружает run из БД и передаёт его движку.
func (o *Orchestrator) processRun(ctx context.Context, runID uuid.UUID) error {
	run, err := o.runRepo.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run %s: %w", runID, err)
	}

	if run.Status != domain.RunStatusPending {
		return pipeline.ErrRunNotPending
	}

	return o.engine.Start(ctx, run)
}
