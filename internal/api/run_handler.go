package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/MarketMind/internal/domain"
	"github.com/shaiso/MarketMind/internal/pipeline"
	"github.com/shaiso/MarketMind/internal/repo"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?tenant_id=...&pipeline=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{
		TenantID: r.URL.Query().Get("tenant_id"),
		Pipeline: r.URL.Query().Get("pipeline"),
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.RunStatus(status)
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		filter.Limit = int(mustParseInt(limitStr, 50))
	} else {
		filter.Limit = 50
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		filter.Offset = int(mustParseInt(offsetStr, 0))
	}

	runs, err := h.runRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// CreateRun создаёт новый run и публикует его движку.
// POST /api/v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.TenantID == "" {
		BadRequest(w, "tenant_id is required")
		return
	}

	// Pipeline должен существовать в реестре топологий
	if _, err := h.pipelines.Get(req.Pipeline); err != nil {
		if errors.Is(err, pipeline.ErrPipelineNotFound) {
			NotFound(w, "pipeline not found")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	// Проверяем idempotency key
	if req.IdempotencyKey != "" {
		existing, err := h.runRepo.GetByIdempotencyKey(r.Context(), req.TenantID, req.IdempotencyKey)
		if err == nil && existing != nil {
			// Возвращаем существующий run
			Success(w, RunFromDomain(*existing))
			return
		}
	}

	run := &domain.Run{
		ID:             uuid.New(),
		TenantID:       req.TenantID,
		Pipeline:       req.Pipeline,
		Status:         domain.RunStatusPending,
		Input:          req.Input,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now(),
	}

	if err := h.runRepo.Create(r.Context(), run); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Публикуем событие движку; при недоступном MQ run подберёт
	// polling fallback движка
	if h.publisher != nil {
		if err := h.publisher.PublishRunRequested(r.Context(), run.ID); err != nil {
			h.logger.Warn("failed to publish run.requested", "run_id", run.ID, "error", err)
		}
	}

	Created(w, RunFromDomain(*run))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// CancelRun запрашивает отмену run.
// POST /api/v1/runs/{id}/cancel
//
// Отмена кооперативная: движок применяет её на границе стадий,
// поэтому API лишь публикует запрос и отвечает 202.
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	if run.IsFinished() {
		InvalidState(w, "run is already finished")
		return
	}

	if h.publisher == nil {
		InternalError(w, h.logger, errors.New("cancel unavailable: no message broker"))
		return
	}

	if err := h.publisher.PublishRunCancel(r.Context(), run.ID); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	JSON(w, http.StatusAccepted, DataResponse{Data: RunFromDomain(*run)})
}

// ListRunDecisions возвращает route-back решения run.
// GET /api/v1/runs/{id}/decisions
func (h *Handler) ListRunDecisions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует
	_, err = h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	decisions, err := h.decisionRepo.ListByRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DecisionResponse, len(decisions))
	for i, d := range decisions {
		result[i] = DecisionFromDomain(d)
	}

	List(w, result, len(result))
}

// ListRunCosts возвращает записи расходов run.
// GET /api/v1/runs/{id}/costs
func (h *Handler) ListRunCosts(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	_, err = h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	entries, err := h.ledgerRepo.ListByRun(r.Context(), id.String())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]CostResponse, len(entries))
	for i, e := range entries {
		result[i] = CostFromDomain(e)
	}

	List(w, result, len(result))
}

// mustParseInt парсит строку в int с дефолтным значением.
func mustParseInt(s string, defaultVal int64) int64 {
	if n, err := json.Number(s).Int64(); err == nil {
		return n
	}
	return defaultVal
}
