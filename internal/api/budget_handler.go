package api

import (
	"net/http"
	"time"

	"github.com/shaiso/MarketMind/internal/domain"
)

// GetTenantBudget возвращает расход тенанта за текущий биллинговый период.
// GET /api/v1/tenants/{id}/budget
func (h *Handler) GetTenantBudget(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("id")
	if tenantID == "" {
		BadRequest(w, "tenant id is required")
		return
	}

	periodStart := domain.PeriodStart(time.Now())

	spend, err := h.ledgerRepo.SpendSince(r.Context(), tenantID, periodStart)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, BudgetResponse{
		TenantID:    tenantID,
		Spend:       spend,
		PeriodStart: periodStart,
	})
}
