package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/MarketMind/internal/domain"
	"github.com/shaiso/MarketMind/internal/pipeline"
)

// Pipeline DTOs

// StageResponse — одна стадия топологии.
type StageResponse struct {
	Name          string  `json:"name"`
	EstimatedCost float64 `json:"estimated_cost"`
	TimeoutSec    int     `json:"timeout_sec"`
}

// PipelineResponse — ответ с топологией pipeline.
type PipelineResponse struct {
	Name          string            `json:"name"`
	Stages        []StageResponse   `json:"stages"`
	DecisionStage string            `json:"decision_stage,omitempty"`
	RouteTargets  map[string]string `json:"route_targets,omitempty"`
	MaxRouteBacks int               `json:"max_route_backs"`
}

// PipelineFromDomain конвертирует pipeline.Pipeline в PipelineResponse.
func PipelineFromDomain(p *pipeline.Pipeline) PipelineResponse {
	stages := make([]StageResponse, len(p.Stages))
	for i, s := range p.Stages {
		stages[i] = StageResponse{
			Name:          s.Name,
			EstimatedCost: s.EstimatedCost,
			TimeoutSec:    int(s.Timeout.Seconds()),
		}
	}

	var targets map[string]string
	if len(p.RouteTargets) > 0 {
		targets = make(map[string]string, len(p.RouteTargets))
		for dim, stage := range p.RouteTargets {
			targets[string(dim)] = stage
		}
	}

	return PipelineResponse{
		Name:          p.Name,
		Stages:        stages,
		DecisionStage: p.DecisionStage,
		RouteTargets:  targets,
		MaxRouteBacks: p.MaxRouteBacks,
	}
}

// Run DTOs

// CreateRunRequest — запрос на создание run.
type CreateRunRequest struct {
	TenantID       string         `json:"tenant_id"`
	Pipeline       string         `json:"pipeline"`
	Input          map[string]any `json:"input,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID             uuid.UUID                 `json:"id"`
	TenantID       string                    `json:"tenant_id"`
	Pipeline       string                    `json:"pipeline"`
	Status         string                    `json:"status"`
	State          map[string]map[string]any `json:"state,omitempty"`
	CurrentStage   string                    `json:"current_stage,omitempty"`
	RouteBackCount int                       `json:"route_back_count"`
	Input          map[string]any            `json:"input,omitempty"`
	Error          string                    `json:"error,omitempty"`
	ErrorKind      string                    `json:"error_kind,omitempty"`
	IdempotencyKey string                    `json:"idempotency_key,omitempty"`
	StartedAt      *time.Time                `json:"started_at,omitempty"`
	FinishedAt     *time.Time                `json:"finished_at,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	resp := RunResponse{
		ID:             r.ID,
		TenantID:       r.TenantID,
		Pipeline:       r.Pipeline,
		Status:         string(r.Status),
		CurrentStage:   r.CurrentStage,
		RouteBackCount: r.RouteBackCount,
		Input:          r.Input,
		Error:          r.Error,
		ErrorKind:      string(r.ErrorKind),
		IdempotencyKey: r.IdempotencyKey,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		CreatedAt:      r.CreatedAt,
	}
	if r.State != nil {
		resp.State = r.State.Snapshot()
	}
	return resp
}

// Decision DTOs

// DecisionResponse — ответ с route-back решением.
type DecisionResponse struct {
	ID          uuid.UUID          `json:"id"`
	RunID       uuid.UUID          `json:"run_id"`
	Iteration   int                `json:"iteration"`
	TargetStage string             `json:"target_stage,omitempty"`
	Scores      map[string]float64 `json:"scores,omitempty"`
	Forced      bool               `json:"forced"`
	DecidedAt   time.Time          `json:"decided_at"`
}

// DecisionFromDomain конвертирует domain.RouteBackDecision в DecisionResponse.
func DecisionFromDomain(d domain.RouteBackDecision) DecisionResponse {
	return DecisionResponse{
		ID:          d.ID,
		RunID:       d.RunID,
		Iteration:   d.Iteration,
		TargetStage: d.TargetStage,
		Scores:      d.Scores,
		Forced:      d.Forced,
		DecidedAt:   d.DecidedAt,
	}
}

// Budget DTOs

// CostResponse — одна запись расхода.
type CostResponse struct {
	ID         uuid.UUID `json:"id"`
	TenantID   string    `json:"tenant_id"`
	RunID      uuid.UUID `json:"run_id"`
	Stage      string    `json:"stage,omitempty"`
	CostUnits  float64   `json:"cost_units"`
	RecordedAt time.Time `json:"recorded_at"`
}

// CostFromDomain конвертирует domain.LedgerEntry в CostResponse.
func CostFromDomain(e domain.LedgerEntry) CostResponse {
	return CostResponse{
		ID:         e.ID,
		TenantID:   e.TenantID,
		RunID:      e.RunID,
		Stage:      e.Stage,
		CostUnits:  e.CostUnits,
		RecordedAt: e.RecordedAt,
	}
}

// BudgetResponse — текущий расход тенанта за биллинговый период.
type BudgetResponse struct {
	TenantID    string    `json:"tenant_id"`
	Spend       float64   `json:"spend"`
	PeriodStart time.Time `json:"period_start"`
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	TenantID    string         `json:"tenant_id"`
	Pipeline    string         `json:"pipeline"`
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Input       map[string]any `json:"input,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string         `json:"name,omitempty"`
	CronExpr    *string         `json:"cron_expr,omitempty"`
	IntervalSec *int            `json:"interval_sec,omitempty"`
	Timezone    *string         `json:"timezone,omitempty"`
	Input       *map[string]any `json:"input,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    string         `json:"tenant_id"`
	Pipeline    string         `json:"pipeline"`
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	NextDueAt   *time.Time     `json:"next_due_at,omitempty"`
	LastRunAt   *time.Time     `json:"last_run_at,omitempty"`
	LastRunID   *uuid.UUID     `json:"last_run_id,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:          s.ID,
		TenantID:    s.TenantID,
		Pipeline:    s.Pipeline,
		Name:        s.Name,
		CronExpr:    s.CronExpr,
		IntervalSec: s.IntervalSec,
		Timezone:    s.Timezone,
		Enabled:     s.Enabled,
		NextDueAt:   s.NextDueAt,
		LastRunAt:   s.LastRunAt,
		LastRunID:   s.LastRunID,
		Input:       s.Input,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
