package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// PipelineResponse — топология pipeline из API.
type PipelineResponse struct {
	Name          string            `json:"name"`
	Stages        []StageResponse   `json:"stages"`
	DecisionStage string            `json:"decision_stage,omitempty"`
	RouteTargets  map[string]string `json:"route_targets,omitempty"`
	MaxRouteBacks int               `json:"max_route_backs"`
}

// StageResponse — стадия топологии из API.
type StageResponse struct {
	Name          string  `json:"name"`
	EstimatedCost float64 `json:"estimated_cost"`
	TimeoutSec    int     `json:"timeout_sec"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID             string                    `json:"id"`
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
	StartedAt      string                    `json:"started_at,omitempty"`
	FinishedAt     string                    `json:"finished_at,omitempty"`
	CreatedAt      string                    `json:"created_at"`
}

// DecisionResponse — route-back решение из API.
type DecisionResponse struct {
	ID          string             `json:"id"`
	RunID       string             `json:"run_id"`
	Iteration   int                `json:"iteration"`
	TargetStage string             `json:"target_stage,omitempty"`
	Scores      map[string]float64 `json:"scores,omitempty"`
	Forced      bool               `json:"forced"`
	DecidedAt   string             `json:"decided_at"`
}

// CostResponse — запись расхода из API.
type CostResponse struct {
	ID         string  `json:"id"`
	TenantID   string  `json:"tenant_id"`
	RunID      string  `json:"run_id"`
	Stage      string  `json:"stage,omitempty"`
	CostUnits  float64 `json:"cost_units"`
	RecordedAt string  `json:"recorded_at"`
}

// BudgetResponse — расход тенанта из API.
type BudgetResponse struct {
	TenantID    string  `json:"tenant_id"`
	Spend       float64 `json:"spend"`
	PeriodStart string  `json:"period_start"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	Pipeline    string         `json:"pipeline"`
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	NextDueAt   string         `json:"next_due_at,omitempty"`
	LastRunAt   string         `json:"last_run_at,omitempty"`
	LastRunID   string         `json:"last_run_id,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// --- Request types ---

// CreateRunRequest — создание run.
type CreateRunRequest struct {
	TenantID       string         `json:"tenant_id"`
	Pipeline       string         `json:"pipeline"`
	Input          map[string]any `json:"input,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// CreateScheduleRequest — создание schedule.
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

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	TenantID string
	Pipeline string
	Status   string
	Limit    int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для MarketMind API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Pipelines ---

// ListPipelines возвращает все зарегистрированные топологии.
func (c *Client) ListPipelines() ([]PipelineResponse, error) {
	var pipelines []PipelineResponse
	err := c.list("/api/v1/pipelines", nil, &pipelines)
	return pipelines, err
}

// GetPipeline возвращает топологию по имени.
func (c *Client) GetPipeline(name string) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.get("/api/v1/pipelines/"+name, &pipeline)
	return &pipeline, err
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.TenantID != "" {
		params.Set("tenant_id", opts.TenantID)
	}
	if opts.Pipeline != "" {
		params.Set("pipeline", opts.Pipeline)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// CreateRun создаёт run.
func (c *Client) CreateRun(req CreateRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs", req, &run)
	return &run, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// CancelRun запрашивает отмену run.
func (c *Client) CancelRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/cancel", nil, &run)
	return &run, err
}

// ListDecisions возвращает route-back решения run.
func (c *Client) ListDecisions(runID string) ([]DecisionResponse, error) {
	var decisions []DecisionResponse
	err := c.list("/api/v1/runs/"+runID+"/decisions", nil, &decisions)
	return decisions, err
}

// ListCosts возвращает записи расходов run.
func (c *Client) ListCosts(runID string) ([]CostResponse, error) {
	var costs []CostResponse
	err := c.list("/api/v1/runs/"+runID+"/costs", nil, &costs)
	return costs, err
}

// --- Budget ---

// GetBudget возвращает расход тенанта за текущий период.
func (c *Client) GetBudget(tenantID string) (*BudgetResponse, error) {
	var budget BudgetResponse
	err := c.get("/api/v1/tenants/"+tenantID+"/budget", &budget)
	return &budget, err
}

// --- Schedules ---

// ListSchedules возвращает schedules. Если tenantID не пустой — фильтрует.
func (c *Client) ListSchedules(tenantID string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if tenantID != "" {
		params.Set("tenant_id", tenantID)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule.
func (c *Client) CreateSchedule(req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
