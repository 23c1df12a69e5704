package step

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
)

// HTTPStep — production-адаптер шага поверх внешнего tool-сервиса.
//
// Движок не знает, что именно делает инструмент (построение промпта,
// вызов модели, запрос к аналитике) — он отправляет snapshot состояния
// run и получает output + стоимость.
//
// Запрос: POST {baseURL}/v1/stages/{stage}
//
//	{
//	    "stage": "research",
//	    "state": { "research": {...}, ... }
//	}
//
// Ответ 200:
//
//	{
//	    "output": {...},
//	    "cost_units": 1.25
//	}
//
// Классификация ошибок: сетевые ошибки и 5xx — recoverable
// (инструмент временно недоступен), 4xx — fatal (нарушен контракт).
type HTTPStep struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStep создаёт HTTPStep для tool-сервиса по baseURL.
func NewHTTPStep(baseURL string) *HTTPStep {
	return &HTTPStep{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

// invokeRequest — тело запроса к tool-сервису.
type invokeRequest struct {
	Stage string                    `json:"stage"`
	State map[string]map[string]any `json:"state"`
}

// invokeResponse — тело ответа tool-сервиса.
type invokeResponse struct {
	Output    map[string]any `json:"output"`
	CostUnits float64        `json:"cost_units"`
}

// Invoke реализует Step.
func (s *HTTPStep) Invoke(ctx context.Context, stage string, state map[string]map[string]any) (*Result, error) {
	body, err := json.Marshal(invokeRequest{Stage: stage, State: state})
	if err != nil {
		return nil, Fatal(fmt.Errorf("marshal request: %w", err))
	}

	url := s.baseURL + "/v1/stages/" + stage
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, Fatal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, Recoverable(ctx.Err())
		}
		return nil, Recoverable(fmt.Errorf("http request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, Recoverable(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, Recoverable(fmt.Errorf("tool service returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, Fatal(fmt.Errorf("tool service rejected stage %s: %d: %s",
			stage, resp.StatusCode, string(respBody)))
	}

	var parsed invokeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, Fatal(fmt.Errorf("unmarshal response: %w", err))
	}

	return &Result{
		Output:    parsed.Output,
		CostUnits: parsed.CostUnits,
	}, nil
}
