package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/MarketMind/internal/domain"
	"github.com/shaiso/MarketMind/internal/pipeline"
	"github.com/shaiso/MarketMind/internal/telemetry"
)

// StreamHandler отдаёт прогресс runs по SSE.
//
// Живёт в процессе движка: broadcaster держит подписки в памяти,
// поэтому стрим доступен только там, где выполняются runs.
//
// Replay отсутствует: подписчик видит только события, опубликованные
// после подписки. Для позднего подписчика первым событием идёт
// снапшот текущего статуса run.
type StreamHandler struct {
	engine *pipeline.Engine
	logger *slog.Logger
}

// NewStreamHandler создаёт StreamHandler поверх движка.
func NewStreamHandler(engine *pipeline.Engine, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{
		engine: engine,
		logger: logger,
	}
}

// RegisterRoutes регистрирует маршруты стриминга.
func (h *StreamHandler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
	)
	mux.Handle("GET /v1/runs/{id}/stream", chain(http.HandlerFunc(h.StreamRun)))
}

// StreamRun стримит события run по SSE.
// GET /v1/runs/{id}/stream
func (h *StreamHandler) StreamRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, h.logger, fmt.Errorf("streaming not supported"))
		return
	}

	// Подписка ДО снапшота: события между снапшотом и подпиской
	// потерять нельзя
	sub := h.engine.Broadcaster().Subscribe(id)
	telemetry.Subscribers.Inc()
	defer func() {
		h.engine.Broadcaster().Unsubscribe(sub)
		telemetry.Subscribers.Dec()
	}()

	run, ok := h.engine.Snapshot(id)
	if !ok {
		NotFound(w, "run is not active")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Снапшот текущего статуса для позднего подписчика
	if err := writeSSE(w, "snapshot", RunFromDomain(*run)); err != nil {
		return
	}

	h.logger.Debug("stream subscriber attached", "run_id", id)

	for {
		select {
		case <-r.Context().Done():
			return

		case event, ok := <-sub.Events():
			if !ok {
				// Run завершён, broadcaster закрыл подписки
				return
			}
			if err := writeSSE(w, string(event.Kind), event); err != nil {
				return
			}
			if event.Kind == domain.EventKindComplete || event.Kind == domain.EventKindError {
				return
			}
		}
	}
}

// writeSSE пишет одно SSE-событие и флашит буфер.
func writeSSE(w http.ResponseWriter, event string, payload any) error {
	blob, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", blob); err != nil {
		return err
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
