package api

import (
	"errors"
	"net/http"

	"github.com/shaiso/MarketMind/internal/pipeline"
)

// ListPipelines возвращает все зарегистрированные топологии.
// GET /api/v1/pipelines
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	names := h.pipelines.Names()

	result := make([]PipelineResponse, 0, len(names))
	for _, name := range names {
		p, err := h.pipelines.Get(name)
		if err != nil {
			continue
		}
		result = append(result, PipelineFromDomain(p))
	}

	List(w, result, len(result))
}

// GetPipeline возвращает топологию по имени.
// GET /api/v1/pipelines/{name}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := h.pipelines.Get(r.PathValue("name"))
	if err != nil {
		if errors.Is(err, pipeline.ErrPipelineNotFound) {
			NotFound(w, "pipeline not found")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Success(w, PipelineFromDomain(p))
}
