package handler

import (
	"net/http"

	"orbook/internal/outbox/service"
	httputil "orbook/pkg/http"
	"orbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type OutboxHandler struct {
	service service.OutboxService
	log     *logger.Logger
}

func NewOutboxHandler(service service.OutboxService, log *logger.Logger) *OutboxHandler {
	return &OutboxHandler{
		service: service,
		log:     log,
	}
}

func (h *OutboxHandler) GetStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetStats", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "GetStats", "operation", "WriteSuccess", "error", err)
	}
}

func (h *OutboxHandler) GetFailed(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetFailed", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	events, total, err := h.service.GetFailed(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetFailed", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, events, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetFailed", "operation", "WritePaginated", "error", err)
	}
}

func (h *OutboxHandler) Retry(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	eventID := ps.ByName("eventId")

	event, err := h.service.RetryEvent(r.Context(), eventID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Retry", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, event); err != nil {
		h.log.Error("failed to write success response", "handler", "Retry", "operation", "WriteSuccess", "error", err)
	}
}

// Process triggers an immediate drain of due pending events, outside the
// publisher's poll schedule.
func (h *OutboxHandler) Process(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	published, err := h.service.ProcessPending(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Process", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]int{"published": published}); err != nil {
		h.log.Error("failed to write success response", "handler", "Process", "operation", "WriteSuccess", "error", err)
	}
}

func (h *OutboxHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/outbox/stats", h.GetStats)
	router.GET("/api/v1/outbox/failed", h.GetFailed)
	router.POST("/api/v1/outbox/retry/:eventId", h.Retry)
	router.POST("/api/v1/outbox/process", h.Process)
}
