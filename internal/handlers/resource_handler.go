package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/licitacao-service/internal/models"
	"github.com/senyabanana/licitacao-service/internal/services"
	"github.com/senyabanana/licitacao-service/internal/utils"
)

// ResourceHandler обрабатывает запросы фазы обжалования.
type ResourceHandler struct {
	Service *services.ResourceService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewResourceHandler создаёт новый экземпляр ResourceHandler.
func NewResourceHandler(service *services.ResourceService, logger *log.Logger, timeout time.Duration) *ResourceHandler {
	return &ResourceHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// AddManifestation регистрирует намерение обжаловать.
func (h *ResourceHandler) AddManifestation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.SupplierRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	resource, err := h.Service.AddManifestation(ctx, actorFrom(r), r.PathValue("lotId"), req.SupplierID)
	h.respond(w, http.StatusCreated, resource, err)
}

// SubmitResource принимает обоснование жалобы.
func (h *ResourceHandler) SubmitResource(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.ResourceRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	resource, err := h.Service.SubmitResource(ctx, actorFrom(r), r.PathValue("lotId"), req.SupplierID, req.Content)
	h.respond(w, http.StatusOK, resource, err)
}

// SubmitCounterArgument добавляет контраргумент к жалобе.
func (h *ResourceHandler) SubmitCounterArgument(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.CounterArgumentRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	arg, err := h.Service.SubmitCounterArgument(ctx, actorFrom(r), r.PathValue("resourceId"), req.SupplierID, req.Content)
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusCreated, arg)
}

// JudgeResource фиксирует решение по жалобе.
func (h *ResourceHandler) JudgeResource(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.JudgmentRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	resource, err := h.Service.JudgeResource(ctx, actorFrom(r), r.PathValue("resourceId"), req.Decision, req.Justification)
	h.respond(w, http.StatusOK, resource, err)
}

// CloseManifestation закрывает окно намерений лота.
func (h *ResourceHandler) CloseManifestation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	lot, err := h.Service.CloseManifestation(ctx, actorFrom(r), r.PathValue("lotId"))
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, lot)
}

func (h *ResourceHandler) respond(w http.ResponseWriter, status int, resource *models.Resource, err error) {
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, status, resource)
}
