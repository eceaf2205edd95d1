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

// TenderHandler - структура для обработки HTTP-запросов уровня процесса.
type TenderHandler struct {
	Service *services.WorkflowService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewTenderHandler создаёт новый экземпляр TenderHandler.
func NewTenderHandler(service *services.WorkflowService, logger *log.Logger, timeout time.Duration) *TenderHandler {
	return &TenderHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// GetTender возвращает полный снимок процесса.
func (h *TenderHandler) GetTender(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	agg, err := h.Service.Snapshot(ctx, actorFrom(r), r.PathValue("tenderId"))
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, agg)
}

// GetMessages возвращает страницу журнала процесса.
func (h *TenderHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	limit, offset, err := utils.ParseLimitOffset(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}

	messages, err := h.Service.Messages(ctx, actorFrom(r), r.PathValue("tenderId"), limit, offset)
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, messages)
}

// PostMessage добавляет сообщение в чат процесса.
func (h *TenderHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.MessageRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}

	msg, err := h.Service.PostMessage(ctx, actorFrom(r), r.PathValue("tenderId"), req.LotID, req.Content, req.Private)
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusCreated, msg)
}

// PublishTender публикует процесс.
func (h *TenderHandler) PublishTender(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	tender, err := h.Service.PublishTender(ctx, actorFrom(r), r.PathValue("tenderId"))
	h.respond(w, tender, err)
}

// ScheduleOpening назначает дату открытия сессии.
func (h *TenderHandler) ScheduleOpening(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.ScheduleRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}

	tender, err := h.Service.ScheduleOpening(ctx, actorFrom(r), r.PathValue("tenderId"), req.OpensAt)
	h.respond(w, tender, err)
}

// OpenProposals открывает предложения процесса.
func (h *TenderHandler) OpenProposals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	tender, err := h.Service.OpenProposals(ctx, actorFrom(r), r.PathValue("tenderId"))
	h.respond(w, tender, err)
}

// RevokeTender отзывает процесс целиком.
func (h *TenderHandler) RevokeTender(w http.ResponseWriter, r *http.Request) {
	h.terminate(w, r, h.Service.RevokeTender)
}

// CancelTender аннулирует процесс целиком.
func (h *TenderHandler) CancelTender(w http.ResponseWriter, r *http.Request) {
	h.terminate(w, r, h.Service.CancelTender)
}

func (h *TenderHandler) terminate(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, actor models.Actor, tenderID, justification string) (*models.Tender, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.JustificationRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}

	tender, err := op(ctx, actorFrom(r), r.PathValue("tenderId"), req.Justification)
	h.respond(w, tender, err)
}

func (h *TenderHandler) respond(w http.ResponseWriter, tender *models.Tender, err error) {
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, tender)
}
