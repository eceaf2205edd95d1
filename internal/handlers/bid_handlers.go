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

// BidHandler - структура для обработки ставок диспута.
type BidHandler struct {
	Service *services.DisputeService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewBidHandler создаёт новый экземпляр BidHandler.
func NewBidHandler(service *services.DisputeService, logger *log.Logger, timeout time.Duration) *BidHandler {
	return &BidHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

// SubmitBid принимает ставку. Ответ 202: ставка ждёт окончания окна подтверждения.
func (h *BidHandler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.BidRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}

	bid, err := h.Service.SubmitBid(ctx, actorFrom(r), r.PathValue("lotId"), req.SupplierID, req.Value)
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusAccepted, bid)
}

// CancelBid отменяет ставку, ожидающую подтверждения.
func (h *BidHandler) CancelBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	supplierID := r.URL.Query().Get("supplierId")
	if supplierID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "supplierId is required")
		return
	}

	canceled, err := h.Service.CancelBid(ctx, actorFrom(r), r.PathValue("lotId"), supplierID)
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, map[string]bool{"canceled": canceled})
}

// BestBid возвращает лучшую ставку лота и подсказку для следующей.
func (h *BidHandler) BestBid(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	quote, err := h.Service.BestBid(ctx, r.PathValue("lotId"))
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, quote)
}
