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

// LotHandler обрабатывает переходы статусов лота.
type LotHandler struct {
	Service *services.WorkflowService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewLotHandler создаёт новый экземпляр LotHandler.
func NewLotHandler(service *services.WorkflowService, logger *log.Logger, timeout time.Duration) *LotHandler {
	return &LotHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
	}
}

type lotOp func(ctx context.Context, actor models.Actor, lotID string) (*models.Lot, error)

type justifiedLotOp func(ctx context.Context, actor models.Actor, lotID, justification string) (*models.Lot, error)

// StartDispute открывает диспут по лоту.
func (h *LotHandler) StartDispute(w http.ResponseWriter, r *http.Request) {
	h.plain(w, r, h.Service.StartDispute)
}

// EndDispute закрывает диспут по лоту.
func (h *LotHandler) EndDispute(w http.ResponseWriter, r *http.Request) {
	h.plain(w, r, h.Service.EndDispute)
}

// PauseDispute приостанавливает диспут.
func (h *LotHandler) PauseDispute(w http.ResponseWriter, r *http.Request) {
	h.plain(w, r, h.Service.PauseDispute)
}

// ResumeDispute возобновляет диспут.
func (h *LotHandler) ResumeDispute(w http.ResponseWriter, r *http.Request) {
	h.plain(w, r, h.Service.ResumeDispute)
}

// StartNegotiation начинает переговоры с участником.
func (h *LotHandler) StartNegotiation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.SupplierRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	lot, err := h.Service.StartNegotiation(ctx, actorFrom(r), r.PathValue("lotId"), req.SupplierID)
	h.respond(w, lot, err)
}

// DeclareWinner объявляет победителя лота.
func (h *LotHandler) DeclareWinner(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.WinnerRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	lot, err := h.Service.DeclareWinner(ctx, actorFrom(r), r.PathValue("lotId"), req.SupplierID, req.Justification)
	h.respond(w, lot, err)
}

// Disqualify дисквалифицирует участника лота.
func (h *LotHandler) Disqualify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.DisqualifyRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	supplier, err := h.Service.Disqualify(ctx, actorFrom(r), r.PathValue("lotId"), req.SupplierID, req.Justification)
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, supplier)
}

// OpenResourcePhase открывает окно намерений обжаловать.
func (h *LotHandler) OpenResourcePhase(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.ResourcePhaseRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	lot, err := h.Service.OpenResourcePhase(ctx, actorFrom(r), r.PathValue("lotId"), req.Hours)
	h.respond(w, lot, err)
}

// Adjudicate адъюдицирует лот.
func (h *LotHandler) Adjudicate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.SupplierRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	lot, err := h.Service.Adjudicate(ctx, actorFrom(r), r.PathValue("lotId"), req.SupplierID)
	h.respond(w, lot, err)
}

// Homologate омологирует лот.
func (h *LotHandler) Homologate(w http.ResponseWriter, r *http.Request) {
	h.justified(w, r, h.Service.Homologate)
}

// Revoke отзывает лот.
func (h *LotHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	h.justified(w, r, h.Service.Revoke)
}

// Cancel аннулирует лот.
func (h *LotHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.justified(w, r, h.Service.Cancel)
}

// ReturnForDiligence возвращает процесс на проверку документов.
func (h *LotHandler) ReturnForDiligence(w http.ResponseWriter, r *http.Request) {
	h.justified(w, r, h.Service.ReturnForDiligence)
}

func (h *LotHandler) plain(w http.ResponseWriter, r *http.Request, op lotOp) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	lot, err := op(ctx, actorFrom(r), r.PathValue("lotId"))
	h.respond(w, lot, err)
}

func (h *LotHandler) justified(w http.ResponseWriter, r *http.Request, op justifiedLotOp) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	var req models.JustificationRequest
	if err := decodeRequest(r, &req); err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	lot, err := op(ctx, actorFrom(r), r.PathValue("lotId"), req.Justification)
	h.respond(w, lot, err)
}

func (h *LotHandler) respond(w http.ResponseWriter, lot *models.Lot, err error) {
	if err != nil {
		utils.SendError(w, h.Logger, err)
		return
	}
	utils.SendJSON(w, h.Logger, http.StatusOK, lot)
}
