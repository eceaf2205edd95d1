package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/senyabanana/licitacao-service/internal/models"
	"github.com/senyabanana/licitacao-service/internal/repository"
)

// WorkflowService - Tender Workflow Controller: статусы закупки и лотов, передача
// лотов в диспут и в фазу обжалования, журнал событий.
type WorkflowService struct {
	*base
	dispute   *DisputeService
	resources *ResourceService
}

// escape описывает выход в конечный статус (отзыв или аннулирование).
type escape struct {
	action Action
	lot    models.LotStatus
	tender models.TenderStatus
	label  string
}

var (
	revocation   = escape{ActRevoke, models.LotRevoked, models.TenderRevoked, "revogado"}
	cancellation = escape{ActCancel, models.LotCanceled, models.TenderCanceled, "anulado"}
)

func requireJustification(justification, action string) error {
	if strings.TrimSpace(justification) == "" {
		return fmt.Errorf("%w: %s requires a justification", models.ErrMissingJustification, action)
	}
	return nil
}

func invalidLot(lot *models.Lot, to models.LotStatus) error {
	return fmt.Errorf("%w: lot %s cannot move from %s to %s", models.ErrInvalidTransition, lot.ID, lot.Status, to)
}

// moveLot переводит лот в статус to условным обновлением.
func (s *WorkflowService) moveLot(ctx context.Context, lot *models.Lot, to models.LotStatus) error {
	if !lot.Status.CanTransition(to) {
		return invalidLot(lot, to)
	}
	from, updated := lot.Status, lot.UpdatedAt
	lot.Status = to
	lot.UpdatedAt = s.now()
	if err := s.store.Lots.UpdateLot(ctx, lot, from); err != nil {
		lot.Status, lot.UpdatedAt = from, updated
		return err
	}
	s.lotEvent(ctx, lot)
	return nil
}

// saveLot сохраняет поля лота без смены статуса.
func (s *WorkflowService) saveLot(ctx context.Context, lot *models.Lot) error {
	lot.UpdatedAt = s.now()
	if err := s.store.Lots.UpdateLot(ctx, lot, lot.Status); err != nil {
		return err
	}
	s.lotEvent(ctx, lot)
	return nil
}

// checkTender проверяет, что процесс может перейти в статус to, до изменения лота.
func (s *WorkflowService) checkTender(ctx context.Context, tenderID string, to models.TenderStatus) (*models.Tender, error) {
	tender, err := s.store.Tenders.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if tender.Status != to && !tender.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: tender %s cannot move from %s to %s", models.ErrInvalidTransition, tender.ID, tender.Status, to)
	}
	return tender, nil
}

// updateTender меняет статус процесса под его блокировкой. Пустой to оставляет статус
// прежним. Если strict, повторная установка того же статуса считается ошибкой.
func (s *WorkflowService) updateTender(ctx context.Context, tenderID string, to models.TenderStatus, strict bool, mutate func(*models.Tender)) (*models.Tender, error) {
	unlock := s.locks.lock(tenderKey(tenderID))
	defer unlock()

	tender, err := s.store.Tenders.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	from := tender.Status
	if to == "" {
		to = from
	}
	if from == to && mutate == nil && !strict {
		return tender, nil
	}
	if (from != to || strict) && !from.CanTransition(to) {
		return nil, fmt.Errorf("%w: tender %s cannot move from %s to %s", models.ErrInvalidTransition, tender.ID, from, to)
	}

	tender.Status = to
	if mutate != nil {
		mutate(tender)
	}
	tender.UpdatedAt = s.now()
	if err = s.store.Tenders.UpdateTender(ctx, tender, from); err != nil {
		return nil, err
	}
	s.tenderEvent(ctx, tender)
	return tender, nil
}

// syncTender выводит статус процесса из статусов его лотов: адъюдикация, омологация
// или конечный статус, когда все лоты дошли до соответствующего этапа.
func (s *WorkflowService) syncTender(ctx context.Context, actor models.Actor, tenderID string) error {
	lots, err := s.store.Lots.ListLots(ctx, tenderID)
	if err != nil || len(lots) == 0 {
		return err
	}

	live, homologated, adjudicated, revoked := 0, 0, 0, 0
	for _, l := range lots {
		switch l.Status {
		case models.LotRevoked:
			revoked++
			continue
		case models.LotCanceled:
			continue
		case models.LotHomologated:
			homologated++
		case models.LotAdjudicated:
			adjudicated++
		}
		live++
	}

	var to models.TenderStatus
	switch {
	case live == 0 && revoked == len(lots):
		to = models.TenderRevoked
	case live == 0:
		to = models.TenderCanceled
	case homologated == live:
		to = models.TenderHomologation
	case adjudicated+homologated == live:
		to = models.TenderAdjudication
	default:
		return nil
	}

	tender, err := s.store.Tenders.GetTender(ctx, tenderID)
	if err != nil || tender.Status == to {
		return err
	}
	if tender, err = s.updateTender(ctx, tenderID, to, false, nil); err != nil {
		return err
	}
	if to.Terminal() {
		return s.tenderMessage(ctx, actor, tender, "tender-closed", "processo encerrado, todos os lotes estão %s.", to)
	}
	return nil
}

// lockLot захватывает блокировку лота, читает его и проверяет полномочия.
func (s *WorkflowService) lockLot(ctx context.Context, actor models.Actor, action Action, lotID string) (*models.Lot, func(), error) {
	unlock := s.locks.lock(lotKey(lotID))
	lot, err := s.store.Lots.GetLot(ctx, lotID)
	if err == nil {
		err = s.authorize(ctx, actor, action, lot.TenderID)
	}
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return lot, unlock, nil
}

// PublishTender публикует черновик процесса.
func (s *WorkflowService) PublishTender(ctx context.Context, actor models.Actor, tenderID string) (*models.Tender, error) {
	if _, err := s.store.Tenders.GetTender(ctx, tenderID); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, ActPublish, tenderID); err != nil {
		return nil, err
	}
	tender, err := s.updateTender(ctx, tenderID, models.TenderPublished, true, nil)
	if err != nil {
		return nil, err
	}
	return tender, s.tenderMessage(ctx, actor, tender, "published", "edital publicado.")
}

// ScheduleOpening назначает дату открытия сессии опубликованного процесса.
func (s *WorkflowService) ScheduleOpening(ctx context.Context, actor models.Actor, tenderID string, opensAt time.Time) (*models.Tender, error) {
	if !opensAt.After(s.now()) {
		return nil, fmt.Errorf("%w: session opening must be in the future", models.ErrInvalidInput)
	}
	if _, err := s.store.Tenders.GetTender(ctx, tenderID); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, ActScheduleOpening, tenderID); err != nil {
		return nil, err
	}
	tender, err := s.updateTender(ctx, tenderID, models.TenderWaitingOpening, true, func(t *models.Tender) {
		t.SessionOpensAt = &opensAt
	})
	if err != nil {
		return nil, err
	}
	return tender, s.tenderMessage(ctx, actor, tender, "scheduled", "sessão pública agendada para %s.", formatDeadline(opensAt))
}

// OpenProposals открывает предложения: процесс переходит к анализу, ожидающие лоты
// становятся готовыми к диспуту.
func (s *WorkflowService) OpenProposals(ctx context.Context, actor models.Actor, tenderID string) (*models.Tender, error) {
	tender, err := s.store.Tenders.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if err = s.authorize(ctx, actor, ActOpenProposals, tenderID); err != nil {
		return nil, err
	}
	if tender.Status != models.TenderPublished && tender.Status != models.TenderWaitingOpening {
		return nil, fmt.Errorf("%w: tender %s is %s, proposals can be opened only after publication", models.ErrInvalidTransition, tender.ID, tender.Status)
	}
	if tender, err = s.updateTender(ctx, tenderID, models.TenderProposalAnalysis, true, nil); err != nil {
		return nil, err
	}

	lots, err := s.store.Lots.ListLots(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	ready := 0
	for _, l := range lots {
		if l.Status != models.LotWaiting {
			continue
		}
		if err = s.readyLot(ctx, l.ID); err != nil {
			return nil, err
		}
		ready++
	}
	return tender, s.tenderMessage(ctx, actor, tender, "proposals-opened",
		"abertas as propostas, %d lote(s) liberado(s) para disputa.", ready)
}

func (s *WorkflowService) readyLot(ctx context.Context, lotID string) error {
	unlock := s.locks.lock(lotKey(lotID))
	defer unlock()
	lot, err := s.store.Lots.GetLot(ctx, lotID)
	if err != nil {
		return err
	}
	if lot.Status != models.LotWaiting {
		return nil
	}
	return s.moveLot(ctx, lot, models.LotProposalAnalysis)
}

// StartDispute открывает диспут по лоту.
func (s *WorkflowService) StartDispute(ctx context.Context, actor models.Actor, lotID string) (*models.Lot, error) {
	lot, unlock, err := s.lockLot(ctx, actor, ActStartDispute, lotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if lot.Status == models.LotPaused || !lot.Status.CanTransition(models.LotOpen) {
		return nil, invalidLot(lot, models.LotOpen)
	}
	if _, err = s.checkTender(ctx, lot.TenderID, models.TenderDispute); err != nil {
		return nil, err
	}
	if err = s.moveLot(ctx, lot, models.LotOpen); err != nil {
		return nil, err
	}
	if _, err = s.updateTender(ctx, lot.TenderID, models.TenderDispute, false, func(t *models.Tender) {
		t.ActiveLotID = lot.ID
	}); err != nil {
		return nil, err
	}
	return lot, s.lotMessage(ctx, actor, lot, false, "dispute-started", "disputa iniciada.")
}

// EndDispute закрывает диспут: отменяет неподтверждённые ставки и фиксирует
// лучшее значение каждого участника.
func (s *WorkflowService) EndDispute(ctx context.Context, actor models.Actor, lotID string) (*models.Lot, error) {
	lot, unlock, err := s.lockLot(ctx, actor, ActEndDispute, lotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err = s.moveLot(ctx, lot, models.LotFinished); err != nil {
		return nil, err
	}
	if err = s.dispute.abortLot(ctx, lot); err != nil {
		return nil, err
	}
	if err = s.dispute.rankLot(ctx, lot); err != nil {
		return nil, err
	}
	if _, err = s.updateTender(ctx, lot.TenderID, "", false, func(t *models.Tender) {
		if t.ActiveLotID == lot.ID {
			t.ActiveLotID = ""
		}
	}); err != nil {
		return nil, err
	}
	return lot, s.lotMessage(ctx, actor, lot, false, "dispute-ended", "disputa encerrada.")
}

// PauseDispute приостанавливает диспут. Уже идущие окна подтверждения продолжаются.
func (s *WorkflowService) PauseDispute(ctx context.Context, actor models.Actor, lotID string) (*models.Lot, error) {
	lot, unlock, err := s.lockLot(ctx, actor, ActPauseDispute, lotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err = s.moveLot(ctx, lot, models.LotPaused); err != nil {
		return nil, err
	}
	return lot, s.lotMessage(ctx, actor, lot, false, "dispute-paused", "disputa suspensa.")
}

// ResumeDispute возобновляет приостановленный диспут.
func (s *WorkflowService) ResumeDispute(ctx context.Context, actor models.Actor, lotID string) (*models.Lot, error) {
	lot, unlock, err := s.lockLot(ctx, actor, ActResumeDispute, lotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if lot.Status != models.LotPaused {
		return nil, invalidLot(lot, models.LotOpen)
	}
	if err = s.moveLot(ctx, lot, models.LotOpen); err != nil {
		return nil, err
	}
	return lot, s.lotMessage(ctx, actor, lot, false, "dispute-resumed", "disputa retomada.")
}

// StartNegotiation начинает переговоры с участником после закрытия диспута.
func (s *WorkflowService) StartNegotiation(ctx context.Context, actor models.Actor, lotID, supplierID string) (*models.Lot, error) {
	lot, unlock, err := s.lockLot(ctx, actor, ActStartNegotiation, lotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	supplier, err := s.store.Lots.GetSupplier(ctx, lotID, supplierID)
	if err != nil {
		return nil, err
	}
	if !lot.Status.CanTransition(models.LotNegotiation) {
		return nil, invalidLot(lot, models.LotNegotiation)
	}
	if supplier.Status != models.SupplierClassified {
		return nil, fmt.Errorf("%w: supplier %s is %s", models.ErrInvalidTransition, supplier.ID, supplier.Status)
	}
	if _, err = s.checkTender(ctx, lot.TenderID, models.TenderNegotiation); err != nil {
		return nil, err
	}

	lot.NegotiatingSupplierID = supplier.ID
	if err = s.moveLot(ctx, lot, models.LotNegotiation); err != nil {
		return nil, err
	}
	if _, err = s.updateTender(ctx, lot.TenderID, models.TenderNegotiation, false, nil); err != nil {
		return nil, err
	}
	return lot, s.lotMessage(ctx, actor, lot, false, "negotiation",
		"negociação iniciada com %s.", supplierName(supplier))
}

// DeclareWinner объявляет победителя лота. Повторный вызов с тем же участником
// досоздаёт недостающие записи. Если объявленный победитель был дисквалифицирован,
// можно объявить другого.
func (s *WorkflowService) DeclareWinner(ctx context.Context, actor models.Actor, lotID, supplierID, justification string) (*models.Lot, error) {
	if err := requireJustification(justification, "declareWinner"); err != nil {
		return nil, err
	}
	lot, unlock, err := s.lockLot(ctx, actor, ActDeclareWinner, lotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	supplier, err := s.store.Lots.GetSupplier(ctx, lotID, supplierID)
	if err != nil {
		return nil, err
	}

	reapply := lot.Status == models.LotWinnerDeclared && lot.WinnerID == supplier.ID
	redeclare := lot.Status == models.LotWinnerDeclared && lot.WinnerID == ""
	if !reapply {
		if !redeclare && !lot.Status.CanTransition(models.LotWinnerDeclared) {
			return nil, invalidLot(lot, models.LotWinnerDeclared)
		}
		if supplier.Status != models.SupplierClassified {
			return nil, fmt.Errorf("%w: supplier %s is %s", models.ErrInvalidTransition, supplier.ID, supplier.Status)
		}
		if _, err = s.checkTender(ctx, lot.TenderID, models.TenderWinnerDeclaration); err != nil {
			return nil, err
		}

		lot.WinnerID = supplier.ID
		if redeclare {
			err = s.saveLot(ctx, lot)
		} else {
			err = s.moveLot(ctx, lot, models.LotWinnerDeclared)
		}
		if err != nil {
			return nil, err
		}
	}

	if supplier.Status != models.SupplierWinner {
		supplier.Status = models.SupplierWinner
		if err = s.store.Lots.UpdateSupplier(ctx, supplier); err != nil {
			return nil, err
		}
	}
	if !reapply {
		if _, err = s.updateTender(ctx, lot.TenderID, models.TenderWinnerDeclaration, false, nil); err != nil {
			return nil, err
		}
	}
	return lot, s.lotMessage(ctx, actor, lot, false, "winner:"+supplier.ID,
		"%s declarado(a) vencedor(a). Justificativa: %s", supplierName(supplier), justification)
}

// Disqualify дисквалифицирует участника лота после диспута.
func (s *WorkflowService) Disqualify(ctx context.Context, actor models.Actor, lotID, supplierID, justification string) (*models.Supplier, error) {
	if err := requireJustification(justification, "disqualify"); err != nil {
		return nil, err
	}
	lot, unlock, err := s.lockLot(ctx, actor, ActDisqualify, lotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	supplier, err := s.store.Lots.GetSupplier(ctx, lotID, supplierID)
	if err != nil {
		return nil, err
	}
	switch lot.Status {
	case models.LotFinished, models.LotNegotiation, models.LotWinnerDeclared:
	default:
		return nil, fmt.Errorf("%w: participants of lot %s cannot be disqualified while %s", models.ErrInvalidTransition, lot.ID, lot.Status)
	}
	if supplier.Status == models.SupplierDisqualified {
		return nil, fmt.Errorf("%w: supplier %s is already disqualified", models.ErrInvalidTransition, supplier.ID)
	}

	supplier.Status = models.SupplierDisqualified
	if err = s.store.Lots.UpdateSupplier(ctx, supplier); err != nil {
		return nil, err
	}
	if lot.WinnerID == supplier.ID || lot.NegotiatingSupplierID == supplier.ID {
		if lot.WinnerID == supplier.ID {
			lot.WinnerID = ""
		}
		if lot.NegotiatingSupplierID == supplier.ID {
			lot.NegotiatingSupplierID = ""
		}
		if err = s.saveLot(ctx, lot); err != nil {
			return nil, err
		}
	}
	return supplier, s.lotMessage(ctx, actor, lot, false, "disqualified:"+supplier.ID,
		"%s desclassificado(a). Justificativa: %s", supplierName(supplier), justification)
}

// OpenResourcePhase открывает окно намерений обжаловать на hours часов.
func (s *WorkflowService) OpenResourcePhase(ctx context.Context, actor models.Actor, lotID string, hours int) (*models.Lot, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("%w: hours must be positive, got %d", models.ErrInvalidInput, hours)
	}
	lot, unlock, err := s.lockLot(ctx, actor, ActOpenResourcePhase, lotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !lot.Status.CanTransition(models.LotResourcePhase) {
		return nil, invalidLot(lot, models.LotResourcePhase)
	}
	if lot.WinnerID == "" {
		return nil, fmt.Errorf("%w: lot %s has no declared winner", models.ErrInvalidTransition, lot.ID)
	}
	if _, err = s.checkTender(ctx, lot.TenderID, models.TenderResourcePhase); err != nil {
		return nil, err
	}

	deadline := s.now().Add(time.Duration(hours) * time.Hour)
	lot.ResourceStage = models.StageManifestationOpen
	lot.ManifestationDeadline = &deadline
	if err = s.moveLot(ctx, lot, models.LotResourcePhase); err != nil {
		return nil, err
	}
	if _, err = s.updateTender(ctx, lot.TenderID, models.TenderResourcePhase, false, nil); err != nil {
		return nil, err
	}
	return lot, s.lotMessage(ctx, actor, lot, false, "resource-phase",
		"aberto o prazo para manifestação de intenção de recurso até %s.", formatDeadline(deadline))
}

// Adjudicate адъюдицирует лот победителю, если по лоту не осталось открытых жалоб.
func (s *WorkflowService) Adjudicate(ctx context.Context, actor models.Actor, lotID, supplierID string) (*models.Lot, error) {
	lot, unlock, err := s.lockLot(ctx, actor, ActAdjudicate, lotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !lot.Status.CanTransition(models.LotAdjudicated) {
		return nil, invalidLot(lot, models.LotAdjudicated)
	}
	if err = s.resources.expireLocked(ctx, lot); err != nil {
		return nil, err
	}
	open, err := s.resources.openResources(ctx, lot.ID)
	if err != nil {
		return nil, err
	}
	if len(open) > 0 {
		return nil, fmt.Errorf("%w: lot %s has %d resource(s) awaiting judgment", models.ErrOpenResourcesExist, lot.ID, len(open))
	}
	if lot.Status == models.LotResourcePhase && lot.ResourceStage != models.StageJudgment {
		return nil, fmt.Errorf("%w: resource stage of lot %s is %s", models.ErrOpenResourcesExist, lot.ID, lot.ResourceStage)
	}
	supplier, err := s.store.Lots.GetSupplier(ctx, lotID, supplierID)
	if err != nil {
		return nil, err
	}
	if lot.WinnerID != supplier.ID {
		return nil, fmt.Errorf("%w: supplier %s is not the declared winner of lot %s", models.ErrInvalidInput, supplier.ID, lot.ID)
	}

	if err = s.moveLot(ctx, lot, models.LotAdjudicated); err != nil {
		return nil, err
	}
	if err = s.lotMessage(ctx, actor, lot, false, "adjudicated", "adjudicado a %s.", supplierName(supplier)); err != nil {
		return nil, err
	}
	return lot, s.syncTender(ctx, actor, lot.TenderID)
}

// Homologate омологирует адъюдицированный лот. Доступно только вышестоящему лицу.
func (s *WorkflowService) Homologate(ctx context.Context, actor models.Actor, lotID, justification string) (*models.Lot, error) {
	if err := requireJustification(justification, "homologate"); err != nil {
		return nil, err
	}
	lot, unlock, err := s.lockLot(ctx, actor, ActHomologate, lotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if lot.Status != models.LotAdjudicated {
		return nil, invalidLot(lot, models.LotHomologated)
	}
	if err = s.moveLot(ctx, lot, models.LotHomologated); err != nil {
		return nil, err
	}
	if err = s.lotMessage(ctx, actor, lot, false, "homologated", "homologado. Justificativa: %s", justification); err != nil {
		return nil, err
	}
	return lot, s.syncTender(ctx, actor, lot.TenderID)
}

// Revoke отзывает лот. Статус конечный.
func (s *WorkflowService) Revoke(ctx context.Context, actor models.Actor, lotID, justification string) (*models.Lot, error) {
	return s.terminate(ctx, actor, lotID, justification, revocation)
}

// Cancel аннулирует лот. Статус конечный.
func (s *WorkflowService) Cancel(ctx context.Context, actor models.Actor, lotID, justification string) (*models.Lot, error) {
	return s.terminate(ctx, actor, lotID, justification, cancellation)
}

func (s *WorkflowService) terminate(ctx context.Context, actor models.Actor, lotID, justification string, e escape) (*models.Lot, error) {
	if err := requireJustification(justification, string(e.action)); err != nil {
		return nil, err
	}
	lot, unlock, err := s.lockLot(ctx, actor, e.action, lotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err = s.terminateLocked(ctx, actor, lot, justification, e); err != nil {
		return nil, err
	}
	return lot, s.syncTender(ctx, actor, lot.TenderID)
}

func (s *WorkflowService) terminateLocked(ctx context.Context, actor models.Actor, lot *models.Lot, justification string, e escape) error {
	if lot.Status.Terminal() {
		return invalidLot(lot, e.lot)
	}
	if err := s.moveLot(ctx, lot, e.lot); err != nil {
		return err
	}
	if err := s.dispute.abortLot(ctx, lot); err != nil {
		return err
	}
	return s.lotMessage(ctx, actor, lot, false, string(e.action), "%s. Justificativa: %s", e.label, justification)
}

// ReturnForDiligence возвращает процесс на проверку документов. Адъюдицированный или
// омологированный лот возвращается к объявленному победителю.
func (s *WorkflowService) ReturnForDiligence(ctx context.Context, actor models.Actor, lotID, justification string) (*models.Lot, error) {
	if err := requireJustification(justification, "returnForDiligence"); err != nil {
		return nil, err
	}
	lot, unlock, err := s.lockLot(ctx, actor, ActReturnForDiligence, lotID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if lot.Status == models.LotWaiting || lot.Status.Terminal() {
		return nil, fmt.Errorf("%w: lot %s is %s", models.ErrInvalidTransition, lot.ID, lot.Status)
	}
	if _, err = s.checkTender(ctx, lot.TenderID, models.TenderDocumentAnalysis); err != nil {
		return nil, err
	}
	if lot.Status == models.LotAdjudicated || lot.Status == models.LotHomologated {
		if err = s.moveLot(ctx, lot, models.LotWinnerDeclared); err != nil {
			return nil, err
		}
	}
	if _, err = s.updateTender(ctx, lot.TenderID, models.TenderDocumentAnalysis, false, nil); err != nil {
		return nil, err
	}
	return lot, s.lotMessage(ctx, actor, lot, false, "diligence:"+stamp(s.now()),
		"processo retornado para diligência. Justificativa: %s", justification)
}

// RevokeTender отзывает процесс целиком вместе со всеми незавершёнными лотами.
func (s *WorkflowService) RevokeTender(ctx context.Context, actor models.Actor, tenderID, justification string) (*models.Tender, error) {
	return s.terminateTender(ctx, actor, tenderID, justification, revocation)
}

// CancelTender аннулирует процесс целиком вместе со всеми незавершёнными лотами.
func (s *WorkflowService) CancelTender(ctx context.Context, actor models.Actor, tenderID, justification string) (*models.Tender, error) {
	return s.terminateTender(ctx, actor, tenderID, justification, cancellation)
}

func (s *WorkflowService) terminateTender(ctx context.Context, actor models.Actor, tenderID, justification string, e escape) (*models.Tender, error) {
	if err := requireJustification(justification, string(e.action)); err != nil {
		return nil, err
	}
	tender, err := s.store.Tenders.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if err = s.authorize(ctx, actor, e.action, tenderID); err != nil {
		return nil, err
	}
	if tender.Status.Terminal() {
		return nil, fmt.Errorf("%w: tender %s is already %s", models.ErrInvalidTransition, tender.ID, tender.Status)
	}

	lots, err := s.store.Lots.ListLots(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	for _, l := range lots {
		if l.Status.Terminal() {
			continue
		}
		if err = s.terminateLot(ctx, actor, l.ID, justification, e); err != nil {
			return nil, err
		}
	}

	if tender, err = s.updateTender(ctx, tenderID, e.tender, false, func(t *models.Tender) {
		t.ActiveLotID = ""
	}); err != nil {
		return nil, err
	}
	return tender, s.tenderMessage(ctx, actor, tender, string(e.action), "%s. Justificativa: %s", e.label, justification)
}

func (s *WorkflowService) terminateLot(ctx context.Context, actor models.Actor, lotID, justification string, e escape) error {
	unlock := s.locks.lock(lotKey(lotID))
	defer unlock()
	lot, err := s.store.Lots.GetLot(ctx, lotID)
	if err != nil {
		return err
	}
	if lot.Status.Terminal() {
		return nil
	}
	return s.terminateLocked(ctx, actor, lot, justification, e)
}

// Snapshot возвращает полный снимок процесса. Закрытые сообщения видят только
// должностные лица закупки.
func (s *WorkflowService) Snapshot(ctx context.Context, actor models.Actor, tenderID string) (*models.Aggregate, error) {
	return repository.LoadAggregate(ctx, s.store, tenderID, s.isOfficial(ctx, actor, tenderID))
}

// Messages возвращает страницу журнала процесса в порядке добавления.
func (s *WorkflowService) Messages(ctx context.Context, actor models.Actor, tenderID string, limit, offset int) ([]models.SystemMessage, error) {
	if _, err := s.store.Tenders.GetTender(ctx, tenderID); err != nil {
		return nil, err
	}
	return s.store.Messages.ListMessages(ctx, tenderID, s.isOfficial(ctx, actor, tenderID), limit, offset)
}

// PostMessage добавляет сообщение ведущего в чат процесса или лота.
func (s *WorkflowService) PostMessage(ctx context.Context, actor models.Actor, tenderID, lotID, content string, private bool) (*models.SystemMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message is empty", models.ErrInvalidInput)
	}
	if _, err := s.store.Tenders.GetTender(ctx, tenderID); err != nil {
		return nil, err
	}
	if lotID != "" {
		lot, err := s.store.Lots.GetLot(ctx, lotID)
		if err != nil {
			return nil, err
		}
		if lot.TenderID != tenderID {
			return nil, fmt.Errorf("%w: lot %s does not belong to tender %s", models.ErrLotNotFound, lotID, tenderID)
		}
	}
	if err := s.authorize(ctx, actor, ActPostMessage, tenderID); err != nil {
		return nil, err
	}

	msg := models.SystemMessage{
		ID:         newID(),
		TenderID:   tenderID,
		LotID:      lotID,
		Type:       models.MessageChat,
		Content:    content,
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		IsPrivate:  private,
		CreatedAt:  s.now(),
	}
	if _, err := s.appendMessage(ctx, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
