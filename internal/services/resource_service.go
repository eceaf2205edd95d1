package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/senyabanana/licitacao-service/internal/feed"
	"github.com/senyabanana/licitacao-service/internal/models"
)

// ResourceService - Resource Tracker: намерения обжаловать, жалобы, контраргументы и решения по ним.
type ResourceService struct {
	*base
}

// AddManifestation регистрирует намерение участника обжаловать решение по лоту.
func (s *ResourceService) AddManifestation(ctx context.Context, actor models.Actor, lotID, supplierID string) (*models.Resource, error) {
	unlock := s.locks.lock(lotKey(lotID))
	defer unlock()

	lot, err := s.store.Lots.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	supplier, err := s.store.Lots.GetSupplier(ctx, lotID, supplierID)
	if err != nil {
		return nil, err
	}
	if err = s.authorizeSupplier(ctx, actor, ActManifest, lot.TenderID, supplier); err != nil {
		return nil, err
	}
	if lot.Status != models.LotResourcePhase || lot.ResourceStage != models.StageManifestationOpen {
		return nil, fmt.Errorf("%w: lot %s is not accepting manifestations", models.ErrInvalidTransition, lot.ID)
	}
	now := s.now()
	if lot.ManifestationDeadline != nil && now.After(*lot.ManifestationDeadline) {
		return nil, fmt.Errorf("%w: manifestation window of lot %s closed at %s", models.ErrInvalidTransition, lot.ID, formatDeadline(*lot.ManifestationDeadline))
	}

	resource := &models.Resource{
		ID:                 newID(),
		LotID:              lotID,
		SupplierID:         supplierID,
		Phase:              models.ResourceManifested,
		ManifestedAt:       now,
		SubmissionDeadline: s.policy.SubmissionDeadline(now),
		CounterArguments:   []models.CounterArgument{},
	}
	if err = s.store.Resources.CreateResource(ctx, resource); err != nil {
		return nil, err
	}
	s.resourceEvent(ctx, lot, resource)

	_, err = s.appendMessage(ctx, &models.SystemMessage{
		ID:       messageID("manifest", resource.ID),
		TenderID: lot.TenderID,
		LotID:    lot.ID,
		Content: fmt.Sprintf("Lote %s: %s manifestou intenção de recurso. Prazo para apresentação das razões: %s.",
			lotLabel(lot), supplierName(supplier), formatDeadline(resource.SubmissionDeadline)),
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
	})
	return resource, err
}

// SubmitResource принимает обоснование жалобы по ранее заявленному намерению.
func (s *ResourceService) SubmitResource(ctx context.Context, actor models.Actor, lotID, supplierID, content string) (*models.Resource, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: resource grounds are empty", models.ErrMissingJustification)
	}

	unlock := s.locks.lock(lotKey(lotID))
	defer unlock()

	lot, err := s.store.Lots.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	supplier, err := s.store.Lots.GetSupplier(ctx, lotID, supplierID)
	if err != nil {
		return nil, err
	}
	if err = s.authorizeSupplier(ctx, actor, ActSubmitResource, lot.TenderID, supplier); err != nil {
		return nil, err
	}
	resource, err := s.store.Resources.FindResource(ctx, lotID, supplierID)
	if err != nil {
		return nil, err
	}
	if resource.Phase != models.ResourceManifested {
		return nil, fmt.Errorf("%w: resource %s is %s", models.ErrInvalidTransition, resource.ID, resource.Phase)
	}
	now := s.now()
	if now.After(resource.SubmissionDeadline) {
		if err = s.expireLocked(ctx, lot); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: submission deadline of resource %s passed", models.ErrInvalidTransition, resource.ID)
	}

	deadline := s.policy.CounterArgumentDeadline(now)
	resource.Phase = models.ResourceSubmitted
	resource.SubmittedAt = &now
	resource.CounterArgumentDeadline = &deadline
	resource.Content = content
	if err = s.store.Resources.UpdateResource(ctx, resource, models.ResourceManifested); err != nil {
		return nil, err
	}
	s.resourceEvent(ctx, lot, resource)
	if err = s.refreshStage(ctx, lot); err != nil {
		return nil, err
	}

	_, err = s.appendMessage(ctx, &models.SystemMessage{
		ID:       messageID("resource-submitted", resource.ID),
		TenderID: lot.TenderID,
		LotID:    lot.ID,
		Content: fmt.Sprintf("Lote %s: %s apresentou as razões de recurso. Prazo para contrarrazões: %s.",
			lotLabel(lot), supplierName(supplier), formatDeadline(deadline)),
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
	})
	return resource, err
}

// SubmitCounterArgument добавляет контраргумент другого участника. Фаза жалобы не меняется.
func (s *ResourceService) SubmitCounterArgument(ctx context.Context, actor models.Actor, resourceID, supplierID, content string) (*models.CounterArgument, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: counter-argument is empty", models.ErrMissingJustification)
	}

	resource, err := s.store.Resources.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(lotKey(resource.LotID))
	defer unlock()

	lot, err := s.store.Lots.GetLot(ctx, resource.LotID)
	if err != nil {
		return nil, err
	}
	supplier, err := s.store.Lots.GetSupplier(ctx, resource.LotID, supplierID)
	if err != nil {
		return nil, err
	}
	if err = s.authorizeSupplier(ctx, actor, ActCounterArgument, lot.TenderID, supplier); err != nil {
		return nil, err
	}
	if supplier.ID == resource.SupplierID {
		return nil, fmt.Errorf("%w: supplier %s cannot counter its own resource", models.ErrInvalidInput, supplier.ID)
	}
	if resource, err = s.store.Resources.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}
	if resource.Phase != models.ResourceSubmitted {
		return nil, fmt.Errorf("%w: resource %s is %s", models.ErrInvalidTransition, resource.ID, resource.Phase)
	}

	arg := &models.CounterArgument{
		ID:         newID(),
		ResourceID: resource.ID,
		SupplierID: supplier.ID,
		Content:    content,
		CreatedAt:  s.now(),
	}
	if err = s.store.Resources.AddCounterArgument(ctx, arg); err != nil {
		return nil, err
	}
	if err = s.refreshStage(ctx, lot); err != nil {
		return nil, err
	}

	_, err = s.appendMessage(ctx, &models.SystemMessage{
		ID:         messageID("counter-argument", arg.ID),
		TenderID:   lot.TenderID,
		LotID:      lot.ID,
		Content:    fmt.Sprintf("Lote %s: %s apresentou contrarrazões.", lotLabel(lot), supplierName(supplier)),
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
	})
	return arg, err
}

// JudgeResource фиксирует решение по жалобе.
func (s *ResourceService) JudgeResource(ctx context.Context, actor models.Actor, resourceID string, decision models.Decision, justification string) (*models.Resource, error) {
	if strings.TrimSpace(justification) == "" {
		return nil, fmt.Errorf("%w: judgment requires a justification", models.ErrMissingJustification)
	}
	if !decision.Valid() {
		return nil, fmt.Errorf("%w: unknown decision %q", models.ErrInvalidInput, decision)
	}

	resource, err := s.store.Resources.GetResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(lotKey(resource.LotID))
	defer unlock()

	lot, err := s.store.Lots.GetLot(ctx, resource.LotID)
	if err != nil {
		return nil, err
	}
	if err = s.authorize(ctx, actor, ActJudgeResource, lot.TenderID); err != nil {
		return nil, err
	}
	if resource, err = s.store.Resources.GetResource(ctx, resourceID); err != nil {
		return nil, err
	}
	if !resource.Phase.CanTransition(models.ResourceJudged) {
		return nil, fmt.Errorf("%w: resource %s is %s", models.ErrInvalidTransition, resource.ID, resource.Phase)
	}

	resource.Phase = models.ResourceJudged
	resource.Judgment = &models.Judgment{
		Decision:      decision,
		Justification: justification,
		JudgeID:       actor.ID,
		JudgedAt:      s.now(),
	}
	if err = s.store.Resources.UpdateResource(ctx, resource, models.ResourceSubmitted); err != nil {
		return nil, err
	}
	s.resourceEvent(ctx, lot, resource)
	if err = s.refreshStage(ctx, lot); err != nil {
		return nil, err
	}

	name := resource.SupplierID
	if supplier, err := s.store.Lots.GetSupplier(ctx, lot.ID, resource.SupplierID); err == nil {
		name = supplierName(supplier)
	}
	_, err = s.appendMessage(ctx, &models.SystemMessage{
		ID:       messageID("judged", resource.ID),
		TenderID: lot.TenderID,
		LotID:    lot.ID,
		Content: fmt.Sprintf("Lote %s: recurso de %s julgado %s. Justificativa: %s",
			lotLabel(lot), name, decision, justification),
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
	})
	return resource, err
}

// CloseManifestation закрывает окно намерений. Без намерений этап сразу переходит к рассмотрению.
func (s *ResourceService) CloseManifestation(ctx context.Context, actor models.Actor, lotID string) (*models.Lot, error) {
	unlock := s.locks.lock(lotKey(lotID))
	defer unlock()

	lot, err := s.store.Lots.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if err = s.authorize(ctx, actor, ActCloseManifestation, lot.TenderID); err != nil {
		return nil, err
	}
	if err = s.closeManifestationLocked(ctx, actor, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

func (s *ResourceService) closeManifestationLocked(ctx context.Context, actor models.Actor, lot *models.Lot) error {
	if lot.Status != models.LotResourcePhase || lot.ResourceStage != models.StageManifestationOpen {
		return fmt.Errorf("%w: lot %s has no open manifestation window", models.ErrInvalidTransition, lot.ID)
	}
	resources, err := s.store.Resources.ListResources(ctx, lot.ID)
	if err != nil {
		return err
	}

	next := models.StageWaitingResource
	if len(resources) == 0 {
		next = models.StageJudgment
	}
	if err = s.setStage(ctx, lot, next); err != nil {
		return err
	}
	return s.lotMessage(ctx, actor, lot, false, "manifestation-closed",
		"encerrado o prazo de intenção de recurso com %d manifestação(ões).", len(resources))
}

// CloseOverdueManifestations закрывает окна намерений, срок которых истёк.
func (s *ResourceService) CloseOverdueManifestations(ctx context.Context) (int, error) {
	lots, err := s.store.Lots.ListLotsByStatus(ctx, models.LotResourcePhase)
	if err != nil {
		return 0, err
	}
	closed := 0
	now := s.now()
	for _, l := range lots {
		if l.ResourceStage != models.StageManifestationOpen || l.ManifestationDeadline == nil || !now.After(*l.ManifestationDeadline) {
			continue
		}
		if err := s.closeOverdue(ctx, l.ID); err != nil {
			s.logger.Printf("close manifestation of lot %s: %v", l.ID, err)
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *ResourceService) closeOverdue(ctx context.Context, lotID string) error {
	unlock := s.locks.lock(lotKey(lotID))
	defer unlock()
	lot, err := s.store.Lots.GetLot(ctx, lotID)
	if err != nil {
		return err
	}
	return s.closeManifestationLocked(ctx, models.SystemActor, lot)
}

// ExpireResources переводит в not_submitted намерения, по которым истёк срок подачи жалобы.
func (s *ResourceService) ExpireResources(ctx context.Context, lotID string) error {
	unlock := s.locks.lock(lotKey(lotID))
	defer unlock()
	lot, err := s.store.Lots.GetLot(ctx, lotID)
	if err != nil {
		return err
	}
	return s.expireLocked(ctx, lot)
}

// ExpireAll применяет ExpireResources ко всем лотам в фазе обжалования.
func (s *ResourceService) ExpireAll(ctx context.Context) error {
	lots, err := s.store.Lots.ListLotsByStatus(ctx, models.LotResourcePhase)
	if err != nil {
		return err
	}
	for _, l := range lots {
		if err := s.ExpireResources(ctx, l.ID); err != nil {
			s.logger.Printf("expire resources of lot %s: %v", l.ID, err)
		}
	}
	return nil
}

func (s *ResourceService) expireLocked(ctx context.Context, lot *models.Lot) error {
	manifested, err := s.store.Resources.ListResources(ctx, lot.ID, models.ResourceManifested)
	if err != nil {
		return err
	}
	now := s.now()
	expired := false
	for i := range manifested {
		r := &manifested[i]
		if !now.After(r.SubmissionDeadline) {
			continue
		}
		r.Phase = models.ResourceNotSubmitted
		if err = s.store.Resources.UpdateResource(ctx, r, models.ResourceManifested); err != nil {
			return err
		}
		expired = true
		s.resourceEvent(ctx, lot, r)
		_, err = s.appendMessage(ctx, &models.SystemMessage{
			ID:       messageID("not-submitted", r.ID),
			TenderID: lot.TenderID,
			LotID:    lot.ID,
			Content: fmt.Sprintf("Lote %s: %s não apresentou as razões de recurso até %s.",
				lotLabel(lot), r.SupplierID, formatDeadline(r.SubmissionDeadline)),
			AuthorID:   models.SystemActor.ID,
			AuthorName: models.SystemActor.Name,
		})
		if err != nil {
			return err
		}
	}
	if !expired {
		return nil
	}
	return s.refreshStage(ctx, lot)
}

// openResources возвращает жалобы лота, которые ещё блокируют адъюдикацию.
func (s *ResourceService) openResources(ctx context.Context, lotID string) ([]models.Resource, error) {
	return s.store.Resources.ListResources(ctx, lotID, models.ResourceManifested, models.ResourceSubmitted)
}

// refreshStage пересчитывает этап обжалования лота по фазам его жалоб.
// Этап двигается только вперёд и не покидает окно намерений сам по себе.
func (s *ResourceService) refreshStage(ctx context.Context, lot *models.Lot) error {
	if lot.Status != models.LotResourcePhase || lot.ResourceStage == models.StageManifestationOpen || lot.ResourceStage == models.StageNotStarted {
		return nil
	}
	resources, err := s.store.Resources.ListResources(ctx, lot.ID)
	if err != nil {
		return err
	}

	next := models.StageJudgment
	for _, r := range resources {
		switch {
		case r.Phase == models.ResourceManifested && next == models.StageJudgment:
			next = models.StageWaitingResource
		case r.Phase == models.ResourceSubmitted && len(r.CounterArguments) > 0:
			next = models.StageCounterArgument
		case r.Phase == models.ResourceSubmitted && next != models.StageCounterArgument:
			next = models.StageResourceSubmitted
		}
	}
	if next == lot.ResourceStage || !lot.ResourceStage.CanTransition(next) {
		return nil
	}
	return s.setStage(ctx, lot, next)
}

func (s *ResourceService) setStage(ctx context.Context, lot *models.Lot, stage models.ResourceStage) error {
	prev, prevUpdated := lot.ResourceStage, lot.UpdatedAt
	lot.ResourceStage = stage
	lot.UpdatedAt = s.now()
	if err := s.store.Lots.UpdateLot(ctx, lot, lot.Status); err != nil {
		lot.ResourceStage, lot.UpdatedAt = prev, prevUpdated
		return err
	}
	s.lotEvent(ctx, lot)
	return nil
}

func (s *ResourceService) resourceEvent(ctx context.Context, lot *models.Lot, r *models.Resource) {
	s.publish(ctx, feed.Event{
		Kind:     feed.KindResource,
		TenderID: lot.TenderID,
		LotID:    lot.ID,
		EntityID: r.ID,
		Status:   string(r.Phase),
	})
}
