package services

import (
	"context"
	"testing"
	"time"

	"github.com/senyabanana/licitacao-service/internal/models"
)

// resourceLot доводит лот до открытого окна намерений на 24 часа.
func (f *fixture) resourceLot() {
	f.t.Helper()
	f.winnerLot()
	if _, err := f.svc.Workflow.OpenResourcePhase(f.ctx, auctioneer, "lot-001", 24); err != nil {
		f.t.Fatalf("OpenResourcePhase: %v", err)
	}
}

func TestResourceFlowBlocksAdjudication(t *testing.T) {
	f := newFixture(t)
	f.resourceLot()
	if f.lot().ResourceStage != models.StageManifestationOpen || f.tender().Status != models.TenderResourcePhase {
		t.Fatalf("stage = %s, tender = %s", f.lot().ResourceStage, f.tender().Status)
	}

	resource, err := f.svc.Resources.AddManifestation(f.ctx, supplierActor("s2"), "lot-001", "s2")
	if err != nil {
		t.Fatalf("AddManifestation: %v", err)
	}
	if resource.Phase != models.ResourceManifested || !resource.SubmissionDeadline.Equal(f.clock.Now().AddDate(0, 0, 3)) {
		t.Fatalf("resource = %+v", resource)
	}

	_, err = f.svc.Workflow.Adjudicate(f.ctx, auctioneer, "lot-001", "s1")
	mustErr(t, err, models.ErrOpenResourcesExist)

	if _, err = f.svc.Resources.CloseManifestation(f.ctx, auctioneer, "lot-001"); err != nil {
		t.Fatalf("CloseManifestation: %v", err)
	}
	if f.lot().ResourceStage != models.StageWaitingResource {
		t.Fatalf("stage = %s, want waiting_resource", f.lot().ResourceStage)
	}

	_, err = f.svc.Resources.SubmitResource(f.ctx, supplierActor("s2"), "lot-001", "s2", "")
	mustErr(t, err, models.ErrMissingJustification)

	if resource, err = f.svc.Resources.SubmitResource(f.ctx, supplierActor("s2"), "lot-001", "s2", "preço inexequível"); err != nil {
		t.Fatalf("SubmitResource: %v", err)
	}
	if resource.Phase != models.ResourceSubmitted || resource.CounterArgumentDeadline == nil {
		t.Fatalf("resource = %+v", resource)
	}
	if f.lot().ResourceStage != models.StageResourceSubmitted {
		t.Fatalf("stage = %s, want resource_submitted", f.lot().ResourceStage)
	}

	_, err = f.svc.Resources.SubmitCounterArgument(f.ctx, supplierActor("s2"), resource.ID, "s2", "réplica")
	mustErr(t, err, models.ErrInvalidInput)

	if _, err = f.svc.Resources.SubmitCounterArgument(f.ctx, supplierActor("s1"), resource.ID, "s1", "preço compatível com o mercado"); err != nil {
		t.Fatalf("SubmitCounterArgument: %v", err)
	}
	if f.lot().ResourceStage != models.StageCounterArgument {
		t.Fatalf("stage = %s, want counter_argument", f.lot().ResourceStage)
	}
	stored, _ := f.store.Resources.GetResource(f.ctx, resource.ID)
	if stored.Phase != models.ResourceSubmitted || len(stored.CounterArguments) != 1 {
		t.Fatalf("resource = %s with %d counter-argument(s)", stored.Phase, len(stored.CounterArguments))
	}

	_, err = f.svc.Workflow.Adjudicate(f.ctx, auctioneer, "lot-001", "s1")
	mustErr(t, err, models.ErrOpenResourcesExist)

	_, err = f.svc.Resources.JudgeResource(f.ctx, auctioneer, resource.ID, "talvez", "sem motivo")
	mustErr(t, err, models.ErrInvalidInput)
	_, err = f.svc.Resources.JudgeResource(f.ctx, auctioneer, resource.ID, models.Improcedente, "")
	mustErr(t, err, models.ErrMissingJustification)
	_, err = f.svc.Resources.JudgeResource(f.ctx, supplierActor("s1"), resource.ID, models.Improcedente, "eu decido")
	mustErr(t, err, models.ErrUnauthorized)

	judged, err := f.svc.Resources.JudgeResource(f.ctx, auctioneer, resource.ID, models.Improcedente, "preço demonstrado")
	if err != nil {
		t.Fatalf("JudgeResource: %v", err)
	}
	if judged.Phase != models.ResourceJudged || judged.Judgment == nil || judged.Judgment.JudgeID != auctioneer.ID {
		t.Fatalf("resource = %+v", judged)
	}
	if f.lot().ResourceStage != models.StageJudgment {
		t.Fatalf("stage = %s, want judgment", f.lot().ResourceStage)
	}
	_, err = f.svc.Resources.JudgeResource(f.ctx, auctioneer, resource.ID, models.Procedente, "revisão")
	mustErr(t, err, models.ErrInvalidTransition)

	if _, err = f.svc.Workflow.Adjudicate(f.ctx, auctioneer, "lot-001", "s1"); err != nil {
		t.Fatalf("Adjudicate: %v", err)
	}
	if _, err = f.svc.Workflow.Homologate(f.ctx, authority, "lot-001", "regular"); err != nil {
		t.Fatalf("Homologate: %v", err)
	}
	if f.lot().Status != models.LotHomologated || f.tender().Status != models.TenderHomologation {
		t.Fatalf("lot = %s, tender = %s", f.lot().Status, f.tender().Status)
	}
}

func TestUnsubmittedResourceExpires(t *testing.T) {
	f := newFixture(t)
	f.resourceLot()
	resource, err := f.svc.Resources.AddManifestation(f.ctx, supplierActor("s2"), "lot-001", "s2")
	if err != nil {
		t.Fatalf("AddManifestation: %v", err)
	}
	if _, err = f.svc.Resources.CloseManifestation(f.ctx, auctioneer, "lot-001"); err != nil {
		t.Fatalf("CloseManifestation: %v", err)
	}

	f.clock.Advance(4 * 24 * time.Hour)
	if _, err = f.svc.Workflow.Adjudicate(f.ctx, auctioneer, "lot-001", "s1"); err != nil {
		t.Fatalf("Adjudicate: %v", err)
	}

	stored, _ := f.store.Resources.GetResource(f.ctx, resource.ID)
	if stored.Phase != models.ResourceNotSubmitted {
		t.Fatalf("resource = %s, want not_submitted", stored.Phase)
	}
	found := false
	for _, m := range f.messages() {
		if m.LotID == "lot-001" && m.AuthorID == models.SystemActor.ID {
			mustContain(t, m.Content, "não apresentou")
			found = true
		}
	}
	if !found {
		t.Fatalf("no expiry message")
	}
}

func TestLateSubmissionExpiresResource(t *testing.T) {
	f := newFixture(t)
	f.resourceLot()
	resource, err := f.svc.Resources.AddManifestation(f.ctx, supplierActor("s2"), "lot-001", "s2")
	if err != nil {
		t.Fatalf("AddManifestation: %v", err)
	}
	if _, err = f.svc.Resources.CloseManifestation(f.ctx, auctioneer, "lot-001"); err != nil {
		t.Fatalf("CloseManifestation: %v", err)
	}
	f.clock.Advance(3*24*time.Hour + time.Minute)

	_, err = f.svc.Resources.SubmitResource(f.ctx, supplierActor("s2"), "lot-001", "s2", "razões")
	mustErr(t, err, models.ErrInvalidTransition)

	stored, _ := f.store.Resources.GetResource(f.ctx, resource.ID)
	if stored.Phase != models.ResourceNotSubmitted {
		t.Fatalf("resource = %s, want not_submitted", stored.Phase)
	}
	if f.lot().ResourceStage != models.StageJudgment {
		t.Fatalf("stage = %s, want judgment", f.lot().ResourceStage)
	}
}

func TestManifestationWindow(t *testing.T) {
	f := newFixture(t)
	f.winnerLot()

	_, err := f.svc.Resources.AddManifestation(f.ctx, supplierActor("s2"), "lot-001", "s2")
	mustErr(t, err, models.ErrInvalidTransition)

	_, err = f.svc.Workflow.OpenResourcePhase(f.ctx, auctioneer, "lot-001", 0)
	mustErr(t, err, models.ErrInvalidInput)

	if _, err = f.svc.Workflow.OpenResourcePhase(f.ctx, auctioneer, "lot-001", 24); err != nil {
		t.Fatalf("OpenResourcePhase: %v", err)
	}
	_, err = f.svc.Resources.AddManifestation(f.ctx, supplierActor("s3"), "lot-001", "s2")
	mustErr(t, err, models.ErrUnauthorized)

	if _, err = f.svc.Resources.AddManifestation(f.ctx, supplierActor("s3"), "lot-001", "s3"); err != nil {
		t.Fatalf("AddManifestation: %v", err)
	}
	_, err = f.svc.Resources.AddManifestation(f.ctx, supplierActor("s3"), "lot-001", "s3")
	mustErr(t, err, models.ErrDuplicate)

	f.clock.Advance(25 * time.Hour)
	_, err = f.svc.Resources.AddManifestation(f.ctx, supplierActor("s2"), "lot-001", "s2")
	mustErr(t, err, models.ErrInvalidTransition)
}

func TestCounterArgumentNeedsSubmittedResource(t *testing.T) {
	f := newFixture(t)
	f.resourceLot()
	resource, err := f.svc.Resources.AddManifestation(f.ctx, supplierActor("s2"), "lot-001", "s2")
	if err != nil {
		t.Fatalf("AddManifestation: %v", err)
	}

	_, err = f.svc.Resources.SubmitCounterArgument(f.ctx, supplierActor("s1"), resource.ID, "s1", "")
	mustErr(t, err, models.ErrMissingJustification)

	_, err = f.svc.Resources.SubmitCounterArgument(f.ctx, supplierActor("s1"), resource.ID, "s1", "contrarrazões")
	mustErr(t, err, models.ErrInvalidTransition)

	_, err = f.svc.Resources.JudgeResource(f.ctx, auctioneer, resource.ID, models.Procedente, "antes da hora")
	mustErr(t, err, models.ErrInvalidTransition)
}

func TestSweepClosesOverdueWindows(t *testing.T) {
	f := newFixture(t)
	f.resourceLot()

	if n, err := f.svc.Resources.CloseOverdueManifestations(f.ctx); err != nil || n != 0 {
		t.Fatalf("CloseOverdueManifestations = %d, %v; want 0", n, err)
	}
	f.clock.Advance(25 * time.Hour)

	NewSweeper(f.svc, time.Minute).Sweep(context.Background())

	lot := f.lot()
	if lot.ResourceStage != models.StageJudgment {
		t.Fatalf("stage = %s, want judgment", lot.ResourceStage)
	}
	if _, err := f.svc.Workflow.Adjudicate(f.ctx, auctioneer, "lot-001", "s1"); err != nil {
		t.Fatalf("Adjudicate: %v", err)
	}
}
