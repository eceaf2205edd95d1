package services

import (
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/licitacao-service/internal/feed"
	"github.com/senyabanana/licitacao-service/internal/models"
)

func TestFirstBidBecomesBest(t *testing.T) {
	f := newFixture(t)
	f.openLot()

	bid, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2890.00")
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	if bid.Status != models.BidPending {
		t.Fatalf("status = %s, want pending", bid.Status)
	}
	quote, err := f.svc.Dispute.BestBid(f.ctx, "lot-001")
	if err != nil {
		t.Fatalf("BestBid: %v", err)
	}
	if quote.Best != nil || quote.Suggested != nil {
		t.Fatalf("pending bid counted as best: %+v", quote)
	}

	f.sched.FireAll()

	quote, err = f.svc.Dispute.BestBid(f.ctx, "lot-001")
	if err != nil {
		t.Fatalf("BestBid: %v", err)
	}
	if quote.Best == nil || quote.Best.Value != 2890 || quote.Best.SupplierID != "s1" {
		t.Fatalf("best = %+v, want 2890.00 from s1", quote.Best)
	}
	if quote.Suggested == nil || *quote.Suggested != 2889.99 {
		t.Fatalf("suggested = %v, want 2889.99", quote.Suggested)
	}
	if v := f.supplier("s1").Value; v == nil || *v != 2890 {
		t.Fatalf("supplier value = %v, want 2890", v)
	}
	bidMsgs := f.messagesOfType(models.MessageBid)
	if len(bidMsgs) != 1 {
		t.Fatalf("bid messages = %d, want 1", len(bidMsgs))
	}
	mustContain(t, bidMsgs[0].Content, "001")
	mustContain(t, bidMsgs[0].Content, "2890.00")
}

func TestConcurrentCountdownsSettleIndependently(t *testing.T) {
	f := newFixture(t)
	f.openLot()

	if _, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2890.00"); err != nil {
		t.Fatalf("SubmitBid s1: %v", err)
	}
	f.clock.Advance(3 * time.Second)
	if _, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s2"), "lot-001", "s2", "2850.00"); err != nil {
		t.Fatalf("SubmitBid s2: %v", err)
	}

	// s2 подтверждается первой, затем s1.
	f.sched.Fire(1)
	f.sched.Fire(0)

	active := f.bids(models.BidActive)
	if len(active) != 2 {
		t.Fatalf("active bids = %d, want 2", len(active))
	}
	quote, _ := f.svc.Dispute.BestBid(f.ctx, "lot-001")
	if quote.Best == nil || quote.Best.Value != 2850 || quote.Best.SupplierID != "s2" {
		t.Fatalf("best = %+v, want 2850.00 from s2", quote.Best)
	}
}

func TestParallelSubmissions(t *testing.T) {
	f := newFixture(t)
	f.openLot()

	values := map[string]string{"s1": "2900", "s2": "2800", "s3": "2850"}
	var wg sync.WaitGroup
	errs := make(chan error, len(values))
	for id, value := range values {
		wg.Add(1)
		go func(id, value string) {
			defer wg.Done()
			_, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor(id), "lot-001", id, value)
			errs <- err
		}(id, value)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("SubmitBid: %v", err)
		}
	}

	f.sched.FireAll()

	if n := len(f.bids(models.BidActive)); n != 3 {
		t.Fatalf("active bids = %d, want 3", n)
	}
	quote, _ := f.svc.Dispute.BestBid(f.ctx, "lot-001")
	if quote.Best == nil || quote.Best.SupplierID != "s2" {
		t.Fatalf("best = %+v, want s2", quote.Best)
	}
	if n := len(f.messagesOfType(models.MessageBid)); n != 3 {
		t.Fatalf("bid messages = %d, want 3", n)
	}
}

func TestCancelBeforeWindowElapses(t *testing.T) {
	f := newFixture(t)
	f.openLot()

	bid, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2890")
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	f.clock.Advance(9 * time.Second)

	canceled, err := f.svc.Dispute.CancelBid(f.ctx, supplierActor("s1"), "lot-001", "s1")
	if err != nil || !canceled {
		t.Fatalf("CancelBid = %v, %v; want true", canceled, err)
	}
	f.sched.FireAll()

	got, _ := f.store.Bids.GetBid(f.ctx, bid.ID)
	if got.Status != models.BidCanceled {
		t.Fatalf("status = %s, want canceled", got.Status)
	}
	if n := len(f.bids(models.BidActive)); n != 0 {
		t.Fatalf("active bids = %d, want 0", n)
	}
	if n := len(f.messagesOfType(models.MessageBid)); n != 0 {
		t.Fatalf("bid messages = %d, want 0", n)
	}

	canceled, err = f.svc.Dispute.CancelBid(f.ctx, supplierActor("s1"), "lot-001", "s1")
	if err != nil || canceled {
		t.Fatalf("second CancelBid = %v, %v; want false, nil", canceled, err)
	}
}

func TestFailedCancelKeepsCountdown(t *testing.T) {
	f := newFixture(t)
	f.openLot()
	bids := &flakyBids{BidRepository: f.store.Bids}
	store := f.store
	store.Bids = bids
	svc, sched := f.instanceOver(store, newPolicy())

	bid, err := svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2890")
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	f.clock.Advance(4 * time.Second)

	bids.SetFail(true)
	canceled, err := svc.Dispute.CancelBid(f.ctx, supplierActor("s1"), "lot-001", "s1")
	mustErr(t, err, models.ErrStoreFailure)
	if canceled {
		t.Fatalf("CancelBid reported success on a failed write")
	}
	if sched.Len() != 2 {
		t.Fatalf("timers = %d, want the countdown re-armed", sched.Len())
	}

	bids.SetFail(false)
	f.clock.Advance(2 * time.Second)
	canceled, err = svc.Dispute.CancelBid(f.ctx, supplierActor("s1"), "lot-001", "s1")
	if err != nil || !canceled {
		t.Fatalf("retried CancelBid = %v, %v; want true", canceled, err)
	}
	sched.FireAll()

	got, _ := f.store.Bids.GetBid(f.ctx, bid.ID)
	if got.Status != models.BidCanceled {
		t.Fatalf("status = %s, want canceled", got.Status)
	}
	if n := len(f.bids(models.BidActive)); n != 0 {
		t.Fatalf("active bids = %d, want 0", n)
	}
}

func TestFailedCancelStillSettlesWhenWindowElapses(t *testing.T) {
	f := newFixture(t)
	f.openLot()
	bids := &flakyBids{BidRepository: f.store.Bids, fail: true}
	store := f.store
	store.Bids = bids
	svc, sched := f.instanceOver(store, newPolicy())

	bid, err := svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2890")
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	if _, err = svc.Dispute.CancelBid(f.ctx, supplierActor("s1"), "lot-001", "s1"); err == nil {
		t.Fatalf("CancelBid succeeded on a failed write")
	}

	bids.SetFail(false)
	f.clock.Advance(11 * time.Second)
	// Пока отсчёт жив, проход по просроченным ставкам её не трогает.
	if n, err := svc.Dispute.SettleOverdue(f.ctx); err != nil || n != 0 {
		t.Fatalf("SettleOverdue = %d, %v; want 0", n, err)
	}
	sched.FireAll()

	got, _ := f.store.Bids.GetBid(f.ctx, bid.ID)
	if got.Status != models.BidActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
}

func TestCancelAfterSettlementIsNoop(t *testing.T) {
	f := newFixture(t)
	f.openLot()
	bid := f.settledBid("s1", "2890")

	canceled, err := f.svc.Dispute.CancelBid(f.ctx, supplierActor("s1"), "lot-001", "s1")
	if err != nil || canceled {
		t.Fatalf("CancelBid = %v, %v; want false, nil", canceled, err)
	}
	got, _ := f.store.Bids.GetBid(f.ctx, bid.ID)
	if got.Status != models.BidActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
}

func TestCancelCountdownRunningOnAnotherInstance(t *testing.T) {
	f := newFixture(t)
	f.openLot()
	other, _ := f.instance(newPolicy())

	bid, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2890")
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	canceled, err := other.Dispute.CancelBid(f.ctx, supplierActor("s1"), "lot-001", "s1")
	if err != nil || !canceled {
		t.Fatalf("CancelBid on other instance = %v, %v; want true", canceled, err)
	}

	f.svc.Dispute.ApplyRemote(f.ctx, feed.Event{Kind: feed.KindBid, EntityID: bid.ID, Status: string(models.BidCanceled)})
	if !f.sched.timers[0].stopped {
		t.Fatalf("remote cancel did not stop the local countdown")
	}

	// Даже если таймер успел сработать, отменённая ставка не подтверждается.
	if err := f.svc.Dispute.Effectuate(f.ctx, bid.ID); err != nil {
		t.Fatalf("Effectuate: %v", err)
	}
	if n := len(f.bids(models.BidActive)); n != 0 {
		t.Fatalf("active bids = %d, want 0", n)
	}
}

func TestEffectuateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.openLot()
	bid, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2890")
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := f.svc.Dispute.Effectuate(f.ctx, bid.ID); err != nil {
			t.Fatalf("Effectuate #%d: %v", i+1, err)
		}
	}
	f.sched.FireAll()

	if n := len(f.bids(models.BidActive)); n != 1 {
		t.Fatalf("active bids = %d, want 1", n)
	}
	if n := len(f.messagesOfType(models.MessageBid)); n != 1 {
		t.Fatalf("bid messages = %d, want 1", n)
	}
	if n := f.events.Count(feed.KindBid, string(models.BidActive)); n != 1 {
		t.Fatalf("bid.active events = %d, want 1", n)
	}
}

func TestNewerBidSupersedesOwnActiveBid(t *testing.T) {
	f := newFixture(t)
	f.openLot()
	first := f.settledBid("s1", "2890")
	second := f.settledBid("s1", "2800")
	f.settledBid("s2", "2850")

	if got, _ := f.store.Bids.GetBid(f.ctx, first.ID); got.Status != models.BidSuperseded {
		t.Fatalf("first bid = %s, want superseded", got.Status)
	}
	if got, _ := f.store.Bids.GetBid(f.ctx, second.ID); got.Status != models.BidActive {
		t.Fatalf("second bid = %s, want active", got.Status)
	}
	if v := f.supplier("s1").Value; v == nil || *v != 2800 {
		t.Fatalf("supplier value = %v, want 2800", v)
	}
	if n := len(f.bids(models.BidActive)); n != 2 {
		t.Fatalf("active bids = %d, want 2", n)
	}
}

func TestRevalidationCancelsNonImprovingBid(t *testing.T) {
	pol := newPolicy()
	pol.RevalidateOnSettle = true
	f := newFixtureWithPolicy(t, pol)
	f.openLot()

	f.settledBid("s1", "2800")
	worse := f.settledBid("s1", "2900")

	if got, _ := f.store.Bids.GetBid(f.ctx, worse.ID); got.Status != models.BidCanceled {
		t.Fatalf("non-improving bid = %s, want canceled", got.Status)
	}
	if v := f.supplier("s1").Value; v == nil || *v != 2800 {
		t.Fatalf("supplier value = %v, want 2800", v)
	}
}

func TestWithoutRevalidationStaleBidStillSettles(t *testing.T) {
	f := newFixture(t)
	f.openLot()
	f.settledBid("s1", "2800")
	worse := f.settledBid("s1", "2900")

	if got, _ := f.store.Bids.GetBid(f.ctx, worse.ID); got.Status != models.BidActive {
		t.Fatalf("bid = %s, want active", got.Status)
	}
}

func TestEndDisputeCancelsInFlightCountdowns(t *testing.T) {
	f := newFixture(t)
	f.openLot()
	f.settledBid("s2", "2850")

	pending, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2800")
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	if _, err = f.svc.Workflow.EndDispute(f.ctx, auctioneer, "lot-001"); err != nil {
		t.Fatalf("EndDispute: %v", err)
	}
	f.sched.FireAll()

	if got, _ := f.store.Bids.GetBid(f.ctx, pending.ID); got.Status != models.BidCanceled {
		t.Fatalf("in-flight bid = %s, want canceled", got.Status)
	}
	if v := f.supplier("s2").Value; v == nil || *v != 2850 {
		t.Fatalf("s2 ranked value = %v, want 2850", v)
	}
	if v := f.supplier("s1").Value; v != nil {
		t.Fatalf("s1 ranked value = %v, want none", *v)
	}
	if f.lot().Status != models.LotFinished {
		t.Fatalf("lot = %s, want finished", f.lot().Status)
	}
}

func TestPausedLotRejectsBidsButSettlesInFlight(t *testing.T) {
	f := newFixture(t)
	f.openLot()
	if _, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2800"); err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	if _, err := f.svc.Workflow.PauseDispute(f.ctx, auctioneer, "lot-001"); err != nil {
		t.Fatalf("PauseDispute: %v", err)
	}

	_, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s2"), "lot-001", "s2", "2700")
	mustErr(t, err, models.ErrInvalidTransition)

	f.sched.FireAll()
	if n := len(f.bids(models.BidActive)); n != 1 {
		t.Fatalf("active bids = %d, want 1", n)
	}

	if _, err := f.svc.Workflow.ResumeDispute(f.ctx, auctioneer, "lot-001"); err != nil {
		t.Fatalf("ResumeDispute: %v", err)
	}
	if _, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s2"), "lot-001", "s2", "2700"); err != nil {
		t.Fatalf("SubmitBid after resume: %v", err)
	}
}

func TestSubmitBidValidation(t *testing.T) {
	f := newFixture(t)
	f.openLot()

	_, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "dois mil")
	mustErr(t, err, models.ErrInvalidBidValue)

	_, err = f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s2"), "lot-001", "s1", "2800")
	mustErr(t, err, models.ErrUnauthorized)

	_, err = f.svc.Dispute.SubmitBid(f.ctx, citizen, "lot-001", "s1", "2800")
	mustErr(t, err, models.ErrUnauthorized)

	_, err = f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-404", "s1", "2800")
	mustErr(t, err, models.ErrLotNotFound)

	_, err = f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s9"), "lot-001", "s9", "2800")
	mustErr(t, err, models.ErrSupplierNotFound)

	if n := len(f.bids()); n != 0 {
		t.Fatalf("rejected submissions left %d bid(s)", n)
	}

	if _, err = f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2800"); err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	_, err = f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2700")
	mustErr(t, err, models.ErrInvalidTransition)
}

func TestSubmitBidRequiresOpenLot(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2800")
	mustErr(t, err, models.ErrInvalidTransition)
}

func TestSettleOverdueAfterRestart(t *testing.T) {
	f := newFixture(t)
	f.openLot()
	bid, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2890")
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	f.clock.Advance(11 * time.Second)

	// Живой отсчёт на этом экземпляре не трогаем.
	if n, err := f.svc.Dispute.SettleOverdue(f.ctx); err != nil || n != 0 {
		t.Fatalf("SettleOverdue with a live countdown = %d, %v; want 0", n, err)
	}

	restarted, _ := f.instance(newPolicy())
	n, err := restarted.Dispute.SettleOverdue(f.ctx)
	if err != nil || n != 1 {
		t.Fatalf("SettleOverdue = %d, %v; want 1", n, err)
	}
	if got, _ := f.store.Bids.GetBid(f.ctx, bid.ID); got.Status != models.BidActive {
		t.Fatalf("status = %s, want active", got.Status)
	}

	f.sched.FireAll()
	if n := len(f.messagesOfType(models.MessageBid)); n != 1 {
		t.Fatalf("bid messages = %d, want 1", n)
	}
}

func TestSettleOverdueSkipsFreshBids(t *testing.T) {
	f := newFixture(t)
	f.openLot()
	if _, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor("s1"), "lot-001", "s1", "2890"); err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	f.clock.Advance(5 * time.Second)

	restarted, _ := f.instance(newPolicy())
	if n, err := restarted.Dispute.SettleOverdue(f.ctx); err != nil || n != 0 {
		t.Fatalf("SettleOverdue = %d, %v; want 0", n, err)
	}
}
