package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/licitacao-service/internal/auth"
	"github.com/senyabanana/licitacao-service/internal/feed"
	"github.com/senyabanana/licitacao-service/internal/models"
	"github.com/senyabanana/licitacao-service/internal/policy"
	"github.com/senyabanana/licitacao-service/internal/repository"
)

type fakeTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeScheduler запоминает таймеры; тест сам решает, когда окно истекло.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(_ time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{f: f}
	s.timers = append(s.timers, t)
	return t
}

// Fire срабатывает таймер с номером i, если он не остановлен.
func (s *fakeScheduler) Fire(i int) {
	s.mu.Lock()
	t := s.timers[i]
	live := !t.stopped && !t.fired
	t.fired = true
	s.mu.Unlock()
	if live {
		t.f()
	}
}

func (s *fakeScheduler) FireAll() {
	s.mu.Lock()
	n := len(s.timers)
	s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.Fire(i)
	}
}

func (s *fakeScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	auctioneer = assigned("pregoeiro", "Pregoeiro", "t-1", models.RoleAuctioneer)
	authority  = assigned("autoridade", "Autoridade", "t-1", models.RoleAuthority)
	agency     = assigned("orgao", "Órgão", "t-1", models.RoleAgency)
	citizen    = models.Actor{ID: "cidadao", Roles: []models.Role{models.RoleCitizen}}
)

func assigned(id, name, tenderID string, roles ...models.Role) models.Actor {
	return models.Actor{ID: id, Name: name, Assignments: map[string][]models.Role{tenderID: roles}}
}

func supplierActor(id string) models.Actor {
	return models.Actor{ID: "acc-" + id, Name: "Fornecedor " + id, Roles: []models.Role{models.RoleSupplier}}
}

// flakyBids отвечает сбоем хранилища на смену статуса ставки, пока fail = true.
type flakyBids struct {
	repository.BidRepository
	mu   sync.Mutex
	fail bool
}

func (b *flakyBids) SetFail(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = fail
}

func (b *flakyBids) SetBidStatus(ctx context.Context, bidId string, from, to models.BidStatus, at time.Time) (bool, error) {
	b.mu.Lock()
	fail := b.fail
	b.mu.Unlock()
	if fail {
		return false, fmt.Errorf("%w: update bid status: connection reset", models.ErrStoreFailure)
	}
	return b.BidRepository.SetBidStatus(ctx, bidId, from, to, at)
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	mem    *repository.MemoryStore
	store  repository.Store
	clock  *fakeClock
	sched  *fakeScheduler
	events *feed.Recorder
	svc    *Services
}

func newPolicy() policy.Policy {
	p := policy.Default()
	p.SettlementBackoff = policy.Duration(time.Millisecond)
	return p
}

// newFixture создаёт опубликованную закупку t-1 с одним лотом lot-001 и тремя участниками.
func newFixture(t *testing.T) *fixture {
	return newFixtureWithPolicy(t, newPolicy())
}

func newFixtureWithPolicy(t *testing.T, pol policy.Policy) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := repository.NewMemoryStore()
	clock := &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}

	if err := mem.CreateTender(ctx, &models.Tender{
		ID: "t-1", Number: "90001/2026", Title: "Material de escritório", AgencyID: "orgao",
		Status: models.TenderPublished, DisputeMode: models.DisputeOpen, CreatedAt: clock.Now(), UpdatedAt: clock.Now(),
	}); err != nil {
		t.Fatalf("CreateTender: %v", err)
	}
	if err := mem.CreateLot(ctx, &models.Lot{
		ID: "lot-001", TenderID: "t-1", Number: "001", Description: "Papel A4", EstimatedValue: 3000,
		Criterion: models.LowestPrice, Status: models.LotWaiting, ResourceStage: models.StageNotStarted,
	}); err != nil {
		t.Fatalf("CreateLot: %v", err)
	}
	for _, id := range []string{"s1", "s2", "s3"} {
		if err := mem.CreateSupplier(ctx, &models.Supplier{
			ID: id, LotID: "lot-001", AccountID: "acc-" + id, DisplayName: "Fornecedor " + id, Status: models.SupplierClassified,
		}); err != nil {
			t.Fatalf("CreateSupplier: %v", err)
		}
	}

	f := &fixture{t: t, ctx: ctx, mem: mem, store: mem.Store(), clock: clock, events: &feed.Recorder{}}
	f.svc, f.sched = f.instance(pol)
	return f
}

// instance создаёт ещё один экземпляр сервисов поверх того же хранилища.
func (f *fixture) instance(pol policy.Policy) (*Services, *fakeScheduler) {
	return f.instanceOver(f.store, pol)
}

// instanceOver создаёт экземпляр сервисов поверх подменённого набора репозиториев.
func (f *fixture) instanceOver(store repository.Store, pol policy.Policy) (*Services, *fakeScheduler) {
	sched := &fakeScheduler{}
	svc := NewServices(store, f.events, auth.ClaimsChecker{}, pol, log.New(io.Discard, "", 0),
		WithClock(f.clock.Now), WithScheduler(sched))
	return svc, sched
}

// openLot проводит лот до открытого диспута.
func (f *fixture) openLot() {
	f.t.Helper()
	if _, err := f.svc.Workflow.OpenProposals(f.ctx, auctioneer, "t-1"); err != nil {
		f.t.Fatalf("OpenProposals: %v", err)
	}
	if _, err := f.svc.Workflow.StartDispute(f.ctx, auctioneer, "lot-001"); err != nil {
		f.t.Fatalf("StartDispute: %v", err)
	}
}

// settledBid подаёт ставку и сразу завершает её окно подтверждения.
func (f *fixture) settledBid(supplierID, value string) *models.Bid {
	f.t.Helper()
	bid, err := f.svc.Dispute.SubmitBid(f.ctx, supplierActor(supplierID), "lot-001", supplierID, value)
	if err != nil {
		f.t.Fatalf("SubmitBid(%s, %s): %v", supplierID, value, err)
	}
	f.sched.Fire(f.sched.Len() - 1)
	f.clock.Advance(time.Second)
	return bid
}

// finishedLot проводит лот через диспут, где s1 даёт 2890, а s2 - 2950.
func (f *fixture) finishedLot() {
	f.t.Helper()
	f.openLot()
	f.settledBid("s1", "2890.00")
	f.settledBid("s2", "2950.00")
	if _, err := f.svc.Workflow.EndDispute(f.ctx, auctioneer, "lot-001"); err != nil {
		f.t.Fatalf("EndDispute: %v", err)
	}
}

// winnerLot доводит лот до объявления победителя s1.
func (f *fixture) winnerLot() {
	f.t.Helper()
	f.finishedLot()
	if _, err := f.svc.Workflow.DeclareWinner(f.ctx, auctioneer, "lot-001", "s1", "melhor proposta"); err != nil {
		f.t.Fatalf("DeclareWinner: %v", err)
	}
}

func (f *fixture) lot() *models.Lot {
	f.t.Helper()
	lot, err := f.store.Lots.GetLot(f.ctx, "lot-001")
	if err != nil {
		f.t.Fatalf("GetLot: %v", err)
	}
	return lot
}

func (f *fixture) tender() *models.Tender {
	f.t.Helper()
	tender, err := f.store.Tenders.GetTender(f.ctx, "t-1")
	if err != nil {
		f.t.Fatalf("GetTender: %v", err)
	}
	return tender
}

func (f *fixture) supplier(id string) *models.Supplier {
	f.t.Helper()
	s, err := f.store.Lots.GetSupplier(f.ctx, "lot-001", id)
	if err != nil {
		f.t.Fatalf("GetSupplier: %v", err)
	}
	return s
}

func (f *fixture) bids(statuses ...models.BidStatus) []models.Bid {
	f.t.Helper()
	bids, err := f.store.Bids.ListBids(f.ctx, "lot-001", statuses...)
	if err != nil {
		f.t.Fatalf("ListBids: %v", err)
	}
	return bids
}

func (f *fixture) messages() []models.SystemMessage {
	f.t.Helper()
	msgs, err := f.store.Messages.ListMessages(f.ctx, "t-1", true, 0, 0)
	if err != nil {
		f.t.Fatalf("ListMessages: %v", err)
	}
	return msgs
}

func (f *fixture) messagesOfType(typ models.MessageType) []models.SystemMessage {
	var out []models.SystemMessage
	for _, m := range f.messages() {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fixture) lastMessage() models.SystemMessage {
	f.t.Helper()
	msgs := f.messages()
	if len(msgs) == 0 {
		f.t.Fatalf("no messages")
	}
	return msgs[len(msgs)-1]
}

func mustErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func mustContain(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("%q does not contain %q", s, sub)
	}
}
