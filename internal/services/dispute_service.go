package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/senyabanana/licitacao-service/internal/feed"
	"github.com/senyabanana/licitacao-service/internal/models"
)

// countdown - окно подтверждения одной ставки.
type countdown struct {
	bidID    string
	lotID    string
	deadline time.Time
	timer    Timer
	canceled bool
}

// DisputeService - Lot Dispute Engine: приём ставок, окно подтверждения,
// подтверждение (effectuate) и расчёт лучшей ставки.
type DisputeService struct {
	*base

	mu         sync.Mutex
	countdowns map[string]*countdown // lotID/supplierID
	settling   map[string]struct{}   // bidID
}

func newDisputeService(b *base) *DisputeService {
	return &DisputeService{
		base:       b,
		countdowns: make(map[string]*countdown),
		settling:   make(map[string]struct{}),
	}
}

func countdownKey(lotID, supplierID string) string {
	return lotID + "/" + supplierID
}

// SubmitBid принимает ставку участника: сохраняет её в статусе pending и запускает
// окно подтверждения. Ошибка сохранения не оставляет ни записи, ни таймера.
func (s *DisputeService) SubmitBid(ctx context.Context, actor models.Actor, lotID, supplierID, raw string) (*models.Bid, error) {
	value, err := ParseBidValue(raw)
	if err != nil {
		return nil, err
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
	if err = s.authorizeSupplier(ctx, actor, ActSubmitBid, lot.TenderID, supplier); err != nil {
		return nil, err
	}
	if lot.Status != models.LotOpen {
		return nil, fmt.Errorf("%w: lot %s is %s, bids are accepted only while open", models.ErrInvalidTransition, lot.ID, lot.Status)
	}
	if supplier.Status != models.SupplierClassified {
		return nil, fmt.Errorf("%w: supplier %s is %s", models.ErrInvalidTransition, supplier.ID, supplier.Status)
	}

	pending, err := s.store.Bids.FindPendingBid(ctx, lotID, supplierID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: bid %s is still awaiting confirmation", models.ErrInvalidTransition, pending.ID)
	case !errors.Is(err, models.ErrBidNotFound):
		return nil, err
	}

	bid := &models.Bid{
		ID:           newID(),
		LotID:        lotID,
		SupplierID:   supplierID,
		Value:        value,
		IsPercentage: lot.Criterion == models.HighestDiscount,
		Status:       models.BidPending,
		CreatedAt:    s.now(),
	}
	if err = s.store.Bids.InsertBid(ctx, bid); err != nil {
		return nil, err
	}

	s.startCountdown(bid)
	s.bidEvent(ctx, lot, bid)
	return bid, nil
}

func (s *DisputeService) startCountdown(bid *models.Bid) {
	key := countdownKey(bid.LotID, bid.SupplierID)
	c := &countdown{bidID: bid.ID, lotID: bid.LotID, deadline: bid.CreatedAt.Add(s.policy.Window())}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.countdowns[key] = c
	c.timer = s.scheduler.AfterFunc(s.policy.Window(), func() { s.fire(key, c) })
}

// fire вызывается по истечении окна. После снятия отсчёта ставку уже нельзя отменить.
func (s *DisputeService) fire(key string, c *countdown) {
	s.mu.Lock()
	if c.canceled {
		s.mu.Unlock()
		return
	}
	if s.countdowns[key] == c {
		delete(s.countdowns, key)
	}
	s.settling[c.bidID] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.settling, c.bidID)
		s.mu.Unlock()
	}()
	s.settleWithRetry(c.bidID)
}

// settleWithRetry подтверждает ставку, повторяя попытку при сбое хранилища.
// Оставшиеся неподтверждёнными ставки подберёт SettleOverdue.
func (s *DisputeService) settleWithRetry(bidID string) {
	for attempt := 0; attempt <= s.policy.SettlementRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.Effectuate(ctx, bidID)
		cancel()
		if err == nil {
			return
		}
		if !errors.Is(err, models.ErrStoreFailure) {
			s.logger.Printf("settle bid %s: %v", bidID, err)
			return
		}
		s.logger.Printf("settle bid %s (attempt %d): %v", bidID, attempt+1, err)
		time.Sleep(s.policy.Backoff() * time.Duration(attempt+1))
	}
	s.logger.Printf("settle bid %s: retries exhausted, left for the sweeper", bidID)
}

// Effectuate подтверждает ставку. Каждый шаг проверяет текущее состояние записей,
// поэтому повторный вызов для той же ставки не создаёт второй активной ставки и
// второго сообщения.
func (s *DisputeService) Effectuate(ctx context.Context, bidID string) error {
	bid, err := s.store.Bids.GetBid(ctx, bidID)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(lotKey(bid.LotID))
	defer unlock()

	if bid, err = s.store.Bids.GetBid(ctx, bidID); err != nil {
		return err
	}
	if bid.Status != models.BidPending && bid.Status != models.BidActive {
		return nil
	}
	lot, err := s.store.Lots.GetLot(ctx, bid.LotID)
	if err != nil {
		return err
	}
	bids, err := s.store.Bids.ListBids(ctx, bid.LotID, models.BidActive)
	if err != nil {
		return err
	}

	if bid.Status == models.BidPending {
		if lot.Status != models.LotOpen && lot.Status != models.LotPaused {
			return s.cancelPending(ctx, lot, bid)
		}
		if s.policy.RevalidateOnSettle && !improves(bid, bids, lot.Criterion) {
			return s.cancelPending(ctx, lot, bid)
		}
	}

	for i := range bids {
		old := &bids[i]
		if old.SupplierID != bid.SupplierID || old.ID == bid.ID || !precedes(old, bid) {
			continue
		}
		if _, err = s.store.Bids.SetBidStatus(ctx, old.ID, models.BidActive, models.BidSuperseded, s.now()); err != nil {
			return err
		}
	}

	if bid.Status == models.BidPending {
		activated, err := s.store.Bids.SetBidStatus(ctx, bid.ID, models.BidPending, models.BidActive, s.now())
		if err != nil {
			return err
		}
		if !activated {
			if bid, err = s.store.Bids.GetBid(ctx, bidID); err != nil {
				return err
			}
			if bid.Status != models.BidActive {
				return nil
			}
		} else {
			bid.Status = models.BidActive
			s.bidEvent(ctx, lot, bid)
		}
	}

	supplier, err := s.store.Lots.GetSupplier(ctx, bid.LotID, bid.SupplierID)
	if err != nil {
		return err
	}
	if supplier.Value == nil || *supplier.Value != bid.Value {
		value := bid.Value
		supplier.Value = &value
		if err = s.store.Lots.UpdateSupplier(ctx, supplier); err != nil {
			return err
		}
	}

	_, err = s.appendMessage(ctx, &models.SystemMessage{
		ID:         messageID("bid-settled", bid.ID),
		TenderID:   lot.TenderID,
		LotID:      lot.ID,
		Type:       models.MessageBid,
		Content:    fmt.Sprintf("Lote %s: lance de %s no valor de %s.", lotLabel(lot), supplierName(supplier), formatBid(bid)),
		AuthorID:   supplier.AccountID,
		AuthorName: supplierName(supplier),
	})
	return err
}

func (s *DisputeService) cancelPending(ctx context.Context, lot *models.Lot, bid *models.Bid) error {
	canceled, err := s.store.Bids.SetBidStatus(ctx, bid.ID, models.BidPending, models.BidCanceled, s.now())
	if err != nil {
		return err
	}
	if canceled {
		bid.Status = models.BidCanceled
		s.bidEvent(ctx, lot, bid)
	}
	return nil
}

// CancelBid отменяет ставку участника, ожидающую подтверждения. Возвращает false,
// если отменять нечего или подтверждение уже началось.
func (s *DisputeService) CancelBid(ctx context.Context, actor models.Actor, lotID, supplierID string) (bool, error) {
	lot, err := s.store.Lots.GetLot(ctx, lotID)
	if err != nil {
		return false, err
	}
	supplier, err := s.store.Lots.GetSupplier(ctx, lotID, supplierID)
	if err != nil {
		return false, err
	}
	if err = s.authorizeSupplier(ctx, actor, ActCancelBid, lot.TenderID, supplier); err != nil {
		return false, err
	}

	key := countdownKey(lotID, supplierID)
	s.mu.Lock()
	c, ok := s.countdowns[key]
	if ok {
		// Таймер снимается до записи, чтобы не успеть подтвердить отменяемую ставку.
		c.canceled = true
		c.timer.Stop()
	}
	s.mu.Unlock()

	var bidID string
	if ok {
		bidID = c.bidID
	} else {
		// Отсчёт мог идти на другом экземпляре: отменяем, пока окно не истекло.
		bid, err := s.store.Bids.FindPendingBid(ctx, lotID, supplierID)
		if errors.Is(err, models.ErrBidNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if s.isSettling(bid.ID) || !s.now().Before(bid.CreatedAt.Add(s.policy.Window())) {
			return false, nil
		}
		bidID = bid.ID
	}

	canceled, err := s.store.Bids.SetBidStatus(ctx, bidID, models.BidPending, models.BidCanceled, s.now())
	if ok {
		s.releaseCountdown(key, c, err != nil)
	}
	if err != nil {
		return false, err
	}
	if canceled {
		s.bidEvent(ctx, lot, &models.Bid{ID: bidID, LotID: lotID, SupplierID: supplierID, Status: models.BidCanceled})
	}
	return canceled, nil
}

// releaseCountdown убирает отсчёт после попытки отмены. Если записать отмену не
// удалось, отсчёт возобновляется на остаток окна и ставку можно отменить повторно.
func (s *DisputeService) releaseCountdown(key string, c *countdown, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countdowns[key] != c {
		return
	}
	if !failed {
		delete(s.countdowns, key)
		return
	}
	remaining := c.deadline.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	c.canceled = false
	c.timer = s.scheduler.AfterFunc(remaining, func() { s.fire(key, c) })
}

func (s *DisputeService) isSettling(bidID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.settling[bidID]
	return ok
}

// BestBid возвращает текущую лучшую ставку лота и подсказку для следующей.
// Значение каждый раз вычисляется заново из активных ставок.
func (s *DisputeService) BestBid(ctx context.Context, lotID string) (*models.BidQuote, error) {
	lot, err := s.store.Lots.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	bids, err := s.store.Bids.ListBids(ctx, lotID, models.BidActive)
	if err != nil {
		return nil, err
	}

	quote := &models.BidQuote{LotID: lotID}
	if quote.Best = bestBid(bids, lot.Criterion, s.policy.PrefersEarlier()); quote.Best != nil {
		next := suggestNext(quote.Best.Value, lot.Criterion, s.policy.BidDecrement)
		quote.Suggested = &next
	}
	return quote, nil
}

// dropCountdowns останавливает все отсчёты лота.
func (s *DisputeService) dropCountdowns(lotID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := lotID + "/"
	for key, c := range s.countdowns {
		if strings.HasPrefix(key, prefix) {
			c.canceled = true
			c.timer.Stop()
			delete(s.countdowns, key)
		}
	}
}

// abortLot отменяет отсчёты и неподтверждённые ставки лота. Вызывается под блокировкой лота.
func (s *DisputeService) abortLot(ctx context.Context, lot *models.Lot) error {
	s.dropCountdowns(lot.ID)
	pending, err := s.store.Bids.ListBids(ctx, lot.ID, models.BidPending)
	if err != nil {
		return err
	}
	for i := range pending {
		if err = s.cancelPending(ctx, lot, &pending[i]); err != nil {
			return err
		}
	}
	return nil
}

// rankLot записывает лучшее значение каждого участника в его запись участия.
func (s *DisputeService) rankLot(ctx context.Context, lot *models.Lot) error {
	bids, err := s.store.Bids.ListBids(ctx, lot.ID, models.BidActive)
	if err != nil {
		return err
	}
	best := bestBySupplier(bids, lot.Criterion)
	suppliers, err := s.store.Lots.ListSuppliers(ctx, lot.ID)
	if err != nil {
		return err
	}
	for i := range suppliers {
		v, ok := best[suppliers[i].ID]
		if !ok || (suppliers[i].Value != nil && *suppliers[i].Value == v) {
			continue
		}
		suppliers[i].Value = &v
		if err = s.store.Lots.UpdateSupplier(ctx, &suppliers[i]); err != nil {
			return err
		}
	}
	return nil
}

// ApplyRemote сливает событие другого экземпляра с локальным состоянием: отсчёт
// ставки, уже отменённой или подтверждённой в другом месте, снимается.
func (s *DisputeService) ApplyRemote(_ context.Context, event feed.Event) {
	if event.Kind != feed.KindBid {
		return
	}
	if event.Status != string(models.BidCanceled) && event.Status != string(models.BidActive) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, c := range s.countdowns {
		if c.bidID == event.EntityID {
			c.canceled = true
			c.timer.Stop()
			delete(s.countdowns, key)
		}
	}
}

// SettleOverdue подтверждает ставки, окно которых истекло без живого отсчёта
// (например, после перезапуска процесса). Возвращает число обработанных ставок.
func (s *DisputeService) SettleOverdue(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.policy.Window())
	pending, err := s.store.Bids.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, bid := range pending {
		if s.tracked(bid.ID) {
			continue
		}
		if err = s.Effectuate(ctx, bid.ID); err != nil {
			s.logger.Printf("sweep bid %s: %v", bid.ID, err)
			continue
		}
		settled++
	}
	return settled, nil
}

func (s *DisputeService) tracked(bidID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settling[bidID]; ok {
		return true
	}
	for _, c := range s.countdowns {
		if c.bidID == bidID {
			return true
		}
	}
	return false
}

func (s *DisputeService) bidEvent(ctx context.Context, lot *models.Lot, bid *models.Bid) {
	s.publish(ctx, feed.Event{
		Kind:     feed.KindBid,
		TenderID: lot.TenderID,
		LotID:    lot.ID,
		EntityID: bid.ID,
		Status:   string(bid.Status),
	})
}
