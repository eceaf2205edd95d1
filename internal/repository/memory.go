package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/senyabanana/licitacao-service/internal/models"
)

// MemoryStore - хранилище в памяти процесса. Используется в тестах и при STORE_DRIVER=memory.
// Каждое чтение и запись копирует записи, чтобы вызывающий код не делил с хранилищем память.
type MemoryStore struct {
	mu        sync.Mutex
	tenders   map[string]models.Tender
	lots      map[string]models.Lot
	suppliers map[string]models.Supplier
	bids      map[string]models.Bid
	resources map[string]models.Resource
	messages  []models.SystemMessage
	seen      map[string]struct{}
}

// NewMemoryStore создаёт пустое хранилище в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenders:   make(map[string]models.Tender),
		lots:      make(map[string]models.Lot),
		suppliers: make(map[string]models.Supplier),
		bids:      make(map[string]models.Bid),
		resources: make(map[string]models.Resource),
		seen:      make(map[string]struct{}),
	}
}

// Store возвращает набор репозиториев поверх хранилища в памяти.
func (m *MemoryStore) Store() Store {
	return Store{
		Tenders:   m,
		Lots:      m,
		Bids:      m,
		Resources: m,
		Messages:  m,
		Ping:      func(context.Context) error { return nil },
	}
}

func (m *MemoryStore) CreateTender(ctx context.Context, tender *models.Tender) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenders[tender.ID]; ok {
		return fmt.Errorf("%w: tender %s", models.ErrDuplicate, tender.ID)
	}
	m.tenders[tender.ID] = cloneTender(*tender)
	return nil
}

func (m *MemoryStore) GetTender(ctx context.Context, tenderId string) (*models.Tender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tender, ok := m.tenders[tenderId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrTenderNotFound, tenderId)
	}
	out := cloneTender(tender)
	return &out, nil
}

func (m *MemoryStore) UpdateTender(ctx context.Context, tender *models.Tender, expected models.TenderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.tenders[tender.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrTenderNotFound, tender.ID)
	}
	if current.Status != expected {
		return fmt.Errorf("%w: tender %s is %s", models.ErrInvalidTransition, tender.ID, current.Status)
	}
	m.tenders[tender.ID] = cloneTender(*tender)
	return nil
}

func (m *MemoryStore) CreateLot(ctx context.Context, lot *models.Lot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenders[lot.TenderID]; !ok {
		return fmt.Errorf("%w: %s", models.ErrTenderNotFound, lot.TenderID)
	}
	if _, ok := m.lots[lot.ID]; ok {
		return fmt.Errorf("%w: lot %s", models.ErrDuplicate, lot.ID)
	}
	m.lots[lot.ID] = cloneLot(*lot)
	return nil
}

func (m *MemoryStore) GetLot(ctx context.Context, lotId string) (*models.Lot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lot, ok := m.lots[lotId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrLotNotFound, lotId)
	}
	out := cloneLot(lot)
	return &out, nil
}

func (m *MemoryStore) ListLots(ctx context.Context, tenderId string) ([]models.Lot, error) {
	return m.filterLots(func(l models.Lot) bool { return l.TenderID == tenderId }), nil
}

func (m *MemoryStore) ListLotsByStatus(ctx context.Context, statuses ...models.LotStatus) ([]models.Lot, error) {
	return m.filterLots(func(l models.Lot) bool { return hasStatus(statuses, l.Status) }), nil
}

func (m *MemoryStore) filterLots(keep func(models.Lot) bool) []models.Lot {
	m.mu.Lock()
	defer m.mu.Unlock()
	lots := []models.Lot{}
	for _, lot := range m.lots {
		if keep(lot) {
			lots = append(lots, cloneLot(lot))
		}
	}
	sort.Slice(lots, func(i, j int) bool {
		if lots[i].Number != lots[j].Number {
			return lots[i].Number < lots[j].Number
		}
		return lots[i].ID < lots[j].ID
	})
	return lots
}

func (m *MemoryStore) UpdateLot(ctx context.Context, lot *models.Lot, expected models.LotStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.lots[lot.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrLotNotFound, lot.ID)
	}
	if current.Status != expected {
		return fmt.Errorf("%w: lot %s is %s", models.ErrInvalidTransition, lot.ID, current.Status)
	}
	m.lots[lot.ID] = cloneLot(*lot)
	return nil
}

func (m *MemoryStore) CreateSupplier(ctx context.Context, supplier *models.Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lots[supplier.LotID]; !ok {
		return fmt.Errorf("%w: %s", models.ErrLotNotFound, supplier.LotID)
	}
	if _, ok := m.suppliers[supplier.ID]; ok {
		return fmt.Errorf("%w: supplier %s", models.ErrDuplicate, supplier.ID)
	}
	m.suppliers[supplier.ID] = cloneSupplier(*supplier)
	return nil
}

func (m *MemoryStore) GetSupplier(ctx context.Context, lotId, supplierId string) (*models.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	supplier, ok := m.suppliers[supplierId]
	if !ok || supplier.LotID != lotId {
		return nil, fmt.Errorf("%w: %s in lot %s", models.ErrSupplierNotFound, supplierId, lotId)
	}
	out := cloneSupplier(supplier)
	return &out, nil
}

func (m *MemoryStore) ListSuppliers(ctx context.Context, lotId string) ([]models.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	suppliers := []models.Supplier{}
	for _, s := range m.suppliers {
		if s.LotID == lotId {
			suppliers = append(suppliers, cloneSupplier(s))
		}
	}
	sort.Slice(suppliers, func(i, j int) bool { return suppliers[i].ID < suppliers[j].ID })
	return suppliers, nil
}

func (m *MemoryStore) UpdateSupplier(ctx context.Context, supplier *models.Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.suppliers[supplier.ID]
	if !ok || current.LotID != supplier.LotID {
		return fmt.Errorf("%w: %s", models.ErrSupplierNotFound, supplier.ID)
	}
	m.suppliers[supplier.ID] = cloneSupplier(*supplier)
	return nil
}

func (m *MemoryStore) InsertBid(ctx context.Context, bid *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bids[bid.ID]; ok {
		return fmt.Errorf("%w: bid %s", models.ErrDuplicate, bid.ID)
	}
	if bid.Status == models.BidPending {
		for _, b := range m.bids {
			if b.LotID == bid.LotID && b.SupplierID == bid.SupplierID && b.Status == models.BidPending {
				return fmt.Errorf("%w: pending bid of %s in lot %s", models.ErrDuplicate, bid.SupplierID, bid.LotID)
			}
		}
	}
	m.bids[bid.ID] = cloneBid(*bid)
	return nil
}

func (m *MemoryStore) GetBid(ctx context.Context, bidId string) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bid, ok := m.bids[bidId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrBidNotFound, bidId)
	}
	out := cloneBid(bid)
	return &out, nil
}

func (m *MemoryStore) ListBids(ctx context.Context, lotId string, statuses ...models.BidStatus) ([]models.Bid, error) {
	return m.filterBids(func(b models.Bid) bool {
		return b.LotID == lotId && (len(statuses) == 0 || hasStatus(statuses, b.Status))
	}), nil
}

func (m *MemoryStore) FindPendingBid(ctx context.Context, lotId, supplierId string) (*models.Bid, error) {
	bids := m.filterBids(func(b models.Bid) bool {
		return b.LotID == lotId && b.SupplierID == supplierId && b.Status == models.BidPending
	})
	if len(bids) == 0 {
		return nil, fmt.Errorf("%w: no pending bid for %s", models.ErrBidNotFound, supplierId)
	}
	return &bids[len(bids)-1], nil
}

func (m *MemoryStore) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Bid, error) {
	return m.filterBids(func(b models.Bid) bool {
		return b.Status == models.BidPending && !b.CreatedAt.After(cutoff)
	}), nil
}

func (m *MemoryStore) filterBids(keep func(models.Bid) bool) []models.Bid {
	m.mu.Lock()
	defer m.mu.Unlock()
	bids := []models.Bid{}
	for _, bid := range m.bids {
		if keep(bid) {
			bids = append(bids, cloneBid(bid))
		}
	}
	sort.Slice(bids, func(i, j int) bool {
		if !bids[i].CreatedAt.Equal(bids[j].CreatedAt) {
			return bids[i].CreatedAt.Before(bids[j].CreatedAt)
		}
		return bids[i].ID < bids[j].ID
	})
	return bids
}

func (m *MemoryStore) SetBidStatus(ctx context.Context, bidId string, from, to models.BidStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bid, ok := m.bids[bidId]
	if !ok {
		return false, fmt.Errorf("%w: %s", models.ErrBidNotFound, bidId)
	}
	if bid.Status != from {
		return false, nil
	}
	bid.Status = to
	if to == models.BidActive {
		settled := at
		bid.SettledAt = &settled
	}
	m.bids[bidId] = bid
	return true, nil
}

func (m *MemoryStore) CreateResource(ctx context.Context, resource *models.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resources {
		if r.LotID == resource.LotID && r.SupplierID == resource.SupplierID {
			return fmt.Errorf("%w: resource of %s in lot %s", models.ErrDuplicate, resource.SupplierID, resource.LotID)
		}
	}
	m.resources[resource.ID] = cloneResource(*resource)
	return nil
}

func (m *MemoryStore) GetResource(ctx context.Context, resourceId string) (*models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resource, ok := m.resources[resourceId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrResourceNotFound, resourceId)
	}
	out := cloneResource(resource)
	return &out, nil
}

func (m *MemoryStore) FindResource(ctx context.Context, lotId, supplierId string) (*models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resources {
		if r.LotID == lotId && r.SupplierID == supplierId {
			out := cloneResource(r)
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: no resource of %s in lot %s", models.ErrResourceNotFound, supplierId, lotId)
}

func (m *MemoryStore) ListResources(ctx context.Context, lotId string, phases ...models.ResourcePhase) ([]models.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resources := []models.Resource{}
	for _, r := range m.resources {
		if r.LotID == lotId && (len(phases) == 0 || hasStatus(phases, r.Phase)) {
			resources = append(resources, cloneResource(r))
		}
	}
	sort.Slice(resources, func(i, j int) bool {
		if !resources[i].ManifestedAt.Equal(resources[j].ManifestedAt) {
			return resources[i].ManifestedAt.Before(resources[j].ManifestedAt)
		}
		return resources[i].ID < resources[j].ID
	})
	return resources, nil
}

func (m *MemoryStore) UpdateResource(ctx context.Context, resource *models.Resource, expected models.ResourcePhase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.resources[resource.ID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrResourceNotFound, resource.ID)
	}
	if current.Phase != expected {
		return fmt.Errorf("%w: resource %s is %s", models.ErrInvalidTransition, resource.ID, current.Phase)
	}
	updated := cloneResource(*resource)
	// контраргументы добавляются только через AddCounterArgument
	updated.CounterArguments = current.CounterArguments
	m.resources[resource.ID] = updated
	return nil
}

func (m *MemoryStore) AddCounterArgument(ctx context.Context, arg *models.CounterArgument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	resource, ok := m.resources[arg.ResourceID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrResourceNotFound, arg.ResourceID)
	}
	args := make([]models.CounterArgument, len(resource.CounterArguments), len(resource.CounterArguments)+1)
	copy(args, resource.CounterArguments)
	resource.CounterArguments = append(args, *arg)
	m.resources[arg.ResourceID] = resource
	return nil
}

func (m *MemoryStore) AppendMessage(ctx context.Context, msg *models.SystemMessage) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[msg.ID]; ok {
		return false, nil
	}
	m.seen[msg.ID] = struct{}{}
	msg.Seq = int64(len(m.messages) + 1)
	m.messages = append(m.messages, *msg)
	return true, nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, tenderId string, includePrivate bool, limit, offset int) ([]models.SystemMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	messages := []models.SystemMessage{}
	for _, msg := range m.messages {
		if msg.TenderID != tenderId || (msg.IsPrivate && !includePrivate) {
			continue
		}
		messages = append(messages, msg)
	}
	if offset >= len(messages) {
		return []models.SystemMessage{}, nil
	}
	messages = messages[offset:]
	if limit > 0 && limit < len(messages) {
		messages = messages[:limit]
	}
	return messages, nil
}

func hasStatus[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneTender(t models.Tender) models.Tender {
	t.ImpugnationDeadline = cloneTime(t.ImpugnationDeadline)
	t.ProposalDeadline = cloneTime(t.ProposalDeadline)
	t.SessionOpensAt = cloneTime(t.SessionOpensAt)
	return t
}

func cloneLot(l models.Lot) models.Lot {
	l.ManifestationDeadline = cloneTime(l.ManifestationDeadline)
	items := make([]models.Item, len(l.Items))
	copy(items, l.Items)
	l.Items = items
	return l
}

func cloneSupplier(s models.Supplier) models.Supplier {
	if s.Value != nil {
		v := *s.Value
		s.Value = &v
	}
	return s
}

func cloneBid(b models.Bid) models.Bid {
	b.SettledAt = cloneTime(b.SettledAt)
	return b
}

func cloneResource(r models.Resource) models.Resource {
	r.SubmittedAt = cloneTime(r.SubmittedAt)
	r.CounterArgumentDeadline = cloneTime(r.CounterArgumentDeadline)
	args := make([]models.CounterArgument, len(r.CounterArguments))
	copy(args, r.CounterArguments)
	r.CounterArguments = args
	if r.Judgment != nil {
		j := *r.Judgment
		r.Judgment = &j
	}
	return r
}
