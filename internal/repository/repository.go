package repository

import (
	"context"
	"time"

	"github.com/senyabanana/licitacao-service/internal/models"
)

// TenderRepository - интерфейс для работы с процессами закупки.
type TenderRepository interface {
	CreateTender(ctx context.Context, tender *models.Tender) error
	GetTender(ctx context.Context, tenderId string) (*models.Tender, error)
	// UpdateTender сохраняет процесс, только если его статус в хранилище равен expected.
	UpdateTender(ctx context.Context, tender *models.Tender, expected models.TenderStatus) error
}

// LotRepository - интерфейс для работы с лотами и участниками.
type LotRepository interface {
	CreateLot(ctx context.Context, lot *models.Lot) error
	GetLot(ctx context.Context, lotId string) (*models.Lot, error)
	ListLots(ctx context.Context, tenderId string) ([]models.Lot, error)
	ListLotsByStatus(ctx context.Context, statuses ...models.LotStatus) ([]models.Lot, error)
	// UpdateLot сохраняет лот, только если его статус в хранилище равен expected.
	UpdateLot(ctx context.Context, lot *models.Lot, expected models.LotStatus) error

	CreateSupplier(ctx context.Context, supplier *models.Supplier) error
	GetSupplier(ctx context.Context, lotId, supplierId string) (*models.Supplier, error)
	ListSuppliers(ctx context.Context, lotId string) ([]models.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier *models.Supplier) error
}

// BidRepository - интерфейс журнала ставок.
type BidRepository interface {
	InsertBid(ctx context.Context, bid *models.Bid) error
	GetBid(ctx context.Context, bidId string) (*models.Bid, error)
	ListBids(ctx context.Context, lotId string, statuses ...models.BidStatus) ([]models.Bid, error)
	FindPendingBid(ctx context.Context, lotId, supplierId string) (*models.Bid, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Bid, error)
	// SetBidStatus переводит ставку из from в to. Возвращает false, если статус уже другой.
	SetBidStatus(ctx context.Context, bidId string, from, to models.BidStatus, at time.Time) (bool, error)
}

// ResourceRepository - интерфейс для работы с жалобами.
type ResourceRepository interface {
	CreateResource(ctx context.Context, resource *models.Resource) error
	GetResource(ctx context.Context, resourceId string) (*models.Resource, error)
	FindResource(ctx context.Context, lotId, supplierId string) (*models.Resource, error)
	ListResources(ctx context.Context, lotId string, phases ...models.ResourcePhase) ([]models.Resource, error)
	// UpdateResource сохраняет жалобу, только если её фаза в хранилище равна expected.
	UpdateResource(ctx context.Context, resource *models.Resource, expected models.ResourcePhase) error
	AddCounterArgument(ctx context.Context, arg *models.CounterArgument) error
}

// MessageRepository - интерфейс журнала сообщений.
type MessageRepository interface {
	// AppendMessage добавляет сообщение и присваивает ему Seq. Повторное добавление
	// сообщения с тем же ID ничего не меняет и возвращает false.
	AppendMessage(ctx context.Context, msg *models.SystemMessage) (bool, error)
	ListMessages(ctx context.Context, tenderId string, includePrivate bool, limit, offset int) ([]models.SystemMessage, error)
}

// Store объединяет репозитории хранилища.
type Store struct {
	Tenders   TenderRepository
	Lots      LotRepository
	Bids      BidRepository
	Resources ResourceRepository
	Messages  MessageRepository
	Ping      func(ctx context.Context) error
}

// LoadAggregate собирает полный снимок процесса закупки.
func LoadAggregate(ctx context.Context, store Store, tenderId string, includePrivate bool) (*models.Aggregate, error) {
	tender, err := store.Tenders.GetTender(ctx, tenderId)
	if err != nil {
		return nil, err
	}
	lots, err := store.Lots.ListLots(ctx, tenderId)
	if err != nil {
		return nil, err
	}
	agg := &models.Aggregate{
		Tender:    *tender,
		Lots:      lots,
		Suppliers: []models.Supplier{},
		Bids:      []models.Bid{},
		Resources: []models.Resource{},
	}
	for _, lot := range lots {
		suppliers, err := store.Lots.ListSuppliers(ctx, lot.ID)
		if err != nil {
			return nil, err
		}
		agg.Suppliers = append(agg.Suppliers, suppliers...)

		bids, err := store.Bids.ListBids(ctx, lot.ID)
		if err != nil {
			return nil, err
		}
		agg.Bids = append(agg.Bids, bids...)

		resources, err := store.Resources.ListResources(ctx, lot.ID)
		if err != nil {
			return nil, err
		}
		agg.Resources = append(agg.Resources, resources...)
	}
	agg.Messages, err = store.Messages.ListMessages(ctx, tenderId, includePrivate, 0, 0)
	if err != nil {
		return nil, err
	}
	return agg, nil
}
