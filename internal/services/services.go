package services

import (
	"context"
	"log"
	"time"

	"github.com/senyabanana/licitacao-service/internal/feed"
	"github.com/senyabanana/licitacao-service/internal/models"
	"github.com/senyabanana/licitacao-service/internal/policy"
	"github.com/senyabanana/licitacao-service/internal/repository"
)

// RoleChecker - внешний источник сведений о ролях пользователя.
type RoleChecker interface {
	HasRole(ctx context.Context, actor models.Actor, role models.Role, tenderID string) (bool, error)
}

// Timer - запланированный вызов, который можно отменить.
type Timer interface {
	Stop() bool
}

// Scheduler планирует отложенные вызовы.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Option настраивает сервисы.
type Option func(*base)

// WithClock подменяет источник текущего времени.
func WithClock(clock func() time.Time) Option {
	return func(b *base) {
		if clock != nil {
			b.now = clock
		}
	}
}

// WithScheduler подменяет планировщик обратного отсчёта ставок.
func WithScheduler(s Scheduler) Option {
	return func(b *base) {
		if s != nil {
			b.scheduler = s
		}
	}
}

// base - общие зависимости сервисов.
type base struct {
	store     repository.Store
	feed      feed.Publisher
	roles     RoleChecker
	policy    policy.Policy
	logger    *log.Logger
	now       func() time.Time
	scheduler Scheduler
	locks     *keyLocks
}

// Services объединяет Tender Workflow Controller, Lot Dispute Engine и Resource Tracker.
type Services struct {
	Workflow  *WorkflowService
	Dispute   *DisputeService
	Resources *ResourceService
}

// NewServices создаёт сервисы поверх общего хранилища, ленты изменений и политики.
func NewServices(store repository.Store, pub feed.Publisher, roles RoleChecker, pol policy.Policy, logger *log.Logger, opts ...Option) *Services {
	if pub == nil {
		pub = feed.NopPublisher{}
	}
	b := &base{
		store:     store,
		feed:      pub,
		roles:     roles,
		policy:    pol,
		logger:    logger,
		now:       time.Now,
		scheduler: clockScheduler{},
		locks:     newKeyLocks(),
	}
	for _, opt := range opts {
		opt(b)
	}

	dispute := newDisputeService(b)
	resources := &ResourceService{base: b}
	return &Services{
		Workflow:  &WorkflowService{base: b, dispute: dispute, resources: resources},
		Dispute:   dispute,
		Resources: resources,
	}
}

// publish отправляет событие в ленту. Сбой ленты не отменяет уже сохранённое изменение.
func (b *base) publish(ctx context.Context, event feed.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.now()
	}
	if event.ID == "" {
		event.ID = newID()
	}
	if err := b.feed.Publish(ctx, event); err != nil {
		b.logger.Printf("feed: publish %s %s: %v", event.RoutingKey(), event.EntityID, err)
	}
}

func (b *base) lotEvent(ctx context.Context, lot *models.Lot) {
	b.publish(ctx, feed.Event{
		Kind:     feed.KindLot,
		TenderID: lot.TenderID,
		LotID:    lot.ID,
		EntityID: lot.ID,
		Status:   string(lot.Status),
	})
}

func (b *base) tenderEvent(ctx context.Context, tender *models.Tender) {
	b.publish(ctx, feed.Event{
		Kind:     feed.KindTender,
		TenderID: tender.ID,
		EntityID: tender.ID,
		Status:   string(tender.Status),
	})
}
