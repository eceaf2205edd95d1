package feed

import (
	"context"
	"sync"
	"time"
)

// Kind - тип события ленты изменений.
type Kind string

const (
	KindBid      Kind = "bid"
	KindLot      Kind = "lot"
	KindTender   Kind = "tender"
	KindResource Kind = "resource"
	KindMessage  Kind = "message"
)

// Event - уведомление об изменении сущности. Получатели сливают события по EntityID,
// поэтому повторная доставка безопасна.
type Event struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Kind       Kind      `json:"kind"`
	TenderID   string    `json:"tenderId,omitempty"`
	LotID      string    `json:"lotId,omitempty"`
	EntityID   string    `json:"entityId"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

// RoutingKey возвращает ключ маршрутизации события, например bid.pending или lot.status.
func (e Event) RoutingKey() string {
	switch e.Kind {
	case KindBid, KindResource:
		return string(e.Kind) + "." + e.Status
	case KindMessage:
		return "message.appended"
	}
	return string(e.Kind) + ".status"
}

// Publisher публикует события ленты изменений.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher отбрасывает события. Используется, когда брокер не настроен.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Recorder запоминает опубликованные события.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events возвращает копию записанных событий.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count считает события указанного вида и статуса.
func (r *Recorder) Count(kind Kind, status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind && e.Status == status {
			n++
		}
	}
	return n
}
