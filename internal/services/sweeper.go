package services

import (
	"context"
	"time"
)

// Sweeper периодически выполняет отложенную работу: подтверждает ставки с истёкшим
// окном, закрывает просроченные окна намерений и просроченные жалобы.
type Sweeper struct {
	services *Services
	interval time.Duration
}

// NewSweeper создаёт Sweeper с заданным интервалом.
func NewSweeper(services *Services, interval time.Duration) *Sweeper {
	return &Sweeper{services: services, interval: interval}
}

// Run выполняет проходы до отмены ctx.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.services.Dispute.logger.Printf("sweeper started, interval %s", w.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep выполняет один проход.
func (w *Sweeper) Sweep(ctx context.Context) {
	logger := w.services.Dispute.logger
	if n, err := w.services.Dispute.SettleOverdue(ctx); err != nil {
		logger.Printf("sweeper: settle overdue bids: %v", err)
	} else if n > 0 {
		logger.Printf("sweeper: settled %d overdue bid(s)", n)
	}
	if n, err := w.services.Resources.CloseOverdueManifestations(ctx); err != nil {
		logger.Printf("sweeper: close manifestation windows: %v", err)
	} else if n > 0 {
		logger.Printf("sweeper: closed %d manifestation window(s)", n)
	}
	if err := w.services.Resources.ExpireAll(ctx); err != nil {
		logger.Printf("sweeper: expire resources: %v", err)
	}
}
