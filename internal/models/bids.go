package models

import "time"

type BidStatus string // Статус ставки

const (
	BidPending    BidStatus = "pending"    // ставка ждёт окончания окна подтверждения
	BidActive     BidStatus = "active"     // ставка подтверждена
	BidSuperseded BidStatus = "superseded" // заменена более новой ставкой того же участника
	BidCanceled   BidStatus = "canceled"   // отменена до подтверждения
)

var bidTransitions = map[BidStatus][]BidStatus{
	BidPending: {BidActive, BidCanceled},
	BidActive:  {BidSuperseded},
}

// CanTransition проверяет допустимость перехода ставки.
func (s BidStatus) CanTransition(to BidStatus) bool {
	return contains(bidTransitions[s], to)
}

// Bid представляет ставку участника в диспуте лота.
type Bid struct {
	ID           string     `json:"id"`
	LotID        string     `json:"lotId"`
	SupplierID   string     `json:"supplierId"`
	Value        float64    `json:"value"`
	IsPercentage bool       `json:"isPercentage"`
	Status       BidStatus  `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	SettledAt    *time.Time `json:"settledAt,omitempty"`
}

// BidQuote - текущая лучшая ставка лота и подсказка для следующей.
type BidQuote struct {
	LotID     string   `json:"lotId"`
	Best      *Bid     `json:"best,omitempty"`
	Suggested *float64 `json:"suggested,omitempty"`
}
