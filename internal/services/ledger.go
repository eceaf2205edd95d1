package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/senyabanana/licitacao-service/internal/models"
)

// maxBidValue - верхняя граница ставки, помещающаяся в NUMERIC(18,4).
const maxBidValue = 1e13

var (
	plainValue     = regexp.MustCompile(`^\d+(\.\d+)?$`)
	decimalComma   = regexp.MustCompile(`^\d+,\d{1,2}$`)
	groupedDecimal = regexp.MustCompile(`^\d{1,3}(\.\d{3})+(,\d{1,2})?$`)
)

// ParseBidValue разбирает значение ставки в том виде, как его ввёл участник:
// "2890.50", "2890,50" или "2.890,50". Запятая всегда десятичная, группы тысяч
// разделяются точкой по три цифры. Смешанные и неоднозначные формы ("2,890.00",
// "1,000") отклоняются. Значение округляется до сотых.
func ParseBidValue(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "-"):
		return 0, fmt.Errorf("%w: %q is negative", models.ErrInvalidBidValue, raw)
	case groupedDecimal.MatchString(s) && strings.Contains(s, ","):
		s = strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
	case decimalComma.MatchString(s):
		s = strings.Replace(s, ",", ".", 1)
	case plainValue.MatchString(s):
	default:
		return 0, fmt.Errorf("%w: %q is not a number", models.ErrInvalidBidValue, raw)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", models.ErrInvalidBidValue, raw)
	}
	v = roundCents(v)
	if math.IsNaN(v) || math.IsInf(v, 0) || v >= maxBidValue {
		return 0, fmt.Errorf("%w: %q is out of range", models.ErrInvalidBidValue, raw)
	}
	return v, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// better сообщает, лучше ли значение a значения b по критерию лота.
func better(criterion models.Criterion, a, b float64) bool {
	if criterion == models.HighestDiscount {
		return a > b
	}
	return a < b
}

// precedes сообщает, подана ли ставка a раньше ставки b. При равном времени решает ID.
func precedes(a, b *models.Bid) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// bestBid выбирает текущую лучшую ставку среди активных. При равенстве значений
// побеждает более ранняя ставка, если preferEarlier, иначе более поздняя.
func bestBid(bids []models.Bid, criterion models.Criterion, preferEarlier bool) *models.Bid {
	var best *models.Bid
	for i := range bids {
		b := &bids[i]
		if b.Status != models.BidActive {
			continue
		}
		switch {
		case best == nil, better(criterion, b.Value, best.Value):
			best = b
		case b.Value == best.Value && precedes(b, best) == preferEarlier:
			best = b
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

// suggestNext - подсказка для следующей ставки: на один шаг лучше текущей лучшей.
func suggestNext(best float64, criterion models.Criterion, step float64) float64 {
	if criterion == models.HighestDiscount {
		return roundCents(best + step)
	}
	return math.Max(0, roundCents(best-step))
}

// bestBySupplier возвращает лучшее активное значение каждого участника.
func bestBySupplier(bids []models.Bid, criterion models.Criterion) map[string]float64 {
	out := make(map[string]float64)
	for _, b := range bids {
		if b.Status != models.BidActive {
			continue
		}
		if v, ok := out[b.SupplierID]; !ok || better(criterion, b.Value, v) {
			out[b.SupplierID] = b.Value
		}
	}
	return out
}

// improves сообщает, улучшает ли ставка собственную активную позицию участника.
func improves(bid *models.Bid, bids []models.Bid, criterion models.Criterion) bool {
	for _, b := range bids {
		if b.ID == bid.ID || b.SupplierID != bid.SupplierID || b.Status != models.BidActive {
			continue
		}
		if !better(criterion, bid.Value, b.Value) {
			return false
		}
	}
	return true
}
