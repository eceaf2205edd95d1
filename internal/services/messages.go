package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/senyabanana/licitacao-service/internal/feed"
	"github.com/senyabanana/licitacao-service/internal/models"

	"github.com/google/uuid"
)

// messageNamespace - пространство имён для детерминированных ID сообщений.
var messageNamespace = uuid.MustParse("6f1c2a52-2a7e-4d55-9b1e-3c8f0e7a9d41")

const deadlineLayout = "02/01/2006 15:04"

func newID() string {
	return uuid.New().String()
}

// messageID выводит ID сообщения из события, которое оно описывает. Повторное
// добавление того же события не создаёт второй записи.
func messageID(parts ...string) string {
	return uuid.NewSHA1(messageNamespace, []byte(strings.Join(parts, "|"))).String()
}

func stamp(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func formatDeadline(t time.Time) string {
	return t.Format(deadlineLayout)
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatBid(bid *models.Bid) string {
	if bid.IsPercentage {
		return formatMoney(bid.Value) + "%"
	}
	return "R$ " + formatMoney(bid.Value)
}

func supplierName(s *models.Supplier) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.ID
}

func lotLabel(lot *models.Lot) string {
	if lot.Number != "" {
		return lot.Number
	}
	return lot.ID
}

// appendMessage добавляет запись в журнал с повторами при сбое хранилища. Запись с
// тем же ID не дублируется, поэтому повтор безопасен.
func (b *base) appendMessage(ctx context.Context, msg *models.SystemMessage) (bool, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = b.now()
	}
	if msg.Type == "" {
		msg.Type = models.MessageSystem
	}

	var err error
	for attempt := 0; attempt <= b.policy.SettlementRetries; attempt++ {
		var appended bool
		appended, err = b.store.Messages.AppendMessage(ctx, msg)
		if err == nil {
			if appended {
				b.publish(ctx, feed.Event{
					Kind:     feed.KindMessage,
					TenderID: msg.TenderID,
					LotID:    msg.LotID,
					EntityID: msg.ID,
					Status:   string(msg.Type),
				})
			}
			return appended, nil
		}
		if !errors.Is(err, models.ErrStoreFailure) || ctx.Err() != nil {
			break
		}
		b.logger.Printf("append message %s (attempt %d): %v", msg.ID, attempt+1, err)
		time.Sleep(b.policy.Backoff() * time.Duration(attempt+1))
	}
	return false, err
}

// lotMessage добавляет системное сообщение по лоту. Ключ события делает запись идемпотентной.
func (b *base) lotMessage(ctx context.Context, actor models.Actor, lot *models.Lot, private bool, key string, format string, args ...interface{}) error {
	_, err := b.appendMessage(ctx, &models.SystemMessage{
		ID:         messageID(key, lot.ID, stamp(lot.UpdatedAt)),
		TenderID:   lot.TenderID,
		LotID:      lot.ID,
		Type:       models.MessageSystem,
		Content:    fmt.Sprintf("Lote %s: ", lotLabel(lot)) + fmt.Sprintf(format, args...),
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		IsPrivate:  private,
	})
	return err
}

// tenderMessage добавляет системное сообщение уровня закупки.
func (b *base) tenderMessage(ctx context.Context, actor models.Actor, tender *models.Tender, key string, format string, args ...interface{}) error {
	_, err := b.appendMessage(ctx, &models.SystemMessage{
		ID:         messageID(key, tender.ID, stamp(tender.UpdatedAt)),
		TenderID:   tender.ID,
		Type:       models.MessageSystem,
		Content:    fmt.Sprintf("Processo %s: ", tender.Number) + fmt.Sprintf(format, args...),
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
	})
	return err
}
