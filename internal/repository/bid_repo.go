package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/senyabanana/licitacao-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// PostgresBidRepository - реализация BidRepository для базы данных.
type PostgresBidRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresBidRepository создает новый экземпляр PostgresBidRepository.
func NewPostgresBidRepository(db *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{DB: db}
}

const bidColumns = `id, lot_id, supplier_id, value, is_percentage, status, created_at, settled_at`

// InsertBid сохраняет новую ставку. Вторая ставка в статусе pending от того же
// участника отклоняется уникальным индексом.
func (r *PostgresBidRepository) InsertBid(ctx context.Context, bid *models.Bid) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO bid (`+bidColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		bid.ID,
		bid.LotID,
		bid.SupplierID,
		bid.Value,
		bid.IsPercentage,
		bid.Status,
		bid.CreatedAt,
		bid.SettledAt)
	if err != nil {
		return storeErr(err, "insert bid")
	}
	return nil
}

// GetBid возвращает ставку по ID.
func (r *PostgresBidRepository) GetBid(ctx context.Context, bidId string) (*models.Bid, error) {
	bid, err := scanBid(r.DB.QueryRow(ctx, `SELECT `+bidColumns+` FROM bid WHERE id = $1`, bidId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrBidNotFound, bidId)
	}
	if err != nil {
		return nil, storeErr(err, "select bid")
	}
	return bid, nil
}

// ListBids возвращает ставки лота в порядке подачи, при необходимости - только в указанных статусах.
func (r *PostgresBidRepository) ListBids(ctx context.Context, lotId string, statuses ...models.BidStatus) ([]models.Bid, error) {
	if len(statuses) == 0 {
		return r.queryBids(ctx, `SELECT `+bidColumns+` FROM bid WHERE lot_id = $1 ORDER BY created_at, id`, lotId)
	}
	return r.queryBids(ctx, `SELECT `+bidColumns+` FROM bid WHERE lot_id = $1 AND status = ANY($2) ORDER BY created_at, id`,
		lotId, pq.Array(statusStrings(statuses)))
}

// FindPendingBid возвращает ставку участника, ожидающую подтверждения.
func (r *PostgresBidRepository) FindPendingBid(ctx context.Context, lotId, supplierId string) (*models.Bid, error) {
	bid, err := scanBid(r.DB.QueryRow(ctx, `
		SELECT `+bidColumns+` FROM bid
		WHERE lot_id = $1 AND supplier_id = $2 AND status = $3
		ORDER BY created_at DESC LIMIT 1`, lotId, supplierId, models.BidPending))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no pending bid for %s", models.ErrBidNotFound, supplierId)
	}
	if err != nil {
		return nil, storeErr(err, "select pending bid")
	}
	return bid, nil
}

// ListPendingBefore возвращает неподтверждённые ставки, поданные не позже cutoff.
func (r *PostgresBidRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Bid, error) {
	return r.queryBids(ctx, `SELECT `+bidColumns+` FROM bid WHERE status = $1 AND created_at <= $2 ORDER BY created_at, id`,
		models.BidPending, cutoff)
}

// SetBidStatus переводит ставку из статуса from в статус to одной условной командой.
func (r *PostgresBidRepository) SetBidStatus(ctx context.Context, bidId string, from, to models.BidStatus, at time.Time) (bool, error) {
	var settledAt *time.Time
	if to == models.BidActive {
		settledAt = &at
	}
	tag, err := r.DB.Exec(ctx, `
		UPDATE bid SET status = $3, settled_at = COALESCE($4, settled_at)
		WHERE id = $1 AND status = $2`, bidId, from, to, settledAt)
	if err != nil {
		return false, storeErr(err, "update bid status")
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetBid(ctx, bidId); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (r *PostgresBidRepository) queryBids(ctx context.Context, query string, args ...interface{}) ([]models.Bid, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err, "select bids")
	}
	defer rows.Close()

	bids := []models.Bid{}
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, storeErr(err, "scan bid")
		}
		bids = append(bids, *bid)
	}
	if err = rows.Err(); err != nil {
		return nil, storeErr(err, "iterate bids")
	}
	return bids, nil
}

func scanBid(row pgx.Row) (*models.Bid, error) {
	var bid models.Bid
	err := row.Scan(
		&bid.ID,
		&bid.LotID,
		&bid.SupplierID,
		&bid.Value,
		&bid.IsPercentage,
		&bid.Status,
		&bid.CreatedAt,
		&bid.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}
