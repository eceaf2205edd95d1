package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/senyabanana/licitacao-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTenderRepository - реализация TenderRepository для базы данных.
type PostgresTenderRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresTenderRepository создаёт новый экземпляр PostgresTenderRepository.
func NewPostgresTenderRepository(db *pgxpool.Pool) *PostgresTenderRepository {
	return &PostgresTenderRepository{DB: db}
}

const tenderColumns = `id, number, title, agency_id, status, dispute_mode, impugnation_deadline,
	proposal_deadline, session_opens_at, active_lot_id, created_at, updated_at`

// CreateTender сохраняет новый процесс закупки.
func (r *PostgresTenderRepository) CreateTender(ctx context.Context, tender *models.Tender) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO tender (`+tenderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		tender.ID,
		tender.Number,
		tender.Title,
		tender.AgencyID,
		tender.Status,
		tender.DisputeMode,
		tender.ImpugnationDeadline,
		tender.ProposalDeadline,
		tender.SessionOpensAt,
		tender.ActiveLotID,
		tender.CreatedAt,
		tender.UpdatedAt)
	if err != nil {
		return storeErr(err, "insert tender")
	}
	return nil
}

// GetTender возвращает процесс по ID.
func (r *PostgresTenderRepository) GetTender(ctx context.Context, tenderId string) (*models.Tender, error) {
	var tender models.Tender
	err := r.DB.QueryRow(ctx, `SELECT `+tenderColumns+` FROM tender WHERE id = $1`, tenderId).Scan(
		&tender.ID,
		&tender.Number,
		&tender.Title,
		&tender.AgencyID,
		&tender.Status,
		&tender.DisputeMode,
		&tender.ImpugnationDeadline,
		&tender.ProposalDeadline,
		&tender.SessionOpensAt,
		&tender.ActiveLotID,
		&tender.CreatedAt,
		&tender.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrTenderNotFound, tenderId)
	}
	if err != nil {
		return nil, storeErr(err, "select tender")
	}
	return &tender, nil
}

// UpdateTender сохраняет изменяемые поля процесса при совпадении статуса.
func (r *PostgresTenderRepository) UpdateTender(ctx context.Context, tender *models.Tender, expected models.TenderStatus) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE tender SET status = $2, dispute_mode = $3, impugnation_deadline = $4,
			proposal_deadline = $5, session_opens_at = $6, active_lot_id = $7, updated_at = $8
		WHERE id = $1 AND status = $9`,
		tender.ID,
		tender.Status,
		tender.DisputeMode,
		tender.ImpugnationDeadline,
		tender.ProposalDeadline,
		tender.SessionOpensAt,
		tender.ActiveLotID,
		tender.UpdatedAt,
		expected)
	if err != nil {
		return storeErr(err, "update tender")
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetTender(ctx, tender.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: tender %s is no longer %s", models.ErrInvalidTransition, tender.ID, expected)
	}
	return nil
}
