package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/senyabanana/licitacao-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// PostgresLotRepository - реализация LotRepository для базы данных.
type PostgresLotRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresLotRepository создаёт новый экземпляр PostgresLotRepository.
func NewPostgresLotRepository(db *pgxpool.Pool) *PostgresLotRepository {
	return &PostgresLotRepository{DB: db}
}

const lotColumns = `id, tender_id, number, description, estimated_value, criterion, status,
	resource_stage, manifestation_deadline, negotiating_supplier_id, winner_id, updated_at`

// CreateLot сохраняет лот вместе с позициями в одной транзакции.
func (r *PostgresLotRepository) CreateLot(ctx context.Context, lot *models.Lot) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return storeErr(err, "begin")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO lot (`+lotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		lot.ID,
		lot.TenderID,
		lot.Number,
		lot.Description,
		lot.EstimatedValue,
		lot.Criterion,
		lot.Status,
		lot.ResourceStage,
		lot.ManifestationDeadline,
		lot.NegotiatingSupplierID,
		lot.WinnerID,
		lot.UpdatedAt)
	if err != nil {
		return storeErr(err, "insert lot")
	}

	for _, item := range lot.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO lot_item (id, lot_id, position, description, quantity, unit, reference_price, price_hidden)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, lot.ID, item.Position, item.Description, item.Quantity, item.Unit, item.ReferencePrice, item.PriceHidden)
		if err != nil {
			return storeErr(err, "insert lot item")
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return storeErr(err, "commit lot")
	}
	return nil
}

// GetLot возвращает лот с позициями.
func (r *PostgresLotRepository) GetLot(ctx context.Context, lotId string) (*models.Lot, error) {
	lot, err := scanLot(r.DB.QueryRow(ctx, `SELECT `+lotColumns+` FROM lot WHERE id = $1`, lotId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrLotNotFound, lotId)
	}
	if err != nil {
		return nil, storeErr(err, "select lot")
	}
	if lot.Items, err = r.listItems(ctx, lot.ID); err != nil {
		return nil, err
	}
	return lot, nil
}

// ListLots возвращает лоты процесса, упорядоченные по номеру.
func (r *PostgresLotRepository) ListLots(ctx context.Context, tenderId string) ([]models.Lot, error) {
	return r.queryLots(ctx, `SELECT `+lotColumns+` FROM lot WHERE tender_id = $1 ORDER BY number, id`, tenderId)
}

// ListLotsByStatus возвращает лоты всех процессов в указанных статусах.
func (r *PostgresLotRepository) ListLotsByStatus(ctx context.Context, statuses ...models.LotStatus) ([]models.Lot, error) {
	return r.queryLots(ctx, `SELECT `+lotColumns+` FROM lot WHERE status = ANY($1) ORDER BY number, id`,
		pq.Array(statusStrings(statuses)))
}

func (r *PostgresLotRepository) queryLots(ctx context.Context, query string, args ...interface{}) ([]models.Lot, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err, "select lots")
	}
	defer rows.Close()

	lots := []models.Lot{}
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, storeErr(err, "scan lot")
		}
		lots = append(lots, *lot)
	}
	if err = rows.Err(); err != nil {
		return nil, storeErr(err, "iterate lots")
	}

	for i := range lots {
		if lots[i].Items, err = r.listItems(ctx, lots[i].ID); err != nil {
			return nil, err
		}
	}
	return lots, nil
}

func (r *PostgresLotRepository) listItems(ctx context.Context, lotId string) ([]models.Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, lot_id, position, description, quantity, unit, reference_price, price_hidden
		FROM lot_item WHERE lot_id = $1 ORDER BY position`, lotId)
	if err != nil {
		return nil, storeErr(err, "select lot items")
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(
			&item.ID,
			&item.LotID,
			&item.Position,
			&item.Description,
			&item.Quantity,
			&item.Unit,
			&item.ReferencePrice,
			&item.PriceHidden); err != nil {
			return nil, storeErr(err, "scan lot item")
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, storeErr(err, "iterate lot items")
	}
	return items, nil
}

// UpdateLot сохраняет изменяемые поля лота при совпадении статуса.
func (r *PostgresLotRepository) UpdateLot(ctx context.Context, lot *models.Lot, expected models.LotStatus) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE lot SET status = $2, resource_stage = $3, manifestation_deadline = $4,
			negotiating_supplier_id = $5, winner_id = $6, updated_at = $7
		WHERE id = $1 AND status = $8`,
		lot.ID,
		lot.Status,
		lot.ResourceStage,
		lot.ManifestationDeadline,
		lot.NegotiatingSupplierID,
		lot.WinnerID,
		lot.UpdatedAt,
		expected)
	if err != nil {
		return storeErr(err, "update lot")
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetLot(ctx, lot.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: lot %s is no longer %s", models.ErrInvalidTransition, lot.ID, expected)
	}
	return nil
}

// CreateSupplier сохраняет запись участия в лоте.
func (r *PostgresLotRepository) CreateSupplier(ctx context.Context, supplier *models.Supplier) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO supplier (id, lot_id, account_id, display_name, company, value, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		supplier.ID,
		supplier.LotID,
		supplier.AccountID,
		supplier.DisplayName,
		supplier.Company,
		supplier.Value,
		supplier.Status)
	if err != nil {
		return storeErr(err, "insert supplier")
	}
	return nil
}

// GetSupplier возвращает запись участия в лоте.
func (r *PostgresLotRepository) GetSupplier(ctx context.Context, lotId, supplierId string) (*models.Supplier, error) {
	var s models.Supplier
	err := r.DB.QueryRow(ctx, `
		SELECT id, lot_id, account_id, display_name, company, value, status
		FROM supplier WHERE id = $1 AND lot_id = $2`, supplierId, lotId).Scan(
		&s.ID, &s.LotID, &s.AccountID, &s.DisplayName, &s.Company, &s.Value, &s.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s in lot %s", models.ErrSupplierNotFound, supplierId, lotId)
	}
	if err != nil {
		return nil, storeErr(err, "select supplier")
	}
	return &s, nil
}

// ListSuppliers возвращает участников лота.
func (r *PostgresLotRepository) ListSuppliers(ctx context.Context, lotId string) ([]models.Supplier, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, lot_id, account_id, display_name, company, value, status
		FROM supplier WHERE lot_id = $1 ORDER BY id`, lotId)
	if err != nil {
		return nil, storeErr(err, "select suppliers")
	}
	defer rows.Close()

	suppliers := []models.Supplier{}
	for rows.Next() {
		var s models.Supplier
		if err := rows.Scan(&s.ID, &s.LotID, &s.AccountID, &s.DisplayName, &s.Company, &s.Value, &s.Status); err != nil {
			return nil, storeErr(err, "scan supplier")
		}
		suppliers = append(suppliers, s)
	}
	if err = rows.Err(); err != nil {
		return nil, storeErr(err, "iterate suppliers")
	}
	return suppliers, nil
}

// UpdateSupplier сохраняет лучшее значение и статус участника.
func (r *PostgresLotRepository) UpdateSupplier(ctx context.Context, supplier *models.Supplier) error {
	tag, err := r.DB.Exec(ctx, `UPDATE supplier SET value = $3, status = $4 WHERE id = $1 AND lot_id = $2`,
		supplier.ID, supplier.LotID, supplier.Value, supplier.Status)
	if err != nil {
		return storeErr(err, "update supplier")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrSupplierNotFound, supplier.ID)
	}
	return nil
}

func scanLot(row pgx.Row) (*models.Lot, error) {
	var lot models.Lot
	err := row.Scan(
		&lot.ID,
		&lot.TenderID,
		&lot.Number,
		&lot.Description,
		&lot.EstimatedValue,
		&lot.Criterion,
		&lot.Status,
		&lot.ResourceStage,
		&lot.ManifestationDeadline,
		&lot.NegotiatingSupplierID,
		&lot.WinnerID,
		&lot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lot, nil
}
