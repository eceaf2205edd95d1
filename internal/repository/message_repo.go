package repository

import (
	"context"

	"github.com/senyabanana/licitacao-service/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresMessageRepository - реализация MessageRepository для базы данных.
type PostgresMessageRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresMessageRepository создаёт новый экземпляр PostgresMessageRepository.
func NewPostgresMessageRepository(db *pgxpool.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{DB: db}
}

// AppendMessage добавляет сообщение в журнал. Порядковый номер выдаёт последовательность seq.
func (r *PostgresMessageRepository) AppendMessage(ctx context.Context, msg *models.SystemMessage) (bool, error) {
	rows, err := r.DB.Query(ctx, `
		INSERT INTO system_message (id, tender_id, lot_id, type, content, author_id, author_name, is_private, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
		RETURNING seq`,
		msg.ID,
		msg.TenderID,
		msg.LotID,
		msg.Type,
		msg.Content,
		msg.AuthorID,
		msg.AuthorName,
		msg.IsPrivate,
		msg.CreatedAt)
	if err != nil {
		return false, storeErr(err, "insert message")
	}
	defer rows.Close()

	appended := false
	for rows.Next() {
		if err := rows.Scan(&msg.Seq); err != nil {
			return false, storeErr(err, "scan message seq")
		}
		appended = true
	}
	if err = rows.Err(); err != nil {
		return false, storeErr(err, "insert message")
	}
	return appended, nil
}

// ListMessages возвращает журнал процесса по возрастанию seq. limit = 0 означает без ограничения.
func (r *PostgresMessageRepository) ListMessages(ctx context.Context, tenderId string, includePrivate bool, limit, offset int) ([]models.SystemMessage, error) {
	query := `
		SELECT seq, id, tender_id, lot_id, type, content, author_id, author_name, is_private, created_at
		FROM system_message
		WHERE tender_id = $1 AND ($2 OR NOT is_private)
		ORDER BY seq
		OFFSET $3`
	args := []interface{}{tenderId, includePrivate, offset}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err, "select messages")
	}
	defer rows.Close()

	messages := []models.SystemMessage{}
	for rows.Next() {
		var msg models.SystemMessage
		if err := rows.Scan(
			&msg.Seq,
			&msg.ID,
			&msg.TenderID,
			&msg.LotID,
			&msg.Type,
			&msg.Content,
			&msg.AuthorID,
			&msg.AuthorName,
			&msg.IsPrivate,
			&msg.CreatedAt); err != nil {
			return nil, storeErr(err, "scan message")
		}
		messages = append(messages, msg)
	}
	if err = rows.Err(); err != nil {
		return nil, storeErr(err, "iterate messages")
	}
	return messages, nil
}
