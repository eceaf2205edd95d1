package repository

import (
	"errors"
	"fmt"

	"github.com/senyabanana/licitacao-service/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresStore собирает репозитории поверх пула соединений.
func NewPostgresStore(db *pgxpool.Pool) Store {
	return Store{
		Tenders:   NewPostgresTenderRepository(db),
		Lots:      NewPostgresLotRepository(db),
		Bids:      NewPostgresBidRepository(db),
		Resources: NewPostgresResourceRepository(db),
		Messages:  NewPostgresMessageRepository(db),
		Ping:      db.Ping,
	}
}

// storeErr оборачивает ошибку драйвера в ErrStoreFailure, нарушение уникальности - в ErrDuplicate.
func storeErr(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s: %s", models.ErrDuplicate, op, pgErr.ConstraintName)
	}
	return fmt.Errorf("%w: %s: %v", models.ErrStoreFailure, op, err)
}

func statusStrings[T ~string](statuses []T) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
