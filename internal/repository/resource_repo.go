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

// PostgresResourceRepository - реализация ResourceRepository для базы данных.
type PostgresResourceRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresResourceRepository создаёт новый экземпляр PostgresResourceRepository.
func NewPostgresResourceRepository(db *pgxpool.Pool) *PostgresResourceRepository {
	return &PostgresResourceRepository{DB: db}
}

const resourceColumns = `id, lot_id, supplier_id, phase, manifested_at, submission_deadline, submitted_at,
	counter_argument_deadline, content, decision, justification, judge_id, judged_at`

// CreateResource сохраняет заявление о намерении обжаловать.
func (r *PostgresResourceRepository) CreateResource(ctx context.Context, resource *models.Resource) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO resource (id, lot_id, supplier_id, phase, manifested_at, submission_deadline, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		resource.ID,
		resource.LotID,
		resource.SupplierID,
		resource.Phase,
		resource.ManifestedAt,
		resource.SubmissionDeadline,
		resource.Content)
	if err != nil {
		return storeErr(err, "insert resource")
	}
	return nil
}

// GetResource возвращает жалобу с контраргументами.
func (r *PostgresResourceRepository) GetResource(ctx context.Context, resourceId string) (*models.Resource, error) {
	resource, err := scanResource(r.DB.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resource WHERE id = $1`, resourceId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrResourceNotFound, resourceId)
	}
	if err != nil {
		return nil, storeErr(err, "select resource")
	}
	if resource.CounterArguments, err = r.listCounterArguments(ctx, resource.ID); err != nil {
		return nil, err
	}
	return resource, nil
}

// FindResource возвращает жалобу участника по лоту.
func (r *PostgresResourceRepository) FindResource(ctx context.Context, lotId, supplierId string) (*models.Resource, error) {
	resource, err := scanResource(r.DB.QueryRow(ctx,
		`SELECT `+resourceColumns+` FROM resource WHERE lot_id = $1 AND supplier_id = $2`, lotId, supplierId))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no resource of %s in lot %s", models.ErrResourceNotFound, supplierId, lotId)
	}
	if err != nil {
		return nil, storeErr(err, "select resource")
	}
	if resource.CounterArguments, err = r.listCounterArguments(ctx, resource.ID); err != nil {
		return nil, err
	}
	return resource, nil
}

// ListResources возвращает жалобы лота, при необходимости - только в указанных фазах.
func (r *PostgresResourceRepository) ListResources(ctx context.Context, lotId string, phases ...models.ResourcePhase) ([]models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resource WHERE lot_id = $1`
	args := []interface{}{lotId}
	if len(phases) > 0 {
		query += ` AND phase = ANY($2)`
		args = append(args, pq.Array(statusStrings(phases)))
	}
	query += ` ORDER BY manifested_at, id`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err, "select resources")
	}
	defer rows.Close()

	resources := []models.Resource{}
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, storeErr(err, "scan resource")
		}
		resources = append(resources, *resource)
	}
	if err = rows.Err(); err != nil {
		return nil, storeErr(err, "iterate resources")
	}

	for i := range resources {
		if resources[i].CounterArguments, err = r.listCounterArguments(ctx, resources[i].ID); err != nil {
			return nil, err
		}
	}
	return resources, nil
}

// UpdateResource сохраняет фазу, сроки, текст и решение при совпадении фазы.
func (r *PostgresResourceRepository) UpdateResource(ctx context.Context, resource *models.Resource, expected models.ResourcePhase) error {
	var (
		decision      *string
		justification *string
		judgeId       *string
		judgedAt      *time.Time
	)
	if j := resource.Judgment; j != nil {
		d := string(j.Decision)
		decision, justification, judgeId, judgedAt = &d, &j.Justification, &j.JudgeID, &j.JudgedAt
	}
	tag, err := r.DB.Exec(ctx, `
		UPDATE resource SET phase = $2, submitted_at = $3, counter_argument_deadline = $4, content = $5,
			decision = $6, justification = $7, judge_id = $8, judged_at = $9
		WHERE id = $1 AND phase = $10`,
		resource.ID,
		resource.Phase,
		resource.SubmittedAt,
		resource.CounterArgumentDeadline,
		resource.Content,
		decision,
		justification,
		judgeId,
		judgedAt,
		expected)
	if err != nil {
		return storeErr(err, "update resource")
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetResource(ctx, resource.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: resource %s is no longer %s", models.ErrInvalidTransition, resource.ID, expected)
	}
	return nil
}

// AddCounterArgument добавляет контраргумент к жалобе.
func (r *PostgresResourceRepository) AddCounterArgument(ctx context.Context, arg *models.CounterArgument) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO counter_argument (id, resource_id, supplier_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		arg.ID, arg.ResourceID, arg.SupplierID, arg.Content, arg.CreatedAt)
	if err != nil {
		return storeErr(err, "insert counter argument")
	}
	return nil
}

func (r *PostgresResourceRepository) listCounterArguments(ctx context.Context, resourceId string) ([]models.CounterArgument, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, resource_id, supplier_id, content, created_at
		FROM counter_argument WHERE resource_id = $1 ORDER BY created_at, id`, resourceId)
	if err != nil {
		return nil, storeErr(err, "select counter arguments")
	}
	defer rows.Close()

	args := []models.CounterArgument{}
	for rows.Next() {
		var arg models.CounterArgument
		if err := rows.Scan(&arg.ID, &arg.ResourceID, &arg.SupplierID, &arg.Content, &arg.CreatedAt); err != nil {
			return nil, storeErr(err, "scan counter argument")
		}
		args = append(args, arg)
	}
	if err = rows.Err(); err != nil {
		return nil, storeErr(err, "iterate counter arguments")
	}
	return args, nil
}

func scanResource(row pgx.Row) (*models.Resource, error) {
	var (
		resource      models.Resource
		decision      *string
		justification *string
		judgeId       *string
		judgedAt      *time.Time
	)
	err := row.Scan(
		&resource.ID,
		&resource.LotID,
		&resource.SupplierID,
		&resource.Phase,
		&resource.ManifestedAt,
		&resource.SubmissionDeadline,
		&resource.SubmittedAt,
		&resource.CounterArgumentDeadline,
		&resource.Content,
		&decision,
		&justification,
		&judgeId,
		&judgedAt,
	)
	if err != nil {
		return nil, err
	}
	if decision != nil && judgedAt != nil {
		resource.Judgment = &models.Judgment{
			Decision: models.Decision(*decision),
			JudgedAt: *judgedAt,
		}
		if justification != nil {
			resource.Judgment.Justification = *justification
		}
		if judgeId != nil {
			resource.Judgment.JudgeID = *judgeId
		}
	}
	return &resource, nil
}
