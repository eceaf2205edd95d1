package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/senyabanana/licitacao-service/internal/models"

	"gopkg.in/yaml.v3"
)

// Seed - начальные данные процессов: закупки, их лоты и участники.
type Seed struct {
	Tenders []SeedTender `yaml:"tenders"`
}

// SeedTender описывает процесс в файле начальных данных.
type SeedTender struct {
	ID          string              `yaml:"id"`
	Number      string              `yaml:"number"`
	Title       string              `yaml:"title"`
	AgencyID    string              `yaml:"agency_id"`
	Status      models.TenderStatus `yaml:"status"`
	DisputeMode models.DisputeMode  `yaml:"dispute_mode"`
	Lots        []SeedLot           `yaml:"lots"`
}

// SeedLot описывает лот и его участников.
type SeedLot struct {
	ID             string           `yaml:"id"`
	Number         string           `yaml:"number"`
	Description    string           `yaml:"description"`
	EstimatedValue float64          `yaml:"estimated_value"`
	Criterion      models.Criterion `yaml:"criterion"`
	Suppliers      []SeedSupplier   `yaml:"suppliers"`
}

// SeedSupplier описывает участие компании в лоте.
type SeedSupplier struct {
	ID          string `yaml:"id"`
	AccountID   string `yaml:"account_id"`
	DisplayName string `yaml:"display_name"`
	Company     string `yaml:"company"`
}

// LoadSeed читает файл начальных данных.
func LoadSeed(path string) (Seed, error) {
	var seed Seed
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, fmt.Errorf("read seed: %w", err)
	}
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return seed, fmt.Errorf("parse seed: %w", err)
	}
	return seed, nil
}

// Apply записывает начальные данные в хранилище. Уже существующие записи пропускаются,
// поэтому повторный запуск безопасен. Возвращает число созданных процессов.
func (s Seed) Apply(ctx context.Context, store Store, now time.Time) (int, error) {
	created := 0
	for _, t := range s.Tenders {
		tender := &models.Tender{
			ID:          t.ID,
			Number:      t.Number,
			Title:       t.Title,
			AgencyID:    t.AgencyID,
			Status:      t.Status,
			DisputeMode: t.DisputeMode,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if tender.Status == "" {
			tender.Status = models.TenderDraft
		}
		if tender.DisputeMode == "" {
			tender.DisputeMode = models.DisputeOpen
		}
		if !tender.Status.Valid() {
			return created, fmt.Errorf("%w: tender %s has unknown status %q", models.ErrInvalidInput, t.ID, t.Status)
		}
		err := store.Tenders.CreateTender(ctx, tender)
		switch {
		case errors.Is(err, models.ErrDuplicate):
			continue
		case err != nil:
			return created, err
		}
		created++

		for _, l := range t.Lots {
			lot := &models.Lot{
				ID:             l.ID,
				TenderID:       t.ID,
				Number:         l.Number,
				Description:    l.Description,
				EstimatedValue: l.EstimatedValue,
				Criterion:      l.Criterion,
				Status:         models.LotWaiting,
				ResourceStage:  models.StageNotStarted,
				UpdatedAt:      now,
			}
			if lot.Criterion == "" {
				lot.Criterion = models.LowestPrice
			}
			if !lot.Criterion.Valid() {
				return created, fmt.Errorf("%w: lot %s has unknown criterion %q", models.ErrInvalidInput, l.ID, l.Criterion)
			}
			if err = store.Lots.CreateLot(ctx, lot); err != nil {
				return created, err
			}
			for _, sp := range l.Suppliers {
				if err = store.Lots.CreateSupplier(ctx, &models.Supplier{
					ID:          sp.ID,
					LotID:       l.ID,
					AccountID:   sp.AccountID,
					DisplayName: sp.DisplayName,
					Company:     sp.Company,
					Status:      models.SupplierClassified,
				}); err != nil {
					return created, err
				}
			}
		}
	}
	return created, nil
}
