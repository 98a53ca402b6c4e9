package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adinsights/internal/domain"
	"adinsights/pkg/logger"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultUpsertBatch = 500

// PostgresFactRepository implements domain.FactRepository on gorm.
type PostgresFactRepository struct {
	db        *gorm.DB
	batchSize int
	logger    *logger.Logger
}

func NewPostgresFactRepository(db *gorm.DB, batchSize int, logger *logger.Logger) *PostgresFactRepository {
	if batchSize < 1 {
		batchSize = defaultUpsertBatch
	}
	return &PostgresFactRepository{db: db, batchSize: batchSize, logger: logger}
}

// Upsert writes records in bounded chunks inside one transaction,
// overwriting on (ad_id, date).
func (r *PostgresFactRepository) Upsert(ctx context.Context, records []domain.FactRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.upsert(ctx, tx, records)
	})
}

func (r *PostgresFactRepository) upsert(ctx context.Context, tx *gorm.DB, records []domain.FactRecord) error {
	records = latestPerKey(records)
	chunks := lo.Chunk(records, r.batchSize)
	for i, chunk := range chunks {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ad_id"}, {Name: "date"}},
			UpdateAll: true,
		}).Create(&chunk).Error
		if err != nil {
			return fmt.Errorf("upsert fact chunk %d: %w", i, err)
		}
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"count":  len(records),
		"chunks": len(chunks),
	}).Debug("Upserted fact records")
	return nil
}

// latestPerKey keeps the last record for each (ad_id, date). Postgres rejects
// an ON CONFLICT DO UPDATE statement that touches the same row twice.
func latestPerKey(records []domain.FactRecord) []domain.FactRecord {
	last := make(map[factKey]int, len(records))
	for i, rec := range records {
		last[factKey{adID: rec.AdID, date: rec.Date}] = i
	}
	if len(last) == len(records) {
		return records
	}
	return lo.Filter(records, func(rec domain.FactRecord, i int) bool {
		return last[factKey{adID: rec.AdID, date: rec.Date}] == i
	})
}

func (r *PostgresFactRepository) List(ctx context.Context, filter domain.FactFilter) ([]domain.FactRecord, error) {
	db := r.db.WithContext(ctx).Model(&domain.FactRecord{})
	if !filter.Range.Start.IsZero() {
		db = db.Where("date BETWEEN ? AND ?", filter.Range.StartDate(), filter.Range.EndDate())
	}
	if len(filter.AccountIDs) > 0 {
		db = db.Where("account_id IN ?", filter.AccountIDs)
	}
	if filter.CampaignID != "" {
		db = db.Where("campaign_id = ?", filter.CampaignID)
	}
	if filter.AdSetID != "" {
		db = db.Where("adset_id = ?", filter.AdSetID)
	}
	if filter.AdID != "" {
		db = db.Where("ad_id = ?", filter.AdID)
	}
	if len(filter.Levels) > 0 {
		db = db.Where("level IN ?", levelStrings(filter.Levels))
	}

	records := make([]domain.FactRecord, 0)
	if err := db.Order("date, ad_id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list fact records: %w", err)
	}
	return records, nil
}

// ReplaceLevels deletes the account's rows at levels inside window and
// upserts records in one transaction.
func (r *PostgresFactRepository) ReplaceLevels(ctx context.Context, accountID string, levels []domain.InsightLevel, window domain.DateRange, records []domain.FactRecord) (int64, error) {
	if len(levels) == 0 && len(records) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(levels) > 0 {
			res := tx.
				Where("account_id = ? AND level IN ? AND date BETWEEN ? AND ?", accountID, levelStrings(levels), window.StartDate(), window.EndDate()).
				Delete(&domain.FactRecord{})
			if res.Error != nil {
				return fmt.Errorf("delete %v rows for account %s: %w", levels, accountID, res.Error)
			}
			deleted = res.RowsAffected
		}
		if len(records) == 0 {
			return nil
		}
		return r.upsert(ctx, tx, records)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func levelStrings(levels []domain.InsightLevel) []string {
	return lo.Map(levels, func(l domain.InsightLevel, _ int) string { return string(l) })
}

// PostgresStructureRepository implements domain.StructureRepository on gorm.
type PostgresStructureRepository struct {
	db *gorm.DB
}

func NewPostgresStructureRepository(db *gorm.DB) *PostgresStructureRepository {
	return &PostgresStructureRepository{db: db}
}

func (r *PostgresStructureRepository) SaveStructure(ctx context.Context, accountID string, s *domain.Structure) error {
	if s == nil {
		return fmt.Errorf("nil structure for account %s", accountID)
	}
	// Each insert gets a fresh statement; a reused chain keeps the first model.
	upsert := func(value any) error {
		return r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(value).Error
	}

	if len(s.Campaigns) > 0 {
		if err := upsert(&s.Campaigns); err != nil {
			return fmt.Errorf("save campaigns: %w", err)
		}
	}
	if len(s.AdSets) > 0 {
		if err := upsert(&s.AdSets); err != nil {
			return fmt.Errorf("save ad sets: %w", err)
		}
	}
	if len(s.Ads) > 0 {
		if err := upsert(&s.Ads); err != nil {
			return fmt.Errorf("save ads: %w", err)
		}
	}
	return nil
}

func (r *PostgresStructureRepository) GetStructure(ctx context.Context, accountID string) (*domain.Structure, error) {
	var s domain.Structure
	db := r.db.WithContext(ctx)
	if err := db.Where("account_id = ?", accountID).Order("id").Find(&s.Campaigns).Error; err != nil {
		return nil, fmt.Errorf("load campaigns: %w", err)
	}
	if err := db.Where("account_id = ?", accountID).Order("id").Find(&s.AdSets).Error; err != nil {
		return nil, fmt.Errorf("load ad sets: %w", err)
	}
	if err := db.Where("account_id = ?", accountID).Order("id").Find(&s.Ads).Error; err != nil {
		return nil, fmt.Errorf("load ads: %w", err)
	}
	return &s, nil
}

// PostgresAccountRepository implements domain.AccountRepository on gorm.
type PostgresAccountRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPostgresAccountRepository(db *gorm.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db, now: time.Now}
}

func (r *PostgresAccountRepository) EnsureAccounts(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := r.now().UTC()
	accounts := lo.Map(ids, func(id string, _ int) domain.Account {
		return domain.Account{ID: id, Active: true, SyncStatus: domain.SyncPending, UpdatedAt: now}
	})
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&accounts).Error
}

func (r *PostgresAccountRepository) ListActive(ctx context.Context) ([]domain.Account, error) {
	accounts := make([]domain.Account, 0)
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list active accounts: %w", err)
	}
	return accounts, nil
}

func (r *PostgresAccountRepository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	var a domain.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

func (r *PostgresAccountRepository) SaveMetadata(ctx context.Context, meta domain.AccountMetadata) error {
	a := domain.Account{
		ID:         meta.ID,
		Name:       meta.Name,
		Currency:   meta.Currency,
		Timezone:   meta.Timezone,
		Status:     meta.Status,
		Active:     true,
		SyncStatus: domain.SyncPending,
		UpdatedAt:  r.now().UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "currency", "timezone", "status", "updated_at"}),
	}).Create(&a).Error
}

func (r *PostgresAccountRepository) UpdateSyncStatus(ctx context.Context, id string, status domain.SyncStatus, syncErr string, at time.Time) error {
	updates := map[string]any{
		"sync_status": string(status),
		"last_error":  syncErr,
		"updated_at":  at,
	}
	if status == domain.SyncCompleted {
		updates["last_synced_at"] = at
	}
	res := r.db.WithContext(ctx).Model(&domain.Account{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
