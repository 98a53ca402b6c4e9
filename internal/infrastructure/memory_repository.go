package infrastructure

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"adinsights/internal/domain"
	"adinsights/pkg/logger"
)

type factKey struct {
	adID string
	date string
}

// MemoryFactRepository implements domain.FactRepository in memory.
type MemoryFactRepository struct {
	data   map[factKey]domain.FactRecord
	mutex  sync.RWMutex
	logger *logger.Logger
}

func NewMemoryFactRepository(logger *logger.Logger) *MemoryFactRepository {
	return &MemoryFactRepository{
		data:   make(map[factKey]domain.FactRecord),
		logger: logger,
	}
}

// Upsert overwrites by (AdID, Date); the last record for a key wins. Stored
// records share no pointers with the caller's.
func (r *MemoryFactRepository) Upsert(ctx context.Context, records []domain.FactRecord) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.put(records)

	r.logger.WithContext(ctx).WithField("count", len(records)).Debug("Upserted fact records in memory")
	return nil
}

func (r *MemoryFactRepository) put(records []domain.FactRecord) {
	for _, rec := range records {
		r.data[factKey{adID: rec.AdID, date: rec.Date}] = rec.Clone()
	}
}

// List returns matching records ordered by date, then ad.
func (r *MemoryFactRepository) List(ctx context.Context, filter domain.FactFilter) ([]domain.FactRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]domain.FactRecord, 0)
	for _, rec := range r.data {
		if filter.Matches(&rec) {
			out = append(out, rec.Clone())
		}
	}

	slices.SortFunc(out, func(a, b domain.FactRecord) int {
		if c := cmp.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.AdID, b.AdID)
	})
	return out, nil
}

// ReplaceLevels deletes and upserts under one lock, so readers never see the
// window without either generation of rows.
func (r *MemoryFactRepository) ReplaceLevels(ctx context.Context, accountID string, levels []domain.InsightLevel, window domain.DateRange, records []domain.FactRecord) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var deleted int64
	if len(levels) > 0 {
		filter := domain.FactFilter{Range: window, AccountIDs: []string{accountID}, Levels: levels}
		for key, rec := range r.data {
			if filter.Matches(&rec) {
				delete(r.data, key)
				deleted++
			}
		}
	}
	r.put(records)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"account_id": accountID,
		"levels":     levels,
		"window":     window.String(),
		"deleted":    deleted,
		"count":      len(records),
	}).Debug("Replaced fact records in memory")
	return deleted, nil
}

// MemoryStructureRepository implements domain.StructureRepository in memory.
type MemoryStructureRepository struct {
	data  map[string]domain.Structure
	mutex sync.RWMutex
}

func NewMemoryStructureRepository() *MemoryStructureRepository {
	return &MemoryStructureRepository{data: make(map[string]domain.Structure)}
}

func (r *MemoryStructureRepository) SaveStructure(_ context.Context, accountID string, s *domain.Structure) error {
	if s == nil {
		return fmt.Errorf("nil structure for account %s", accountID)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.data[accountID] = domain.Structure{
		Campaigns: slices.Clone(s.Campaigns),
		AdSets:    slices.Clone(s.AdSets),
		Ads:       slices.Clone(s.Ads),
	}
	return nil
}

func (r *MemoryStructureRepository) GetStructure(_ context.Context, accountID string) (*domain.Structure, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	s, ok := r.data[accountID]
	if !ok {
		return nil, fmt.Errorf("structure for account %s: %w", accountID, domain.ErrNotFound)
	}
	return &s, nil
}

// MemoryAccountRepository implements domain.AccountRepository in memory.
type MemoryAccountRepository struct {
	data  map[string]domain.Account
	mutex sync.RWMutex
	now   func() time.Time
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		data: make(map[string]domain.Account),
		now:  time.Now,
	}
}

// EnsureAccounts registers unknown ids as active, pending accounts. Known
// accounts are left untouched.
func (r *MemoryAccountRepository) EnsureAccounts(_ context.Context, ids []string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, id := range ids {
		if _, ok := r.data[id]; ok {
			continue
		}
		r.data[id] = domain.Account{
			ID:         id,
			Active:     true,
			SyncStatus: domain.SyncPending,
			UpdatedAt:  r.now().UTC(),
		}
	}
	return nil
}

func (r *MemoryAccountRepository) ListActive(_ context.Context) ([]domain.Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]domain.Account, 0, len(r.data))
	for _, a := range r.data {
		if a.Active {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.Account) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *MemoryAccountRepository) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	a, ok := r.data[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

func (r *MemoryAccountRepository) SaveMetadata(_ context.Context, meta domain.AccountMetadata) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	a, ok := r.data[meta.ID]
	if !ok {
		a = domain.Account{ID: meta.ID, Active: true, SyncStatus: domain.SyncPending}
	}
	a.Name = meta.Name
	a.Currency = meta.Currency
	a.Timezone = meta.Timezone
	a.Status = meta.Status
	a.UpdatedAt = r.now().UTC()
	r.data[meta.ID] = a
	return nil
}

func (r *MemoryAccountRepository) UpdateSyncStatus(_ context.Context, id string, status domain.SyncStatus, syncErr string, at time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	a, ok := r.data[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, domain.ErrNotFound)
	}
	a.SyncStatus = status
	a.LastError = syncErr
	a.UpdatedAt = at
	if status == domain.SyncCompleted {
		a.LastSyncedAt = &at
	}
	r.data[id] = a
	return nil
}
