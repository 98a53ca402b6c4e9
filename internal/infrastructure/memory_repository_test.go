package infrastructure

import (
	"context"
	"testing"
	"time"

	"adinsights/internal/domain"
	"adinsights/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFactRepository_UpsertLastWriteWins(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFactRepository(logger.NewNop())

	require.NoError(t, repo.Upsert(ctx, []domain.FactRecord{
		testRecord("1", "a1", "2024-03-01", domain.LevelAd, 10),
		testRecord("1", "a1", "2024-03-01", domain.LevelAd, 20),
	}))
	require.NoError(t, repo.Upsert(ctx, []domain.FactRecord{
		testRecord("1", "a1", "2024-03-01", domain.LevelAd, 30),
	}))

	records, err := repo.List(ctx, domain.FactFilter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 30.0, records[0].Spend)
}

func TestMemoryFactRepository_ListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFactRepository(logger.NewNop())
	require.NoError(t, repo.Upsert(ctx, []domain.FactRecord{
		testRecord("1", "b", "2024-03-02", domain.LevelAd, 1),
		testRecord("1", "a", "2024-03-02", domain.LevelAd, 2),
		testRecord("1", "c", "2024-03-01", domain.LevelAd, 3),
		testRecord("2", "d", "2024-03-01", domain.LevelAd, 4),
		testRecord("1", "e", "2024-02-01", domain.LevelAd, 5),
	}))

	records, err := repo.List(ctx, domain.FactFilter{
		Range:      testWindow(t, "2024-03-01", "2024-03-07"),
		AccountIDs: []string{"1"},
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.AdID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestMemoryFactRepository_ListEmptyIsNotNil(t *testing.T) {
	records, err := NewMemoryFactRepository(logger.NewNop()).List(context.Background(), domain.FactFilter{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestMemoryFactRepository_ReplaceLevels(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFactRepository(logger.NewNop())
	require.NoError(t, repo.Upsert(ctx, []domain.FactRecord{
		testRecord("1", "a1", "2024-03-01", domain.LevelAd, 1),
		testRecord("1", "campaign:c1:ad", "2024-03-01", domain.LevelCampaign, 1),
		testRecord("1", "account:1:ad", "2024-03-02", domain.LevelAccount, 1),
		testRecord("1", "account:1:ad", "2024-02-01", domain.LevelAccount, 1),
		testRecord("2", "account:2:ad", "2024-03-01", domain.LevelAccount, 1),
	}))

	deleted, err := repo.ReplaceLevels(ctx, "1",
		[]domain.InsightLevel{domain.LevelCampaign, domain.LevelAccount},
		testWindow(t, "2024-03-01", "2024-03-03"),
		[]domain.FactRecord{
			testRecord("1", "a1", "2024-03-01", domain.LevelAd, 5),
			testRecord("1", "a2", "2024-03-02", domain.LevelAd, 6),
		})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := repo.List(ctx, domain.FactFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 4)
	ads, err := repo.List(ctx, domain.FactFilter{AccountIDs: []string{"1"}, Levels: []domain.InsightLevel{domain.LevelAd}})
	require.NoError(t, err)
	require.Len(t, ads, 2)
	assert.Equal(t, 5.0, ads[0].Spend)
}

func TestMemoryFactRepository_ReplaceWithoutLevelsOnlyUpserts(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFactRepository(logger.NewNop())
	require.NoError(t, repo.Upsert(ctx, []domain.FactRecord{
		testRecord("1", "account:1:ad", "2024-03-01", domain.LevelAccount, 1),
	}))

	deleted, err := repo.ReplaceLevels(ctx, "1", nil, testWindow(t, "2024-03-01", "2024-03-03"),
		[]domain.FactRecord{testRecord("1", "a1", "2024-03-01", domain.LevelAd, 2)})
	require.NoError(t, err)
	assert.Zero(t, deleted)

	remaining, err := repo.List(ctx, domain.FactFilter{})
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestMemoryFactRepository_StoredRowsDoNotAlias(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryFactRepository(logger.NewNop())

	rec := testRecord("1", "a1", "2024-03-01", domain.LevelAd, 10)
	rec.Purchases = domain.Int64Ptr(3)
	require.NoError(t, repo.Upsert(ctx, []domain.FactRecord{rec}))
	*rec.Purchases = 99

	listed, err := repo.List(ctx, domain.FactFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, int64(3), domain.Int64Value(listed[0].Purchases))

	*listed[0].Purchases = 42
	again, err := repo.List(ctx, domain.FactFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), domain.Int64Value(again[0].Purchases))
}

func TestMemoryStructureRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStructureRepository()

	_, err := repo.GetStructure(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	s := &domain.Structure{Ads: []domain.Ad{{ID: "a1"}}}
	require.NoError(t, repo.SaveStructure(ctx, "1", s))
	s.Ads[0].ID = "mutated"

	got, err := repo.GetStructure(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.Ads[0].ID)

	assert.Error(t, repo.SaveStructure(ctx, "1", nil))
}

func TestMemoryAccountRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()

	require.NoError(t, repo.EnsureAccounts(ctx, []string{"2", "1"}))
	require.NoError(t, repo.SaveMetadata(ctx, domain.AccountMetadata{ID: "1", Name: "Shop", Currency: "EUR"}))
	require.NoError(t, repo.EnsureAccounts(ctx, []string{"1"}))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "1", active[0].ID)
	assert.Equal(t, "Shop", active[0].Name, "ensure keeps known accounts")
	assert.Equal(t, domain.SyncPending, active[1].SyncStatus)

	at := time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.UpdateSyncStatus(ctx, "1", domain.SyncFailed, "boom", at))
	a, err := repo.GetAccount(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.SyncFailed, a.SyncStatus)
	assert.Equal(t, "boom", a.LastError)
	assert.Nil(t, a.LastSyncedAt)

	require.NoError(t, repo.UpdateSyncStatus(ctx, "1", domain.SyncCompleted, "", at))
	a, err = repo.GetAccount(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, a.LastSyncedAt)
	assert.Equal(t, at, *a.LastSyncedAt)
	assert.Empty(t, a.LastError)

	assert.ErrorIs(t, repo.UpdateSyncStatus(ctx, "404", domain.SyncCompleted, "", at), domain.ErrNotFound)
	_, err = repo.GetAccount(ctx, "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryAccountRepository_SaveMetadataCreates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()

	require.NoError(t, repo.SaveMetadata(ctx, domain.AccountMetadata{ID: "7", Name: "New"}))

	a, err := repo.GetAccount(ctx, "7")
	require.NoError(t, err)
	assert.True(t, a.Active)
	assert.Equal(t, "New", a.Name)
}
