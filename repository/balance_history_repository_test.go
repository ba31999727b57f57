package repository

import (
	"context"
	"testing"
	"time"

	"watchparty/domain/entities"
	"watchparty/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceHistoryRepository_Record(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewBalanceHistoryRepository(testDB.DB)
	ctx := context.Background()

	t.Run("successful record creation", func(t *testing.T) {
		history := testutil.CreateTestBalanceHistory(100, entities.PublicScopeKey)

		require.NoError(t, repo.Record(ctx, history))
		assert.NotZero(t, history.ID)
		assert.False(t, history.CreatedAt.IsZero())
	})

	t.Run("record with related wager", func(t *testing.T) {
		wagerID := "7c9e6679-7425-40de-944b-e07fc1f90ae7"
		history := testutil.CreateTestBalanceHistoryWithAmounts(100, "party:finals", 900, 1100, 200, entities.TransactionTypeWagerPayout)
		history.RelatedID = &wagerID
		history.TransactionMetadata = map[string]any{
			"wager_kind": "discrete_choice",
			"method":     "equal_split",
		}

		require.NoError(t, repo.Record(ctx, history))

		stored, err := repo.GetByUser(ctx, 100, "party:finals", 10)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		require.NotNil(t, stored[0].RelatedID)
		assert.Equal(t, wagerID, *stored[0].RelatedID)
		assert.Equal(t, entities.TransactionTypeWagerPayout, stored[0].TransactionType)
		assert.Equal(t, "equal_split", stored[0].TransactionMetadata["method"])
	})

	t.Run("record with nil metadata", func(t *testing.T) {
		history := testutil.CreateTestBalanceHistory(200, entities.PublicScopeKey)
		history.TransactionMetadata = nil

		require.NoError(t, repo.Record(ctx, history))
		assert.NotZero(t, history.ID)
	})

	t.Run("inconsistent entry is rejected", func(t *testing.T) {
		history := testutil.CreateTestBalanceHistoryWithAmounts(300, entities.PublicScopeKey, 1000, 950, -100, entities.TransactionTypeWagerStake)

		assert.Error(t, repo.Record(ctx, history))
		assert.Zero(t, history.ID)
	})
}

func TestBalanceHistoryRepository_GetByUser(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewBalanceHistoryRepository(testDB.DB)
	ctx := context.Background()

	t.Run("no history for user", func(t *testing.T) {
		histories, err := repo.GetByUser(ctx, 100, entities.PublicScopeKey, 10)
		require.NoError(t, err)
		assert.Empty(t, histories)
	})

	t.Run("scoped and newest first", func(t *testing.T) {
		for _, change := range []int64{-100, -200, 300} {
			entry := testutil.CreateTestBalanceHistoryWithAmounts(100, entities.PublicScopeKey, 1000, 1000+change, change, entities.TransactionTypeAdjustment)
			require.NoError(t, repo.Record(ctx, entry))
		}
		require.NoError(t, repo.Record(ctx, testutil.CreateTestBalanceHistory(100, "party:finals")))
		require.NoError(t, repo.Record(ctx, testutil.CreateTestBalanceHistory(200, entities.PublicScopeKey)))

		histories, err := repo.GetByUser(ctx, 100, entities.PublicScopeKey, 10)
		require.NoError(t, err)
		require.Len(t, histories, 3)
		assert.Equal(t, int64(300), histories[0].ChangeAmount)
		assert.Equal(t, int64(-100), histories[2].ChangeAmount)

		limited, err := repo.GetByUser(ctx, 100, entities.PublicScopeKey, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})
}

func TestBalanceHistoryRepository_GetByDateRange(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	repo := NewBalanceHistoryRepository(testDB.DB)
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, testutil.CreateTestBalanceHistory(100, entities.PublicScopeKey)))
	require.NoError(t, repo.Record(ctx, testutil.CreateTestBalanceHistory(100, "party:finals")))

	now := time.Now()
	histories, err := repo.GetByDateRange(ctx, 100, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, histories, 2)

	histories, err = repo.GetByDateRange(ctx, 100, now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, histories)
}
