// workers/vault_sync_worker_test.go
package workers

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tournament-escrow-system/models"
)

func newSyncTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.VaultBalance{}, &models.VaultMirror{}))
	return db
}

func liveAmount(t *testing.T, db *gorm.DB, holder, token, tokenID string) int64 {
	t.Helper()

	var balance models.VaultBalance
	err := db.Where("holder = ? AND token = ? AND token_id = ?", holder, token, tokenID).
		First(&balance).Error
	require.NoError(t, err)
	return balance.Amount
}

func TestSyncBalancesAppliesDeltasNotSnapshots(t *testing.T) {
	db := newSyncTestDB(t)
	holder := "0x0000000000000000000000000000000000000a11"
	token := "0x0000000000000000000000000000000000010001"

	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	t3 := t2.Add(time.Minute)

	applied, err := SyncBalances(db, []models.VaultBalance{
		{Holder: holder, Token: token, Amount: 100, UpdatedAt: t1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(100), liveAmount(t, db, holder, token, ""))

	// The escrow spends 60 of the holder's balance between polls.
	require.NoError(t, db.Model(&models.VaultBalance{}).
		Where("holder = ? AND token = ? AND token_id = ?", holder, token, "").
		Update("amount", 40).Error)

	// Re-reporting the already-applied snapshot must not resurrect the spend.
	applied, err = SyncBalances(db, []models.VaultBalance{
		{Holder: holder, Token: token, Amount: 100, UpdatedAt: t1},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Equal(t, int64(40), liveAmount(t, db, holder, token, ""))

	// A newer on-chain deposit of 20 lands as a delta on top of the local 40.
	applied, err = SyncBalances(db, []models.VaultBalance{
		{Holder: holder, Token: token, Amount: 120, UpdatedAt: t2},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(60), liveAmount(t, db, holder, token, ""))

	// An on-chain withdrawal surfaces as a negative delta.
	applied, err = SyncBalances(db, []models.VaultBalance{
		{Holder: holder, Token: token, Amount: 90, UpdatedAt: t3},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(30), liveAmount(t, db, holder, token, ""))
}

func TestSyncBalancesCreatesUnknownHolders(t *testing.T) {
	db := newSyncTestDB(t)
	nft := "0x0000000000000000000000000000000000020001"

	applied, err := SyncBalances(db, []models.VaultBalance{
		{Holder: "0x0000000000000000000000000000000000000a12", Token: nft, TokenID: "7", Amount: 1, UpdatedAt: time.Now().UTC()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(1), liveAmount(t, db, "0x0000000000000000000000000000000000000a12", nft, "7"))

	var mirror models.VaultMirror
	require.NoError(t, db.Where("token_id = ?", "7").First(&mirror).Error)
	assert.Equal(t, int64(1), mirror.Amount)
}
