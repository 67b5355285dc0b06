// services/testutil_test.go
package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tournament-escrow-system/models"
)

// Fixed test identities, already in normalized (lowercase) form.
const (
	ownerAddr      = "0x00000000000000000000000000000000000000a1"
	maintainerAddr = "0x00000000000000000000000000000000000000b2"
	escrowVault    = "0x00000000000000000000000000000000000000e5"
	registryAddr   = "0x00000000000000000000000000000000000000c3"
	creatorAddr    = "0x0000000000000000000000000000000000000d01"
	tCreatorAddr   = "0x0000000000000000000000000000000000000d02"
	player1        = "0x0000000000000000000000000000000000000a11"
	player2        = "0x0000000000000000000000000000000000000a12"
	winner1        = "0x0000000000000000000000000000000000000e21"
	winner2        = "0x0000000000000000000000000000000000000e22"
	feeSink        = "0x00000000000000000000000000000000000000fe"
	outsider       = "0x0000000000000000000000000000000000000bad"
	testToken      = "0x0000000000000000000000000000000000010001"
	testNFT        = "0x0000000000000000000000000000000000020001"
)

type testEnv struct {
	db        *gorm.DB
	vault     *LedgerVault
	addresses *AddressBookService
	registry  *GameRegistryService
	escrow    *EscrowService
	claims    *ClaimService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.AddressBookEntry{},
		&models.Game{},
		&models.Tournament{},
		&models.DepositToken{},
		&models.DistributableToken{},
		&models.TokenBucket{},
		&models.NFTBucket{},
		&models.UsedClaim{},
		&models.PlatformFee{},
		&models.SweepRecord{},
		&models.SweepTotal{},
		&models.EscrowState{},
		&models.VaultBalance{},
	))

	addresses := NewAddressBookService(db)
	vault := NewLedgerVault(db)
	registry := NewGameRegistryService(db, addresses)
	escrow := NewEscrowService(db, vault, addresses)
	claims := NewClaimService(db, vault, addresses, registry, escrow)
	registry.Escrow = escrow
	escrow.Registry = registry

	require.NoError(t, addresses.Set(ownerAddr, models.RoleOwner, ownerAddr))
	require.NoError(t, addresses.Set(ownerAddr, models.RoleMaintainer, maintainerAddr))
	require.NoError(t, addresses.Set(ownerAddr, models.RoleEscrow, escrowVault))
	require.NoError(t, addresses.Set(ownerAddr, models.RoleRegistry, registryAddr))

	return &testEnv{
		db:        db,
		vault:     vault,
		addresses: addresses,
		registry:  registry,
		escrow:    escrow,
		claims:    claims,
	}
}

// fund mints a fungible balance into the ledger the way the sync worker would
// mirror an on-chain deposit.
func (e *testEnv) fund(t *testing.T, holder, token string, amount int64) {
	t.Helper()
	require.NoError(t, e.db.Transaction(func(tx *gorm.DB) error {
		return e.vault.Credit(tx, holder, token, amount)
	}))
}

func (e *testEnv) fundNFT(t *testing.T, holder, nft, tokenID string, amount int64) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.VaultBalance{
		Holder:  holder,
		Token:   nft,
		TokenID: tokenID,
		Amount:  amount,
	}).Error)
}

// addGame registers a game as the owner and returns its id.
func (e *testEnv) addGame(t *testing.T, name string, baseFee int64) uint {
	t.Helper()
	gid, err := e.registry.AddGame(ownerAddr, name, creatorAddr, baseFee)
	require.NoError(t, err)
	return gid
}
