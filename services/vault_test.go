// services/vault_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestVaultMoveIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, player1, testToken, 100)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.vault.Debit(tx, player1, player2, testToken, 150)
	})
	assert.ErrorIs(t, err, ErrSolvency)
	assert.Equal(t, int64(100), env.vault.Balance(player1, testToken, ""))
	assert.Equal(t, int64(0), env.vault.Balance(player2, testToken, ""))

	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		return env.vault.Debit(tx, player1, player2, testToken, 60)
	}))
	assert.Equal(t, int64(40), env.vault.Balance(player1, testToken, ""))
	assert.Equal(t, int64(60), env.vault.Balance(player2, testToken, ""))
}

func TestVaultRejectsNonPositiveAmounts(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, player1, testToken, 100)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.vault.Debit(tx, player1, player2, testToken, 0)
	})
	assert.ErrorIs(t, err, ErrValidation)

	err = env.db.Transaction(func(tx *gorm.DB) error {
		return env.vault.Credit(tx, player1, testToken, -5)
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVaultUnknownHolderHasNothingToMove(t *testing.T) {
	env := newTestEnv(t)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.vault.Debit(tx, outsider, player1, testToken, 1)
	})
	assert.ErrorIs(t, err, ErrSolvency)
}

func TestVaultTracksNFTUnitsPerID(t *testing.T) {
	env := newTestEnv(t)
	env.fundNFT(t, player1, testNFT, "7", 1)
	env.fundNFT(t, player1, testNFT, "42", 5)

	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		return env.vault.TransferUnique(tx, player1, player2, testNFT, "7")
	}))
	require.NoError(t, env.db.Transaction(func(tx *gorm.DB) error {
		return env.vault.TransferClass(tx, player1, player2, testNFT, "42", 2)
	}))

	assert.Equal(t, int64(0), env.vault.Balance(player1, testNFT, "7"))
	assert.Equal(t, int64(1), env.vault.Balance(player2, testNFT, "7"))
	assert.Equal(t, int64(3), env.vault.Balance(player1, testNFT, "42"))
	assert.Equal(t, int64(2), env.vault.Balance(player2, testNFT, "42"))

	// Ids are independent: draining one never touches the other.
	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.vault.TransferUnique(tx, player1, player2, testNFT, "7")
	})
	assert.ErrorIs(t, err, ErrSolvency)
}
