// services/escrow_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tournament-escrow-system/models"
)

func TestDepositRequiresEnabledToken(t *testing.T) {
	env := newTestEnv(t)
	gid := env.addGame(t, "Arena", 0)
	tid, err := env.registry.CreateTournament(ownerAddr, gid, "t", 0, 0)
	require.NoError(t, err)

	env.fund(t, player1, testToken, 10000)

	err = env.escrow.Deposit(player1, gid, tid, testToken)
	assert.ErrorIs(t, err, ErrPolicy)

	require.NoError(t, env.registry.UpdateDepositTokenAmount(ownerAddr, gid, tid, testToken, 10000))
	require.NoError(t, env.escrow.Deposit(player1, gid, tid, testToken))

	assert.Equal(t, int64(0), env.vault.Balance(player1, testToken, ""))
	assert.Equal(t, int64(10000), env.vault.Balance(escrowVault, testToken, ""))

	bucket, err := env.escrow.GetBucket(gid, tid, testToken)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), bucket.TotalUserDeposit)
}

func TestDepositRoutesPlatformFeeSlice(t *testing.T) {
	env := newTestEnv(t)
	gid := env.addGame(t, "Arena", 0)
	tid, err := env.registry.CreateTournament(ownerAddr, gid, "t", 0, 0)
	require.NoError(t, err)
	require.NoError(t, env.registry.UpdateDepositTokenAmount(ownerAddr, gid, tid, testToken, 10000))
	require.NoError(t, env.escrow.UpdatePlatformFee(ownerAddr, feeSink, 100))

	env.fund(t, player1, testToken, 10000)
	require.NoError(t, env.escrow.Deposit(player1, gid, tid, testToken))

	// 100‰ goes to the fee recipient up front, only the remainder is escrowed.
	assert.Equal(t, int64(1000), env.vault.Balance(feeSink, testToken, ""))
	assert.Equal(t, int64(9000), env.vault.Balance(escrowVault, testToken, ""))

	bucket, err := env.escrow.GetBucket(gid, tid, testToken)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), bucket.TotalUserDeposit)
}

func TestDepositRejectedWhilePausedOrDeprecated(t *testing.T) {
	env := newTestEnv(t)
	gid := env.addGame(t, "Arena", 0)
	tid, err := env.registry.CreateTournament(ownerAddr, gid, "t", 0, 0)
	require.NoError(t, err)
	require.NoError(t, env.registry.UpdateDepositTokenAmount(ownerAddr, gid, tid, testToken, 100))
	env.fund(t, player1, testToken, 1000)

	require.NoError(t, env.escrow.Pause(ownerAddr))
	err = env.escrow.Deposit(player1, gid, tid, testToken)
	assert.ErrorIs(t, err, ErrPaused)

	require.NoError(t, env.escrow.Unpause(ownerAddr))
	require.NoError(t, env.escrow.Deposit(player1, gid, tid, testToken))

	require.NoError(t, env.registry.RemoveGame(ownerAddr, gid))
	err = env.escrow.Deposit(player1, gid, tid, testToken)
	assert.ErrorIs(t, err, ErrPolicy)
}

func TestPrizeDepositAndWithdrawRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	gid := env.addGame(t, "Arena", 0)
	tid, err := env.registry.CreateTournament(ownerAddr, gid, "t", 0, 0)
	require.NoError(t, err)

	env.fund(t, tCreatorAddr, testToken, 5000)

	// Prize deposits require the token on the game's allow-list.
	err = env.escrow.DepositPrize(ownerAddr, tCreatorAddr, gid, tid, testToken, 5000)
	assert.ErrorIs(t, err, ErrPolicy)

	require.NoError(t, env.registry.UpdateDistributableToken(ownerAddr, gid, testToken, true))

	// Only the owner or the registry may push prize deposits.
	err = env.escrow.DepositPrize(outsider, tCreatorAddr, gid, tid, testToken, 5000)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, env.escrow.DepositPrize(ownerAddr, tCreatorAddr, gid, tid, testToken, 5000))
	assert.Equal(t, int64(5000), env.vault.Balance(escrowVault, testToken, ""))

	// Withdrawals are bounded by the undistributed prize pool.
	err = env.escrow.WithdrawPrize(ownerAddr, tCreatorAddr, gid, tid, testToken, 6000)
	assert.ErrorIs(t, err, ErrSolvency)

	require.NoError(t, env.escrow.WithdrawPrize(ownerAddr, tCreatorAddr, gid, tid, testToken, 5000))
	assert.Equal(t, int64(5000), env.vault.Balance(tCreatorAddr, testToken, ""))
	assert.Equal(t, int64(0), env.vault.Balance(escrowVault, testToken, ""))

	bucket, err := env.escrow.GetBucket(gid, tid, testToken)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bucket.TotalPrizeDeposit)
}

func TestUniqueNFTPrizeLifecycle(t *testing.T) {
	env := newTestEnv(t)
	gid := env.addGame(t, "Arena", 0)
	tid, err := env.registry.CreateTournament(ownerAddr, gid, "t", 0, 0)
	require.NoError(t, err)
	require.NoError(t, env.registry.UpdateDistributableToken(ownerAddr, gid, testNFT, true))

	env.fundNFT(t, tCreatorAddr, testNFT, "7", 1)

	// Unique deposits must carry amount 1.
	err = env.escrow.DepositNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeUnique, []string{"7"}, []int64{2})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, env.escrow.DepositNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeUnique, []string{"7"}, []int64{1}))
	assert.Equal(t, int64(1), env.vault.Balance(escrowVault, testNFT, "7"))

	// The same unique id cannot be escrowed twice while in custody.
	env.fundNFT(t, player1, testNFT, "7", 1)
	err = env.escrow.DepositNFTPrize(ownerAddr, player1, gid, tid, testNFT, models.NFTTypeUnique, []string{"7"}, []int64{1})
	assert.ErrorIs(t, err, ErrValidation)

	// Withdraw releases the slot; a later re-deposit is legal again.
	require.NoError(t, env.escrow.WithdrawNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeUnique, []string{"7"}, []int64{1}))
	assert.Equal(t, int64(1), env.vault.Balance(tCreatorAddr, testNFT, "7"))

	require.NoError(t, env.escrow.DepositNFTPrize(ownerAddr, player1, gid, tid, testNFT, models.NFTTypeUnique, []string{"7"}, []int64{1}))
}

func TestFungibleNFTPrizeAccumulates(t *testing.T) {
	env := newTestEnv(t)
	gid := env.addGame(t, "Arena", 0)
	tid, err := env.registry.CreateTournament(ownerAddr, gid, "t", 0, 0)
	require.NoError(t, err)
	require.NoError(t, env.registry.UpdateDistributableToken(ownerAddr, gid, testNFT, true))

	env.fundNFT(t, tCreatorAddr, testNFT, "42", 8)

	require.NoError(t, env.escrow.DepositNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeFungible, []string{"42"}, []int64{5}))
	require.NoError(t, env.escrow.DepositNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeFungible, []string{"42"}, []int64{3}))

	bucket, err := env.escrow.GetNFTBucket(gid, tid, testNFT, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(8), bucket.Deposited)

	// An id keeps the type it was first tracked under.
	env.fundNFT(t, player1, testNFT, "42", 1)
	err = env.escrow.DepositNFTPrize(ownerAddr, player1, gid, tid, testNFT, models.NFTTypeUnique, []string{"42"}, []int64{1})
	assert.ErrorIs(t, err, ErrValidation)

	err = env.escrow.WithdrawNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeFungible, []string{"42"}, []int64{9})
	assert.ErrorIs(t, err, ErrSolvency)

	require.NoError(t, env.escrow.WithdrawNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeFungible, []string{"42"}, []int64{3}))
	assert.Equal(t, int64(3), env.vault.Balance(tCreatorAddr, testNFT, "42"))
}

func TestWithdrawNFTPrizeRejectsTypeMismatch(t *testing.T) {
	env := newTestEnv(t)
	gid := env.addGame(t, "Arena", 0)
	tid, err := env.registry.CreateTournament(ownerAddr, gid, "t", 0, 0)
	require.NoError(t, err)
	require.NoError(t, env.registry.UpdateDistributableToken(ownerAddr, gid, testNFT, true))

	env.fundNFT(t, tCreatorAddr, testNFT, "42", 5)
	require.NoError(t, env.escrow.DepositNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeFungible, []string{"42"}, []int64{5}))

	// Declaring unique against a fungible-class id must not move anything:
	// before the type check it would transfer one vault unit but decrement
	// the bucket by the declared amount, desyncing ledger and vault.
	err = env.escrow.WithdrawNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeUnique, []string{"42"}, []int64{3})
	assert.ErrorIs(t, err, ErrValidation)

	bucket, err := env.escrow.GetNFTBucket(gid, tid, testNFT, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(5), bucket.Deposited)
	assert.Equal(t, int64(0), bucket.Distributed)
	assert.Equal(t, int64(5), env.vault.Balance(escrowVault, testNFT, "42"))

	// The reverse mismatch is rejected the same way.
	env.fundNFT(t, tCreatorAddr, testNFT, "7", 1)
	require.NoError(t, env.escrow.DepositNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeUnique, []string{"7"}, []int64{1}))
	err = env.escrow.WithdrawNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeFungible, []string{"7"}, []int64{1})
	assert.ErrorIs(t, err, ErrValidation)

	// Unique withdrawals carry exactly one unit.
	err = env.escrow.WithdrawNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeUnique, []string{"7"}, []int64{3})
	assert.ErrorIs(t, err, ErrValidation)
	require.NoError(t, env.escrow.WithdrawNFTPrize(ownerAddr, tCreatorAddr, gid, tid, testNFT, models.NFTTypeUnique, []string{"7"}, []int64{1}))
}

func TestSweepRequiresRecoveryMode(t *testing.T) {
	env := newTestEnv(t)
	env.fund(t, escrowVault, testToken, 9000)

	err := env.escrow.Sweep(ownerAddr, []string{testToken}, []int64{9000}, feeSink)
	assert.ErrorIs(t, err, ErrPolicy)

	require.NoError(t, env.escrow.EnterRecoveryMode(ownerAddr))

	err = env.escrow.Sweep(outsider, []string{testToken}, []int64{9000}, feeSink)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, env.escrow.Sweep(ownerAddr, []string{testToken}, []int64{4000}, feeSink))
	require.NoError(t, env.escrow.Sweep(ownerAddr, []string{testToken}, []int64{5000}, feeSink))

	assert.Equal(t, int64(9000), env.vault.Balance(feeSink, testToken, ""))
	assert.Equal(t, int64(0), env.vault.Balance(escrowVault, testToken, ""))

	// Each sweep is journaled and the running total accumulates.
	var records []models.SweepRecord
	require.NoError(t, env.db.Find(&records).Error)
	assert.Len(t, records, 2)

	var total models.SweepTotal
	require.NoError(t, env.db.First(&total, "token = ?", testToken).Error)
	assert.Equal(t, int64(9000), total.Amount)

	require.NoError(t, env.escrow.ExitRecoveryMode(ownerAddr))
	err = env.escrow.Sweep(ownerAddr, []string{testToken}, []int64{1}, feeSink)
	assert.ErrorIs(t, err, ErrPolicy)
}

func TestEscrowPlatformFeeValidation(t *testing.T) {
	env := newTestEnv(t)

	err := env.escrow.UpdatePlatformFee(ownerAddr, feeSink, 1001)
	assert.ErrorIs(t, err, ErrValidation)

	err = env.escrow.UpdatePlatformFee(ownerAddr, "", 100)
	assert.ErrorIs(t, err, ErrValidation)

	// Disabling the fee with no recipient is fine.
	require.NoError(t, env.escrow.UpdatePlatformFee(ownerAddr, "", 0))
	require.NoError(t, env.escrow.UpdatePlatformFee(ownerAddr, feeSink, 250))

	var fee models.PlatformFee
	require.NoError(t, env.db.First(&fee, "component = ?", models.FeeComponentEscrow).Error)
	assert.Equal(t, int64(250), fee.FeePermille)
}

func TestAuditSolvencyFlagsOverdrawnBuckets(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.db.Create(&models.TokenBucket{
		GameID: 0, TournamentID: 0, Token: testToken,
		TotalUserDeposit: 100, TotalPrizeDistribution: 150,
	}).Error)
	require.NoError(t, env.db.Create(&models.NFTBucket{
		GameID: 0, TournamentID: 0, NFTAddress: testNFT, TokenID: "7",
		NFTType: models.NFTTypeUnique, Deposited: 1, Distributed: 2,
	}).Error)

	report, err := env.escrow.AuditSolvency()
	require.NoError(t, err)
	assert.Equal(t, 1, report.TokenBuckets)
	assert.Equal(t, 1, report.NFTBuckets)
	// The NFT row trips both the overdraw and the unique-cap checks.
	assert.Len(t, report.Violations, 3)
}
