// services/escrow_service.go
package services

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tournament-escrow-system/models"
	"tournament-escrow-system/utils"
)

// EscrowService is the custodial ledger: it accepts player deposits and
// organizer prize top-ups bound to (game, tournament, token) buckets, and
// releases custody through the configured distribution strategy. It never pays
// more out of a bucket than was ever paid in.
type EscrowService struct {
	DB        *gorm.DB
	Vault     TokenVault
	Addresses *AddressBookService
	Registry  *GameRegistryService
}

func NewEscrowService(db *gorm.DB, vault TokenVault, addresses *AddressBookService) *EscrowService {
	return &EscrowService{DB: db, Vault: vault, Addresses: addresses}
}

func (s *EscrowService) escrowAddress() (string, error) {
	return s.Addresses.Resolve(models.RoleEscrow)
}

// stateTx loads (or lazily creates) the singleton administrative state.
func (s *EscrowService) stateTx(tx *gorm.DB) (*models.EscrowState, error) {
	var state models.EscrowState
	err := tx.First(&state, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.EscrowState{ID: 1}
		if err := tx.Create(&state).Error; err != nil {
			return nil, err
		}
		return &state, nil
	}
	return &state, err
}

func (s *EscrowService) requireActive(tx *gorm.DB) error {
	state, err := s.stateTx(tx)
	if err != nil {
		return err
	}
	if state.Paused {
		return fmt.Errorf("%w: escrow is paused", ErrPaused)
	}
	return nil
}

func (s *EscrowService) platformFee(tx *gorm.DB) (models.PlatformFee, error) {
	var fee models.PlatformFee
	err := tx.First(&fee, "component = ?", models.FeeComponentEscrow).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fee, err
	}
	fee.Component = models.FeeComponentEscrow
	return fee, nil
}

// lockBucket loads the bucket row for update, creating it on first touch.
func (s *EscrowService) lockBucket(tx *gorm.DB, gid, tid uint, token string) (*models.TokenBucket, error) {
	var bucket models.TokenBucket
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("game_id = ? AND tournament_id = ? AND token = ?", gid, tid, token).
		First(&bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bucket = models.TokenBucket{GameID: gid, TournamentID: tid, Token: token}
		if err := tx.Create(&bucket).Error; err != nil {
			return nil, err
		}
		return &bucket, nil
	}
	return &bucket, err
}

func (s *EscrowService) saveBucket(tx *gorm.DB, bucket *models.TokenBucket) error {
	return tx.Model(&models.TokenBucket{}).
		Where("game_id = ? AND tournament_id = ? AND token = ?", bucket.GameID, bucket.TournamentID, bucket.Token).
		Updates(map[string]interface{}{
			"total_user_deposit":       bucket.TotalUserDeposit,
			"total_prize_deposit":      bucket.TotalPrizeDeposit,
			"total_prize_distribution": bucket.TotalPrizeDistribution,
			"total_prize_fee":          bucket.TotalPrizeFee,
		}).Error
}

// Deposit pulls the tournament's configured deposit amount for token from the
// caller into custody. A zero configured amount means the token is not enabled
// for this tournament. When a platform fee is configured the fee slice is
// routed to the recipient up front and only the remainder is credited.
func (s *EscrowService) Deposit(caller string, gid, tid uint, token string) error {
	tokenAddr, err := utils.NormalizeAddress(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	escrowAddr, err := s.escrowAddress()
	if err != nil {
		return err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.requireActive(tx); err != nil {
			return err
		}
		game, err := s.Registry.game(tx, gid)
		if err != nil {
			return err
		}
		if game.Deprecated {
			return fmt.Errorf("%w: game %d is deprecated", ErrPolicy, gid)
		}

		amount, err := s.Registry.DepositAmountTx(tx, gid, tid, tokenAddr)
		if err != nil {
			return err
		}
		if amount == 0 {
			return fmt.Errorf("%w: token %s is not enabled for deposits in tournament %d/%d", ErrPolicy, tokenAddr, gid, tid)
		}

		fee, err := s.platformFee(tx)
		if err != nil {
			return err
		}
		feeSlice := amount * fee.FeePermille / models.FeeDenominator
		credited := amount - feeSlice

		if feeSlice > 0 {
			if err := s.Vault.Debit(tx, caller, fee.Recipient, tokenAddr, feeSlice); err != nil {
				return err
			}
		}
		if err := s.Vault.Debit(tx, caller, escrowAddr, tokenAddr, credited); err != nil {
			return err
		}

		bucket, err := s.lockBucket(tx, gid, tid, tokenAddr)
		if err != nil {
			return err
		}
		bucket.TotalUserDeposit += credited
		return s.saveBucket(tx, bucket)
	})
	if err != nil {
		return err
	}

	log.Printf("[ESCROW] deposit by %s into %d/%d token=%s", caller, gid, tid, tokenAddr)
	return nil
}

// DepositPrize pulls a prize top-up from depositor into a tournament's prize
// pool. Callable by the owner or by the registry (the atomic seeding path).
func (s *EscrowService) DepositPrize(caller, depositor string, gid, tid uint, token string, amount int64) error {
	if err := s.requireOwnerOrRegistry(caller); err != nil {
		return err
	}
	tokenAddr, err := utils.NormalizeAddress(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		return s.DepositPrizeTx(tx, depositor, gid, tid, tokenAddr, amount)
	})
}

// DepositPrizeTx is the transaction-scoped prize deposit shared with the
// registry's seeded tournament creation. Callers are trusted; authorization
// happens at the public entry points.
func (s *EscrowService) DepositPrizeTx(tx *gorm.DB, depositor string, gid, tid uint, token string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: prize amount must be positive", ErrValidation)
	}
	distributable, err := s.Registry.IsDistributableTx(tx, gid, token)
	if err != nil {
		return err
	}
	if !distributable {
		return fmt.Errorf("%w: token %s is not distributable for game %d", ErrPolicy, token, gid)
	}
	escrowAddr, err := s.escrowAddress()
	if err != nil {
		return err
	}
	if err := s.Vault.Debit(tx, depositor, escrowAddr, token, amount); err != nil {
		return err
	}

	bucket, err := s.lockBucket(tx, gid, tid, token)
	if err != nil {
		return err
	}
	bucket.TotalPrizeDeposit += amount
	return s.saveBucket(tx, bucket)
}

// WithdrawPrize returns part of an undistributed prize pool to an external
// holder. Owner-only; bounded by what the prize pool still holds.
func (s *EscrowService) WithdrawPrize(caller, to string, gid, tid uint, token string, amount int64) error {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err != nil {
		return err
	}
	toAddr, err := utils.NormalizeAddress(to)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	tokenAddr, err := utils.NormalizeAddress(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: withdraw amount must be positive", ErrValidation)
	}
	escrowAddr, err := s.escrowAddress()
	if err != nil {
		return err
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		bucket, err := s.lockBucket(tx, gid, tid, tokenAddr)
		if err != nil {
			return err
		}
		held := bucket.TotalPrizeDeposit - bucket.TotalPrizeDistribution - bucket.TotalPrizeFee
		if amount > held {
			return fmt.Errorf("%w: prize pool %d/%d holds %d of %s, requested %d", ErrSolvency, gid, tid, held, tokenAddr, amount)
		}
		if err := s.Vault.Debit(tx, escrowAddr, toAddr, tokenAddr, amount); err != nil {
			return err
		}
		bucket.TotalPrizeDeposit -= amount
		return s.saveBucket(tx, bucket)
	})
}

// DepositNFTPrize pulls NFT prize units from `from` into custody. Callable by
// the owner or the registry.
func (s *EscrowService) DepositNFTPrize(caller, from string, gid, tid uint, nft, nftType string, tokenIDs []string, amounts []int64) error {
	if err := s.requireOwnerOrRegistry(caller); err != nil {
		return err
	}
	nftAddr, err := utils.NormalizeAddress(nft)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		return s.DepositNFTPrizeTx(tx, from, gid, tid, nftAddr, nftType, tokenIDs, amounts)
	})
}

// DepositNFTPrizeTx is the transaction-scoped NFT prize deposit shared with
// the registry's seeded tournament creation.
func (s *EscrowService) DepositNFTPrizeTx(tx *gorm.DB, from string, gid, tid uint, nft, nftType string, tokenIDs []string, amounts []int64) error {
	if nftType != models.NFTTypeUnique && nftType != models.NFTTypeFungible {
		return fmt.Errorf("%w: unknown NFT type %q", ErrValidation, nftType)
	}
	if len(tokenIDs) == 0 || len(tokenIDs) != len(amounts) {
		return fmt.Errorf("%w: token id and amount arrays must be non-empty and equal length", ErrValidation)
	}
	distributable, err := s.Registry.IsDistributableTx(tx, gid, nft)
	if err != nil {
		return err
	}
	if !distributable {
		return fmt.Errorf("%w: NFT contract %s is not distributable for game %d", ErrPolicy, nft, gid)
	}
	escrowAddr, err := s.escrowAddress()
	if err != nil {
		return err
	}

	for i, tokenID := range tokenIDs {
		amount := amounts[i]
		if nftType == models.NFTTypeUnique && amount != 1 {
			return fmt.Errorf("%w: unique NFT deposits must carry amount 1, got %d for id %s", ErrValidation, amount, tokenID)
		}
		if amount <= 0 {
			return fmt.Errorf("%w: NFT amount must be positive for id %s", ErrValidation, tokenID)
		}

		bucket, err := s.lockNFTBucket(tx, gid, tid, nft, tokenID, nftType)
		if err != nil {
			return err
		}
		if bucket.NFTType != nftType {
			return fmt.Errorf("%w: id %s was previously tracked as %s", ErrValidation, tokenID, bucket.NFTType)
		}
		if nftType == models.NFTTypeUnique {
			if bucket.Deposited-bucket.Distributed != 0 {
				return fmt.Errorf("%w: unique NFT id %s is already in custody", ErrValidation, tokenID)
			}
			if err := s.Vault.TransferUnique(tx, from, escrowAddr, nft, tokenID); err != nil {
				return err
			}
			bucket.Deposited = bucket.Distributed + 1
		} else {
			if err := s.Vault.TransferClass(tx, from, escrowAddr, nft, tokenID, amount); err != nil {
				return err
			}
			bucket.Deposited += amount
		}
		if err := s.saveNFTBucket(tx, bucket); err != nil {
			return err
		}
	}
	return nil
}

// WithdrawNFTPrize returns undistributed NFT prize units to an external
// holder. Owner-only; bounded per id by deposited minus distributed.
func (s *EscrowService) WithdrawNFTPrize(caller, to string, gid, tid uint, nft, nftType string, tokenIDs []string, amounts []int64) error {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err != nil {
		return err
	}
	toAddr, err := utils.NormalizeAddress(to)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	nftAddr, err := utils.NormalizeAddress(nft)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if nftType != models.NFTTypeUnique && nftType != models.NFTTypeFungible {
		return fmt.Errorf("%w: unknown NFT type %q", ErrValidation, nftType)
	}
	if len(tokenIDs) == 0 || len(tokenIDs) != len(amounts) {
		return fmt.Errorf("%w: token id and amount arrays must be non-empty and equal length", ErrValidation)
	}
	escrowAddr, err := s.escrowAddress()
	if err != nil {
		return err
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		for i, tokenID := range tokenIDs {
			amount := amounts[i]
			if amount <= 0 {
				return fmt.Errorf("%w: NFT amount must be positive for id %s", ErrValidation, tokenID)
			}
			if nftType == models.NFTTypeUnique && amount != 1 {
				return fmt.Errorf("%w: unique NFT withdrawals must carry amount 1, got %d for id %s", ErrValidation, amount, tokenID)
			}

			bucket, err := s.findNFTBucket(tx, gid, tid, nftAddr, tokenID)
			if err != nil {
				return err
			}
			if bucket.NFTType != nftType {
				return fmt.Errorf("%w: id %s is tracked as %s", ErrValidation, tokenID, bucket.NFTType)
			}
			held := bucket.Deposited - bucket.Distributed
			if amount > held {
				return fmt.Errorf("%w: NFT id %s holds %d units, requested %d", ErrSolvency, tokenID, held, amount)
			}

			if nftType == models.NFTTypeUnique {
				if err := s.Vault.TransferUnique(tx, escrowAddr, toAddr, nftAddr, tokenID); err != nil {
					return err
				}
			} else {
				if err := s.Vault.TransferClass(tx, escrowAddr, toAddr, nftAddr, tokenID, amount); err != nil {
					return err
				}
			}
			bucket.Deposited -= amount
			if err := s.saveNFTBucket(tx, bucket); err != nil {
				return err
			}
		}
		return nil
	})
}

// Sweep is the owner's emergency recovery path. It deliberately bypasses
// bucket accounting, so it is only permitted in recovery mode and every sweep
// is journaled against the per-token running total.
func (s *EscrowService) Sweep(caller string, tokens []string, amounts []int64, beneficiary string) error {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err != nil {
		return err
	}
	if len(tokens) == 0 || len(tokens) != len(amounts) {
		return fmt.Errorf("%w: token and amount arrays must be non-empty and equal length", ErrValidation)
	}
	benAddr, err := utils.NormalizeAddress(beneficiary)
	if err != nil || utils.IsZeroAddress(benAddr) {
		return fmt.Errorf("%w: beneficiary must be a non-zero address", ErrValidation)
	}
	escrowAddr, err := s.escrowAddress()
	if err != nil {
		return err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		state, err := s.stateTx(tx)
		if err != nil {
			return err
		}
		if !state.RecoveryMode {
			return fmt.Errorf("%w: emergency sweep requires recovery mode", ErrPolicy)
		}

		for i, token := range tokens {
			tokenAddr, err := utils.NormalizeAddress(token)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrValidation, err)
			}
			amount := amounts[i]
			if amount <= 0 {
				return fmt.Errorf("%w: sweep amount must be positive", ErrValidation)
			}
			if err := s.Vault.Debit(tx, escrowAddr, benAddr, tokenAddr, amount); err != nil {
				return err
			}
			if err := tx.Create(&models.SweepRecord{
				ID:          uuid.NewString(),
				Token:       tokenAddr,
				Amount:      amount,
				Beneficiary: benAddr,
			}).Error; err != nil {
				return err
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "token"}},
				DoUpdates: clause.Assignments(map[string]interface{}{"amount": gorm.Expr("sweep_totals.amount + ?", amount)}),
			}).Create(&models.SweepTotal{Token: tokenAddr, Amount: amount}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[ESCROW] emergency sweep to %s by %s", benAddr, caller)
	return nil
}

// UpdatePlatformFee sets the escrow's own platform-fee copy: the permille
// taken from deposits/claims and its recipient. Owner-only.
func (s *EscrowService) UpdatePlatformFee(caller, recipient string, permille int64) error {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err != nil {
		return err
	}
	if permille < 0 || permille > models.FeeDenominator {
		return fmt.Errorf("%w: platform fee must be within [0, %d] permille", ErrValidation, models.FeeDenominator)
	}
	normalized := ""
	if recipient != "" {
		var err error
		normalized, err = utils.NormalizeAddress(recipient)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	if permille > 0 && (normalized == "" || utils.IsZeroAddress(normalized)) {
		return fmt.Errorf("%w: fee recipient must be non-zero while the fee is non-zero", ErrValidation)
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := s.platformFee(tx)
		if err != nil {
			return err
		}
		existing.Recipient = normalized
		existing.FeePermille = permille
		return tx.Save(&existing).Error
	})
}

// Pause stops deposits, distributions and claims until Unpause.
func (s *EscrowService) Pause(caller string) error {
	return s.setState(caller, map[string]interface{}{"paused": true})
}

func (s *EscrowService) Unpause(caller string) error {
	return s.setState(caller, map[string]interface{}{"paused": false})
}

// EnterRecoveryMode arms the emergency sweep. Distinct from pause: normal
// operation should be paused separately before sweeping.
func (s *EscrowService) EnterRecoveryMode(caller string) error {
	return s.setState(caller, map[string]interface{}{"recovery_mode": true})
}

func (s *EscrowService) ExitRecoveryMode(caller string) error {
	return s.setState(caller, map[string]interface{}{"recovery_mode": false})
}

func (s *EscrowService) setState(caller string, fields map[string]interface{}) error {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err != nil {
		return err
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := s.stateTx(tx); err != nil {
			return err
		}
		return tx.Model(&models.EscrowState{}).Where("id = ?", 1).Updates(fields).Error
	})
}

// GetBucket reads one bucket's counters. Side-effect free.
func (s *EscrowService) GetBucket(gid, tid uint, token string) (*models.TokenBucket, error) {
	var bucket models.TokenBucket
	err := s.DB.Where("game_id = ? AND tournament_id = ? AND token = ?", gid, tid, token).First(&bucket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: bucket %d/%d/%s", ErrNotFound, gid, tid, token)
		}
		return nil, err
	}
	return &bucket, nil
}

// GetNFTBucket reads one NFT id's counters. Side-effect free.
func (s *EscrowService) GetNFTBucket(gid, tid uint, nft, tokenID string) (*models.NFTBucket, error) {
	var bucket models.NFTBucket
	err := s.DB.Where("game_id = ? AND tournament_id = ? AND nft_address = ? AND token_id = ?", gid, tid, nft, tokenID).
		First(&bucket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: NFT bucket %d/%d/%s/%s", ErrNotFound, gid, tid, nft, tokenID)
		}
		return nil, err
	}
	return &bucket, nil
}

func (s *EscrowService) requireOwnerOrRegistry(caller string) error {
	if err := s.Addresses.RequireRole(caller, models.RoleOwner); err == nil {
		return nil
	}
	registryAddr, err := s.Addresses.Resolve(models.RoleRegistry)
	if err == nil && caller == registryAddr {
		return nil
	}
	return fmt.Errorf("%w: caller must be the owner or the registry", ErrUnauthorized)
}

func (s *EscrowService) lockNFTBucket(tx *gorm.DB, gid, tid uint, nft, tokenID, nftType string) (*models.NFTBucket, error) {
	var bucket models.NFTBucket
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("game_id = ? AND tournament_id = ? AND nft_address = ? AND token_id = ?", gid, tid, nft, tokenID).
		First(&bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bucket = models.NFTBucket{GameID: gid, TournamentID: tid, NFTAddress: nft, TokenID: tokenID, NFTType: nftType}
		if err := tx.Create(&bucket).Error; err != nil {
			return nil, err
		}
		return &bucket, nil
	}
	return &bucket, err
}

func (s *EscrowService) findNFTBucket(tx *gorm.DB, gid, tid uint, nft, tokenID string) (*models.NFTBucket, error) {
	var bucket models.NFTBucket
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("game_id = ? AND tournament_id = ? AND nft_address = ? AND token_id = ?", gid, tid, nft, tokenID).
		First(&bucket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: NFT id %s was never deposited into %d/%d", ErrSolvency, tokenID, gid, tid)
	}
	return &bucket, err
}

func (s *EscrowService) saveNFTBucket(tx *gorm.DB, bucket *models.NFTBucket) error {
	return tx.Model(&models.NFTBucket{}).
		Where("game_id = ? AND tournament_id = ? AND nft_address = ? AND token_id = ?",
			bucket.GameID, bucket.TournamentID, bucket.NFTAddress, bucket.TokenID).
		Updates(map[string]interface{}{
			"nft_type":    bucket.NFTType,
			"deposited":   bucket.Deposited,
			"distributed": bucket.Distributed,
		}).Error
}
