// services/distribution.go
package services

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"tournament-escrow-system/models"
	"tournament-escrow-system/utils"
)

// DistributionStrategy is the capability shared by the two payout
// generations: maintainer-pushed batch distribution and signature-authorized
// user claims. Exactly one strategy is registered per deployment — their state
// layouts and invariants differ, so they are never merged.
type DistributionStrategy interface {
	Name() string
}

func (s *EscrowService) Name() string { return "push" }

// DistributePrize pays a batch of winners out of one bucket. Maintainer-only.
// For each winner the platform, game-creator and tournament-creator fee
// slices are routed to their recipients and the remainder goes to the winner.
// The solvency bound is asserted once after the whole batch, not per winner,
// so batched distributions can net out.
func (s *EscrowService) DistributePrize(caller string, gid, tid uint, winners []string, token string, amounts []int64) error {
	if err := s.Addresses.RequireRole(caller, models.RoleMaintainer); err != nil {
		return err
	}
	if len(winners) == 0 || len(winners) != len(amounts) {
		return fmt.Errorf("%w: winner and amount arrays must be non-empty and equal length", ErrValidation)
	}
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
		distributable, err := s.Registry.IsDistributableTx(tx, gid, tokenAddr)
		if err != nil {
			return err
		}
		if !distributable {
			return fmt.Errorf("%w: token %s is not distributable for game %d", ErrPolicy, tokenAddr, gid)
		}

		game, err := s.Registry.game(tx, gid)
		if err != nil {
			return err
		}
		tournament, err := s.Registry.tournament(tx, gid, tid)
		if err != nil {
			return err
		}
		platform, err := s.platformFee(tx)
		if err != nil {
			return err
		}

		bucket, err := s.lockBucket(tx, gid, tid, tokenAddr)
		if err != nil {
			return err
		}

		var paidOut, feesRouted int64
		for i, winner := range winners {
			winnerAddr, err := utils.NormalizeAddress(winner)
			if err != nil {
				return fmt.Errorf("%w: winner %d: %v", ErrValidation, i, err)
			}
			amount := amounts[i]
			if amount <= 0 {
				return fmt.Errorf("%w: amount for winner %s must be positive", ErrValidation, winnerAddr)
			}
			if err := checkLedgerAmount(amount); err != nil {
				return err
			}

			// Integer-truncated permille slices; the remainder after all
			// three fees is the winner's payout.
			platformSlice := amount * platform.FeePermille / models.FeeDenominator
			creatorSlice := amount * tournament.AppliedCreatorFee / models.FeeDenominator
			tournamentSlice := amount * tournament.TournamentCreatorFee / models.FeeDenominator
			payout := amount - platformSlice - creatorSlice - tournamentSlice

			if platformSlice > 0 {
				if err := s.Vault.Debit(tx, escrowAddr, platform.Recipient, tokenAddr, platformSlice); err != nil {
					return err
				}
			}
			if creatorSlice > 0 {
				if err := s.Vault.Debit(tx, escrowAddr, game.Creator, tokenAddr, creatorSlice); err != nil {
					return err
				}
			}
			if tournamentSlice > 0 {
				if err := s.Vault.Debit(tx, escrowAddr, tournament.Creator, tokenAddr, tournamentSlice); err != nil {
					return err
				}
			}
			if err := s.Vault.Debit(tx, escrowAddr, winnerAddr, tokenAddr, payout); err != nil {
				return err
			}

			paidOut += payout
			feesRouted += platformSlice + creatorSlice + tournamentSlice
		}

		bucket.TotalPrizeDistribution += paidOut
		bucket.TotalPrizeFee += feesRouted

		// Core solvency check: everything ever paid out of the bucket must be
		// covered by everything ever paid in.
		outflow := bucket.TotalPrizeDistribution + bucket.TotalPrizeFee
		inflow := bucket.TotalUserDeposit + bucket.TotalPrizeDeposit
		if outflow > inflow {
			return fmt.Errorf("%w: distribution would pay %d out of bucket %d/%d/%s holding %d", ErrSolvency, outflow, gid, tid, tokenAddr, inflow)
		}

		return s.saveBucket(tx, bucket)
	})
	if err != nil {
		return err
	}

	log.Printf("[ESCROW] distributed %s prizes to %d winner(s) in %d/%d", tokenAddr, len(winners), gid, tid)
	return nil
}

// DistributeNFTPrize hands NFT prize units to winners. Maintainer-only. A
// unique id must be untouched (exactly one deposited unit, none distributed)
// and always moves with amount 1; a fungible id is bounded by its remaining
// deposited-minus-distributed balance.
func (s *EscrowService) DistributeNFTPrize(caller string, gid, tid uint, winners []string, nft, nftType string, tokenIDs []string, amounts []int64) error {
	if err := s.Addresses.RequireRole(caller, models.RoleMaintainer); err != nil {
		return err
	}
	if nftType != models.NFTTypeUnique && nftType != models.NFTTypeFungible {
		return fmt.Errorf("%w: unknown NFT type %q", ErrValidation, nftType)
	}
	if len(winners) == 0 || len(winners) != len(tokenIDs) || len(tokenIDs) != len(amounts) {
		return fmt.Errorf("%w: winner, token id and amount arrays must be non-empty and equal length", ErrValidation)
	}
	nftAddr, err := utils.NormalizeAddress(nft)
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
		distributable, err := s.Registry.IsDistributableTx(tx, gid, nftAddr)
		if err != nil {
			return err
		}
		if !distributable {
			return fmt.Errorf("%w: NFT contract %s is not distributable for game %d", ErrPolicy, nftAddr, gid)
		}

		for i, winner := range winners {
			winnerAddr, err := utils.NormalizeAddress(winner)
			if err != nil {
				return fmt.Errorf("%w: winner %d: %v", ErrValidation, i, err)
			}
			tokenID := tokenIDs[i]
			amount := amounts[i]

			bucket, err := s.findNFTBucket(tx, gid, tid, nftAddr, tokenID)
			if err != nil {
				return err
			}
			if bucket.NFTType != nftType {
				return fmt.Errorf("%w: id %s is tracked as %s", ErrValidation, tokenID, bucket.NFTType)
			}

			if nftType == models.NFTTypeUnique {
				if amount != 1 {
					return fmt.Errorf("%w: unique NFT distributions must carry amount 1, got %d for id %s", ErrValidation, amount, tokenID)
				}
				if bucket.Deposited != 1 || bucket.Distributed != 0 {
					return fmt.Errorf("%w: unique NFT id %s is not available for distribution", ErrSolvency, tokenID)
				}
				if err := s.Vault.TransferUnique(tx, escrowAddr, winnerAddr, nftAddr, tokenID); err != nil {
					return err
				}
			} else {
				if amount <= 0 {
					return fmt.Errorf("%w: NFT amount must be positive for id %s", ErrValidation, tokenID)
				}
				if amount > bucket.Deposited-bucket.Distributed {
					return fmt.Errorf("%w: NFT id %s holds %d units, requested %d", ErrSolvency, tokenID, bucket.Deposited-bucket.Distributed, amount)
				}
				if err := s.Vault.TransferClass(tx, escrowAddr, winnerAddr, nftAddr, tokenID, amount); err != nil {
					return err
				}
			}

			bucket.Distributed += amount
			if err := s.saveNFTBucket(tx, bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[ESCROW] distributed NFT prizes (%s) to %d winner(s) in %d/%d", nftAddr, len(winners), gid, tid)
	return nil
}
