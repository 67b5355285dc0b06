// services/claim_service.go
package services

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gorm.io/gorm"

	"tournament-escrow-system/models"
	"tournament-escrow-system/utils"
)

// ClaimService is the alternate distribution generation: instead of the
// maintainer pushing batches on-chain, the maintainer co-signs individual
// payouts off-line and winners pull them. Replay protection comes from the
// consumed-signature set, not from running counters — the two strategies keep
// disjoint state.
type ClaimService struct {
	DB        *gorm.DB
	Vault     TokenVault
	Addresses *AddressBookService
	Registry  *GameRegistryService
	Escrow    *EscrowService
}

func NewClaimService(db *gorm.DB, vault TokenVault, addresses *AddressBookService, registry *GameRegistryService, escrow *EscrowService) *ClaimService {
	return &ClaimService{DB: db, Vault: vault, Addresses: addresses, Registry: registry, Escrow: escrow}
}

func (s *ClaimService) Name() string { return "claim" }

// ClaimDigest computes the signed-message digest over the claim tuple. The
// maintainer signs this digest off-line; Claim recovers the signer from it.
func ClaimDigest(gid uint, winner, token string, amount int64, nonce uint64) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint64(gid))
	buf.Write(common.HexToAddress(winner).Bytes())
	buf.Write(common.HexToAddress(token).Bytes())
	binary.Write(&buf, binary.BigEndian, uint64(amount))
	binary.Write(&buf, binary.BigEndian, nonce)

	inner := crypto.Keccak256(buf.Bytes())
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(inner))
	return crypto.Keccak256([]byte(prefix), inner)
}

// Claim verifies a maintainer-signed payout authorization and pays the winner
// amount minus the platform fee. Each signature is consumed exactly once: the
// consumption row is written before the transfer in the same transaction, so
// a replay — including a reentrant one — fails and rolls back.
func (s *ClaimService) Claim(caller string, gid uint, winner, token string, amount int64, nonce uint64, signature string) error {
	winnerAddr, err := utils.NormalizeAddress(winner)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	tokenAddr, err := utils.NormalizeAddress(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: claim amount must be positive", ErrValidation)
	}
	if err := checkLedgerAmount(amount); err != nil {
		return err
	}
	if caller != winnerAddr {
		return fmt.Errorf("%w: only the named winner may claim", ErrUnauthorized)
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != 65 {
		return fmt.Errorf("%w: signature must be 65 hex-encoded bytes", ErrValidation)
	}
	// Accept both 0/1 and legacy 27/28 recovery ids.
	if sig[64] >= 27 {
		sig = append(append([]byte{}, sig[:64]...), sig[64]-27)
	}

	digest := ClaimDigest(gid, winnerAddr, tokenAddr, amount, nonce)
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return fmt.Errorf("%w: cannot recover signer: %v", ErrValidation, err)
	}
	signer := strings.ToLower(crypto.PubkeyToAddress(*pub).Hex())

	maintainer, err := s.Addresses.Resolve(models.RoleMaintainer)
	if err != nil {
		return err
	}
	if signer != maintainer {
		return fmt.Errorf("%w: claim was not signed by the maintainer", ErrUnauthorized)
	}

	escrowAddr, err := s.Addresses.Resolve(models.RoleEscrow)
	if err != nil {
		return err
	}
	digestHex := hex.EncodeToString(digest)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.Escrow.requireActive(tx); err != nil {
			return err
		}
		distributable, err := s.Registry.IsDistributableTx(tx, gid, tokenAddr)
		if err != nil {
			return err
		}
		if !distributable {
			return fmt.Errorf("%w: token %s is not distributable for game %d", ErrPolicy, tokenAddr, gid)
		}

		// Consume the signature before moving any value. The primary key on
		// the digest makes a double-claim fail here and roll back.
		var existing models.UsedClaim
		if err := tx.First(&existing, "digest = ?", digestHex).Error; err == nil {
			return fmt.Errorf("%w: claim signature already consumed", ErrReplay)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Create(&models.UsedClaim{
			Digest: digestHex,
			GameID: gid,
			Winner: winnerAddr,
			Token:  tokenAddr,
			Amount: amount,
			Nonce:  nonce,
		}).Error; err != nil {
			// Only a duplicate digest (a concurrent double-claim racing past
			// the existence check) means replay; anything else is a real DB
			// failure.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: claim signature already consumed", ErrReplay)
			}
			return err
		}

		fee, err := s.Escrow.platformFee(tx)
		if err != nil {
			return err
		}
		feeSlice := amount * fee.FeePermille / models.FeeDenominator
		payout := amount - feeSlice

		if feeSlice > 0 {
			if err := s.Vault.Debit(tx, escrowAddr, fee.Recipient, tokenAddr, feeSlice); err != nil {
				return err
			}
		}
		if err := s.Vault.Debit(tx, escrowAddr, winnerAddr, tokenAddr, payout); err != nil {
			return err
		}

		// Claims are keyed by game only; their bucket lives under tournament
		// id 0 of that game.
		bucket, err := s.Escrow.lockBucket(tx, gid, 0, tokenAddr)
		if err != nil {
			return err
		}
		bucket.TotalPrizeDistribution += payout
		bucket.TotalPrizeFee += feeSlice
		if bucket.TotalPrizeDistribution+bucket.TotalPrizeFee > bucket.TotalUserDeposit+bucket.TotalPrizeDeposit {
			return fmt.Errorf("%w: claim would overdraw bucket %d/%s", ErrSolvency, gid, tokenAddr)
		}
		return s.Escrow.saveBucket(tx, bucket)
	})
	if err != nil {
		return err
	}

	log.Printf("[CLAIM] %s claimed %d of %s from game %d (nonce %d)", winnerAddr, amount, tokenAddr, gid, nonce)
	return nil
}
