// models/escrow.go
package models

import "time"

// NFT asset kinds. Unique ids carry exactly one unit ever; fungible-class ids
// can hold many interchangeable units under the same id.
const (
	NFTTypeUnique   = "unique"
	NFTTypeFungible = "fungible"
)

// Fee-charging components. Each stores its own platform-fee copy — there is
// deliberately no shared source of truth between the registry and the escrow.
const (
	FeeComponentRegistry = "registry"
	FeeComponentEscrow   = "escrow"
)

// TokenBucket is the fungible custody ledger for one (game, tournament, token)
// key. All four counters are running totals and only ever grow; the solvency
// invariant is
//
//	TotalPrizeDistribution + TotalPrizeFee <= TotalUserDeposit + TotalPrizeDeposit
//
// and must hold after every mutating call.
type TokenBucket struct {
	GameID       uint   `json:"game_id" gorm:"uniqueIndex:idx_token_bucket;not null"`
	TournamentID uint   `json:"tournament_id" gorm:"uniqueIndex:idx_token_bucket;not null"`
	Token        string `json:"token" gorm:"uniqueIndex:idx_token_bucket;not null"`

	TotalUserDeposit       int64 `json:"total_user_deposit" gorm:"not null;default:0"`
	TotalPrizeDeposit      int64 `json:"total_prize_deposit" gorm:"not null;default:0"`
	TotalPrizeDistribution int64 `json:"total_prize_distribution" gorm:"not null;default:0"`
	TotalPrizeFee          int64 `json:"total_prize_fee" gorm:"not null;default:0"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// NFTBucket tracks one NFT id inside one tournament. Distributed never
// exceeds Deposited; for the unique type both are capped at 1.
type NFTBucket struct {
	GameID       uint   `json:"game_id" gorm:"uniqueIndex:idx_nft_bucket;not null"`
	TournamentID uint   `json:"tournament_id" gorm:"uniqueIndex:idx_nft_bucket;not null"`
	NFTAddress   string `json:"nft_address" gorm:"uniqueIndex:idx_nft_bucket;not null"`
	TokenID      string `json:"token_id" gorm:"uniqueIndex:idx_nft_bucket;not null"`

	NFTType     string `json:"nft_type" gorm:"not null"`
	Deposited   int64  `json:"deposited" gorm:"not null;default:0"`
	Distributed int64  `json:"distributed" gorm:"not null;default:0"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// UsedClaim is a consumed claim authorization (claim strategy only). The row
// is inserted before the payout transfer in the same transaction, so replaying
// a signature fails on the unique digest index and rolls back.
type UsedClaim struct {
	Digest string `json:"digest" gorm:"primaryKey"`

	GameID    uint      `json:"game_id" gorm:"not null"`
	Winner    string    `json:"winner" gorm:"not null"`
	Token     string    `json:"token" gorm:"not null"`
	Amount    int64     `json:"amount" gorm:"not null"`
	Nonce     uint64    `json:"nonce" gorm:"not null"`
	ClaimedAt time.Time `json:"claimed_at" gorm:"autoCreateTime"`
}

// PlatformFee is one component's platform-fee configuration. Recipient must be
// non-zero whenever FeePermille is non-zero. TournamentCreationFee is the flat
// fee charged by the registry for user-initiated tournament creation.
type PlatformFee struct {
	Component             string    `json:"component" gorm:"primaryKey"`
	Recipient             string    `json:"recipient"`
	FeePermille           int64     `json:"fee_permille" gorm:"not null;default:0"`
	FeeToken              string    `json:"fee_token"`
	TournamentCreationFee int64     `json:"tournament_creation_fee" gorm:"not null;default:0"`
	UpdatedAt             time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// SweepRecord journals one recovery-mode withdrawal. Sweeps bypass bucket
// accounting, so the journal plus SweepTotal keep post-hoc audits possible.
type SweepRecord struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Token       string    `json:"token" gorm:"index;not null"`
	Amount      int64     `json:"amount" gorm:"not null"`
	Beneficiary string    `json:"beneficiary" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// SweepTotal is the running per-token total of everything ever swept.
type SweepTotal struct {
	Token     string    `json:"token" gorm:"primaryKey"`
	Amount    int64     `json:"amount" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// EscrowState is the singleton administrative state of the escrow engine.
// Paused blocks deposits, distributions and claims; RecoveryMode gates the
// emergency sweep.
type EscrowState struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Paused       bool      `json:"paused" gorm:"default:false"`
	RecoveryMode bool      `json:"recovery_mode" gorm:"default:false"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
