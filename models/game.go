// models/game.go
package models

import (
	"time"
)

// Fee fractions are expressed in integer parts-per-thousand (permille).
// FeeDenominator is the 100% mark; every ceiling check in the registry is a
// strict `<` against it.
const FeeDenominator int64 = 1000

// Game is a registry entry for a published game. Games are never deleted —
// removal only flips Deprecated, after which the id is invalid for new
// tournaments and deposits but stays queryable forever.
type Game struct {
	ID             uint   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name           string `json:"name" gorm:"not null"`
	Slug           string `json:"slug" gorm:"index"`
	Creator        string `json:"creator" gorm:"not null"`
	BaseCreatorFee int64  `json:"base_creator_fee" gorm:"not null;default:0"` // permille
	Deprecated     bool   `json:"deprecated" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Tournament belongs to exactly one game. Ids are sequential per game,
// starting at 0, never reused. Fee terms are fixed at creation.
type Tournament struct {
	GameID uint `json:"game_id" gorm:"primaryKey;autoIncrement:false"`
	ID     uint `json:"id" gorm:"primaryKey;autoIncrement:false"`

	Name    string `json:"name"`
	Creator string `json:"creator" gorm:"not null"`
	// AppliedCreatorFee is the game-creator fee locked in for this tournament:
	// the proposed fee, or the game's base fee when the proposal was zero.
	AppliedCreatorFee    int64 `json:"applied_creator_fee" gorm:"not null"`    // permille
	TournamentCreatorFee int64 `json:"tournament_creator_fee" gorm:"not null"` // permille

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// DepositToken is the per-tournament deposit requirement for one token.
// Membership in the enabled set is row existence: setting the amount to zero
// deletes the row, setting it back re-creates it. The composite unique index
// makes duplicates impossible.
type DepositToken struct {
	GameID       uint   `json:"game_id" gorm:"uniqueIndex:idx_deposit_token;not null"`
	TournamentID uint   `json:"tournament_id" gorm:"uniqueIndex:idx_deposit_token;not null"`
	Token        string `json:"token" gorm:"uniqueIndex:idx_deposit_token;not null"`
	Amount       int64  `json:"amount" gorm:"not null"`
}

// DistributableToken allow-lists a token or NFT contract address as eligible
// to be paid out as a prize for a game. Scoped to the game, not the
// tournament.
type DistributableToken struct {
	GameID uint   `json:"game_id" gorm:"uniqueIndex:idx_distributable_token;not null"`
	Token  string `json:"token" gorm:"uniqueIndex:idx_distributable_token;not null"`
}
