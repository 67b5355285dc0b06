// services/vault.go
package services

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tournament-escrow-system/models"
)

// TokenVault is the asset transfer primitive the escrow engine runs on. Every
// call is all-or-nothing: it either fully moves the requested amount inside
// the caller's transaction or returns an error that rolls the transaction
// back. No partial transfer is ever committed.
type TokenVault interface {
	// Debit moves a fungible amount from one holder to another.
	Debit(tx *gorm.DB, from, to, token string, amount int64) error
	// Credit mints a fungible amount to a holder. Used only by the sync
	// worker seeding mirrors; escrow operations always use Debit.
	Credit(tx *gorm.DB, to, token string, amount int64) error
	// TransferUnique moves a unique-NFT id between holders.
	TransferUnique(tx *gorm.DB, from, to, nft, tokenID string) error
	// TransferClass moves units of a fungible-NFT-class id between holders.
	TransferClass(tx *gorm.DB, from, to, nft, tokenID string, amount int64) error
}

// LedgerVault implements TokenVault against VaultBalance rows. Rows are
// locked for update before any balance math so a concurrent transaction
// cannot see an intermediate state.
type LedgerVault struct {
	DB *gorm.DB
}

func NewLedgerVault(db *gorm.DB) *LedgerVault {
	return &LedgerVault{DB: db}
}

func (v *LedgerVault) Debit(tx *gorm.DB, from, to, token string, amount int64) error {
	return v.move(tx, from, to, token, "", amount)
}

func (v *LedgerVault) Credit(tx *gorm.DB, to, token string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit amount must be positive", ErrValidation)
	}
	return v.add(tx, to, token, "", amount)
}

func (v *LedgerVault) TransferUnique(tx *gorm.DB, from, to, nft, tokenID string) error {
	return v.move(tx, from, to, nft, tokenID, 1)
}

func (v *LedgerVault) TransferClass(tx *gorm.DB, from, to, nft, tokenID string, amount int64) error {
	return v.move(tx, from, to, nft, tokenID, amount)
}

// move debits (from, token, tokenID) and credits the same asset to `to` in one
// step. The sender row is locked first; an insufficient balance aborts before
// anything is written.
func (v *LedgerVault) move(tx *gorm.DB, from, to, token, tokenID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", ErrValidation)
	}

	var bal models.VaultBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("holder = ? AND token = ? AND token_id = ?", from, token, tokenID).
		First(&bal).Error
	if err != nil {
		return fmt.Errorf("%w: holder %s has no balance of %s/%s", ErrSolvency, from, token, tokenID)
	}
	if bal.Amount < amount {
		return fmt.Errorf("%w: holder %s has %d of %s/%s, needs %d", ErrSolvency, from, bal.Amount, token, tokenID, amount)
	}

	if err := tx.Model(&models.VaultBalance{}).
		Where("holder = ? AND token = ? AND token_id = ?", from, token, tokenID).
		Update("amount", gorm.Expr("amount - ?", amount)).Error; err != nil {
		return fmt.Errorf("failed to debit %s: %w", from, err)
	}

	return v.add(tx, to, token, tokenID, amount)
}

func (v *LedgerVault) add(tx *gorm.DB, to, token, tokenID string, amount int64) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "holder"}, {Name: "token"}, {Name: "token_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"amount": gorm.Expr("vault_balances.amount + ?", amount)}),
	}).Create(&models.VaultBalance{
		Holder:  to,
		Token:   token,
		TokenID: tokenID,
		Amount:  amount,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to credit %s: %w", to, err)
	}
	return nil
}

// Balance reads a holder's current balance outside any transaction. Zero when
// no row exists.
func (v *LedgerVault) Balance(holder, token, tokenID string) int64 {
	var bal models.VaultBalance
	if err := v.DB.Where("holder = ? AND token = ? AND token_id = ?", holder, token, tokenID).
		First(&bal).Error; err != nil {
		return 0
	}
	return bal.Amount
}
