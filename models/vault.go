// models/vault.go
package models

import "time"

// VaultBalance is one holder's balance of one asset inside the ledger vault.
// Fungible tokens use an empty TokenID; NFT units are keyed by (token,
// token_id). External chain custody is mirrored into these rows by the vault
// sync worker.
type VaultBalance struct {
	Holder  string `json:"holder" gorm:"uniqueIndex:idx_vault_balance;not null"`
	Token   string `json:"token" gorm:"uniqueIndex:idx_vault_balance;not null"`
	TokenID string `json:"token_id" gorm:"uniqueIndex:idx_vault_balance;default:''"`
	Amount  int64  `json:"amount" gorm:"not null;default:0"`

	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// VaultMirror is the last custody snapshot applied per asset row. The sync
// worker writes reports here and only the delta against the previous report
// reaches VaultBalance, so a stale snapshot can never resurrect a balance the
// escrow has already moved.
type VaultMirror struct {
	Holder  string `json:"holder" gorm:"uniqueIndex:idx_vault_mirror;not null"`
	Token   string `json:"token" gorm:"uniqueIndex:idx_vault_mirror;not null"`
	TokenID string `json:"token_id" gorm:"uniqueIndex:idx_vault_mirror;default:''"`
	Amount  int64  `json:"amount" gorm:"not null;default:0"`

	ReportedAt time.Time `json:"reported_at"`
}
