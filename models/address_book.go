// models/address_book.go
package models

import "time"

// Well-known roles in the address book. Privileged operations authorize
// against these entries instead of hard-coded addresses, so any capability can
// be rotated at runtime by the owner.
const (
	RoleOwner      = "owner"
	RoleMaintainer = "maintainer"
	RoleEscrow     = "escrow"
	RoleRegistry   = "registry"
	RoleTimelock   = "timelock"
)

// AddressBookEntry maps one role to the wallet address currently holding it.
type AddressBookEntry struct {
	Role      string    `json:"role" gorm:"primaryKey"`
	Address   string    `json:"address" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
