// services/address_service.go
package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tournament-escrow-system/models"
	"tournament-escrow-system/utils"
)

// AddressBookService is the process-wide role directory. The registry and the
// escrow resolve each other and the privileged owner/maintainer identities
// through it; it carries no business logic of its own.
type AddressBookService struct {
	DB *gorm.DB
}

func NewAddressBookService(db *gorm.DB) *AddressBookService {
	return &AddressBookService{DB: db}
}

// Resolve returns the address currently registered for role.
func (s *AddressBookService) Resolve(role string) (string, error) {
	var entry models.AddressBookEntry
	if err := s.DB.First(&entry, "role = ?", role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: no address registered for role %q", ErrNotFound, role)
		}
		return "", err
	}
	return entry.Address, nil
}

// Set registers or replaces the address for a role. Only the current owner may
// rewire the book; bootstrapping the very first owner entry is allowed when
// the book is empty.
func (s *AddressBookService) Set(caller, role, address string) error {
	normalized, err := utils.NormalizeAddress(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if utils.IsZeroAddress(normalized) {
		return fmt.Errorf("%w: role %q cannot point at the zero address", ErrValidation, role)
	}

	owner, err := s.Resolve(models.RoleOwner)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		// Empty book: only the owner role itself may be bootstrapped.
		if role != models.RoleOwner {
			return fmt.Errorf("%w: owner must be registered first", ErrUnauthorized)
		}
	} else if caller != owner {
		return fmt.Errorf("%w: only the owner may update the address book", ErrUnauthorized)
	}

	return s.DB.Save(&models.AddressBookEntry{Role: role, Address: normalized}).Error
}

// RequireRole checks that caller holds the capability registered under role.
// Services call it at the top of every privileged operation.
func (s *AddressBookService) RequireRole(caller, role string) error {
	addr, err := s.Resolve(role)
	if err != nil {
		return fmt.Errorf("%w: role %q is not configured", ErrUnauthorized, role)
	}
	if caller != addr {
		return fmt.Errorf("%w: caller does not hold the %q capability", ErrUnauthorized, role)
	}
	return nil
}
