// services/address_service_test.go
package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tournament-escrow-system/models"
)

func newBareAddressBook(t *testing.T) *AddressBookService {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AddressBookEntry{}))
	return NewAddressBookService(db)
}

func TestAddressBookBootstrap(t *testing.T) {
	book := newBareAddressBook(t)

	// An empty book only accepts the owner entry itself.
	err := book.Set(ownerAddr, models.RoleMaintainer, maintainerAddr)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, book.Set(ownerAddr, models.RoleOwner, ownerAddr))
	require.NoError(t, book.Set(ownerAddr, models.RoleMaintainer, maintainerAddr))

	addr, err := book.Resolve(models.RoleMaintainer)
	require.NoError(t, err)
	assert.Equal(t, maintainerAddr, addr)
}

func TestAddressBookOwnerOnlyRewiring(t *testing.T) {
	book := newBareAddressBook(t)
	require.NoError(t, book.Set(ownerAddr, models.RoleOwner, ownerAddr))

	err := book.Set(outsider, models.RoleMaintainer, outsider)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Addresses are normalized before storage.
	require.NoError(t, book.Set(ownerAddr, models.RoleEscrow, "0x00000000000000000000000000000000000000E5"))
	addr, err := book.Resolve(models.RoleEscrow)
	require.NoError(t, err)
	assert.Equal(t, escrowVault, addr)

	err = book.Set(ownerAddr, models.RoleEscrow, "0x0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrValidation)

	// Ownership handover: the new owner holds the capability, the old one
	// loses it.
	require.NoError(t, book.Set(ownerAddr, models.RoleOwner, maintainerAddr))
	err = book.Set(ownerAddr, models.RoleEscrow, escrowVault)
	assert.ErrorIs(t, err, ErrUnauthorized)
	require.NoError(t, book.Set(maintainerAddr, models.RoleEscrow, escrowVault))
}

func TestRequireRole(t *testing.T) {
	book := newBareAddressBook(t)

	err := book.RequireRole(ownerAddr, models.RoleOwner)
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, book.Set(ownerAddr, models.RoleOwner, ownerAddr))
	assert.NoError(t, book.RequireRole(ownerAddr, models.RoleOwner))
	assert.ErrorIs(t, book.RequireRole(outsider, models.RoleOwner), ErrUnauthorized)
}
