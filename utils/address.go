// utils/address.go
package utils

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ZeroAddress is the null address; it is forbidden wherever a real recipient
// or creator is required.
var ZeroAddress = common.Address{}.Hex()

// NormalizeAddress validates a hex wallet/token address and returns it in
// lowercase canonical form. All addresses are stored normalized so equality
// checks are plain string compares.
func NormalizeAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}

// IsZeroAddress reports whether addr is the null address (in any casing).
func IsZeroAddress(addr string) bool {
	return common.IsHexAddress(addr) && common.HexToAddress(addr) == (common.Address{})
}
