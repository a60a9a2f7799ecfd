package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrMalformedAddress is returned for input that is not a valid account address
var ErrMalformedAddress = errors.New("malformed address")

// NormalizeAddress parses a hex account address: 40 hex digits, optionally
// prefixed with a lowercase "0x". The input is taken as is, so whitespace or
// an uppercase "0X" prefix is rejected. All-lowercase and all-uppercase digits
// are accepted; mixed-case digits must carry a valid EIP-55 checksum.
func NormalizeAddress(raw string) (common.Address, error) {
	body := strings.TrimPrefix(raw, "0x")
	if len(body) != 2*common.AddressLength || !common.IsHexAddress("0x"+body) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrMalformedAddress, raw)
	}

	addr := common.HexToAddress(body)

	// Mixed case is a checksum claim
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex()[2:] != body {
		return common.Address{}, fmt.Errorf("%w: bad checksum %q", ErrMalformedAddress, raw)
	}

	return addr, nil
}
