package domain

import (
	"github.com/ethereum/go-ethereum/common"

	dErrors "sns/pkg/domain-errors"
)

// Identity is the 20-byte account address that authorizes registry calls and
// owns ledger balances.
type Identity common.Address

// ZeroIdentity is never a valid caller, admin or treasury.
var ZeroIdentity Identity

// ParseIdentity accepts a 0x-prefixed (or bare) 40 hex character address.
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return ZeroIdentity, dErrors.New(dErrors.CodeValidation, "identity is required")
	}
	if !common.IsHexAddress(s) {
		return ZeroIdentity, dErrors.New(dErrors.CodeValidation, "identity must be a 20-byte hex address")
	}
	id := Identity(common.HexToAddress(s))
	if id.IsZero() {
		return ZeroIdentity, dErrors.New(dErrors.CodeValidation, "identity must not be the zero address")
	}
	return id, nil
}

// MustParseIdentity is ParseIdentity for constants and tests.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (i Identity) IsZero() bool {
	return i == ZeroIdentity
}

// Hex returns the EIP-55 checksummed form.
func (i Identity) Hex() string {
	return common.Address(i).Hex()
}

func (i Identity) String() string {
	return i.Hex()
}

func (i Identity) MarshalText() ([]byte, error) {
	return []byte(i.Hex()), nil
}

func (i *Identity) UnmarshalText(b []byte) error {
	id, err := ParseIdentity(string(b))
	if err != nil {
		return err
	}
	*i = id
	return nil
}
