package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Seeds namespace derived keys so a name can never collide with an identity.
var (
	configSeed  = []byte("config")
	nameSeed    = []byte("name")
	reverseSeed = []byte("reverse")
)

func deriveKey(parts ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// NameKey is the deterministic identifier of the record holding name.
func NameKey(name string) common.Hash {
	return deriveKey(nameSeed, []byte(name))
}

// ReverseKey is the deterministic identifier of owner's reverse record.
func ReverseKey(owner Identity) common.Hash {
	return deriveKey(reverseSeed, owner[:])
}

// CustodyAccount is the ledger account that holds registry fees. It is derived
// from the config seed, so no key holder can sign for it.
func CustodyAccount() Identity {
	return Identity(common.BytesToAddress(deriveKey(configSeed).Bytes()))
}
