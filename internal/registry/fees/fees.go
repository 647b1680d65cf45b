// Package fees prices names and moves fees between ledger accounts. Both
// Register and Renew settle through Settle so the charge is computed and
// applied identically.
package fees

import (
	"context"
	"errors"
	"math/bits"

	id "sns/pkg/domain"
	dErrors "sns/pkg/domain-errors"
	"sns/pkg/platform/sentinel"
)

// Ledger moves balances. Transfer must be atomic with the rest of the
// enclosing transaction.
type Ledger interface {
	Transfer(ctx context.Context, from, to id.Identity, amount uint64) error
}

// Price is pricePerChar times the byte length of name.
func Price(pricePerChar uint64, name string) (uint64, error) {
	hi, lo := bits.Mul64(pricePerChar, uint64(len(name)))
	if hi != 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "fee exceeds the ledger's unit range")
	}
	return lo, nil
}

// Settle moves amount from payer into registry custody.
func Settle(ctx context.Context, ledger Ledger, payer id.Identity, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := ledger.Transfer(ctx, payer, id.CustodyAccount(), amount); err != nil {
		if errors.Is(err, sentinel.ErrInsufficientFunds) {
			return dErrors.Wrap(err, dErrors.CodeInsufficientFunds, "insufficient funds")
		}
		if errors.Is(err, sentinel.ErrOverflow) {
			return dErrors.Wrap(err, dErrors.CodeBalanceOverflow, "custody balance would exceed the ledger's unit range")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "fee transfer failed")
	}
	return nil
}

// Withdrawable is the custody surplus above the minimum reserve.
func Withdrawable(balance, reserve uint64) (uint64, error) {
	if balance <= reserve {
		return 0, dErrors.New(dErrors.CodeNoFeesAvailable, "no fees available")
	}
	return balance - reserve, nil
}
