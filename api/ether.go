package api

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of wei digits in one ether.
const EtherDecimals = 18

var ErrInvalidAmount = errors.New("invalid amount")

// ParseEther converts a decimal ether amount such as "0.005" to wei.
// Negative amounts and amounts with more than 18 fractional digits are
// rejected.
func ParseEther(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}

	wei := d.Shift(EtherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has sub-wei precision", ErrInvalidAmount, s)
	}

	amount, overflow := uint256.FromBig(wei.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: %q overflows 256 bits", ErrInvalidAmount, s)
	}
	return amount, nil
}

// FormatEther renders a wei amount as a decimal ether string without
// trailing zeros. A nil amount formats as "0".
func FormatEther(wei *uint256.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei.ToBig(), -EtherDecimals).String()
}
