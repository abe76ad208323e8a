// Package util holds the fixed-point primitives the health-factor and
// profitability math is built on, plus small helpers (ABI loading, key
// decryption) shared by more than one vega process.
package util

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// ErrOverflow256 is returned when an intermediate value does not fit in an
// unsigned 256-bit word, matching the failure mode a Solidity contract would
// revert with.
var ErrOverflow256 = errors.New("fixedpoint: value overflows uint256")

// MulDiv computes floor(x*y/d) with a 512-bit intermediate product, exactly
// the primitive the lending protocol's Solidity math library uses. Division
// truncates toward zero; d must be non-zero.
func MulDiv(x, y, d *big.Int) (*big.Int, error) {
	if d.Sign() == 0 {
		return nil, errors.New("fixedpoint: division by zero")
	}
	ux, overflow := uint256.FromBig(x)
	if overflow {
		return nil, ErrOverflow256
	}
	uy, overflow := uint256.FromBig(y)
	if overflow {
		return nil, ErrOverflow256
	}
	ud, overflow := uint256.FromBig(d)
	if overflow {
		return nil, ErrOverflow256
	}
	result, overflow := new(uint256.Int).MulDivOverflow(ux, uy, ud)
	if overflow {
		return nil, ErrOverflow256
	}
	return result.ToBig(), nil
}

// MulDivRatio computes floor(x*numerator/denominator) for small (uint32)
// ratio fields such as basis-point scalars, without forcing callers to box
// them as *big.Int.
func MulDivRatio(x *big.Int, numerator, denominator uint32) (*big.Int, error) {
	return MulDiv(x, big.NewInt(int64(numerator)), big.NewInt(int64(denominator)))
}

// CheckedAdd returns a+b, erroring if the sum would not fit in 256 bits.
func CheckedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(a, b)
	if sum.BitLen() > 256 {
		return nil, ErrOverflow256
	}
	return sum, nil
}
