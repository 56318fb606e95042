package model

import (
	"fmt"
	"math/big"
)

// MaxBps is 100% expressed in basis points.
const MaxBps uint64 = 10000

var maxBps = new(big.Int).SetUint64(MaxBps)

// ValidateBps rejects values above MaxBps.
func ValidateBps(name string, bps uint64) error {
	if bps > MaxBps {
		return fmt.Errorf("%w: %s %d exceeds %d", ErrInvalidParameter, name, bps, MaxBps)
	}
	return nil
}

// ApplyBps returns amount * bps / 10000, rounded down.
func ApplyBps(amount *big.Int, bps uint64) *big.Int {
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(bps))
	return out.Quo(out, maxBps)
}

// Min returns a copy of the smaller of a and b.
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// SubFloor returns max(0, a-b).
func SubFloor(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(a, b)
}
