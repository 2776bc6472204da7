package model

import "math/big"

// PositionState is a point read of a position's engine-side slots. All
// four values are ciphertext handles, not plaintext amounts; an unset
// slot reads as the zero handle.
type PositionState struct {
	Shares           *big.Int
	ProceedsSnapshot *big.Int
	FilledSnapshot   *big.Int
	RealizedProceeds *big.Int
}

// HasProceeds reports whether the position has realized proceeds to
// claim. The engine writes a fresh handle the first time proceeds are
// credited, so a nonzero handle is the claimability signal; no
// decryption is needed.
func (p PositionState) HasProceeds() bool {
	return p.RealizedProceeds != nil && p.RealizedProceeds.Sign() != 0
}

// PoolState is a point read of immutable-ish pool metadata plus the
// current tick used for placement-geometry classification.
type PoolState struct {
	Token0      string
	Token1      string
	Initialized bool
	ProtocolFee uint32
	CurrentTick int32
}
