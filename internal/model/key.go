package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// PositionKey identifies a user position slot: one bucket on one pool.
// It is a comparable value type so it can be used directly as a map or
// set key, avoiding string-concatenation key formats drifting apart
// between producers and consumers.
type PositionKey struct {
	PoolID common.Hash
	Tick   int32
	Side   Side
}

// String renders the key for logs.
func (k PositionKey) String() string {
	return fmt.Sprintf("%s/%d/%s", k.PoolID.Hex(), k.Tick, k.Side)
}

// Less orders keys for deterministic output: by pool, then tick, then side.
func (k PositionKey) Less(other PositionKey) bool {
	if cmp := k.PoolID.Cmp(other.PoolID); cmp != 0 {
		return cmp < 0
	}
	if k.Tick != other.Tick {
		return k.Tick < other.Tick
	}
	return k.Side < other.Side
}
