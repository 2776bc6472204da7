package model

import "fmt"

// OrderType classifies how a filled order got filled.
type OrderType uint8

const (
	// Maker orders rested away from the market and were reached by a
	// later price move.
	Maker OrderType = 0
	// Taker orders were placed into current liquidity and filled as
	// part of the triggering swap.
	Taker OrderType = 1
)

func (t OrderType) String() string {
	switch t {
	case Maker:
		return "maker"
	case Taker:
		return "taker"
	default:
		return fmt.Sprintf("order_type(%d)", uint8(t))
	}
}

// ClaimableOrder is a filled, unclaimed position derived from the
// event log. It is a projection: recomputed on demand, safe to discard
// and rebuild, never a system of record.
type ClaimableOrder struct {
	Key          PositionKey `json:"key"`
	OrderType    OrderType   `json:"order_type"`
	Price        string      `json:"price"`
	DepositBlock uint64      `json:"deposit_block"`
	TriggerBlock uint64      `json:"trigger_block"`
	DepositTx    string      `json:"deposit_tx"`
}
