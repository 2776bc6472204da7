package model

import "github.com/ethereum/go-ethereum/common"

// DepositEvent is a decoded Deposit log. AmountCommitment is only
// present under the older engine schema; newer deposits carry no
// amount field at all.
type DepositEvent struct {
	Key              PositionKey `json:"key"`
	User             string      `json:"user"`
	BlockNumber      uint64      `json:"block_number"`
	TxHash           string      `json:"tx_hash"`
	LogIndex         uint64      `json:"log_index"`
	AmountCommitment string      `json:"amount_commitment,omitempty"`
}

// WithdrawEvent is a decoded Withdraw log.
type WithdrawEvent struct {
	Key         PositionKey `json:"key"`
	User        string      `json:"user"`
	BlockNumber uint64      `json:"block_number"`
	TxHash      string      `json:"tx_hash"`
	LogIndex    uint64      `json:"log_index"`
}

// ClaimEvent is a decoded Claim log.
type ClaimEvent struct {
	Key         PositionKey `json:"key"`
	User        string      `json:"user"`
	BlockNumber uint64      `json:"block_number"`
	TxHash      string      `json:"tx_hash"`
	LogIndex    uint64      `json:"log_index"`
}

// BucketFilledEvent is the older schema's fill notification, keyed by
// the exact bucket that filled.
type BucketFilledEvent struct {
	Key         PositionKey `json:"key"`
	BlockNumber uint64      `json:"block_number"`
	TxHash      string      `json:"tx_hash"`
	LogIndex    uint64      `json:"log_index"`
}

// RangeActivatedEvent is the newer schema's fill notification: a swap
// crossed [FromTick, ToTick] on a pool and activated the buckets in
// between. Tick bounds may arrive in either direction.
type RangeActivatedEvent struct {
	PoolID         common.Hash `json:"pool_id"`
	FromTick       int32       `json:"from_tick"`
	ToTick         int32       `json:"to_tick"`
	CountActivated uint64      `json:"count_activated"`
	BlockNumber    uint64      `json:"block_number"`
	TxHash         string      `json:"tx_hash"`
	LogIndex       uint64      `json:"log_index"`
}

// EventSet is one consistent fetch of all ledger events for a user and
// pool over a block window. Partial sets are never produced: either
// every sub-query succeeded or the fetch failed as a unit.
type EventSet struct {
	Deposits  []DepositEvent
	Claims    []ClaimEvent
	Withdraws []WithdrawEvent

	// BucketFills is populated under the older schema, RangeActivations
	// under the newer one; the other slice stays empty.
	BucketFills      []BucketFilledEvent
	RangeActivations []RangeActivatedEvent

	FromBlock uint64
	ToBlock   uint64
}
