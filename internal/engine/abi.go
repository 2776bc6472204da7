package engine

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Event shapes for the older (v6) settlement engine. Deposits, claims
// and withdrawals carry an opaque amount commitment; fills are keyed by
// the exact bucket.
const v6EventsABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"},
      {"indexed": false, "internalType": "uint8", "name": "side", "type": "uint8"},
      {"indexed": false, "internalType": "uint256", "name": "amountCommitment", "type": "uint256"}
    ],
    "name": "Deposit",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"},
      {"indexed": false, "internalType": "uint8", "name": "side", "type": "uint8"},
      {"indexed": false, "internalType": "uint256", "name": "amountCommitment", "type": "uint256"}
    ],
    "name": "Withdraw",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"},
      {"indexed": false, "internalType": "uint8", "name": "side", "type": "uint8"},
      {"indexed": false, "internalType": "uint256", "name": "amountCommitment", "type": "uint256"}
    ],
    "name": "Claim",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"},
      {"indexed": false, "internalType": "uint8", "name": "side", "type": "uint8"}
    ],
    "name": "BucketFilled",
    "type": "event"
  }
]`

// Event shapes for the newer (v8) settlement engine. No amount fields
// anywhere; fills surface as tick-range activations plus point reads.
const v8EventsABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"},
      {"indexed": false, "internalType": "uint8", "name": "side", "type": "uint8"}
    ],
    "name": "Deposit",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"},
      {"indexed": false, "internalType": "uint8", "name": "side", "type": "uint8"}
    ],
    "name": "Withdraw",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"},
      {"indexed": false, "internalType": "uint8", "name": "side", "type": "uint8"}
    ],
    "name": "Claim",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": false, "internalType": "int24", "name": "fromTick", "type": "int24"},
      {"indexed": false, "internalType": "int24", "name": "toTick", "type": "int24"},
      {"indexed": false, "internalType": "uint64", "name": "countActivated", "type": "uint64"}
    ],
    "name": "RangeActivated",
    "type": "event"
  }
]`

// Call surface shared by both engine versions: point reads and the two
// state-changing entry points. Encrypted values travel as uint256
// ciphertext handles.
const engineCallsABIJSON = `[
  {
    "inputs": [{"internalType": "bytes32", "name": "poolId", "type": "bytes32"}],
    "name": "getPoolState",
    "outputs": [
      {"internalType": "address", "name": "token0", "type": "address"},
      {"internalType": "address", "name": "token1", "type": "address"},
      {"internalType": "bool", "name": "initialized", "type": "bool"},
      {"internalType": "uint24", "name": "protocolFee", "type": "uint24"},
      {"internalType": "int24", "name": "currentTick", "type": "int24"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"internalType": "address", "name": "user", "type": "address"},
      {"internalType": "int24", "name": "tick", "type": "int24"},
      {"internalType": "uint8", "name": "side", "type": "uint8"}
    ],
    "name": "position",
    "outputs": [
      {"internalType": "uint256", "name": "shares", "type": "uint256"},
      {"internalType": "uint256", "name": "proceedsSnapshot", "type": "uint256"},
      {"internalType": "uint256", "name": "filledSnapshot", "type": "uint256"},
      {"internalType": "uint256", "name": "realizedProceeds", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"internalType": "int24", "name": "tick", "type": "int24"},
      {"internalType": "uint8", "name": "side", "type": "uint8"}
    ],
    "name": "claim",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"internalType": "int24", "name": "tick", "type": "int24"},
      {"internalType": "uint8", "name": "side", "type": "uint8"},
      {"internalType": "uint256", "name": "encryptedAmount", "type": "uint256"}
    ],
    "name": "withdraw",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var (
	v6EventsABI     abi.ABI
	v6EventsABIOnce sync.Once
	v6EventsABIErr  error

	v8EventsABI     abi.ABI
	v8EventsABIOnce sync.Once
	v8EventsABIErr  error

	engineCallsABI     abi.ABI
	engineCallsABIOnce sync.Once
	engineCallsABIErr  error
)

// V6EventsABI returns the parsed v6 event ABI.
func V6EventsABI() (abi.ABI, error) {
	v6EventsABIOnce.Do(func() {
		v6EventsABI, v6EventsABIErr = abi.JSON(strings.NewReader(v6EventsABIJSON))
	})
	return v6EventsABI, v6EventsABIErr
}

// V8EventsABI returns the parsed v8 event ABI.
func V8EventsABI() (abi.ABI, error) {
	v8EventsABIOnce.Do(func() {
		v8EventsABI, v8EventsABIErr = abi.JSON(strings.NewReader(v8EventsABIJSON))
	})
	return v8EventsABI, v8EventsABIErr
}

// CallsABI returns the parsed call-surface ABI.
func CallsABI() (abi.ABI, error) {
	engineCallsABIOnce.Do(func() {
		engineCallsABI, engineCallsABIErr = abi.JSON(strings.NewReader(engineCallsABIJSON))
	})
	return engineCallsABI, engineCallsABIErr
}
