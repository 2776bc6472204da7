package engine

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ComputePoolID derives the pool identifier the engine uses internally:
// keccak256 over the token pair, fee tier, tick spacing and the engine
// address, with the tokens in canonical order.
func ComputePoolID(token0, token1 common.Address, fee uint32, tickSpacing int32, engineAddr common.Address) common.Hash {
	if token1.Cmp(token0) < 0 {
		token0, token1 = token1, token0
	}

	uint24Type, _ := abi.NewType("uint24", "", nil)
	int24Type, _ := abi.NewType("int24", "", nil)
	addressType, _ := abi.NewType("address", "", nil)

	args := abi.Arguments{
		{Type: addressType},
		{Type: addressType},
		{Type: uint24Type},
		{Type: int24Type},
		{Type: addressType},
	}
	packed, err := args.Pack(token0, token1, big.NewInt(int64(fee)), big.NewInt(int64(tickSpacing)), engineAddr)
	if err != nil {
		// The argument set is static; packing can only fail on a
		// programming error.
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}
