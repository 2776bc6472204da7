package engine

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestComputePoolIDCanonicalOrder(t *testing.T) {
	tokenA := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	forward := ComputePoolID(tokenA, tokenB, 2500, 60, testEngine)
	reversed := ComputePoolID(tokenB, tokenA, 2500, 60, testEngine)
	if forward != reversed {
		t.Fatalf("token order must not change the pool id: %s != %s", forward.Hex(), reversed.Hex())
	}

	otherFee := ComputePoolID(tokenA, tokenB, 500, 60, testEngine)
	if forward == otherFee {
		t.Fatalf("different fee tiers must not collide")
	}

	otherEngine := ComputePoolID(tokenA, tokenB, 2500, 60, testUser)
	if forward == otherEngine {
		t.Fatalf("different engine deployments must not collide")
	}
}
