package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"veilswap/internal/model"
)

func TestJsonlSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "orders.jsonl")
	sink := NewJsonlSink(path)

	orders := []model.ClaimableOrder{
		{
			Key:          model.PositionKey{PoolID: common.HexToHash("0xaa"), Tick: 100, Side: model.Sell},
			OrderType:    model.Maker,
			Price:        "1.0100502",
			DepositBlock: 50,
			TriggerBlock: 100,
			DepositTx:    "0xdead",
		},
	}
	if err := sink.PutOrderSnapshot(orders); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := sink.PutOrderSnapshot(orders); err != nil {
		t.Fatalf("second write: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	var lines []model.ClaimableOrder
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var order model.ClaimableOrder
		if err := json.Unmarshal(scanner.Bytes(), &order); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		lines = append(lines, order)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Key != orders[0].Key || lines[0].TriggerBlock != 100 {
		t.Fatalf("round trip mismatch: %+v", lines[0])
	}
}

func TestJsonlSinkEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.jsonl")
	if err := NewJsonlSink(path).PutOrderSnapshot(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch must not create the file")
	}
}
