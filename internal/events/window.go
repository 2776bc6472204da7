package events

import "fmt"

// ClampWindow bounds a block range to at most maxBlocks, keeping the
// upper end. Upstream log queries reject oversized ranges, so the
// source never scans further back than the window allows.
func ClampWindow(from, to, maxBlocks uint64) (uint64, uint64, error) {
	if to < from {
		return 0, 0, fmt.Errorf("to block must be >= from block")
	}
	if maxBlocks == 0 {
		return from, to, nil
	}
	if to-from+1 > maxBlocks {
		from = to - maxBlocks + 1
	}
	return from, to, nil
}
