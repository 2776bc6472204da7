package storage

import "veilswap/internal/model"

// Sink receives reconciled order snapshots. Snapshots are export
// artifacts of a projection: safe to truncate and rebuild.
type Sink interface {
	PutOrderSnapshot(orders []model.ClaimableOrder) error
}
