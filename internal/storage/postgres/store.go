package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"veilswap/internal/model"
)

// Store provides Postgres persistence for order snapshots and claim
// history.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ReplaceOrderSnapshot swaps in the current claimable-order snapshot
// for a user. Stale rows are removed: an order that was claimed since
// the last pass must disappear, and an empty projection clears the
// table. Snapshots are projections; the event log on chain is the
// system of record.
func (s *Store) ReplaceOrderSnapshot(ctx context.Context, user string, orders []model.ClaimableOrder) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM order_snapshots WHERE user_address=$1`, user); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, order := range orders {
		batch.Queue(`
			INSERT INTO order_snapshots (
				user_address, pool_id, tick, side, order_type, price,
				deposit_block, trigger_block, deposit_tx, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		`,
			user,
			order.Key.PoolID.Hex(),
			order.Key.Tick,
			order.Key.Side.String(),
			order.OrderType.String(),
			order.Price,
			int64(order.DepositBlock),
			int64(order.TriggerBlock),
			order.DepositTx,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range orders {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ClaimAttempt is one row of claim history.
type ClaimAttempt struct {
	User      string
	Key       model.PositionKey
	TxHash    string
	Succeeded bool
	Error     string
	At        time.Time
}

// InsertClaimAttempts records the outcome of a claim batch.
func (s *Store) InsertClaimAttempts(ctx context.Context, attempts []ClaimAttempt) error {
	if len(attempts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, attempt := range attempts {
		batch.Queue(`
			INSERT INTO claim_attempts (
				user_address, pool_id, tick, side, tx_hash, succeeded, error, attempted_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			attempt.User,
			attempt.Key.PoolID.Hex(),
			attempt.Key.Tick,
			attempt.Key.Side.String(),
			attempt.TxHash,
			attempt.Succeeded,
			attempt.Error,
			attempt.At.UTC(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range attempts {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadScanState returns the last fully scanned block for a user and pool.
func (s *Store) LoadScanState(ctx context.Context, user, poolID string) (uint64, bool, error) {
	var block uint64
	row := s.pool.QueryRow(ctx, `
		SELECT last_scanned_block FROM scan_state WHERE user_address=$1 AND pool_id=$2
	`, user, poolID)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return block, true, nil
}

// SaveScanState upserts the last fully scanned block for a user and pool.
func (s *Store) SaveScanState(ctx context.Context, user, poolID string, block uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_state (user_address, pool_id, last_scanned_block, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_address, pool_id) DO UPDATE
		SET last_scanned_block = EXCLUDED.last_scanned_block, updated_at = now()
	`, user, poolID, int64(block))
	return err
}
