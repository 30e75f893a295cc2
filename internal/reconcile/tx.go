package reconcile

import (
	"context"
	"sync"
	"time"

	dErrors "dataspace/pkg/domain-errors"
)

// StoreTx provides the persistence transaction around one transition: record
// update, revision append and ledger advance commit or roll back together.
// The memory implementation is a passthrough; the PostgreSQL one wraps an
// *sql.Tx carried through the context.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PassthroughTx runs the function directly. Used with in-memory stores, where
// the per-record lock alone provides the needed isolation.
type PassthroughTx struct{}

func (PassthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// numShards spreads per-record locks across mutexes. Keys hash into shards,
// so two records rarely contend while one record is always serialized.
const numShards = 128

// defaultTxTimeout bounds one transition end to end.
const defaultTxTimeout = 5 * time.Second

// RecordTx serializes transitions per correlation key and wraps them in the
// store transaction. At most one transition per record applies at a time;
// different records proceed concurrently on distinct shards.
type RecordTx struct {
	shards  [numShards]sync.Mutex
	storeTx StoreTx
	timeout time.Duration
}

// NewRecordTx builds the serialization scope around a store transaction.
func NewRecordTx(storeTx StoreTx) *RecordTx {
	return &RecordTx{storeTx: storeTx}
}

// RunInTx locks the shard for key, then runs fn inside the store transaction.
func (t *RecordTx) RunInTx(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transition aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := int(hashKey(key) % numShards)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transition aborted: context cancelled")
	}

	return t.storeTx.RunInTx(ctx, fn)
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
