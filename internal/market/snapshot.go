// snapshot.go implements the one-shot snapshot task and the bootstrap drain.
//
// Bootstrap protocol: subscribe to the depth stream first and buffer every
// delta, then fetch a snapshot after a short delay so the stream leads it.
// Once the snapshot lands, discard buffered deltas it already covers and
// apply the rest in order. The task completes exactly once; its result is
// consumed exactly once by the engine.
package market

import (
	"context"
	"time"

	"ceraunus/pkg/types"
)

// SnapshotFetcher is the one capability the task needs from the REST client.
type SnapshotFetcher interface {
	DepthSnapshot(ctx context.Context, symbol types.Symbol, limit int) (*types.DepthSnapshot, error)
}

// SnapshotResult is the outcome of one snapshot task.
type SnapshotResult struct {
	Symbol   types.Symbol
	Snapshot *types.DepthSnapshot
	Err      error
}

// FetchSnapshot spawns a one-shot task: wait delay, fetch the snapshot,
// deliver the result once on the returned channel, close it.
func FetchSnapshot(ctx context.Context, fetcher SnapshotFetcher, symbol types.Symbol, limit int, delay time.Duration) <-chan SnapshotResult {
	ch := make(chan SnapshotResult, 1)
	go func() {
		defer close(ch)
		if delay > 0 {
			select {
			case <-ctx.Done():
				ch <- SnapshotResult{Symbol: symbol, Err: ctx.Err()}
				return
			case <-time.After(delay):
			}
		}
		snap, err := fetcher.DepthSnapshot(ctx, symbol, limit)
		ch <- SnapshotResult{Symbol: symbol, Snapshot: snap, Err: err}
	}()
	return ch
}

// Bootstrap builds a book from a snapshot and drains the buffered deltas:
// deltas the snapshot already covers are discarded, the remainder is applied
// in arrival order. A gap inside the buffer surfaces as ErrGap and the caller
// restarts the whole bootstrap.
func Bootstrap(symbol types.Symbol, snap *types.DepthSnapshot, buffered []*types.DepthUpdate) (*OrderBook, error) {
	ob := NewFromSnapshot(symbol, snap)
	for _, du := range buffered {
		if err := ob.Extend(du); err != nil {
			return nil, err
		}
	}
	return ob, nil
}
