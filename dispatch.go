package cellar

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// chunkWorkItem is one unit of parallel query work: a chunk plus the
// archetype and group that shape its columns. Items are snapshotted
// before dispatch; a chunk appended to a group after the snapshot is not
// visited by that dispatch.
type chunkWorkItem struct {
	arch  *Archetype
	group *ChunkGroup
	chunk *Chunk
}

// dispatcher fans chunk work items across a bounded worker set. The
// semaphore is shared by every dispatch on the same World, so concurrent
// ForEachParallel calls together never exceed the configured pool size.
type dispatcher struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
}

func newDispatcher(workers int) *dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &dispatcher{
		sem:    semaphore.NewWeighted(int64(workers)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// close stops admission of new work items. In-flight items run to
// completion; their goroutines are awaited by the dispatch that started
// them.
func (d *dispatcher) close() {
	d.cancel()
}

// run processes every item to completion, each on one worker. A consumer
// panic is recovered into an error; the first error reported stops
// admission of further items and is returned once all started items have
// finished. Items skipped after an error are never half-processed: a
// chunk either ran its full slot loop or was not dispatched at all.
func (d *dispatcher) run(items []chunkWorkItem, fn func(chunkWorkItem) error) error {
	g, ctx := errgroup.WithContext(d.ctx)
	for _, item := range items {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			break
		}
		g.Go(func() (err error) {
			defer d.sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("cellar: query consumer panicked: %v", r)
				}
			}()
			return fn(item)
		})
	}
	return g.Wait()
}
