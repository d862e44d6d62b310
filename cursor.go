package silo

import "golang.org/x/sync/errgroup"

// Run dispatches batches of up to Config.BatchSize chunks sequentially,
// invoking fn once per non-empty batch member with its admitted row
// range locked against structural change. The query's last-seen
// version advances to the world's current version once every batch has
// run, so a subsequent Changed() filter observes only writes made after
// this call returns.
func (q *Query) Run(fn func(it *Iterator)) {
	q.dispatch(fn, false)
}

// RunParallel is Run's concurrent counterpart: batches run on separate
// goroutines via errgroup, while individual iterators within one batch
// are still visited in order on that goroutine. Callers must not share
// mutable state across iterators without their own synchronization.
func (q *Query) RunParallel(fn func(it *Iterator)) {
	q.dispatch(fn, true)
}

func (q *Query) dispatch(fn func(it *Iterator), parallel bool) {
	w := q.world
	w.lock()
	defer w.unlock()

	since := q.lastSeenVersion
	var chunks []*Chunk
	for _, aid := range q.plan.refreshMatches(w) {
		a := w.archetypes[aid]
		for _, c := range a.chunks {
			if c.Size() == 0 {
				continue
			}
			if !q.plan.passesChanged(c, since) {
				continue
			}
			chunks = append(chunks, c)
		}
	}

	batches := batchChunks(chunks, Config.BatchSize)
	runOne := func(batch []*Chunk) {
		for _, c := range batch {
			c.Lock(true)
		}
		defer func() {
			for _, c := range batch {
				c.Lock(false)
			}
		}()
		for _, c := range batch {
			from, to := boundsFor(c, q.plan.constraint)
			if from >= to {
				continue
			}
			fn(&Iterator{chunk: c, from: from, to: to})
		}
	}

	if !parallel || len(batches) <= 1 {
		for _, b := range batches {
			runOne(b)
		}
	} else {
		var g errgroup.Group
		for _, b := range batches {
			b := b
			g.Go(func() error {
				runOne(b)
				return nil
			})
		}
		_ = g.Wait()
	}

	q.lastSeenVersion = w.Version()
}

func batchChunks(chunks []*Chunk, size int) [][]*Chunk {
	if size <= 0 {
		size = 1
	}
	var batches [][]*Chunk
	for i := 0; i < len(chunks); i += size {
		end := i + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[i:end])
	}
	return batches
}
