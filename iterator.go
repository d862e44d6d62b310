package silo

import "iter"

// Constraint selects which partition of a chunk's rows a query runs
// over.
type Constraint int

const (
	// EnabledOnly yields rows [disabledCount, rowCount).
	EnabledOnly Constraint = iota
	// DisabledOnly yields rows [0, disabledCount).
	DisabledOnly
	// AcceptAll yields rows [0, rowCount).
	AcceptAll
)

// Iterator is the batch the runner hands to a query callback: one
// locked chunk and the row bounds the requested Constraint admits.
type Iterator struct {
	chunk *Chunk
	from  int
	to    int
}

// Chunk returns the underlying chunk for this batch.
func (it *Iterator) Chunk() *Chunk { return it.chunk }

// Len is the number of rows in this batch.
func (it *Iterator) Len() int { return it.to - it.from }

// From and To are the half-open row bounds of this batch.
func (it *Iterator) From() int { return it.from }
func (it *Iterator) To() int   { return it.to }

// Rows yields every row index in [From, To).
func (it *Iterator) Rows() iter.Seq[int] {
	return func(yield func(int) bool) {
		for r := it.from; r < it.to; r++ {
			if !yield(r) {
				return
			}
		}
	}
}

// Entity returns the entity stored at row.
func (it *Iterator) Entity(row int) Entity { return it.chunk.EntityAt(row) }

func boundsFor(c *Chunk, constraint Constraint) (from, to int) {
	switch constraint {
	case DisabledOnly:
		return 0, c.disabledCount
	case AcceptAll:
		return 0, c.rowCount
	default: // EnabledOnly
		return c.disabledCount, c.rowCount
	}
}
