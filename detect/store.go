package detect

// ChunkSize bounds each allocation in a Store's chunk chain. Chunking keeps
// per-record overhead small and allocations amortized; it is not a cap on
// the number of records a Store can hold.
const ChunkSize = 16

type chunk struct {
	records [ChunkSize]Record
	next    *chunk
}

// Store is a bounded-chunk, append-only sequence of progress records for
// one direction of one transaction-or-flow. It never deletes an individual
// record: a Store is either fully alive, or released in its entirety with
// its owner (spec.md §4.1).
type Store struct {
	head *chunk
	tail *chunk
	cnt  int
}

// Len returns the number of records appended so far.
func (s *Store) Len() int { return s.cnt }

// Append adds a record to the end of the sequence in O(1) amortized time.
// It reports whether a new chunk was allocated to hold it, so callers can
// attribute allocation metrics without the Store depending on a metrics
// package itself.
func (s *Store) Append(r Record) (allocatedChunk bool) {
	var idx = s.cnt % ChunkSize
	if idx == 0 || s.tail == nil {
		var c = &chunk{}
		if s.head == nil {
			s.head = c
		} else {
			s.tail.next = c
		}
		s.tail = c
		allocatedChunk = true
	}
	s.tail.records[idx] = r
	s.cnt++
	return allocatedChunk
}

// At returns a pointer to the i-th record in insertion order, so callers
// can mutate a record in place (Continue Path updates flags on the stored
// record, never appends a duplicate).
func (s *Store) At(i int) *Record {
	if i < 0 || i >= s.cnt {
		return nil
	}
	var c = s.head
	for i >= ChunkSize {
		c = c.next
		i -= ChunkSize
	}
	return &c.records[i]
}

// Each walks every record in insertion order. fn may mutate the record via
// its pointer; it must not retain the pointer past the call.
func (s *Store) Each(fn func(i int, r *Record)) {
	var i int
	for c := s.head; c != nil && i < s.cnt; c = c.next {
		var n = s.cnt - i
		if n > ChunkSize {
			n = ChunkSize
		}
		for j := 0; j < n; j++ {
			fn(i, &c.records[j])
			i++
		}
	}
}

// Find returns the record for sid, or nil if none has been parked yet.
// Record uniqueness (spec.md invariant: at most one record per
// (tx,dir,sid)) is the caller's responsibility — StartPath only appends
// for a signature that has never parked on this transaction/direction, and
// ContinuePath only ever mutates in place via Each/At.
func (s *Store) Find(sid Sid) *Record {
	var found *Record
	s.Each(func(_ int, r *Record) {
		if r.Sid == sid {
			found = r
		}
	})
	return found
}

// chunkCount returns ceil(cnt / ChunkSize), the number of allocated chunks
// — a testable invariant (spec.md §8.2).
func (s *Store) chunkCount() int {
	var n int
	for c := s.head; c != nil; c = c.next {
		n++
	}
	return n
}
