package pipeline

// queueEntry is a micro-op resident in a functional unit.
type queueEntry struct {
	uop       *MicroOp
	result    ExecutionResult
	remaining uint64
}

// UnitQueue models a functional unit with a bounded set of in-flight
// operations and a single writeback port. Every resident entry counts down
// once per cycle, and among the entries that reached zero the one with the
// smallest tag is written back.
type UnitQueue struct {
	name     string
	capacity int
	entries  []queueEntry
}

// NewUnitQueue creates a unit that holds at most capacity operations.
func NewUnitQueue(name string, capacity int) *UnitQueue {
	return &UnitQueue{
		name:     name,
		capacity: capacity,
		entries:  make([]queueEntry, 0, capacity),
	}
}

// Name returns the unit name used in logs.
func (q *UnitQueue) Name() string {
	return q.name
}

// Len returns the number of resident operations.
func (q *UnitQueue) Len() int {
	return len(q.entries)
}

// CanAccept reports whether the unit has room for another operation.
func (q *UnitQueue) CanAccept() bool {
	return len(q.entries) < q.capacity
}

// Accept inserts an operation whose result is written back after latency
// cycles. It returns false when the unit is full.
func (q *UnitQueue) Accept(uop *MicroOp, result ExecutionResult, latency uint64) bool {
	if !q.CanAccept() {
		return false
	}
	q.entries = append(q.entries, queueEntry{uop: uop, result: result, remaining: latency})
	return true
}

// Tick advances every resident operation by one cycle and returns the
// result written back this cycle, if any.
func (q *UnitQueue) Tick() (ExecutionResult, bool) {
	winner := -1
	for i := range q.entries {
		e := &q.entries[i]
		if e.remaining > 0 {
			e.remaining--
		}
		if e.remaining == 0 && (winner < 0 || e.uop.Tag < q.entries[winner].uop.Tag) {
			winner = i
		}
	}

	if winner < 0 {
		return ExecutionResult{}, false
	}

	result := q.entries[winner].result
	q.entries = append(q.entries[:winner], q.entries[winner+1:]...)
	return result, true
}

// Flush removes every operation whose epoch is at least epoch without
// producing a result.
func (q *UnitQueue) Flush(epoch uint64) int {
	kept := q.entries[:0]
	for _, e := range q.entries {
		if !e.uop.Flushed(epoch) {
			kept = append(kept, e)
		}
	}
	n := len(q.entries) - len(kept)
	clear(q.entries[len(kept):])
	q.entries = kept
	return n
}

// Reset drops every resident operation.
func (q *UnitQueue) Reset() {
	clear(q.entries)
	q.entries = q.entries[:0]
}
