package pipeline

import "fmt"

// ReorderBuffer holds renamed instructions in program order.
type ReorderBuffer struct {
	entries []ROBEntry
	head    int
	count   int

	lastRetired uint64
}

// NewReorderBuffer creates a reorder buffer with the given capacity.
func NewReorderBuffer(size int) *ReorderBuffer {
	return &ReorderBuffer{entries: make([]ROBEntry, size)}
}

// Len returns the number of occupied entries.
func (r *ReorderBuffer) Len() int {
	return r.count
}

// Full reports whether no entry is free.
func (r *ReorderBuffer) Full() bool {
	return r.count == len(r.entries)
}

// Empty reports whether the buffer holds no entries.
func (r *ReorderBuffer) Empty() bool {
	return r.count == 0
}

func (r *ReorderBuffer) slot(i int) int {
	return (r.head + i) % len(r.entries)
}

// Push appends a micro-op at the tail.
func (r *ReorderBuffer) Push(uop *MicroOp) *ROBEntry {
	if r.Full() {
		panic("rob: push into a full buffer")
	}
	if r.count > 0 && uop.Tag <= r.At(r.count-1).Uop.Tag {
		panic(fmt.Sprintf("rob: tag %d pushed after %d", uop.Tag, r.At(r.count-1).Uop.Tag))
	}

	e := &r.entries[r.slot(r.count)]
	*e = ROBEntry{Uop: uop}
	r.count++
	return e
}

// At returns the i-th entry counted from the head.
func (r *ReorderBuffer) At(i int) *ROBEntry {
	return &r.entries[r.slot(i)]
}

// Head returns the oldest entry, or nil.
func (r *ReorderBuffer) Head() *ROBEntry {
	if r.count == 0 {
		return nil
	}
	return r.At(0)
}

// Find returns the entry holding tag, or nil.
func (r *ReorderBuffer) Find(tag uint64) *ROBEntry {
	for i := range r.count {
		if e := r.At(i); e.Uop.Tag == tag {
			return e
		}
	}
	return nil
}

// Retire pops the head, which must hold tag and be completed. Retiring any
// other entry panics.
func (r *ReorderBuffer) Retire(tag uint64) ROBEntry {
	head := r.Head()
	switch {
	case head == nil:
		panic(fmt.Sprintf("rob: retiring tag %d from an empty buffer", tag))
	case head.Uop.Tag != tag:
		panic(fmt.Sprintf("rob: retiring tag %d but the head is %d", tag, head.Uop.Tag))
	case head.Status != StatusCompleted:
		panic(fmt.Sprintf("rob: retiring tag %d before it completed", tag))
	case tag <= r.lastRetired:
		panic(fmt.Sprintf("rob: tag %d retired after %d", tag, r.lastRetired))
	}

	e := *head
	*head = ROBEntry{}
	r.head = r.slot(1)
	r.count--
	r.lastRetired = tag
	return e
}

// FlushFrom removes, youngest first, every entry whose epoch is at least
// epoch and calls undo on each.
func (r *ReorderBuffer) FlushFrom(epoch uint64, undo func(*ROBEntry)) int {
	n := 0
	for r.count > 0 {
		tail := r.At(r.count - 1)
		if !tail.Uop.Flushed(epoch) {
			break
		}
		undo(tail)
		*tail = ROBEntry{}
		r.count--
		n++
	}
	return n
}

// Reset empties the buffer.
func (r *ReorderBuffer) Reset() {
	clear(r.entries)
	r.head = 0
	r.count = 0
	r.lastRetired = 0
}
