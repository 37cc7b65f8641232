package queue

// entry is one pending firing request.
//
// Entries are recycled through the worker's free list; nothing outside the
// worker keeps a pointer to one after it has fired or been dropped.
type entry struct {
	queue *Queue
	arg   any
	ts    float64 // local time of the owning timer

	// Set when the entry is collected for a wake-up.
	shared float64
	seq    uint64
	held   bool // deferred at least once

	next *entry // free list link
}

// entryPool is an intrusive free list of entries.
type entryPool struct {
	free *entry
	size int
}

func (p *entryPool) get() *entry {
	e := p.free
	if e == nil {
		return &entry{}
	}
	p.free = e.next
	p.size--
	e.next = nil
	return e
}

func (p *entryPool) put(e *entry) {
	*e = entry{next: p.free}
	p.free = e
	p.size++
}

// Firing is a due request drained from a queue by FlushUpTo.
type Firing struct {
	Arg any
	Ts  float64
}
