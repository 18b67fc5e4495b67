package fdstream

import "sync"

// Chunk is one unit of data delivered by a ReadStream.
type Chunk struct {
	// Offset is the file offset of Data[0].
	Offset int64

	// Data is owned by the receiver; the stream never reuses it.
	Data []byte

	// Text is Data decoded with the stream encoding. It is empty when no
	// encoding is configured.
	Text string
}

// handlers holds the registered event callbacks of a stream. It is guarded
// by the stream lock; emit* take a snapshot so that a handler registered
// after an event was posted never sees that event twice.
type handlers struct {
	open  []func()
	data  []func(Chunk)
	end   []func()
	drain []func()
	err   []func(error)
	close []func()
}

func runAll(fns []func()) func() {
	return func() {
		for _, fn := range fns {
			fn()
		}
	}
}

func (h *handlers) emitOpen() func()  { return runAll(h.open) }
func (h *handlers) emitEnd() func()   { return runAll(h.end) }
func (h *handlers) emitDrain() func() { return runAll(h.drain) }
func (h *handlers) emitClose() func() { return runAll(h.close) }

func (h *handlers) emitData(c Chunk) func() {
	fns := h.data
	return func() {
		for _, fn := range fns {
			fn(c)
		}
	}
}

func (h *handlers) emitError(err error) func() {
	fns := h.err
	return func() {
		for _, fn := range fns {
			fn(err)
		}
	}
}

// dispatcher runs posted callbacks one at a time in posting order. Whoever
// calls flush while nobody else is flushing runs the queue; a callback that
// posts more work (for instance a handler calling Destroy) only enqueues it,
// and the active flush picks it up after the callback returns.
type dispatcher struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

// post may be called while holding the stream lock.
func (d *dispatcher) post(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
}

// flush must be called without holding the stream lock.
func (d *dispatcher) flush() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	for len(d.queue) > 0 {
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()
		fn()
		d.mu.Lock()
	}
	d.running = false
	d.mu.Unlock()
}
