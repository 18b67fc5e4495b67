package fdstream

import (
	"io"

	"github.com/rosedblabs/fdstream/fs"
	"github.com/rosedblabs/fdstream/internal"
	"github.com/rosedblabs/fdstream/internal/pool"
	"github.com/rosedblabs/fdstream/metrics"
)

type writeReq struct {
	data   []byte
	cb     func(error)
	issued bool
}

// WriteStream serializes writes to a file. One write is in flight at a time;
// writes arriving meanwhile are queued and applied strictly in call order.
type WriteStream struct {
	stream
	opts WriteOptions
	pool *pool.BufferPool

	queue        []*writeReq
	current      *writeReq
	inFlight     bool
	queued       int
	needDrain    bool
	bytesWritten int64
	idleWaiters  []func()
}

// NewWriteStream creates a WriteStream on path and starts opening it.
// Writes issued before the file is open are queued.
func NewWriteStream(path string, opts WriteOptions) *WriteStream {
	opts = opts.normalize()
	ws := &WriteStream{
		opts: opts,
		pool: pool.NewBufferPool(opts.HighWaterMark),
	}
	ws.init(path, metrics.DirectionWrite, opts.AutoClose, opts.Metrics, opts.Start)
	ws.beforeClose = ws.closingLocked
	ws.begin(opts.FileSystem, opts.File, opts.Flag, opts.Perm)
	return ws
}

// OnDrain registers fn for the drain event, emitted when the stream becomes
// idle after writes had to be queued.
func (ws *WriteStream) OnDrain(fn func()) {
	ws.mu.Lock()
	ws.events.drain = append(ws.events.drain, fn)
	ws.mu.Unlock()
}

// Write queues a copy of chunk. cb, if not nil, is called once the chunk is
// written or the stream gave up on it. The result is false once the bytes
// not yet written reach the high water mark; the chunk is accepted anyway.
func (ws *WriteStream) Write(chunk []byte, cb func(error)) bool {
	ws.mu.Lock()
	if ws.errored || ws.desc.state == stateClosed {
		if cb != nil {
			ws.dispatch.post(func() { cb(ErrWriteAfterEnd) })
		}
		ws.mu.Unlock()
		ws.dispatch.flush()
		return false
	}

	req := &writeReq{data: ws.pool.Copy(chunk), cb: cb}
	ws.queued += len(req.data)
	ws.metrics.AddQueued(len(req.data))
	ok := ws.queued < ws.opts.HighWaterMark
	if !ok {
		ws.needDrain = true
	}
	if ws.inFlight {
		ws.queue = append(ws.queue, req)
		ws.needDrain = true
	} else {
		ws.inFlight = true
		ws.issueLocked(req)
	}
	ws.mu.Unlock()
	return ok
}

// WriteString converts s with enc, or the stream encoding when enc is empty,
// and writes the result.
func (ws *WriteStream) WriteString(s string, enc Encoding, cb func(error)) bool {
	if enc == EncodingNone {
		enc = ws.opts.Encoding
	}
	b, err := enc.Encode(s)
	if err != nil {
		ws.mu.Lock()
		if cb != nil {
			ws.dispatch.post(func() { cb(err) })
		}
		ok := ws.queued < ws.opts.HighWaterMark
		ws.mu.Unlock()
		ws.dispatch.flush()
		return ok
	}
	return ws.Write(b, cb)
}

// Destroy closes the descriptor right away. Queued writes are not flushed;
// their callbacks receive ErrStreamDestroyed.
func (ws *WriteStream) Destroy() {
	ws.mu.Lock()
	ws.destroyLocked()
	ws.mu.Unlock()
	ws.dispatch.flush()
}

// Queued is the number of bytes accepted but not yet written.
func (ws *WriteStream) Queued() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.queued
}

// BytesWritten is the number of bytes confirmed written.
func (ws *WriteStream) BytesWritten() int64 {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.bytesWritten
}

// whenIdle calls fn once no write is in flight, or when the stream fails or closes.
func (ws *WriteStream) whenIdle(fn func()) {
	ws.mu.Lock()
	if !ws.inFlight || ws.errored || ws.desc.state == stateClosed {
		ws.dispatch.post(fn)
	} else {
		ws.idleWaiters = append(ws.idleWaiters, fn)
	}
	ws.mu.Unlock()
	ws.dispatch.flush()
}

func (ws *WriteStream) issueLocked(req *writeReq) {
	ws.current = req
	ws.desc.whenReady(func(f fs.File) {
		req.issued = true
		go ws.write(f, req, ws.desc.position)
	})
}

func (ws *WriteStream) write(f fs.File, req *writeReq, pos int64) {
	n, err := f.WriteAt(req.data, pos)
	if err == nil && n < len(req.data) {
		err = io.ErrShortWrite
	}

	ws.mu.Lock()
	ws.pool.PutBuffer(req.data)
	if ws.current == req {
		ws.current = nil
	}
	switch {
	case ws.desc.state == stateClosed:
		ws.completeLocked(req, ErrStreamDestroyed)
	case err != nil:
		ioErr := newIOError("write", ws.desc.path, pos, err)
		ws.completeLocked(req, ioErr)
		for _, q := range ws.queue {
			ws.completeLocked(q, ioErr)
		}
		ws.queue = nil
		ws.releaseIdleLocked()
		ws.failLocked(ioErr)
	default:
		ws.desc.position += int64(n)
		ws.queued -= n
		ws.bytesWritten += int64(n)
		ws.metrics.ObserveWrite(n)
		ws.metrics.AddQueued(-n)
		internal.Trace("chunk written", ws.fields(internal.Fields{
			internal.FieldBytes:  n,
			internal.FieldQueued: ws.queued,
		}))
		ws.completeLocked(req, nil)
		ws.nextLocked()
	}
	ws.mu.Unlock()
	ws.dispatch.flush()
}

// nextLocked issues the oldest queued write or, with nothing left, goes idle.
func (ws *WriteStream) nextLocked() {
	if len(ws.queue) > 0 {
		next := ws.queue[0]
		ws.queue[0] = nil
		ws.queue = ws.queue[1:]
		ws.issueLocked(next)
		return
	}
	ws.inFlight = false
	if ws.needDrain {
		ws.needDrain = false
		ws.metrics.ObserveDrain()
		ws.dispatch.post(ws.events.emitDrain())
	}
	ws.releaseIdleLocked()
}

func (ws *WriteStream) releaseIdleLocked() {
	for _, fn := range ws.idleWaiters {
		ws.dispatch.post(fn)
	}
	ws.idleWaiters = nil
}

func (ws *WriteStream) completeLocked(req *writeReq, err error) {
	if req.cb == nil {
		return
	}
	cb := req.cb
	ws.dispatch.post(func() { cb(err) })
}

// abandonLocked fails every write the stream will no longer perform.
func (ws *WriteStream) closingLocked() {
	ws.abandonLocked()
	if ws.opts.SyncOnClose && ws.desc.state == stateReady {
		if err := ws.desc.file.Sync(); err != nil {
			internal.Warn("failed to sync stream descriptor", ws.fields(internal.Fields{internal.FieldError: err.Error()}))
		}
	}
}

func (ws *WriteStream) abandonLocked() {
	if ws.current != nil && !ws.current.issued {
		ws.completeLocked(ws.current, ErrStreamDestroyed)
		ws.current = nil
	}
	for _, q := range ws.queue {
		ws.completeLocked(q, ErrStreamDestroyed)
	}
	ws.queue = nil
	ws.releaseIdleLocked()
}
