package fdstream

import (
	"io"

	"github.com/rosedblabs/fdstream/fs"
	"github.com/rosedblabs/fdstream/internal"
	"github.com/rosedblabs/fdstream/metrics"
)

// ReadStream pulls bounded chunks from a file at an advancing offset and
// pushes them to its data handlers while flowing.
//
// At most one read is outstanding at any time. Pause stops new reads from
// being issued; a read already issued still completes and is delivered.
type ReadStream struct {
	stream
	opts ReadOptions
	dec  *decoder

	flowing   bool
	reading   bool
	ended     bool
	bytesRead int64
}

// NewReadStream creates a ReadStream on path and starts opening it. No data
// is read until the stream is started with Subscribe, Start or Resume.
func NewReadStream(path string, opts ReadOptions) *ReadStream {
	opts = opts.normalize()
	rs := &ReadStream{opts: opts}
	rs.init(path, metrics.DirectionRead, opts.AutoClose, opts.Metrics, opts.Start)
	if opts.Encoding != EncodingNone {
		rs.dec = newDecoder(opts.Encoding)
	}
	rs.begin(opts.FileSystem, opts.File, opts.Flag, opts.Perm)
	return rs
}

// OnData registers fn for chunks without starting the flow.
func (rs *ReadStream) OnData(fn func(Chunk)) {
	rs.mu.Lock()
	rs.events.data = append(rs.events.data, fn)
	rs.mu.Unlock()
}

// Subscribe registers fn for chunks and starts the flow.
func (rs *ReadStream) Subscribe(fn func(Chunk)) {
	rs.mu.Lock()
	rs.events.data = append(rs.events.data, fn)
	rs.flowing = true
	rs.cycleLocked()
	rs.mu.Unlock()
	rs.dispatch.flush()
}

// OnEnd registers fn for the end of data. If the stream already ended fn is
// invoked right away.
func (rs *ReadStream) OnEnd(fn func()) {
	rs.mu.Lock()
	rs.events.end = append(rs.events.end, fn)
	if rs.endEmitted {
		rs.dispatch.post(fn)
	}
	rs.mu.Unlock()
	rs.dispatch.flush()
}

// Start switches the stream to flowing mode.
func (rs *ReadStream) Start() { rs.Resume() }

// Resume switches the stream to flowing mode and issues the next read unless
// the stream ended or a read is already outstanding.
func (rs *ReadStream) Resume() {
	rs.mu.Lock()
	rs.flowing = true
	rs.cycleLocked()
	rs.mu.Unlock()
	rs.dispatch.flush()
}

// Pause stops issuing reads after the outstanding one, if any, is delivered.
func (rs *ReadStream) Pause() {
	rs.mu.Lock()
	rs.flowing = false
	rs.mu.Unlock()
}

// Destroy closes the descriptor and marks the stream ended. Calling it more
// than once is harmless.
func (rs *ReadStream) Destroy() {
	rs.mu.Lock()
	rs.ended = true
	rs.destroyLocked()
	rs.mu.Unlock()
	rs.dispatch.flush()
}

// Flowing reports whether the stream is in flowing mode.
func (rs *ReadStream) Flowing() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.flowing
}

// Ended reports whether no more data will be delivered.
func (rs *ReadStream) Ended() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.ended || rs.desc.state == stateClosed
}

// BytesRead is the number of bytes delivered so far.
func (rs *ReadStream) BytesRead() int64 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.bytesRead
}

// cycleLocked issues the next read, deferring it until the file is open.
func (rs *ReadStream) cycleLocked() {
	if rs.ended || rs.errored || rs.reading || rs.desc.state == stateClosed {
		return
	}
	rs.reading = true
	rs.desc.whenReady(rs.issueLocked)
}

func (rs *ReadStream) issueLocked(f fs.File) {
	pos := rs.desc.position
	toRead := int64(rs.opts.ChunkSize)
	if rs.opts.End >= 0 {
		if pos > rs.opts.End {
			rs.finishLocked()
			return
		}
		if rem := rs.opts.End - pos; rem < toRead {
			toRead = rem + 1
		}
	}
	go rs.read(f, pos, int(toRead))
}

func (rs *ReadStream) read(f fs.File, pos int64, size int) {
	buf := make([]byte, size)
	n, err := f.ReadAt(buf, pos)
	if err == io.EOF {
		err = nil
	}

	rs.mu.Lock()
	if rs.desc.state == stateClosed {
		rs.reading = false
		rs.mu.Unlock()
		return
	}
	switch {
	case err != nil:
		rs.reading = false
		rs.failLocked(newIOError("read", rs.desc.path, pos, err))
	case n == 0:
		rs.finishLocked()
	default:
		rs.desc.position += int64(n)
		rs.bytesRead += int64(n)
		rs.metrics.ObserveRead(n)
		chunk := Chunk{Offset: pos, Data: buf[:n:n]}
		if rs.dec != nil {
			chunk.Text = rs.dec.decode(chunk.Data)
		}
		internal.Trace("chunk read", rs.fields(internal.Fields{internal.FieldBytes: n}))
		rs.dispatch.post(rs.events.emitData(chunk))
		rs.dispatch.post(rs.continueRead)
	}
	rs.mu.Unlock()
	rs.dispatch.flush()
}

// continueRead runs after the data handlers saw the last chunk, so a Pause
// from inside a handler stops the very next read.
func (rs *ReadStream) continueRead() {
	rs.mu.Lock()
	rs.reading = false
	if rs.flowing {
		rs.cycleLocked()
	}
	rs.mu.Unlock()
	rs.dispatch.flush()
}

// finishLocked emits end and closes the stream.
func (rs *ReadStream) finishLocked() {
	rs.reading = false
	rs.ended = true
	if rs.dec != nil {
		if rest := rs.dec.flush(); rest != "" {
			rs.dispatch.post(rs.events.emitData(Chunk{Offset: rs.desc.position, Text: rest}))
		}
	}
	rs.endEmitted = true
	internal.Debug("stream ended", rs.fields(nil))
	rs.dispatch.post(rs.events.emitEnd())
	rs.destroyLocked()
}
