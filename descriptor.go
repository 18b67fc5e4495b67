package fdstream

import (
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/rosedblabs/fdstream/fs"
	"github.com/rosedblabs/fdstream/internal"
	"github.com/rosedblabs/fdstream/metrics"
)

type descState uint8

const (
	stateOpening descState = iota
	stateReady
	stateClosed
)

func (s descState) String() string {
	switch s {
	case stateOpening:
		return "opening"
	case stateReady:
		return "ready"
	default:
		return "closed"
	}
}

// descriptor is the file handle lifecycle shared by both streams.
// No operation touches file unless state is stateReady; operations asked for
// while opening wait in pending and run, in order, once the file is ready.
type descriptor struct {
	path     string
	file     fs.File
	state    descState
	position int64
	pending  []func(fs.File)
}

// whenReady runs op now if the file is ready, defers it while opening and
// drops it once closed. It reports whether op was kept.
func (d *descriptor) whenReady(op func(fs.File)) bool {
	switch d.state {
	case stateReady:
		op(d.file)
		return true
	case stateOpening:
		d.pending = append(d.pending, op)
		return true
	}
	return false
}

// ready assigns the file and returns the deferred operations.
func (d *descriptor) ready(f fs.File) []func(fs.File) {
	d.file = f
	d.state = stateReady
	ops := d.pending
	d.pending = nil
	return ops
}

// close moves to stateClosed. It returns the file to release (possibly nil)
// and false if the descriptor was already closed.
func (d *descriptor) close() (fs.File, bool) {
	if d.state == stateClosed {
		return nil, false
	}
	f := d.file
	d.state = stateClosed
	d.file = nil
	d.pending = nil
	return f, true
}

// stream carries what ReadStream and WriteStream have in common: the
// descriptor, event delivery and the error/close policy.
type stream struct {
	id        uuid.UUID
	direction string
	autoClose bool
	metrics   *metrics.StreamCollector

	mu       sync.Mutex
	desc     descriptor
	events   handlers
	dispatch dispatcher

	opened     bool
	endEmitted bool
	errored    bool
	errs       []error

	// beforeClose runs under the lock right before the descriptor closes.
	beforeClose func()
}

func (s *stream) init(path, direction string, autoClose bool, m *metrics.StreamCollector, start int64) {
	s.id = uuid.New()
	s.direction = direction
	s.autoClose = autoClose
	s.metrics = m
	s.desc.path = path
	s.desc.position = start
}

// begin assigns a pre-opened file or starts opening path in the background.
func (s *stream) begin(fsys fs.FileSystem, file fs.File, flag int, perm os.FileMode) {
	if file != nil {
		s.mu.Lock()
		s.desc.ready(file)
		s.mu.Unlock()
		return
	}
	go func() {
		f, err := fs.Open(fsys, s.desc.path, flag, perm)
		s.openDone(f, err)
	}()
}

func (s *stream) openDone(f fs.File, err error) {
	s.mu.Lock()
	if s.desc.state == stateClosed {
		s.mu.Unlock()
		if f != nil {
			_ = f.Close()
		}
		return
	}
	if err != nil {
		s.failLocked(newOpenError(s.desc.path, err))
		s.mu.Unlock()
		s.dispatch.flush()
		return
	}

	internal.Debug("stream opened", s.fields(nil))
	ops := s.desc.ready(f)
	s.opened = true
	s.dispatch.post(s.events.emitOpen())
	for _, op := range ops {
		op(f)
	}
	s.mu.Unlock()
	s.dispatch.flush()
}

// failLocked surfaces err and, with auto-close, terminates the stream.
func (s *stream) failLocked(err error) {
	if s.desc.state == stateClosed {
		return
	}
	s.errored = true
	s.errs = append(s.errs, err)
	s.metrics.ObserveError(s.direction)
	internal.Debug("stream failed", s.fields(internal.Fields{internal.FieldError: err.Error()}))
	s.dispatch.post(s.events.emitError(err))
	if s.autoClose {
		s.destroyLocked()
	}
}

// destroyLocked releases the descriptor and emits close, once.
func (s *stream) destroyLocked() bool {
	if s.desc.state == stateClosed {
		return false
	}
	if s.beforeClose != nil {
		s.beforeClose()
	}
	f, _ := s.desc.close()
	if f != nil {
		if err := f.Close(); err != nil {
			internal.Warn("failed to close stream descriptor", s.fields(internal.Fields{internal.FieldError: err.Error()}))
		}
	}
	internal.Debug("stream closed", s.fields(nil))
	s.dispatch.post(s.events.emitClose())
	return true
}

func (s *stream) fields(extra internal.Fields) internal.Fields {
	f := internal.Fields{
		internal.FieldStream: s.id.String(),
		internal.FieldPath:   s.desc.path,
		internal.FieldOffset: s.desc.position,
	}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

// OnOpen registers fn for the open event. If the file is already open fn is
// invoked right away.
func (s *stream) OnOpen(fn func()) {
	s.mu.Lock()
	s.events.open = append(s.events.open, fn)
	if s.opened {
		s.dispatch.post(fn)
	}
	s.mu.Unlock()
	s.dispatch.flush()
}

// OnError registers fn for I/O failures. Errors that already happened are
// replayed to fn.
func (s *stream) OnError(fn func(error)) {
	s.mu.Lock()
	s.events.err = append(s.events.err, fn)
	for _, err := range s.errs {
		err := err
		s.dispatch.post(func() { fn(err) })
	}
	s.mu.Unlock()
	s.dispatch.flush()
}

// OnClose registers fn for the close event, the last event of a stream.
// If the stream is already closed fn is invoked right away.
func (s *stream) OnClose(fn func()) {
	s.mu.Lock()
	s.events.close = append(s.events.close, fn)
	if s.desc.state == stateClosed {
		s.dispatch.post(fn)
	}
	s.mu.Unlock()
	s.dispatch.flush()
}

// ID identifies the stream in logs.
func (s *stream) ID() uuid.UUID { return s.id }

func (s *stream) Path() string { return s.desc.path }

// Position is the offset of the next read or write.
func (s *stream) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc.position
}

// Closed reports whether the descriptor has been released.
func (s *stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc.state == stateClosed
}

// Err returns the first error the stream failed with, if any.
func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[0]
}
