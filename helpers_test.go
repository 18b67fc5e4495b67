package fdstream

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rosedblabs/fdstream/fs"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

var errInjected = errors.New("injected failure")

// gatedFS wraps a MemFileSystem so tests can hold opens, reads and writes
// and inject failures.
type gatedFS struct {
	*fs.MemFileSystem

	openGate  chan struct{}
	readGate  chan struct{}
	writeGate chan struct{}

	readErrAt  int
	writeErrAt int

	readStarted chan struct{}

	mu              sync.Mutex
	reads           int
	writes          int
	syncs           int
	inflightReads   int
	maxInflightRead int
}

func newGatedFS() *gatedFS {
	return &gatedFS{
		MemFileSystem: fs.NewMemFileSystem(),
		readStarted:   make(chan struct{}, 64),
	}
}

func (g *gatedFS) Open(name string, flag int, perm os.FileMode) (fs.File, error) {
	if g.openGate != nil {
		<-g.openGate
	}
	f, err := g.MemFileSystem.Open(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &gatedFile{File: f, g: g}, nil
}

func (g *gatedFS) stats() (reads, writes, maxInflight int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reads, g.writes, g.maxInflightRead
}

type gatedFile struct {
	fs.File
	g *gatedFS
}

func (f *gatedFile) ReadAt(b []byte, off int64) (int, error) {
	g := f.g
	g.mu.Lock()
	g.reads++
	n := g.reads
	g.inflightReads++
	if g.inflightReads > g.maxInflightRead {
		g.maxInflightRead = g.inflightReads
	}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.inflightReads--
		g.mu.Unlock()
	}()

	select {
	case g.readStarted <- struct{}{}:
	default:
	}
	if g.readGate != nil {
		<-g.readGate
	}
	if g.readErrAt == n {
		return 0, errInjected
	}
	return f.File.ReadAt(b, off)
}

func (f *gatedFile) WriteAt(b []byte, off int64) (int, error) {
	g := f.g
	g.mu.Lock()
	g.writes++
	n := g.writes
	g.mu.Unlock()

	if g.writeGate != nil {
		<-g.writeGate
	}
	if g.writeErrAt == n {
		return 0, errInjected
	}
	return f.File.WriteAt(b, off)
}

func (f *gatedFile) Sync() error {
	f.g.mu.Lock()
	f.g.syncs++
	f.g.mu.Unlock()
	return f.File.Sync()
}

func (g *gatedFS) syncCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.syncs
}

// recorder collects the events of one stream in delivery order.
type recorder struct {
	mu     sync.Mutex
	events []string
	chunks []Chunk
	errs   []error
	closed chan struct{}
}

func newRecorder() *recorder {
	return &recorder{closed: make(chan struct{})}
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) onData(c Chunk) {
	r.mu.Lock()
	r.events = append(r.events, "data")
	r.chunks = append(r.chunks, c)
	r.mu.Unlock()
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	r.events = append(r.events, "error")
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) onClose() {
	r.add("close")
	close(r.closed)
}

func (r *recorder) attachRead(rs *ReadStream) {
	rs.OnOpen(func() { r.add("open") })
	rs.OnEnd(func() { r.add("end") })
	rs.OnError(r.onError)
	rs.OnClose(r.onClose)
}

func (r *recorder) attachWrite(ws *WriteStream) {
	ws.OnOpen(func() { r.add("open") })
	ws.OnDrain(func() { r.add("drain") })
	ws.OnError(r.onError)
	ws.OnClose(r.onClose)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(ev string) int {
	n := 0
	for _, e := range r.snapshot() {
		if e == ev {
			n++
		}
	}
	return n
}

func (r *recorder) data() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []byte
	for _, c := range r.chunks {
		out = append(out, c.Data...)
	}
	return out
}

func (r *recorder) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-r.closed:
	case <-time.After(waitTimeout):
		t.Fatalf("stream did not close, events so far: %v", r.snapshot())
	}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting")
	}
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for callback")
	}
	return nil
}
