package fs

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// MemFileSystem keeps files in memory. It is safe for concurrent use.
type MemFileSystem struct {
	mu    sync.Mutex
	files map[string]*memData
}

type memData struct {
	mu   sync.RWMutex
	data []byte
}

// MemFile is a descriptor opened on a MemFileSystem.
type MemFile struct {
	name   string
	flag   int
	data   *memData
	mu     sync.Mutex
	closed bool
}

func NewMemFileSystem() *MemFileSystem {
	return &MemFileSystem{files: make(map[string]*memData)}
}

func (m *MemFileSystem) Open(name string, flag int, _ os.FileMode) (File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.files[name]
	switch {
	case ok && flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0:
		return nil, errors.Wrapf(os.ErrExist, "unable to open file %q", name)
	case !ok && flag&os.O_CREATE == 0:
		return nil, errors.Wrapf(os.ErrNotExist, "unable to open file %q", name)
	case !ok:
		d = &memData{}
		m.files[name] = d
	}
	if flag&os.O_TRUNC != 0 && flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		d.mu.Lock()
		d.data = nil
		d.mu.Unlock()
	}
	return &MemFile{name: name, flag: flag, data: d}, nil
}

// WriteFile replaces the content of name.
func (m *MemFileSystem) WriteFile(name string, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = &memData{data: append([]byte(nil), b...)}
}

// ReadFile returns a copy of the content of name.
func (m *MemFileSystem) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	d, ok := m.files[name]
	m.mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(os.ErrNotExist, "unable to read file %q", name)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]byte(nil), d.data...), nil
}

func (mf *MemFile) checkOpen() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.closed {
		return os.ErrClosed
	}
	return nil
}

func (mf *MemFile) ReadAt(b []byte, off int64) (int, error) {
	if err := mf.checkOpen(); err != nil {
		return 0, err
	}
	if mf.flag&os.O_WRONLY != 0 {
		return 0, errors.Wrapf(os.ErrPermission, "read %q", mf.name)
	}
	if off < 0 {
		return 0, errors.Errorf("read %q: negative offset %d", mf.name, off)
	}
	mf.data.mu.RLock()
	defer mf.data.mu.RUnlock()
	if off >= int64(len(mf.data.data)) {
		return 0, io.EOF
	}
	n := copy(b, mf.data.data[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

func (mf *MemFile) WriteAt(b []byte, off int64) (int, error) {
	if err := mf.checkOpen(); err != nil {
		return 0, err
	}
	if mf.flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		return 0, errors.Wrapf(os.ErrPermission, "write %q", mf.name)
	}
	if off < 0 {
		return 0, errors.Errorf("write %q: negative offset %d", mf.name, off)
	}
	mf.data.mu.Lock()
	defer mf.data.mu.Unlock()
	end := off + int64(len(b))
	if end > int64(len(mf.data.data)) {
		grown := make([]byte, end)
		copy(grown, mf.data.data)
		mf.data.data = grown
	}
	copy(mf.data.data[off:], b)
	return len(b), nil
}

func (mf *MemFile) Sync() error {
	return mf.checkOpen()
}

func (mf *MemFile) Close() error {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	if mf.closed {
		return os.ErrClosed
	}
	mf.closed = true
	return nil
}
