package fs

import (
	"os"

	"github.com/pkg/errors"
)

type OSFile struct {
	fd *os.File
}

func openOSFile(name string, flag int, perm os.FileMode) (File, error) {
	fd, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %q", name)
	}
	if flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		adviseSequential(fd)
	}
	return &OSFile{
		fd: fd,
	}, nil
}

// NewOSFile wraps an already opened *os.File.
func NewOSFile(fd *os.File) *OSFile {
	return &OSFile{fd: fd}
}

func (of *OSFile) ReadAt(b []byte, off int64) (n int, err error) {
	return of.fd.ReadAt(b, off)
}

func (of *OSFile) WriteAt(b []byte, off int64) (n int, err error) {
	return of.fd.WriteAt(b, off)
}

func (of *OSFile) Sync() error {
	return of.fd.Sync()
}

func (of *OSFile) Close() error {
	return of.fd.Close()
}
