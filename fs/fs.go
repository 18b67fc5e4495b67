package fs

import "os"

// File is the minimal set of descriptor primitives the streams need.
type File interface {
	ReadAt([]byte, int64) (int, error)
	WriteAt([]byte, int64) (int, error)
	Sync() error
	Close() error
}

// FileSystem opens descriptors.
type FileSystem interface {
	Open(name string, flag int, perm os.FileMode) (File, error)
}

// OS is the operating-system backed FileSystem.
var OS FileSystem = osFileSystem{}

type osFileSystem struct{}

func (osFileSystem) Open(name string, flag int, perm os.FileMode) (File, error) {
	return openOSFile(name, flag, perm)
}

// Open opens name on fsys, falling back to the OS file system when fsys is nil.
func Open(fsys FileSystem, name string, flag int, perm os.FileMode) (File, error) {
	if fsys == nil {
		fsys = OS
	}
	return fsys.Open(name, flag, perm)
}
