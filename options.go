package fdstream

import (
	"os"

	"github.com/rosedblabs/fdstream/fs"
	"github.com/rosedblabs/fdstream/metrics"
)

const (
	defaultChunkSize     = 64 * 1024
	defaultHighWaterMark = 16 * 1024
	defaultPerm          = 0o666
)

// ReadOptions is used to create a new ReadStream.
type ReadOptions struct {
	// Flag is the mode the file is opened with, os.O_RDONLY by default.
	Flag int

	// Perm is only used if the file gets created.
	Perm os.FileMode

	// Encoding decodes delivered chunks into Chunk.Text. Empty means raw bytes.
	Encoding Encoding

	// File is a pre-opened descriptor. When set the stream does not open
	// the path and emits no open event.
	File fs.File

	// FileSystem opens the path. Nil means the operating system.
	FileSystem fs.FileSystem

	// AutoClose destroys the stream after an open or read error.
	AutoClose bool

	// Start is the offset of the first byte to read.
	Start int64

	// End is the inclusive offset of the last byte to deliver, so 0 reads
	// just the first byte. -1 (the DefaultReadOptions value) reads until
	// end of file; a zero ReadOptions therefore needs End set explicitly.
	End int64

	// ChunkSize is the maximum number of bytes issued per read.
	ChunkSize int

	// Metrics records read activity when set.
	Metrics *metrics.StreamCollector
}

// WriteOptions is used to create a new WriteStream.
type WriteOptions struct {
	// Flag is the mode the file is opened with,
	// os.O_WRONLY|os.O_CREATE|os.O_TRUNC by default.
	Flag int

	// Perm is only used if the file gets created.
	Perm os.FileMode

	// Encoding is used by WriteString when no explicit encoding is given.
	Encoding Encoding

	// File is a pre-opened descriptor. When set the stream does not open
	// the path and emits no open event.
	File fs.File

	// FileSystem opens the path. Nil means the operating system.
	FileSystem fs.FileSystem

	// AutoClose destroys the stream after an open or write error.
	AutoClose bool

	// Start is the offset the first write lands at.
	Start int64

	// HighWaterMark is the number of outstanding bytes at which Write starts
	// asking the caller to wait for a drain. It never rejects a write.
	HighWaterMark int

	// SyncOnClose flushes the file to stable storage before the stream
	// releases it.
	SyncOnClose bool

	// Metrics records write activity when set.
	Metrics *metrics.StreamCollector
}

// DefaultReadOptions is the default read options.
var DefaultReadOptions = ReadOptions{
	Flag:      os.O_RDONLY,
	Perm:      defaultPerm,
	AutoClose: true,
	Start:     0,
	End:       -1,
	ChunkSize: defaultChunkSize,
}

// DefaultWriteOptions is the default write options.
var DefaultWriteOptions = WriteOptions{
	Flag:          os.O_WRONLY | os.O_CREATE | os.O_TRUNC,
	Perm:          defaultPerm,
	Encoding:      EncodingUTF8,
	AutoClose:     true,
	Start:         0,
	HighWaterMark: defaultHighWaterMark,
}

func (o ReadOptions) normalize() ReadOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = defaultChunkSize
	}
	if o.Perm == 0 {
		o.Perm = defaultPerm
	}
	if o.Start < 0 {
		o.Start = 0
	}
	return o
}

func (o WriteOptions) normalize() WriteOptions {
	if o.Flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		o.Flag = DefaultWriteOptions.Flag
	}
	if o.HighWaterMark <= 0 {
		o.HighWaterMark = defaultHighWaterMark
	}
	if o.Perm == 0 {
		o.Perm = defaultPerm
	}
	if o.Start < 0 {
		o.Start = 0
	}
	if o.Encoding == EncodingNone {
		o.Encoding = EncodingUTF8
	}
	return o
}
