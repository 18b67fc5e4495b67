package fdstream

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rosedblabs/fdstream/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReadStream(mfs fs.FileSystem, name string, modify func(*ReadOptions)) *ReadStream {
	opts := DefaultReadOptions
	opts.FileSystem = mfs
	if modify != nil {
		modify(&opts)
	}
	return NewReadStream(name, opts)
}

func TestReadStream_RangePauseResume(t *testing.T) {
	mfs := fs.NewMemFileSystem()
	mfs.WriteFile("1.txt", []byte("0123456789"))

	rs := newTestReadStream(mfs, "1.txt", func(o *ReadOptions) {
		o.Encoding = EncodingUTF8
		o.Start = 0
		o.End = 5
		o.ChunkSize = 2
	})
	rec := newRecorder()
	rec.attachRead(rs)

	got := make(chan Chunk, 8)
	rs.Subscribe(func(c Chunk) {
		rec.onData(c)
		rs.Pause()
		got <- c
	})

	var texts []string
	for done := false; !done; {
		select {
		case c := <-got:
			texts = append(texts, c.Text)
			assert.False(t, rs.Flowing())
			rs.Resume()
		case <-rec.closed:
			done = true
		case <-time.After(waitTimeout):
			t.Fatalf("timed out, events: %v", rec.snapshot())
		}
	}

	assert.Equal(t, []string{"01", "23", "45"}, texts)
	assert.Equal(t, []string{"open", "data", "data", "data", "end", "close"}, rec.snapshot())
	assert.Equal(t, int64(6), rs.Position())
	assert.True(t, rs.Ended())
	assert.True(t, rs.Closed())
}

func TestReadStream_DeliversExactRange(t *testing.T) {
	content := []byte(strings.Repeat("abcdefghijklmnopqrstuvwxyz0123456789", 30))
	mfs := fs.NewMemFileSystem()
	mfs.WriteFile("data", content)

	tests := []struct {
		start, end int64
		chunkSize  int
	}{
		{0, -1, 1},
		{0, -1, 7},
		{0, -1, len(content)},
		{0, -1, 4096},
		{5, -1, 3},
		{5, 100, 16},
		{0, 0, 8},
		{17, 17, 1},
		{100, int64(len(content)) + 50, 64},
		{int64(len(content)) - 1, -1, 2},
		{int64(len(content)), -1, 2},
		{0, math.MaxInt64, 4},
		{3, math.MaxInt64, 4096},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d-%d-%d", tt.start, tt.end, tt.chunkSize), func(t *testing.T) {
			rs := newTestReadStream(mfs, "data", func(o *ReadOptions) {
				o.Start, o.End, o.ChunkSize = tt.start, tt.end, tt.chunkSize
			})
			rec := newRecorder()
			rec.attachRead(rs)
			rs.Subscribe(rec.onData)
			rec.waitClosed(t)

			end := int64(len(content))
			if tt.end >= 0 && tt.end < end-1 {
				end = tt.end + 1
			}
			want := content[min(tt.start, end):end]
			assert.Equal(t, want, rec.data())

			next := tt.start
			for _, c := range rec.chunks {
				assert.Equal(t, next, c.Offset)
				assert.LessOrEqual(t, len(c.Data), tt.chunkSize)
				next += int64(len(c.Data))
			}
			assert.Equal(t, 1, rec.count("end"))
			assert.Equal(t, 1, rec.count("close"))
			assert.Equal(t, 0, rec.count("error"))
		})
	}
}

func TestReadStream_ResumeContinuesAtNextByte(t *testing.T) {
	mfs := fs.NewMemFileSystem()
	mfs.WriteFile("data", []byte("abcdefghij"))

	rs := newTestReadStream(mfs, "data", func(o *ReadOptions) { o.ChunkSize = 3 })
	rec := newRecorder()
	rec.attachRead(rs)

	got := make(chan Chunk, 1)
	rs.Subscribe(func(c Chunk) {
		rec.onData(c)
		rs.Pause()
		got <- c
	})

	first := <-got
	assert.Equal(t, "abc", string(first.Data))

	// nothing is read while paused
	assert.Never(t, func() bool { return len(got) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, int64(3), rs.Position())

	rs.Resume()
	second := <-got
	assert.Equal(t, first.Offset+int64(len(first.Data)), second.Offset)
	assert.Equal(t, "def", string(second.Data))

	rs.Destroy()
	rec.waitClosed(t)
}

func TestReadStream_ZeroLengthFile(t *testing.T) {
	mfs := fs.NewMemFileSystem()
	mfs.WriteFile("empty", nil)

	rs := newTestReadStream(mfs, "empty", nil)
	rec := newRecorder()
	rec.attachRead(rs)
	rs.Subscribe(rec.onData)
	rec.waitClosed(t)

	assert.Equal(t, []string{"open", "end", "close"}, rec.snapshot())
}

func TestReadStream_StartPastEnd(t *testing.T) {
	g := newGatedFS()
	g.WriteFile("data", []byte("0123456789"))

	rs := newTestReadStream(g, "data", func(o *ReadOptions) {
		o.Start = 6
		o.End = 5
	})
	rec := newRecorder()
	rec.attachRead(rs)
	rs.Subscribe(rec.onData)
	rec.waitClosed(t)

	reads, _, _ := g.stats()
	assert.Equal(t, 0, reads)
	assert.Equal(t, []string{"open", "end", "close"}, rec.snapshot())
}

func TestReadStream_OpenFailureAutoClose(t *testing.T) {
	rs := newTestReadStream(fs.NewMemFileSystem(), "missing", nil)
	rec := newRecorder()
	rec.attachRead(rs)
	rs.Subscribe(rec.onData)
	rec.waitClosed(t)

	assert.Equal(t, []string{"error", "close"}, rec.snapshot())
	require.Len(t, rec.errs, 1)
	var openErr *OpenError
	assert.True(t, errors.As(rec.errs[0], &openErr))
	assert.Equal(t, "missing", openErr.Path)
	assert.True(t, errors.Is(rec.errs[0], os.ErrNotExist))
	assert.Equal(t, rec.errs[0], rs.Err())
}

func TestReadStream_OpenFailureWithoutAutoClose(t *testing.T) {
	rs := newTestReadStream(fs.NewMemFileSystem(), "missing", func(o *ReadOptions) { o.AutoClose = false })
	rec := newRecorder()
	rec.attachRead(rs)
	rs.Subscribe(rec.onData)

	assert.Eventually(t, func() bool { return rec.count("error") == 1 }, waitTimeout, time.Millisecond)
	assert.Never(t, func() bool { return rec.count("close") > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.False(t, rs.Closed())

	rs.Resume()
	rs.Destroy()
	rs.Destroy()
	rec.waitClosed(t)
	assert.Equal(t, []string{"error", "close"}, rec.snapshot())
}

func TestReadStream_ReadError(t *testing.T) {
	g := newGatedFS()
	g.WriteFile("data", []byte("0123456789"))
	g.readErrAt = 2

	rs := newTestReadStream(g, "data", func(o *ReadOptions) { o.ChunkSize = 4 })
	rec := newRecorder()
	rec.attachRead(rs)
	rs.Subscribe(rec.onData)
	rec.waitClosed(t)

	assert.Equal(t, []string{"open", "data", "error", "close"}, rec.snapshot())
	var ioErr *IOError
	require.True(t, errors.As(rec.errs[0], &ioErr))
	assert.Equal(t, "read", ioErr.Op)
	assert.Equal(t, int64(4), ioErr.Offset)
	assert.True(t, errors.Is(rec.errs[0], errInjected))
}

func TestReadStream_DestroyWhileReading(t *testing.T) {
	g := newGatedFS()
	g.WriteFile("data", []byte("0123456789"))
	g.readGate = make(chan struct{})

	rs := newTestReadStream(g, "data", nil)
	rec := newRecorder()
	rec.attachRead(rs)
	rs.Subscribe(rec.onData)

	waitFor(t, g.readStarted)
	rs.Destroy()
	rec.waitClosed(t)
	close(g.readGate)

	assert.Never(t, func() bool { return rec.count("data") > 0 }, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, []string{"open", "close"}, rec.snapshot())
	assert.True(t, rs.Ended())
}

func TestReadStream_OverlappingResume(t *testing.T) {
	g := newGatedFS()
	content := bytes.Repeat([]byte("x"), 20)
	g.WriteFile("data", content)
	g.readGate = make(chan struct{})

	rs := newTestReadStream(g, "data", func(o *ReadOptions) { o.ChunkSize = 4 })
	rec := newRecorder()
	rec.attachRead(rs)
	rs.Subscribe(rec.onData)

	waitFor(t, g.readStarted)
	for i := 0; i < 5; i++ {
		rs.Resume()
		rs.Start()
	}
	reads, _, maxInflight := g.stats()
	assert.Equal(t, 1, reads)
	assert.Equal(t, 1, maxInflight)

	close(g.readGate)
	rec.waitClosed(t)

	_, _, maxInflight = g.stats()
	assert.Equal(t, 1, maxInflight)
	assert.Equal(t, content, rec.data())
}

func TestReadStream_DeferredUntilOpen(t *testing.T) {
	g := newGatedFS()
	g.WriteFile("data", []byte("abc"))
	g.openGate = make(chan struct{})

	rs := newTestReadStream(g, "data", nil)
	rec := newRecorder()
	rec.attachRead(rs)
	rs.Subscribe(rec.onData)
	rs.Resume()

	reads, _, _ := g.stats()
	assert.Equal(t, 0, reads)

	close(g.openGate)
	rec.waitClosed(t)
	assert.Equal(t, []string{"open", "data", "end", "close"}, rec.snapshot())
	reads, _, _ = g.stats()
	assert.Equal(t, 2, reads)
}

func TestReadStream_OnDataDoesNotStart(t *testing.T) {
	g := newGatedFS()
	g.WriteFile("data", []byte("abc"))

	rs := newTestReadStream(g, "data", nil)
	rec := newRecorder()
	rec.attachRead(rs)
	rs.OnData(rec.onData)

	assert.Eventually(t, func() bool { return rec.count("open") == 1 }, waitTimeout, time.Millisecond)
	assert.Never(t, func() bool { reads, _, _ := g.stats(); return reads > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	rs.Start()
	rec.waitClosed(t)
	assert.Equal(t, []byte("abc"), rec.data())
}

func TestReadStream_Encodings(t *testing.T) {
	content := []byte("héllo wörld ✓")
	mfs := fs.NewMemFileSystem()
	mfs.WriteFile("data", content)

	tests := []struct {
		enc  Encoding
		want string
	}{
		{EncodingUTF8, string(content)},
		{EncodingHex, fmt.Sprintf("%x", content)},
		{EncodingBase64, base64.StdEncoding.EncodeToString(content)},
	}
	for _, tt := range tests {
		for _, size := range []int{1, 2, 3, 5, 64} {
			rs := newTestReadStream(mfs, "data", func(o *ReadOptions) {
				o.Encoding = tt.enc
				o.ChunkSize = size
			})
			rec := newRecorder()
			rec.attachRead(rs)
			rs.Subscribe(rec.onData)
			rec.waitClosed(t)

			var sb strings.Builder
			for _, c := range rec.chunks {
				sb.WriteString(c.Text)
			}
			assert.Equal(t, tt.want, sb.String(), "%s/%d", tt.enc, size)
			assert.Equal(t, content, rec.data(), "%s/%d", tt.enc, size)
		}
	}
}

func TestReadStream_PreOpenedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(path, []byte("preopened"), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)

	opts := DefaultReadOptions
	opts.File = fs.NewOSFile(f)
	rs := NewReadStream(path, opts)
	rec := newRecorder()
	rec.attachRead(rs)
	rs.Subscribe(rec.onData)
	rec.waitClosed(t)

	assert.Equal(t, []byte("preopened"), rec.data())
	assert.Equal(t, 0, rec.count("open"))
	assert.Equal(t, int64(9), rs.BytesRead())
}

func TestReadStream_LateHandlersReplay(t *testing.T) {
	mfs := fs.NewMemFileSystem()
	mfs.WriteFile("data", []byte("abc"))

	rs := newTestReadStream(mfs, "data", nil)
	closed := make(chan struct{})
	rs.OnClose(func() { close(closed) })
	rs.Subscribe(func(Chunk) {})
	waitFor(t, closed)

	rec := newRecorder()
	rec.attachRead(rs)
	rec.waitClosed(t)
	assert.Equal(t, []string{"open", "end", "close"}, rec.snapshot())
}
