package fdstream

import (
	"context"
	"sync"
)

// Pipeline moves everything a ReadStream delivers into a WriteStream,
// pausing the reader whenever the writer asks for it.
type Pipeline struct {
	rs *ReadStream
	ws *WriteStream

	mu    sync.Mutex
	ended bool
	err   error
	done  chan struct{}
	once  sync.Once
}

// Pipe connects rs to ws and starts the flow. The writer is destroyed once
// the reader ended and every accepted chunk is written; an error on either
// side destroys both.
func Pipe(rs *ReadStream, ws *WriteStream) *Pipeline {
	p := &Pipeline{rs: rs, ws: ws, done: make(chan struct{})}

	rs.OnError(p.fail)
	ws.OnError(p.fail)
	ws.OnDrain(rs.Resume)
	rs.OnEnd(func() {
		p.mu.Lock()
		p.ended = true
		p.mu.Unlock()
		ws.whenIdle(ws.Destroy)
	})
	rs.OnClose(func() {
		p.mu.Lock()
		ended := p.ended
		p.mu.Unlock()
		if !ended {
			p.fail(ErrStreamDestroyed)
		}
	})
	ws.OnClose(func() {
		p.mu.Lock()
		ended := p.ended
		p.mu.Unlock()
		if !ended {
			p.fail(ErrStreamDestroyed)
			return
		}
		p.finish()
	})

	rs.Subscribe(func(c Chunk) {
		// Pausing before the write means a drain caused by this very write
		// always finds the reader paused and resumes it.
		rs.Pause()
		if ws.Write(c.Data, nil) {
			rs.Resume()
		}
	})
	return p
}

func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.mu.Unlock()
	p.rs.Destroy()
	p.ws.Destroy()
	p.finish()
}

func (p *Pipeline) finish() {
	p.once.Do(func() { close(p.done) })
}

// Done is closed when the pipeline finished or failed.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

// Err returns the first error the pipeline failed with.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Wait blocks until the pipeline is done or ctx is cancelled. A cancelled
// pipeline destroys both streams.
func (p *Pipeline) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		p.fail(ctx.Err())
		return p.Err()
	}
}
