package carrier

import (
	"context"
	"io"
	"sync"

	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
)

// DefaultQueueCapacity bounds how many un-consumed chunks a QueueCarrier
// buffers before Push blocks, giving the pipeline back-pressure.
const DefaultQueueCapacity = 8

type queueChunk struct {
	data []byte
	err  error
}

// QueueCarrier is a bounded async FIFO: one side pushes byte chunks as they
// become available, the other reads them. It never supports random access —
// it models a one-shot producer/consumer stream, not a buffer.
type QueueCarrier struct {
	meta     Metadata
	ch       <-chan queueChunk
	leftover []byte
	eof      bool
}

// QueueProducer is the write side of a QueueCarrier. Exactly one of Close or
// Fail must be called exactly once to terminate the stream; Push may be
// called any number of times before that.
type QueueProducer struct {
	ch   chan queueChunk
	ctx  context.Context
	once sync.Once
}

// NewQueueCarrier creates a linked carrier/producer pair. ctx governs both
// sides: once it is cancelled, Push and the producer's terminal call return
// promptly instead of blocking on a channel nobody drains anymore.
func NewQueueCarrier(ctx context.Context, meta Metadata, capacity int) (*QueueCarrier, *QueueProducer) {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	ch := make(chan queueChunk, capacity)
	return &QueueCarrier{meta: meta, ch: ch}, &QueueProducer{ch: ch, ctx: ctx}
}

// Push enqueues data, copying it first since the caller may reuse its
// buffer. Blocks while the queue is full; returns ctx.Err() if cancelled
// first. A zero-length push is a no-op.
func (p *QueueProducer) Push(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	cp := append([]byte(nil), data...)
	select {
	case p.ch <- queueChunk{data: cp}:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Close signals a clean end of stream.
func (p *QueueProducer) Close() { p.finish(queueChunk{}) }

// Fail signals the stream ended because of err; the consumer's next Read or
// Next call surfaces it.
func (p *QueueProducer) Fail(err error) { p.finish(queueChunk{err: err}) }

func (p *QueueProducer) finish(c queueChunk) {
	p.once.Do(func() {
		select {
		case p.ch <- c:
		case <-p.ctx.Done():
		}
	})
}

func (q *QueueCarrier) Metadata() Metadata { return q.meta }

func (q *QueueCarrier) recv(ctx context.Context) (queueChunk, error) {
	select {
	case c, ok := <-q.ch:
		if !ok {
			return queueChunk{}, nil
		}
		return c, nil
	case <-ctx.Done():
		return queueChunk{}, ctx.Err()
	}
}

// Next returns the carrier's next pushed chunk, or io.EOF once the producer
// closed the stream. A chunk buffered by a prior partial Read is drained
// first.
func (q *QueueCarrier) Next(ctx context.Context) ([]byte, error) {
	if len(q.leftover) > 0 {
		out := q.leftover
		q.leftover = nil
		return out, nil
	}
	if q.eof {
		return nil, io.EOF
	}
	c, err := q.recv(ctx)
	if err != nil {
		return nil, err
	}
	if c.err != nil {
		q.eof = true
		return nil, c.err
	}
	if c.data == nil {
		q.eof = true
		return nil, io.EOF
	}
	return c.data, nil
}

// Read implements Carrier. n<0 drains to the end; n==0 returns immediately;
// n>0 returns up to n bytes, buffering any surplus for the next call.
func (q *QueueCarrier) Read(ctx context.Context, n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if q.eof && len(q.leftover) == 0 {
		return []byte{}, nil
	}
	if n < 0 {
		out := q.leftover
		q.leftover = nil
		for !q.eof {
			c, err := q.recv(ctx)
			if err != nil {
				return out, err
			}
			if c.err != nil {
				q.eof = true
				return out, c.err
			}
			if c.data == nil {
				q.eof = true
				break
			}
			out = append(out, c.data...)
		}
		return out, nil
	}
	for len(q.leftover) < n && !q.eof {
		c, err := q.recv(ctx)
		if err != nil {
			return q.take(len(q.leftover)), err
		}
		if c.err != nil {
			q.eof = true
			return q.take(len(q.leftover)), c.err
		}
		if c.data == nil {
			q.eof = true
			break
		}
		q.leftover = append(q.leftover, c.data...)
	}
	return q.take(min(n, len(q.leftover))), nil
}

func (q *QueueCarrier) take(n int) []byte {
	out := q.leftover[:n]
	q.leftover = q.leftover[n:]
	return out
}

// Seek always fails: a Queue carrier is a one-shot stream with no random
// access. Present so callers holding a *QueueCarrier get the documented
// UnsupportedOperation error instead of a missing method; capability checks
// should type-assert against SeekCarrier rather than call this.
func (q *QueueCarrier) Seek(offset int64, whence int) (int64, error) {
	return 0, pipeerr.Unsupported("queuecarrier.Seek")
}

func (q *QueueCarrier) Tell() (int64, error) {
	return 0, pipeerr.Unsupported("queuecarrier.Tell")
}
