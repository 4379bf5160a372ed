package carrier

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueCarrierReadAllConcatenatesPushes(t *testing.T) {
	ctx := context.Background()
	q, p := NewQueueCarrier(ctx, Metadata{MediaType: "application/octet-stream"}, 2)

	go func() {
		p.Push([]byte("hello "))
		p.Push([]byte("world"))
		p.Close()
	}()

	out, err := q.Read(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))

	out, err = q.Read(ctx, -1)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestQueueCarrierNextIterationMatchesReadAll(t *testing.T) {
	ctx := context.Background()
	chunks := [][]byte{[]byte("abc"), []byte("def"), []byte("ghi")}

	q1, p1 := NewQueueCarrier(ctx, Metadata{}, 8)
	go func() {
		for _, c := range chunks {
			p1.Push(c)
		}
		p1.Close()
	}()
	viaRead, err := q1.Read(ctx, -1)
	require.NoError(t, err)

	q2, p2 := NewQueueCarrier(ctx, Metadata{}, 8)
	go func() {
		for _, c := range chunks {
			p2.Push(c)
		}
		p2.Close()
	}()
	var viaIter []byte
	for {
		chunk, err := q2.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		viaIter = append(viaIter, chunk...)
	}

	assert.Equal(t, string(viaRead), string(viaIter))
}

func TestQueueCarrierPartialReadsBufferLeftover(t *testing.T) {
	ctx := context.Background()
	q, p := NewQueueCarrier(ctx, Metadata{}, 4)
	go func() {
		p.Push([]byte("0123456789"))
		p.Close()
	}()

	first, err := q.Read(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "012", string(first))

	rest, err := q.Read(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, "3456789", string(rest))
}

func TestQueueCarrierPropagatesProducerFailure(t *testing.T) {
	ctx := context.Background()
	q, p := NewQueueCarrier(ctx, Metadata{}, 4)
	boom := errors.New("upstream broke")
	go func() {
		p.Push([]byte("partial"))
		p.Fail(boom)
	}()

	_, err := q.Read(ctx, -1)
	assert.ErrorIs(t, err, boom)
}

func TestQueueCarrierRejectsSeekAndTell(t *testing.T) {
	ctx := context.Background()
	q, p := NewQueueCarrier(ctx, Metadata{}, 1)
	p.Close()

	_, err := q.Seek(0, io.SeekStart)
	require.Error(t, err)

	_, err = q.Tell()
	require.Error(t, err)

	var seekable SeekCarrier
	assert.False(t, implementsSeekCarrier(q, &seekable))
}

func implementsSeekCarrier(c Carrier, _ *SeekCarrier) bool {
	_, ok := c.(SeekCarrier)
	return ok
}

func TestQueueProducerPushUnblocksOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, p := NewQueueCarrier(ctx, Metadata{}, 1)

	require.NoError(t, p.Push([]byte("fills the one slot")))

	done := make(chan error, 1)
	go func() { done <- p.Push([]byte("blocks, queue full")) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Push did not unblock after context cancellation")
	}
}
