package carrier

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesCarrierReadAndSeek(t *testing.T) {
	ctx := context.Background()
	c := NewBytesCarrier(Metadata{MediaType: "text/plain"}, []byte("0123456789"))

	first, err := c.Read(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(first))

	pos, err := c.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pos)

	all, err := c.Read(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(all))

	pos, err = c.Tell()
	require.NoError(t, err)
	assert.EqualValues(t, 10, pos)
}

func TestBytesCarrierSeekClampsToBounds(t *testing.T) {
	c := NewBytesCarrier(Metadata{}, []byte("abc"))

	pos, err := c.Seek(-5, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pos)

	pos, err = c.Seek(100, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 3, pos)
}

func TestBytesCarrierNextIteratesInChunks(t *testing.T) {
	ctx := context.Background()
	data := make([]byte, DefaultChunkSize+10)
	for i := range data {
		data[i] = byte(i)
	}
	c := NewBytesCarrier(Metadata{}, data)

	var out []byte
	for {
		chunk, err := c.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, chunk...)
	}
	assert.Equal(t, data, out)
}

func TestBytesCarrierReaderAt(t *testing.T) {
	ctx := context.Background()
	c := NewBytesCarrier(Metadata{}, []byte("hello world"))
	ra, size, err := c.ReaderAt(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 11, size)

	buf := make([]byte, 5)
	n, err := ra.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))
}

func TestBytesCarrierSatisfiesSeekCarrier(t *testing.T) {
	var _ SeekCarrier = NewBytesCarrier(Metadata{}, nil)
}
