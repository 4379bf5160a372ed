package carrier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rangeServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		if rng == "" {
			w.WriteHeader(http.StatusOK)
			w.Write(body)
			return
		}
		var start, end int
		_, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end)
		require.NoError(t, err)
		if end >= len(body) {
			end = len(body) - 1
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(body)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[start : end+1])
	}))
}

func noRangeServer(body []byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
}

func TestUrlCarrierReadsViaRangeRequests(t *testing.T) {
	body := []byte("the quick brown fox jumps over the lazy dog")
	srv := rangeServer(t, body)
	defer srv.Close()

	c := NewUrlCarrier(Metadata{}, srv.URL, http.DefaultClient, 8)
	ctx := context.Background()

	first, err := c.Read(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "the quick", string(first))

	rest, err := c.Read(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, string(body[9:]), string(rest))
}

func TestUrlCarrierFallsBackWhenServerIgnoresRange(t *testing.T) {
	body := []byte("abcdefghijklmnopqrstuvwxyz")
	srv := noRangeServer(body)
	defer srv.Close()

	c := NewUrlCarrier(Metadata{}, srv.URL, http.DefaultClient, 4)
	ctx := context.Background()

	chunk, err := c.Read(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "abcde", string(chunk))

	assert.EqualValues(t, len(body), c.Len())
}

func TestUrlCarrierSeekAndReaderAt(t *testing.T) {
	body := []byte("0123456789")
	srv := rangeServer(t, body)
	defer srv.Close()

	c := NewUrlCarrier(Metadata{}, srv.URL, http.DefaultClient, 4)

	pos, err := c.Seek(5, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 5, pos)

	ra, size, err := c.ReaderAt(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)

	buf := make([]byte, 3)
	n, err := ra.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "789", string(buf))
}

func TestUrlCarrierSatisfiesSeekCarrier(t *testing.T) {
	var _ SeekCarrier = NewUrlCarrier(Metadata{}, "http://example.invalid", http.DefaultClient, 0)
}
