// Package carrier implements the three stream-carrier variants pipeline
// steps pass data through: Queue (bounded async FIFO), Bytes (in-memory
// seekable), and Url (HTTP range-backed seekable).
package carrier

import (
	"bytes"
	"context"
	"io"

	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
)

// DefaultChunkSize is the granularity Next() uses for carriers with no
// natural chunk boundary of their own (Bytes, Url).
const DefaultChunkSize = 64 * 1024

// Metadata describes a carrier's payload: what it is, not how to read it.
// Steps read upstream Metadata to decide how to interpret a carrier and
// write Metadata on the carriers they produce so downstream steps and the
// response adapter can do the same.
type Metadata struct {
	MediaType string
	FileName  string
	Mode      string
	Width     int
	Height    int
	Headers   map[string]string
}

// Carrier is the minimal contract every stream carrier satisfies: read
// bytes, or iterate chunk by chunk, and describe the payload.
type Carrier interface {
	Metadata() Metadata

	// Read returns up to n bytes (n<0 reads to end, n==0 returns
	// immediately with no bytes consumed). Once the stream is exhausted,
	// further reads return (nil-or-empty, nil) without blocking.
	Read(ctx context.Context, n int) ([]byte, error)

	// Next returns the carrier's next natural chunk, or io.EOF when
	// exhausted. Concatenating every chunk from Next on a fresh carrier
	// yields the same bytes as Read(ctx, -1) on an equivalent fresh one.
	Next(ctx context.Context) ([]byte, error)
}

// Seeker is satisfied by carriers that support random access. Whence follows
// io.Seek* conventions.
type Seeker interface {
	Seek(offset int64, whence int) (int64, error)
	Tell() (int64, error)
	Len() int64
}

// RandomAccess is satisfied by carriers that can hand out an io.ReaderAt
// over their full contents without first buffering into memory themselves
// (e.g. Url carriers serve ReadAt via ranged GETs).
type RandomAccess interface {
	ReaderAt(ctx context.Context) (io.ReaderAt, int64, error)
}

// SeekCarrier is the capability a step asks for via type assertion when it
// needs random access (ZIP central directory reads). Queue carriers never
// satisfy it; Bytes and Url carriers always do. Checking seekability is a
// type assertion against this interface, never a call-then-catch-error on
// Seek.
type SeekCarrier interface {
	Carrier
	Seeker
	RandomAccess
}

// ReadAll drains c to completion and returns every byte.
func ReadAll(ctx context.Context, c Carrier) ([]byte, error) {
	return c.Read(ctx, -1)
}

// ReadAllLimited drains c via Next, rejecting with a ResourceLimit error as
// soon as the accumulated size would exceed limit. Used when a step must
// materialize a non-seekable carrier into memory to gain random access.
func ReadAllLimited(ctx context.Context, c Carrier, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, err := c.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		buf.Write(chunk)
		if int64(buf.Len()) > limit {
			return nil, pipeerr.ResourceLimitf("carrier.ReadAllLimited",
				"input exceeds the %d byte seek-buffering limit", limit)
		}
	}
	return buf.Bytes(), nil
}
