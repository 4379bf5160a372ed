package carrier

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
)

// BytesCarrier wraps a fully materialized payload. It satisfies SeekCarrier:
// random access is trivial once everything is already in memory.
type BytesCarrier struct {
	meta Metadata
	data []byte
	pos  int64
}

func NewBytesCarrier(meta Metadata, data []byte) *BytesCarrier {
	return &BytesCarrier{meta: meta, data: data}
}

func (b *BytesCarrier) Metadata() Metadata { return b.meta }

func (b *BytesCarrier) Read(ctx context.Context, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.pos >= int64(len(b.data)) {
		return []byte{}, nil
	}
	if n == 0 {
		return []byte{}, nil
	}
	var end int64
	if n < 0 {
		end = int64(len(b.data))
	} else {
		end = b.pos + int64(n)
		if end > int64(len(b.data)) {
			end = int64(len(b.data))
		}
	}
	out := append([]byte(nil), b.data[b.pos:end]...)
	b.pos = end
	return out, nil
}

func (b *BytesCarrier) Next(ctx context.Context) ([]byte, error) {
	chunk, err := b.Read(ctx, DefaultChunkSize)
	if err != nil {
		return nil, err
	}
	if len(chunk) == 0 {
		return nil, io.EOF
	}
	return chunk, nil
}

func (b *BytesCarrier) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = b.pos + offset
	case io.SeekEnd:
		newPos = int64(len(b.data)) + offset
	default:
		return b.pos, pipeerr.Invalidf("bytescarrier.Seek", "invalid whence %d", whence)
	}
	if newPos < 0 {
		newPos = 0
	}
	if newPos > int64(len(b.data)) {
		newPos = int64(len(b.data))
	}
	b.pos = newPos
	return b.pos, nil
}

func (b *BytesCarrier) Tell() (int64, error) { return b.pos, nil }

func (b *BytesCarrier) Len() int64 { return int64(len(b.data)) }

func (b *BytesCarrier) ReaderAt(ctx context.Context) (io.ReaderAt, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(b.data), int64(len(b.data)), nil
}

func (b *BytesCarrier) String() string {
	return fmt.Sprintf("BytesCarrier{len=%d, pos=%d}", len(b.data), b.pos)
}
