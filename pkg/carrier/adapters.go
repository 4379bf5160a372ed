package carrier

import (
	"context"
	"io"
)

// Reader adapts a Carrier to io.Reader for code (archive/zip, image codecs,
// the Crypt4GH segment cipher) that wants the stdlib reader contract rather
// than the chunked Next/Read API.
type Reader struct {
	ctx context.Context
	c   Carrier
	buf []byte
}

func NewReader(ctx context.Context, c Carrier) *Reader {
	return &Reader{ctx: ctx, c: c}
}

func (r *Reader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk, err := r.c.Next(r.ctx)
		if err == io.EOF {
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// ProducerWriter adapts a QueueProducer to io.Writer so stdlib writers
// (archive/zip.Writer, the Crypt4GH segment cipher) can stream straight
// into a Queue carrier.
type ProducerWriter struct {
	Producer *QueueProducer
}

func (w *ProducerWriter) Write(b []byte) (int, error) {
	if err := w.Producer.Push(b); err != nil {
		return 0, err
	}
	return len(b), nil
}
