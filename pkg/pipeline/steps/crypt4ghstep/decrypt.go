package crypt4ghstep

import (
	"context"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/crypt4gh"
	"github.com/oarepo/file-pipeline-server/pkg/infrastructure/workers"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
)

// parallelDecryptMaxBytes bounds the container size ParallelDecryptSegments
// is allowed to handle: the parallel path decrypts every segment into
// memory up front before streaming any of it downstream, so it only pays
// off, and only fits in memory, for containers up to this size. Larger or
// non-seekable containers fall back to the sequential streaming path.
const parallelDecryptMaxBytes = 256 * 1024 * 1024

// Decrypt implements decrypt_crypt4gh: parses the container header with the
// caller's private key, then streams decrypted data segments downstream.
// Unlike the ZIP steps, Crypt4GH's format is purely sequential, so the
// input never needs to be seekable — source_url is tolerated here even on
// a non-first step (the executor warns and ignores it instead of
// rejecting the pipeline), per the Crypt4GH carve-out.
type Decrypt struct {
	Resolver      pipeline.SourceResolver
	QueueCapacity int
}

func NewDecrypt(resolver pipeline.SourceResolver, queueCapacity int) *Decrypt {
	return &Decrypt{Resolver: resolver, QueueCapacity: queueCapacity}
}

func (d *Decrypt) ProducesMultipleOutputs() bool { return false }

// ToleratesSourceURLOnNonFirstStep implements pipeline.SourceURLTolerant.
func (d *Decrypt) ToleratesSourceURLOnNonFirstStep() bool { return true }

func (d *Decrypt) Process(ctx context.Context, inputs pipeline.Outputs, args pipeline.Args) (pipeline.Outputs, error) {
	const op = "crypt4ghstep.Decrypt"

	privateKey, err := decodeKeyArg(op, args, "recipient_sec")
	if err != nil {
		return nil, err
	}

	in, err := d.Resolver.ResolveInput(ctx, op, inputs, args)
	if err != nil {
		return nil, err
	}

	outName := strings.TrimSuffix(in.Metadata().FileName, ".c4gh")
	meta := carrier.Metadata{MediaType: guessMediaType(outName), FileName: outName}
	out, producer := carrier.NewQueueCarrier(ctx, meta, d.QueueCapacity)

	if ra, ok := in.(carrier.RandomAccess); ok {
		if readerAt, total, raErr := ra.ReaderAt(ctx); raErr == nil && total <= parallelDecryptMaxBytes {
			header, herr := crypt4gh.ParseHeader(io.NewSectionReader(readerAt, 0, total), privateKey)
			if herr != nil {
				return nil, herr
			}
			go d.streamParallel(ctx, readerAt, header, total, producer)
			return pipeline.NewSingleOutputs(out), nil
		}
	}

	reader := carrier.NewReader(ctx, in)
	header, err := crypt4gh.ParseHeader(reader, privateKey)
	if err != nil {
		return nil, err
	}

	go func() {
		w := &carrier.ProducerWriter{Producer: producer}
		if err := crypt4gh.DecryptSegments(w, reader, header.SessionKey); err != nil {
			producer.Fail(err)
			return
		}
		producer.Close()
	}()

	return pipeline.NewSingleOutputs(out), nil
}

func (d *Decrypt) streamParallel(ctx context.Context, ra io.ReaderAt, header *crypt4gh.Header, total int64, producer *carrier.QueueProducer) {
	pool := workers.NewSimpleWorkerPool(0)
	plaintexts, err := pool.ParallelDecryptSegments(ctx, ra, header.ByteLen, total, header.SessionKey)
	if err != nil {
		producer.Fail(err)
		return
	}
	for _, chunk := range plaintexts {
		if len(chunk) == 0 {
			continue
		}
		if perr := producer.Push(chunk); perr != nil {
			producer.Fail(perr)
			return
		}
	}
	producer.Close()
}

func guessMediaType(name string) string {
	if name == "" {
		return "application/octet-stream"
	}
	if mt := mime.TypeByExtension(path.Ext(name)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
