package zipstep

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
)

// ExtractFile implements extract_file_zip: streams one named member out of
// a ZIP archive.
type ExtractFile struct {
	Resolver        pipeline.SourceResolver
	SeekBufferLimit int64
	QueueCapacity   int
}

func NewExtractFile(resolver pipeline.SourceResolver, seekBufferLimit int64, queueCapacity int) *ExtractFile {
	return &ExtractFile{Resolver: resolver, SeekBufferLimit: seekBufferLimit, QueueCapacity: queueCapacity}
}

func (e *ExtractFile) ProducesMultipleOutputs() bool { return false }

func (e *ExtractFile) Process(ctx context.Context, inputs pipeline.Outputs, args pipeline.Args) (pipeline.Outputs, error) {
	const op = "zipstep.ExtractFile"

	fileName, err := args.RequireString(op, "file_name")
	if err != nil {
		return nil, err
	}

	in, err := e.Resolver.ResolveInput(ctx, op, inputs, args)
	if err != nil {
		return nil, err
	}
	sc, err := ensureSeekable(ctx, in, e.SeekBufferLimit)
	if err != nil {
		return nil, err
	}
	zr, err := openZipReader(ctx, sc, op)
	if err != nil {
		return nil, err
	}

	var target *zip.File
	for _, f := range zr.File {
		if f.Name == fileName {
			target = f
			break
		}
	}
	if target == nil {
		return nil, pipeerr.NotFound(op, fmt.Errorf("member %q not found in archive", fileName))
	}

	rc, err := target.Open()
	if err != nil {
		return nil, pipeerr.Format(op, err)
	}

	meta := carrier.Metadata{MediaType: guessMediaType(fileName), FileName: fileBaseName(fileName)}
	out, producer := carrier.NewQueueCarrier(ctx, meta, e.QueueCapacity)

	go streamToProducer(rc, producer, op)

	return pipeline.NewSingleOutputs(out), nil
}

func fileBaseName(name string) string { return path.Base(name) }

func streamToProducer(rc io.ReadCloser, producer *carrier.QueueProducer, op string) {
	defer rc.Close()
	buf := make([]byte, 64*1024)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			if perr := producer.Push(buf[:n]); perr != nil {
				producer.Fail(perr)
				return
			}
		}
		if err == io.EOF {
			producer.Close()
			return
		}
		if err != nil {
			producer.Fail(pipeerr.Format(op, err))
			return
		}
	}
}
