package zipstep

import (
	"archive/zip"
	"context"
	"strings"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
)

// ExtractDirectory implements extract_directory_zip: the one fan-out step,
// producing one carrier per archive member under a directory. The executor
// auto-appends create_zip when this is the pipeline's final step. An empty
// match set is not an error: it yields an empty output sequence.
type ExtractDirectory struct {
	Resolver        pipeline.SourceResolver
	SeekBufferLimit int64
	QueueCapacity   int
	OutputCapacity  int
}

func NewExtractDirectory(resolver pipeline.SourceResolver, seekBufferLimit int64, queueCapacity, outputCapacity int) *ExtractDirectory {
	return &ExtractDirectory{
		Resolver:        resolver,
		SeekBufferLimit: seekBufferLimit,
		QueueCapacity:   queueCapacity,
		OutputCapacity:  outputCapacity,
	}
}

func (e *ExtractDirectory) ProducesMultipleOutputs() bool { return true }

func (e *ExtractDirectory) Process(ctx context.Context, inputs pipeline.Outputs, args pipeline.Args) (pipeline.Outputs, error) {
	const op = "zipstep.ExtractDirectory"

	dirName, err := args.RequireString(op, "directory_name")
	if err != nil {
		return nil, err
	}
	prefix := dirName
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
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

	var members []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, prefix) && !strings.HasSuffix(f.Name, "/") {
			members = append(members, f.Name)
		}
	}
	outs, producer := pipeline.NewChanOutputs(e.OutputCapacity)

	if len(members) == 0 {
		producer.Close()
		return outs, nil
	}

	go func() {
		for _, name := range members {
			f := findZipFile(zr, name)
			rc, err := f.Open()
			if err != nil {
				producer.Fail(pipeerr.Format(op, err))
				return
			}
			meta := carrier.Metadata{MediaType: guessMediaType(name), FileName: strings.TrimPrefix(name, prefix)}
			memberOut, memberProducer := carrier.NewQueueCarrier(ctx, meta, e.QueueCapacity)
			go streamToProducer(rc, memberProducer, op)

			if err := producer.Push(ctx, memberOut); err != nil {
				return
			}
		}
		producer.Close()
	}()

	return outs, nil
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}
