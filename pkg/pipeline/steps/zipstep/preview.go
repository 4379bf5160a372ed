package zipstep

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
)

// modifiedTimeLayout is the timestamp format preview_zip reports for each
// entry's modification time.
const modifiedTimeLayout = "2006-01-02 15:04:05"

// previewEntry describes one member of a ZIP's central directory in
// preview_zip's JSON output.
type previewEntry struct {
	IsDir          bool   `json:"is_dir"`
	FileSize       uint64 `json:"file_size"`
	ModifiedTime   string `json:"modified_time"`
	CompressedSize uint64 `json:"compressed_size"`
	CompressType   uint16 `json:"compress_type"`
	MediaType      string `json:"media_type"`
}

// Preview implements preview_zip: lists the central directory without
// extracting any member's contents. The JSON body maps each entry's stored
// name directly to its descriptor, rather than an array, so a client can
// look a member up by name without scanning.
type Preview struct {
	Resolver        pipeline.SourceResolver
	SeekBufferLimit int64
}

func NewPreview(resolver pipeline.SourceResolver, seekBufferLimit int64) *Preview {
	return &Preview{Resolver: resolver, SeekBufferLimit: seekBufferLimit}
}

func (p *Preview) ProducesMultipleOutputs() bool { return false }

func (p *Preview) Process(ctx context.Context, inputs pipeline.Outputs, args pipeline.Args) (pipeline.Outputs, error) {
	const op = "zipstep.Preview"

	in, err := p.Resolver.ResolveInput(ctx, op, inputs, args)
	if err != nil {
		return nil, err
	}

	sc, err := ensureSeekable(ctx, in, p.SeekBufferLimit)
	if err != nil {
		return nil, err
	}
	zr, err := openZipReader(ctx, sc, op)
	if err != nil {
		return nil, err
	}

	result := make(map[string]previewEntry, len(zr.File))
	for _, f := range zr.File {
		isDir := strings.HasSuffix(f.Name, "/")
		entry := previewEntry{
			IsDir:          isDir,
			FileSize:       f.UncompressedSize64,
			ModifiedTime:   f.Modified.Format(modifiedTimeLayout),
			CompressedSize: f.CompressedSize64,
			CompressType:   f.Method,
		}
		if !isDir {
			entry.MediaType = guessMediaTypeOrEmpty(f.Name)
		}
		result[f.Name] = entry
	}

	body, err := json.Marshal(result)
	if err != nil {
		return nil, pipeerr.Format(op, err)
	}
	out := carrier.NewBytesCarrier(carrier.Metadata{MediaType: "application/json"}, body)
	return pipeline.NewSingleOutputs(out), nil
}
