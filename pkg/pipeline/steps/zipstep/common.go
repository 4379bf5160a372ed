// Package zipstep implements the ZIP-family pipeline steps: preview_zip,
// extract_file_zip, extract_directory_zip, and create_zip.
package zipstep

import (
	"archive/zip"
	"context"
	"mime"
	"path"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
)

// DefaultSeekBufferLimit bounds how much of a non-seekable input a ZIP step
// will buffer into memory to gain random access over the central directory.
const DefaultSeekBufferLimit = 100 * 1024 * 1024

// mediaTypeOverrides fixes a small set of extensions to a reproducible MIME
// type instead of depending on the host's mime.types file, which
// mime.TypeByExtension otherwise consults.
var mediaTypeOverrides = map[string]string{
	".json": "application/json",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".xml":  "application/xml",
	".zip":  "application/zip",
}

func guessMediaType(name string) string {
	if mt := guessMediaTypeOrEmpty(name); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// guessMediaTypeOrEmpty is preview_zip's variant: it reports what it knows
// and leaves the rest to the caller instead of defaulting to octet-stream.
func guessMediaTypeOrEmpty(name string) string {
	ext := path.Ext(name)
	if mt, ok := mediaTypeOverrides[ext]; ok {
		return mt
	}
	return mime.TypeByExtension(ext)
}

// compressibleMediaTypes names the media types create_zip deflates rather
// than stores: plain, already-uncompressed text formats that a second
// compression pass actually shrinks. Everything else — images, archives,
// unknown or absent media types — defaults to store, per spec, to avoid
// spending CPU on bytes a codec has already entropy-coded.
var compressibleMediaTypes = map[string]bool{
	"text/plain":       true,
	"text/csv":         true,
	"application/json": true,
	"application/xml":  true,
}

// shouldDeflate reports whether mediaType names a format create_zip should
// deflate instead of store.
func shouldDeflate(mediaType string) bool {
	return compressibleMediaTypes[mediaType]
}

// ensureSeekable returns in directly if it already supports random access,
// otherwise buffers it (bounded by limit) into a BytesCarrier.
func ensureSeekable(ctx context.Context, in carrier.Carrier, limit int64) (carrier.SeekCarrier, error) {
	if sc, ok := in.(carrier.SeekCarrier); ok {
		return sc, nil
	}
	if limit <= 0 {
		limit = DefaultSeekBufferLimit
	}
	data, err := carrier.ReadAllLimited(ctx, in, limit)
	if err != nil {
		return nil, err
	}
	return carrier.NewBytesCarrier(in.Metadata(), data), nil
}

func openZipReader(ctx context.Context, sc carrier.SeekCarrier, op string) (*zip.Reader, error) {
	ra, size, err := sc.ReaderAt(ctx)
	if err != nil {
		return nil, err
	}
	r, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, pipeerr.Format(op, err)
	}
	return r, nil
}
