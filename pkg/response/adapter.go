// Package response adapts a pipeline's final carrier into an HTTP response:
// JSON bodies are written as-is, everything else is streamed as an octet
// stream with a Content-Disposition header.
package response

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
)

// Write drains c and writes it to w: carriers whose media type is
// application/json (preview_zip, validate_crypt4gh) are written with that
// content type directly; everything else streams with
// application/octet-stream (or the carrier's own media type when it names
// one more specific than that) and a Content-Disposition attachment header
// naming the carrier's file name, or "output" when it has none.
func Write(ctx context.Context, w http.ResponseWriter, c carrier.Carrier) error {
	const op = "response.Write"
	meta := c.Metadata()

	contentType := meta.MediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	if !strings.HasPrefix(contentType, "application/json") {
		fileName := meta.FileName
		if fileName == "" {
			fileName = "output"
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	}
	for k, v := range meta.Headers {
		w.Header().Set(k, v)
	}

	w.WriteHeader(http.StatusOK)

	for {
		chunk, err := c.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if _, werr := w.Write(chunk); werr != nil {
			return pipeerr.Network(op, werr)
		}
	}
}

// WriteError maps a pipeline error's Kind to an HTTP status and writes a
// minimal JSON error body. Kind classification, not string matching, drives
// the mapping so new error sites never need to touch this table.
func WriteError(w http.ResponseWriter, err error) {
	status := statusForKind(pipeerr.KindOf(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, err.Error())
}

func statusForKind(kind pipeerr.Kind) int {
	switch kind {
	case pipeerr.KindInvalidArguments, pipeerr.KindPipelineShape:
		return http.StatusBadRequest
	case pipeerr.KindUnknownStep:
		return http.StatusBadRequest
	case pipeerr.KindNotFound:
		return http.StatusNotFound
	case pipeerr.KindCryptoAuth:
		return http.StatusForbidden
	case pipeerr.KindUnsupportedOperation:
		return http.StatusUnprocessableEntity
	case pipeerr.KindResourceLimit:
		return http.StatusRequestEntityTooLarge
	case pipeerr.KindNetwork:
		return http.StatusBadGateway
	case pipeerr.KindFormat:
		return http.StatusUnprocessableEntity
	case pipeerr.KindCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}
