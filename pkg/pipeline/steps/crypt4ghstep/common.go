// Package crypt4ghstep wraps pkg/crypt4gh's container format as pipeline
// steps: decrypt_crypt4gh, add_recipient_crypt4gh, and validate_crypt4gh.
//
// Keys are passed as standard-base64-encoded 32-byte X25519 scalars rather
// than Crypt4GH's armored PEM-like key files; there was no reference
// implementation available to match that framing against, so this package
// favors a format that round-trips within itself over byte-compatibility
// with the reference CLI's key files.
package crypt4ghstep

import (
	"context"
	"encoding/base64"
	"io"

	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
)

func decodeKeyArg(op string, args pipeline.Args, key string) ([32]byte, error) {
	var out [32]byte
	encoded, err := args.RequireString(op, key)
	if err != nil {
		return out, err
	}
	raw, derr := base64.StdEncoding.DecodeString(encoded)
	if derr != nil {
		return out, pipeerr.Invalidf(op, "argument %q is not valid base64: %v", key, derr)
	}
	if len(raw) != 32 {
		return out, pipeerr.Invalidf(op, "argument %q must decode to 32 bytes, got %d", key, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// streamRemainder copies whatever is left on r to w, 64 KiB at a time,
// stopping cleanly at EOF or ctx cancellation.
func streamRemainder(ctx context.Context, w io.Writer, r io.Reader) error {
	const op = "crypt4ghstep.streamRemainder"
	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return pipeerr.Format(op, werr)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return pipeerr.Format(op, rerr)
		}
	}
}
