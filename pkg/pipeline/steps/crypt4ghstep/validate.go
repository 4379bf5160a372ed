package crypt4ghstep

import (
	"context"
	"encoding/json"
	"io"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/crypt4gh"
	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
)

type validateResult struct {
	Valid bool    `json:"valid"`
	Error *string `json:"error"`
}

// Validate implements validate_crypt4gh: fully consumes the stream,
// discarding decrypted plaintext, and reports whether the container opens
// and authenticates cleanly. Format, crypto-authentication, and network
// failures are reported as {"valid": false, "error": ...} rather than
// propagated, since a failed validation is this step's successful result;
// malformed pipeline arguments still propagate as real errors.
type Validate struct {
	Resolver pipeline.SourceResolver
}

func NewValidate(resolver pipeline.SourceResolver) *Validate {
	return &Validate{Resolver: resolver}
}

func (v *Validate) ProducesMultipleOutputs() bool { return false }

// ToleratesSourceURLOnNonFirstStep implements pipeline.SourceURLTolerant.
func (v *Validate) ToleratesSourceURLOnNonFirstStep() bool { return true }

func (v *Validate) Process(ctx context.Context, inputs pipeline.Outputs, args pipeline.Args) (pipeline.Outputs, error) {
	const op = "crypt4ghstep.Validate"

	privateKey, err := decodeKeyArg(op, args, "recipient_sec")
	if err != nil {
		return nil, err
	}

	in, err := v.Resolver.ResolveInput(ctx, op, inputs, args)
	if err != nil {
		return nil, err
	}

	result := validateResult{Valid: true}
	if err := validateContainer(ctx, in, privateKey); err != nil {
		switch pipeerr.KindOf(err) {
		case pipeerr.KindFormat, pipeerr.KindCryptoAuth, pipeerr.KindNetwork:
			msg := err.Error()
			result = validateResult{Valid: false, Error: &msg}
		default:
			return nil, err
		}
	}

	body, err := json.Marshal(result)
	if err != nil {
		return nil, pipeerr.Format(op, err)
	}
	out := carrier.NewBytesCarrier(carrier.Metadata{MediaType: "application/json"}, body)
	return pipeline.NewSingleOutputs(out), nil
}

func validateContainer(ctx context.Context, in carrier.Carrier, privateKey [32]byte) error {
	reader := carrier.NewReader(ctx, in)
	header, err := crypt4gh.ParseHeader(reader, privateKey)
	if err != nil {
		return err
	}
	return crypt4gh.DecryptSegments(io.Discard, reader, header.SessionKey)
}
