// Package steps wires the concrete step implementations (zipstep,
// imagestep, crypt4ghstep) into a pipeline.Registry.
package steps

import (
	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline/steps/crypt4ghstep"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline/steps/imagestep"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline/steps/zipstep"
)

// Config carries the tuning knobs step constructors need. It mirrors the
// subset of infrastructure/config.Config the step layer cares about.
type Config struct {
	HTTPClient       carrier.HTTPDoer
	LookaheadSize    int
	SeekBufferLimit  int64
	QueueCapacity    int
	FanOutCapacity   int
	MaxImageWidth    int
	MaxImageHeight   int
}

// NewDefaultRegistry registers every step type named in the external
// interface: preview_zip, extract_file_zip, extract_directory_zip,
// create_zip, preview_picture, decrypt_crypt4gh, add_recipient_crypt4gh,
// validate_crypt4gh.
func NewDefaultRegistry(cfg Config) *pipeline.Registry {
	resolver := pipeline.SourceResolver{Client: cfg.HTTPClient, LookaheadSize: cfg.LookaheadSize}

	r := pipeline.NewRegistry()
	r.Register("preview_zip", func() pipeline.Step {
		return zipstep.NewPreview(resolver, cfg.SeekBufferLimit)
	})
	r.Register("extract_file_zip", func() pipeline.Step {
		return zipstep.NewExtractFile(resolver, cfg.SeekBufferLimit, cfg.QueueCapacity)
	})
	r.Register("extract_directory_zip", func() pipeline.Step {
		return zipstep.NewExtractDirectory(resolver, cfg.SeekBufferLimit, cfg.QueueCapacity, cfg.FanOutCapacity)
	})
	r.Register("create_zip", func() pipeline.Step {
		return zipstep.NewCreate(cfg.QueueCapacity)
	})
	r.Register("preview_picture", func() pipeline.Step {
		return imagestep.NewPreview(resolver, cfg.MaxImageWidth, cfg.MaxImageHeight)
	})
	r.Register("decrypt_crypt4gh", func() pipeline.Step {
		return crypt4ghstep.NewDecrypt(resolver, cfg.QueueCapacity)
	})
	r.Register("add_recipient_crypt4gh", func() pipeline.Step {
		return crypt4ghstep.NewAddRecipient(resolver, cfg.QueueCapacity)
	})
	r.Register("validate_crypt4gh", func() pipeline.Step {
		return crypt4ghstep.NewValidate(resolver)
	})
	return r
}
