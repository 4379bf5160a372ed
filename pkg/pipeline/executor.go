package pipeline

import (
	"context"
	"fmt"

	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
	"github.com/oarepo/file-pipeline-server/pkg/infrastructure/logging"
)

// StepSpec is one entry of a pipeline definition: a step type name plus its
// JSON arguments.
type StepSpec struct {
	Type      string
	Arguments Args
}

// Executor resolves StepSpecs against a Registry and chains them. Streaming
// steps (extract_file_zip, extract_directory_zip, create_zip,
// decrypt_crypt4gh, add_recipient_crypt4gh) return from Process as soon as
// their producer goroutine is set up, so those stages are pipelined. Steps
// that materialize their result (preview_zip, preview_picture,
// validate_crypt4gh) read their input and do their work inside Process, so
// Run blocks on them.
type Executor struct {
	registry *Registry
	logger   *logging.Logger
	metrics  *Metrics
	progress ProgressReporter
}

func NewExecutor(registry *Registry, logger *logging.Logger) *Executor {
	return &Executor{
		registry: registry,
		logger:   logger.WithComponent("executor"),
		metrics:  &Metrics{},
		progress: NoopProgressReporter,
	}
}

func (e *Executor) WithProgressReporter(p ProgressReporter) *Executor {
	e.progress = p
	return e
}

func (e *Executor) Metrics() MetricsSnapshot { return e.metrics.Snapshot() }

// Run resolves and chains specs, returning the final Outputs plus a
// teardown func the caller must invoke once done draining (or on error) to
// release any running producer goroutines.
func (e *Executor) Run(ctx context.Context, specs []StepSpec) (Outputs, func(), error) {
	noop := func() {}
	if len(specs) == 0 {
		return nil, noop, pipeerr.Invalid("executor.Run", fmt.Errorf("pipeline must have at least one step"))
	}

	ctx, cancel := context.WithCancel(ctx)
	teardown := func() { cancel() }

	instances := make([]Step, len(specs))
	for i, s := range specs {
		step, err := e.registry.New(s.Type)
		if err != nil {
			cancel()
			return nil, noop, err
		}
		instances[i] = step
	}

	for i, step := range instances {
		if step.ProducesMultipleOutputs() && i != len(instances)-1 {
			cancel()
			return nil, noop, pipeerr.Shapef("executor.Run",
				"step %q at position %d: fan-out is only permitted as the final step", specs[i].Type, i)
		}
	}

	if instances[len(instances)-1].ProducesMultipleOutputs() {
		finalizer, err := e.registry.New("create_zip")
		if err != nil {
			cancel()
			return nil, noop, err
		}
		instances = append(instances, finalizer)
		specs = append(specs, StepSpec{Type: "create_zip", Arguments: Args{}})
	}

	var cur Outputs
	for i, step := range instances {
		stepType := specs[i].Type
		args := specs[i].Arguments
		if args == nil {
			args = Args{}
		}
		if i > 0 {
			if _, ok := args["source_url"]; ok {
				tolerant, _ := step.(SourceURLTolerant)
				if tolerant == nil || !tolerant.ToleratesSourceURLOnNonFirstStep() {
					cancel()
					return nil, noop, pipeerr.Invalidf("executor.Run",
						"step %q at position %d: source_url is only permitted on the first step", stepType, i)
				}
				e.logger.Warn("source_url is ignored on a non-first step", map[string]interface{}{
					"step": stepType, "position": i,
				})
			}
		}

		e.progress.StepStarted(stepType, i)
		outs, err := step.Process(ctx, cur, args)
		e.metrics.recordStep()
		if err != nil {
			e.metrics.recordFailure()
			if pipeerr.KindOf(err) == pipeerr.KindCancelled {
				e.metrics.recordCancellation()
			}
			e.progress.StepFinished(stepType, i, err)
			cancel()
			return nil, noop, err
		}
		e.progress.StepFinished(stepType, i, nil)
		cur = outs
	}

	return cur, teardown, nil
}
