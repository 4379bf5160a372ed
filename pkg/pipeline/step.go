// Package pipeline implements the step registry and executor that chain
// carriers through a sequence of named, argument-configured steps.
package pipeline

import (
	"context"
	"io"
	"strconv"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
)

// Args holds a step's JSON-decoded arguments. Values arriving from JSON
// decode as string, float64, bool, or nested maps/slices; the accessors
// below normalize the common cases.
type Args map[string]interface{}

func (a Args) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// RequireString fetches a non-empty string argument or returns an
// InvalidArguments error naming op and key.
func (a Args) RequireString(op, key string) (string, error) {
	s, ok := a.String(key)
	if !ok || s == "" {
		return "", pipeerr.Invalidf(op, "missing required argument %q", key)
	}
	return s, nil
}

func (a Args) Int(key string) (int, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func (a Args) IntOrDefault(key string, def int) int {
	if v, ok := a.Int(key); ok {
		return v
	}
	return def
}

// RequireInt fetches a positive integer argument or returns an
// InvalidArguments error naming op and key.
func (a Args) RequireInt(op, key string) (int, error) {
	v, ok := a.Int(key)
	if !ok || v <= 0 {
		return 0, pipeerr.Invalidf(op, "missing or non-positive required argument %q", key)
	}
	return v, nil
}

// Outputs is the async sequence of carriers a step produces. Single-output
// steps wrap one carrier (see SingleOutputs); fan-out steps wrap a channel
// fed concurrently by a producer goroutine (see ChanOutputs).
type Outputs interface {
	// Next returns the next produced carrier, or io.EOF once the sequence
	// is exhausted.
	Next(ctx context.Context) (carrier.Carrier, error)
}

// SingleOutputs wraps exactly one carrier, yielding it once and io.EOF
// thereafter.
type SingleOutputs struct {
	c    carrier.Carrier
	done bool
}

func NewSingleOutputs(c carrier.Carrier) *SingleOutputs { return &SingleOutputs{c: c} }

func (s *SingleOutputs) Next(ctx context.Context) (carrier.Carrier, error) {
	if s.done {
		return nil, io.EOF
	}
	s.done = true
	return s.c, nil
}

// ChanOutputs wraps a channel of carriers, fed by a producer goroutine a
// fan-out step (extract_directory_zip) spawns and closes when finished. A
// non-nil err on the final message is surfaced to the consumer.
type ChanOutputs struct {
	ch <-chan outputItem
}

type outputItem struct {
	c   carrier.Carrier
	err error
}

type ChanOutputsProducer struct {
	ch chan outputItem
}

func NewChanOutputs(capacity int) (*ChanOutputs, *ChanOutputsProducer) {
	ch := make(chan outputItem, capacity)
	return &ChanOutputs{ch: ch}, &ChanOutputsProducer{ch: ch}
}

func (p *ChanOutputsProducer) Push(ctx context.Context, c carrier.Carrier) error {
	select {
	case p.ch <- outputItem{c: c}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ChanOutputsProducer) Fail(err error) { p.ch <- outputItem{err: err}; close(p.ch) }

func (p *ChanOutputsProducer) Close() { close(p.ch) }

func (o *ChanOutputs) Next(ctx context.Context) (carrier.Carrier, error) {
	select {
	case item, ok := <-o.ch:
		if !ok {
			return nil, io.EOF
		}
		if item.err != nil {
			return nil, item.err
		}
		return item.c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Step is the contract every pipeline step implements. A step receives the
// prior step's Outputs (nil for the first step in a pipeline) and its own
// JSON arguments, and returns its own Outputs.
type Step interface {
	// ProducesMultipleOutputs reports whether this step may emit more than
	// one carrier (only extract_directory_zip does). The executor only
	// allows such a step as the final one in a pipeline, auto-appending a
	// create_zip finalizer.
	ProducesMultipleOutputs() bool

	Process(ctx context.Context, inputs Outputs, args Args) (Outputs, error)
}

// SourceURLTolerant is an optional interface a Step implements to accept a
// source_url argument past the first pipeline position instead of having
// the executor reject it outright. Only the Crypt4GH steps implement it:
// their input handling is purely sequential and doesn't care whether the
// upstream carrier or a fresh URL fetch feeds it, so the executor logs a
// warning and ignores source_url rather than failing the pipeline. Steps
// that don't implement this interface get the executor's default: a hard
// InvalidArguments error.
type SourceURLTolerant interface {
	ToleratesSourceURLOnNonFirstStep() bool
}

// SingleInput pulls the one carrier out of inputs for steps that don't
// support fan-in, returning PipelineShapeError if inputs holds more than one
// carrier or none at all.
func SingleInput(ctx context.Context, op string, inputs Outputs) (carrier.Carrier, error) {
	if inputs == nil {
		return nil, pipeerr.Shapef(op, "step requires input from a previous stage")
	}
	c, err := inputs.Next(ctx)
	if err != nil {
		if err == io.EOF {
			return nil, pipeerr.Shapef(op, "upstream produced no carriers")
		}
		return nil, err
	}
	if extra, err := inputs.Next(ctx); err == nil && extra != nil {
		return nil, pipeerr.Shapef(op, "step accepts a single input but received multiple carriers")
	}
	return c, nil
}

// SourceResolver builds the carrier a first-position step reads from when
// its pipeline has no predecessor. Steps that can open a pipeline
// (preview_zip, extract_file_zip, extract_directory_zip, preview_picture,
// decrypt_crypt4gh, add_recipient_crypt4gh, validate_crypt4gh) embed one and call ResolveInput instead of SingleInput.
type SourceResolver struct {
	Client        carrier.HTTPDoer
	LookaheadSize int
}

// ResolveInput returns the carrier a step should read from: the upstream
// carrier when inputs is non-nil (source_url, if present, is ignored — the
// executor either rejects or warns-and-ignores that case before Process is
// even called, depending on whether the step implements
// SourceURLTolerant), or a fresh UrlCarrier built from the required
// source_url argument when this is the first step in the pipeline.
func (r SourceResolver) ResolveInput(ctx context.Context, op string, inputs Outputs, args Args) (carrier.Carrier, error) {
	if inputs != nil {
		return SingleInput(ctx, op, inputs)
	}
	url, err := args.RequireString(op, "source_url")
	if err != nil {
		return nil, err
	}
	return carrier.NewUrlCarrier(carrier.Metadata{}, url, r.Client, r.LookaheadSize), nil
}
