// Package workers provides lightweight parallel execution for the
// CPU-bound steps of the pipeline: resampling several image candidates and
// decrypting the independent data segments of a seekable Crypt4GH
// container.
package workers

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/oarepo/file-pipeline-server/pkg/crypt4gh"
)

// SimpleWorkerPool runs per-item work on its own goroutine and relies on Go's
// scheduler for load balancing, rather than maintaining a fixed pool of
// long-lived worker goroutines.
type SimpleWorkerPool struct {
	// No internal state needed - pure goroutines handle everything
}

// NewSimpleWorkerPool creates a simple worker pool.
// The workerCount parameter is ignored - Go's scheduler handles concurrency optimally.
func NewSimpleWorkerPool(workerCount int) *SimpleWorkerPool {
	return &SimpleWorkerPool{}
}

// ResizeJob asks for one source image to be decoded and resampled by fn,
// run in parallel with the pool's other jobs.
type ResizeJob struct {
	Name string
	Data []byte
	Fn   func(data []byte) ([]byte, error)
}

// ParallelResize runs each job's Fn concurrently and returns the results in
// the same order as jobs, so the decode-resample-encode work of several
// images overlaps instead of running back to back.
func (p *SimpleWorkerPool) ParallelResize(ctx context.Context, jobs []ResizeJob) ([][]byte, error) {
	results := make([][]byte, len(jobs))
	errs := make([]error, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(index int, j ResizeJob) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				errs[index] = ctx.Err()
				return
			default:
			}

			out, err := j.Fn(j.Data)
			if err != nil {
				errs[index] = fmt.Errorf("resize %q: %w", j.Name, err)
				return
			}
			results[index] = out
		}(i, job)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
	}
	return results, nil
}

// ParallelDecryptSegments decrypts the fixed-size Crypt4GH data segments
// starting at headerLen in ra (each SegmentCiphertextSize(SegmentPlaintextSize)
// bytes wide, the last one possibly shorter) under sessionKey, dispatching one
// segment per goroutine and returning the recovered plaintext chunks in
// segment order. It requires random access to the ciphertext (a seekable
// carrier), unlike crypt4gh.DecryptSegments which streams sequentially over
// an io.Reader; callers fall back to the sequential path when the source
// carrier offers no ReaderAt.
func (p *SimpleWorkerPool) ParallelDecryptSegments(ctx context.Context, ra io.ReaderAt, headerLen int64, totalLen int64, sessionKey [32]byte) ([][]byte, error) {
	fullSegSize := crypt4gh.SegmentCiphertextSize(crypt4gh.SegmentPlaintextSize)
	remaining := totalLen - headerLen
	if remaining < 0 {
		return nil, fmt.Errorf("container shorter than its header")
	}
	segCount := int((remaining + int64(fullSegSize) - 1) / int64(fullSegSize))
	if segCount == 0 {
		return nil, nil
	}

	results := make([][]byte, segCount)
	errs := make([]error, segCount)

	var wg sync.WaitGroup
	for i := 0; i < segCount; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				errs[index] = ctx.Err()
				return
			default:
			}

			offset := headerLen + int64(index)*int64(fullSegSize)
			segLen := int64(fullSegSize)
			if offset+segLen > totalLen {
				segLen = totalLen - offset
			}
			buf := make([]byte, segLen)
			if _, err := ra.ReadAt(buf, offset); err != nil && err != io.EOF {
				errs[index] = fmt.Errorf("read segment %d: %w", index, err)
				return
			}
			plaintext, err := crypt4gh.DecryptSegment(sessionKey, buf)
			if err != nil {
				errs[index] = fmt.Errorf("decrypt segment %d: %w", index, err)
				return
			}
			results[index] = plaintext
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
	}
	return results, nil
}
