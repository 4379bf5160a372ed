package workers

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/oarepo/file-pipeline-server/pkg/crypt4gh"
)

func TestSimpleWorkerPoolParallelResize(t *testing.T) {
	pool := NewSimpleWorkerPool(runtime.NumCPU())

	jobCount := 10
	jobs := make([]ResizeJob, jobCount)
	for i := 0; i < jobCount; i++ {
		data := []byte(fmt.Sprintf("source-image-%d", i))
		jobs[i] = ResizeJob{
			Name: fmt.Sprintf("image-%d", i),
			Data: data,
			Fn: func(d []byte) ([]byte, error) {
				time.Sleep(2 * time.Millisecond)
				return append([]byte("resized:"), d...), nil
			},
		}
	}

	start := time.Now()
	results, err := pool.ParallelResize(context.Background(), jobs)
	duration := time.Since(start)

	if err != nil {
		t.Fatalf("Parallel resize failed: %v", err)
	}
	if len(results) != jobCount {
		t.Fatalf("Expected %d results, got %d", jobCount, len(results))
	}
	for i, result := range results {
		expected := append([]byte("resized:"), jobs[i].Data...)
		if !bytes.Equal(result, expected) {
			t.Fatalf("Job %d result mismatch: got %q, want %q", i, result, expected)
		}
	}

	t.Logf("Parallel resize of %d jobs completed in %v", jobCount, duration)
}

func TestSimpleWorkerPoolParallelResizePropagatesError(t *testing.T) {
	pool := NewSimpleWorkerPool(1)
	jobs := []ResizeJob{
		{Name: "ok", Data: []byte("a"), Fn: func(d []byte) ([]byte, error) { return d, nil }},
		{Name: "bad", Data: []byte("b"), Fn: func(d []byte) ([]byte, error) { return nil, fmt.Errorf("decode failed") }},
	}

	_, err := pool.ParallelResize(context.Background(), jobs)
	if err == nil {
		t.Fatal("Expected an error from the failing job")
	}
}

func buildTestContainer(t *testing.T, plaintext []byte) (crypt4gh.KeyPair, []byte) {
	t.Helper()
	sender, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	recipient, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	var sessionKey [32]byte
	copy(sessionKey[:], bytes.Repeat([]byte{0x42}, 32))

	packet, err := crypt4gh.NewHeaderPacket(sender.Private, recipient.Public, sessionKey)
	if err != nil {
		t.Fatalf("NewHeaderPacket: %v", err)
	}

	var buf bytes.Buffer
	if err := crypt4gh.WriteHeader(&buf, [][]byte{packet}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := crypt4gh.EncryptSegments(&buf, bytes.NewReader(plaintext), sessionKey); err != nil {
		t.Fatalf("EncryptSegments: %v", err)
	}

	return recipient, buf.Bytes()
}

func TestSimpleWorkerPoolParallelDecryptSegments(t *testing.T) {
	plaintext := bytes.Repeat([]byte("pipeline segment data "), 5000)
	recipient, container := buildTestContainer(t, plaintext)

	header, err := crypt4gh.ParseHeader(bytes.NewReader(container), recipient.Private)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}

	pool := NewSimpleWorkerPool(runtime.NumCPU())
	start := time.Now()
	chunks, err := pool.ParallelDecryptSegments(context.Background(), bytes.NewReader(container), header.ByteLen, int64(len(container)), header.SessionKey)
	duration := time.Since(start)
	if err != nil {
		t.Fatalf("ParallelDecryptSegments failed: %v", err)
	}

	var recovered []byte
	for _, c := range chunks {
		recovered = append(recovered, c...)
	}
	if !bytes.Equal(recovered, plaintext) {
		t.Fatalf("Recovered plaintext does not match original (%d vs %d bytes)", len(recovered), len(plaintext))
	}

	t.Logf("Parallel decrypt of %d segments completed in %v", len(chunks), duration)
}

func TestSimpleWorkerPoolParallelDecryptSegmentsWrongKey(t *testing.T) {
	plaintext := []byte("short secret payload")
	recipient, container := buildTestContainer(t, plaintext)

	other, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	if _, err := crypt4gh.ParseHeader(bytes.NewReader(container), other.Private); err == nil {
		t.Fatal("Expected ParseHeader to fail for a recipient the container wasn't sealed to")
	}

	header, err := crypt4gh.ParseHeader(bytes.NewReader(container), recipient.Private)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	var wrongKey [32]byte
	copy(wrongKey[:], bytes.Repeat([]byte{0x24}, 32))

	pool := NewSimpleWorkerPool(1)
	if _, err := pool.ParallelDecryptSegments(context.Background(), bytes.NewReader(container), header.ByteLen, int64(len(container)), wrongKey); err == nil {
		t.Fatal("Expected ParallelDecryptSegments to fail under the wrong session key")
	}
}
