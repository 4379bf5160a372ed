package zipstep

import (
	"archive/zip"
	"context"
	"io"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
)

var registerFlateOnce sync.Once

// registerFastFlate swaps archive/zip's Deflate compressor for
// klauspost/compress's faster implementation. It never changes which
// compression method create_zip selects (args never expose that choice);
// it only changes which implementation writes the members create_zip (or
// any other archive/zip user in the process) deflates.
func registerFastFlate() {
	registerFlateOnce.Do(func() {
		zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, flate.DefaultCompression)
		})
	})
}

// Create implements create_zip: streams every carrier in inputs into a ZIP
// archive written member-by-member as each upstream carrier is drained.
// args never expose a compression choice. Internally, each member's stored
// method is chosen from its media type: plain text-like formats
// (compressibleMediaTypes) are deflated via the faster klauspost/compress
// implementation registered by registerFastFlate; everything else — images, archives,
// unknown or absent media types — is stored, matching the spec's default.
type Create struct {
	QueueCapacity int
}

func NewCreate(queueCapacity int) *Create {
	registerFastFlate()
	return &Create{QueueCapacity: queueCapacity}
}

func (c *Create) ProducesMultipleOutputs() bool { return false }

func (c *Create) Process(ctx context.Context, inputs pipeline.Outputs, args pipeline.Args) (pipeline.Outputs, error) {
	const op = "zipstep.Create"

	if inputs == nil {
		return nil, pipeerr.Shapef(op, "create_zip requires one or more upstream carriers")
	}

	meta := carrier.Metadata{
		MediaType: "application/zip",
		FileName:  "created.zip",
		Headers:   map[string]string{"Content-Disposition": `attachment; filename="created.zip"`},
	}
	out, producer := carrier.NewQueueCarrier(ctx, meta, c.QueueCapacity)

	go func() {
		pw := &carrier.ProducerWriter{Producer: producer}
		zw := zip.NewWriter(pw)

		index := 0
		seen := map[string]int{}
		for {
			member, err := inputs.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				producer.Fail(err)
				return
			}
			name := member.Metadata().FileName
			if name == "" {
				name = defaultMemberName(index)
			}
			name = disambiguate(name, seen)
			method := zip.Store
			if shouldDeflate(member.Metadata().MediaType) {
				method = zip.Deflate
			}
			w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
			if err != nil {
				producer.Fail(pipeerr.Format(op, err))
				return
			}
			if err := copyCarrierInto(ctx, w, member); err != nil {
				producer.Fail(err)
				return
			}
			index++
		}
		if err := zw.Close(); err != nil {
			producer.Fail(pipeerr.Format(op, err))
			return
		}
		producer.Close()
	}()

	return pipeline.NewSingleOutputs(out), nil
}

func defaultMemberName(index int) string {
	return "member-" + strconv.Itoa(index) + ".bin"
}

// disambiguate returns name unchanged the first time it's seen, and
// suffixes it "-1", "-2", … (before the extension) on every collision
// after that, recording the count in seen.
func disambiguate(name string, seen map[string]int) string {
	count := seen[name]
	seen[name] = count + 1
	if count == 0 {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + "-" + strconv.Itoa(count) + ext
}

func copyCarrierInto(ctx context.Context, w io.Writer, c carrier.Carrier) error {
	for {
		chunk, err := c.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if _, werr := w.Write(chunk); werr != nil {
			return pipeerr.Format("zipstep.Create", werr)
		}
	}
}
