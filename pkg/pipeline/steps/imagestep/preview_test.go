package imagestep

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
)

func makeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreviewPassesThroughSmallImageUnchanged(t *testing.T) {
	ctx := context.Background()
	data := makeTestPNG(t, 50, 40)

	step := NewPreview(pipeline.SourceResolver{}, 0, 0)
	in := pipeline.NewSingleOutputs(carrier.NewBytesCarrier(carrier.Metadata{FileName: "photo.png"}, data))
	outs, err := step.Process(ctx, in, pipeline.Args{"max_width": 200, "max_height": 200})
	require.NoError(t, err)

	out, err := outs.Next(ctx)
	require.NoError(t, err)
	result, err := carrier.ReadAll(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, data, result)
	assert.Equal(t, 50, out.Metadata().Width)
	assert.Equal(t, "photo.png", out.Metadata().FileName)
	assert.Equal(t, "RGB", out.Metadata().Mode)
}

func TestPreviewDownscalesLargeImage(t *testing.T) {
	ctx := context.Background()
	data := makeTestPNG(t, 800, 400)

	step := NewPreview(pipeline.SourceResolver{}, 0, 0)
	in := pipeline.NewSingleOutputs(carrier.NewBytesCarrier(carrier.Metadata{}, data))
	outs, err := step.Process(ctx, in, pipeline.Args{"max_width": 100, "max_height": 100})
	require.NoError(t, err)

	out, err := outs.Next(ctx)
	require.NoError(t, err)

	assert.Equal(t, 100, out.Metadata().Width)
	assert.Equal(t, 50, out.Metadata().Height)

	result, err := carrier.ReadAll(ctx, out)
	require.NoError(t, err)
	decoded, _, err := image.Decode(bytes.NewReader(result))
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())
	assert.Equal(t, 50, decoded.Bounds().Dy())
}

func TestPreviewRequiresMaxDimensions(t *testing.T) {
	ctx := context.Background()
	data := makeTestPNG(t, 50, 40)

	step := NewPreview(pipeline.SourceResolver{}, 0, 0)
	in := pipeline.NewSingleOutputs(carrier.NewBytesCarrier(carrier.Metadata{}, data))
	_, err := step.Process(ctx, in, pipeline.Args{"max_width": 200})
	require.Error(t, err)
	assert.Equal(t, pipeerr.KindInvalidArguments, pipeerr.KindOf(err))
}

func TestPreviewRejectsDimensionsAboveServerLimit(t *testing.T) {
	ctx := context.Background()
	data := makeTestPNG(t, 50, 40)

	step := NewPreview(pipeline.SourceResolver{}, 100, 100)
	in := pipeline.NewSingleOutputs(carrier.NewBytesCarrier(carrier.Metadata{}, data))
	_, err := step.Process(ctx, in, pipeline.Args{"max_width": 500, "max_height": 100})
	require.Error(t, err)
	assert.Equal(t, pipeerr.KindResourceLimit, pipeerr.KindOf(err))
}
