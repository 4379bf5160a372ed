// Package imagestep implements preview_picture: decode, optionally
// downscale, and re-encode an image preview.
package imagestep

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/oarepo/file-pipeline-server/pkg/carrier"
	"github.com/oarepo/file-pipeline-server/pkg/pipeerr"
	"github.com/oarepo/file-pipeline-server/pkg/pipeline"
)

// Preview implements preview_picture. It reads the whole input into memory
// (previews operate on already-small images), decodes it, and if the
// requested bounding box is smaller than the source in either dimension,
// resamples with a high-quality Catmull-Rom scaler. If the source already
// fits the requested box, the original bytes are returned unchanged rather
// than a needless re-encode.
//
// MaxAllowedWidth/MaxAllowedHeight cap args.max_width/args.max_height: a
// caller can always ask for a smaller preview, never a larger one than the
// server is configured to produce.
type Preview struct {
	Resolver         pipeline.SourceResolver
	MaxAllowedWidth  int
	MaxAllowedHeight int
}

func NewPreview(resolver pipeline.SourceResolver, maxAllowedWidth, maxAllowedHeight int) *Preview {
	return &Preview{Resolver: resolver, MaxAllowedWidth: maxAllowedWidth, MaxAllowedHeight: maxAllowedHeight}
}

func (p *Preview) ProducesMultipleOutputs() bool { return false }

func (p *Preview) Process(ctx context.Context, inputs pipeline.Outputs, args pipeline.Args) (pipeline.Outputs, error) {
	const op = "imagestep.Preview"

	maxWidth, err := args.RequireInt(op, "max_width")
	if err != nil {
		return nil, err
	}
	maxHeight, err := args.RequireInt(op, "max_height")
	if err != nil {
		return nil, err
	}
	if p.MaxAllowedWidth > 0 && maxWidth > p.MaxAllowedWidth {
		return nil, pipeerr.ResourceLimitf(op, "requested max_width %d exceeds the server limit of %d", maxWidth, p.MaxAllowedWidth)
	}
	if p.MaxAllowedHeight > 0 && maxHeight > p.MaxAllowedHeight {
		return nil, pipeerr.ResourceLimitf(op, "requested max_height %d exceeds the server limit of %d", maxHeight, p.MaxAllowedHeight)
	}

	in, err := p.Resolver.ResolveInput(ctx, op, inputs, args)
	if err != nil {
		return nil, err
	}

	fileName, _ := args.String("file_name")
	if fileName == "" {
		fileName = in.Metadata().FileName
	}

	raw, err := carrier.ReadAll(ctx, in)
	if err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, pipeerr.Format(op, err)
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW <= maxWidth && srcH <= maxHeight {
		out := carrier.NewBytesCarrier(carrier.Metadata{
			MediaType: mediaTypeForFormat(format),
			FileName:  fileName,
			Mode:      colorModeString(img),
			Width:     srcW,
			Height:    srcH,
		}, raw)
		return pipeline.NewSingleOutputs(out), nil
	}

	dstW, dstH := scaledDimensions(srcW, srcH, maxWidth, maxHeight)
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	encoded, err := encode(dst, format)
	if err != nil {
		return nil, pipeerr.Format(op, err)
	}

	out := carrier.NewBytesCarrier(carrier.Metadata{
		MediaType: mediaTypeForFormat(format),
		FileName:  fileName,
		Mode:      colorModeString(dst),
		Width:     dstW,
		Height:    dstH,
	}, encoded)
	return pipeline.NewSingleOutputs(out), nil
}

// colorModeString reports img's color mode the way image libraries commonly
// name them, for metadata.mode. Paletted images report "P"; everything else
// collapses to "L", "CMYK", "RGB", or "RGBA".
func colorModeString(img image.Image) string {
	if _, ok := img.ColorModel().(color.Palette); ok {
		return "P"
	}
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return "L"
	case color.CMYKModel:
		return "CMYK"
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		if imageHasAlpha(img) {
			return "RGBA"
		}
		return "RGB"
	default:
		return "RGB"
	}
}

// imageHasAlpha reports whether any pixel has a non-opaque alpha channel.
// RGBA/NRGBA images are frequently fully opaque in practice (e.g. decoded
// JPEGs re-wrapped in an RGBA buffer); "RGB" is the more accurate mode then.
func imageHasAlpha(img image.Image) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a != 0xffff {
				return true
			}
		}
	}
	return false
}

func scaledDimensions(srcW, srcH, maxW, maxH int) (int, int) {
	wRatio := float64(maxW) / float64(srcW)
	hRatio := float64(maxH) / float64(srcH)
	ratio := wRatio
	if hRatio < ratio {
		ratio = hRatio
	}
	dstW := int(float64(srcW) * ratio)
	dstH := int(float64(srcH) * ratio)
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}
	return dstW, dstH
}

func mediaTypeForFormat(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

func encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
