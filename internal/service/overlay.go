package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	overlayStroke = 4
	pointRadius   = 6
)

// RenderOverlay renders the canvas and draws the annotation overlays on top of the image. The result is a PNG.
func (v *Viewer) RenderOverlay(ctx context.Context, s *Session, state RenderState) (_ []byte, err error) {
	span, ctx := startSpan(ctx, "Viewer.RenderOverlay")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	result, err := v.Render(ctx, s, state)
	if err != nil {
		return nil, err
	}

	payload, err := v.Fetcher.FetchImage(ctx, result.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("fail to fetch the image: %w", err)
	}
	src, err := imaging.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, newFetchError(fmt.Errorf("fail to decode the image: %w", err))
	}

	canvas := drawOverlays(src, result.Overlays)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("fail to encode the image: %w", err)
	}
	return buf.Bytes(), nil
}

// drawOverlays expects overlays expressed in src pixels.
func drawOverlays(src image.Image, overlays []Overlay) *image.NRGBA {
	dst := imaging.Clone(src)
	if len(overlays) == 0 {
		return dst
	}

	palette := colorful.FastHappyPalette(len(overlays))
	for i, overlay := range overlays {
		c := color.NRGBAModel.Convert(palette[i])
		r := overlay.Rect
		if r.Point {
			x, y := int(r.X), int(r.Y)
			fillRect(dst, image.Rect(x-pointRadius, y-pointRadius, x+pointRadius, y+pointRadius), c)
			drawLabel(dst, x+pointRadius+2, y-pointRadius, overlay.Number, c)
			continue
		}

		bounds := image.Rect(int(r.X), int(r.Y), int(r.X+r.W), int(r.Y+r.H))
		strokeRect(dst, bounds, c)
		drawLabel(dst, bounds.Min.X+overlayStroke+2, bounds.Min.Y+overlayStroke+2, overlay.Number, c)
	}
	return dst
}

func strokeRect(dst draw.Image, r image.Rectangle, c color.Color) {
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+overlayStroke), c)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-overlayStroke, r.Max.X, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+overlayStroke, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Max.X-overlayStroke, r.Min.Y, r.Max.X, r.Max.Y), c)
}

func fillRect(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

// drawLabel writes the annotation number on a white box with its top left corner at x, y.
func drawLabel(dst draw.Image, x, y, number int, c color.Color) {
	face := basicfont.Face7x13
	text := strconv.Itoa(number)
	width := font.MeasureString(face, text).Ceil()
	fillRect(dst, image.Rect(x-1, y-1, x+width+1, y+face.Height+1), color.White)

	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(text)
}
