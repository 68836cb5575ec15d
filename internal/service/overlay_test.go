package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/nitro/iiifviewer/internal/domain"
)

func TestDrawOverlays(t *testing.T) {
	t.Parallel()

	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	src := imaging.New(100, 100, white)

	dst := drawOverlays(src, nil)
	require.Equal(t, src.Pix, dst.Pix)

	dst = drawOverlays(src, []Overlay{
		{Number: 1, Rect: domain.Rect{X: 10, Y: 10, W: 50, H: 50}},
		{Number: 2, Rect: domain.Rect{X: 80, Y: 80, Point: true}},
	})
	require.Equal(t, image.Rect(0, 0, 100, 100), dst.Bounds())
	require.NotEqual(t, white, dst.NRGBAAt(12, 40), "left stroke")
	require.NotEqual(t, white, dst.NRGBAAt(58, 40), "right stroke")
	require.Equal(t, white, dst.NRGBAAt(40, 45), "inside")
	require.NotEqual(t, white, dst.NRGBAAt(80, 80), "point")
	require.Equal(t, white, src.NRGBAAt(12, 40), "source untouched")
}

func TestViewerRenderOverlay(t *testing.T) {
	t.Parallel()

	v, _ := newTestViewer(t)
	s := openManifest(t, v)

	payload, err := v.RenderOverlay(context.Background(), s, RenderState{})
	require.NoError(t, err)
	config, format, err := image.DecodeConfig(bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 500, config.Width)
	require.Equal(t, 250, config.Height)

	_, err = v.RenderOverlay(context.Background(), s, RenderState{Canvas: 2})
	require.ErrorIs(t, err, ErrFetchFailed)
}
