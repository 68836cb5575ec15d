package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nitro/iiifviewer/internal/domain"
)

// Image API region and size keywords.
const (
	RegionFull   = "full"
	RegionSquare = "square"
	SizeMax      = "max"
)

// ImageParams are the Image API request parameters: {region}/{size}/{rotation}/{quality}.{format}.
type ImageParams struct {
	Region   string `json:"region"`
	Size     string `json:"size"`
	Rotation int    `json:"rotation"`
	Quality  string `json:"quality"`
	Format   string `json:"format"`
}

// DefaultImageParams requests the whole image at its maximum size.
func DefaultImageParams() ImageParams {
	return ImageParams{Region: RegionFull, Size: SizeMax, Quality: "default", Format: "jpg"}
}

// IsDefault reports whether the parameters request the unmodified image.
func (p ImageParams) IsDefault() bool {
	return p == DefaultImageParams()
}

// Viewport is the visible area of a canvas, in canvas pixels, after a zoom. Top is smaller than Bottom.
type Viewport struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Resolver builds Image API URLs and maps annotation targets to pixel rectangles.
type Resolver struct{}

// BuildImageURL concatenates the Image API parameters to the service base URL. The tokens are not validated.
func (Resolver) BuildImageURL(serviceBaseURL string, p ImageParams) (string, error) {
	if serviceBaseURL == "" {
		return "", newError(ErrNoImageService, errors.New("resource has no image service"))
	}
	return strings.Join([]string{
		strings.TrimSuffix(serviceBaseURL, "/"),
		p.Region,
		p.Size,
		strconv.Itoa(p.Rotation),
		p.Quality + "." + p.Format,
	}, "/"), nil
}

// ResourceURL returns the URL to fetch the resource with. Without an image service the resource id is returned
// verbatim, which is only possible for the default parameters.
func (r Resolver) ResourceURL(serviceBaseURL string, resource domain.ContentResource, p ImageParams) (string, error) {
	if serviceBaseURL != "" {
		return r.BuildImageURL(serviceBaseURL, p)
	}
	if !p.IsDefault() {
		return "", newError(ErrNoImageService, fmt.Errorf("resource '%s' has no image service", resource.ID))
	}
	return resource.ID, nil
}

// NormalizeRegion converts a region to canvas pixels. Accepted forms are 'full', 'square', 'pct:x,y,w,h' and
// 'x,y,w,h'.
func (Resolver) NormalizeRegion(region string, canvasWidth, canvasHeight int) (domain.Rect, error) {
	w, h := float64(canvasWidth), float64(canvasHeight)
	switch {
	case region == RegionFull || region == "":
		return domain.Rect{W: w, H: h}, nil
	case region == RegionSquare:
		side := math.Min(w, h)
		return domain.Rect{X: (w - side) / 2, Y: (h - side) / 2, W: side, H: side}, nil
	case strings.HasPrefix(region, "pct:"):
		values, err := parseXYWH(strings.TrimPrefix(region, "pct:"))
		if err != nil {
			return domain.Rect{}, newClientError(fmt.Errorf("invalid region '%s': %w", region, err))
		}
		return domain.Rect{
			X: values[0] / 100 * w,
			Y: values[1] / 100 * h,
			W: values[2] / 100 * w,
			H: values[3] / 100 * h,
		}, nil
	default:
		values, err := parseXYWH(region)
		if err != nil {
			return domain.Rect{}, newClientError(fmt.Errorf("invalid region '%s': %w", region, err))
		}
		return domain.Rect{X: values[0], Y: values[1], W: values[2], H: values[3]}, nil
	}
}

// ResolveSelectorToRect maps an annotation target to a rectangle in displayed image pixels. Canvas pixel values are
// scaled by the ratio between the displayed image and the canvas, percentages by the displayed image size. A point
// selector gives a zero area rect flagged as Point.
func (r Resolver) ResolveSelectorToRect(
	target domain.Target, canvasWidth, canvasHeight, displayedWidth, displayedHeight int,
) (domain.Rect, error) {
	d := displaySpace{
		canvasWidth:     canvasWidth,
		canvasHeight:    canvasHeight,
		displayedWidth:  float64(displayedWidth),
		displayedHeight: float64(displayedHeight),
	}

	switch t := target.(type) {
	case domain.FragmentTarget:
		return r.fragmentRect(t.Fragment, d)
	case domain.SpecificResourceTarget:
		switch s := t.Selector.(type) {
		case domain.PointSelector:
			sx, sy := d.scale()
			return domain.Rect{X: s.X * sx, Y: s.Y * sy, Point: true}, nil
		case domain.FragmentSelector:
			fragment, ok := s.XYWH()
			if !ok {
				return domain.Rect{}, newError(
					ErrUnsupportedSelectorType,
					fmt.Errorf("fragment selector '%s' is not supported", s.Value),
				)
			}
			return r.fragmentRect(fragment, d)
		case domain.ImageAPISelector:
			return r.regionRect(s.Region, d)
		case nil:
			return domain.Rect{W: d.displayedWidth, H: d.displayedHeight}, nil
		default:
			return domain.Rect{}, newError(
				ErrUnsupportedSelectorType,
				fmt.Errorf("selector type '%s' is not supported", s.SelectorType()),
			)
		}
	case nil:
		return domain.Rect{}, newError(ErrUnsupportedSelectorType, errors.New("annotation has no target"))
	default:
		return domain.Rect{}, newError(ErrUnsupportedSelectorType, fmt.Errorf("target type '%T' is not supported", t))
	}
}

// CropRect maps a canvas pixel rectangle onto an image that shows only the region of the canvas, served at the
// displayed size. It reports false when the rectangle lies outside the region.
func (Resolver) CropRect(rect, region domain.Rect, displayedWidth, displayedHeight int) (domain.Rect, bool) {
	if region.W <= 0 || region.H <= 0 {
		return domain.Rect{}, false
	}
	right, bottom := region.X+region.W, region.Y+region.H
	if rect.Point {
		if rect.X < region.X || rect.X >= right || rect.Y < region.Y || rect.Y >= bottom {
			return domain.Rect{}, false
		}
	} else if rect.X >= right || rect.X+rect.W <= region.X || rect.Y >= bottom || rect.Y+rect.H <= region.Y {
		return domain.Rect{}, false
	}

	sx, sy := float64(displayedWidth)/region.W, float64(displayedHeight)/region.H
	return domain.Rect{
		X:     (rect.X - region.X) * sx,
		Y:     (rect.Y - region.Y) * sy,
		W:     rect.W * sx,
		H:     rect.H * sy,
		Point: rect.Point,
	}, true
}

// RegionToPercent expresses a canvas pixel rectangle as percentages of the canvas, rounded to 2 decimals.
func (Resolver) RegionToPercent(rect domain.Rect, canvasWidth, canvasHeight int) [4]float64 {
	w, h := float64(canvasWidth), float64(canvasHeight)
	return [4]float64{
		round2(rect.X / w * 100),
		round2(rect.Y / h * 100),
		round2(rect.W / w * 100),
		round2(rect.H / h * 100),
	}
}

// ViewportRegion converts a zoomed viewport to an absolute 'x,y,w,h' region. It reports false when the viewport
// still spans the canvas width or height.
func (Resolver) ViewportRegion(v Viewport, canvasWidth, canvasHeight int) (string, bool) {
	x := int(v.Left + 0.5)
	y := int(v.Top + 0.5)
	width := int(v.Right - v.Left)
	height := int(v.Bottom - v.Top)
	if width == canvasWidth || height == canvasHeight {
		return "", false
	}
	return fmt.Sprintf("%d,%d,%d,%d", x, y, width, height), true
}

// PercentRegion formats a stored region as an Image API 'pct:' region.
func PercentRegion(region [4]float64) string {
	values := make([]string, 0, len(region))
	for _, value := range region {
		values = append(values, strconv.FormatFloat(value, 'f', -1, 64))
	}
	return "pct:" + strings.Join(values, ",")
}

type displaySpace struct {
	canvasWidth     int
	canvasHeight    int
	displayedWidth  float64
	displayedHeight float64
}

// A canvas without dimensions is assumed to match the displayed image.
func (d displaySpace) scale() (float64, float64) {
	sx, sy := 1.0, 1.0
	if d.canvasWidth > 0 {
		sx = d.displayedWidth / float64(d.canvasWidth)
	}
	if d.canvasHeight > 0 {
		sy = d.displayedHeight / float64(d.canvasHeight)
	}
	return sx, sy
}

func (d displaySpace) scaleRect(rect domain.Rect) domain.Rect {
	sx, sy := d.scale()
	return domain.Rect{X: rect.X * sx, Y: rect.Y * sy, W: rect.W * sx, H: rect.H * sy}
}

// fragmentRect handles the value of an 'xywh' media fragment: 'x,y,w,h', 'pixel:x,y,w,h', 'pct:x,y,w,h' or
// 'percent:x,y,w,h'.
func (Resolver) fragmentRect(fragment string, d displaySpace) (domain.Rect, error) {
	if fragment == "" {
		return domain.Rect{W: d.displayedWidth, H: d.displayedHeight}, nil
	}

	percent := false
	for _, prefix := range []string{"pct:", "percent:"} {
		if value, ok := strings.CutPrefix(fragment, prefix); ok {
			fragment, percent = value, true
		}
	}
	fragment = strings.TrimPrefix(fragment, "pixel:")

	values, err := parseXYWH(fragment)
	if err != nil {
		return domain.Rect{}, newClientError(fmt.Errorf("invalid xywh fragment '%s': %w", fragment, err))
	}
	if percent {
		return domain.Rect{
			X: values[0] / 100 * d.displayedWidth,
			Y: values[1] / 100 * d.displayedHeight,
			W: values[2] / 100 * d.displayedWidth,
			H: values[3] / 100 * d.displayedHeight,
		}, nil
	}
	return d.scaleRect(domain.Rect{X: values[0], Y: values[1], W: values[2], H: values[3]}), nil
}

func (r Resolver) regionRect(region string, d displaySpace) (domain.Rect, error) {
	if pct, ok := strings.CutPrefix(region, "pct:"); ok {
		return r.fragmentRect("pct:"+pct, d)
	}
	rect, err := r.NormalizeRegion(region, d.canvasWidth, d.canvasHeight)
	if err != nil {
		return domain.Rect{}, err
	}
	if region == RegionFull || region == "" {
		return domain.Rect{W: d.displayedWidth, H: d.displayedHeight}, nil
	}
	return d.scaleRect(rect), nil
}

func parseXYWH(payload string) ([4]float64, error) {
	var result [4]float64
	fragments := strings.Split(payload, ",")
	if len(fragments) != len(result) {
		return result, fmt.Errorf("expected 4 values, got %d", len(fragments))
	}
	for i, fragment := range fragments {
		value, err := strconv.ParseFloat(strings.TrimSpace(fragment), 64)
		if err != nil {
			return result, fmt.Errorf("fail to parse '%s': %w", fragment, err)
		}
		result[i] = value
	}
	return result, nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
