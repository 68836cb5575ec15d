package service

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/nitro/iiifviewer/internal/domain"
)

func TestResolverBuildImageURL(t *testing.T) {
	Convey("BuildImageURL()", t, func() {
		var r Resolver

		Convey("builds the default URL", func() {
			u, err := r.BuildImageURL("https://x/img", DefaultImageParams())
			So(err, ShouldBeNil)
			So(u, ShouldEqual, "https://x/img/full/max/0/default.jpg")
		})

		Convey("trims the trailing slash of the service", func() {
			u, err := r.BuildImageURL("https://x/img/", ImageParams{
				Region: "10,20,30,40", Size: "!200,200", Rotation: 180, Quality: "bitonal", Format: "png",
			})
			So(err, ShouldBeNil)
			So(u, ShouldEqual, "https://x/img/10,20,30,40/!200,200/180/bitonal.png")
		})

		Convey("fails without a service", func() {
			_, err := r.BuildImageURL("", DefaultImageParams())
			So(errors.Is(err, ErrNoImageService), ShouldBeTrue)
		})
	})
}

func TestResolverResourceURL(t *testing.T) {
	Convey("ResourceURL()", t, func() {
		var r Resolver
		resource := domain.ContentResource{ID: "https://x/static.jpg"}

		Convey("returns the resource id without a service", func() {
			u, err := r.ResourceURL("", resource, DefaultImageParams())
			So(err, ShouldBeNil)
			So(u, ShouldEqual, "https://x/static.jpg")
		})

		Convey("refuses custom parameters without a service", func() {
			params := DefaultImageParams()
			params.Rotation = 90
			_, err := r.ResourceURL("", resource, params)
			So(errors.Is(err, ErrNoImageService), ShouldBeTrue)
		})

		Convey("uses the service when there is one", func() {
			u, err := r.ResourceURL("https://x/img", resource, DefaultImageParams())
			So(err, ShouldBeNil)
			So(u, ShouldEqual, "https://x/img/full/max/0/default.jpg")
		})
	})
}

func TestResolverNormalizeRegion(t *testing.T) {
	Convey("NormalizeRegion()", t, func() {
		var r Resolver

		Convey("covers the canvas with full", func() {
			rect, err := r.NormalizeRegion(RegionFull, 1000, 500)
			So(err, ShouldBeNil)
			So(rect, ShouldResemble, domain.Rect{W: 1000, H: 500})
		})

		Convey("centers the square region", func() {
			rect, err := r.NormalizeRegion(RegionSquare, 1000, 500)
			So(err, ShouldBeNil)
			So(rect, ShouldResemble, domain.Rect{X: 250, W: 500, H: 500})
		})

		Convey("scales the percentages", func() {
			rect, err := r.NormalizeRegion("pct:10,20,50,50", 1000, 500)
			So(err, ShouldBeNil)
			So(rect, ShouldResemble, domain.Rect{X: 100, Y: 100, W: 500, H: 250})
		})

		Convey("keeps the absolute values", func() {
			rect, err := r.NormalizeRegion("5,6,7,8", 1000, 500)
			So(err, ShouldBeNil)
			So(rect, ShouldResemble, domain.Rect{X: 5, Y: 6, W: 7, H: 8})
		})

		Convey("fails with malformed regions", func() {
			for _, region := range []string{"1,2,3", "pct:a,b,c,d", "1,2,3,4,5"} {
				_, err := r.NormalizeRegion(region, 1000, 500)
				So(errors.Is(err, ErrClient), ShouldBeTrue)
			}
		})
	})
}

func TestResolverResolveSelectorToRect(t *testing.T) {
	Convey("ResolveSelectorToRect()", t, func() {
		var r Resolver

		Convey("scales an xywh fragment to the displayed image", func() {
			rect, err := r.ResolveSelectorToRect(domain.NewFragmentTarget("https://x/canvas#xywh=10,10,50,50"), 100, 100, 200, 200)
			So(err, ShouldBeNil)
			So(rect, ShouldResemble, domain.Rect{X: 20, Y: 20, W: 100, H: 100})
		})

		Convey("accepts the pixel prefix", func() {
			rect, err := r.ResolveSelectorToRect(domain.NewFragmentTarget("https://x/canvas#xywh=pixel:10,10,50,50"), 100, 100, 50, 50)
			So(err, ShouldBeNil)
			So(rect, ShouldResemble, domain.Rect{X: 5, Y: 5, W: 25, H: 25})
		})

		Convey("uses the displayed size for percentages", func() {
			for _, fragment := range []string{"pct:10,10,50,50", "percent:10,10,50,50"} {
				rect, err := r.ResolveSelectorToRect(domain.NewFragmentTarget("https://x/canvas#xywh="+fragment), 1000, 1000, 200, 100)
				So(err, ShouldBeNil)
				So(rect, ShouldResemble, domain.Rect{X: 20, Y: 10, W: 100, H: 50})
			}
		})

		Convey("covers the displayed image without a fragment", func() {
			rect, err := r.ResolveSelectorToRect(domain.NewFragmentTarget("https://x/canvas"), 100, 100, 300, 200)
			So(err, ShouldBeNil)
			So(rect, ShouldResemble, domain.Rect{W: 300, H: 200})
		})

		Convey("scales a point", func() {
			target := domain.SpecificResourceTarget{Source: "https://x/canvas", Selector: domain.PointSelector{X: 40, Y: 30}}
			rect, err := r.ResolveSelectorToRect(target, 100, 100, 50, 50)
			So(err, ShouldBeNil)
			So(rect, ShouldResemble, domain.Rect{X: 20, Y: 15, Point: true})
		})

		Convey("handles a fragment selector", func() {
			target := domain.SpecificResourceTarget{
				Source:   "https://x/canvas",
				Selector: domain.FragmentSelector{Value: "xywh=10,10,50,50"},
			}
			rect, err := r.ResolveSelectorToRect(target, 100, 100, 100, 100)
			So(err, ShouldBeNil)
			So(rect, ShouldResemble, domain.Rect{X: 10, Y: 10, W: 50, H: 50})

			target.Selector = domain.FragmentSelector{Value: "t=10,20"}
			_, err = r.ResolveSelectorToRect(target, 100, 100, 100, 100)
			So(errors.Is(err, ErrUnsupportedSelectorType), ShouldBeTrue)
		})

		Convey("handles an image api selector", func() {
			target := domain.SpecificResourceTarget{
				Source:   "https://x/img",
				Selector: domain.ImageAPISelector{Type: domain.SelectorTypeImageAPI, Region: "100,100,200,200"},
			}
			rect, err := r.ResolveSelectorToRect(target, 400, 400, 200, 200)
			So(err, ShouldBeNil)
			So(rect, ShouldResemble, domain.Rect{X: 50, Y: 50, W: 100, H: 100})
		})

		Convey("fails with an unknown selector", func() {
			target := domain.SpecificResourceTarget{Source: "https://x/canvas", Selector: domain.UnknownSelector{Type: "SvgSelector"}}
			_, err := r.ResolveSelectorToRect(target, 100, 100, 100, 100)
			So(errors.Is(err, ErrUnsupportedSelectorType), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "SvgSelector")
		})

		Convey("fails without a target", func() {
			_, err := r.ResolveSelectorToRect(nil, 100, 100, 100, 100)
			So(errors.Is(err, ErrUnsupportedSelectorType), ShouldBeTrue)
		})
	})
}

func TestResolverRegionToPercent(t *testing.T) {
	Convey("RegionToPercent()", t, func() {
		var r Resolver

		Convey("rounds to two decimals", func() {
			percent := r.RegionToPercent(domain.Rect{X: 1, Y: 2, W: 3, H: 4}, 3, 7)
			So(percent, ShouldResemble, [4]float64{33.33, 28.57, 100, 57.14})
		})

		Convey("round trips through a pct region", func() {
			percent := r.RegionToPercent(domain.Rect{X: 100, Y: 50, W: 200, H: 100}, 1000, 500)
			So(PercentRegion(percent), ShouldEqual, "pct:10,10,20,20")

			rect, err := r.NormalizeRegion(PercentRegion(percent), 1000, 500)
			So(err, ShouldBeNil)
			So(rect, ShouldResemble, domain.Rect{X: 100, Y: 50, W: 200, H: 100})
		})

		Convey("round trips every percentage region", func() {
			tests := []struct {
				region [4]float64
				width  int
				height int
			}{
				{region: [4]float64{0, 0, 100, 100}, width: 1001, height: 777},
				{region: [4]float64{33.33, 66.67, 0.01, 12.5}, width: 999, height: 333},
				{region: [4]float64{0.01, 99.99, 50, 0.5}, width: 7, height: 13},
				{region: [4]float64{12.34, 56.78, 43.21, 8.76}, width: 4097, height: 3},
				{region: [4]float64{99.99, 0.01, 0.01, 99.99}, width: 1, height: 1},
			}
			for _, tt := range tests {
				rect, err := r.NormalizeRegion(PercentRegion(tt.region), tt.width, tt.height)
				So(err, ShouldBeNil)
				So(r.RegionToPercent(rect, tt.width, tt.height), ShouldResemble, tt.region)
			}
		})

		Convey("keeps the decimals of the pct region", func() {
			So(PercentRegion([4]float64{12.5, 0, 33.33, 100}), ShouldEqual, "pct:12.5,0,33.33,100")
		})
	})
}

func TestResolverCropRect(t *testing.T) {
	Convey("CropRect()", t, func() {
		var r Resolver
		region := domain.Rect{X: 500, Y: 250, W: 500, H: 250}

		Convey("moves and scales a rect inside the region", func() {
			rect, ok := r.CropRect(domain.Rect{X: 600, Y: 300, W: 100, H: 50}, region, 250, 125)
			So(ok, ShouldBeTrue)
			So(rect, ShouldResemble, domain.Rect{X: 50, Y: 25, W: 50, H: 25})
		})

		Convey("keeps a rect crossing the region border", func() {
			rect, ok := r.CropRect(domain.Rect{X: 400, Y: 200, W: 200, H: 100}, region, 500, 250)
			So(ok, ShouldBeTrue)
			So(rect, ShouldResemble, domain.Rect{X: -100, Y: -50, W: 200, H: 100})
		})

		Convey("drops a rect outside the region", func() {
			_, ok := r.CropRect(domain.Rect{X: 100, Y: 100, W: 200, H: 100}, region, 500, 250)
			So(ok, ShouldBeFalse)
		})

		Convey("moves a point inside the region", func() {
			rect, ok := r.CropRect(domain.Rect{X: 500, Y: 250, Point: true}, region, 250, 125)
			So(ok, ShouldBeTrue)
			So(rect, ShouldResemble, domain.Rect{Point: true})
		})

		Convey("drops a point on the far edge", func() {
			_, ok := r.CropRect(domain.Rect{X: 1000, Y: 300, Point: true}, region, 250, 125)
			So(ok, ShouldBeFalse)
		})

		Convey("drops everything with an empty region", func() {
			_, ok := r.CropRect(domain.Rect{X: 1, Y: 1, W: 1, H: 1}, domain.Rect{}, 250, 125)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestResolverViewportRegion(t *testing.T) {
	Convey("ViewportRegion()", t, func() {
		var r Resolver

		Convey("converts a zoomed viewport", func() {
			region, ok := r.ViewportRegion(Viewport{Left: 10.5, Right: 110.5, Top: 20, Bottom: 70}, 1000, 500)
			So(ok, ShouldBeTrue)
			So(region, ShouldEqual, "11,20,100,50")
		})

		Convey("ignores a viewport spanning the canvas width", func() {
			_, ok := r.ViewportRegion(Viewport{Left: 0, Right: 1000, Top: 20, Bottom: 70}, 1000, 500)
			So(ok, ShouldBeFalse)
		})

		Convey("ignores a viewport spanning the canvas height", func() {
			_, ok := r.ViewportRegion(Viewport{Left: 10, Right: 20, Top: 0, Bottom: 500}, 1000, 500)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestRegionStore(t *testing.T) {
	Convey("RegionStore", t, func() {
		var (
			r     Resolver
			store RegionStore
		)

		Convey("records regions per canvas", func() {
			So(store.Record(0, [4]float64{10, 10, 20, 20}, "a"), ShouldEqual, 0)
			So(store.Record(0, [4]float64{50, 50, 10, 10}, "b"), ShouldEqual, 1)
			So(store.Record(3, [4]float64{0, 0, 100, 100}, ""), ShouldEqual, 0)
			So(store.List(0), ShouldHaveLength, 2)
			So(store.List(1), ShouldBeEmpty)

			Convey("builds the URL of every region", func() {
				first, err := r.RegionOfInterestURL(store, 0, 0, "https://x/img", DefaultImageParams())
				So(err, ShouldBeNil)
				So(first, ShouldEqual, "https://x/img/pct:10,10,20,20/max/0/default.jpg")

				second, err := r.RegionOfInterestURL(store, 0, 1, "https://x/img", DefaultImageParams())
				So(err, ShouldBeNil)
				So(second, ShouldEqual, "https://x/img/pct:50,50,10,10/max/0/default.jpg")
			})

			Convey("fails with unknown regions", func() {
				_, err := r.RegionOfInterestURL(store, 0, 2, "https://x/img", DefaultImageParams())
				So(errors.Is(err, ErrNoSuchRegion), ShouldBeTrue)

				_, err = store.Get(1, 0)
				So(errors.Is(err, ErrNoSuchRegion), ShouldBeTrue)

				_, err = store.Get(0, -1)
				So(errors.Is(err, ErrNoSuchRegion), ShouldBeTrue)
			})
		})
	})
}
