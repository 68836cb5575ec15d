package shell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/nitro/iiifviewer/internal/domain"
	"github.com/nitro/iiifviewer/internal/service"
)

func selectCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "select",
		Help: "select a rectangle of the canvas: x y w h, in canvas pixels",
		Func: func(c *ishell.Context) {
			percent, err := ctx.selectRegion(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("selected %s\n", service.PercentRegion(percent))
		},
	}
}

func (ctx *ShellCtxt) selectRegion(args []string) ([4]float64, error) {
	values, err := parseFloats(args, 4)
	if err != nil {
		return [4]float64{}, err
	}
	canvas, err := ctx.viewer.Navigator.SelectCanvas(ctx.session.Document, ctx.state.Canvas)
	if err != nil {
		return [4]float64{}, err
	}
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return [4]float64{}, fmt.Errorf("canvas %d has no dimensions", ctx.state.Canvas)
	}
	rect := domain.Rect{X: values[0], Y: values[1], W: values[2], H: values[3]}
	if rect.W <= 0 || rect.H <= 0 {
		return [4]float64{}, errors.New("the region must have a positive width and height")
	}
	ctx.selection = &rect
	return ctx.viewer.Resolver.RegionToPercent(rect, canvas.Width, canvas.Height), nil
}

func saveCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "save",
		Help: "save the selection as a region of interest, the arguments are the comment",
		Func: func(c *ishell.Context) {
			saved, err := ctx.saveSelection(strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("roi %d\t%s\n", saved.Index, saved.URL)
		},
	}
}

func (ctx *ShellCtxt) saveSelection(comment string) (service.SavedRegion, error) {
	if ctx.selection == nil {
		return service.SavedRegion{}, errors.New("nothing selected, use 'select' first")
	}
	saved, err := ctx.viewer.SaveRegion(ctx.session, ctx.state.Canvas, *ctx.selection, comment, ctx.state)
	if err != nil {
		return service.SavedRegion{}, err
	}
	ctx.selection = nil
	return saved, nil
}

func roisCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "rois",
		Help: "list the regions of interest of the canvas",
		Func: func(c *ishell.Context) {
			regions, err := ctx.viewer.Regions(ctx.session, ctx.state.Canvas, ctx.state)
			if err != nil {
				c.Err(err)
				return
			}
			for _, region := range regions {
				c.Printf("[%d]\t%s\t%s\t%s\n", region.Index, service.PercentRegion(region.Region), region.Comment, region.URL)
			}
		},
	}
}

func roiURLCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "roi-url",
		Help: "print the image url of a region of interest",
		Func: func(c *ishell.Context) {
			values, err := parseInts(c.Args, 1)
			if err != nil {
				c.Err(err)
				return
			}
			u, err := ctx.viewer.RegionURL(ctx.session, ctx.state.Canvas, values[0], ctx.state)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(u)
		},
	}
}

func zoomCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "zoom",
		Help: "print the image url of the visible area: left right top bottom, in canvas pixels",
		Func: func(c *ishell.Context) {
			values, err := parseFloats(c.Args, 4)
			if err != nil {
				c.Err(err)
				return
			}
			viewport := service.Viewport{Left: values[0], Right: values[1], Top: values[2], Bottom: values[3]}
			u, zoomed, err := ctx.viewer.Zoom(ctx.session, ctx.state.Canvas, viewport, ctx.state)
			if err != nil {
				c.Err(err)
				return
			}
			if !zoomed {
				c.Println("the viewport covers the canvas")
				return
			}
			c.Println(u)
		},
	}
}

func stackCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "stack",
		Help: "print the url of every alternative of the choice body: [roi] [probe]",
		Func: func(c *ishell.Context) {
			req, err := ctx.stackRequest(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			entries, err := ctx.viewer.ChoiceStack(ctx.ctx, ctx.session, req)
			if err != nil {
				c.Err(err)
				return
			}
			for _, entry := range entries {
				c.Printf("[%d]\t%s\t%s", entry.Index, entry.Label, entry.URL)
				if entry.Width > 0 {
					c.Printf("\t%dx%d", entry.Width, entry.Height)
				}
				c.Println()
			}
		},
	}
}

func (ctx *ShellCtxt) stackRequest(args []string) (service.StackRequest, error) {
	req := service.StackRequest{Canvas: ctx.state.Canvas, State: ctx.state}
	for _, arg := range args {
		if arg == "probe" {
			req.Probe = true
			continue
		}
		roi, err := strconv.Atoi(arg)
		if err != nil {
			return service.StackRequest{}, errors.New("expected a region of interest index or 'probe'")
		}
		req.RoI = &roi
	}
	return req, nil
}
