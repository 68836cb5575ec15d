package shell

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/nitro/iiifviewer/internal/service"
)

func infoCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "info",
		Help: "show the loaded document",
		Func: func(c *ishell.Context) {
			summary, err := ctx.viewer.Summary(ctx.session)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%s\t%s\n", summary.Type, summary.Label)
			c.Printf("url\t%s\n", ctx.session.URL)
			if ctx.session.ManifestURL != "" && ctx.session.ManifestURL != ctx.session.URL {
				c.Printf("manifest\t%s\n", ctx.session.ManifestURL)
			}
			c.Printf("language\t%s\n", ctx.session.Language)
		},
	}
}

func lsCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "ls",
		Help: "list the canvases, or the members of a collection",
		Func: func(c *ishell.Context) {
			summary, err := ctx.viewer.Summary(ctx.session)
			if err != nil {
				c.Err(err)
				return
			}
			for _, member := range summary.Members {
				c.Printf("[%d]\t%s\t%s\n", member.Index, member.Type, member.Label)
			}
			for _, canvas := range summary.Canvases {
				c.Printf("[%d]\t%dx%d\t%s", canvas.Index, canvas.Width, canvas.Height, canvas.Label)
				if canvas.Choices > 0 {
					c.Printf("\t%d choices", canvas.Choices)
				}
				if canvas.Regions > 0 {
					c.Printf("\t%d rois", canvas.Regions)
				}
				c.Println()
			}
		},
	}
}

func memberCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "member",
		Help: "open a member of the collection",
		Func: func(c *ishell.Context) {
			values, err := parseInts(c.Args, 1)
			if err != nil {
				c.Err(err)
				return
			}
			if err := ctx.viewer.SelectMember(ctx.ctx, ctx.session, values[0]); err != nil {
				c.Err(err)
				return
			}
			ctx.state.Canvas, ctx.state.Choice, ctx.selection = 0, nil, nil
			c.SetPrompt(ctx.prompt())
		},
	}
}

func describeCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "describe",
		Help: "show the manifest information panels",
		Func: func(c *ishell.Context) {
			description, err := ctx.viewer.Describe(ctx.session)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(description.Label)
			for _, panel := range description.Panels {
				c.Printf("\n%s\n", panel.Title)
				for _, row := range panel.Rows {
					c.Printf("  %s:\t%s\n", row.Label, row.Value)
				}
			}
		},
	}
}

func canvasCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "canvas",
		Help: "select the canvas",
		Func: func(c *ishell.Context) {
			if err := ctx.setCanvas(c.Args); err != nil {
				c.Err(err)
				return
			}
			c.SetPrompt(ctx.prompt())
		},
	}
}

func (ctx *ShellCtxt) setCanvas(args []string) error {
	values, err := parseInts(args, 1)
	if err != nil {
		return err
	}
	if _, err := ctx.viewer.Navigator.SelectCanvas(ctx.session.Document, values[0]); err != nil {
		return err
	}
	ctx.state.Canvas, ctx.state.Choice, ctx.selection = values[0], nil, nil
	return nil
}

func choiceCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "choice",
		Help: "select the alternative of a choice body, 'none' for the default one",
		Func: func(c *ishell.Context) {
			if err := ctx.setChoice(c.Args); err != nil {
				c.Err(err)
			}
		},
	}
}

func (ctx *ShellCtxt) setChoice(args []string) error {
	if len(args) == 1 && args[0] == "none" {
		ctx.state.Choice = nil
		return nil
	}
	values, err := parseInts(args, 1)
	if err != nil {
		return err
	}
	canvas, err := ctx.viewer.Navigator.SelectCanvas(ctx.session.Document, ctx.state.Canvas)
	if err != nil {
		return err
	}
	active, err := ctx.viewer.Navigator.SelectActiveBody(canvas, &values[0])
	if err != nil {
		return err
	}
	if !active.ChoiceEnabled {
		return errors.New("the canvas has no choice body")
	}
	ctx.state.Choice = &values[0]
	return nil
}

func renderCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "render",
		Help: "resolve the image and the annotations of the canvas",
		Func: func(c *ishell.Context) {
			result, err := ctx.viewer.Render(ctx.ctx, ctx.session, ctx.state)
			if err != nil {
				c.Err(err)
				return
			}
			c.Print(formatRender(result))
		},
	}
}

func formatRender(result service.RenderResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "canvas %d\t%s\t%dx%d\n", result.Canvas, result.CanvasLabel, result.CanvasWidth, result.CanvasHeight)
	fmt.Fprintf(&b, "image\t%s (%dx%d)\n", result.ImageURL, result.ImageWidth, result.ImageHeight)
	if result.Static {
		b.WriteString("static image, the image api controls are disabled\n")
	}
	for _, choice := range result.Choices {
		marker := " "
		if choice.Index == result.ChoiceIndex {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s choice [%d]\t%s\n", marker, choice.Index, choice.Label)
	}
	for _, annotation := range result.Annotations {
		fmt.Fprintf(&b, "(%d) %s\t%s\n", annotation.Number, annotation.Level, annotation.Text)
	}
	for _, overlay := range result.Overlays {
		r := overlay.Rect
		if r.Point {
			fmt.Fprintf(&b, "(%d) point %.0f,%.0f\n", overlay.Number, r.X, r.Y)
			continue
		}
		fmt.Fprintf(&b, "(%d) rect %.0f,%.0f,%.0f,%.0f\n", overlay.Number, r.X, r.Y, r.W, r.H)
	}
	if result.Attribution != "" {
		fmt.Fprintf(&b, "%s\n", result.Attribution)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", warning)
	}
	return b.String()
}

func overlayCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "overlay",
		Help: "write the canvas image with its annotations to a png file",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(errors.New("missing destination file"))
				return
			}
			payload, err := ctx.viewer.RenderOverlay(ctx.ctx, ctx.session, ctx.state)
			if err != nil {
				c.Err(err)
				return
			}
			if err := os.WriteFile(c.Args[0], payload, 0o644); err != nil {
				c.Err(fmt.Errorf("fail to write the file: %w", err))
				return
			}
			c.Printf("written %s\n", c.Args[0])
		},
	}
}
