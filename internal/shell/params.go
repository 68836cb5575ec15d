package shell

import (
	"fmt"
	"slices"
	"strings"

	"github.com/abiosoft/ishell"
)

var (
	qualities = []string{"default", "color", "gray", "bitonal"}
	formats   = []string{"jpg", "png", "gif", "webp", "tif"}
)

func regionCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "region",
		Help: "set the region: full, square, x,y,w,h or pct:x,y,w,h",
		Func: paramFunc(ctx.setRegion),
	}
}

func (ctx *ShellCtxt) setRegion(args []string) error {
	value, err := single(args)
	if err != nil {
		return err
	}
	canvas, err := ctx.viewer.Navigator.SelectCanvas(ctx.session.Document, ctx.state.Canvas)
	if err != nil {
		return err
	}
	if _, err := ctx.viewer.Resolver.NormalizeRegion(value, canvas.Width, canvas.Height); err != nil {
		return err
	}
	ctx.state.Region = value
	return nil
}

func sizeCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "size",
		Help: "set the final size: max, w, ,h, w,h, pct:n",
		Func: paramFunc(func(args []string) error {
			value, err := single(args)
			if err != nil {
				return err
			}
			ctx.state.FinalSize = value
			return nil
		}),
	}
}

func previewCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "preview",
		Help: "'on' to request the preview size, 'off' for the final size, or set the preview size",
		Func: paramFunc(ctx.setPreview),
	}
}

func (ctx *ShellCtxt) setPreview(args []string) error {
	value, err := single(args)
	if err != nil {
		return err
	}
	switch value {
	case "on":
		ctx.state.Preview = true
	case "off":
		ctx.state.Preview = false
	default:
		ctx.state.PreviewSize = value
	}
	return nil
}

func rotationCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "rotation",
		Help: "set the rotation: 0, 90, 180 or 270",
		Func: paramFunc(ctx.setRotation),
	}
}

func (ctx *ShellCtxt) setRotation(args []string) error {
	values, err := parseInts(args, 1)
	if err != nil {
		return err
	}
	if !slices.Contains([]int{0, 90, 180, 270}, values[0]) {
		return fmt.Errorf("invalid rotation '%d'", values[0])
	}
	ctx.state.Rotation = values[0]
	return nil
}

func qualityCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "quality",
		Help: "set the quality: " + strings.Join(qualities, ", "),
		Func: paramFunc(func(args []string) error {
			value, err := oneOf(args, qualities)
			if err != nil {
				return err
			}
			ctx.state.Quality = value
			return nil
		}),
	}
}

func formatCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "format",
		Help: "set the format: " + strings.Join(formats, ", "),
		Func: paramFunc(func(args []string) error {
			value, err := oneOf(args, formats)
			if err != nil {
				return err
			}
			ctx.state.Format = value
			return nil
		}),
	}
}

func annotationsCmd(ctx *ShellCtxt) *ishell.Cmd {
	return &ishell.Cmd{
		Name: "annotations",
		Help: "show or hide the annotations: on or off",
		Func: paramFunc(func(args []string) error {
			value, err := oneOf(args, []string{"on", "off"})
			if err != nil {
				return err
			}
			ctx.state.HideAnnotations = value == "off"
			return nil
		}),
	}
}

func paramFunc(fn func([]string) error) func(*ishell.Context) {
	return func(c *ishell.Context) {
		if err := fn(c.Args); err != nil {
			c.Err(err)
		}
	}
}

func single(args []string) (string, error) {
	if len(args) == 0 {
		return "", errNoArgument
	}
	if len(args) > 1 {
		return "", fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	return args[0], nil
}

func oneOf(args []string, accepted []string) (string, error) {
	value, err := single(args)
	if err != nil {
		return "", err
	}
	if !slices.Contains(accepted, value) {
		return "", fmt.Errorf("invalid value '%s', expected one of %s", value, strings.Join(accepted, ", "))
	}
	return value, nil
}
