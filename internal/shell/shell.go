package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/nitro/iiifviewer/internal/domain"
	"github.com/nitro/iiifviewer/internal/service"
)

// ShellCtxt is the state of the interactive viewer: the session and the current value of every control.
type ShellCtxt struct {
	ctx       context.Context
	viewer    *service.Viewer
	session   *service.Session
	state     service.RenderState
	selection *domain.Rect
}

// NewShellCtxt creates the shell state of an opened session.
func NewShellCtxt(ctx context.Context, viewer *service.Viewer, session *service.Session) *ShellCtxt {
	return &ShellCtxt{ctx: ctx, viewer: viewer, session: session, state: service.RenderState{}.WithDefaults()}
}

func (ctx *ShellCtxt) prompt() string {
	if ctx.session.Pending() {
		return "[collection]>"
	}
	return fmt.Sprintf("[canvas %d/%d]>", ctx.state.Canvas, len(ctx.session.Document.Manifest.Items)-1)
}

// RunShell starts the interactive loop. When args are given they are run as a single command instead.
func RunShell(ctx *ShellCtxt, args []string) error {
	shell := ishell.New()
	shell.SetPrompt(ctx.prompt())

	for _, cmd := range []*ishell.Cmd{
		infoCmd(ctx),
		lsCmd(ctx),
		memberCmd(ctx),
		describeCmd(ctx),
		canvasCmd(ctx),
		choiceCmd(ctx),
		renderCmd(ctx),
		overlayCmd(ctx),
		regionCmd(ctx),
		sizeCmd(ctx),
		previewCmd(ctx),
		rotationCmd(ctx),
		qualityCmd(ctx),
		formatCmd(ctx),
		annotationsCmd(ctx),
		selectCmd(ctx),
		saveCmd(ctx),
		roisCmd(ctx),
		roiURLCmd(ctx),
		zoomCmd(ctx),
		stackCmd(ctx),
	} {
		shell.AddCmd(cmd)
	}

	if len(args) > 0 {
		return shell.Process(args...)
	}
	shell.Println("IIIF viewer, type 'help' for the commands")
	shell.Run()
	return nil
}

func parseInts(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	result := make([]int, 0, n)
	for _, arg := range args {
		value, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid integer '%s'", arg)
		}
		result = append(result, value)
	}
	return result, nil
}

func parseFloats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	result := make([]float64, 0, n)
	for _, arg := range args {
		value, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number '%s'", arg)
		}
		result = append(result, value)
	}
	return result, nil
}

var errNoArgument = errors.New("missing argument")
