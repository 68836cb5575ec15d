package service

import (
	"context"
	"errors"
	"fmt"
	"image"

	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
	"golang.org/x/sync/errgroup"
)

const defaultStackConcurrency = 4

// StackEntry is an alternative of a Choice body resolved to an image URL.
type StackEntry struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	URL    string `json:"url"`
	Static bool   `json:"static"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// StackRequest selects the alternatives to resolve. A nil RoI uses the state region.
type StackRequest struct {
	Canvas int         `json:"canvas"`
	RoI    *int        `json:"roi,omitempty"`
	State  RenderState `json:"state"`
	Probe  bool        `json:"probe,omitempty"`
}

// ChoiceStack resolves the image URL of every alternative of the canvas Choice body. With Probe set the image
// dimensions are fetched concurrently.
func (v *Viewer) ChoiceStack(ctx context.Context, s *Session, req StackRequest) (_ []StackEntry, err error) {
	span, ctx := startSpan(ctx, "Viewer.ChoiceStack")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	canvas, err := v.Navigator.SelectCanvas(s.Document, req.Canvas)
	if err != nil {
		return nil, err
	}
	active, err := v.Navigator.SelectActiveBody(canvas, nil)
	if err != nil {
		return nil, err
	}
	if !active.ChoiceEnabled {
		return nil, newClientError(fmt.Errorf("canvas %d has no choice body", req.Canvas))
	}

	params := req.State.Params()
	if req.RoI != nil {
		roi, err := s.Regions.Get(req.Canvas, *req.RoI)
		if err != nil {
			return nil, err
		}
		params.Region = PercentRegion(roi.Region)
	}

	entries := make([]StackEntry, 0, len(active.Choices))
	for i := range active.Choices {
		index := i
		alternative, err := v.Navigator.SelectActiveBody(canvas, &index)
		if err != nil {
			return nil, err
		}
		entry := StackEntry{Index: i, Label: v.Navigator.Label(alternative.Resource.Label, s.Language)}
		if serviceURL, ok := v.Navigator.ExtractImageServiceURL(alternative.Resource); ok {
			entry.URL, err = v.Resolver.BuildImageURL(serviceURL, params)
			if err != nil {
				return nil, err
			}
		} else {
			entry.URL, entry.Static = alternative.Resource.ID, true
		}
		entries = append(entries, entry)
	}

	if !req.Probe {
		return entries, nil
	}

	limit := v.StackConcurrency
	if limit <= 0 {
		limit = defaultStackConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range entries {
		entry := &entries[i]
		g.Go(func() error {
			width, height, err := v.Fetcher.ImageSize(gctx, entry.URL)
			if err != nil {
				if errors.Is(err, image.ErrFormat) {
					v.Logger.Warn().Err(err).Str("url", entry.URL).Msg("Unable to decode the image")
					return nil
				}
				return fmt.Errorf("fail to probe alternative %d: %w", entry.Index, err)
			}
			entry.Width, entry.Height = width, height
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}
