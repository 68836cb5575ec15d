package service

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/nitro/iiifviewer/internal/domain"
)

// Defaults of the render state.
const (
	DefaultLanguage    = "en"
	DefaultPreviewSize = "400,"
)

type viewerFetcher interface {
	FetchDocument(ctx context.Context, rawURL string) (domain.Document, []byte, error)
	FetchImage(ctx context.Context, rawURL string) ([]byte, error)
	ImageSize(ctx context.Context, rawURL string) (int, int, error)
}

// RenderState is the state of the viewer controls.
type RenderState struct {
	Canvas          int    `json:"canvas"`
	Choice          *int   `json:"choice,omitempty"`
	Region          string `json:"region,omitempty"`
	PreviewSize     string `json:"previewSize,omitempty"`
	FinalSize       string `json:"finalSize,omitempty"`
	Rotation        int    `json:"rotation,omitempty"`
	Quality         string `json:"quality,omitempty"`
	Format          string `json:"format,omitempty"`
	HideAnnotations bool   `json:"hideAnnotations,omitempty"`
	Preview         bool   `json:"preview,omitempty"`
}

// WithDefaults fills the empty controls.
func (rs RenderState) WithDefaults() RenderState {
	defaults := DefaultImageParams()
	if rs.Region == "" {
		rs.Region = defaults.Region
	}
	if rs.PreviewSize == "" {
		rs.PreviewSize = DefaultPreviewSize
	}
	if rs.FinalSize == "" {
		rs.FinalSize = defaults.Size
	}
	if rs.Quality == "" {
		rs.Quality = defaults.Quality
	}
	if rs.Format == "" {
		rs.Format = defaults.Format
	}
	return rs
}

// Params returns the Image API parameters of the state. The preview size is used when Preview is set.
func (rs RenderState) Params() ImageParams {
	rs = rs.WithDefaults()
	size := rs.FinalSize
	if rs.Preview {
		size = rs.PreviewSize
	}
	return ImageParams{
		Region:   rs.Region,
		Size:     size,
		Rotation: rs.Rotation,
		Quality:  rs.Quality,
		Format:   rs.Format,
	}
}

// Overlay is an annotation drawn over the displayed image, in displayed image pixels.
type Overlay struct {
	Number int         `json:"number"`
	Rect   domain.Rect `json:"rect"`
}

// Annotation is the textual description of an annotation.
type Annotation struct {
	Number int    `json:"number"`
	Level  string `json:"level"`
	Text   string `json:"text"`
	Target string `json:"target"`
}

// ChoiceOption is an alternative of a Choice body.
type ChoiceOption struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

// RenderResult is everything needed to display a canvas.
type RenderResult struct {
	Canvas       int    `json:"canvas"`
	CanvasLabel  string `json:"canvasLabel,omitempty"`
	CanvasWidth  int    `json:"canvasWidth"`
	CanvasHeight int    `json:"canvasHeight"`
	ImageURL     string `json:"imageUrl"`

	// Static is set when the resource has no image service; the Image API controls don't apply then.
	Static      bool `json:"static"`
	ImageWidth  int  `json:"imageWidth"`
	ImageHeight int  `json:"imageHeight"`

	Choices       []ChoiceOption `json:"choices,omitempty"`
	ChoiceIndex   int            `json:"choiceIndex"`
	ChoiceEnabled bool           `json:"choiceEnabled"`

	// Region is the requested region in canvas pixels.
	Region *domain.Rect `json:"region,omitempty"`

	Overlays             []Overlay    `json:"overlays"`
	Annotations          []Annotation `json:"annotations"`
	AnnotationsAvailable bool         `json:"annotationsAvailable"`

	CanvasMetadata []Row     `json:"canvasMetadata,omitempty"`
	Resource       []Row     `json:"resource,omitempty"`
	Attribution    string    `json:"attribution,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`
	Regions        []RoIView `json:"regions,omitempty"`
}

// RoIView is a stored region of interest with its URL.
type RoIView struct {
	Index   int        `json:"index"`
	Region  [4]float64 `json:"region"`
	Comment string     `json:"comment"`
	URL     string     `json:"url,omitempty"`
}

// SavedRegion is the result of saving a drawn region.
type SavedRegion struct {
	Canvas int        `json:"canvas"`
	Index  int        `json:"index"`
	Region [4]float64 `json:"region"`
	URL    string     `json:"url,omitempty"`
}

// Session is the state of a viewer: the loaded document and the regions of interest. A Collection leaves the
// session pending until a member is selected.
type Session struct {
	ID          string
	URL         string
	ManifestURL string
	Language    string
	Document    domain.Document
	Regions     RegionStore

	raw []byte
}

// Pending reports whether the session waits for a Collection member selection.
func (s *Session) Pending() bool {
	return s.Document.Collection != nil
}

// Viewer resolves what to display for a session. It is stateless; all the state lives in the Session.
type Viewer struct {
	Fetcher   viewerFetcher
	Navigator Navigator
	Resolver  Resolver
	Logger    zerolog.Logger

	// Interactive is set when an interactive front end drives the viewer.
	Interactive bool

	// StackConcurrency bounds the concurrent image probes of ChoiceStack.
	StackConcurrency int
}

// Init the viewer internal state.
func (v *Viewer) Init() error {
	if v.Fetcher == nil {
		return errors.New("internal/service/Viewer.Fetcher can't be nil")
	}
	v.Navigator.Logger = v.Logger
	return nil
}

// Open fetches the document at the URL into a new session.
func (v *Viewer) Open(ctx context.Context, rawURL, language string) (_ *Session, err error) {
	span, ctx := startSpan(ctx, "Viewer.Open")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	if !v.Interactive {
		v.Logger.Warn().Msg("The viewer is designed to be driven by an interactive front end")
	}
	if language == "" {
		language = DefaultLanguage
	}

	doc, raw, err := v.Fetcher.FetchDocument(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fail to fetch the document: %w", err)
	}
	s := &Session{URL: rawURL, Language: language, Document: doc, Regions: make(RegionStore), raw: raw}
	if !s.Pending() {
		s.ManifestURL = rawURL
	}
	return s, nil
}

// Members lists the members of a pending session.
func (v *Viewer) Members(s *Session) ([]CollectionMember, error) {
	return v.Navigator.CollectionMembers(s.Document, s.Language)
}

// SelectMember loads the Collection member at the given index. A member that is a Collection itself leaves the
// session pending.
func (v *Viewer) SelectMember(ctx context.Context, s *Session, index int) (err error) {
	span, ctx := startSpan(ctx, "Viewer.SelectMember")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	memberURL, err := v.Navigator.ResolveMember(s.Document, index)
	if err != nil {
		return err
	}
	doc, raw, err := v.Fetcher.FetchDocument(ctx, memberURL)
	if err != nil {
		return fmt.Errorf("fail to fetch the collection member: %w", err)
	}
	s.Document = doc
	s.raw = raw
	if !s.Pending() {
		s.ManifestURL = memberURL
	}
	return nil
}

// Render resolves the image and the overlays of the canvas selected by the state. A failure leaves the session
// untouched.
func (v *Viewer) Render(ctx context.Context, s *Session, state RenderState) (_ RenderResult, err error) {
	span, ctx := startSpan(ctx, "Viewer.Render")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	state = state.WithDefaults()
	canvas, err := v.Navigator.SelectCanvas(s.Document, state.Canvas)
	if err != nil {
		return RenderResult{}, err
	}
	active, err := v.Navigator.SelectActiveBody(canvas, state.Choice)
	if err != nil {
		return RenderResult{}, err
	}

	var warnings []string
	warn := func(lm domain.LanguageMap) {
		if len(lm) > 0 && !lm.Has(s.Language) && !lm.Has(languageNone) {
			warnings = append(warnings, fmt.Sprintf("language '%s' not available", s.Language))
		}
	}

	result := RenderResult{
		Canvas:        state.Canvas,
		CanvasLabel:   v.Navigator.Label(canvas.Label, s.Language),
		CanvasWidth:   canvas.Width,
		CanvasHeight:  canvas.Height,
		ChoiceIndex:   active.ChoiceIndex,
		ChoiceEnabled: active.ChoiceEnabled,
		Overlays:      []Overlay{},
		Annotations:   []Annotation{},
	}
	warn(canvas.Label)
	for i, choice := range active.Choices {
		result.Choices = append(result.Choices, ChoiceOption{Index: i, Label: v.Navigator.Label(choice, s.Language)})
	}

	params := state.Params()
	service, hasService := v.Navigator.ImageService(active.Resource)
	if hasService {
		if selector, ok := active.Selector.(domain.ImageAPISelector); ok && selector.Region != "" &&
			params.Region == RegionFull {
			params.Region = selector.Region
		}
	}
	result.ImageURL, err = v.Resolver.ResourceURL(service.ID, active.Resource, params)
	switch {
	case errors.Is(err, ErrNoImageService) && !hasService:
		result.ImageURL = active.Resource.ID
		warnings = append(warnings, "the resource has no image service, the image api controls are ignored")
	case err != nil:
		return RenderResult{}, err
	}
	result.Static = !hasService
	if hasService {
		region, err := v.Resolver.NormalizeRegion(params.Region, canvas.Width, canvas.Height)
		if err != nil {
			return RenderResult{}, err
		}
		result.Region = &region
	}

	result.ImageWidth, result.ImageHeight, err = v.Fetcher.ImageSize(ctx, result.ImageURL)
	if err != nil {
		if !errors.Is(err, image.ErrFormat) {
			return RenderResult{}, fmt.Errorf("fail to fetch the image: %w", err)
		}
		warnings = append(warnings, fmt.Sprintf("unable to decode '%s', assuming the canvas size", result.ImageURL))
		result.ImageWidth, result.ImageHeight = canvas.Width, canvas.Height
	}

	var servicePtr *domain.Service
	if hasService {
		servicePtr = &service
	}
	entries := v.Navigator.CollectAnnotations(active.Resource, canvas, servicePtr)
	result.AnnotationsAvailable = len(entries) > 0

	// A region picked by the user crops the canvas, a selector region is the resource view of the whole canvas.
	cropped := hasService && state.Region != RegionFull
	showOverlays := !state.HideAnnotations
	if showOverlays && len(entries) > 0 && hasService && params.Rotation%360 != 0 {
		showOverlays = false
		warnings = append(warnings, "the annotations are not drawn on a rotated image")
	}
	for _, entry := range entries {
		result.Annotations = append(result.Annotations, Annotation{
			Number: entry.Number,
			Level:  entry.Level,
			Text:   entry.Text,
			Target: describeTarget(entry.Target),
		})
		if !showOverlays {
			continue
		}

		var rect domain.Rect
		if cropped {
			rect, err = v.Resolver.ResolveSelectorToRect(
				entry.Target, canvas.Width, canvas.Height, canvas.Width, canvas.Height,
			)
		} else {
			rect, err = v.Resolver.ResolveSelectorToRect(
				entry.Target, canvas.Width, canvas.Height, result.ImageWidth, result.ImageHeight,
			)
		}
		if err != nil {
			return RenderResult{}, fmt.Errorf("fail to resolve annotation %d: %w", entry.Number, err)
		}
		if cropped {
			var visible bool
			rect, visible = v.Resolver.CropRect(rect, *result.Region, result.ImageWidth, result.ImageHeight)
			if !visible {
				continue
			}
		}
		result.Overlays = append(result.Overlays, Overlay{Number: entry.Number, Rect: rect})
	}

	if manifest := s.Document.Manifest; manifest.RequiredStatement != nil {
		result.Attribution = stripTags(v.Navigator.Label(manifest.RequiredStatement.Label, s.Language)) + ":" +
			stripTags(v.Navigator.Label(manifest.RequiredStatement.Value, s.Language))
	}
	result.CanvasMetadata = v.metadataRows(canvas.Metadata, s.Language)
	result.Resource = resourceRows(active.Resource)
	result.Regions = v.regionViews(s, state.Canvas, service.ID, state.Params())
	result.Warnings = warnings
	return result, nil
}

// SaveRegion records a region drawn on the canvas, in canvas pixels, and returns its percentages and URL.
func (v *Viewer) SaveRegion(s *Session, canvasIndex int, drawn domain.Rect, comment string, state RenderState) (
	SavedRegion, error,
) {
	canvas, err := v.Navigator.SelectCanvas(s.Document, canvasIndex)
	if err != nil {
		return SavedRegion{}, err
	}
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return SavedRegion{}, newClientError(fmt.Errorf("canvas %d has no dimensions", canvasIndex))
	}
	if drawn.W <= 0 || drawn.H <= 0 {
		return SavedRegion{}, newClientError(errors.New("the region must have a positive width and height"))
	}

	percent := v.Resolver.RegionToPercent(drawn, canvas.Width, canvas.Height)
	index := s.Regions.Record(canvasIndex, percent, comment)
	saved := SavedRegion{Canvas: canvasIndex, Index: index, Region: percent}

	// The URL is informative; a canvas without an image service still keeps the region.
	if u, err := v.RegionURL(s, canvasIndex, index, state); err == nil {
		saved.URL = u
	}
	return saved, nil
}

// RegionURL builds the Image API URL of a stored region of interest.
func (v *Viewer) RegionURL(s *Session, canvasIndex, roiIndex int, state RenderState) (string, error) {
	if _, err := s.Regions.Get(canvasIndex, roiIndex); err != nil {
		return "", err
	}
	serviceURL, err := v.serviceURL(s, canvasIndex, state.Choice)
	if err != nil {
		return "", err
	}
	return v.Resolver.RegionOfInterestURL(s.Regions, canvasIndex, roiIndex, serviceURL, state.Params())
}

// Zoom builds the URL of the visible part of a zoomed canvas. It reports false when the viewport covers the canvas.
func (v *Viewer) Zoom(s *Session, canvasIndex int, viewport Viewport, state RenderState) (string, bool, error) {
	canvas, err := v.Navigator.SelectCanvas(s.Document, canvasIndex)
	if err != nil {
		return "", false, err
	}
	region, ok := v.Resolver.ViewportRegion(viewport, canvas.Width, canvas.Height)
	if !ok {
		return "", false, nil
	}
	serviceURL, err := v.serviceURL(s, canvasIndex, state.Choice)
	if err != nil {
		return "", false, err
	}
	params := state.Params()
	params.Region = region
	u, err := v.Resolver.BuildImageURL(serviceURL, params)
	if err != nil {
		return "", false, err
	}
	return u, true, nil
}

// Regions lists the regions of interest of a canvas. The URLs are left empty when the canvas has no image service.
func (v *Viewer) Regions(s *Session, canvasIndex int, state RenderState) ([]RoIView, error) {
	serviceURL, err := v.serviceURL(s, canvasIndex, state.Choice)
	if err != nil && !errors.Is(err, ErrNoImageService) {
		return nil, err
	}
	views := v.regionViews(s, canvasIndex, serviceURL, state.Params())
	if views == nil {
		views = []RoIView{}
	}
	return views, nil
}

func (v *Viewer) serviceURL(s *Session, canvasIndex int, choice *int) (string, error) {
	canvas, err := v.Navigator.SelectCanvas(s.Document, canvasIndex)
	if err != nil {
		return "", err
	}
	active, err := v.Navigator.SelectActiveBody(canvas, choice)
	if err != nil {
		return "", err
	}
	serviceURL, ok := v.Navigator.ExtractImageServiceURL(active.Resource)
	if !ok {
		return "", newError(ErrNoImageService, fmt.Errorf("resource '%s' has no image service", active.Resource.ID))
	}
	return serviceURL, nil
}

func (v *Viewer) regionViews(s *Session, canvasIndex int, serviceURL string, params ImageParams) []RoIView {
	regions := s.Regions.List(canvasIndex)
	if len(regions) == 0 {
		return nil
	}
	views := make([]RoIView, 0, len(regions))
	for i, roi := range regions {
		view := RoIView{Index: i, Region: roi.Region, Comment: roi.Comment}
		if serviceURL != "" {
			view.URL, _ = v.Resolver.RegionOfInterestURL(s.Regions, canvasIndex, i, serviceURL, params)
		}
		views = append(views, view)
	}
	return views
}

func describeTarget(target domain.Target) string {
	switch t := target.(type) {
	case domain.FragmentTarget:
		return t.String()
	case domain.SpecificResourceTarget:
		return t.String()
	default:
		return ""
	}
}
