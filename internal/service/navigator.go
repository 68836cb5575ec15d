package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nitro/iiifviewer/internal/domain"
)

const languageNone = "none"

// Navigator walks a parsed manifest to find the content displayed on a canvas and the annotations attached to it.
type Navigator struct {
	Logger zerolog.Logger
}

// ActiveBody is the content resource selected for display on a canvas.
type ActiveBody struct {
	Resource domain.ContentResource

	// Choices lists the labels of the alternatives when the painting body is a Choice. ChoiceEnabled is false for
	// any other body type.
	Choices       []domain.LanguageMap
	ChoiceIndex   int
	ChoiceEnabled bool

	// Selector is the selector of a SpecificResource body. It does not change which resource is displayed.
	Selector domain.Selector
}

// AnnotationEntry is an annotation that applies to the displayed resource, numbered in consumption order.
type AnnotationEntry struct {
	Number int
	Level  string
	Target domain.Target
	Text   string
}

// Annotation levels, in consumption order.
const (
	LevelCanvas   = "canvas"
	LevelResource = "resource"
	LevelService  = "service"
)

// CollectionMember describes an item of a Collection.
type CollectionMember struct {
	Index int    `json:"index" yaml:"index"`
	Type  string `json:"type" yaml:"type"`
	Label string `json:"label" yaml:"label"`
	ID    string `json:"id" yaml:"id"`
}

// ResolveLanguageString joins the values of the preferred language. It falls back to the 'none' key and then to the
// first available language, in which case a diagnostic is logged.
func (n Navigator) ResolveLanguageString(lm domain.LanguageMap, preferred string) (string, error) {
	if len(lm) == 0 {
		return "", newError(ErrMissingLanguageData, errors.New("missing language data"))
	}
	if values, ok := lm[preferred]; ok {
		return strings.Join(values, " "), nil
	}
	if values, ok := lm[languageNone]; ok {
		return strings.Join(values, " "), nil
	}

	// Map iteration is random, sort the keys to always pick the same fallback.
	languages := make([]string, 0, len(lm))
	for language := range lm {
		languages = append(languages, language)
	}
	sort.Strings(languages)
	n.Logger.Warn().Str("language", preferred).Str("fallback", languages[0]).Msg("Language not available")
	return strings.Join(lm[languages[0]], " "), nil
}

// Label is a lenient version of ResolveLanguageString for optional labels.
func (n Navigator) Label(lm domain.LanguageMap, preferred string) string {
	label, err := n.ResolveLanguageString(lm, preferred)
	if err != nil {
		return ""
	}
	return label
}

// SelectCanvas returns the canvas at the given index. A Collection must be resolved to one of its members first.
func (Navigator) SelectCanvas(doc domain.Document, index int) (domain.Canvas, error) {
	if doc.Collection != nil {
		return domain.Canvas{}, newClientError(errors.New("a collection member must be selected first"))
	}
	if doc.Manifest == nil {
		return domain.Canvas{}, newClientError(errors.New("no manifest loaded"))
	}
	if index < 0 || index >= len(doc.Manifest.Items) {
		return domain.Canvas{}, newError(
			ErrIndexOutOfRange,
			fmt.Errorf("canvas index %d out of range [0, %d)", index, len(doc.Manifest.Items)),
		)
	}
	return doc.Manifest.Items[index], nil
}

// SelectActiveBody resolves the resource painted on the canvas. The first painting annotation wins. A nil
// choiceIndex selects the first alternative of a Choice.
func (Navigator) SelectActiveBody(canvas domain.Canvas, choiceIndex *int) (ActiveBody, error) {
	for _, page := range canvas.Items {
		for _, annotation := range page.Items {
			if !annotation.IsPainting() || len(annotation.Body) == 0 {
				continue
			}

			switch body := annotation.Body[0].(type) {
			case domain.ChoiceBody:
				index := 0
				if choiceIndex != nil {
					index = *choiceIndex
				}
				if index < 0 || index >= len(body.Items) {
					return ActiveBody{}, newError(
						ErrIndexOutOfRange,
						fmt.Errorf("choice index %d out of range [0, %d)", index, len(body.Items)),
					)
				}
				choices := make([]domain.LanguageMap, 0, len(body.Items))
				for _, item := range body.Items {
					choices = append(choices, item.Label)
				}
				return ActiveBody{
					Resource:      body.Items[index],
					Choices:       choices,
					ChoiceIndex:   index,
					ChoiceEnabled: true,
				}, nil
			case domain.ImageBody:
				return ActiveBody{Resource: body.ContentResource}, nil
			case domain.SpecificResourceBody:
				return ActiveBody{Resource: body.Source, Selector: body.Selector}, nil
			default:
				return ActiveBody{}, newError(
					ErrUnsupportedBodyType,
					fmt.Errorf("body type '%s' is not supported", body.BodyType()),
				)
			}
		}
	}
	return ActiveBody{}, newNotFoundError(fmt.Errorf("canvas '%s' has no painting annotation", canvas.ID))
}

// ImageService returns the first Image API service of the resource.
func (Navigator) ImageService(resource domain.ContentResource) (domain.Service, bool) {
	for _, service := range resource.Service {
		if strings.HasPrefix(service.Type, "ImageService") {
			return service, true
		}
	}
	return domain.Service{}, false
}

// ExtractImageServiceURL returns the Image API base URL of the resource. When there is none the resource can only be
// fetched as a static image.
func (n Navigator) ExtractImageServiceURL(resource domain.ContentResource) (string, bool) {
	service, ok := n.ImageService(resource)
	if !ok {
		return "", false
	}
	return service.ID, true
}

// CollectAnnotations merges the annotations of the canvas, of the resource and of the image service, in that order.
func (Navigator) CollectAnnotations(
	resource domain.ContentResource, canvas domain.Canvas, service *domain.Service,
) []AnnotationEntry {
	var (
		result  []AnnotationEntry
		counter int
	)
	collect := func(level string, pages []domain.AnnotationPage) {
		for _, page := range pages {
			for _, annotation := range page.Items {
				counter++
				result = append(result, AnnotationEntry{
					Number: counter,
					Level:  level,
					Target: annotation.Target,
					Text:   bodyText(annotation.Body),
				})
			}
		}
	}
	collect(LevelCanvas, canvas.Annotations)
	collect(LevelResource, resource.Annotations)
	if service != nil {
		collect(LevelService, service.Annotations)
	}
	return result
}

// CollectionMembers lists the members of a Collection.
func (n Navigator) CollectionMembers(doc domain.Document, language string) ([]CollectionMember, error) {
	if doc.Collection == nil {
		return nil, newClientError(errors.New("document is not a collection"))
	}
	members := make([]CollectionMember, 0, len(doc.Collection.Items))
	for i, item := range doc.Collection.Items {
		members = append(members, CollectionMember{
			Index: i,
			Type:  item.Type,
			Label: n.Label(item.Label, language),
			ID:    item.ID,
		})
	}
	return members, nil
}

// ResolveMember returns the identifier of the Collection member at the given index.
func (Navigator) ResolveMember(doc domain.Document, index int) (string, error) {
	if doc.Collection == nil {
		return "", newClientError(errors.New("document is not a collection"))
	}
	if index < 0 || index >= len(doc.Collection.Items) {
		return "", newError(
			ErrIndexOutOfRange,
			fmt.Errorf("member index %d out of range [0, %d)", index, len(doc.Collection.Items)),
		)
	}
	return doc.Collection.Items[index].ID, nil
}

func bodyText(bodies domain.Bodies) string {
	fragments := make([]string, 0, len(bodies))
	for _, body := range bodies {
		switch b := body.(type) {
		case domain.TextualBody:
			fragments = append(fragments, b.Value)
		case domain.SpecificResourceBody:
			fragments = append(fragments, b.Source.ID)
		case domain.ImageBody:
			fragments = append(fragments, b.ID)
		case domain.UnknownBody:
			if b.ID != "" {
				fragments = append(fragments, b.ID)
			}
		}
	}
	return strings.Join(fragments, " ")
}
