package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Body types.
const (
	BodyTypeImage            = "Image"
	BodyTypeChoice           = "Choice"
	BodyTypeSpecificResource = "SpecificResource"
	BodyTypeTextualBody      = "TextualBody"
)

// MotivationPainting marks the annotations that paint content onto a canvas.
const MotivationPainting = "painting"

// Body is the content of an annotation. The set of implementations is closed: ImageBody, ChoiceBody,
// SpecificResourceBody, TextualBody and UnknownBody.
type Body interface {
	BodyType() string
	isBody()
}

// ContentResource is a resource that can be painted on a canvas, usually an image.
type ContentResource struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Format      string           `json:"format,omitempty"`
	Label       LanguageMap      `json:"label,omitempty"`
	Width       int              `json:"width,omitempty"`
	Height      int              `json:"height,omitempty"`
	Service     []Service        `json:"service,omitempty"`
	Annotations []AnnotationPage `json:"annotations,omitempty"`
}

// UnmarshalJSON accepts a bare identifier string as well as the full object.
func (cr *ContentResource) UnmarshalJSON(payload []byte) error {
	var id string
	if err := json.Unmarshal(payload, &id); err == nil {
		*cr = ContentResource{ID: id}
		return nil
	}

	type alias ContentResource
	var raw alias
	if err := json.Unmarshal(payload, &raw); err != nil {
		return err
	}
	*cr = ContentResource(raw)
	return nil
}

type ImageBody struct {
	ContentResource
}

func (ImageBody) BodyType() string { return BodyTypeImage }
func (ImageBody) isBody()          {}

// ChoiceBody holds alternative resources; only one of them is displayed at a time.
type ChoiceBody struct {
	Items []ContentResource
}

func (ChoiceBody) BodyType() string { return BodyTypeChoice }
func (ChoiceBody) isBody()          {}

// SpecificResourceBody wraps a source resource with an optional selector.
type SpecificResourceBody struct {
	Source   ContentResource
	Selector Selector
}

func (SpecificResourceBody) BodyType() string { return BodyTypeSpecificResource }
func (SpecificResourceBody) isBody()          {}

type TextualBody struct {
	Value    string
	Language string
	Format   string
}

func (TextualBody) BodyType() string { return BodyTypeTextualBody }
func (TextualBody) isBody()          {}

// UnknownBody keeps the type of a body this package does not model.
type UnknownBody struct {
	Type string
	ID   string
}

func (ub UnknownBody) BodyType() string { return ub.Type }
func (UnknownBody) isBody()             {}

// ParseBody decodes a single annotation body, dispatching on its type.
func ParseBody(payload json.RawMessage) (Body, error) {
	e := struct {
		ID       string          `json:"id"`
		Type     string          `json:"type"`
		Items    json.RawMessage `json:"items"`
		Source   json.RawMessage `json:"source"`
		Selector json.RawMessage `json:"selector"`
		Value    string          `json:"value"`
		Language string          `json:"language"`
		Format   string          `json:"format"`
	}{}
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the body: %w", err)
	}

	switch e.Type {
	case BodyTypeImage:
		var cr ContentResource
		if err := json.Unmarshal(payload, &cr); err != nil {
			return nil, fmt.Errorf("failed to unmarshal the image body: %w", err)
		}
		return ImageBody{ContentResource: cr}, nil
	case BodyTypeChoice:
		var items []ContentResource
		if len(e.Items) > 0 {
			if err := json.Unmarshal(e.Items, &items); err != nil {
				return nil, fmt.Errorf("failed to unmarshal the choice items: %w", err)
			}
		}
		return ChoiceBody{Items: items}, nil
	case BodyTypeSpecificResource:
		var b SpecificResourceBody
		if len(e.Source) > 0 {
			if err := json.Unmarshal(e.Source, &b.Source); err != nil {
				return nil, fmt.Errorf("failed to unmarshal the specific resource source: %w", err)
			}
		}
		if len(e.Selector) > 0 {
			selector, err := ParseSelector(e.Selector)
			if err != nil {
				return nil, err
			}
			b.Selector = selector
		}
		return b, nil
	case BodyTypeTextualBody:
		return TextualBody{Value: e.Value, Language: e.Language, Format: e.Format}, nil
	default:
		return UnknownBody{Type: e.Type, ID: e.ID}, nil
	}
}

// Bodies is the body of an annotation, which may be a single object or a list.
type Bodies []Body

func (bs *Bodies) UnmarshalJSON(payload []byte) error {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "null" {
		*bs = nil
		return nil
	}

	var rawEntries []json.RawMessage
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(payload, &rawEntries); err != nil {
			return fmt.Errorf("failed to unmarshal the body list: %w", err)
		}
	} else {
		rawEntries = []json.RawMessage{payload}
	}

	result := make(Bodies, 0, len(rawEntries))
	for _, rawEntry := range rawEntries {
		body, err := ParseBody(rawEntry)
		if err != nil {
			return err
		}
		result = append(result, body)
	}
	*bs = result
	return nil
}

type Annotation struct {
	ID         string
	Type       string
	Motivation string
	Body       Bodies
	Target     Target
}

func (a *Annotation) UnmarshalJSON(payload []byte) error {
	raw := struct {
		ID         string          `json:"id"`
		Type       string          `json:"type"`
		Motivation json.RawMessage `json:"motivation"`
		Body       Bodies          `json:"body"`
		Target     json.RawMessage `json:"target"`
	}{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return err
	}

	*a = Annotation{ID: raw.ID, Type: raw.Type, Body: raw.Body}
	if len(raw.Motivation) > 0 {
		a.Motivation = parseMotivation(raw.Motivation)
	}
	if len(raw.Target) > 0 && string(raw.Target) != "null" {
		target, err := ParseTarget(raw.Target)
		if err != nil {
			return err
		}
		a.Target = target
	}
	return nil
}

// IsPainting reports whether the annotation paints content onto its target.
func (a Annotation) IsPainting() bool {
	return a.Motivation == MotivationPainting
}

// The motivation may be a list, in that case the first value is used.
func parseMotivation(payload json.RawMessage) string {
	var single string
	if err := json.Unmarshal(payload, &single); err == nil {
		return single
	}
	var list []string
	if err := json.Unmarshal(payload, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}
