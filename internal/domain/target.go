package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Selector types.
const (
	SelectorTypePoint          = "PointSelector"
	SelectorTypeImageAPI       = "ImageApiSelector"
	SelectorTypeImageAPILegacy = "iiif:ImageApiSelector"
	SelectorTypeFragment       = "FragmentSelector"
)

const xywhFragment = "#xywh="

// Target is what an annotation points at. Implementations: FragmentTarget and SpecificResourceTarget.
type Target interface {
	TargetSource() string
	isTarget()
}

// FragmentTarget targets a resource, optionally narrowed by an 'xywh' media fragment. An empty Fragment targets the
// whole resource.
type FragmentTarget struct {
	Source   string
	Fragment string
}

func (ft FragmentTarget) TargetSource() string { return ft.Source }
func (FragmentTarget) isTarget()                {}

func (ft FragmentTarget) String() string {
	if ft.Fragment == "" {
		return ft.Source
	}
	return ft.Source + xywhFragment + ft.Fragment
}

// SpecificResourceTarget targets a region of a source through a selector.
type SpecificResourceTarget struct {
	Source   string
	Selector Selector
}

func (st SpecificResourceTarget) TargetSource() string { return st.Source }
func (SpecificResourceTarget) isTarget()                {}

func (st SpecificResourceTarget) String() string {
	if st.Selector == nil {
		return st.Source
	}
	return fmt.Sprintf("%s %s", st.Source, st.Selector.SelectorType())
}

// NewFragmentTarget splits an URI on its '#xywh=' fragment.
func NewFragmentTarget(uri string) FragmentTarget {
	source, fragment, _ := strings.Cut(uri, xywhFragment)
	return FragmentTarget{Source: source, Fragment: fragment}
}

// ParseTarget decodes an annotation target, which is either an URI or a SpecificResource object.
func ParseTarget(payload json.RawMessage) (Target, error) {
	var uri string
	if err := json.Unmarshal(payload, &uri); err == nil {
		return NewFragmentTarget(uri), nil
	}

	raw := struct {
		ID       string          `json:"id"`
		Source   json.RawMessage `json:"source"`
		Selector json.RawMessage `json:"selector"`
	}{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the target: %w", err)
	}

	source := raw.ID
	if len(raw.Source) > 0 {
		var sourceResource ContentResource
		if err := json.Unmarshal(raw.Source, &sourceResource); err != nil {
			return nil, fmt.Errorf("failed to unmarshal the target source: %w", err)
		}
		source = sourceResource.ID
	}
	if source == "" {
		return nil, errors.New("target without source")
	}

	if len(raw.Selector) == 0 || string(raw.Selector) == "null" {
		return NewFragmentTarget(source), nil
	}
	selector, err := ParseSelector(raw.Selector)
	if err != nil {
		return nil, err
	}
	return SpecificResourceTarget{Source: source, Selector: selector}, nil
}

// Selector narrows a target to a region of its source. Implementations: PointSelector, ImageAPISelector,
// FragmentSelector and UnknownSelector.
type Selector interface {
	SelectorType() string
	isSelector()
}

type PointSelector struct {
	X float64
	Y float64
	T *float64
}

func (PointSelector) SelectorType() string { return SelectorTypePoint }
func (PointSelector) isSelector()          {}

// ImageAPISelector selects a region using Image API parameters.
type ImageAPISelector struct {
	Type     string
	Region   string
	Size     string
	Rotation string
	Quality  string
	Format   string
}

func (s ImageAPISelector) SelectorType() string { return s.Type }
func (ImageAPISelector) isSelector()            {}

// FragmentSelector carries a media fragment such as 'xywh=10,10,50,50'.
type FragmentSelector struct {
	Value string
}

func (FragmentSelector) SelectorType() string { return SelectorTypeFragment }
func (FragmentSelector) isSelector()          {}

// XYWH returns the value of the 'xywh' fragment.
func (fs FragmentSelector) XYWH() (string, bool) {
	return strings.CutPrefix(fs.Value, "xywh=")
}

type UnknownSelector struct {
	Type string
}

func (us UnknownSelector) SelectorType() string { return us.Type }
func (UnknownSelector) isSelector()             {}

// ParseSelector decodes a selector. When a list is given the first entry is used.
func ParseSelector(payload json.RawMessage) (Selector, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(payload, &list); err == nil {
		if len(list) == 0 {
			return nil, errors.New("empty selector list")
		}
		payload = list[0]
	}

	raw := struct {
		Type     string          `json:"type"`
		X        float64         `json:"x"`
		Y        float64         `json:"y"`
		T        *float64        `json:"t"`
		Region   string          `json:"region"`
		Size     string          `json:"size"`
		Rotation json.RawMessage `json:"rotation"`
		Quality  string          `json:"quality"`
		Format   string          `json:"format"`
		Value    string          `json:"value"`
	}{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the selector: %w", err)
	}

	switch raw.Type {
	case SelectorTypePoint:
		return PointSelector{X: raw.X, Y: raw.Y, T: raw.T}, nil
	case SelectorTypeImageAPI, SelectorTypeImageAPILegacy:
		return ImageAPISelector{
			Type:     raw.Type,
			Region:   raw.Region,
			Size:     raw.Size,
			Rotation: strings.Trim(string(raw.Rotation), `"`),
			Quality:  raw.Quality,
			Format:   raw.Format,
		}, nil
	case SelectorTypeFragment:
		return FragmentSelector{Value: raw.Value}, nil
	default:
		return UnknownSelector{Type: raw.Type}, nil
	}
}
