package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Document types.
const (
	TypeManifest   = "Manifest"
	TypeCollection = "Collection"
)

// LanguageMap maps a language tag to its values.
type LanguageMap map[string][]string

// Has reports whether the map carries values for the given language.
func (lm LanguageMap) Has(language string) bool {
	_, ok := lm[language]
	return ok
}

// Document is the root of a fetched IIIF resource. Exactly one of Manifest or Collection is set.
type Document struct {
	Manifest   *Manifest
	Collection *Collection
}

// ParseDocument decodes a Presentation API v3 Manifest or Collection.
func ParseDocument(payload []byte) (Document, error) {
	e := struct {
		Type string `json:"type"`
	}{}
	if err := json.Unmarshal(payload, &e); err != nil {
		return Document{}, fmt.Errorf("failed to unmarshal the document type: %w", err)
	}

	switch e.Type {
	case TypeCollection:
		var c Collection
		if err := json.Unmarshal(payload, &c); err != nil {
			return Document{}, fmt.Errorf("failed to unmarshal the collection: %w", err)
		}
		return Document{Collection: &c}, nil
	case TypeManifest, "":
		var m Manifest
		if err := json.Unmarshal(payload, &m); err != nil {
			return Document{}, fmt.Errorf("failed to unmarshal the manifest: %w", err)
		}
		if m.Type == "" && len(m.Items) == 0 {
			return Document{}, errors.New("document has no type and no items")
		}
		return Document{Manifest: &m}, nil
	default:
		return Document{}, fmt.Errorf("unknown document type '%s'", e.Type)
	}
}

type Manifest struct {
	ID                string             `json:"id"`
	Type              string             `json:"type"`
	Label             LanguageMap        `json:"label"`
	Summary           LanguageMap        `json:"summary,omitempty"`
	Metadata          []MetadataEntry    `json:"metadata,omitempty"`
	RequiredStatement *MetadataEntry     `json:"requiredStatement,omitempty"`
	Provider          []Agent            `json:"provider,omitempty"`
	Rights            string             `json:"rights,omitempty"`
	NavDate           string             `json:"navDate,omitempty"`
	Rendering         []ExternalResource `json:"rendering,omitempty"`
	SeeAlso           []ExternalResource `json:"seeAlso,omitempty"`
	Items             []Canvas           `json:"items"`
}

type Collection struct {
	ID    string      `json:"id"`
	Type  string      `json:"type"`
	Label LanguageMap `json:"label"`
	Items []Reference `json:"items"`
}

// Reference points to another IIIF resource, such as a Collection member.
type Reference struct {
	ID    string      `json:"id"`
	Type  string      `json:"type"`
	Label LanguageMap `json:"label"`
}

type MetadataEntry struct {
	Label LanguageMap `json:"label"`
	Value LanguageMap `json:"value"`
}

type Agent struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Label    LanguageMap        `json:"label,omitempty"`
	Homepage []ExternalResource `json:"homepage,omitempty"`
	Logo     []ExternalResource `json:"logo,omitempty"`
	SeeAlso  []ExternalResource `json:"seeAlso,omitempty"`
}

type ExternalResource struct {
	ID      string      `json:"id"`
	Type    string      `json:"type,omitempty"`
	Format  string      `json:"format,omitempty"`
	Profile string      `json:"profile,omitempty"`
	Label   LanguageMap `json:"label,omitempty"`
}

// Canvas is a surface with its own coordinate space. Width and Height define the space every selector is
// expressed in.
type Canvas struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Label       LanguageMap      `json:"label,omitempty"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Metadata    []MetadataEntry  `json:"metadata,omitempty"`
	Items       []AnnotationPage `json:"items"`
	Annotations []AnnotationPage `json:"annotations,omitempty"`
}

type AnnotationPage struct {
	ID    string       `json:"id"`
	Type  string       `json:"type"`
	Items []Annotation `json:"items"`
}

// Service describes a service attached to a content resource. Presentation API v2 style '@id' and '@type' keys are
// accepted as well.
type Service struct {
	ID          string           `json:"id"`
	Type        string           `json:"type"`
	Annotations []AnnotationPage `json:"annotations,omitempty"`
}

func (s *Service) UnmarshalJSON(payload []byte) error {
	type alias Service
	raw := struct {
		alias
		LegacyID   string `json:"@id"`
		LegacyType string `json:"@type"`
	}{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return err
	}
	*s = Service(raw.alias)
	if s.ID == "" {
		s.ID = raw.LegacyID
	}
	if s.Type == "" {
		s.Type = raw.LegacyType
	}
	return nil
}
