package service

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/nitro/iiifviewer/internal/domain"
)

// Row is a label/value pair of a description panel.
type Row struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// Panel is a titled section of the manifest description.
type Panel struct {
	Title string `json:"title" yaml:"title"`
	Rows  []Row  `json:"rows" yaml:"rows"`
}

// Description is the human readable version of a document.
type Description struct {
	ID     string  `json:"id" yaml:"id"`
	Type   string  `json:"type" yaml:"type"`
	Label  string  `json:"label" yaml:"label"`
	Panels []Panel `json:"panels,omitempty" yaml:"panels,omitempty"`
}

// Summary is the outline of a session document.
type Summary struct {
	Description `yaml:",inline"`
	URL         string             `json:"url" yaml:"url"`
	Canvases    []CanvasSummary    `json:"canvases,omitempty" yaml:"canvases,omitempty"`
	Members     []CollectionMember `json:"members,omitempty" yaml:"members,omitempty"`
}

// CanvasSummary outlines a canvas.
type CanvasSummary struct {
	Index       int    `json:"index" yaml:"index"`
	Label       string `json:"label" yaml:"label"`
	Width       int    `json:"width" yaml:"width"`
	Height      int    `json:"height" yaml:"height"`
	Choices     int    `json:"choices,omitempty" yaml:"choices,omitempty"`
	Annotations int    `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	Regions     int    `json:"regions,omitempty" yaml:"regions,omitempty"`
}

// Describe builds the description panels of the loaded document. Empty panels are omitted.
func (v *Viewer) Describe(s *Session) (Description, error) {
	language := s.Language
	switch {
	case s.Document.Collection != nil:
		c := s.Document.Collection
		return Description{ID: c.ID, Type: c.Type, Label: v.Navigator.Label(c.Label, language)}, nil
	case s.Document.Manifest == nil:
		return Description{}, newClientError(errors.New("no document loaded"))
	}

	m := s.Document.Manifest
	d := Description{ID: m.ID, Type: m.Type, Label: v.Navigator.Label(m.Label, language)}
	add := func(title string, rows []Row) {
		if len(rows) > 0 {
			d.Panels = append(d.Panels, Panel{Title: title, Rows: rows})
		}
	}

	if len(m.Summary) > 0 {
		add("Summary", []Row{{Label: "Summary", Value: stripTags(v.Navigator.Label(m.Summary, language))}})
	}
	add("Metadata", v.metadataRows(m.Metadata, language))
	if m.RequiredStatement != nil {
		add("Required statement", v.metadataRows([]domain.MetadataEntry{*m.RequiredStatement}, language))
	}

	var providers []Row
	for _, provider := range m.Provider {
		providers = append(providers, Row{Label: v.Navigator.Label(provider.Label, language), Value: provider.ID})
		for _, homepage := range provider.Homepage {
			providers = append(providers, Row{Label: "Homepage", Value: homepage.ID})
		}
	}
	add("Providers", providers)

	if m.Rights != "" {
		add("Rights", []Row{{Label: "Rights", Value: m.Rights}})
	}
	if m.NavDate != "" {
		add("Navigation date", []Row{{Label: "navDate", Value: m.NavDate}})
	}
	add("Rendering", v.externalRows(m.Rendering, language))
	add("See also", v.externalRows(m.SeeAlso, language))
	return d, nil
}

// Summary outlines the session document: its canvases or, for a Collection, its members.
func (v *Viewer) Summary(s *Session) (Summary, error) {
	description, err := v.Describe(s)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Description: description, URL: s.URL}

	if s.Pending() {
		summary.Members, err = v.Members(s)
		if err != nil {
			return Summary{}, err
		}
		return summary, nil
	}

	for i, canvas := range s.Document.Manifest.Items {
		cs := CanvasSummary{
			Index:   i,
			Label:   v.Navigator.Label(canvas.Label, s.Language),
			Width:   canvas.Width,
			Height:  canvas.Height,
			Regions: len(s.Regions.List(i)),
		}
		if active, err := v.Navigator.SelectActiveBody(canvas, nil); err == nil {
			cs.Choices = len(active.Choices)
			service, ok := v.Navigator.ImageService(active.Resource)
			var servicePtr *domain.Service
			if ok {
				servicePtr = &service
			}
			cs.Annotations = len(v.Navigator.CollectAnnotations(active.Resource, canvas, servicePtr))
		}
		summary.Canvases = append(summary.Canvases, cs)
	}
	return summary, nil
}

func (v *Viewer) metadataRows(entries []domain.MetadataEntry, language string) []Row {
	rows := make([]Row, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, Row{
			Label: stripTags(v.Navigator.Label(entry.Label, language)),
			Value: stripTags(v.Navigator.Label(entry.Value, language)),
		})
	}
	return rows
}

func (v *Viewer) externalRows(resources []domain.ExternalResource, language string) []Row {
	rows := make([]Row, 0, len(resources))
	for _, resource := range resources {
		label := v.Navigator.Label(resource.Label, language)
		if label == "" {
			label = resource.Format
		}
		rows = append(rows, Row{Label: label, Value: resource.ID})
	}
	return rows
}

func resourceRows(resource domain.ContentResource) []Row {
	rows := []Row{{Label: "id", Value: resource.ID}}
	if resource.Format != "" {
		rows = append(rows, Row{Label: "format", Value: resource.Format})
	}
	if resource.Width > 0 && resource.Height > 0 {
		rows = append(rows, Row{Label: "size", Value: fmt.Sprintf("%dx%d", resource.Width, resource.Height)})
	}
	for _, service := range resource.Service {
		rows = append(rows, Row{Label: service.Type, Value: service.ID})
	}
	return rows
}

// stripTags keeps the text of a value that may hold the HTML subset allowed in IIIF values.
func stripTags(value string) string {
	if !strings.Contains(value, "<") {
		return value
	}

	var (
		builder   strings.Builder
		tokenizer = html.NewTokenizer(strings.NewReader(value))
	)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if !errors.Is(tokenizer.Err(), io.EOF) {
				return value
			}
			return strings.TrimSpace(builder.String())
		case html.TextToken:
			builder.Write(tokenizer.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			if name, _ := tokenizer.TagName(); string(name) == "br" {
				builder.WriteString(" ")
			}
		}
	}
}
