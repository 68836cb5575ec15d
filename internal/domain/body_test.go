package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	t.Parallel()

	t.Run("Should parse a manifest with every body type", func(t *testing.T) {
		t.Parallel()

		payload := `
			{
				"id": "https://example.org/manifest",
				"type": "Manifest",
				"label": {"en": ["Book"]},
				"items": [
					{
						"id": "https://example.org/canvas/1",
						"type": "Canvas",
						"width": 100,
						"height": 200,
						"items": [
							{
								"type": "AnnotationPage",
								"items": [
									{
										"type": "Annotation",
										"motivation": "painting",
										"body": {
											"id": "https://example.org/img.jpg",
											"type": "Image",
											"service": [{"@id": "https://example.org/iiif/img", "@type": "ImageService2"}]
										},
										"target": "https://example.org/canvas/1"
									},
									{
										"type": "Annotation",
										"motivation": ["painting"],
										"body": {"type": "Choice", "items": [{"id": "a", "type": "Image"}, {"id": "b", "type": "Image"}]},
										"target": "https://example.org/canvas/1#xywh=1,2,3,4"
									},
									{
										"type": "Annotation",
										"motivation": "painting",
										"body": {
											"type": "SpecificResource",
											"source": "https://example.org/src",
											"selector": {"type": "iiif:ImageApiSelector", "region": "0,0,10,10", "rotation": 90}
										},
										"target": {"source": {"id": "https://example.org/canvas/1"}, "selector": {"type": "PointSelector", "x": 5, "y": 6}}
									},
									{
										"type": "Annotation",
										"motivation": "commenting",
										"body": [{"type": "TextualBody", "value": "hi"}, {"type": "Video", "id": "v"}],
										"target": {"type": "SpecificResource", "source": "https://example.org/canvas/1"}
									}
								]
							}
						]
					}
				]
			}
		`
		doc, err := ParseDocument([]byte(payload))
		require.NoError(t, err)
		require.Nil(t, doc.Collection)
		require.NotNil(t, doc.Manifest)
		require.Len(t, doc.Manifest.Items, 1)

		annotations := doc.Manifest.Items[0].Items[0].Items
		require.Len(t, annotations, 4)

		image, ok := annotations[0].Body[0].(ImageBody)
		require.True(t, ok)
		require.Equal(t, "https://example.org/iiif/img", image.Service[0].ID)
		require.Equal(t, "ImageService2", image.Service[0].Type)
		require.Equal(t, FragmentTarget{Source: "https://example.org/canvas/1"}, annotations[0].Target)

		choice, ok := annotations[1].Body[0].(ChoiceBody)
		require.True(t, ok)
		require.True(t, annotations[1].IsPainting())
		require.Len(t, choice.Items, 2)
		require.Equal(t, FragmentTarget{Source: "https://example.org/canvas/1", Fragment: "1,2,3,4"}, annotations[1].Target)

		specific, ok := annotations[2].Body[0].(SpecificResourceBody)
		require.True(t, ok)
		require.Equal(t, "https://example.org/src", specific.Source.ID)
		require.Equal(t, ImageAPISelector{Type: SelectorTypeImageAPILegacy, Region: "0,0,10,10", Rotation: "90"}, specific.Selector)
		require.Equal(t, SpecificResourceTarget{
			Source:   "https://example.org/canvas/1",
			Selector: PointSelector{X: 5, Y: 6},
		}, annotations[2].Target)

		require.False(t, annotations[3].IsPainting())
		require.Equal(t, TextualBody{Value: "hi"}, annotations[3].Body[0])
		require.Equal(t, UnknownBody{Type: "Video", ID: "v"}, annotations[3].Body[1])
		require.Equal(t, FragmentTarget{Source: "https://example.org/canvas/1"}, annotations[3].Target)
	})

	t.Run("Should parse a collection", func(t *testing.T) {
		t.Parallel()

		payload := `
			{
				"id": "https://example.org/collection",
				"type": "Collection",
				"label": {"none": ["All"]},
				"items": [{"id": "https://example.org/m1", "type": "Manifest", "label": {"en": ["One"]}}]
			}
		`
		doc, err := ParseDocument([]byte(payload))
		require.NoError(t, err)
		require.Nil(t, doc.Manifest)
		require.Equal(t, []Reference{
			{ID: "https://example.org/m1", Type: "Manifest", Label: LanguageMap{"en": {"One"}}},
		}, doc.Collection.Items)
	})

	t.Run("Should fail on an unknown document type", func(t *testing.T) {
		t.Parallel()

		_, err := ParseDocument([]byte(`{"type": "Canvas"}`))
		require.EqualError(t, err, "unknown document type 'Canvas'")
	})
}

func TestParseSelector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message  string
		payload  string
		expected Selector
	}{
		{
			message:  "parse a fragment selector",
			payload:  `{"type": "FragmentSelector", "value": "xywh=1,2,3,4"}`,
			expected: FragmentSelector{Value: "xywh=1,2,3,4"},
		},
		{
			message:  "use the first selector of a list",
			payload:  `[{"type": "ImageApiSelector", "region": "full"}, {"type": "PointSelector"}]`,
			expected: ImageAPISelector{Type: SelectorTypeImageAPI, Region: "full"},
		},
		{
			message:  "keep the type of an unknown selector",
			payload:  `{"type": "SvgSelector", "value": "<svg/>"}`,
			expected: UnknownSelector{Type: "SvgSelector"},
		},
	}
	for _, tt := range tests {
		t.Run("Should "+tt.message, func(t *testing.T) {
			t.Parallel()

			selector, err := ParseSelector([]byte(tt.payload))
			require.NoError(t, err)
			require.Equal(t, tt.expected, selector)
		})
	}
}
