package service

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nitro/iiifviewer/internal/domain"
)

func TestNavigatorResolveLanguageString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message        string
		payload        domain.LanguageMap
		language       string
		expected       string
		expectedError  error
		expectedLogged bool
	}{
		{
			message:  "resolve the preferred language",
			payload:  domain.LanguageMap{"en": {"Book"}, "fr": {"Livre"}},
			language: "fr",
			expected: "Livre",
		},
		{
			message:  "join the values with a space",
			payload:  domain.LanguageMap{"en": {"Book", "of hours"}},
			language: "en",
			expected: "Book of hours",
		},
		{
			message:  "fall back to the none key",
			payload:  domain.LanguageMap{"none": {"MS 1"}, "de": {"Buch"}},
			language: "en",
			expected: "MS 1",
		},
		{
			message:        "fall back to the first language",
			payload:        domain.LanguageMap{"fr": {"Livre"}, "de": {"Buch"}},
			language:       "en",
			expected:       "Buch",
			expectedLogged: true,
		},
		{
			message:       "fail without values",
			payload:       domain.LanguageMap{},
			language:      "en",
			expectedError: ErrMissingLanguageData,
		},
	}
	for _, tt := range tests {
		t.Run("Should "+tt.message, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			n := Navigator{Logger: zerolog.New(&buf)}
			result, err := n.ResolveLanguageString(tt.payload, tt.language)
			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)
				require.Empty(t, n.Label(tt.payload, tt.language))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, result)
			require.Equal(t, tt.expectedLogged, buf.Len() > 0)
		})
	}
}

func TestNavigatorSelectCanvas(t *testing.T) {
	t.Parallel()

	var n Navigator
	manifest := loadDocument(t, "manifest.json")

	canvas, err := n.SelectCanvas(manifest, 1)
	require.NoError(t, err)
	require.Equal(t, "https://example.org/iiif/book/canvas/p2", canvas.ID)

	_, err = n.SelectCanvas(manifest, 5)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = n.SelectCanvas(loadDocument(t, "collection.json"), 0)
	require.ErrorIs(t, err, ErrClient)

	_, err = n.SelectCanvas(domain.Document{}, 0)
	require.ErrorIs(t, err, ErrClient)
}

func TestNavigatorSelectActiveBody(t *testing.T) {
	t.Parallel()

	var n Navigator
	items := loadDocument(t, "manifest.json").Manifest.Items

	tests := []struct {
		message       string
		canvas        domain.Canvas
		choice        *int
		expectedID    string
		expectedIndex int
		expectedError error
		choices       int
	}{
		{
			message:    "select an image body",
			canvas:     items[0],
			expectedID: "https://example.org/iiif/img1/full/max/0/default.jpg",
		},
		{
			message:    "select the first alternative of a choice",
			canvas:     items[1],
			expectedID: "https://example.org/iiif/natural/full/max/0/default.jpg",
			choices:    2,
		},
		{
			message:       "select the second alternative of a choice",
			canvas:        items[1],
			choice:        intPtr(1),
			expectedID:    "https://example.org/iiif/xray/full/max/0/default.jpg",
			expectedIndex: 1,
			choices:       2,
		},
		{
			message:       "fail with an out of range alternative",
			canvas:        items[1],
			choice:        intPtr(2),
			expectedError: ErrIndexOutOfRange,
		},
		{
			message:    "select the source of a specific resource",
			canvas:     items[3],
			expectedID: "https://example.org/iiif/img4/full/max/0/default.jpg",
		},
		{
			message:       "fail with an unsupported body",
			canvas:        items[4],
			expectedError: ErrUnsupportedBodyType,
		},
		{
			message:       "fail without painting annotation",
			canvas:        domain.Canvas{ID: "empty"},
			expectedError: ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run("Should "+tt.message, func(t *testing.T) {
			t.Parallel()

			active, err := n.SelectActiveBody(tt.canvas, tt.choice)
			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expectedID, active.Resource.ID)
			require.Equal(t, tt.expectedIndex, active.ChoiceIndex)
			require.Equal(t, tt.choices > 0, active.ChoiceEnabled)
			require.Len(t, active.Choices, tt.choices)
		})
	}
}

func TestNavigatorSelectActiveBodySelector(t *testing.T) {
	t.Parallel()

	var n Navigator
	active, err := n.SelectActiveBody(loadDocument(t, "manifest.json").Manifest.Items[3], nil)
	require.NoError(t, err)
	selector, ok := active.Selector.(domain.ImageAPISelector)
	require.True(t, ok)
	require.Equal(t, "0,0,200,200", selector.Region)

	serviceURL, ok := n.ExtractImageServiceURL(active.Resource)
	require.True(t, ok)
	require.Equal(t, "https://example.org/iiif/img4", serviceURL)
}

func TestNavigatorExtractImageServiceURL(t *testing.T) {
	t.Parallel()

	var n Navigator
	_, ok := n.ExtractImageServiceURL(domain.ContentResource{ID: "https://example.org/image.png"})
	require.False(t, ok)

	serviceURL, ok := n.ExtractImageServiceURL(domain.ContentResource{Service: []domain.Service{
		{ID: "https://example.org/auth", Type: "AuthCookieService1"},
		{ID: "https://example.org/iiif/img", Type: "ImageService2"},
	}})
	require.True(t, ok)
	require.Equal(t, "https://example.org/iiif/img", serviceURL)
}

func TestNavigatorCollectAnnotations(t *testing.T) {
	t.Parallel()

	var n Navigator
	items := loadDocument(t, "manifest.json").Manifest.Items

	active, err := n.SelectActiveBody(items[0], nil)
	require.NoError(t, err)
	entries := n.CollectAnnotations(active.Resource, items[0], nil)
	require.Len(t, entries, 2)
	require.Equal(t, 1, entries[0].Number)
	require.Equal(t, LevelCanvas, entries[0].Level)
	require.Equal(t, "a comment", entries[0].Text)
	require.Equal(t, 2, entries[1].Number)
	require.Equal(t, LevelResource, entries[1].Level)
	require.IsType(t, domain.SpecificResourceTarget{}, entries[1].Target)

	active, err = n.SelectActiveBody(items[3], nil)
	require.NoError(t, err)
	require.Empty(t, n.CollectAnnotations(active.Resource, items[3], nil))

	service, ok := n.ImageService(active.Resource)
	require.True(t, ok)
	entries = n.CollectAnnotations(active.Resource, items[3], &service)
	require.Len(t, entries, 1)
	require.Equal(t, AnnotationEntry{
		Number: 1,
		Level:  LevelService,
		Target: domain.SpecificResourceTarget{
			Source:   "https://example.org/iiif/img4",
			Selector: domain.ImageAPISelector{Type: domain.SelectorTypeImageAPI, Region: "pct:50,50,25,25"},
		},
		Text: "service note",
	}, entries[0])
}

func TestNavigatorCollection(t *testing.T) {
	t.Parallel()

	n := Navigator{Logger: zerolog.Nop()}
	collection := loadDocument(t, "collection.json")

	members, err := n.CollectionMembers(collection, "en")
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, "Other", members[1].Label)

	id, err := n.ResolveMember(collection, 1)
	require.NoError(t, err)
	require.Equal(t, "https://example.org/iiif/other/manifest", id)

	_, err = n.ResolveMember(collection, -1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	manifest := loadDocument(t, "manifest.json")
	_, err = n.CollectionMembers(manifest, "en")
	require.ErrorIs(t, err, ErrClient)
	_, err = n.ResolveMember(manifest, 0)
	require.ErrorIs(t, err, ErrClient)
}
