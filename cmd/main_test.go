package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nitro/iiifviewer/internal/service"
)

func TestParseStorageBucketRegion(t *testing.T) {
	tests := []struct {
		message       string
		payload       string
		expected      map[string]string
		expectedError bool
	}{
		{
			message:  "parse a single region",
			payload:  "us-east-1:bucket1,bucket2",
			expected: map[string]string{"bucket1": "us-east-1", "bucket2": "us-east-1"},
		},
		{
			message: "parse many regions",
			payload: "us-east-1:bucket1; eu-west-1: bucket2 ,bucket3",
			expected: map[string]string{
				"bucket1": "us-east-1",
				"bucket2": "eu-west-1",
				"bucket3": "eu-west-1",
			},
		},
		{
			message:       "fail without a region separator",
			payload:       "bucket1",
			expectedError: true,
		},
		{
			message:       "fail without buckets",
			payload:       "us-east-1:",
			expectedError: true,
		},
	}
	for _, tt := range tests {
		t.Run("Should "+tt.message, func(t *testing.T) {
			t.Parallel()
			result, err := parseStorageBucketRegion(tt.payload)
			require.Equal(t, tt.expectedError, err != nil)
			require.Equal(t, tt.expected, result)
		})
	}
}

func TestWriteSummary(t *testing.T) {
	summary := service.Summary{
		Description: service.Description{ID: "https://example.org/manifest", Type: "Manifest", Label: "Book"},
		URL:         "https://example.org/manifest",
		Canvases:    []service.CanvasSummary{{Index: 0, Label: "p. 1", Width: 100, Height: 200}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, summary, "yaml"))
	require.Contains(t, buf.String(), "label: Book\n")
	require.Contains(t, buf.String(), "canvases:\n")
	require.NotContains(t, buf.String(), "description")

	buf.Reset()
	require.NoError(t, writeSummary(&buf, summary, "json"))
	require.Contains(t, buf.String(), `"label": "Book"`)
	require.Contains(t, buf.String(), `"width": 100`)

	require.EqualError(t, writeSummary(&buf, summary, "xml"), "unknown output format 'xml'")
}

func TestConfigLogger(t *testing.T) {
	_, err := config{logLevel: "verbose"}.logger(&bytes.Buffer{})
	require.Error(t, err)

	var buf bytes.Buffer
	logger, err := config{logLevel: "warn"}.logger(&buf)
	require.NoError(t, err)
	logger.Info().Msg("hidden")
	require.Empty(t, buf.String())
	logger.Warn().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}
