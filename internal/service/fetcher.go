package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
	awstrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/aws/aws-sdk-go/aws"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/nitro/iiifviewer/internal/domain"
)

const maxDocumentSize = 32 << 20 // 32mb.

// Fetcher retrieves IIIF documents and images. Documents can be served over HTTP or stored at S3 ('s3://bucket/key').
type Fetcher struct {
	HTTPClient          *http.Client
	Logger              zerolog.Logger
	StorageBucketRegion map[string]string

	getS3Client func(string) (s3iface.S3API, error)
	s3Clients   map[string]s3iface.S3API
	mutex       sync.Mutex
}

// Init fetcher internal state.
func (f *Fetcher) Init() error {
	if f.HTTPClient == nil {
		return errors.New("internal/service/Fetcher.HTTPClient can't be nil")
	}
	if f.getS3Client == nil {
		f.getS3Client = f.getBucketS3Client
	}
	f.s3Clients = make(map[string]s3iface.S3API)
	return nil
}

// FetchDocument fetches and parses a Manifest or a Collection. The raw payload is returned as well.
func (f *Fetcher) FetchDocument(ctx context.Context, rawURL string) (_ domain.Document, _ []byte, err error) {
	span, ctx := startSpan(ctx, "Fetcher.FetchDocument")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	payload, err := f.fetch(ctx, rawURL)
	if err != nil {
		return domain.Document{}, nil, err
	}
	span.SetTag("documentSize", len(payload))

	doc, err := domain.ParseDocument(payload)
	if err != nil {
		return domain.Document{}, nil, newFetchError(fmt.Errorf("fail to parse the document at '%s': %w", rawURL, err))
	}
	return doc, payload, nil
}

// FetchImage downloads an image.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) (_ []byte, err error) {
	span, ctx := startSpan(ctx, "Fetcher.FetchImage")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	body, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, newFetchError(fmt.Errorf("fail to read the image: %w", err))
	}
	span.SetTag("imageSize", len(payload))
	return payload, nil
}

// ImageSize reads the dimensions of an image from its header without downloading the whole payload. Images in a
// format without a registered decoder fail with an error wrapping image.ErrFormat.
func (f *Fetcher) ImageSize(ctx context.Context, rawURL string) (_ int, _ int, err error) {
	span, ctx := startSpan(ctx, "Fetcher.ImageSize")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	body, err := f.get(ctx, rawURL)
	if err != nil {
		return 0, 0, err
	}
	defer body.Close()

	config, format, err := image.DecodeConfig(body)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return 0, 0, fmt.Errorf("fail to decode the image at '%s': %w", rawURL, err)
		}
		return 0, 0, newFetchError(fmt.Errorf("fail to read the image at '%s': %w", rawURL, err))
	}
	span.SetTag("format", format)
	return config.Width, config.Height, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, "s3://") {
		return f.fetchFromS3(ctx, rawURL)
	}

	body, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	payload, err := io.ReadAll(io.LimitReader(body, maxDocumentSize))
	if err != nil {
		return nil, newFetchError(fmt.Errorf("fail to read the body response: %w", err))
	}
	return payload, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (_ io.ReadCloser, err error) {
	span, ctx := ddTracer.StartSpanFromContext(ctx, "Fetcher.get")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, newClientError(fmt.Errorf("invalid url '%s'", rawURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fail to create the HTTP request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, newFetchError(fmt.Errorf("fail to download '%s': %w", rawURL, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, newFetchError(fmt.Errorf("invalid status code '%d' fetching '%s'", resp.StatusCode, rawURL))
	}
	return resp.Body, nil
}

func (f *Fetcher) fetchFromS3(ctx context.Context, rawURL string) (_ []byte, err error) {
	span, ctx := ddTracer.StartSpanFromContext(ctx, "Fetcher.fetchFromS3")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	fragments := strings.SplitN(strings.TrimPrefix(rawURL, "s3://"), "/", 2)
	if len(fragments) < 2 || fragments[0] == "" || fragments[1] == "" {
		return nil, newClientError(fmt.Errorf("invalid s3 url '%s'", rawURL))
	}
	bucket := fragments[0]

	s3Client, err := f.getS3Client(bucket)
	if err != nil {
		return nil, newClientError(fmt.Errorf("fail to get the s3 bucket client: %w", err))
	}

	output, err := s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    aws.String(fragments[1]),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && (awsErr.Code() == s3.ErrCodeNoSuchKey) {
			return nil, newFetchError(fmt.Errorf("object '%s' not found: %w", rawURL, err))
		}
		return nil, newFetchError(fmt.Errorf("fail to get object: %w", err))
	}
	defer output.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(output.Body, maxDocumentSize))
	if err != nil {
		return nil, newFetchError(fmt.Errorf("fail to read the reader: %w", err))
	}
	return payload, nil
}

func (f *Fetcher) getBucketS3Client(bucket string) (s3iface.S3API, error) {
	region, ok := f.StorageBucketRegion[bucket]
	if !ok {
		return nil, fmt.Errorf("can't find the bucket '%s' region", bucket)
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	client, ok := f.s3Clients[region]
	if ok {
		return client, nil
	}

	sess, err := session.NewSession(&aws.Config{HTTPClient: f.HTTPClient, Region: &region})
	if err != nil {
		return nil, fmt.Errorf("fail to start a session on region '%s': %w", region, err)
	}
	sess = awstrace.WrapSession(sess)

	client = s3.New(sess, &aws.Config{HTTPClient: f.HTTPClient})
	f.s3Clients[region] = client
	f.Logger.Debug().Str("region", region).Msg("Created S3 client")
	return client, nil
}
