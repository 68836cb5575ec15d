package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	ddHTTP "gopkg.in/DataDog/dd-trace-go.v1/contrib/net/http"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/nitro/iiifviewer/internal/repository"
	"github.com/nitro/iiifviewer/internal/service"
	"github.com/nitro/iiifviewer/internal/transport"
)

type sessionStorage interface {
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader) error
}

// Client holds the logic to bootstrap the application.
type Client struct {
	Logger              zerolog.Logger
	AsyncErrorHandler   func(error)
	URLSigningSecret    string
	EnableDatadog       bool
	StorageBucketRegion map[string]string
	RedisURL            string
	RedisUsername       string
	RedisPassword       string
	SessionSecret       string
	SessionTTL          time.Duration
	Addr                string
	Interactive         bool
	StackConcurrency    int

	httpClient     *http.Client
	serviceFetcher service.Fetcher
	serviceViewer  service.Viewer
	memoryStorage  service.MemoryStorage
	redisClient    *repository.RedisClient
	serviceCipher  service.Cipher
	sessions       service.Sessions
	server         transport.Server
}

// InitViewer initializes the viewer alone, which is all the command line front ends need.
func (c *Client) InitViewer() error {
	c.httpClient = &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
	if c.EnableDatadog {
		c.httpClient = ddHTTP.WrapClient(c.httpClient)
	}

	c.serviceFetcher.HTTPClient = c.httpClient
	c.serviceFetcher.Logger = c.Logger
	c.serviceFetcher.StorageBucketRegion = c.StorageBucketRegion
	if err := c.serviceFetcher.Init(); err != nil {
		return fmt.Errorf("fail to initialize service fetcher: %w", err)
	}

	c.serviceViewer.Fetcher = &c.serviceFetcher
	c.serviceViewer.Logger = c.Logger
	c.serviceViewer.Interactive = c.Interactive
	c.serviceViewer.StackConcurrency = c.StackConcurrency
	if err := c.serviceViewer.Init(); err != nil {
		return fmt.Errorf("fail to initialize service viewer: %w", err)
	}
	return nil
}

// Viewer returns the initialized viewer.
func (c *Client) Viewer() *service.Viewer {
	return &c.serviceViewer
}

// Init the client internal state.
func (c *Client) Init() (err error) {
	if c.SessionTTL <= 0 {
		return errors.New("the session ttl must be positive")
	}

	if err := c.InitViewer(); err != nil {
		return err
	}

	if c.EnableDatadog {
		tracer.Start(
			tracer.WithService(serviceName),
			tracer.WithHTTPClient(c.httpClient),
			tracer.WithLogger(datadogLogger{logger: c.Logger}),
			tracer.WithRuntimeMetrics(),
		)
		defer func() {
			if err != nil {
				tracer.Stop()
			}
		}()
	}

	storage, err := c.initStorage()
	if err != nil {
		return err
	}

	c.sessions.Storage = storage
	c.sessions.Viewer = &c.serviceViewer
	if err := c.sessions.Init(); err != nil {
		return fmt.Errorf("fail to initialize the sessions: %w", err)
	}

	c.server.Logger = c.Logger
	c.server.AsyncErrorHandler = c.AsyncErrorHandler
	c.server.TraceExtractor = traceLogger(c.EnableDatadog)
	c.server.SessionService = &c.sessions
	c.server.ViewerService = &c.serviceViewer
	c.server.URLSigningSecret = c.URLSigningSecret
	c.server.Addr = c.Addr
	if err := c.server.Init(); err != nil {
		return fmt.Errorf("fail to initialize the transport server: %w", err)
	}

	return nil
}

// initStorage picks Redis when configured and the process memory otherwise. The snapshots are encrypted when a
// session secret is set.
func (c *Client) initStorage() (storage sessionStorage, err error) {
	if c.RedisURL != "" {
		redisClient, err := repository.NewRedisClient(
			c.RedisURL, c.RedisUsername, c.RedisPassword, c.SessionTTL, c.EnableDatadog,
		)
		if err != nil {
			return nil, fmt.Errorf("fail to initialize the redis client: %w", err)
		}
		c.redisClient = &redisClient
		storage = redisClient
	} else {
		c.Logger.Warn().Msg("No Redis configured, the sessions are kept in memory")
		c.memoryStorage.TTL = c.SessionTTL
		if err := c.memoryStorage.Init(); err != nil {
			return nil, fmt.Errorf("fail to initialize the memory storage: %w", err)
		}
		storage = &c.memoryStorage
	}

	if c.SessionSecret == "" {
		return storage, nil
	}
	c.serviceCipher.Secret = c.SessionSecret
	c.serviceCipher.Storage = storage
	if err := c.serviceCipher.Init(); err != nil {
		return nil, fmt.Errorf("fail to initialize service cipher: %w", err)
	}
	return c.serviceCipher, nil
}

// Start the client.
func (c *Client) Start() {
	c.server.Start()
}

// Stop the client.
func (c *Client) Stop(ctx context.Context) error {
	defer tracer.Stop()
	if err := c.server.Stop(ctx); err != nil {
		return fmt.Errorf("fail to stop the server: %w", err)
	}
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			return fmt.Errorf("fail to close the redis client: %w", err)
		}
	}
	return nil
}
