package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newServeCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the viewer HTTP service",
		Long: `Starts the HTTP service. Every viewer session is a resource under /sessions.

The sessions are kept at Redis when REDIS_URL is set and in memory otherwise. Requests must be signed when
URL_SIGNING_SECRET is set.`,
		Example: `  # Start the service on the default address
  iiifviewer serve

  # Start the service on a custom address
  iiifviewer serve --addr :3000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := cfg.logger(os.Stdout)
			if err != nil {
				return err
			}

			client, err := cfg.client(logger)
			if err != nil {
				return err
			}
			waitHandlerAsyncError, waitHandler := wait(cmd.Context(), logger)
			client.AsyncErrorHandler = waitHandlerAsyncError
			client.Interactive = true
			if err := client.Init(); err != nil {
				logger.Err(err).Msg("Fail to initialize the client")
				return err
			}
			client.Start()
			logger.Info().Str("addr", cfg.addr).Msg("Server started")

			exitStatus := waitHandler()
			ctx, ctxCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer ctxCancel()
			if err := client.Stop(ctx); err != nil {
				logger.Err(err).Msg("Fail to stop the client")
				return err
			}
			if exitStatus != 0 {
				os.Exit(exitStatus)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.addr, "addr", "", "address to listen on (env ADDR, default :8080)")
	cmd.Flags().DurationVar(&cfg.sessionTTL, "session-ttl", 0, "session expiration after the last access (env SESSION_TTL, default 1h)")
	cmd.Flags().IntVar(&cfg.stackConcurrency, "stack-concurrency", 4, "concurrent image probes of a choice stack")
	return cmd
}

func wait(ctx context.Context, logger zerolog.Logger) (func(error), func() int) {
	signalChan := make(chan os.Signal, 2)
	var exitStatus int32
	asyncError := func(err error) {
		logger.Error().Err(err).Msg("Async error happened")
		atomic.AddInt32(&exitStatus, 1)
		signalChan <- os.Interrupt
	}
	handler := func() int {
		signal.Notify(signalChan, os.Interrupt)
		defer signal.Stop(signalChan)
		select {
		case <-signalChan:
		case <-ctx.Done():
		}
		return int(atomic.LoadInt32(&exitStatus))
	}
	return asyncError, handler
}
