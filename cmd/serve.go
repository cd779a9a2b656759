package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/julianfbeck/panopto-relink-cli/internal/server"
)

var (
	serveAddr        string
	serveCORSOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve session lookups over HTTP",
	Long:  `Starts an HTTP server answering /v1/session and /v1/notice for link-repair callers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			logger = logger.Level(zerolog.InfoLevel)
		}
		resolver, cfg, history, err := getResolver()
		if err != nil {
			return err
		}
		defer closeHistory(history)

		corsOpts := server.DefaultCORSOptions(serveCORSOrigins)
		router := server.NewRouter(server.RouterOptions{
			Resolver:       resolver,
			RemediationURL: cfg.RemediationURL,
			Logger:         logger,
			CORSOptions:    &corsOpts,
		})

		srv := &http.Server{
			Addr:              serveAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      timeout + 15*time.Second,
			IdleTimeout:       60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", serveAddr).Msg("starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case sig := <-shutdown:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8080", "Listen address")
	serveCmd.Flags().StringSliceVar(&serveCORSOrigins, "cors-origin", nil, "Allowed CORS origin (repeatable; default any)")
	rootCmd.AddCommand(serveCmd)
}
