// ABOUTME: CLI command for serving the local database over HTTP.
// ABOUTME: Exposes the tracker API routes so other devices can use the http backend.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/tracker/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveToken   string
	serveMetrics bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local database over HTTP",
	Long: `Serve the local database with the same routes the http backend talks to.

Another device can then point at it:

  tracker config set api_url http://host:8080
  tracker config set backend http

Set --token (or TRACKER_TOKEN) to require a bearer token. --metrics exposes
Prometheus metrics at /metrics. /healthz answers 204 while serving.

EXAMPLES:

  tracker serve
  tracker serve --addr :9000 --token secret --metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		token := serveToken
		if token == "" {
			token = cfg.Token
		}
		srv := server.New(store, server.Options{Token: token, Metrics: serveMetrics})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return srv.ListenAndServe(ctx, serveAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "bearer token clients must present")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", false, "expose Prometheus metrics at /metrics")
	rootCmd.AddCommand(serveCmd)
}
