package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"duckstack/internal/server"
)

func (a *app) newServer(g prometheus.Gatherer) *server.Server {
	return server.New(server.Options{
		Dir:               a.cfg.OutputDir,
		Logger:            a.logger,
		Gatherer:          g,
		RequestsPerSecond: a.cfg.RateLimitRPS,
		Burst:             a.cfg.RateLimitBurst,
	})
}

// listenAddr returns the --addr flag when given, the configured address otherwise.
func (a *app) listenAddr(cmd *cobra.Command, flagValue string) string {
	if cmd.Flags().Changed("addr") {
		return flagValue
	}
	return a.cfg.ListenAddr
}

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rendered dashboards over HTTP",
		Long: "Serves the dashboards in the output directory as HTML pages and a JSON API " +
			"(/api/dashboards). Files are read on every request. Use watch --addr to serve while refreshing.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd); err != nil {
				return err
			}
			return a.newServer(nil).ListenAndServe(cmd.Context(), a.listenAddr(cmd, addr))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from DUCKSTACK_LISTEN_ADDR, else :8080)")
	return cmd
}
