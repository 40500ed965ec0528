package main

import (
	"github.com/spf13/cobra"

	"flyercal/internal/countdown"
	appLog "flyercal/internal/log"
	"flyercal/internal/web"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the flyer page and its API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ticker := countdown.NewTicker(countdown.WithInterval(cfg.Tick))
			defer ticker.Close()

			srv, err := web.NewServer(cfg, ticker)
			if err != nil {
				return err
			}

			appLog.Info("flyercal starting", "version", version, "listen", cfg.Listen, "public_url", cfg.PublicURL)
			if err := srv.Start(cmd.Context()); err != nil {
				appLog.Error("HTTP server stopped", err)
				return err
			}
			appLog.Info("flyercal exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}
