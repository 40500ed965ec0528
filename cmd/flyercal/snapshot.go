package main

import (
	"time"

	"github.com/spf13/cobra"

	"flyercal/internal/capture"
)

func newSnapshotCmd(root *rootOptions) *cobra.Command {
	var (
		opts    capture.Options
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture a PNG preview of the running flyer page",
		Long: `Open the flyer page of a running "flyercal serve" in headless Chromium and
save a full-page PNG, e.g. for social media previews. The page URL defaults to
the configured public_url.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if opts.URL == "" {
				opts.URL = cfg.PublicURL
			}
			opts.Timeout = timeout
			return capture.CaptureFlyerPNG(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.OutputPath, "output", "o", "preview.png", "PNG output path")
	f.StringVar(&opts.URL, "url", "", "Page to capture (defaults to public_url)")
	f.IntVar(&opts.Width, "width", capture.DefaultWidth, "Viewport width in pixels")
	f.IntVar(&opts.Height, "height", capture.DefaultHeight, "Viewport height in pixels")
	f.DurationVar(&timeout, "timeout", capture.DefaultTimeout, "Overall capture timeout")
	f.StringVar(&opts.WaitSelector, "wait", capture.DefaultWaitSelector, "CSS selector that marks the page as ready")
	return cmd
}
