package main

import (
	"os"

	"github.com/spf13/cobra"

	"flyercal/internal/config"
	appLog "flyercal/internal/log"
)

const defaultConfigPath = "flyercal.yaml"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "flyercal",
		Short: "Event flyer with live countdowns and calendar export",
		Long: `flyercal serves a single-page event flyer: a slider of upcoming events,
a live countdown per event, "add to calendar" (.ics) downloads, share links
and a WhatsApp RSVP button. Events are read from a YAML file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", envOr("FLYERCAL_CONFIG", defaultConfigPath), "Path to config file")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	cmd.AddCommand(
		newServeCmd(opts),
		newICSCmd(opts),
		newCountdownCmd(opts),
		newCheckCmd(opts),
		newSnapshotCmd(opts),
	)
	return cmd
}

// load reads the config file, applies environment overrides and sets the
// log level. The --log-level flag wins over both.
func (o *rootOptions) load() (*config.Config, error) {
	if o.logLevel != "" {
		appLog.SetLevel(appLog.ParseLevel(o.logLevel))
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", o.configPath)
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		appLog.Error("environment overrides produced an invalid config", err, "config_path", o.configPath)
		return nil, err
	}

	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	appLog.Debug("effective config",
		"config_path", o.configPath,
		"listen", cfg.Listen,
		"public_url", cfg.PublicURL,
		"timezone", cfg.Timezone,
		"log_level", level,
		"strict_ics", cfg.StrictICS,
		"tick", cfg.Tick.String(),
		"events", len(cfg.Events),
	)
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
