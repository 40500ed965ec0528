package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"flyercal/internal/config"
	"flyercal/internal/ics"
	appLog "flyercal/internal/log"
	"flyercal/internal/model"
	"flyercal/internal/recur"
)

func newICSCmd(root *rootOptions) *cobra.Command {
	var (
		output string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "ics <event-id>",
		Short: "Write the .ics payload of one event",
		Long: `Write the iCalendar payload of one event to stdout, or to a file with -o.
Recurring events export their next occurrence.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strict") {
				cfg.StrictICS = strict
			}

			payload, ev, err := renderEvent(cfg, args[0], time.Now())
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(payload)
				return err
			}
			if output == "." {
				output = ics.FileName(ev, len(cfg.Events), cfg.ICSFileName)
			}
			if err := os.WriteFile(output, payload, 0o644); err != nil {
				return fmt.Errorf("ics: write %s: %w", output, err)
			}
			appLog.Info("calendar file written", "event_id", args[0], "path", output, "bytes", len(payload))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", `Output file ("." for the suggested file name)`)
	cmd.Flags().BoolVar(&strict, "strict", false, "Reject line breaks and escape TEXT values")
	return cmd
}

// renderEvent renders the payload for the event's occurrence at now.
func renderEvent(cfg *config.Config, id string, now time.Time) ([]byte, model.CalendarEvent, error) {
	rec, err := cfg.Record(id)
	if err != nil {
		return nil, model.CalendarEvent{}, err
	}
	ev, err := model.CalendarEventFor(recur.Occurrence(rec, now), cfg.DefaultDuration)
	if err != nil {
		return nil, ev, err
	}
	payload, err := ics.Render(ev, ics.Options{
		ProductID: cfg.ProductID,
		Lang:      cfg.Lang,
		Strict:    cfg.StrictICS,
	})
	return payload, ev, err
}
