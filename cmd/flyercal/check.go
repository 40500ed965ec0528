package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"flyercal/internal/ics"
	appLog "flyercal/internal/log"
	"flyercal/internal/recur"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	var remote string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config and every event's calendar export",
		Long: `Load and validate the config, then render every event's .ics payload and
parse it back to make sure calendar apps will accept it. With --remote the
payloads are downloaded from a running server instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			now := time.Now()

			records, err := cfg.Records()
			if err != nil {
				return err
			}

			var fetcher *ics.Fetcher
			if remote != "" {
				var opts []ics.FetcherOption
				if cfg.BasicAuth != nil {
					opts = append(opts, ics.WithBasicAuth(cfg.BasicAuth.Username, cfg.BasicAuth.Password))
				}
				fetcher = ics.NewFetcher(opts...)
			}

			var failed int
			for _, rec := range records {
				payload, ev, err := renderEvent(cfg, rec.ID, now)
				if err == nil && fetcher != nil {
					var res ics.FetchResult
					res, err = fetcher.Fetch(cmd.Context(), calendarURL(remote, rec.ID))
					payload = res.Body
				}
				if err == nil {
					err = verifyPayload(payload, ev.Start, ev.End)
				}
				if err != nil {
					failed++
					appLog.Warn("event failed check", "event_id", rec.ID, "error", err.Error())
					fmt.Fprintf(out, "FAIL %s: %v\n", rec.ID, err)
					continue
				}

				line := fmt.Sprintf("ok   %s %s -> %s", rec.ID, ics.FormatTimestamp(ev.Start), ics.FormatTimestamp(ev.End))
				if rec.Recurring() {
					next, err := recur.Between(rec, now, now.AddDate(0, 3, 0), 0)
					if err == nil {
						line += fmt.Sprintf(" (%d upcoming in 3 months)", len(next))
					}
				}
				fmt.Fprintln(out, line)
			}

			if failed > 0 {
				return fmt.Errorf("check: %d of %d events failed", failed, len(records))
			}
			fmt.Fprintf(out, "%d events ok\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "", "Base URL of a running server to verify, e.g. https://flyer.example/")
	return cmd
}

func calendarURL(base, id string) string {
	return strings.TrimRight(base, "/") + "/api/events/" + url.PathEscape(id) + "/calendar.ics"
}

// verifyPayload parses payload back and compares the instants it carries.
func verifyPayload(payload []byte, start, end time.Time) error {
	parsed, err := ics.Parse(payload)
	if err != nil {
		return err
	}
	if len(parsed.Events) != 1 {
		return fmt.Errorf("expected 1 VEVENT, got %d", len(parsed.Events))
	}
	got := parsed.Events[0]
	if !got.Start.Equal(start.Truncate(time.Second)) || !got.End.Equal(end.Truncate(time.Second)) {
		return errors.New("round-tripped instants differ")
	}
	return nil
}
