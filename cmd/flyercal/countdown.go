package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"flyercal/internal/countdown"
	"flyercal/internal/model"
	"flyercal/internal/recur"
	"flyercal/internal/share"
)

func newCountdownCmd(root *rootOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "countdown [event-id]",
		Short: "Print the countdown to an event",
		Long: `Print the time left until an event starts, once per tick, until it is
reached or interrupted. Without an event id the countdown of every event is
printed once.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			now := time.Now()

			if len(args) == 0 {
				records, err := cfg.Records()
				if err != nil {
					return err
				}
				for _, rec := range records {
					target := recur.MustNextStart(rec, now)
					printCountdown(out, rec, target, countdown.ComputeTimeLeft(target, now), cfg.Location())
				}
				return nil
			}

			rec, err := cfg.Record(args[0])
			if err != nil {
				return err
			}
			target := recur.MustNextStart(rec, now)
			if once {
				printCountdown(out, rec, target, countdown.ComputeTimeLeft(target, now), cfg.Location())
				return nil
			}

			ticker := countdown.NewTicker(countdown.WithInterval(cfg.Tick))
			defer ticker.Close()

			// Ticks run on cron goroutines; serialize writes to out.
			var mu sync.Mutex
			watch := ticker.WatchUntilZero(target, func(tl model.TimeLeft) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "\r%s %s ", countdown.Header, countdown.Format(tl))
			})

			select {
			case <-cmd.Context().Done():
			case <-watch.Done():
			}
			watch.Stop()

			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Print a single value and exit")
	return cmd
}

func printCountdown(w io.Writer, rec model.EventRecord, target time.Time, tl model.TimeLeft, loc *time.Location) {
	fmt.Fprintf(w, "%-10s %-32s %-26s %s %s\n",
		rec.ID, rec.Title, share.DisplayDate(target, loc), countdown.Header, countdown.Format(tl))
}
