package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"desirebot/internal/app"
	"desirebot/internal/bot"
	"desirebot/pkg/systemd"
)

type rootFlags struct {
	config string
	debug  bool
	force  bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "desirebot",
		Short: "Reposts what people want, on a randomized schedule",
		Long: `desirebot searches Bluesky for "All you need" / "All I want" style posts and
reposts one result per query, at most every minimum spacing and at least every
maximum spacing. Every mention of the account is liked.

Run it once a minute from cron (desirebot run) or keep it running with
desirebot daemon.

Examples:
  desirebot --debug          # print what a run would do
  desirebot run --force      # post now, ignoring spacing
  desirebot daemon           # run on daemon.schedule
  desirebot state            # show persisted state`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	root.PersistentFlags().StringVar(&f.config, "config", "./desirebot.json", "path to config (json or yaml)")
	root.PersistentFlags().BoolVar(&f.debug, "debug", false, "print actions instead of performing them; nothing is saved")
	root.PersistentFlags().BoolVar(&f.force, "force", false, "post now instead of waiting for randomness")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the bot once (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnce(cmd.Context(), cmd.OutOrStdout(), f)
			},
		},
		&cobra.Command{
			Use:   "daemon",
			Short: "Run the bot on daemon.schedule until interrupted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := app.New(app.Options{ConfigPath: f.config, Debug: f.debug, Force: f.force, Stdout: cmd.OutOrStdout()})
				if err != nil {
					return err
				}
				defer closeApp(a)
				return a.Daemon(cmd.Context())
			},
		},
		newStateCmd(f),
	)
	return root
}

func runOnce(ctx context.Context, out io.Writer, f *rootFlags) error {
	a, err := app.New(app.Options{ConfigPath: f.config, Debug: f.debug, Force: f.force, Stdout: out})
	if err != nil {
		return err
	}
	defer closeApp(a)

	rep, err := a.RunOnce(ctx)
	if f.debug {
		printReport(out, rep)
	}
	return err
}

func printReport(w io.Writer, r bot.Report) {
	fmt.Fprintf(w, "run %s: post=%t reason=%s", r.RunID, r.Decision.Post, r.Decision.Reason)
	if r.Decision.Draw >= 0 {
		fmt.Fprintf(w, " draw=%.4f", r.Decision.Draw)
	}
	fmt.Fprintf(w, " reposts=%d mentions=%d replies=%d\n", len(r.Reposted), r.Mentions, r.Replies)
}

func newStateCmd(f *rootFlags) *cobra.Command {
	var unit string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the persisted bot state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(app.Options{ConfigPath: f.config})
			if err != nil {
				return err
			}
			defer closeApp(a)

			v, err := a.State(cmd.Context())
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), v, time.Now())

			if strings.TrimSpace(unit) != "" {
				st, err := systemd.LookupUnit(cmd.Context(), unit)
				if err != nil {
					return err
				}
				printUnit(cmd.OutOrStdout(), st, time.Now())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "", "also show the systemd unit running the daemon (e.g. desirebot)")
	return cmd
}

func printState(w io.Writer, v app.StateView, now time.Time) {
	st := v.State
	fmt.Fprintf(w, "store:             %s (%s)\n", v.Path, v.Driver)
	if st.LastUpdate > 0 {
		last := time.Unix(st.LastUpdate, 0)
		fmt.Fprintf(w, "last post:         %s (%s)\n", last.Format(time.RFC3339), humanize.RelTime(last, now, "ago", "from now"))
	} else {
		fmt.Fprintln(w, "last post:         never")
	}
	fmt.Fprintf(w, "minimum spacing:   %s%s\n", time.Duration(st.MinimumSpacing)*time.Second, defaulted(v.Defaults.MinimumSpacing || v.Defaults.Clamped))
	fmt.Fprintf(w, "maximum spacing:   %s%s\n", time.Duration(st.MaximumSpacing)*time.Second, defaulted(v.Defaults.MaximumSpacing))
	fmt.Fprintf(w, "probability:       %s%s\n", humanize.FtoaWithDigits(st.TriggerProbability, 5), defaulted(v.Defaults.TriggerProbability))
	if v.Cursor.LastSeenID != "" {
		fmt.Fprintf(w, "last mention:      %s\n", v.Cursor.LastSeenID)
	} else {
		fmt.Fprintln(w, "last mention:      none")
	}
	switch {
	case !v.LastExecuted.IsZero():
		fmt.Fprintf(w, "last executed:     %s (%s)\n", v.LastExecuted.Format(time.RFC3339), humanize.RelTime(v.LastExecuted, now, "ago", "from now"))
	case v.LastExecutedRaw != "":
		fmt.Fprintf(w, "last executed:     %s\n", v.LastExecutedRaw)
	default:
		fmt.Fprintln(w, "last executed:     never")
	}
}

func printUnit(w io.Writer, st systemd.UnitStatus, now time.Time) {
	if !st.Found() {
		fmt.Fprintf(w, "unit %s:  not found\n", st.Name)
		return
	}
	fmt.Fprintf(w, "unit %s:  %s (%s)", st.Name, st.Active, st.SubState)
	if !st.ActiveSince.IsZero() && st.Active == "active" {
		fmt.Fprintf(w, " since %s", humanize.RelTime(st.ActiveSince, now, "ago", "from now"))
	}
	fmt.Fprintln(w)
}

func defaulted(b bool) string {
	if b {
		return " (default)"
	}
	return ""
}

func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.Close(ctx)
}
