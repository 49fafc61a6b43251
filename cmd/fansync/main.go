// Command fansync mirrors a source directory tree into one or more
// destination directories, copying only files that are newer than their
// destination counterpart.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"fansync.io/fansync/pkg/buildinfo"
	"fansync.io/fansync/pkg/flog"
	"fansync.io/fansync/pkg/profile"
	"fansync.io/fansync/pkg/report"
	"fansync.io/fansync/pkg/syncengine"
	"fansync.io/fansync/pkg/util"
)

type syncOptions struct {
	profilePath  string
	source       string
	destinations []string
	dryRun       bool
	workers      int
	reportPath   string
	quiet        bool
}

// resolveProfile merges the profile file (when given) with the command-line
// flags. Flags win over profile values, matching the usual
// file-then-override configuration order.
func resolveProfile(cmd *cobra.Command, opts *syncOptions) (profile.Profile, error) {
	var p profile.Profile
	if opts.profilePath != "" {
		loaded, err := profile.Load(opts.profilePath)
		if err != nil {
			return profile.Profile{}, err
		}
		p = loaded
	}

	if opts.source != "" {
		p.Source = opts.source
	}
	if len(opts.destinations) > 0 {
		p.Destinations = opts.destinations
	}
	if cmd.Flags().Changed("dry-run") {
		p.DryRun = opts.dryRun
	}

	if err := p.Validate(); err != nil {
		return profile.Profile{}, err
	}

	expandedSource, err := util.ExpandPath(p.Source)
	if err != nil {
		return profile.Profile{}, err
	}
	p.Source = expandedSource

	for i, dest := range p.Destinations {
		expanded, err := util.ExpandPath(dest)
		if err != nil {
			return profile.Profile{}, err
		}
		p.Destinations[i] = expanded
	}
	return p, nil
}

func runSync(cmd *cobra.Command, opts *syncOptions) error {
	flog.SetQuiet(opts.quiet)

	p, err := resolveProfile(cmd, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	run, err := syncengine.Start(ctx, syncengine.Request{
		Source:       p.Source,
		Destinations: p.Destinations,
		DryRun:       p.DryRun,
		Workers:      opts.workers,
	})
	if err != nil {
		return err
	}

	// First interrupt requests cooperative cancellation; a second one forces
	// an immediate exit.
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		flog.Warn("Cancellation requested, letting in-flight copies finish (interrupt again to force quit)")
		run.Cancel()
		<-sigChan
		os.Exit(130)
	}()

	total := 0
	completed := 0
	finalState := syncengine.Idle
	for event := range run.Events() {
		switch e := event.(type) {
		case syncengine.LogMessage:
			flog.Info(e.Text)
		case syncengine.TotalDiscovered:
			total = e.Count
		case syncengine.FileCompleted:
			completed++
		case syncengine.Finished:
			finalState = e.State
		}
	}
	runErr := run.Wait()

	if opts.reportPath != "" {
		rep := report.FromRun(p.Source, p.Destinations, p.DryRun, run)
		if err := report.Write(opts.reportPath, rep); err != nil {
			flog.Warn("Could not write run report", "path", opts.reportPath, "error", err)
		} else {
			flog.Info("Run report written", "path", opts.reportPath)
		}
	}

	if !opts.quiet {
		printSummary(cmd, run, finalState, total, completed, time.Since(start))
	}

	if runErr != nil {
		return runErr
	}
	if finalState == syncengine.Failed {
		return fmt.Errorf("sync run failed")
	}
	return nil
}

// printSummary renders the end-of-run counters as a table.
func printSummary(cmd *cobra.Command, run *syncengine.Run, state syncengine.State, total, completed int, elapsed time.Duration) {
	m := run.Metrics()

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetTitle("Sync summary")
	t.AppendRows([]table.Row{
		{"State", state.String()},
		{"Files scanned", m.FilesScanned.Load()},
		{"Tasks planned", total},
		{"Files completed", completed},
		{"Files failed", m.FilesFailed.Load()},
		{"Tasks dropped", m.TasksDropped.Load()},
		{"Bytes copied", m.BytesCopied.Load()},
		{"Elapsed", elapsed.Round(time.Millisecond)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	t.Render()
}

func newRootCmd() *cobra.Command {
	opts := &syncOptions{}

	rootCmd := &cobra.Command{
		Use:   "fansync",
		Short: "Mirror a directory tree into one or more destinations",
		Long: "fansync performs a one-way, timestamp-based incremental sync from a source\n" +
			"directory into one or more destination directories. Files are copied only\n" +
			"when the destination copy is missing or strictly older than the source.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	rootCmd.Flags().StringVarP(&opts.profilePath, "profile", "p", "", "Path to a sync profile JSON file")
	rootCmd.Flags().StringVarP(&opts.source, "source", "s", "", "Source directory to sync from (overrides profile)")
	rootCmd.Flags().StringArrayVarP(&opts.destinations, "dest", "d", nil, "Destination directory; repeatable (overrides profile)")
	rootCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Report planned copies without touching the filesystem")
	rootCmd.Flags().IntVar(&opts.workers, "workers", 0, "Number of copy workers (0 = number of CPUs)")
	rootCmd.Flags().StringVar(&opts.reportPath, "report", "", "Write a JSON run report to this path (.gz and .zst compress)")
	rootCmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress informational output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the fansync version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", buildinfo.Name, buildinfo.Version)
		},
	})

	rootCmd.AddCommand(newSaveProfileCmd())

	return rootCmd
}

// newSaveProfileCmd writes the flags of a run out as a reusable profile.
func newSaveProfileCmd() *cobra.Command {
	var source string
	var destinations []string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "save-profile <path>",
		Short: "Write a sync profile JSON file from flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := profile.Profile{Source: source, Destinations: destinations, DryRun: dryRun}
			if err := p.Validate(); err != nil {
				return err
			}
			if err := profile.Save(args[0], p); err != nil {
				return err
			}
			flog.Info("Profile saved", "path", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source directory")
	cmd.Flags().StringArrayVarP(&destinations, "dest", "d", nil, "Destination directory; repeatable")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Mark the profile as dry-run")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		flog.Error("fansync exited with error", "error", err)
		os.Exit(1)
	}
}
