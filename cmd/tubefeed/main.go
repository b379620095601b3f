// Command tubefeed is the scripting front-end: sync, cache cleanup, viewed
// marks and config inspection, with exit codes for shell use.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tubefeed"
	"tubefeed/internal/config"
	"tubefeed/internal/logging"
)

const (
	exitOK = iota
	exitFailure
	exitConfig
)

type options struct {
	configPath  string
	sync        bool
	cleanCache  bool
	force       bool
	viewed      string
	unviewed    bool
	printConfig bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opts options

	cmd := &cobra.Command{
		Use:           "tubefeed",
		Short:         "Personal aggregator for YouTube channel feeds",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config-file", "c", config.DefaultConfigPath(), "config file path")
	flags.BoolVarP(&opts.sync, "sync", "s", false, "run one sync pass")
	flags.BoolVar(&opts.cleanCache, "clean-cache", false, "hard-delete watched entries and compact the db")
	flags.BoolVarP(&opts.force, "force", "F", false, "with --clean-cache, also reclaim deleted entries")
	flags.StringVarP(&opts.viewed, "viewed", "v", "", "mark an entry/channel id or 'all' as viewed")
	flags.BoolVarP(&opts.unviewed, "unviewed", "u", false, "print the unviewed entries total")
	flags.BoolVar(&opts.printConfig, "print-config", false, "print the resolved config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERR: %v\n", err)
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			return exitConfig
		}
		return exitFailure
	}
	return exitOK
}

func dispatch(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	if opts.printConfig {
		dump, err := cfg.Dump()
		if err != nil {
			return err
		}
		fmt.Print(string(dump))
		return nil
	}

	log := logging.New(cfg.Logger)
	feeder, err := tubefeed.NewFeeder(cfg, log)
	if err != nil {
		return err
	}
	defer feeder.Close()

	switch {
	case opts.sync:
		added, err := feeder.SyncEntries(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d new entries since last sync\n", added)
		return nil

	case opts.cleanCache:
		removed, err := feeder.CleanCache(ctx, opts.force)
		if err != nil {
			return err
		}
		fmt.Printf("%d entries removed\n", removed)
		return nil

	case opts.viewed != "":
		return markViewed(ctx, feeder, opts.viewed)

	case opts.unviewed:
		if err := feeder.RefreshStats(ctx); err != nil {
			return err
		}
		count, err := feeder.UnwatchedCount(ctx)
		if err != nil {
			return err
		}
		fmt.Println(count)
		return nil
	}

	return errors.New("nothing to do, see --help")
}

// markViewed accepts 'all', an 11-char entry id or a 24-char channel id.
func markViewed(ctx context.Context, feeder *tubefeed.Feeder, target string) error {
	switch {
	case target == "all":
		return feeder.MarkAllAsWatched(ctx, false)
	case len(target) == 24:
		return feeder.MarkChannelAsWatched(ctx, target, false)
	case len(target) == 11:
		return feeder.MarkEntryAsWatched(ctx, target, false)
	}
	return fmt.Errorf("invalid --viewed target %q", target)
}
