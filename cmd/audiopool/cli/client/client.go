// Package client holds the commands that work on the pool of a project
// directly, without a running agent.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	config "github.com/mwantia/audiopool/internal/config/server"
	"github.com/mwantia/audiopool/internal/session"
	"github.com/mwantia/audiopool/pkg/errdefs"
	"github.com/mwantia/audiopool/pkg/log"
	"github.com/mwantia/audiopool/pkg/pool"
)

// AddCommands registers every pool command on root.
func AddCommands(root *cobra.Command) {
	root.AddCommand(NewAddCommand())
	root.AddCommand(NewListCommand())
	root.AddCommand(NewSearchCommand())
	root.AddCommand(NewRemoveCommand())
	root.AddCommand(NewPruneCommand())
	root.AddCommand(NewRelinkCommand())
	root.AddCommand(NewTagCommand())
	root.AddCommand(NewUsageCommand())
	root.AddCommand(NewConsolidateCommand())
	root.AddCommand(NewAnalyzeCommand())
	root.AddCommand(NewWaveformCommand())
	root.AddCommand(NewCacheCommand())
}

// withSession opens the configured pool, runs fn and saves whatever fn
// changed, even when fn failed halfway through a batch.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session.Session) error) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	logger := log.NewLoggerService("audiopool", cfg.Log)
	s, err := session.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	runErr := fn(ctx, s)

	if _, err := s.SaveIfDirty(context.WithoutCancel(ctx)); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// resolve finds an entry by id, unique id prefix or path.
func resolve(p *pool.Pool, ref string) (pool.Entry, error) {
	if entry, err := p.Get(ref); err == nil {
		return entry, nil
	}
	if entry, err := p.GetByPath(ref); err == nil {
		return entry, nil
	}

	var matches []pool.Entry
	if len(ref) >= 4 {
		for _, entry := range p.Entries() {
			if strings.HasPrefix(entry.ID, ref) {
				matches = append(matches, entry)
			}
		}
	}

	switch len(matches) {
	case 0:
		return pool.Entry{}, fmt.Errorf("'%s': %w", ref, errdefs.ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return pool.Entry{}, fmt.Errorf("'%s' matches %d entries: %w", ref, len(matches), errdefs.ErrInvalidArgument)
}

// progressBar renders batch progress for total items. The returned function
// completes the bar and must be called once the batch is over.
func progressBar(out io.Writer, name string, total int) (pool.ProgressFunc, func()) {
	if total == 0 {
		return nil, func() {}
	}

	p := mpb.New(mpb.WithOutput(out), mpb.WithWidth(64))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name+": "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)

	report := func(fraction float64) {
		bar.SetCurrent(int64(math.Round(fraction * float64(total))))
	}
	done := func() {
		bar.SetTotal(-1, true)
		p.Wait()
	}
	return report, done
}

func printFailures(w io.Writer, result pool.BatchResult) {
	for _, f := range result.Failures {
		fmt.Fprintf(w, "  failed %s: %v\n", f.Path, f.Err)
	}
}

// summarize prints the outcome of a batch, including one that stopped early
// with err, and returns the error the command should exit with.
func summarize(cmd *cobra.Command, result pool.BatchResult, err error, format string, args ...any) error {
	if err != nil && result.Total == 0 {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
	printFailures(cmd.ErrOrStderr(), result)
	if err != nil {
		return err
	}
	return batchError(result)
}

// batchError turns a partially failed batch into a command error.
func batchError(result pool.BatchResult) error {
	if len(result.Failures) == 0 {
		return nil
	}
	return fmt.Errorf("%s", result)
}
