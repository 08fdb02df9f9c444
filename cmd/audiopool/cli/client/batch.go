package client

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mwantia/audiopool/internal/session"
)

func NewConsolidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate",
		Short: "Copy external files into the project asset folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				report, done := progressBar(cmd.ErrOrStderr(), "Consolidating", len(s.Pool.GetExternalFiles()))
				result, err := s.Pool.Consolidate(ctx, report)
				done()

				return summarize(cmd, result, err, "Consolidated %s into %s", result, s.Pool.AssetDir())
			})
		},
	}
}

func NewAnalyzeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [id|path]",
		Short: "Estimate tempo and key",
		Long:  "Estimate tempo and key of one file, or of every pooled file when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				if len(args) == 1 {
					entry, err := resolve(s.Pool, args[0])
					if err != nil {
						return err
					}
					entry, err = s.Pool.AnalyzeEntry(ctx, entry.ID)
					if a := entry.Analysis; a != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "%s  %.1f BPM  %s  %s  %d Hz  %d ch\n",
							entry.Name, a.BPM, a.Key, a.Duration.Round(time.Millisecond), a.SampleRate, a.Channels)
					}
					return err
				}

				report, done := progressBar(cmd.ErrOrStderr(), "Analyzing", s.Pool.Len())
				result, err := s.Pool.AnalyzeAll(ctx, report)
				done()

				return summarize(cmd, result, err, "Analyzed %s", result)
			})
		},
	}
}

func NewWaveformCommand() *cobra.Command {
	var all bool
	var workers int

	cmd := &cobra.Command{
		Use:   "waveform [id|path]",
		Short: "Generate waveform peaks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("pass either an entry or --all")
			}

			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				if !all {
					entry, err := resolve(s.Pool, args[0])
					if err != nil {
						return err
					}
					data, err := s.Pool.GenerateWaveform(ctx, entry.ID)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %d peaks at %d samples/pixel  %s  (%s)\n",
						entry.Name, len(data.Peaks), data.SamplesPerPixel,
						data.Duration.Round(time.Millisecond), humanize.Bytes(uint64(data.SizeBytes())))
					return nil
				}

				if workers < 1 {
					workers = s.Config().Waveform.Workers
				}
				report, done := progressBar(cmd.ErrOrStderr(), "Rendering", s.Pool.Len())
				result, err := s.Pool.GenerateAllWaveforms(ctx, max(workers, 1), report)
				done()

				return summarize(cmd, result, err, "Generated waveforms: %s, cache holds %s of %s",
					result, humanize.Bytes(uint64(s.Cache.Used())), budget(s.Cache.MaxSize()))
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "generate waveforms for every pooled file")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent loads (default from waveform.workers)")

	return cmd
}

func NewCacheCommand() *cobra.Command {
	var load bool

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Show waveform cache usage",
		Long: `Show the waveform cache budget. With --load every pooled file is rendered
first and the resident entries are listed, least recently used first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				if load {
					if _, err := s.Pool.GenerateAllWaveforms(ctx, max(s.Config().Waveform.Workers, 1), nil); err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "budget:   %s\n", budget(s.Cache.MaxSize()))
				fmt.Fprintf(out, "used:     %s\n", humanize.Bytes(uint64(s.Cache.Used())))
				fmt.Fprintf(out, "entries:  %d\n", s.Cache.Len())
				for _, path := range s.Cache.Paths() {
					if s.Cache.Contains(path) {
						fmt.Fprintf(out, "  %s\n", path)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&load, "load", false, "render every pooled file before reporting")
	return cmd
}

func budget(maxBytes int64) string {
	if maxBytes == 0 {
		return "unlimited"
	}
	return humanize.Bytes(uint64(maxBytes))
}
