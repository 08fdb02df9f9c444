package client

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mwantia/audiopool/internal/session"
	"github.com/mwantia/audiopool/pkg/pool"
)

func NewAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>...",
		Short: "Add audio files to the pool",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				result, entries := s.Pool.AddFiles(args)
				out := cmd.OutOrStdout()
				for _, entry := range entries {
					fmt.Fprintf(out, "%s  %s\n", entry.ID, entry.Path)
				}
				printFailures(cmd.ErrOrStderr(), result)
				return batchError(result)
			})
		},
	}
}

func NewListCommand() *cobra.Command {
	var unused, external, missing, long bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List pooled files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				var entries []pool.Entry
				switch {
				case unused:
					entries = s.Pool.GetUnusedFiles()
				case external:
					entries = s.Pool.GetExternalFiles()
				case missing:
					entries = s.Pool.GetMissingFiles()
				default:
					entries = s.Pool.Entries()
				}
				printEntries(cmd.OutOrStdout(), entries, long)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&unused, "unused", false, "only files with a usage count of zero")
	cmd.Flags().BoolVar(&external, "external", false, "only files outside the asset folder")
	cmd.Flags().BoolVar(&missing, "missing", false, "only files that no longer exist")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show size, usage, tags and analysis")
	cmd.MarkFlagsMutuallyExclusive("unused", "external", "missing")

	return cmd
}

func NewSearchCommand() *cobra.Command {
	var long bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search file names and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				printEntries(cmd.OutOrStdout(), s.Pool.Search(args[0]), long)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "show size, usage, tags and analysis")
	return cmd
}

func NewRemoveCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <id|path>",
		Short: "Remove a file from the pool",
		Long: `Remove a file from the pool. The file itself stays on disk.

Files that are still in use are only removed with --force; references to
them must then be cleaned up by whoever holds them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				entry, err := resolve(s.Pool, args[0])
				if err != nil {
					return err
				}
				if _, err := s.Pool.RemoveFile(entry.ID, force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", entry.Path)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "remove even if the file is in use")
	return cmd
}

func NewPruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove every unused file from the pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				removed := s.Pool.RemoveUnusedFiles()
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d unused file(s)\n", removed)
				return nil
			})
		},
	}
}

func NewRelinkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "relink <id|path> <new-path>",
		Short: "Point an entry at another file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				entry, err := resolve(s.Pool, args[0])
				if err != nil {
					return err
				}
				updated, err := s.Pool.ReplaceFile(entry.ID, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s -> %s\n", updated.ID, entry.Path, updated.Path)
				return nil
			})
		},
	}
}

func printEntries(w io.Writer, entries []pool.Entry, long bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if !long {
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\n", e.ID[:8], e.Path)
		}
		return
	}

	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tUSED\tEXT\tBPM\tKEY\tTAGS\tADDED")
	for _, e := range entries {
		bpm, key := "-", "-"
		if a := e.Analysis; a != nil {
			if a.BPM > 0 {
				bpm = fmt.Sprintf("%.1f", a.BPM)
			}
			if a.Key != "" {
				key = a.Key
			}
		}
		ext := ""
		if e.IsExternal {
			ext = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ID[:8], e.Name, humanize.Bytes(uint64(e.Size)), e.UsageCount, ext,
			bpm, key, joinTags(e.Tags), humanize.Time(e.AddedAt))
	}
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, ",")
}
