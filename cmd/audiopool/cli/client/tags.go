package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mwantia/audiopool/internal/session"
	"github.com/mwantia/audiopool/pkg/pool"
)

func NewTagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Manage tags of pooled files",
	}

	cmd.AddCommand(newTagChangeCommand("add", "Add tags to a file", (*pool.Pool).AddTag))
	cmd.AddCommand(newTagChangeCommand("rm", "Remove tags from a file", (*pool.Pool).RemoveTag))

	return cmd
}

func newTagChangeCommand(use, short string, change func(*pool.Pool, string, string) (pool.Entry, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id|path> <tag>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				entry, err := resolve(s.Pool, args[0])
				if err != nil {
					return err
				}
				for _, tag := range args[1:] {
					if entry, err = change(s.Pool, entry.ID, tag); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s]\n", entry.Name, strings.Join(entry.Tags, ", "))
				return nil
			})
		},
	}
}

func NewUsageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Adjust how often a file is referenced",
	}

	cmd.AddCommand(newUsageChangeCommand("inc", "Record one more reference", (*pool.Pool).IncrementUsage))
	cmd.AddCommand(newUsageChangeCommand("dec", "Release one reference", (*pool.Pool).DecrementUsage))

	return cmd
}

func newUsageChangeCommand(use, short string, change func(*pool.Pool, string) (pool.Entry, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id|path>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, s *session.Session) error {
				entry, err := resolve(s.Pool, args[0])
				if err != nil {
					return err
				}
				if entry, err = change(s.Pool, entry.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  used %d time(s)\n", entry.Name, entry.UsageCount)
				return nil
			})
		},
	}
}
