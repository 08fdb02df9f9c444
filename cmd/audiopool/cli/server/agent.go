package server

import (
	"fmt"

	"github.com/mwantia/audiopool/internal/agent"
	"github.com/spf13/cobra"

	config "github.com/mwantia/audiopool/internal/config/server"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the audio pool agent",
		Long: `Start the audio pool agent.

The agent keeps the pool open, watches pooled files for changes on disk to
drop stale waveforms from the cache and saves the pool periodically and on
shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			return agent.NewAgent(cfg).Serve(cmd.Context())
		},
	}

	return cmd
}
