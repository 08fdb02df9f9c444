package main

import (
	"fmt"
	"os"

	"github.com/mwantia/audiopool/cmd/audiopool/cli"
	"github.com/mwantia/audiopool/cmd/audiopool/cli/client"
	"github.com/mwantia/audiopool/cmd/audiopool/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	root := cli.NewRootCommand(cli.VersionInfo{
		Version: version,
		Commit:  commit,
	})

	root.AddCommand(cli.NewVersionCommand())

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewConfigCommand())

	client.AddCommands(root)

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
