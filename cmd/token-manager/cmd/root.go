// file: cmd/token-manager/cmd/root.go
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const defaultConfigPath = "config/token-manager.yaml"

// AddCommands adds all the subcommands to the root command.
func AddCommands(root *cobra.Command) {
	root.AddCommand(runCmd)
	root.AddCommand(checkCmd)
}

// addConfigFlag registers the --config flag shared by every subcommand
func addConfigFlag(fs *pflag.FlagSet) {
	fs.StringP("config", "c", defaultConfigPath, "Path to the configuration file")
}
