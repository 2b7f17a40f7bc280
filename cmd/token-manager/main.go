// file: cmd/token-manager/main.go
package main

import (
	"os"

	"github.com/spf13/cobra"

	"token-manager/cmd/token-manager/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "token-manager",
	Short: "Keeps OAuth2 bearer tokens fresh for every configured client registration.",
	Long: `token-manager resolves the oauth2 client registrations in its configuration,
fetches a token for each with the client-credentials grant (or a custom HTTP
endpoint), and refreshes every token shortly before it expires. Refreshed tokens
can be published to a NATS KV bucket for other processes to read.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	cmd.AddCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, so we just need to exit
		os.Exit(1)
	}
}
