// AngelaMos | 2026
// main.go

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "user-admin",
	Short: "User administration backend over a remote user API",
	Long: `Serves a cached, optimistic view of a remote user collection with
filtering, sorting, selection and undoable deletes.

	user-admin serve --config config.yaml
	user-admin ping`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "config.yaml", "path to config file",
	)
	rootCmd.AddCommand(serveCmd, pingCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}
