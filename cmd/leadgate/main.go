// Command leadgate ingests sales leads and enriches them through the
// model-driven gateway orchestrator.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opentalon/leadgate/internal/version"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "leadgate",
	Short: "Lead intake and enrichment service",
	Long: `leadgate stores inbound sales leads and enriches each one by letting a
language model call registry lookup, requirement classification and company
search capabilities.`,
	Version:       version.Get().String(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "leadgate.yaml", "path to config file")
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	rootCmd.AddCommand(serveCmd, analyzeCmd, invokeCmd, infoCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get())
	},
}
