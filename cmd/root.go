/*
epideploy - a clean CLI for automating DXP cloud deployments
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"epideploy/shared"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

var (
	flagProjectID string
	flagJSON      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "epideploy",
	Short: "CLI for automating deployments against the DXP cloud API",
	Long: fmt.Sprintf(`%s

Deploy packages, watch deployments through to completion, and manage
credentials for the DXP cloud deployment API, from your terminal or CI.

%s
%s  Sign in once, credentials live in your OS keychain
%s  Build and upload deployable packages
%s  Start and watch deployments with live progress
%s  Ship end to end with a single command

%s Run '%s' to see available commands.
`,
		bold("🚀 epideploy"),
		bold("Features:"),
		green("✓"),
		green("✓"),
		green("✓"),
		green("✓"),
		yellow("👋 Tip:"),
		cyan("epideploy --help"),
	),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// CI setups keep EPIDEPLOY_* in a local .env; missing file is fine
		_ = godotenv.Load()
		if flagJSON {
			shared.Quiet(true)
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\n%s %s\n\n", red("❌ Error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProjectID, "project-id", "", "Project GUID (defaults to stored credentials or config)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
}
