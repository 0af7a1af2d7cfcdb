package cmd

import (
	"github.com/spf13/cobra"

	"epideploy/internal/deploy"
	"epideploy/internal/packaging"
)

var (
	shipTarget      string
	shipSource      string
	shipPackage     string
	shipSourceDir   string
	shipType        string
	shipPrefix      string
	shipVersion     string
	shipDBType      string
	shipSourceApp   string
	shipMaintenance bool
	shipKeep        bool
)

var shipCmd = &cobra.Command{
	Use:     "ship",
	Aliases: []string{"deploy"},
	Short:   "Build, upload, deploy, and verify in one command",
	Long: `The whole pipeline in one shot: archive a source directory (or take a
pre-built package), upload it, start a deployment to the target
environment, watch it through to a terminal state, and complete it
automatically if it pauses for verification.

Interrupting with Ctrl-C stops the watch; the deployment itself keeps
running server side and can be picked up again with
'epideploy deployment watch'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		project, err := s.requireProject()
		if err != nil {
			return err
		}

		ctx, cancel := interruptibleContext(cmd.Context())
		defer cancel()

		opts := deploy.ShipOptions{
			ProjectID:         project,
			TargetEnvironment: shipTarget,
			SourceEnvironment: shipSource,
			PackagePath:       shipPackage,
			SourceDir:         shipSourceDir,
			PackageType:       packaging.PackageType(shipType),
			Prefix:            shipPrefix,
			Version:           shipVersion,
			DBType:            shipDBType,
			SourceApp:         shipSourceApp,
			KeepArtifact:      shipKeep,
			Watch: deploy.WatchOptions{
				Interval:         deploy.ClampInterval(watchInterval),
				ContinueOnErrors: watchContinueOnErrors,
			},
		}
		if cmd.Flags().Changed("maintenance-page") {
			opts.UseMaintenancePage = &shipMaintenance
		}

		final, err := deploy.New(s.client, nil).Ship(ctx, opts)
		if err != nil {
			return err
		}
		return emit(final)
	},
}

func init() {
	shipCmd.Flags().StringVar(&shipTarget, "target", "", "Target environment (required)")
	shipCmd.Flags().StringVar(&shipSource, "source", "", "Source environment to copy from instead of a package")
	shipCmd.Flags().StringVar(&shipPackage, "package", "", "Pre-built package file to ship as-is")
	shipCmd.Flags().StringVar(&shipSourceDir, "source-dir", "", "Directory to archive into a fresh package")
	shipCmd.Flags().StringVar(&shipType, "type", "cms", "Package type when building: cms, commerce, head, or sqldb")
	shipCmd.Flags().StringVar(&shipPrefix, "prefix", "", "Optional package name prefix")
	shipCmd.Flags().StringVar(&shipVersion, "version", "", "Package version (defaults to a UTC timestamp)")
	shipCmd.Flags().StringVar(&shipDBType, "db-type", "", "Database kind for sqldb packages")
	shipCmd.Flags().StringVar(&shipSourceApp, "source-app", "", "Application to deploy (cms or commerce)")
	shipCmd.Flags().BoolVar(&shipMaintenance, "maintenance-page", false, "Show the maintenance page during the deployment")
	shipCmd.Flags().BoolVar(&shipKeep, "keep-artifact", false, "Keep the freshly built package after shipping")
	shipCmd.Flags().IntVar(&watchInterval, "poll-interval", 5, "Seconds between polls (5-300)")
	shipCmd.Flags().BoolVar(&watchContinueOnErrors, "continue-on-errors", false, "Keep polling after the deployment reports errors")
	shipCmd.Flags().StringVar(&flagClientKey, "client-key", "", "Override the client key for this run only")
	shipCmd.Flags().StringVar(&flagClientSecret, "client-secret", "", "Override the client secret for this run only")
	_ = shipCmd.MarkFlagRequired("target")

	rootCmd.AddCommand(shipCmd)
}
