package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"epideploy/internal/deploy"
	"epideploy/shared"
)

var dblog = shared.PackageLogger("database", "🗄️ DB")

var (
	exportEnvironment string
	exportDatabase    string
	exportRetention   int
	exportWait        bool
	exportInterval    int
)

var databaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Export environment databases",
}

var databaseExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export an environment database to a downloadable bacpac",
	Long: `Ask the platform to export one environment database. The export runs
server side; add --wait to poll until the download link is ready.`,
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

		export, err := s.client.ExportDatabase(ctx, project, exportEnvironment, exportDatabase, exportRetention)
		if err != nil {
			return err
		}
		dblog.Info("Export %s requested for %s/%s (status %s)",
			export.ID, exportEnvironment, exportDatabase, export.Status)

		if exportWait {
			interval := deploy.ClampInterval(exportInterval)
			for !strings.EqualFold(export.Status, "Succeeded") {
				if strings.EqualFold(export.Status, "Failed") {
					return fmt.Errorf("database: export %s failed", export.ID)
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(interval):
				}
				export, err = s.client.GetDatabaseExport(ctx, project, exportEnvironment, exportDatabase, export.ID)
				if err != nil {
					return err
				}
				dblog.Debug("Export %s status %s", export.ID, export.Status)
			}
			dblog.Success("Export ready: %s", export.DownloadLink)
		}

		return emit(export)
	},
}

func init() {
	databaseExportCmd.Flags().StringVar(&exportEnvironment, "environment", "", "Environment holding the database (required)")
	databaseExportCmd.Flags().StringVar(&exportDatabase, "database", "epicms", "Database name (epicms or epicommerce)")
	databaseExportCmd.Flags().IntVar(&exportRetention, "retention-hours", 0, "How long the download link stays valid (0 = server default)")
	databaseExportCmd.Flags().BoolVar(&exportWait, "wait", false, "Poll until the export finishes")
	databaseExportCmd.Flags().IntVar(&exportInterval, "poll-interval", 5, "Seconds between polls when waiting (5-300)")
	_ = databaseExportCmd.MarkFlagRequired("environment")

	databaseCmd.AddCommand(databaseExportCmd)
	rootCmd.AddCommand(databaseCmd)
}
