package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"epideploy/internal/packaging"
	"epideploy/shared"
)

var pkglog = shared.PackageLogger("package", "📦 PKG")

var (
	createType    string
	createVersion string
	createPrefix  string
	createDBType  string
	createOutput  string
	createIgnore  []string
	createForce   bool
)

var packageCmd = &cobra.Command{
	Use:     "package",
	Aliases: []string{"packages"},
	Short:   "Build, upload, and list deployable packages",
}

var packageCreateCmd = &cobra.Command{
	Use:   "create <source-dir>",
	Short: "Archive a directory into a deployable package",
	Long: `Zip the contents of a directory into a package named by convention
([prefix.]<type>.app.<version>.<ext>). Build output noise like .git,
node_modules, bin and obj is excluded by default; a .epiignore file in
the source directory refines the exclusions with gitignore-style rules.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := packaging.GenerateName(packaging.NameOptions{
			Type:    packaging.PackageType(createType),
			Version: createVersion,
			Prefix:  createPrefix,
			DBType:  createDBType,
		})
		if err != nil {
			return err
		}

		outDir := createOutput
		if outDir == "" {
			outDir, err = os.Getwd()
			if err != nil {
				return err
			}
		}
		destPath := filepath.Join(outDir, name)
		if createForce {
			_ = os.Remove(destPath)
		}

		if err := packaging.CreateArchive(args[0], destPath, createIgnore); err != nil {
			return err
		}

		pkglog.Success("Package written to %s", destPath)
		return emit(map[string]string{"name": name, "path": destPath})
	},
}

var packageUploadCmd = &cobra.Command{
	Use:   "upload <package-file>",
	Short: "Upload a package to the project's deployment storage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		project, err := s.requireProject()
		if err != nil {
			return err
		}

		if _, err := os.Stat(args[0]); err != nil {
			return fmt.Errorf("package: cannot read %s: %w", args[0], err)
		}

		location, err := s.client.GetPackageLocation(cmd.Context(), project)
		if err != nil {
			return err
		}

		pkglog.Info("Uploading %s", filepath.Base(args[0]))
		if err := s.client.UploadPackage(cmd.Context(), location, args[0]); err != nil {
			return err
		}

		pkglog.Success("Uploaded %s", filepath.Base(args[0]))
		return emit(map[string]string{"name": filepath.Base(args[0])})
	},
}

var packageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List packages uploaded for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		project, err := s.requireProject()
		if err != nil {
			return err
		}

		packages, err := s.client.ListPackages(cmd.Context(), project)
		if err != nil {
			return err
		}

		if len(packages) == 0 {
			pkglog.Info("No packages uploaded for project %s", project)
		}
		for _, p := range packages {
			pkglog.Info("%-50s %10d  %s", p.Name, p.Size, p.Modified)
		}
		return emit(packages)
	},
}

var packageLocationCmd = &cobra.Command{
	Use:   "get-upload-url",
	Short: "Print the SAS container URL packages are uploaded to",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		project, err := s.requireProject()
		if err != nil {
			return err
		}

		location, err := s.client.GetPackageLocation(cmd.Context(), project)
		if err != nil {
			return err
		}

		if !flagJSON {
			fmt.Println(location)
		}
		return emit(map[string]string{"location": location})
	},
}

func init() {
	packageCreateCmd.Flags().StringVar(&createType, "type", "cms", "Package type: cms, commerce, head, or sqldb")
	packageCreateCmd.Flags().StringVar(&createVersion, "version", "", "Package version (defaults to a UTC timestamp)")
	packageCreateCmd.Flags().StringVar(&createPrefix, "prefix", "", "Optional name prefix")
	packageCreateCmd.Flags().StringVar(&createDBType, "db-type", "", "Database kind for sqldb packages: cms or commerce")
	packageCreateCmd.Flags().StringVar(&createOutput, "output", "", "Directory to write the package into (default: cwd)")
	packageCreateCmd.Flags().StringSliceVar(&createIgnore, "ignore", nil, "Extra gitignore-style exclusion patterns")
	packageCreateCmd.Flags().BoolVar(&createForce, "force", false, "Overwrite an existing package file")

	packageCmd.AddCommand(packageCreateCmd)
	packageCmd.AddCommand(packageUploadCmd)
	packageCmd.AddCommand(packageListCmd)
	packageCmd.AddCommand(packageLocationCmd)
	rootCmd.AddCommand(packageCmd)
}
