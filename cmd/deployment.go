package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"epideploy/internal/deploy"
	"epideploy/shared"
)

var deplog = shared.PackageLogger("deployment", "🚀 DEPLOY")

var (
	startTarget      string
	startSource      string
	startPackages    []string
	startSourceApp   string
	startMaintenance bool
	startWatch       bool

	watchInterval         int
	watchContinueOnErrors bool

	resetForce bool
)

var deploymentCmd = &cobra.Command{
	Use:     "deployment",
	Aliases: []string{"deployments"},
	Short:   "Start, watch, and manage deployments",
}

// interruptibleContext derives a context that cancels on SIGINT/SIGTERM so a
// watch loop unwinds cleanly mid-poll or mid-sleep.
func interruptibleContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		deplog.Warn("Interrupt received, stopping...")
		cancel()
	}()
	return ctx, cancel
}

var deploymentStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a deployment to a target environment",
	Long: `Start a deployment from either an already uploaded package (--package)
or another environment's content and code (--source). Add --watch to
follow it through to a terminal state.`,
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

		opts := deploy.StartOptions{
			TargetEnvironment: startTarget,
			SourceEnvironment: startSource,
			Packages:          startPackages,
			SourceApp:         startSourceApp,
		}
		if cmd.Flags().Changed("maintenance-page") {
			opts.UseMaintenancePage = &startMaintenance
		}

		o := deploy.New(s.client, nil)
		deployment, err := o.Start(ctx, project, opts)
		if err != nil {
			return err
		}

		if startWatch {
			result, err := o.Watch(ctx, project, deployment.ID, deploy.WatchOptions{
				Interval:         deploy.ClampInterval(watchInterval),
				ContinueOnErrors: watchContinueOnErrors,
			})
			if err != nil {
				return err
			}
			return emit(result.Deployment)
		}
		return emit(deployment)
	},
}

var deploymentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployments for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		project, err := s.requireProject()
		if err != nil {
			return err
		}

		deployments, err := s.client.ListDeployments(cmd.Context(), project)
		if err != nil {
			return err
		}

		if len(deployments) == 0 {
			deplog.Info("No deployments found for project %s", project)
		}
		for _, d := range deployments {
			deplog.Info("%s  %-22s %3d%%  %s → %s",
				d.ID, statusColorFor(d.Status)(d.Status), d.PercentComplete,
				d.SourceEnvironment, d.TargetEnvironment)
		}
		return emit(deployments)
	},
}

var deploymentWatchCmd = &cobra.Command{
	Use:   "watch <deployment-id>",
	Short: "Poll a deployment until it reaches a terminal state",
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

		ctx, cancel := interruptibleContext(cmd.Context())
		defer cancel()

		result, err := deploy.New(s.client, nil).Watch(ctx, project, args[0], deploy.WatchOptions{
			Interval:         deploy.ClampInterval(watchInterval),
			ContinueOnErrors: watchContinueOnErrors,
		})
		if err != nil {
			return err
		}
		return emit(result.Deployment)
	},
}

var deploymentCompleteCmd = &cobra.Command{
	Use:   "complete <deployment-id>",
	Short: "Complete a deployment that is awaiting verification",
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

		deployment, err := deploy.New(s.client, nil).Complete(cmd.Context(), project, args[0])
		if err != nil {
			return err
		}
		return emit(deployment)
	},
}

var deploymentResetCmd = &cobra.Command{
	Use:   "reset <deployment-id>",
	Short: "Reset a deployment, rolling the environment back",
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

		prompt := fmt.Sprintf("Reset deployment %s? The target environment rolls back", args[0])
		if !confirm(prompt, resetForce) {
			return errors.New("reset aborted, re-run with --force to skip the prompt")
		}

		deployment, err := deploy.New(s.client, nil).Reset(cmd.Context(), project, args[0])
		if err != nil {
			return err
		}
		return emit(deployment)
	},
}

var deploymentLogsCmd = &cobra.Command{
	Use:   "logs <deployment-id>",
	Short: "Show the remote log entries for a deployment",
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

		entries, err := s.client.GetDeploymentLogs(cmd.Context(), project, args[0])
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			deplog.Info("No log entries yet for deployment %s", args[0])
		}
		for _, e := range entries {
			fmt.Printf("%s  %-7s %s\n", e.Timestamp, e.Level, e.Message)
		}
		return emit(entries)
	},
}

// statusColorFor maps a deployment status onto the palette used across the
// CLI output.
func statusColorFor(status string) func(...interface{}) string {
	switch status {
	case "Succeeded":
		return green
	case "Failed":
		return red
	case "AwaitingVerification":
		return yellow
	default:
		return cyan
	}
}

func init() {
	deploymentStartCmd.Flags().StringVar(&startTarget, "target", "", "Target environment (required)")
	deploymentStartCmd.Flags().StringVar(&startSource, "source", "", "Source environment to copy from")
	deploymentStartCmd.Flags().StringSliceVar(&startPackages, "package", nil, "Uploaded package name(s) to deploy")
	deploymentStartCmd.Flags().StringVar(&startSourceApp, "source-app", "", "Application to deploy (cms or commerce)")
	deploymentStartCmd.Flags().BoolVar(&startMaintenance, "maintenance-page", false, "Show the maintenance page during the deployment")
	deploymentStartCmd.Flags().BoolVar(&startWatch, "watch", false, "Watch the deployment after starting it")
	_ = deploymentStartCmd.MarkFlagRequired("target")

	for _, c := range []*cobra.Command{deploymentStartCmd, deploymentWatchCmd} {
		c.Flags().IntVar(&watchInterval, "poll-interval", 5, "Seconds between polls (5-300)")
		c.Flags().BoolVar(&watchContinueOnErrors, "continue-on-errors", false, "Keep polling after the deployment reports errors")
	}

	deploymentResetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip the confirmation prompt")

	deploymentCmd.AddCommand(deploymentStartCmd)
	deploymentCmd.AddCommand(deploymentListCmd)
	deploymentCmd.AddCommand(deploymentWatchCmd)
	deploymentCmd.AddCommand(deploymentCompleteCmd)
	deploymentCmd.AddCommand(deploymentResetCmd)
	deploymentCmd.AddCommand(deploymentLogsCmd)
	rootCmd.AddCommand(deploymentCmd)
}
