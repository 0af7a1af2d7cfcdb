// Package deploy drives the deployment lifecycle: starting a deployment,
// watching it through its remote states via polling, completing or
// resetting it, and the composite ship workflow.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"epideploy/internal/api"
	"epideploy/internal/credentials"
	"epideploy/shared"

	"github.com/fatih/color"
)

var (
	ErrMissingTarget      = errors.New("deploy: target environment is required")
	ErrMissingSource      = errors.New("deploy: either a source environment or at least one package is required")
	ErrDeploymentNotFound = errors.New("deploy: deployment not found")
	ErrDeploymentFailed   = errors.New("deploy: deployment failed")
	ErrDeploymentErrors   = errors.New("deploy: deployment reported errors")
	ErrPollingExhausted   = errors.New("deploy: giving up after repeated network failures while polling")
)

var dlog = shared.PackageLogger("deploy", "🚀 DEPLOY")

// API is the slice of the remote client the orchestrator needs. Tests
// substitute a fake; production passes *api.Client.
type API interface {
	GetDeployment(ctx context.Context, projectID, deploymentID string) (api.Deployment, error)
	StartDeployment(ctx context.Context, projectID string, req api.StartDeploymentRequest) (api.Deployment, error)
	CompleteDeployment(ctx context.Context, projectID, deploymentID string) (api.Deployment, error)
	ResetDeployment(ctx context.Context, projectID, deploymentID string) (api.Deployment, error)
	GetPackageLocation(ctx context.Context, projectID string) (string, error)
	UploadPackage(ctx context.Context, sasURL, artifactPath string) error
	WithCredentialOverride(creds credentials.Credentials, fn func() error) error
}

// Reporter receives the user-visible observations of a watch session.
type Reporter interface {
	StatusChanged(from, to string)
	Progress(percent int)
	DeploymentError(message string)
	DeploymentWarnings(newCount int)
	Notice(format string, args ...interface{})
}

// logReporter renders watch events through the package logger.
type logReporter struct{}

var (
	statusColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	errColor    = color.New(color.FgRed).SprintFunc()
)

func (logReporter) StatusChanged(from, to string) {
	if from == "" {
		dlog.Info("Deployment status: %s", statusColor(to))
		return
	}
	dlog.Info("Deployment status: %s → %s", statusColor(from), statusColor(to))
}

func (logReporter) Progress(percent int) {
	dlog.Progress(shared.LevelInfo, percent, 100, "Deploying")
}

func (logReporter) DeploymentError(message string) {
	dlog.Error("%s", errColor(message))
}

func (logReporter) DeploymentWarnings(newCount int) {
	dlog.Warn("%d new deployment warning(s) reported", newCount)
}

func (logReporter) Notice(format string, args ...interface{}) {
	dlog.Info(format, args...)
}

// Orchestrator coordinates one deployment at a time against a project.
type Orchestrator struct {
	api      API
	reporter Reporter
}

// New builds an Orchestrator. A nil reporter falls back to log output.
func New(client API, reporter Reporter) *Orchestrator {
	if reporter == nil {
		reporter = logReporter{}
	}
	return &Orchestrator{api: client, reporter: reporter}
}

// StartOptions carries the deployment parameters. Optionals left at their
// zero value are omitted from the request payload.
type StartOptions struct {
	TargetEnvironment  string
	SourceEnvironment  string
	Packages           []string
	SourceApp          string
	UseMaintenancePage *bool
}

// Start validates the preconditions and creates the deployment. The remote
// side provisions asynchronously; pair with Watch to follow it.
func (o *Orchestrator) Start(ctx context.Context, projectID string, opts StartOptions) (api.Deployment, error) {
	if strings.TrimSpace(opts.TargetEnvironment) == "" {
		return api.Deployment{}, ErrMissingTarget
	}
	if opts.SourceEnvironment == "" && len(opts.Packages) == 0 {
		return api.Deployment{}, ErrMissingSource
	}

	req := api.StartDeploymentRequest{
		TargetEnvironment:  opts.TargetEnvironment,
		SourceEnvironment:  opts.SourceEnvironment,
		Packages:           opts.Packages,
		SourceApp:          opts.SourceApp,
		UseMaintenancePage: opts.UseMaintenancePage,
	}

	deployment, err := o.api.StartDeployment(ctx, projectID, req)
	if err != nil {
		return api.Deployment{}, fmt.Errorf("deploy: start failed: %w", err)
	}

	dlog.Success("Deployment %s created (status %s)", deployment.ID, deployment.Status)
	return deployment, nil
}

// Complete promotes a deployment out of AwaitingVerification. The server
// enforces the state precondition.
func (o *Orchestrator) Complete(ctx context.Context, projectID, deploymentID string) (api.Deployment, error) {
	deployment, err := o.api.CompleteDeployment(ctx, projectID, deploymentID)
	if err != nil {
		return api.Deployment{}, fmt.Errorf("deploy: complete failed: %w", err)
	}
	dlog.Success("Deployment %s completed (status %s)", deployment.ID, deployment.Status)
	return deployment, nil
}

// Reset rolls a failed deployment back to a re-triable state. Destructive;
// callers confirm with the operator before invoking unless forced.
func (o *Orchestrator) Reset(ctx context.Context, projectID, deploymentID string) (api.Deployment, error) {
	deployment, err := o.api.ResetDeployment(ctx, projectID, deploymentID)
	if err != nil {
		return api.Deployment{}, fmt.Errorf("deploy: reset failed: %w", err)
	}
	dlog.Success("Deployment %s reset (status %s)", deployment.ID, deployment.Status)
	return deployment, nil
}
