package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"epideploy/internal/api"
	"epideploy/internal/credentials"
	"epideploy/internal/packaging"
)

var (
	ErrNothingToShip = errors.New("deploy: nothing to ship, provide a package path or a source directory")
)

// ShipOptions drives the composite deploy workflow: build (optional),
// upload, start, watch, auto-complete.
type ShipOptions struct {
	ProjectID         string
	TargetEnvironment string
	SourceEnvironment string

	// PackagePath ships a pre-built artifact as-is. When empty, SourceDir
	// is archived into a fresh artifact named from the packaging options.
	PackagePath string
	SourceDir   string
	PackageType packaging.PackageType
	Prefix      string
	Version     string
	DBType      string

	SourceApp          string
	UseMaintenancePage *bool

	Watch WatchOptions

	// CredentialOverride applies only for the duration of this workflow.
	// The persisted credential store is never touched.
	CredentialOverride *credentials.Credentials

	// KeepArtifact preserves a freshly built artifact after a successful
	// ship instead of cleaning it up.
	KeepArtifact bool
}

// Ship runs the full workflow and returns the final deployment. When the
// watch pauses at AwaitingVerification the completion call is issued
// automatically. Credential overrides are restored on every exit path.
func (o *Orchestrator) Ship(ctx context.Context, opts ShipOptions) (api.Deployment, error) {
	var result api.Deployment
	run := func() error {
		var err error
		result, err = o.ship(ctx, opts)
		return err
	}

	if opts.CredentialOverride != nil {
		if err := o.api.WithCredentialOverride(*opts.CredentialOverride, run); err != nil {
			return api.Deployment{}, err
		}
		return result, nil
	}
	if err := run(); err != nil {
		return api.Deployment{}, err
	}
	return result, nil
}

func (o *Orchestrator) ship(ctx context.Context, opts ShipOptions) (api.Deployment, error) {
	artifactPath := opts.PackagePath
	builtHere := false

	if artifactPath == "" {
		if opts.SourceDir == "" {
			return api.Deployment{}, ErrNothingToShip
		}
		name, err := packaging.GenerateName(packaging.NameOptions{
			Type:    opts.PackageType,
			Version: opts.Version,
			Prefix:  opts.Prefix,
			DBType:  opts.DBType,
		})
		if err != nil {
			return api.Deployment{}, err
		}
		artifactPath = filepath.Join(os.TempDir(), name)
		// The temp path belongs to this workflow; a stale leftover from an
		// aborted run would trip the builder's no-overwrite rule.
		_ = os.Remove(artifactPath)

		dlog.Info("Building package %s from %s", name, opts.SourceDir)
		if err := packaging.CreateArchive(opts.SourceDir, artifactPath, nil); err != nil {
			return api.Deployment{}, err
		}
		builtHere = true
	}

	location, err := o.api.GetPackageLocation(ctx, opts.ProjectID)
	if err != nil {
		return api.Deployment{}, fmt.Errorf("deploy: cannot resolve upload location: %w", err)
	}

	dlog.Info("Uploading %s", filepath.Base(artifactPath))
	if err := o.api.UploadPackage(ctx, location, artifactPath); err != nil {
		return api.Deployment{}, fmt.Errorf("deploy: upload failed: %w", err)
	}

	deployment, err := o.Start(ctx, opts.ProjectID, StartOptions{
		TargetEnvironment:  opts.TargetEnvironment,
		SourceEnvironment:  opts.SourceEnvironment,
		Packages:           []string{filepath.Base(artifactPath)},
		SourceApp:          opts.SourceApp,
		UseMaintenancePage: opts.UseMaintenancePage,
	})
	if err != nil {
		return api.Deployment{}, err
	}

	watched, err := o.Watch(ctx, opts.ProjectID, deployment.ID, opts.Watch)
	if err != nil {
		return api.Deployment{}, err
	}

	final := watched.Deployment
	if watched.Outcome == OutcomeAwaitingVerification {
		final, err = o.Complete(ctx, opts.ProjectID, deployment.ID)
		if err != nil {
			return api.Deployment{}, err
		}
	}

	if builtHere && !opts.KeepArtifact {
		if err := os.Remove(artifactPath); err != nil {
			dlog.Warn("Could not remove temporary artifact %s: %v", artifactPath, err)
		}
	}

	dlog.Success("Shipped to %s 🎉", opts.TargetEnvironment)
	return final, nil
}
