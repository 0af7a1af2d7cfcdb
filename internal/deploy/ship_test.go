package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"epideploy/internal/api"
	"epideploy/internal/credentials"
	"epideploy/internal/packaging"
)

func TestShipBuildsUploadsStartsWatchesAndCompletes(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "index.html"), []byte("<html/>"), 0644); err != nil {
		t.Fatal(err)
	}

	fake := &fakeAPI{
		location:    "https://blobs.example.test/container?sig=abc",
		startResult: api.Deployment{ID: "d1", Status: "InProgress"},
		snapshots: []snapshot{
			inProgress(10),
			inProgress(60),
			terminal("AwaitingVerification", 100),
		},
		completeResult: api.Deployment{ID: "d1", Status: "Succeeded", PercentComplete: 100},
	}
	rec := &recorder{}
	o := New(fake, rec)

	final, err := o.Ship(context.Background(), ShipOptions{
		ProjectID:         "p1",
		TargetEnvironment: "integration",
		SourceDir:         src,
		PackageType:       packaging.TypeHead,
		Prefix:            "mysite",
		Version:           "1.0.0",
		Watch:             WatchOptions{Interval: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Ship returned error: %v", err)
	}

	if !final.StatusIs(api.StatusSucceeded) {
		t.Fatalf("expected final Succeeded, got %q", final.Status)
	}
	if fake.completeCalls != 1 {
		t.Fatalf("AwaitingVerification should auto-complete exactly once, got %d", fake.completeCalls)
	}

	if len(fake.uploads) != 1 {
		t.Fatalf("expected one upload, got %v", fake.uploads)
	}
	wantName := "mysite.head.app.1.0.0.zip"
	if filepath.Base(fake.uploads[0]) != wantName {
		t.Fatalf("expected artifact %q, uploaded %q", wantName, fake.uploads[0])
	}

	if len(fake.startRequests) != 1 {
		t.Fatalf("expected one start request, got %d", len(fake.startRequests))
	}
	req := fake.startRequests[0]
	if req.TargetEnvironment != "integration" {
		t.Fatalf("target not forwarded, got %q", req.TargetEnvironment)
	}
	if len(req.Packages) != 1 || req.Packages[0] != wantName {
		t.Fatalf("start request should reference the uploaded package, got %v", req.Packages)
	}
	if req.SourceEnvironment != "" {
		t.Fatalf("unset source environment should stay empty, got %q", req.SourceEnvironment)
	}

	if _, err := os.Stat(fake.uploads[0]); !os.IsNotExist(err) {
		t.Fatalf("temporary artifact should be cleaned up after success: %v", err)
	}
}

func TestShipUsesPrebuiltPackageAsIs(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "site.cms.app.2.0.0.nupkg")
	if err := os.WriteFile(artifact, []byte("prebuilt"), 0644); err != nil {
		t.Fatal(err)
	}

	fake := &fakeAPI{
		location:    "https://blobs.example.test/container?sig=abc",
		startResult: api.Deployment{ID: "d1", Status: "InProgress"},
		snapshots:   []snapshot{terminal("Succeeded", 100)},
	}
	o := New(fake, &recorder{})

	_, err := o.Ship(context.Background(), ShipOptions{
		ProjectID:         "p1",
		TargetEnvironment: "integration",
		PackagePath:       artifact,
		Watch:             WatchOptions{Interval: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Ship returned error: %v", err)
	}

	if fake.completeCalls != 0 {
		t.Fatal("a directly succeeded deployment must not be completed again")
	}
	if _, err := os.Stat(artifact); err != nil {
		t.Fatalf("a caller-supplied artifact must never be deleted: %v", err)
	}
}

func TestShipRequiresPackageOrSource(t *testing.T) {
	o := New(&fakeAPI{}, &recorder{})

	_, err := o.Ship(context.Background(), ShipOptions{
		ProjectID:         "p1",
		TargetEnvironment: "integration",
	})
	if !errors.Is(err, ErrNothingToShip) {
		t.Fatalf("expected ErrNothingToShip, got %v", err)
	}
}

func TestShipPropagatesWatchFailure(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "site.cms.app.1.nupkg")
	if err := os.WriteFile(artifact, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	fake := &fakeAPI{
		location:    "https://blobs.example.test/c?sig=s",
		startResult: api.Deployment{ID: "d1", Status: "InProgress"},
		snapshots:   []snapshot{terminal("Failed", 30)},
	}
	o := New(fake, &recorder{})

	_, err := o.Ship(context.Background(), ShipOptions{
		ProjectID:         "p1",
		TargetEnvironment: "production",
		PackagePath:       artifact,
		Watch:             WatchOptions{Interval: time.Millisecond},
	})
	if !errors.Is(err, ErrDeploymentFailed) {
		t.Fatalf("expected ErrDeploymentFailed, got %v", err)
	}
	if fake.completeCalls != 0 {
		t.Fatal("failed deployments must not be auto-completed")
	}
}

func TestShipScopesCredentialOverride(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "site.cms.app.1.nupkg")
	if err := os.WriteFile(artifact, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	fake := &fakeAPI{
		location:    "https://blobs.example.test/c?sig=s",
		startResult: api.Deployment{ID: "d1", Status: "InProgress"},
		snapshots:   []snapshot{terminal("Succeeded", 100)},
	}
	o := New(fake, &recorder{})

	override := credentials.Credentials{ClientKey: "temp", ClientSecret: "c2VjcmV0"}
	_, err := o.Ship(context.Background(), ShipOptions{
		ProjectID:          "p1",
		TargetEnvironment:  "integration",
		PackagePath:        artifact,
		CredentialOverride: &override,
		Watch:              WatchOptions{Interval: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Ship returned error: %v", err)
	}

	if fake.overrideApplied != 1 {
		t.Fatalf("expected exactly one scoped override, got %d", fake.overrideApplied)
	}
	if fake.overrideActive {
		t.Fatal("override must be released when the workflow exits")
	}
}

func TestStartValidatesPreconditions(t *testing.T) {
	o := New(&fakeAPI{startResult: api.Deployment{ID: "d1"}}, &recorder{})

	if _, err := o.Start(context.Background(), "p1", StartOptions{}); !errors.Is(err, ErrMissingTarget) {
		t.Fatalf("expected ErrMissingTarget, got %v", err)
	}

	_, err := o.Start(context.Background(), "p1", StartOptions{TargetEnvironment: "integration"})
	if !errors.Is(err, ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}

	// both source environment and packages may be supplied together
	_, err = o.Start(context.Background(), "p1", StartOptions{
		TargetEnvironment: "production",
		SourceEnvironment: "integration",
		Packages:          []string{"site.cms.app.1.nupkg"},
	})
	if err != nil {
		t.Fatalf("supplying both source kinds should be allowed, got %v", err)
	}
}
