package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// Package is a deployable artifact already present in the project's
// storage container.
type Package struct {
	Name     string `json:"name"`
	Size     int64  `json:"size,omitempty"`
	Modified string `json:"lastModified,omitempty"`
}

// ListPackages returns the artifacts currently uploaded for a project.
func (c *Client) ListPackages(ctx context.Context, projectID string) ([]Package, error) {
	result, err := c.Get(ctx, fmt.Sprintf("projects/%s/packages", projectID))
	if err != nil {
		return nil, err
	}

	var packages []Package
	if err := json.Unmarshal(result, &packages); err != nil {
		return nil, fmt.Errorf("api: cannot decode package list: %w", err)
	}
	return packages, nil
}

// GetPackageLocation asks the API for a time-limited SAS URL pointing at
// the project's upload container.
func (c *Client) GetPackageLocation(ctx context.Context, projectID string) (string, error) {
	result, err := c.Get(ctx, fmt.Sprintf("projects/%s/packages/location", projectID))
	if err != nil {
		return "", err
	}

	var location string
	if err := json.Unmarshal(result, &location); err != nil {
		return "", fmt.Errorf("api: cannot decode package location: %w", err)
	}
	return location, nil
}

// UploadPackage PUTs an artifact into the container behind a SAS URL. The
// SAS URL addresses the container; the blob name is spliced into the path
// ahead of the query string. A 412 means another client holds a lease on
// the same blob name.
func (c *Client) UploadPackage(ctx context.Context, sasURL, artifactPath string) error {
	container, err := url.Parse(sasURL)
	if err != nil {
		return fmt.Errorf("api: invalid upload location: %w", err)
	}

	blob := *container
	blob.Path = path.Join(blob.Path, filepath.Base(artifactPath))

	file, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("api: cannot open package %s: %w", artifactPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("api: cannot stat package %s: %w", artifactPath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, blob.String(), file)
	if err != nil {
		return fmt.Errorf("api: cannot build upload request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set("Content-Type", "application/octet-stream")

	alog.Debug("PUT %s (%d bytes)", blob.Path, info.Size())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPreconditionFailed {
		return &APIError{
			Status:  resp.StatusCode,
			Message: "a package with this name is locked by another upload or deployment",
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

// DatabaseExport tracks a server-side bacpac export.
type DatabaseExport struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	DatabaseName string `json:"databaseName,omitempty"`
	DownloadLink string `json:"downloadLink,omitempty"`
}

// ExportDatabase requests a bacpac export of one environment database.
// retentionHours bounds how long the download link stays valid; zero lets
// the server pick its default.
func (c *Client) ExportDatabase(ctx context.Context, projectID, environment, databaseName string, retentionHours int) (DatabaseExport, error) {
	body := map[string]interface{}{}
	if retentionHours > 0 {
		body["retentionHours"] = retentionHours
	}

	result, err := c.Post(ctx,
		fmt.Sprintf("projects/%s/environments/%s/databases/%s/exports", projectID, environment, databaseName), body)
	if err != nil {
		return DatabaseExport{}, err
	}

	var export DatabaseExport
	if err := json.Unmarshal(result, &export); err != nil {
		return DatabaseExport{}, fmt.Errorf("api: cannot decode database export: %w", err)
	}
	return export, nil
}

// GetDatabaseExport fetches the state of a previously requested export.
func (c *Client) GetDatabaseExport(ctx context.Context, projectID, environment, databaseName, exportID string) (DatabaseExport, error) {
	result, err := c.Get(ctx,
		fmt.Sprintf("projects/%s/environments/%s/databases/%s/exports/%s", projectID, environment, databaseName, exportID))
	if err != nil {
		return DatabaseExport{}, err
	}

	var export DatabaseExport
	if err := json.Unmarshal(result, &export); err != nil {
		return DatabaseExport{}, fmt.Errorf("api: cannot decode database export: %w", err)
	}
	return export, nil
}
