package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Deployment statuses the client recognizes. Comparison is always
// case-insensitive, and unknown statuses are carried through opaquely.
const (
	StatusInProgress           = "InProgress"
	StatusAwaitingVerification = "AwaitingVerification"
	StatusSucceeded            = "Succeeded"
	StatusFailed               = "Failed"
	StatusReset                = "Reset"
)

// Deployment is the canonical, normalized shape of a remote deployment.
// The orchestrator only ever sees this; legacy field reconciliation happens
// once, at the API boundary.
type Deployment struct {
	ID                string   `json:"id"`
	Status            string   `json:"status"`
	PercentComplete   int      `json:"percentComplete"`
	Warnings          []string `json:"deploymentWarnings,omitempty"`
	Errors            []string `json:"deploymentErrors,omitempty"`
	TargetEnvironment string   `json:"targetEnvironment,omitempty"`
	SourceEnvironment string   `json:"sourceEnvironment,omitempty"`
	Packages          []string `json:"packages,omitempty"`
	StartTime         string   `json:"startTime,omitempty"`
	EndTime           string   `json:"endTime,omitempty"`
}

// StatusIs compares statuses case-insensitively.
func (d Deployment) StatusIs(status string) bool {
	return strings.EqualFold(d.Status, status)
}

// Terminal reports whether the deployment has reached a final state.
// AwaitingVerification is a pause point, not terminal.
func (d Deployment) Terminal() bool {
	return d.StatusIs(StatusSucceeded) || d.StatusIs(StatusFailed)
}

// rawDeployment covers both the current and the legacy wire shapes. Older
// API versions put target/source/packages at the top level and used
// created/updated instead of startTime/endTime.
type rawDeployment struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	PercentComplete int      `json:"percentComplete"`
	Warnings        []string `json:"deploymentWarnings"`
	Errors          []string `json:"deploymentErrors"`
	Parameters      *struct {
		TargetEnvironment string   `json:"targetEnvironment"`
		SourceEnvironment string   `json:"sourceEnvironment"`
		Packages          []string `json:"packages"`
	} `json:"parameters"`
	TargetEnvironment string   `json:"targetEnvironment"`
	SourceEnvironment string   `json:"sourceEnvironment"`
	Packages          []string `json:"packages"`
	StartTime         string   `json:"startTime"`
	EndTime           string   `json:"endTime"`
	Created           string   `json:"created"`
	Updated           string   `json:"updated"`
}

func normalizeDeployment(raw rawDeployment) Deployment {
	d := Deployment{
		ID:                raw.ID,
		Status:            raw.Status,
		PercentComplete:   raw.PercentComplete,
		Warnings:          raw.Warnings,
		Errors:            raw.Errors,
		TargetEnvironment: raw.TargetEnvironment,
		SourceEnvironment: raw.SourceEnvironment,
		Packages:          raw.Packages,
		StartTime:         raw.StartTime,
		EndTime:           raw.EndTime,
	}

	if raw.Parameters != nil {
		if raw.Parameters.TargetEnvironment != "" {
			d.TargetEnvironment = raw.Parameters.TargetEnvironment
		}
		if raw.Parameters.SourceEnvironment != "" {
			d.SourceEnvironment = raw.Parameters.SourceEnvironment
		}
		if len(raw.Parameters.Packages) > 0 {
			d.Packages = raw.Parameters.Packages
		}
	}

	if d.StartTime == "" {
		d.StartTime = raw.Created
	}
	if d.EndTime == "" {
		d.EndTime = raw.Updated
	}

	return d
}

func decodeDeployment(result json.RawMessage) (Deployment, error) {
	var raw rawDeployment
	if err := json.Unmarshal(result, &raw); err != nil {
		return Deployment{}, fmt.Errorf("api: cannot decode deployment: %w", err)
	}
	return normalizeDeployment(raw), nil
}

// StartDeploymentRequest carries only the fields the caller supplied.
// Unset optionals are omitted from the payload, not sent as null.
type StartDeploymentRequest struct {
	TargetEnvironment  string   `json:"targetEnvironment"`
	SourceEnvironment  string   `json:"sourceEnvironment,omitempty"`
	Packages           []string `json:"packages,omitempty"`
	SourceApp          string   `json:"sourceApp,omitempty"`
	UseMaintenancePage *bool    `json:"maintenancePage,omitempty"`
}

// ListDeployments returns the project's deployments, newest first as the
// server orders them.
func (c *Client) ListDeployments(ctx context.Context, projectID string) ([]Deployment, error) {
	result, err := c.Get(ctx, fmt.Sprintf("projects/%s/deployments", projectID))
	if err != nil {
		return nil, err
	}

	var raws []rawDeployment
	if err := json.Unmarshal(result, &raws); err != nil {
		return nil, fmt.Errorf("api: cannot decode deployment list: %w", err)
	}

	deployments := make([]Deployment, 0, len(raws))
	for _, raw := range raws {
		deployments = append(deployments, normalizeDeployment(raw))
	}
	return deployments, nil
}

// GetDeployment fetches a single deployment by id.
func (c *Client) GetDeployment(ctx context.Context, projectID, deploymentID string) (Deployment, error) {
	result, err := c.Get(ctx, fmt.Sprintf("projects/%s/deployments/%s", projectID, deploymentID))
	if err != nil {
		return Deployment{}, err
	}
	return decodeDeployment(result)
}

// StartDeployment creates a deployment. The returned Deployment reflects
// the synchronous creation response; provisioning continues remotely.
func (c *Client) StartDeployment(ctx context.Context, projectID string, req StartDeploymentRequest) (Deployment, error) {
	result, err := c.Post(ctx, fmt.Sprintf("projects/%s/deployments", projectID), req)
	if err != nil {
		return Deployment{}, err
	}
	return decodeDeployment(result)
}

// CompleteDeployment promotes a deployment out of AwaitingVerification. The
// server enforces the state precondition; the client does not pre-check.
func (c *Client) CompleteDeployment(ctx context.Context, projectID, deploymentID string) (Deployment, error) {
	result, err := c.Post(ctx, fmt.Sprintf("projects/%s/deployments/%s/complete", projectID, deploymentID), nil)
	if err != nil {
		return Deployment{}, err
	}
	return decodeDeployment(result)
}

// ResetDeployment rolls a deployment back to a re-triable state. Meant for
// Failed deployments and irreversible from the client's point of view.
func (c *Client) ResetDeployment(ctx context.Context, projectID, deploymentID string) (Deployment, error) {
	result, err := c.Post(ctx, fmt.Sprintf("projects/%s/deployments/%s/reset", projectID, deploymentID), nil)
	if err != nil {
		return Deployment{}, err
	}
	return decodeDeployment(result)
}

// LogEntry is one line of remote deployment output.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// GetDeploymentLogs fetches the log entries recorded for a deployment.
func (c *Client) GetDeploymentLogs(ctx context.Context, projectID, deploymentID string) ([]LogEntry, error) {
	result, err := c.Get(ctx, fmt.Sprintf("projects/%s/deployments/%s/logs", projectID, deploymentID))
	if err != nil {
		return nil, err
	}

	var entries []LogEntry
	if err := json.Unmarshal(result, &entries); err != nil {
		return nil, fmt.Errorf("api: cannot decode deployment logs: %w", err)
	}
	return entries, nil
}

// Project is the client-visible slice of a remote project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListProjects returns the projects visible to the active credentials.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	result, err := c.Get(ctx, "projects")
	if err != nil {
		return nil, err
	}

	var projects []Project
	if err := json.Unmarshal(result, &projects); err != nil {
		return nil, fmt.Errorf("api: cannot decode project list: %w", err)
	}
	return projects, nil
}
