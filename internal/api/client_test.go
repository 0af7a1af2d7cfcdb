package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"epideploy/internal/credentials"
	"epideploy/internal/signer"
)

const testSecret = "c2VjcmV0LXNpZ25pbmcta2V5LW1hdGVyaWFs"

func testCreds() credentials.Credentials {
	return credentials.Credentials{
		ClientKey:    "testKey",
		ClientSecret: testSecret,
		ProjectID:    "c1e2a3c4-0000-0000-0000-000000000001",
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Options{
		Endpoint:    server.URL + "/api/v1.0/",
		Credentials: testCreds(),
		HTTPClient:  server.Client(),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client, server
}

func envelopeOK(result interface{}) []byte {
	blob, _ := json.Marshal(map[string]interface{}{"success": true, "result": result})
	return blob
}

func TestGetUnwrapsEnvelopeAndSignsRequest(t *testing.T) {
	var gotAuth string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write(envelopeOK([]string{"a", "b"}))
	})

	result, err := client.Get(context.Background(), "projects")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	var items []string
	if err := json.Unmarshal(result, &items); err != nil || len(items) != 2 {
		t.Fatalf("unexpected result %s (err %v)", result, err)
	}

	if !strings.HasPrefix(gotAuth, "epi-hmac testKey:") {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if parts := strings.Split(strings.TrimPrefix(gotAuth, "epi-hmac "), ":"); len(parts) != 4 {
		t.Fatalf("expected key:timestamp:nonce:signature, got %q", gotAuth)
	}
}

func TestEnvelopeFailureBecomesAPIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"errors":  []string{"environment is locked"},
		})
	})

	_, err := client.Get(context.Background(), "projects")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if len(apiErr.Errors) != 1 || apiErr.Errors[0] != "environment is locked" {
		t.Fatalf("error list not propagated: %+v", apiErr)
	}
}

func TestNonSuccessStatusBecomesAPIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Get(context.Background(), "projects/x/deployments/y")
	if !IsNotFound(err) {
		t.Fatalf("expected not-found APIError, got %v", err)
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL + "/api/v1.0/"
	server.Close() // nothing is listening anymore

	client, err := New(Options{Endpoint: endpoint, Credentials: testCreds()})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = client.Get(context.Background(), "projects")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestNewRejectsMissingCredentials(t *testing.T) {
	_, err := New(Options{Endpoint: "https://example.test/"})
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestNewRejectsMalformedSecretBeforeAnyCall(t *testing.T) {
	creds := testCreds()
	creds.ClientSecret = "not base64!"
	_, err := New(Options{Endpoint: "https://example.test/", Credentials: creds})
	if !errors.Is(err, signer.ErrInvalidClientSecret) {
		t.Fatalf("expected ErrInvalidClientSecret, got %v", err)
	}
}

func TestWithCredentialOverrideRestoresOnError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(envelopeOK(nil))
	})

	original := client.Credentials()
	override := credentials.Credentials{ClientKey: "other", ClientSecret: testSecret}

	wantErr := errors.New("boom")
	err := client.WithCredentialOverride(override, func() error {
		if client.Credentials().ClientKey != "other" {
			t.Fatal("override not active inside fn")
		}
		return wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Fatalf("expected inner error to propagate, got %v", err)
	}
	if client.Credentials() != original {
		t.Fatalf("credentials not restored: %+v", client.Credentials())
	}
}

func TestValidateCredentialsUnauthorizedMeansInvalid(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	original := client.Credentials()
	result, err := client.ValidateCredentials(context.Background(), credentials.Credentials{
		ClientKey:    "badKey",
		ClientSecret: testSecret,
	})
	if err != nil {
		t.Fatalf("401 should not surface as an error, got %v", err)
	}
	if result.Valid {
		t.Fatal("expected Valid=false for 401")
	}
	if client.Credentials() != original {
		t.Fatal("original credentials not restored after validation")
	}
}

func TestValidateCredentialsCountsProjects(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/projects") {
			t.Errorf("expected projects probe, got %s", r.URL.Path)
		}
		w.Write(envelopeOK([]Project{{ID: "p1"}, {ID: "p2"}}))
	})

	result, err := client.ValidateCredentials(context.Background(), credentials.Credentials{
		ClientKey:    "probe",
		ClientSecret: testSecret,
		// no ProjectID: the probe must fall back to the projects list
	})
	if err != nil {
		t.Fatalf("ValidateCredentials returned error: %v", err)
	}
	if !result.Valid || result.ProjectsFound != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestValidateCredentialsReRaisesAmbiguousFailures(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	original := client.Credentials()
	_, err := client.ValidateCredentials(context.Background(), credentials.Credentials{
		ClientKey:    "probe",
		ClientSecret: testSecret,
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 APIError to propagate, got %v", err)
	}
	if client.Credentials() != original {
		t.Fatal("original credentials not restored after failed validation")
	}
}

func TestDeploymentNormalizationPrefersParameters(t *testing.T) {
	raw := rawDeployment{
		ID:                "d1",
		Status:            "InProgress",
		TargetEnvironment: "legacy-target",
		SourceEnvironment: "legacy-source",
		Packages:          []string{"legacy.zip"},
		Created:           "2026-01-01T00:00:00Z",
	}
	raw.Parameters = &struct {
		TargetEnvironment string   `json:"targetEnvironment"`
		SourceEnvironment string   `json:"sourceEnvironment"`
		Packages          []string `json:"packages"`
	}{
		TargetEnvironment: "integration",
		Packages:          []string{"site.cms.app.1.0.0.nupkg"},
	}

	d := normalizeDeployment(raw)

	if d.TargetEnvironment != "integration" {
		t.Fatalf("parameters.targetEnvironment should win, got %q", d.TargetEnvironment)
	}
	if d.SourceEnvironment != "legacy-source" {
		t.Fatalf("legacy source should survive when parameters omit it, got %q", d.SourceEnvironment)
	}
	if len(d.Packages) != 1 || d.Packages[0] != "site.cms.app.1.0.0.nupkg" {
		t.Fatalf("parameters.packages should win, got %v", d.Packages)
	}
	if d.StartTime != "2026-01-01T00:00:00Z" {
		t.Fatalf("created should backfill startTime, got %q", d.StartTime)
	}
}

func TestStartDeploymentOmitsUnsetOptionals(t *testing.T) {
	var gotBody map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write(envelopeOK(Deployment{ID: "d1", Status: StatusInProgress}))
	})

	_, err := client.StartDeployment(context.Background(), "p1", StartDeploymentRequest{
		TargetEnvironment: "integration",
		Packages:          []string{"site.head.app.1.0.0.zip"},
	})
	if err != nil {
		t.Fatalf("StartDeployment returned error: %v", err)
	}

	for _, absent := range []string{"sourceEnvironment", "sourceApp", "maintenancePage"} {
		if _, ok := gotBody[absent]; ok {
			t.Fatalf("field %q should be omitted when unset, body: %v", absent, gotBody)
		}
	}
	if gotBody["targetEnvironment"] != "integration" {
		t.Fatalf("targetEnvironment missing from body: %v", gotBody)
	}
}

func TestUploadPackageSplicesBlobNameIntoSASURL(t *testing.T) {
	dir := t.TempDir()
	artifact := dir + "/site.cms.app.1.0.0.nupkg"
	if err := writeFile(artifact, []byte("package-bytes")); err != nil {
		t.Fatal(err)
	}

	var gotPath, gotQuery, gotBlobType string
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotBlobType = r.Header.Get("x-ms-blob-type")
		w.WriteHeader(http.StatusCreated)
	})

	sas := server.URL + "/container?sig=abc&se=2026"
	if err := client.UploadPackage(context.Background(), sas, artifact); err != nil {
		t.Fatalf("UploadPackage returned error: %v", err)
	}

	if gotPath != "/container/site.cms.app.1.0.0.nupkg" {
		t.Fatalf("blob name not spliced into path, got %q", gotPath)
	}
	if gotQuery != "sig=abc&se=2026" {
		t.Fatalf("SAS query lost, got %q", gotQuery)
	}
	if gotBlobType != "BlockBlob" {
		t.Fatalf("expected BlockBlob header, got %q", gotBlobType)
	}
}

func TestUploadPackageReportsLeaseConflict(t *testing.T) {
	dir := t.TempDir()
	artifact := dir + "/site.cms.app.1.0.0.nupkg"
	if err := writeFile(artifact, []byte("x")); err != nil {
		t.Fatal(err)
	}

	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	})

	err := client.UploadPackage(context.Background(), server.URL+"/c?sig=s", artifact)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 APIError, got %v", err)
	}
	if !strings.Contains(apiErr.Message, "locked") {
		t.Fatalf("412 message should explain the lease conflict, got %q", apiErr.Message)
	}
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
