package cmd

import (
	"testing"
)

func TestResolveCredentialsPrefersFlagsOverEnv(t *testing.T) {
	t.Setenv(envClientKey, "env-key")
	t.Setenv(envClientSecret, "ZW52LXNlY3JldA==")

	flagClientKey = "flag-key"
	flagClientSecret = "ZmxhZy1zZWNyZXQ="
	defer func() { flagClientKey, flagClientSecret = "", "" }()

	creds, err := resolveCredentials(nil)
	if err != nil {
		t.Fatalf("resolveCredentials returned error: %v", err)
	}
	if creds.ClientKey != "flag-key" {
		t.Fatalf("flags must win over env, got key %q", creds.ClientKey)
	}
}

func TestResolveCredentialsUsesEnvPair(t *testing.T) {
	t.Setenv(envClientKey, "env-key")
	t.Setenv(envClientSecret, "ZW52LXNlY3JldA==")

	creds, err := resolveCredentials(nil)
	if err != nil {
		t.Fatalf("resolveCredentials returned error: %v", err)
	}
	if creds.ClientKey != "env-key" || creds.ClientSecret != "ZW52LXNlY3JldA==" {
		t.Fatalf("env pair not picked up: %+v", creds)
	}
}

func TestResolveCredentialsRejectsPartialOverride(t *testing.T) {
	t.Setenv(envClientKey, "env-key")
	t.Setenv(envClientSecret, "")

	if _, err := resolveCredentials(nil); err == nil {
		t.Fatal("a key without a secret must be rejected, not merged with stored credentials")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "", "c", "d"); got != "c" {
		t.Fatalf("expected first non-empty value, got %q", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Fatalf("no values should yield empty, got %q", got)
	}
}
