package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"epideploy/internal/api"
	"epideploy/internal/config"
	"epideploy/internal/credentials"
)

// Environment overrides. Lower precedence than explicit flags, higher than
// the keychain and config file.
const (
	envClientKey    = "EPIDEPLOY_CLIENT_KEY"
	envClientSecret = "EPIDEPLOY_CLIENT_SECRET"
	envProjectID    = "EPIDEPLOY_PROJECT_ID"
)

// Credential override flags, registered on the commands that support
// per-invocation credentials. They construct an ephemeral override and are
// never persisted.
var (
	flagClientKey    string
	flagClientSecret string
)

var errNoProject = errors.New("no project id: pass --project-id, set EPIDEPLOY_PROJECT_ID, or store one with 'epideploy auth login'")

// session bundles the per-invocation collaborators. Everything is built
// explicitly here; there are no package-level singletons to leak state
// between commands.
type session struct {
	cfg       *config.Manager
	store     *credentials.Store
	client    *api.Client
	projectID string
}

func newSession() (*session, error) {
	cfg, err := config.NewManager()
	if err != nil {
		return nil, err
	}
	if err := cfg.Load(); err != nil {
		return nil, err
	}

	store := credentials.NewStore()

	creds, err := resolveCredentials(store)
	if err != nil {
		return nil, err
	}

	client, err := api.New(api.Options{
		Endpoint:    cfg.APIEndpoint(),
		Credentials: creds,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:       cfg,
		store:     store,
		client:    client,
		projectID: firstNonEmpty(flagProjectID, os.Getenv(envProjectID), creds.ProjectID, cfg.DefaultProjectID()),
	}, nil
}

// resolveCredentials applies the precedence chain: explicit flags, then
// environment, then the keychain. Flag/env credentials are ephemeral.
func resolveCredentials(store *credentials.Store) (credentials.Credentials, error) {
	override := credentials.Credentials{
		ClientKey:    firstNonEmpty(flagClientKey, os.Getenv(envClientKey)),
		ClientSecret: firstNonEmpty(flagClientSecret, os.Getenv(envClientSecret)),
	}
	if !override.Empty() {
		return override, nil
	}
	if override.ClientKey != "" || override.ClientSecret != "" {
		return credentials.Credentials{}, errors.New("both a client key and a client secret are required for an override")
	}
	return store.Load()
}

func (s *session) requireProject() (string, error) {
	if s.projectID == "" {
		return "", errNoProject
	}
	return s.projectID, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// emit prints a command result: pretty JSON in --json mode, nothing
// otherwise (the loggers already narrated the outcome).
func emit(result interface{}) error {
	if !flagJSON {
		return nil
	}
	blob, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(blob))
	return nil
}

// confirm asks the operator before destructive operations. --force and
// --json skip the prompt (there is no interactive reader in CI).
func confirm(prompt string, force bool) bool {
	if force {
		return true
	}
	if flagJSON {
		return false
	}
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
