package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"epideploy/internal/api"
	"epideploy/internal/config"
	"epideploy/internal/credentials"
	"epideploy/shared"
)

var authlog = shared.PackageLogger("auth", "🔐 AUTH")

var (
	loginClientKey    string
	loginClientSecret string
	loginProjectID    string
	loginEndpoint     string
	loginSkipCheck    bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored API credentials",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an API key pair in the OS keychain",
	Long: `Validate a client key pair against the deployment API and store it in
the operating system keychain. An optional default project id is saved
alongside so later commands can omit --project-id.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		creds := credentials.Credentials{
			ClientKey:    loginClientKey,
			ClientSecret: loginClientSecret,
			ProjectID:    loginProjectID,
		}
		if creds.Empty() {
			return errors.New("auth: --client-key and --client-secret are both required")
		}

		cfg, err := config.NewManager()
		if err != nil {
			return err
		}
		if err := cfg.Load(); err != nil {
			return err
		}
		if loginEndpoint != "" {
			cfg.SetAPIEndpoint(loginEndpoint)
		}

		if !loginSkipCheck {
			client, err := api.New(api.Options{Endpoint: cfg.APIEndpoint(), Credentials: creds})
			if err != nil {
				return err
			}
			authlog.Info("Validating credentials against %s", cfg.APIEndpoint())
			result, err := client.ValidateCredentials(cmd.Context(), creds)
			if err != nil {
				return fmt.Errorf("auth: could not validate credentials: %w", err)
			}
			if !result.Valid {
				return errors.New("auth: the API rejected this key pair, nothing was stored")
			}
		}

		store := credentials.NewStore()
		if err := store.Save(creds); err != nil {
			return err
		}
		if loginEndpoint != "" || loginProjectID != "" {
			if loginProjectID != "" {
				cfg.SetDefaultProjectID(loginProjectID)
			}
			if err := cfg.Save(); err != nil {
				return err
			}
		}

		authlog.Success("Credentials stored in the system keychain")
		return emit(map[string]string{"clientKey": creds.ClientKey, "projectId": creds.ProjectID})
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials from the OS keychain",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := credentials.NewStore().Clear(); err != nil {
			return err
		}
		authlog.Success("Stored credentials removed")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which credentials are stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := credentials.NewStore().Load()
		if errors.Is(err, credentials.ErrNoCredentials) {
			authlog.Warn("No credentials stored, run 'epideploy auth login'")
			return emit(map[string]interface{}{"authenticated": false})
		}
		if err != nil {
			return err
		}

		authlog.Info("Client key:      %s", creds.ClientKey)
		if creds.ProjectID != "" {
			authlog.Info("Default project: %s", creds.ProjectID)
		}
		return emit(map[string]interface{}{
			"authenticated": true,
			"clientKey":     creds.ClientKey,
			"projectId":     creds.ProjectID,
		})
	},
}

var authTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Verify the active credentials against the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}

		result, err := s.client.ValidateCredentials(cmd.Context(), s.client.Credentials())
		if err != nil {
			return err
		}
		if !result.Valid {
			return errors.New("auth: the API rejected the active credentials")
		}

		if result.ProjectsFound > 0 {
			authlog.Success("Credentials are valid, %d project(s) visible", result.ProjectsFound)
		} else {
			authlog.Success("Credentials are valid")
		}
		return emit(result)
	},
}

func init() {
	authLoginCmd.Flags().StringVar(&loginClientKey, "client-key", "", "API client key")
	authLoginCmd.Flags().StringVar(&loginClientSecret, "client-secret", "", "API client secret (base64)")
	authLoginCmd.Flags().StringVar(&loginProjectID, "default-project-id", "", "Project GUID to use when --project-id is omitted")
	authLoginCmd.Flags().StringVar(&loginEndpoint, "api-endpoint", "", "Override the deployment API endpoint")
	authLoginCmd.Flags().BoolVar(&loginSkipCheck, "skip-validation", false, "Store without calling the API first")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authTestCmd)
	rootCmd.AddCommand(authCmd)
}
