package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/paramkeep/paramkeep/client"
)

// Build-time variables set via ldflags.
var (
	version   = "0.3.0"
	commit    = ""
	buildDate = ""
)

const defaultURL = "http://localhost:3030"

var (
	apiClient *client.Client
	flagURL   string
	flagKey   string
	flagFmt   string
)

// exit is swapped out in tests.
var exit = os.Exit

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("paramkeep version %s (commit: %s, built: %s)", version, commit, buildDate)
	}
	return fmt.Sprintf("paramkeep version %s-dev", version)
}

type configFile struct {
	// Flat format (legacy)
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	// Profile format
	Profiles      map[string]configProfile `yaml:"profiles"`
	ActiveProfile string                   `yaml:"active_profile"`
}

type configProfile struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "paramkeep",
		Short:   "paramkeep CLI: configuration and secrets with a full audit trail",
		Version: versionString(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			resolveConfig()
			var opts []client.Option
			if flagKey != "" {
				opts = append(opts, client.WithAPIKey(flagKey))
			}
			apiClient = client.New(flagURL, opts...)
		},
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "paramkeep server URL (env: PARAMKEEP_URL)")
	rootCmd.PersistentFlags().StringVar(&flagKey, "api-key", "", "API key (env: PARAMKEEP_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "table", "Output format: table|json|csv|yaml|quiet")

	initCmd := newInitCmd()
	initCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {} // skip client setup
	doctorCmd := newDoctorCmd()
	doctorCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) { resolveConfig() }

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newEnvironmentCmd())
	rootCmd.AddCommand(newProjectCmd())
	rootCmd.AddCommand(newParameterCmd())
	rootCmd.AddCommand(newTemplateCmd())
	rootCmd.AddCommand(newUserCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".paramkeep", "config.yaml"), nil
}

func loadConfigFile() (string, *configFile, error) {
	cfgPath, err := configPath()
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return cfgPath, nil, err
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfgPath, nil, err
	}
	return cfgPath, &cfg, nil
}

// settings returns the URL and API key recorded in the config file, preferring
// the active profile over the flat legacy fields.
func (cfg *configFile) settings() (url, apiKey string) {
	url, apiKey = cfg.URL, cfg.APIKey
	if cfg.Profiles == nil {
		return url, apiKey
	}
	profileName := cfg.ActiveProfile
	if profileName == "" {
		profileName = "default"
	}
	if p, ok := cfg.Profiles[profileName]; ok {
		if p.URL != "" {
			url = p.URL
		}
		if p.APIKey != "" {
			apiKey = p.APIKey
		}
	}
	return url, apiKey
}

func resolveConfig() {
	// Flag takes precedence, then env, then config file.
	if flagURL == defaultURL {
		if v := os.Getenv("PARAMKEEP_URL"); v != "" {
			flagURL = v
		}
	}
	if flagKey == "" {
		flagKey = os.Getenv("PARAMKEEP_API_KEY")
	}

	_, cfg, err := loadConfigFile()
	if err != nil {
		return
	}
	resolvedURL, resolvedKey := cfg.settings()
	if flagURL == defaultURL && resolvedURL != "" {
		flagURL = resolvedURL
	}
	if flagKey == "" && resolvedKey != "" {
		flagKey = resolvedKey
	}
}

// Exit codes reported for audit query failures.
const (
	exitGeneric            = 1
	exitInvalidTime        = 34
	exitUserNotFound       = 35
	exitEnvNotFound        = 36
	exitProjectNotFound    = 37
	exitParameterNotFound  = 38
	exitInvalidCombination = 39
)

// exitCode maps an API error code onto the process exit status.
func exitCode(err error) int {
	switch client.ErrorCode(err) {
	case "invalid_value":
		return exitInvalidTime
	case "user_not_found":
		return exitUserNotFound
	case "environment_not_found":
		return exitEnvNotFound
	case "project_not_found":
		return exitProjectNotFound
	case "parameter_not_found":
		return exitParameterNotFound
	case "invalid_combination":
		return exitInvalidCombination
	default:
		return exitGeneric
	}
}

// printError writes err to w. API errors print their message and each
// additional diagnostic on its own line.
func printError(w io.Writer, msg string, err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Code != "unknown" {
		fmt.Fprintf(w, "Error: %s\n", apiErr.Message)
		for _, d := range apiErr.Details {
			if d != apiErr.Message {
				fmt.Fprintf(w, "Error: %s\n", d)
			}
		}
		return
	}
	fmt.Fprintf(w, "Error: %s: %v\n", msg, err)
}

func fatal(msg string, err error) {
	printError(os.Stderr, msg, err)
	exit(exitCode(err))
}
