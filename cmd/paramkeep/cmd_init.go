package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/paramkeep/paramkeep/client"
)

func newInitCmd() *cobra.Command {
	var (
		initURL     string
		initAPIKey  string
		initProfile string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up paramkeep CLI configuration",
		Long:  "Interactive setup wizard that creates ~/.paramkeep/config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			nonInteractive := initURL != "" || initAPIKey != ""
			return runInit(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), initURL, initAPIKey, initProfile, nonInteractive)
		},
	}

	cmd.Flags().StringVar(&initURL, "url", "", "Server URL (non-interactive mode)")
	cmd.Flags().StringVar(&initAPIKey, "api-key", "", "API key (non-interactive mode)")
	cmd.Flags().StringVar(&initProfile, "profile", "default", "Profile to write")
	return cmd
}

func runInit(ctx context.Context, in io.Reader, out io.Writer, url, apiKey, profile string, nonInteractive bool) error {
	if !nonInteractive {
		fmt.Fprintln(out, "\n  paramkeep setup")
		fmt.Fprintln(out, "  ───────────────")
		fmt.Fprintln(out)

		reader := bufio.NewReader(in)

		fmt.Fprintf(out, "  Server URL [%s]: ", defaultURL)
		line, _ := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			url = line
		}

		fmt.Fprint(out, "  API Key: ")
		keyLine, _ := reader.ReadString('\n')
		apiKey = strings.TrimSpace(keyLine)
	}

	if url == "" {
		url = defaultURL
	}

	if apiKey == "" {
		return fmt.Errorf("API key is required")
	}

	// Test connection.
	if !nonInteractive {
		fmt.Fprint(out, "\n  Testing connection... ")
	}

	ver, err := testConnection(ctx, url, apiKey)
	if err != nil {
		if !nonInteractive {
			fmt.Fprintln(out, "✗")
		}
		return fmt.Errorf("connection failed: %w", err)
	}

	if !nonInteractive {
		fmt.Fprintf(out, "✓ Connected (v%s)\n", ver)
	}

	cfgPath, err := writeConfig(url, apiKey, profile)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if nonInteractive {
		fmt.Fprintf(out, "Config saved to %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "\n  ✓ Config saved to %s\n", cfgPath)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Next steps:")
		fmt.Fprintln(out, "    paramkeep doctor             # Full diagnostic check")
		fmt.Fprintln(out, "    paramkeep audit-logs summary # View your audit trail")
		fmt.Fprintln(out, "    paramkeep --help             # See all commands")
		fmt.Fprintln(out)
	}

	return nil
}

// testConnection checks the server is up and the key is accepted, and
// returns the server version.
func testConnection(ctx context.Context, url, apiKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c := client.New(url, client.WithAPIKey(apiKey))
	health, err := c.Health(ctx)
	if err != nil {
		return "", err
	}
	if _, err := c.Audit.Summary(ctx); err != nil {
		return "", err
	}

	if health.Version == "" {
		return "unknown", nil
	}
	return health.Version, nil
}

// writeConfig stores the profile and makes it active, keeping other profiles.
func writeConfig(url, apiKey, profile string) (string, error) {
	cfgPath, err := configPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return "", err
	}

	cfg := configFile{}
	if _, existing, err := loadConfigFile(); err == nil {
		cfg = *existing
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]configProfile{}
	}
	cfg.Profiles[profile] = configProfile{URL: url, APIKey: apiKey}
	cfg.ActiveProfile = profile

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		return "", err
	}

	return cfgPath, nil
}
