package main

import (
	"os"
	"path/filepath"
	"testing"
)

// resetFlags restores global flag state after each test.
func resetFlags(t *testing.T) {
	t.Helper()
	orig := struct{ url, key, fmt string }{flagURL, flagKey, flagFmt}
	t.Cleanup(func() {
		flagURL = orig.url
		flagKey = orig.key
		flagFmt = orig.fmt
	})
}

// isolate points HOME at a temp dir and clears the paramkeep env vars.
func isolate(t *testing.T) string {
	t.Helper()
	resetFlags(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PARAMKEEP_URL", "")
	t.Setenv("PARAMKEEP_API_KEY", "")
	flagURL = defaultURL
	flagKey = ""
	return home
}

func writeTestConfig(t *testing.T, home, content string) {
	t.Helper()
	dir := filepath.Join(home, ".paramkeep")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestResolveConfigEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PARAMKEEP_URL", "http://env-server:9090")
	t.Setenv("PARAMKEEP_API_KEY", "pk_env")

	resolveConfig()

	if flagURL != "http://env-server:9090" {
		t.Errorf("flagURL: got %q", flagURL)
	}
	if flagKey != "pk_env" {
		t.Errorf("flagKey: got %q", flagKey)
	}
}

func TestResolveConfigFlagBeatsEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PARAMKEEP_URL", "http://env-server:9090")
	t.Setenv("PARAMKEEP_API_KEY", "pk_env")

	flagURL = "http://flag-server:1111"
	flagKey = "pk_flag"
	resolveConfig()

	if flagURL != "http://flag-server:1111" || flagKey != "pk_flag" {
		t.Errorf("got %q / %q, want flag values", flagURL, flagKey)
	}
}

func TestResolveConfigActiveProfile(t *testing.T) {
	home := isolate(t)
	writeTestConfig(t, home, `
profiles:
  default:
    url: http://default:3030
    api_key: pk_default
  staging:
    url: http://staging:3030
    api_key: pk_staging
active_profile: staging
`)

	resolveConfig()

	if flagURL != "http://staging:3030" || flagKey != "pk_staging" {
		t.Errorf("got %q / %q, want staging profile", flagURL, flagKey)
	}
}

func TestResolveConfigEnvBeatsFile(t *testing.T) {
	home := isolate(t)
	writeTestConfig(t, home, "url: http://file:3030\napi_key: pk_file\n")
	t.Setenv("PARAMKEEP_API_KEY", "pk_env")

	resolveConfig()

	if flagURL != "http://file:3030" {
		t.Errorf("flagURL: got %q, want legacy file value", flagURL)
	}
	if flagKey != "pk_env" {
		t.Errorf("flagKey: got %q, want env value", flagKey)
	}
}

func TestWriteConfigKeepsOtherProfiles(t *testing.T) {
	home := isolate(t)
	writeTestConfig(t, home, "profiles:\n  prod:\n    url: http://prod\n    api_key: pk_prod\nactive_profile: prod\n")

	path, err := writeConfig("http://dev", "pk_dev", "dev")
	if err != nil {
		t.Fatalf("writeConfig: %v", err)
	}
	if path != filepath.Join(home, ".paramkeep", "config.yaml") {
		t.Errorf("path = %q", path)
	}

	_, cfg, err := loadConfigFile()
	if err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}
	if cfg.ActiveProfile != "dev" {
		t.Errorf("active profile = %q, want dev", cfg.ActiveProfile)
	}
	if cfg.Profiles["prod"].APIKey != "pk_prod" {
		t.Errorf("prod profile lost: %+v", cfg.Profiles)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}
