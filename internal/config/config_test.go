package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/skylane-tw/tdx-air-gateway/pkg/auth"
	"github.com/skylane-tw/tdx-air-gateway/pkg/client"
)

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("TDX_CLIENT_ID", "id")
	t.Setenv("TDX_CLIENT_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setCredentials(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.AuthURL != auth.DefaultTokenURL {
		t.Errorf("AuthURL = %q", cfg.AuthURL)
	}
	if cfg.APIURL != client.DefaultBaseURL {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.CacheTTL != 30*time.Second || cfg.RateWindow != 30*time.Second {
		t.Errorf("CacheTTL = %s, RateWindow = %s, want 30s", cfg.CacheTTL, cfg.RateWindow)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty", cfg.RedisURL)
	}
	if cfg.Addr() != ":3000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestLoad_Environment(t *testing.T) {
	setCredentials(t)
	t.Setenv("PORT", "8088")
	t.Setenv("CACHE_TTL", "45s")
	t.Setenv("RATE_WINDOW", "1m")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8088 {
		t.Errorf("Port = %d, want 8088", cfg.Port)
	}
	if cfg.CacheTTL != 45*time.Second {
		t.Errorf("CacheTTL = %s, want 45s", cfg.CacheTTL)
	}
	if cfg.RateWindow != time.Minute {
		t.Errorf("RateWindow = %s, want 1m", cfg.RateWindow)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		secret string
		want   string
	}{
		{"no id", "", "secret", "TDX_CLIENT_ID is required"},
		{"no secret", "id", "", "TDX_CLIENT_SECRET is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TDX_CLIENT_ID", tt.id)
			t.Setenv("TDX_CLIENT_SECRET", tt.secret)

			_, err := Load(nil)
			if err == nil {
				t.Fatal("Load() should fail without credentials")
			}
			if err.Error() != tt.want {
				t.Errorf("error = %q, want %q", err, tt.want)
			}
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		env   string
		value string
	}{
		{"PORT", "0"},
		{"LOG_LEVEL", "verbose"},
		{"CACHE_TTL", "0s"},
		{"CACHE_CAPACITY", "0"},
		{"TDX_API_URL", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			setCredentials(t)
			t.Setenv(tt.env, tt.value)

			_, err := Load(nil)
			if err == nil {
				t.Fatalf("Load() should reject %s=%q", tt.env, tt.value)
			}
			if !strings.Contains(err.Error(), tt.env) {
				t.Errorf("error %q should name %s", err, tt.env)
			}
		})
	}
}

func TestLoad_FlagOverridesEnvironment(t *testing.T) {
	setCredentials(t)
	t.Setenv("PORT", "8088")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 3000, "")
	if err := flags.Parse([]string{"--port=9090"}); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	if err := v.BindPFlag(KeyPort, flags.Lookup("port")); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
}

func TestLoadDotEnv(t *testing.T) {
	// Register the keys for restoration, then clear them so the file applies.
	t.Setenv("TDX_CLIENT_ID", "")
	t.Setenv("TDX_CLIENT_SECRET", "")
	os.Unsetenv("TDX_CLIENT_ID")
	os.Unsetenv("TDX_CLIENT_SECRET")

	path := filepath.Join(t.TempDir(), ".env")
	content := "TDX_CLIENT_ID=from-file\nTDX_CLIENT_SECRET=file-secret\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ClientID != "from-file" {
		t.Errorf("ClientID = %q, want from-file", cfg.ClientID)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadDotEnv() on missing file = %v, want nil", err)
	}
	if err := LoadDotEnv(""); err != nil {
		t.Errorf("LoadDotEnv(\"\") = %v, want nil", err)
	}
}
