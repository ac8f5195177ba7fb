// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sethvargo/go-envconfig"

	"github.com/abcxyz/pkg/cfgloader"
	"github.com/abcxyz/pkg/cli"
)

// Config defines the set of environment variables required for running the
// webhook server.
type Config struct {
	Environment      string `env:"ENVIRONMENT,default=production"`
	Port             string `env:"PORT,default=8080"`
	GitHubAPIBaseURL string `env:"GITHUB_API_BASE_URL,default=https://api.github.com"`

	GitHubAppID string `env:"GITHUB_APP_IDENTIFIER,required"`
	// GitHubPrivateKey is held as a plain string, not secret.Strong:
	// cli.StringVar.Target requires a *string, and ToFlags below binds
	// every Config field that way. BuildApp converts it to secret-bearing
	// types ([]byte for appauth.NewPrivateKey) at its one use site.
	GitHubPrivateKey            string `env:"GITHUB_PRIVATE_KEY"`
	GitHubPrivateKeyMountPath   string `env:"GITHUB_PRIVATE_KEY_MOUNT_PATH"`
	GitHubPrivateKeyName        string `env:"GITHUB_PRIVATE_KEY_NAME"`
	GitHubPrivateKeyFingerprint string `env:"GITHUB_PRIVATE_KEY_FINGERPRINT"`
	KMSAppPrivateKeyID          string `env:"KMS_APP_PRIVATE_KEY_ID"`

	// GitHubWebhookSecret is likewise a plain string for ToFlags' sake;
	// NewServer converts it to []byte for HMAC verification.
	GitHubWebhookSecret string `env:"GITHUB_WEBHOOK_SECRET"`

	AppName    string `env:"OCTOMACHINERY_APP_NAME,default=octomachinery-go"`
	AppVersion string `env:"OCTOMACHINERY_APP_VERSION,default=dev"`
	AppURL     string `env:"OCTOMACHINERY_APP_URL"`

	// SentryDSN holds the SENTRY_DSN crash-sink setting, the value
	// crashreport.NewDSNGatedSink gates on. cmd/server and cmd/action do not
	// read it: they report through crashreport.NewLogSink whether or not it
	// is set.
	SentryDSN string `env:"SENTRY_DSN"`
	// Debug holds the DEBUG setting. Nothing in this module reads it; log
	// verbosity comes from logging.NewFromEnv's own environment variables.
	Debug bool `env:"DEBUG,default=false"`
}

// Validate validates the webhook config after load.
func (cfg *Config) Validate() error {
	if cfg.Environment != "production" && cfg.Environment != "autopush" {
		return fmt.Errorf("ENVIRONMENT must be one of 'production' or 'autopush', got %q", cfg.Environment)
	}

	if cfg.GitHubAppID == "" {
		return fmt.Errorf("GITHUB_APP_IDENTIFIER is required")
	}
	if _, err := strconv.ParseInt(cfg.GitHubAppID, 10, 64); err != nil {
		return fmt.Errorf("GITHUB_APP_IDENTIFIER must be an integer: %w", err)
	}

	hasInlineKey := cfg.GitHubPrivateKey != ""
	hasMountedKey := cfg.GitHubPrivateKeyMountPath != "" && cfg.GitHubPrivateKeyName != ""
	hasKMSKey := cfg.KMSAppPrivateKeyID != ""

	count := 0
	for _, has := range []bool{hasInlineKey, hasMountedKey, hasKMSKey} {
		if has {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("exactly one of GITHUB_PRIVATE_KEY, (GITHUB_PRIVATE_KEY_MOUNT_PATH and GITHUB_PRIVATE_KEY_NAME), or KMS_APP_PRIVATE_KEY_ID must be set")
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return fmt.Errorf("PORT must be an integer: %w", err)
	}

	return nil
}

// NewConfig creates a new Config from environment variables.
func NewConfig(ctx context.Context) (*Config, error) {
	return newConfig(ctx, envconfig.OsLookuper())
}

func newConfig(ctx context.Context, lu envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := cfgloader.Load(ctx, &cfg, cfgloader.WithLookuper(lu)); err != nil {
		return nil, fmt.Errorf("failed to parse webhook config: %w", err)
	}
	return &cfg, nil
}

// UserAgent renders the "<app_name>/<app_version> (+<app_url>)" user agent
// string sent on every outbound GitHub API request.
func (cfg *Config) UserAgent() string {
	if cfg.AppURL == "" {
		return fmt.Sprintf("%s/%s", cfg.AppName, cfg.AppVersion)
	}
	return fmt.Sprintf("%s/%s (+%s)", cfg.AppName, cfg.AppVersion, cfg.AppURL)
}

// ToFlags binds the config to the [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("COMMON SERVER OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "environment",
		Target:  &cfg.Environment,
		EnvVar:  "ENVIRONMENT",
		Default: "production",
		Usage:   `The execution environment (e.g., "autopush", "production").`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "port",
		Target:  &cfg.Port,
		EnvVar:  "PORT",
		Default: "8080",
		Usage:   `The port the webhook server listens on.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "github-api-base-url",
		Target:  &cfg.GitHubAPIBaseURL,
		EnvVar:  "GITHUB_API_BASE_URL",
		Default: "https://api.github.com",
		Usage:   `The GitHub API base URL.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "github-app-identifier",
		Target: &cfg.GitHubAppID,
		EnvVar: "GITHUB_APP_IDENTIFIER",
		Usage:  `The provisioned GitHub App's numeric identifier.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "github-private-key",
		Target: &cfg.GitHubPrivateKey,
		EnvVar: "GITHUB_PRIVATE_KEY",
		Usage:  `The GitHub App's PEM-encoded private key.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "github-private-key-mount-path",
		Target: &cfg.GitHubPrivateKeyMountPath,
		EnvVar: "GITHUB_PRIVATE_KEY_MOUNT_PATH",
		Usage:  `Directory a mounted private key secret is read from, as an alternative to GITHUB_PRIVATE_KEY.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "github-private-key-name",
		Target: &cfg.GitHubPrivateKeyName,
		EnvVar: "GITHUB_PRIVATE_KEY_NAME",
		Usage:  `File name of the mounted private key secret, under GITHUB_PRIVATE_KEY_MOUNT_PATH.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "github-private-key-fingerprint",
		Target: &cfg.GitHubPrivateKeyFingerprint,
		EnvVar: "GITHUB_PRIVATE_KEY_FINGERPRINT",
		Usage:  `Optional SHA-1 fingerprint the loaded private key must match.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "kms-app-private-key-id",
		Target: &cfg.KMSAppPrivateKeyID,
		EnvVar: "KMS_APP_PRIVATE_KEY_ID",
		Usage:  `Cloud KMS key version resource name, as an alternative to GITHUB_PRIVATE_KEY.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "github-webhook-secret",
		Target: &cfg.GitHubWebhookSecret,
		EnvVar: "GITHUB_WEBHOOK_SECRET",
		Usage:  `HMAC secret used to validate incoming webhook deliveries. Unsigned deliveries are accepted when unset.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "app-name",
		Target:  &cfg.AppName,
		EnvVar:  "OCTOMACHINERY_APP_NAME",
		Default: "octomachinery-go",
		Usage:   `Embedded in the outbound GitHub API user agent.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "app-version",
		Target:  &cfg.AppVersion,
		EnvVar:  "OCTOMACHINERY_APP_VERSION",
		Default: "dev",
		Usage:   `Embedded in the outbound GitHub API user agent.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "app-url",
		Target: &cfg.AppURL,
		EnvVar: "OCTOMACHINERY_APP_URL",
		Usage:  `Embedded in the outbound GitHub API user agent.`,
	})

	return set
}
