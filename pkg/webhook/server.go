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

// Package webhook is the GitHub App webhook HTTP server: it validates an
// incoming delivery's signature, extracts a canonical event, hands it to
// the shared dispatcher on a detached goroutine, and acknowledges the
// request immediately.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/abcxyz/pkg/healthcheck"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/renderer"

	"github.com/abcxyz/octomachinery-go/pkg/appauth"
	"github.com/abcxyz/octomachinery-go/pkg/crashreport"
	"github.com/abcxyz/octomachinery-go/pkg/router"
)

// FileReader can read a file and return its content, abstracting over a
// mounted Kubernetes secret file during tests.
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// Server is the webhook HTTP server.
type Server struct {
	app           *appauth.App
	webhookSecret []byte
	routers       []*router.Router
	sink          crashreport.Sink
	h             *renderer.Renderer
}

// Options overrides dependencies NewServer would otherwise construct
// directly, for tests.
type Options struct {
	FileReaderOverride FileReader
}

// NewServer builds the webhook server's App (from PEM bytes, a mounted key
// file, or Cloud KMS, per cfg) and binds it to routers.
func NewServer(ctx context.Context, h *renderer.Renderer, cfg *Config, routers []*router.Router, sink crashreport.Sink, opts *Options) (*Server, error) {
	if opts == nil {
		opts = &Options{}
	}

	app, err := cfg.BuildApp(ctx, opts.FileReaderOverride)
	if err != nil {
		return nil, err
	}

	return &Server{
		app:           app,
		webhookSecret: []byte(cfg.GitHubWebhookSecret),
		routers:       routers,
		sink:          sink,
		h:             h,
	}, nil
}

// BuildApp constructs the appauth.App described by cfg: it resolves the
// application's private key (from PEM bytes, a mounted key file, or Cloud
// KMS), optionally checks it against a pinned fingerprint, and points the
// app at cfg's GitHub API base URL. Shared by the webhook server and the
// Action runner, which both dispatch through the same App type.
func (cfg *Config) BuildApp(ctx context.Context, fr FileReader) (*appauth.App, error) {
	appID, err := strconv.ParseInt(cfg.GitHubAppID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GITHUB_APP_IDENTIFIER: %w", err)
	}

	privateKey, err := loadPrivateKey(ctx, cfg, fr)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	if cfg.GitHubPrivateKeyFingerprint != "" && !privateKey.MatchesFingerprint(cfg.GitHubPrivateKeyFingerprint) {
		return nil, fmt.Errorf("loaded private key fingerprint %q does not match configured GITHUB_PRIVATE_KEY_FINGERPRINT %q",
			privateKey.Fingerprint(), cfg.GitHubPrivateKeyFingerprint)
	}

	app := appauth.NewApp(appID, privateKey, cfg.UserAgent())
	if cfg.GitHubAPIBaseURL != "" && cfg.GitHubAPIBaseURL != "https://api.github.com" {
		app = app.WithBaseURL(cfg.GitHubAPIBaseURL)
	}
	return app, nil
}

func loadPrivateKey(ctx context.Context, cfg *Config, fr FileReader) (*appauth.PrivateKey, error) {
	switch {
	case cfg.KMSAppPrivateKeyID != "":
		return appauth.NewPrivateKeyFromKMS(ctx, cfg.KMSAppPrivateKeyID)
	case cfg.GitHubPrivateKeyMountPath != "":
		if fr == nil {
			fr = NewOSFileReader()
		}
		data, err := fr.ReadFile(fmt.Sprintf("%s/%s", cfg.GitHubPrivateKeyMountPath, cfg.GitHubPrivateKeyName))
		if err != nil {
			return nil, fmt.Errorf("failed to read mounted private key: %w", err)
		}
		return appauth.NewPrivateKey(data)
	default:
		return appauth.NewPrivateKey([]byte(cfg.GitHubPrivateKey))
	}
}

// Routes creates a ServeMux for every route the server supports.
func (s *Server) Routes(ctx context.Context) http.Handler {
	logger := logging.FromContext(ctx)
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", healthcheck.HandleHTTPHealthCheck())
	mux.Handle("POST /webhook", s.handleWebhook())
	mux.Handle("GET /version", s.handleVersion())

	root := logging.HTTPInterceptor(logger, "")(mux)
	return root
}

// App returns the application handle the server dispatches events through,
// for cmd/server to log or inspect at startup.
func (s *Server) App() *appauth.App { return s.app }

// handleVersion reports the app identity the server is currently dispatching
// events for.
func (s *Server) handleVersion() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.h.RenderJSON(w, http.StatusOK, map[string]string{
			"app_id":      strconv.FormatInt(s.app.AppID(), 10),
			"private_key": s.app.String(),
		})
	})
}
