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

package appauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/abcxyz/octomachinery-go/pkg/rawclient"
	"github.com/abcxyz/octomachinery-go/pkg/secret"
)

// InstallationMetadata is the subset of a GitHub App installation object
// that Installation needs to refresh its access token.
type InstallationMetadata struct {
	ID                  int64
	AccessTokensURL     string
	AccountLogin        string
	RepositorySelection string
}

// Installation is a single GitHub App installation, capable of refreshing
// its own access token on demand and handing out a raw client bound to it.
type Installation struct {
	metadata  InstallationMetadata
	app       *App
	userAgent string

	mu    sync.Mutex
	token *OAuthToken
}

func newInstallation(app *App, metadata InstallationMetadata) *Installation {
	return &Installation{
		metadata:  metadata,
		app:       app,
		userAgent: app.userAgent,
	}
}

// Metadata returns the installation's identifying metadata.
func (i *Installation) Metadata() InstallationMetadata { return i.metadata }

// AccessToken returns a cached, unexpired installation access token,
// refreshing it through the app's JWT-authenticated client if needed.
func (i *Installation) AccessToken(ctx context.Context) (OAuthToken, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.token != nil && !i.token.Expired() {
		return *i.token, nil
	}

	appClient := i.app.APIClient()
	resp, err := appClient.Post(ctx, i.metadata.AccessTokensURL, nil, rawclient.WithPreview("machine-man"))
	if err != nil {
		return OAuthToken{}, fmt.Errorf("failed to refresh installation %d access token: %w", i.metadata.ID, err)
	}

	tokenValue, _ := resp["token"].(string)
	if tokenValue == "" {
		return OAuthToken{}, fmt.Errorf("installation %d access token response carried no token", i.metadata.ID)
	}

	expiresAt := time.Now().Add(time.Hour)
	if raw, ok := resp["expires_at"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			expiresAt = parsed
		}
	}

	permissions := map[string]string{}
	if raw, ok := resp["permissions"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				permissions[k] = s
			}
		}
	}

	repositorySelection, _ := resp["repository_selection"].(string)

	var repositories []string
	if raw, ok := resp["repositories"].([]any); ok {
		repositories = make([]string, 0, len(raw))
		for _, r := range raw {
			if repo, ok := r.(map[string]any); ok {
				if name, ok := repo["full_name"].(string); ok {
					repositories = append(repositories, name)
				}
			}
		}
	}

	token := NewOAuthToken(secret.Weak(tokenValue), expiresAt).
		WithMetadata(permissions, repositorySelection, repositories)
	i.token = &token
	return token, nil
}

// APIClient returns a raw API client whose token provider refreshes this
// installation's access token before every request, so a long-lived client
// never sends a stale token.
func (i *Installation) APIClient() *rawclient.Client {
	client := rawclient.New(i.userAgent, func(ctx context.Context) (rawclient.Token, error) {
		token, err := i.AccessToken(ctx)
		if err != nil {
			return nil, err
		}
		return token, nil
	})
	if i.app.baseURL != "" {
		client = client.WithBaseURL(i.app.baseURL)
	}
	return client
}

// TokenSource returns an oauth2.TokenSource backed by this installation's
// refreshing AccessToken, for callers that want to drive a standard
// oauth2.Transport or a library (such as go-github) expecting one, rather
// than calling into rawclient directly.
func (i *Installation) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, installationTokenSource{ctx: ctx, installation: i})
}

type installationTokenSource struct {
	ctx          context.Context
	installation *Installation
}

func (s installationTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.installation.AccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: token.value.Reveal(),
		TokenType:   "token",
		Expiry:      token.expiresAt,
	}, nil
}
