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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abcxyz/octomachinery-go/pkg/ghevent"
	"github.com/abcxyz/octomachinery-go/pkg/rawclient"
	"github.com/abcxyz/pkg/logging"
)

const defaultJWTValidity = 60 * time.Second

// ErrNoInstallation is returned by GetInstallation when the event it was
// given carries no installation reference (e.g. "ping", "security_advisory").
var ErrNoInstallation = errors.New("appauth: event occurred outside of an installation")

// App is a GitHub App: its identity, private key, and the installations it
// has discovered so far.
type App struct {
	appID      int64
	privateKey *PrivateKey
	userAgent  string
	baseURL    string

	mu            sync.Mutex
	installations map[int64]*Installation
}

// NewApp constructs an App bound to appID and privateKey.
func NewApp(appID int64, privateKey *PrivateKey, userAgent string) *App {
	return &App{
		appID:         appID,
		privateKey:    privateKey,
		userAgent:     userAgent,
		installations: make(map[int64]*Installation),
	}
}

// WithBaseURL points the app's API client at a GitHub Enterprise Server
// deployment (or a test server) instead of the default api.github.com.
func (a *App) WithBaseURL(baseURL string) *App {
	a.baseURL = baseURL
	return a
}

// AppID returns the application's numeric GitHub App id.
func (a *App) AppID() int64 { return a.appID }

// String renders the app's identity and its private key's fingerprint,
// never the key material itself.
func (a *App) String() string {
	return fmt.Sprintf("App(id=%d, key=%s)", a.appID, a.privateKey)
}

// JWT mints a fresh App JWT, valid for 60 seconds.
func (a *App) JWT() (JWTToken, error) {
	signed, err := a.privateKey.MakeJWT(a.appID, defaultJWTValidity)
	if err != nil {
		return JWTToken{}, fmt.Errorf("failed to mint app JWT: %w", err)
	}
	return NewJWTToken(signed), nil
}

// APIClient returns a raw API client authenticated as the application
// itself (its JWT), used for installation discovery and token refresh.
func (a *App) APIClient() *rawclient.Client {
	client := rawclient.New(a.userAgent, func(ctx context.Context) (rawclient.Token, error) {
		return a.JWT()
	})
	if a.baseURL != "" {
		client = client.WithBaseURL(a.baseURL)
	}
	return client
}

// GetInstallationByID fetches installation metadata from GitHub and returns
// an Installation entity bound to this application. It is the per-event
// lookup path and deliberately does not touch a.installations: that map is
// written only by GetInstallations and ObserveInstallationEvent, never from
// this hot dispatch path.
func (a *App) GetInstallationByID(ctx context.Context, id int64) (*Installation, error) {
	resp, err := a.APIClient().GetItem(ctx,
		fmt.Sprintf("/app/installations/%d", id),
		rawclient.WithPreview("machine-man"))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch installation %d: %w", id, err)
	}

	metadata := installationMetadataFromResponse(resp)
	return newInstallation(a, metadata), nil
}

// GetInstallations pages through every installation of this app.
func (a *App) GetInstallations(ctx context.Context) ([]*Installation, error) {
	pages, err := a.APIClient().GetIter(ctx, "/app/installations", rawclient.WithPreview("machine-man"))
	if err != nil {
		return nil, fmt.Errorf("failed to list installations: %w", err)
	}

	result := make([]*Installation, 0, len(pages))
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, raw := range pages {
		metadata := installationMetadataFromResponse(raw)
		installation := newInstallation(a, metadata)
		a.installations[metadata.ID] = installation
		result = append(result, installation)
	}
	return result, nil
}

// GetInstallation extracts the installation id carried by event's payload
// and resolves it to an Installation, returning ErrNoInstallation if the
// event occurred outside of an installation context.
func (a *App) GetInstallation(ctx context.Context, event ghevent.Event) (*Installation, error) {
	id, ok := event.InstallationID()
	if !ok {
		return nil, ErrNoInstallation
	}
	return a.GetInstallationByID(ctx, id)
}

// LogInstallsList enumerates this app's installations once, purely to leave
// a human-readable record at startup; it is not consulted by the per-event
// dispatch path, which always looks installations up fresh by id. A
// transient GitHub outage is logged and swallowed rather than failing
// startup.
func (a *App) LogInstallsList(ctx context.Context) {
	logger := logging.FromContext(ctx)

	installations, err := a.GetInstallations(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to enumerate installations at startup", "error", err)
		return
	}

	logins := make([]string, 0, len(installations))
	for _, installation := range installations {
		logins = append(logins, installation.Metadata().AccountLogin)
	}
	logger.InfoContext(ctx, "github app installations", "count", len(installations), "accounts", logins)
}

// ObserveInstallationEvent keeps the app's in-memory installation map in
// sync with "installation" and "installation_repositories" webhook
// deliveries and logs each change. Nothing else reads the map:
// LogInstallsList re-fetches the list from GitHub rather than consulting it.
// It never gates or caches credentials: AccessToken and GetInstallationByID
// always look up fresh, regardless of what this method has (or hasn't)
// observed.
func (a *App) ObserveInstallationEvent(ctx context.Context, event ghevent.Event) {
	if event.Name() != "installation" && event.Name() != "installation_repositories" {
		return
	}

	raw, ok := event.Payload()["installation"].(map[string]any)
	if !ok {
		return
	}
	metadata := installationMetadataFromResponse(raw)
	if metadata.ID == 0 {
		return
	}

	logger := logging.FromContext(ctx)

	action, _ := event.Payload()["action"].(string)
	a.mu.Lock()
	defer a.mu.Unlock()

	if action == "deleted" {
		delete(a.installations, metadata.ID)
		logger.InfoContext(ctx, "installation removed", "installation_id", metadata.ID, "account", metadata.AccountLogin)
		return
	}

	a.installations[metadata.ID] = newInstallation(a, metadata)
	logger.InfoContext(ctx, "installation observed", "installation_id", metadata.ID, "account", metadata.AccountLogin, "action", action)
}

func installationMetadataFromResponse(resp map[string]any) InstallationMetadata {
	metadata := InstallationMetadata{}
	if id, ok := ghevent.AsInt64(resp["id"]); ok {
		metadata.ID = id
	}
	if url, ok := resp["access_tokens_url"].(string); ok {
		metadata.AccessTokensURL = url
	}
	if selection, ok := resp["repository_selection"].(string); ok {
		metadata.RepositorySelection = selection
	}
	if account, ok := resp["account"].(map[string]any); ok {
		if login, ok := account["login"].(string); ok {
			metadata.AccountLogin = login
		}
	}
	return metadata
}
