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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/abcxyz/octomachinery-go/pkg/ghevent"
)

func newTestApp(t *testing.T, baseURL string) *App {
	t.Helper()
	key, err := NewPrivateKey(generateTestKeyPEM(t))
	if err != nil {
		t.Fatal(err)
	}
	app := NewApp(1, key, "octomachinery-go/test")
	if baseURL != "" {
		app.WithBaseURL(baseURL)
	}
	return app
}

func TestApp_GetInstallationByID_PopulatesMetadata(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 7, "access_tokens_url": "/app/installations/7/access_tokens", "account": {"login": "octo-org"}}`))
	}))
	defer srv.Close()

	app := newTestApp(t, srv.URL)
	install, err := app.GetInstallationByID(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if install.Metadata().AccountLogin != "octo-org" {
		t.Errorf("AccountLogin = %q, want octo-org", install.Metadata().AccountLogin)
	}
}

func TestApp_GetInstallation_NoInstallationOnEvent(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, "")
	event, err := ghevent.New("ping", []byte(`{"zen": "hi"}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := app.GetInstallation(context.Background(), event); err != ErrNoInstallation {
		t.Fatalf("GetInstallation() error = %v, want ErrNoInstallation", err)
	}
}

func TestInstallation_AccessToken_CachesUntilExpired(t *testing.T) {
	t.Parallel()

	var tokenCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token": "ghs_abc123", "expires_at": "2999-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	app := newTestApp(t, srv.URL)
	install := newInstallation(app, InstallationMetadata{ID: 1, AccessTokensURL: srv.URL + "/installations/1/access_tokens"})

	first, err := install.AccessToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := install.AccessToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.AuthorizationHeader() != second.AuthorizationHeader() {
		t.Error("expected cached token to be reused")
	}
	if tokenCalls != 1 {
		t.Fatalf("token endpoint called %d times, want 1", tokenCalls)
	}
}

func TestInstallation_AccessToken_PopulatesMetadata(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"token": "ghs_abc123",
			"expires_at": "2999-01-01T00:00:00Z",
			"permissions": {"issues": "write", "contents": "read"},
			"repository_selection": "selected",
			"repositories": [{"full_name": "octo-org/one"}, {"full_name": "octo-org/two"}]
		}`))
	}))
	defer srv.Close()

	app := newTestApp(t, srv.URL)
	install := newInstallation(app, InstallationMetadata{ID: 1, AccessTokensURL: srv.URL + "/installations/1/access_tokens"})

	tok, err := install.AccessToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok.Permissions()["issues"] != "write" {
		t.Errorf("Permissions()[issues] = %q, want write", tok.Permissions()["issues"])
	}
	if tok.RepositorySelection() != "selected" {
		t.Errorf("RepositorySelection() = %q, want selected", tok.RepositorySelection())
	}
	wantRepos := []string{"octo-org/one", "octo-org/two"}
	if diff := cmp.Diff(wantRepos, tok.Repositories()); diff != "" {
		t.Errorf("Repositories() diff (-want +got):\n%s", diff)
	}
}

func TestInstallation_TokenSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token": "ghs_abc123", "expires_at": "2999-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	app := newTestApp(t, srv.URL)
	install := newInstallation(app, InstallationMetadata{ID: 1, AccessTokensURL: srv.URL + "/installations/1/access_tokens"})

	ts := install.TokenSource(context.Background())
	tok, err := ts.Token()
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "ghs_abc123" {
		t.Errorf("AccessToken = %q, want ghs_abc123", tok.AccessToken)
	}
	if tok.TokenType != "token" {
		t.Errorf("TokenType = %q, want token", tok.TokenType)
	}
}

func TestApp_ObserveInstallationEvent(t *testing.T) {
	t.Parallel()

	t.Run("ignores unrelated event", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t, "")
		event, err := ghevent.New("ping", []byte(`{"zen": "hi"}`))
		if err != nil {
			t.Fatal(err)
		}
		app.ObserveInstallationEvent(context.Background(), event)
		if len(app.installations) != 0 {
			t.Fatalf("installations = %v, want empty", app.installations)
		}
	})

	t.Run("upserts on created", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t, "")
		event, err := ghevent.New("installation", []byte(`{
			"action": "created",
			"installation": {"id": 42, "account": {"login": "octo-org"}}
		}`))
		if err != nil {
			t.Fatal(err)
		}
		app.ObserveInstallationEvent(context.Background(), event)

		install, ok := app.installations[42]
		if !ok {
			t.Fatal("installation 42 was not recorded")
		}
		if install.Metadata().AccountLogin != "octo-org" {
			t.Errorf("AccountLogin = %q, want octo-org", install.Metadata().AccountLogin)
		}
	})

	t.Run("upserts on installation_repositories", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t, "")
		event, err := ghevent.New("installation_repositories", []byte(`{
			"action": "added",
			"installation": {"id": 9, "account": {"login": "octo-org"}}
		}`))
		if err != nil {
			t.Fatal(err)
		}
		app.ObserveInstallationEvent(context.Background(), event)
		if _, ok := app.installations[9]; !ok {
			t.Fatal("installation 9 was not recorded")
		}
	})

	t.Run("removes on deleted", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t, "")
		app.installations[42] = newInstallation(app, InstallationMetadata{ID: 42, AccountLogin: "octo-org"})

		event, err := ghevent.New("installation", []byte(`{
			"action": "deleted",
			"installation": {"id": 42, "account": {"login": "octo-org"}}
		}`))
		if err != nil {
			t.Fatal(err)
		}
		app.ObserveInstallationEvent(context.Background(), event)

		if _, ok := app.installations[42]; ok {
			t.Fatal("installation 42 was not removed")
		}
	})

	t.Run("ignores malformed payload", func(t *testing.T) {
		t.Parallel()
		app := newTestApp(t, "")
		event, err := ghevent.New("installation", []byte(`{"action": "created"}`))
		if err != nil {
			t.Fatal(err)
		}
		app.ObserveInstallationEvent(context.Background(), event)
		if len(app.installations) != 0 {
			t.Fatalf("installations = %v, want empty", app.installations)
		}
	})
}
