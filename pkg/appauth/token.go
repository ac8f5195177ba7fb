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
	"time"

	"github.com/abcxyz/octomachinery-go/pkg/secret"
)

// Token is a credential attached to an outbound request. The two variants
// (JWTToken, OAuthToken) drive different Authorization header schemes and
// both satisfy rawclient.Token structurally, without this package importing
// rawclient.
type Token interface {
	// AuthorizationHeader returns the full value for the HTTP Authorization
	// header, e.g. "Bearer <jwt>" or "token <oauth>".
	AuthorizationHeader() string
}

// JWTToken is a GitHub App's own JSON Web Token, used to authenticate as
// the application itself (installation lookup, installation token refresh).
type JWTToken struct {
	value secret.Weak
}

// NewJWTToken wraps a signed JWT string.
func NewJWTToken(value secret.Weak) JWTToken { return JWTToken{value: value} }

// AuthorizationHeader implements Token.
func (t JWTToken) AuthorizationHeader() string { return "Bearer " + t.value.Reveal() }

// OAuthToken is a GitHub App installation access token, used to
// authenticate as the installation on a specific account.
type OAuthToken struct {
	value     secret.Weak
	expiresAt time.Time

	permissions         map[string]string
	repositorySelection string
	repositories        []string
}

// NewOAuthToken wraps an installation access token string along with its
// server-reported expiry.
func NewOAuthToken(value secret.Weak, expiresAt time.Time) OAuthToken {
	return OAuthToken{value: value, expiresAt: expiresAt}
}

// WithMetadata attaches the remaining fields the access_tokens response
// carries alongside the token itself (§3: "permissions, repository_selection,
// repositories?"), returning the updated token. repositories is nil unless
// repository_selection is "selected".
func (t OAuthToken) WithMetadata(permissions map[string]string, repositorySelection string, repositories []string) OAuthToken {
	t.permissions = permissions
	t.repositorySelection = repositorySelection
	t.repositories = repositories
	return t
}

// Permissions returns the permission set GitHub scoped this token to.
func (t OAuthToken) Permissions() map[string]string { return t.permissions }

// RepositorySelection reports whether the token is scoped to "all" of the
// installation's repositories or a "selected" subset.
func (t OAuthToken) RepositorySelection() string { return t.repositorySelection }

// Repositories returns the repositories the token is scoped to when
// RepositorySelection is "selected"; nil otherwise.
func (t OAuthToken) Repositories() []string { return t.repositories }

// AuthorizationHeader implements Token.
func (t OAuthToken) AuthorizationHeader() string { return "token " + t.value.Reveal() }

// Expired reports whether the token's server-reported expiry has passed, so
// a cached token is never reused once GitHub would reject it. A small skew
// is subtracted so a token is refreshed slightly before it actually lapses.
func (t OAuthToken) Expired() bool {
	const skew = 30 * time.Second
	return time.Now().After(t.expiresAt.Add(-skew))
}
