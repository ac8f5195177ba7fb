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

// Package appauth implements the GitHub App authentication model: minting
// the app's own JWT, exchanging it for per-installation access tokens, and
// the raw REST client both are served through.
package appauth

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // fingerprint only, not used for signing or verification
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abcxyz/octomachinery-go/pkg/secret"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const maxJWTTimeOffset = 10 * time.Minute

// PrivateKey wraps a GitHub App's RSA private key. It never exposes the raw
// key material through String/GoString/LogValue; callers that need the
// fingerprint for comparison or logging use Fingerprint.
type PrivateKey struct {
	signer      crypto.Signer
	fingerprint string
}

// NewPrivateKey loads a PEM-encoded RSA private key from raw bytes.
func NewPrivateKey(pemBytes []byte) (*PrivateKey, error) {
	key, err := jwk.ParseKey(pemBytes, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key PEM: %w", err)
	}

	var rawKey rsa.PrivateKey
	if err := key.Raw(&rawKey); err != nil {
		return nil, fmt.Errorf("private key PEM is not an RSA key: %w", err)
	}

	return newPrivateKeyFromSigner(&rawKey)
}

// NewPrivateKeyFromFile loads a PEM-encoded RSA private key from a file
// path, mirroring a GitHub App configured with a key file on disk.
func NewPrivateKeyFromFile(path string) (*PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file %q: %w", path, err)
	}
	return NewPrivateKey(data)
}

// NewPrivateKeyFromSigner wraps an externally managed crypto.Signer — for
// example a Cloud KMS-backed asymmetric signing key — as a PrivateKey. The
// signer's Public method must return an *rsa.PublicKey.
func NewPrivateKeyFromSigner(signer crypto.Signer) (*PrivateKey, error) {
	return newPrivateKeyFromSigner(signer)
}

func newPrivateKeyFromSigner(signer crypto.Signer) (*PrivateKey, error) {
	pub, ok := signer.Public().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("private key's public half is %T, want *rsa.PublicKey", signer.Public())
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	return &PrivateKey{
		signer:      signer,
		fingerprint: colonSeparatedSHA1(der),
	}, nil
}

func colonSeparatedSHA1(der []byte) string {
	sum := sha1.Sum(der) //nolint:gosec // fingerprint only
	hexDigits := fmt.Sprintf("%x", sum)

	pairs := make([]string, 0, len(hexDigits)/2)
	for i := 0; i < len(hexDigits); i += 2 {
		pairs = append(pairs, hexDigits[i:i+2])
	}
	return strings.Join(pairs, ":")
}

// Fingerprint returns the colon-separated hex SHA-1 digest of the public
// key's DER-encoded SubjectPublicKeyInfo. Safe to log: it identifies a key
// without exposing it.
func (k *PrivateKey) Fingerprint() string { return k.fingerprint }

// MatchesFingerprint reports whether this key's fingerprint equals other.
func (k *PrivateKey) MatchesFingerprint(other string) bool {
	return k.fingerprint == other
}

// String renders only the fingerprint, never the key material.
func (k *PrivateKey) String() string {
	return fmt.Sprintf("PrivateKey(sha1=%s)", k.fingerprint)
}

// MakeJWT mints a GitHub App JWT for appID, valid from now for validity.
// validity must not exceed 10 minutes, matching GitHub's own limit on App
// JWT lifetime.
func (k *PrivateKey) MakeJWT(appID int64, validity time.Duration) (secret.Weak, error) {
	if validity > maxJWTTimeOffset {
		return "", fmt.Errorf("JWT validity %s exceeds the 10 minute maximum", validity)
	}

	now := time.Now()
	token, err := jwt.NewBuilder().
		IssuedAt(now).
		Expiration(now.Add(validity)).
		Issuer(fmt.Sprintf("%d", appID)).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build JWT claims: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, k.signer))
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return secret.Weak(signed), nil
}
