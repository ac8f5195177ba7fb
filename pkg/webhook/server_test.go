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
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
)

func generateTestKeyPEM(t *testing.T) []byte {
	t.Helper()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der := x509.MarshalPKCS1PrivateKey(rsaKey)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
}

func TestConfig_BuildApp_InlineKey(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		GitHubAppID:      "123",
		GitHubPrivateKey: string(generateTestKeyPEM(t)),
		AppName:          "octomachinery-go",
		AppVersion:       "test",
	}

	app, err := cfg.BuildApp(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if app.AppID() != 123 {
		t.Errorf("AppID() = %d, want 123", app.AppID())
	}
}

func TestConfig_BuildApp_MountedKey(t *testing.T) {
	t.Parallel()

	pemBytes := generateTestKeyPEM(t)
	var requestedPath string
	fr := &MockFileReader{
		ReadFileFunc: func(filename string) ([]byte, error) {
			requestedPath = filename
			return pemBytes, nil
		},
	}

	cfg := &Config{
		GitHubAppID:               "123",
		GitHubPrivateKeyMountPath: "/var/secrets/github",
		GitHubPrivateKeyName:      "key.pem",
	}

	app, err := cfg.BuildApp(context.Background(), fr)
	if err != nil {
		t.Fatal(err)
	}
	if app.AppID() != 123 {
		t.Errorf("AppID() = %d, want 123", app.AppID())
	}
	if want := "/var/secrets/github/key.pem"; requestedPath != want {
		t.Errorf("requested path = %q, want %q", requestedPath, want)
	}
}

func TestConfig_BuildApp_MountedKey_ReadError(t *testing.T) {
	t.Parallel()

	fr := &MockFileReader{}
	cfg := &Config{
		GitHubAppID:               "123",
		GitHubPrivateKeyMountPath: "/var/secrets/github",
		GitHubPrivateKeyName:      "key.pem",
	}

	if _, err := cfg.BuildApp(context.Background(), fr); err == nil {
		t.Fatal("expected an error when the mock reader has no ReadFileFunc")
	}
}

func TestConfig_BuildApp_FingerprintMismatch(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		GitHubAppID:                 "123",
		GitHubPrivateKey:            string(generateTestKeyPEM(t)),
		GitHubPrivateKeyFingerprint: "00:11:22:33",
	}

	if _, err := cfg.BuildApp(context.Background(), nil); err == nil {
		t.Fatal("expected a fingerprint mismatch error")
	}
}
