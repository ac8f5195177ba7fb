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

package action

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/abcxyz/octomachinery-go/pkg/appauth"
	"github.com/abcxyz/octomachinery-go/pkg/crashreport"
	"github.com/abcxyz/octomachinery-go/pkg/dispatch"
	"github.com/abcxyz/octomachinery-go/pkg/ghevent"
	"github.com/abcxyz/octomachinery-go/pkg/router"
)

type recordingSink struct {
	reports int
}

func (s *recordingSink) Report(ctx context.Context, err error, fields ...any) { s.reports++ }

var _ crashreport.Sink = (*recordingSink)(nil)

func testApp(t *testing.T) *appauth.App {
	t.Helper()

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der := x509.MarshalPKCS1PrivateKey(rsaKey)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})

	key, err := appauth.NewPrivateKey(pemBytes)
	if err != nil {
		t.Fatal(err)
	}
	return appauth.NewApp(1, key, "octomachinery-go/test")
}

func writeEventFile(t *testing.T, payload string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_SuccessfulHandlerReturnsExitSuccess(t *testing.T) {
	t.Setenv("GITHUB_EVENT_NAME", "push")
	t.Setenv("GITHUB_EVENT_PATH", writeEventFile(t, `{"zen": "hi"}`))

	r := router.New(router.Sequential)
	r.Register("push", func(ctx context.Context, e ghevent.Event) error { return nil })

	sink := &recordingSink{}
	code := Run(context.Background(), testApp(t), []*router.Router{r}, sink)
	if code != dispatch.ExitSuccess {
		t.Fatalf("code = %d, want %d", code, dispatch.ExitSuccess)
	}
	if sink.reports != 0 {
		t.Fatalf("sink.reports = %d, want 0", sink.reports)
	}
}

func TestRun_NeutralHandlerReturnsExitNeutral(t *testing.T) {
	t.Setenv("GITHUB_EVENT_NAME", "push")
	t.Setenv("GITHUB_EVENT_PATH", writeEventFile(t, `{}`))

	r := router.New(router.Sequential)
	r.Register("push", func(ctx context.Context, e ghevent.Event) error { return dispatch.ErrNeutral })

	sink := &recordingSink{}
	code := Run(context.Background(), testApp(t), []*router.Router{r}, sink)
	if code != dispatch.ExitNeutral {
		t.Fatalf("code = %d, want %d", code, dispatch.ExitNeutral)
	}
}

func TestRun_FailureHandlerReturnsItsExitCode(t *testing.T) {
	t.Setenv("GITHUB_EVENT_NAME", "push")
	t.Setenv("GITHUB_EVENT_PATH", writeEventFile(t, `{}`))

	r := router.New(router.Sequential)
	r.Register("push", func(ctx context.Context, e ghevent.Event) error {
		return dispatch.Failure(3, errors.New("bad config"))
	})

	sink := &recordingSink{}
	code := Run(context.Background(), testApp(t), []*router.Router{r}, sink)
	if code != 3 {
		t.Fatalf("code = %d, want 3", code)
	}
}

func TestRun_UnexpectedErrorReturnsExitOne(t *testing.T) {
	t.Setenv("GITHUB_EVENT_NAME", "push")
	t.Setenv("GITHUB_EVENT_PATH", writeEventFile(t, `{}`))

	r := router.New(router.Sequential)
	r.Register("push", func(ctx context.Context, e ghevent.Event) error {
		return errors.New("unexpected")
	})

	sink := &recordingSink{}
	code := Run(context.Background(), testApp(t), []*router.Router{r}, sink)
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if sink.reports != 1 {
		t.Fatalf("sink.reports = %d, want 1", sink.reports)
	}
}

func TestRun_MissingEnvReturnsExitOne(t *testing.T) {
	t.Setenv("GITHUB_EVENT_NAME", "")
	t.Setenv("GITHUB_EVENT_PATH", "")

	code := Run(context.Background(), testApp(t), nil, crashreport.NewLogSink())
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
}

func TestRun_CanceledContextReturnsExitNeutral(t *testing.T) {
	t.Setenv("GITHUB_EVENT_NAME", "push")
	t.Setenv("GITHUB_EVENT_PATH", writeEventFile(t, `{}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := router.New(router.Sequential)
	r.Register("push", func(ctx context.Context, e ghevent.Event) error {
		<-ctx.Done()
		return ctx.Err()
	})

	sink := &recordingSink{}
	code := Run(ctx, testApp(t), []*router.Router{r}, sink)
	if code != dispatch.ExitNeutral {
		t.Fatalf("code = %d, want %d", code, dispatch.ExitNeutral)
	}
}
