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

// Command action runs a single event through the dispatcher from inside a
// GitHub Actions job, translating the outcome into a process exit code.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/octomachinery-go/pkg/action"
	"github.com/abcxyz/octomachinery-go/pkg/appauth"
	"github.com/abcxyz/octomachinery-go/pkg/config"
	"github.com/abcxyz/octomachinery-go/pkg/crashreport"
	"github.com/abcxyz/octomachinery-go/pkg/handlers"
	"github.com/abcxyz/octomachinery-go/pkg/router"
	"github.com/abcxyz/octomachinery-go/pkg/webhook"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer done()

	logger := logging.NewFromEnv("")
	ctx = logging.WithLogger(ctx, logger)

	app, routers, err := setup(ctx)
	if err != nil {
		done()
		logger.ErrorContext(ctx, "failed to initialize action runner", "error", err)
		os.Exit(1)
	}

	action.RunAndExit(ctx, app, routers, crashreport.NewLogSink())
}

func setup(ctx context.Context) (*appauth.App, []*router.Router, error) {
	cfg := &webhook.Config{}
	if err := config.Load(ctx, cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	app, err := cfg.BuildApp(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build github app: %w", err)
	}

	events := router.New(router.Sequential)
	events.Register("ping", handlers.Ping)
	events.RegisterActions("issues", handlers.WelcomeComment, "opened")

	return app, []*router.Router{events}, nil
}
