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

// Command server runs the GitHub App webhook HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/renderer"
	"github.com/abcxyz/pkg/serving"

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

	if err := realMain(ctx); err != nil {
		done()
		logger.ErrorContext(ctx, "process exited with error", "error", err)
		os.Exit(1)
	}
}

func realMain(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	cfg := &webhook.Config{}
	if err := config.Load(ctx, cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	h, err := renderer.New(ctx, nil,
		renderer.WithOnError(func(err error) {
			logger.ErrorContext(ctx, "failed to render response", "error", err)
		}))
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	events := router.New(router.Sequential)
	events.Register("ping", handlers.Ping)
	events.RegisterActions("issues", handlers.WelcomeComment, "opened")

	webhookServer, err := webhook.NewServer(ctx, h, cfg, []*router.Router{events}, crashreport.NewLogSink(), nil)
	if err != nil {
		return fmt.Errorf("failed to create webhook server: %w", err)
	}
	webhookServer.App().LogInstallsList(ctx)

	mux := webhookServer.Routes(ctx)

	srv, err := serving.New(cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to create serving infrastructure: %w", err)
	}

	return srv.StartHTTPHandler(ctx, mux)
}
