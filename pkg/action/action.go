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

// Package action is the GitHub Actions runner entry point: it builds an
// Event from the environment GitHub Actions sets for a running job, hands
// it to the shared dispatcher, and translates the outcome into a process
// exit code.
package action

import (
	"context"
	"errors"
	"os"

	"github.com/abcxyz/octomachinery-go/pkg/appauth"
	"github.com/abcxyz/octomachinery-go/pkg/crashreport"
	"github.com/abcxyz/octomachinery-go/pkg/dispatch"
	"github.com/abcxyz/octomachinery-go/pkg/ghevent"
	"github.com/abcxyz/octomachinery-go/pkg/router"
	"github.com/abcxyz/pkg/logging"
)

// source adapts an *appauth.App into dispatch.EventSource, always
// reporting IsAction() true: the Action runner only ever dispatches in
// Action mode.
type source struct {
	app *appauth.App
}

func (s source) IsAction() bool    { return true }
func (s source) App() *appauth.App { return s.app }

// Run reads the event name and payload path from the environment (as
// GitHub Actions sets GITHUB_EVENT_NAME and GITHUB_EVENT_PATH for a running
// job), dispatches the event through routers, and returns the process exit
// code the caller should use: ExitSuccess, ExitNeutral, or a handler-chosen
// failure code from dispatch.Failure.
func Run(ctx context.Context, app *appauth.App, routers []*router.Router, sink crashreport.Sink) int {
	logger := logging.FromContext(ctx)

	eventName := os.Getenv("GITHUB_EVENT_NAME")
	eventPath := os.Getenv("GITHUB_EVENT_PATH")
	if eventName == "" || eventPath == "" {
		logger.ErrorContext(ctx, "missing GITHUB_EVENT_NAME or GITHUB_EVENT_PATH")
		return 1
	}

	event, err := ghevent.FromFile(eventName, eventPath)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read action event", "error", err)
		return 1
	}

	logger.InfoContext(ctx, "processing github action event", "event", event.Name())

	err = dispatch.Dispatch(ctx, event, source{app: app}, routers, sink)

	switch {
	case err == nil:
		logger.InfoContext(ctx, "github action has been processed")
		return dispatch.ExitSuccess
	case errors.Is(err, context.Canceled):
		logger.WarnContext(ctx, "action processing interrupted")
		return dispatch.ExitNeutral
	default:
		if code, ok := dispatch.ExitCode(err); ok {
			return code
		}
		logger.ErrorContext(ctx, "action processing failed unexpectedly", "error", err)
		return 1
	}
}

// RunAndExit is the convenience form main() calls: it runs the dispatch and
// terminates the process with the resulting exit code.
func RunAndExit(ctx context.Context, app *appauth.App, routers []*router.Router, sink crashreport.Sink) {
	os.Exit(Run(ctx, app, routers, sink))
}
