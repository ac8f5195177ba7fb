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

// Package dispatch implements the single dispatcher both the webhook
// server and the Action runner hand events to. It seeds the runtime
// context, resolves the event's installation (when one exists), and fans
// the event out to every bound router.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abcxyz/octomachinery-go/pkg/appauth"
	"github.com/abcxyz/octomachinery-go/pkg/crashreport"
	"github.com/abcxyz/octomachinery-go/pkg/ghevent"
	"github.com/abcxyz/octomachinery-go/pkg/router"
	"github.com/abcxyz/octomachinery-go/pkg/runtimectx"
	"github.com/abcxyz/pkg/logging"
)

// installationGracePeriod is the eventual-consistency sleep observed on the
// webhook path only: GitHub's own API can lag behind the webhook delivery
// it just sent, so a handler that immediately calls back into the API may
// not yet see what the payload describes.
const installationGracePeriod = 1 * time.Second

// EventSource distinguishes the two places an event dispatch can originate
// from, unifying the webhook server and the Action runner behind a single
// dispatch path instead of a shared base type.
type EventSource interface {
	// IsAction reports whether this source is the Action runner variant.
	IsAction() bool
	// App returns the application handle driving this dispatch.
	App() *appauth.App
}

// Dispatch seeds the runtime context for event, resolves its installation
// (non-Action sources only, and only when the payload carries one), and
// fans the event out to every router in routers. Unexpected handler errors
// are reported to sink and logged; in Action mode they are returned so the
// caller can translate them into a process exit code, in server mode they
// are swallowed after reporting.
func Dispatch(ctx context.Context, event ghevent.Event, source EventSource, routers []*router.Router, sink crashreport.Sink) error {
	isAction := source.IsAction()
	app := source.App()

	ctx = runtimectx.Set(ctx, runtimectx.SlotGitHubApp, app)
	ctx = runtimectx.Set(ctx, runtimectx.SlotGitHubEvent, event)
	ctx = runtimectx.SetBool(ctx, runtimectx.SlotIsGitHubAction, isAction)
	ctx = runtimectx.SetBool(ctx, runtimectx.SlotIsGitHubApp, !isAction)

	if isAction {
		ctx = runtimectx.Set(ctx, runtimectx.SlotAppInstallationClient, app.APIClient())
	} else {
		if id, ok := event.InstallationID(); ok {
			installation, err := app.GetInstallationByID(ctx, id)
			if err != nil {
				logging.FromContext(ctx).WarnContext(ctx, "failed to resolve installation for event",
					"event", event.Name(), "installation_id", id, "error", err)
			} else {
				ctx = runtimectx.Set(ctx, runtimectx.SlotAppInstallation, installation)
				ctx = runtimectx.Set(ctx, runtimectx.SlotAppInstallationClient, installation.APIClient())
			}
		}

		select {
		case <-time.After(installationGracePeriod):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := fanOut(ctx, event, routers)
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if IsControlFlow(err) {
		if isAction {
			return err
		}
		return nil
	}

	sink.Report(stripCancellation(ctx), err, "event", event.Name())
	logging.FromContext(ctx).ErrorContext(ctx, "handler error",
		"event", event.Name(), "error", err)

	if isAction {
		return err
	}
	return nil
}

// fanOut runs event through every router concurrently: each router's own
// Dispatch call may itself be sequential, concurrent, or non-blocking, but
// routers never block on each other.
func fanOut(ctx context.Context, event ghevent.Event, routers []*router.Router) error {
	if len(routers) == 0 {
		return nil
	}

	errs := make([]error, len(routers))

	var wg sync.WaitGroup
	wg.Add(len(routers))
	for i, r := range routers {
		go func(i int, r *router.Router) {
			defer wg.Done()
			errs[i] = r.Dispatch(ctx, event)
		}(i, r)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// stripCancellation returns a context.Background-rooted context carrying
// the same logger as ctx, so a crash report about a handler's non-
// cancellation error is not itself annotated as canceled if the dispatch's
// own context has since been canceled.
func stripCancellation(ctx context.Context) context.Context {
	fresh := context.Background()
	if logger := logging.FromContext(ctx); logger != nil {
		fresh = logging.WithLogger(fresh, logger)
	}
	return fresh
}
