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

// Package handlers contains example event handlers demonstrating how to
// use the router and runtime context packages against real GitHub events.
// They are reference wiring, not a required part of the framework.
package handlers

import (
	"context"

	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/octomachinery-go/pkg/appauth"
	"github.com/abcxyz/octomachinery-go/pkg/ghevent"
	"github.com/abcxyz/octomachinery-go/pkg/runtimectx"
)

// Ping logs the Zen koan GitHub sends with every new webhook registration,
// along with the app that is currently dispatching it.
func Ping(ctx context.Context, event ghevent.Event) error {
	logger := logging.FromContext(ctx)

	zen, _ := event.Payload()["zen"].(string)
	hookID, _ := ghevent.AsInt64(event.Payload()["hook_id"])

	var appID int64
	if app, err := runtimectx.Value[*appauth.App](ctx, runtimectx.SlotGitHubApp); err == nil && app != nil {
		appID = app.AppID()
	}

	logger.InfoContext(ctx, "received ping",
		"zen", zen,
		"hook_id", hookID,
		"app_id", appID)

	return nil
}
