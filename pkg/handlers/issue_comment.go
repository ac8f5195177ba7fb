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

package handlers

import (
	"context"
	"fmt"

	"github.com/google/go-github/v69/github"

	"github.com/abcxyz/octomachinery-go/pkg/ghevent"
	"github.com/abcxyz/octomachinery-go/pkg/rawclient"
	"github.com/abcxyz/octomachinery-go/pkg/runtimectx"
)

// WelcomeComment posts a greeting comment on an issue the moment it is
// opened, authenticated as the installation the event belongs to.
func WelcomeComment(ctx context.Context, event ghevent.Event) error {
	client, err := runtimectx.Value[*rawclient.Client](ctx, runtimectx.SlotAppInstallationClient)
	if err != nil {
		return fmt.Errorf("issue comment handler requires an installation client: %w", err)
	}

	repo, ok := event.Payload()["repository"].(map[string]any)
	if !ok {
		return fmt.Errorf("issue.opened payload is missing repository")
	}
	fullName, _ := repo["full_name"].(string)

	issue, ok := event.Payload()["issue"].(map[string]any)
	if !ok {
		return fmt.Errorf("issue.opened payload is missing issue")
	}
	number, _ := ghevent.AsInt64(issue["number"])

	comment := &github.IssueComment{
		Body: github.Ptr("Thanks for opening this issue! A maintainer will take a look soon."),
	}

	path := fmt.Sprintf("/repos/%s/issues/%d/comments", fullName, number)
	if _, err := client.Post(ctx, path, comment); err != nil {
		return fmt.Errorf("failed to post welcome comment: %w", err)
	}
	return nil
}
