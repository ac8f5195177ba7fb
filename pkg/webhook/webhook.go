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
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // GitHub's webhook signature scheme, not used for anything else
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/octomachinery-go/pkg/dispatch"
	"github.com/abcxyz/octomachinery-go/pkg/ghevent"
)

const ackPrefix = "OK: GitHub event received and scheduled for processing. It is "

// malformedRequestError marks a rejection that isn't a trust-protocol
// failure (§4.1) but a malformed request body or delivery id (§7): these
// get a 400 rather than a 403, since no signature was actually wrong.
type malformedRequestError struct{ err error }

func (e *malformedRequestError) Error() string { return e.err.Error() }
func (e *malformedRequestError) Unwrap() error { return e.err }

// IsAction reports false: the webhook server is never the Action variant.
func (s *Server) IsAction() bool { return false }

func (s *Server) handleWebhook() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		event, err := s.validateAndExtract(r)
		if err != nil {
			logger.WarnContext(ctx, "rejected webhook delivery", "error", err)
			status := http.StatusForbidden
			var malformed *malformedRequestError
			if errors.As(err, &malformed) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}

		body := ackPrefix + event.String()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, body)

		logger.InfoContext(ctx, "scheduling event for dispatch",
			"event", event.Name(), "delivery_id", event.DeliveryID())

		// The request's context is canceled the moment this handler returns,
		// so dispatch runs detached on a context that only carries the
		// logger, not the request lifetime.
		dispatchCtx := logging.WithLogger(context.Background(), logger)
		go func() {
			if err := dispatch.Dispatch(dispatchCtx, event.Event, s, s.routers, s.sink); err != nil {
				logger.ErrorContext(dispatchCtx, "dispatch returned an error", "event", event.Name(), "error", err)
			}
			s.app.ObserveInstallationEvent(dispatchCtx, event.Event)
		}()
	})
}

// validateAndExtract runs the payload trust protocol (§4.1) and builds a
// WebhookEvent from the request's headers and body.
func (s *Server) validateAndExtract(r *http.Request) (ghevent.WebhookEvent, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return ghevent.WebhookEvent{}, fmt.Errorf("failed to read request body: %w", err)
	}

	sigHeader := r.Header.Get("X-Hub-Signature")
	if err := verifySignature(sigHeader, s.webhookSecret, body); err != nil {
		return ghevent.WebhookEvent{}, err
	}

	eventName := r.Header.Get("X-GitHub-Event")
	deliveryID := r.Header.Get("X-GitHub-Delivery")

	event, err := ghevent.FromHTTPHeaders(eventName, deliveryID, body)
	if err != nil {
		return ghevent.WebhookEvent{}, &malformedRequestError{err: fmt.Errorf("failed to construct event: %w", err)}
	}
	return event, nil
}

// verifySignature implements the payload trust protocol: a signature and no
// configured secret (or vice versa) is a rejection; both present requires a
// constant-time HMAC-SHA1 match; both absent is accepted as unsigned.
func verifySignature(sigHeader string, secret, body []byte) error {
	hasSig := sigHeader != ""
	hasSecret := len(secret) > 0

	switch {
	case hasSig && !hasSecret:
		return fmt.Errorf("received a signed delivery but no webhook secret is configured")
	case !hasSig && hasSecret:
		return fmt.Errorf("missing X-Hub-Signature header")
	case !hasSig && !hasSecret:
		return nil
	}

	want, ok := strings.CutPrefix(sigHeader, "sha1=")
	if !ok {
		return fmt.Errorf("malformed X-Hub-Signature header %q", sigHeader)
	}
	wantMAC, err := hex.DecodeString(want)
	if err != nil {
		return fmt.Errorf("malformed X-Hub-Signature hex digest: %w", err)
	}

	mac := hmac.New(sha1.New, secret)
	mac.Write(body)
	gotMAC := mac.Sum(nil)

	if !hmac.Equal(gotMAC, wantMAC) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
