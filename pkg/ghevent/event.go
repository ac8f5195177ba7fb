// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ghevent models a canonical, source-agnostic representation of a
// GitHub event, whether it arrived over a webhook HTTP delivery or was read
// from a file inside a GitHub Actions runner.
package ghevent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// Event is a GitHub event: a name and a decoded JSON payload object.
type Event struct {
	name    string
	payload map[string]any
}

// New constructs an Event, validating that name is non-empty and payload
// decodes to a JSON object.
func New(name string, payload []byte) (Event, error) {
	if name == "" {
		return Event{}, errors.New("event name must not be empty")
	}

	data, err := decodeObject(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to decode event payload: %w", err)
	}

	return Event{name: name, payload: data}, nil
}

// NewFromMap constructs an Event from an already-decoded payload map.
func NewFromMap(name string, payload map[string]any) (Event, error) {
	if name == "" {
		return Event{}, errors.New("event name must not be empty")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{name: name, payload: payload}, nil
}

// FromFile builds an Event by reading the payload from a file path, with the
// event name supplied separately (as in a GitHub Actions runner, where the
// name comes from GITHUB_EVENT_NAME and the payload from GITHUB_EVENT_PATH).
func FromFile(name, path string) (Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Event{}, fmt.Errorf("failed to read event file %q: %w", path, err)
	}
	return New(name, data)
}

// Name returns the event name, e.g. "push" or "workflow_job".
func (e Event) Name() string { return e.name }

// Payload returns the decoded JSON payload object.
func (e Event) Payload() map[string]any { return e.payload }

// String renders a short diagnostic form used in log lines and the webhook
// acknowledgement body.
func (e Event) String() string {
	return fmt.Sprintf("Event(name=%q)", e.name)
}

// InstallationID extracts payload.installation.id, returning false when the
// payload carries no installation reference (e.g. "ping", "security_advisory").
func (e Event) InstallationID() (int64, bool) {
	raw, ok := e.payload["installation"]
	if !ok {
		return 0, false
	}
	install, ok := raw.(map[string]any)
	if !ok {
		return 0, false
	}
	id, ok := install["id"]
	if !ok {
		return 0, false
	}
	return AsInt64(id)
}

// AsInt64 coerces a value decoded out of an Event's payload into an int64.
// decodeObject decodes payloads with json.Decoder.UseNumber, so every JSON
// number in a payload map surfaces as json.Number rather than float64;
// callers that pull a numeric field (an id, a count) out of event.Payload()
// should go through AsInt64 rather than asserting a single representation.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Int64()
		return parsed, err == nil
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// WebhookEvent is an Event plus the UUIDv4 delivery id GitHub attaches to
// every HTTP webhook delivery.
type WebhookEvent struct {
	Event
	deliveryID uuid.UUID
}

// NewWebhook constructs a WebhookEvent, validating the delivery id is a
// UUIDv4 string.
func NewWebhook(name string, payload []byte, deliveryID string) (WebhookEvent, error) {
	event, err := New(name, payload)
	if err != nil {
		return WebhookEvent{}, err
	}
	return newWebhookFromEvent(event, deliveryID)
}

func newWebhookFromEvent(event Event, deliveryID string) (WebhookEvent, error) {
	id, err := uuid.Parse(deliveryID)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("delivery id %q is not a valid UUID: %w", deliveryID, err)
	}
	if id.Version() != 4 {
		return WebhookEvent{}, fmt.Errorf("delivery id %q is not a UUIDv4 (got version %d)", deliveryID, id.Version())
	}
	return WebhookEvent{Event: event, deliveryID: id}, nil
}

// DeliveryID returns the webhook delivery's UUIDv4 identifier.
func (w WebhookEvent) DeliveryID() uuid.UUID { return w.deliveryID }

// String renders a short diagnostic form including the delivery id, used for
// the webhook acknowledgement body and log lines.
func (w WebhookEvent) String() string {
	return fmt.Sprintf("WebhookEvent(name=%q, delivery_id=%s)", w.Name(), w.deliveryID)
}

// FromHTTPHeaders builds a WebhookEvent from the values of an incoming
// webhook HTTP request's X-GitHub-Event and X-GitHub-Delivery headers and
// its raw body; the caller reads the header values off the request.
func FromHTTPHeaders(eventName, deliveryID string, body []byte) (WebhookEvent, error) {
	return NewWebhook(eventName, body, deliveryID)
}

// FromFixture reads a recorded fixture file containing raw HTTP-style
// headers followed by a JSON body (the same shape test suites use to record
// real webhook deliveries), and constructs a WebhookEvent from it. The event
// name comes from event when it is non-empty, otherwise from the fixture's
// "x-github-event" header; supplying both is an error.
func FromFixture(r io.Reader, event string) (WebhookEvent, error) {
	headers, payload, err := parseFixture(r)
	if err != nil {
		return WebhookEvent{}, err
	}

	headerEvent, hasHeaderEvent := headers["x-github-event"]
	if event != "" && hasHeaderEvent {
		return WebhookEvent{}, errors.New("supply only one of an event name or an x-github-event header in the fixture")
	}

	name := event
	if name == "" {
		name = headerEvent
	}

	deliveryID, ok := headers["x-github-delivery"]
	if !ok {
		deliveryID = uuid.New().String()
	}

	return NewWebhook(name, payload, deliveryID)
}

func decodeObject(payload []byte) (map[string]any, error) {
	if len(payload) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	return data, nil
}
