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

package ghevent

import (
	"encoding/json"
	"strings"
	"testing"
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

const validUUIDv4 = "11111111-1111-4111-8111-111111111111"

func TestNew_RejectsEmptyName(t *testing.T) {
	t.Parallel()

	if _, err := New("", []byte(`{}`)); err == nil {
		t.Fatal("expected error for empty event name")
	}
}

func TestNew_RejectsNonObjectPayload(t *testing.T) {
	t.Parallel()

	if _, err := New("push", []byte(`[1,2,3]`)); err == nil {
		t.Fatal("expected error for non-object payload")
	}
}

func TestNewWebhook_ValidatesUUIDv4(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		deliveryID string
		wantErr    bool
	}{
		{name: "valid v4", deliveryID: validUUIDv4, wantErr: false},
		{name: "not a uuid", deliveryID: "not-a-uuid", wantErr: true},
		// A valid v1 UUID is well-formed but not version 4.
		{name: "v1 uuid rejected", deliveryID: "11111111-1111-1111-8111-111111111111", wantErr: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewWebhook("push", []byte(`{"ref":"refs/heads/main"}`), tc.deliveryID)
			if (err != nil) != tc.wantErr {
				t.Fatalf("NewWebhook(..., %q) error = %v, wantErr %v", tc.deliveryID, err, tc.wantErr)
			}
		})
	}
}

func TestEvent_InstallationID(t *testing.T) {
	t.Parallel()

	withInstall, err := New("installation", []byte(`{"installation":{"id":42}}`))
	if err != nil {
		t.Fatal(err)
	}
	id, ok := withInstall.InstallationID()
	if !ok || id != 42 {
		t.Fatalf("InstallationID() = (%d, %v), want (42, true)", id, ok)
	}

	ping, err := New("ping", []byte(`{"zen":"Hey zen!"}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ping.InstallationID(); ok {
		t.Fatal("expected ping event to carry no installation id")
	}
}

func TestAsInt64(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		value  any
		want   int64
		wantOK bool
	}{
		{name: "json_number", value: json.Number("42"), want: 42, wantOK: true},
		{name: "float64", value: float64(42), want: 42, wantOK: true},
		{name: "non_numeric_json_number", value: json.Number("not-a-number"), want: 0, wantOK: false},
		{name: "string", value: "42", want: 0, wantOK: false},
		{name: "nil", value: nil, want: 0, wantOK: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := AsInt64(tc.value)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("AsInt64(%v) = (%d, %v), want (%d, %v)", tc.value, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestFromFixture_RoundTrip(t *testing.T) {
	t.Parallel()

	fixture := "x-github-event: push\nx-github-delivery: " + validUUIDv4 + "\n\n{\"ref\":\"refs/heads/main\"}"

	event, err := FromFixture(strings.NewReader(fixture), "")
	if err != nil {
		t.Fatal(err)
	}
	if event.Name() != "push" {
		t.Errorf("Name() = %q, want push", event.Name())
	}
	if event.DeliveryID().String() != validUUIDv4 {
		t.Errorf("DeliveryID() = %s, want %s", event.DeliveryID(), validUUIDv4)
	}

	roundTripped, err := NewWebhook(event.Name(), mustMarshal(t, event.Payload()), event.DeliveryID().String())
	if err != nil {
		t.Fatal(err)
	}
	if roundTripped.Name() != event.Name() || roundTripped.DeliveryID() != event.DeliveryID() {
		t.Errorf("round trip mismatch: got %+v, want %+v", roundTripped, event)
	}
}

func TestFromFixture_RejectsBothNameAndHeader(t *testing.T) {
	t.Parallel()

	fixture := "x-github-event: push\nx-github-delivery: " + validUUIDv4 + "\n\n{}"
	if _, err := FromFixture(strings.NewReader(fixture), "pull_request"); err == nil {
		t.Fatal("expected error when both event name and header are supplied")
	}
}
