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

package rawclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type staticToken string

func (s staticToken) AuthorizationHeader() string { return string(s) }

func TestClient_String_Uninitialized(t *testing.T) {
	t.Parallel()

	c := New("test-agent", nil)
	if got, want := c.String(), "<RawClient>(<UNINITIALIZED>)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestGetItem_SendsPreviewAcceptHeaderAndToken(t *testing.T) {
	t.Parallel()

	var gotAccept, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	c := New("test-agent", func(ctx context.Context) (Token, error) {
		return staticToken("Bearer jwt-value"), nil
	}).WithBaseURL(srv.URL)

	got, err := c.GetItem(context.Background(), "/app/installations/1", WithPreview("machine-man"))
	if err != nil {
		t.Fatal(err)
	}
	if got["id"].(float64) != 1 {
		t.Errorf("got %v, want id=1", got)
	}
	if want := "application/vnd.github.machine-man-preview+json"; gotAccept != want {
		t.Errorf("Accept header = %q, want %q", gotAccept, want)
	}
	if want := "Bearer jwt-value"; gotAuth != want {
		t.Errorf("Authorization header = %q, want %q", gotAuth, want)
	}
}

func TestGetIter_FollowsLinkHeader(t *testing.T) {
	t.Parallel()

	var callCount int
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.RawQuery, "page=2") {
			w.Write([]byte(`[{"id": 2}]`))
			return
		}
		w.Header().Set("Link", `<`+srv.URL+`/app/installations?page=2>; rel="next"`)
		w.Write([]byte(`[{"id": 1}]`))
	}))
	defer srv.Close()

	c := New("test-agent", nil).WithBaseURL(srv.URL)

	got, err := c.GetIter(context.Background(), "/app/installations")
	if err != nil {
		t.Fatal(err)
	}
	want := []map[string]any{
		{"id": float64(1)},
		{"id": float64(2)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetIter() pages diff (-want +got):\n%s", diff)
	}
	if callCount != 2 {
		t.Fatalf("got %d requests, want 2", callCount)
	}
}

func TestGetItem_RetriesOnServerError(t *testing.T) {
	t.Parallel()

	var callCount int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 1}`))
	}))
	defer srv.Close()

	c := New("test-agent", nil).WithBaseURL(srv.URL)
	got, err := c.GetItem(context.Background(), "/app")
	if err != nil {
		t.Fatal(err)
	}
	if got["id"].(float64) != 1 {
		t.Errorf("got %v, want id=1", got)
	}
	if callCount != 2 {
		t.Fatalf("callCount = %d, want 2", callCount)
	}
}

func TestDo_NonSuccessStatusIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "nope"}`))
	}))
	defer srv.Close()

	c := New("test-agent", nil).WithBaseURL(srv.URL)
	if _, err := c.GetItem(context.Background(), "/app"); err == nil {
		t.Fatal("expected an error for a 403 response")
	}
}
