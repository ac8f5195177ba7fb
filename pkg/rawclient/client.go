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

// Package rawclient is a minimal, resource-agnostic GitHub REST client: six
// verbs (GetItem, GetIter, Post, Patch, Put, Delete) that accept a path and
// return decoded JSON, rather than a typed model per endpoint. It is
// deliberately thinner than github.com/google/go-github/v69/github, which
// this module reserves for the example handlers in pkg/handlers that do want
// typed payloads.
package rawclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

const defaultBaseURL = "https://api.github.com"

// retryInitialDelay and maxRetryAttempts bound the backoff applied around a
// request's transport round trip, mirroring the github-action-dispatcher
// GitHub client's retry loop around its own go-github calls.
const (
	retryInitialDelay = 250 * time.Millisecond
	maxRetryAttempts  = 3
)

// Token is a credential a TokenProvider resolves for a single request. It
// is defined here, not imported from pkg/appauth, so this package stays a
// leaf dependency appauth can sit on top of: appauth's JWTToken and
// OAuthToken both satisfy it by implementing AuthorizationHeader.
type Token interface {
	// AuthorizationHeader returns the full value for the HTTP Authorization
	// header, e.g. "Bearer <jwt>" or "token <oauth>".
	AuthorizationHeader() string
}

// TokenProvider resolves the credential a request should carry. It is
// called once per request so a caller backed by an installation token can
// transparently refresh an expired token before each call.
type TokenProvider func(ctx context.Context) (Token, error)

// Client is a thin GitHub REST client bound to a single token provider and
// user agent.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	userAgent     string
	tokenProvider TokenProvider
}

// New constructs a Client. tokenProvider may be nil, in which case the
// client is "uninitialized": requests are still attempted but without an
// Authorization header, and String reports the uninitialized state.
func New(userAgent string, tokenProvider TokenProvider) *Client {
	return &Client{
		httpClient:    http.DefaultClient,
		baseURL:       defaultBaseURL,
		userAgent:     userAgent,
		tokenProvider: tokenProvider,
	}
}

// WithBaseURL overrides the default https://api.github.com base, for GitHub
// Enterprise Server deployments or test servers.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// WithHTTPClient overrides the underlying *http.Client, e.g. to inject a
// test transport.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

// IsInitialized reports whether the client carries a token provider.
func (c *Client) IsInitialized() bool { return c.tokenProvider != nil }

// String renders a diagnostic form that never leaks the bound token: an
// uninitialized client renders as "<RawClient>(<UNINITIALIZED>)"; an
// initialized one names its user agent (the token itself is resolved
// per-request and is not held directly by the client, so there is nothing
// further to redact here).
func (c *Client) String() string {
	if !c.IsInitialized() {
		return "<RawClient>(<UNINITIALIZED>)"
	}
	return fmt.Sprintf("RawClient(user_agent=%q)", c.userAgent)
}

// Option customizes a single request.
type Option func(*requestOptions)

type requestOptions struct {
	previewVersion string
}

// WithPreview sets the request's Accept header to the GitHub preview media
// type application/vnd.github.<version>-preview+json.
func WithPreview(version string) Option {
	return func(o *requestOptions) { o.previewVersion = version }
}

func applyOptions(opts []Option) requestOptions {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o requestOptions) accept() string {
	if o.previewVersion == "" {
		return "application/vnd.github+json"
	}
	return fmt.Sprintf("application/vnd.github.%s-preview+json", o.previewVersion)
}

// GetItem fetches path and decodes the response body into a single JSON
// object.
func (c *Client) GetItem(ctx context.Context, path string, opts ...Option) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, path, nil, applyOptions(opts), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetIter fetches every page of path, following the RFC 5988 "next" Link
// header, and returns the concatenated list of JSON objects.
func (c *Client) GetIter(ctx context.Context, path string, opts ...Option) ([]map[string]any, error) {
	o := applyOptions(opts)

	var all []map[string]any
	next := path
	for next != "" {
		var page []map[string]any
		link, err := c.doPaged(ctx, next, o, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		next = link
	}
	return all, nil
}

// Post issues a POST to path with body marshaled as JSON (nil sends no
// body), decoding the response into a JSON object.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...Option) (map[string]any, error) {
	return c.writeVerb(ctx, http.MethodPost, path, body, opts)
}

// Patch issues a PATCH to path.
func (c *Client) Patch(ctx context.Context, path string, body any, opts ...Option) (map[string]any, error) {
	return c.writeVerb(ctx, http.MethodPatch, path, body, opts)
}

// Put issues a PUT to path.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...Option) (map[string]any, error) {
	return c.writeVerb(ctx, http.MethodPut, path, body, opts)
}

// Delete issues a DELETE to path. GitHub's delete endpoints typically
// return no body; the decoded map is empty in that case.
func (c *Client) Delete(ctx context.Context, path string, opts ...Option) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodDelete, path, nil, applyOptions(opts), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) writeVerb(ctx context.Context, method, path string, body any, opts []Option) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, method, path, body, applyOptions(opts), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, o requestOptions, out any) error {
	resp, err := c.request(ctx, method, path, body, o)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("github API %s %s: %s: %s", method, path, resp.Status, string(data))
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// doPaged is like do but also returns the "next" page URL from the
// response's Link header, if any.
func (c *Client) doPaged(ctx context.Context, path string, o requestOptions, out any) (string, error) {
	resp, err := c.request(ctx, http.MethodGet, path, nil, o)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("github API GET %s: %s: %s", path, resp.Status, string(data))
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return "", fmt.Errorf("failed to decode response body: %w", err)
		}
	}
	return nextPageURL(resp.Header.Get("Link")), nil
}

func (c *Client) request(ctx context.Context, method, path string, body any, o requestOptions) (*http.Response, error) {
	full := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		full = c.baseURL + path
	}

	var data []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		data = encoded
	}

	// tokenProvider is resolved once per call, not once per retry attempt:
	// an installation token refresh is expensive and its validity window
	// comfortably outlasts the few retried round trips below.
	var authHeader string
	if c.tokenProvider != nil {
		token, err := c.tokenProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve request token: %w", err)
		}
		authHeader = token.AuthorizationHeader()
	}

	var resp *http.Response
	backoff := goretry.WithMaxRetries(maxRetryAttempts, goretry.NewExponential(retryInitialDelay))

	if err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if data != nil {
			reader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, full, reader)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", o.accept())
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		if data != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}

		r, err := c.httpClient.Do(req)
		if err != nil {
			return goretry.RetryableError(fmt.Errorf("request to %s %s failed: %w", method, full, err))
		}

		if r.StatusCode == http.StatusTooManyRequests || r.StatusCode >= 500 {
			r.Body.Close()
			return goretry.RetryableError(fmt.Errorf("github API %s %s responded with %d", method, full, r.StatusCode))
		}

		resp = r
		return nil
	}); err != nil {
		return nil, err
	}
	return resp, nil
}

// nextPageURL extracts the rel="next" target from an RFC 5988 Link header,
// returning "" when there is no further page.
func nextPageURL(header string) string {
	if header == "" {
		return ""
	}
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		urlPart := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(urlPart, "<") || !strings.HasSuffix(urlPart, ">") {
			continue
		}
		for _, attr := range segments[1:] {
			attr = strings.TrimSpace(attr)
			if attr == `rel="next"` {
				raw := strings.Trim(urlPart, "<>")
				if u, err := url.Parse(raw); err == nil {
					return u.String()
				}
			}
		}
	}
	return ""
}
