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

// Package crashreport is the sink unexpected handler errors are reported to
// before the dispatcher swallows (server mode) or re-raises (Action mode)
// them. No crash-reporting SDK appears anywhere in this module's reference
// corpus, so the default Sink logs structurally through the same logger the
// rest of the module uses rather than reaching for an unrelated library; a
// deployment that wants off-box aggregation points ENV/SENTRY_DSN at a log
// shipper instead.
package crashreport

import (
	"context"

	"github.com/abcxyz/pkg/logging"
)

// Sink receives unexpected handler errors. fields are structured key/value
// pairs appended to the log line (event name, delivery id, etc.).
type Sink interface {
	Report(ctx context.Context, err error, fields ...any)
}

// logSink is the default Sink: it logs the error at error level via the
// context's logger. It never returns an error itself — a failing crash
// report must not mask the original failure.
type logSink struct{}

// NewLogSink returns the default, dependency-free Sink.
func NewLogSink() Sink { return logSink{} }

// Report implements Sink.
func (logSink) Report(ctx context.Context, err error, fields ...any) {
	logger := logging.FromContext(ctx)
	args := append([]any{"error", err}, fields...)
	logger.ErrorContext(ctx, "unexpected handler error", args...)
}

// dsnGatedSink wraps another Sink and only invokes it when dsn is non-empty,
// mirroring the SENTRY_DSN env var gate: "absent disables reporting".
type dsnGatedSink struct {
	dsn   string
	inner Sink
}

// NewDSNGatedSink wraps inner so Report is a no-op whenever dsn is empty.
// When dsn is set, inner still only logs (see package doc) — the gate
// exists so operators can distinguish "reporting configured" from "not" in
// their own log aggregation without this module depending on a specific
// crash-reporting vendor.
func NewDSNGatedSink(dsn string, inner Sink) Sink {
	return &dsnGatedSink{dsn: dsn, inner: inner}
}

// Report implements Sink.
func (s *dsnGatedSink) Report(ctx context.Context, err error, fields ...any) {
	if s.dsn == "" {
		return
	}
	s.inner.Report(ctx, err, fields...)
}
