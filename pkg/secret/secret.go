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

// Package secret holds string values that must not leak into logs or
// diagnostic output by accident.
package secret

import (
	"fmt"
	"log/slog"
)

const (
	weakPlaceholder   = "<SECRET>"
	strongPlaceholder = "<SUPER_SECRET>"
)

// Weak is a string that renders the placeholder whenever it is formatted or
// logged, directly or as an exported field of a containing value, but
// exposes its real value through Reveal and String. Go has no call-stack
// introspection to distinguish "direct" from "embedded" formatting the way
// the source language does, so Weak always redacts in Format/LogValue and
// always reveals in String/Reveal; callers that need the raw value from
// inside a log line must call Reveal explicitly. fmt does not call methods
// on unexported struct fields, so a Weak held in an unexported field prints
// its raw value when the containing struct is formatted with %v or %+v.
type Weak string

// String exposes the underlying value. Required for HTTP header emission and
// HMAC computation, where the real value is needed.
func (s Weak) String() string { return string(s) }

// Reveal returns the underlying value explicitly.
func (s Weak) Reveal() string { return string(s) }

// GoString implements fmt.GoStringer for callers that invoke it directly.
// fmt itself routes "%#v" through Format, which renders the same
// placeholder.
func (s Weak) GoString() string { return weakPlaceholder }

// Format implements fmt.Formatter. fmt consults it before String, so %v,
// %+v, %#v, %s and %q render the placeholder whether the Weak is formatted
// directly (including a bare fmt.Sprint(weakValue)) or nested in an
// exported field; any other verb renders a "%!verb(secret.Weak)" marker.
// Only String and Reveal return the raw value.
func (s Weak) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v', 's', 'q':
		fmt.Fprint(f, weakPlaceholder)
	default:
		fmt.Fprintf(f, "%%!%c(secret.Weak)", verb)
	}
}

// LogValue implements slog.LogValuer so structured logging never prints the
// raw value.
func (s Weak) LogValue() slog.Value {
	return slog.StringValue(weakPlaceholder)
}

// Strong always redacts, regardless of whether it is being logged directly
// or embedded in a containing value. Use Strong for values that must never
// appear in any diagnostic output, such as a webhook secret or a raw private
// key. As with Weak, fmt does not call methods on unexported struct fields,
// so a Strong held in an unexported field prints its raw value when the
// containing struct is formatted with %v or %+v.
type Strong string

// String always returns the redaction placeholder.
func (s Strong) String() string { return strongPlaceholder }

// Reveal returns the underlying value. The only escape hatch; callers must
// call this explicitly to get the real value (e.g. to compute an HMAC).
func (s Strong) Reveal() string { return string(s) }

// GoString always returns the redaction placeholder.
func (s Strong) GoString() string { return strongPlaceholder }

// Format always renders the redaction placeholder.
func (s Strong) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, strongPlaceholder)
}

// LogValue always returns the redaction placeholder.
func (s Strong) LogValue() slog.Value {
	return slog.StringValue(strongPlaceholder)
}
