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

// Package runtimectx carries request-scoped values through a dispatch tree
// without explicit parameter threading. It replaces a call-stack-global
// contextvar style of scoping with context.Context, so a value set by a
// parent is visible to every descendant call but invisible to sibling
// requests, and a child that spawns a detached goroutine carries a fixed
// snapshot of its parent's slots rather than a live view.
package runtimectx

import (
	"context"
	"errors"
	"fmt"
)

// Slot names a single named value carried by the runtime context.
type Slot string

// The fixed set of slots a dispatch seeds and handlers read.
const (
	SlotConfig                Slot = "config"
	SlotGitHubApp             Slot = "github_app"
	SlotGitHubEvent           Slot = "github_event"
	SlotAppInstallation       Slot = "app_installation"
	SlotAppInstallationClient Slot = "app_installation_client"
	SlotIsGitHubAction        Slot = "IS_GITHUB_ACTION"
	SlotIsGitHubApp           Slot = "IS_GITHUB_APP"
)

// LookupError is returned by value accessors when a slot was never set on
// the context. It is distinguished from a type-assertion failure so callers
// can tell "absent" from "wrong shape".
type LookupError struct {
	Slot Slot
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("runtimectx: slot %q is not set", e.Slot)
}

type slotKey struct{ slot Slot }

// Set returns a derived context with slot bound to value. The returned
// context is a child of ctx; ctx itself is unmodified, so a caller can keep
// using its own copy after handing the derived one to a callee.
func Set(ctx context.Context, slot Slot, value any) context.Context {
	return context.WithValue(ctx, slotKey{slot}, value)
}

// Get returns the raw value bound to slot, or a *LookupError if unset.
func Get(ctx context.Context, slot Slot) (any, error) {
	v := ctx.Value(slotKey{slot})
	if v == nil {
		return nil, &LookupError{Slot: slot}
	}
	return v, nil
}

// IsLookupError reports whether err is (or wraps) a *LookupError.
func IsLookupError(err error) bool {
	var lookupErr *LookupError
	return errors.As(err, &lookupErr)
}

// Bool returns the boolean bound to slot, false if unset.
func Bool(ctx context.Context, slot Slot) bool {
	v, err := Get(ctx, slot)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

// SetBool is a typed convenience wrapper around Set for boolean slots.
func SetBool(ctx context.Context, slot Slot, value bool) context.Context {
	return Set(ctx, slot, value)
}

// Value fetches and type-asserts the value bound to slot. It returns a
// *LookupError if the slot is unset, and a plain error if the bound value is
// not a T (which would indicate a caller programming error, not an
// unset-slot condition).
func Value[T any](ctx context.Context, slot Slot) (T, error) {
	var zero T
	raw, err := Get(ctx, slot)
	if err != nil {
		return zero, err
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("runtimectx: slot %q holds %T, not %T", slot, raw, zero)
	}
	return typed, nil
}
