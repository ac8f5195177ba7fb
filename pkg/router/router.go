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

// Package router implements predicate-based event routing: handlers
// register for an event name, optionally discriminated by a payload field
// (e.g. "action": "opened"), and a scheduling mode decides how the matched
// handlers run relative to each other.
package router

import (
	"context"
	"sync"

	"github.com/abcxyz/octomachinery-go/pkg/ghevent"
)

// Handler processes one matched event.
type Handler func(ctx context.Context, event ghevent.Event) error

type registration struct {
	key   string
	value string
	fn    Handler
}

// Router holds registered handlers and dispatches incoming events to the
// ones whose registration matches. The zero value is not usable; construct
// one with New.
type Router struct {
	mu       sync.Mutex
	shallow  map[string][]Handler
	deep     map[string][]registration
	schedule Schedule

	background inFlight
}

// Schedule controls how a Router runs the handlers matched by one Dispatch
// call relative to each other.
type Schedule int

const (
	// Sequential awaits each matched handler in registration order, aborting
	// on the first error.
	Sequential Schedule = iota
	// Concurrent runs every matched handler in parallel and waits for all of
	// them; if more than one fails, the first error (by registration order)
	// is returned.
	Concurrent
	// NonBlockingConcurrent schedules every matched handler as a detached
	// goroutine and returns immediately. The Router retains a reference to
	// each in-flight goroutine (via an internal WaitGroup) until it
	// completes, so a caller that wants to drain outstanding work before
	// shutdown can call Wait.
	NonBlockingConcurrent
)

// New constructs a Router using the given scheduling mode.
func New(schedule Schedule) *Router {
	return &Router{
		shallow:  make(map[string][]Handler),
		deep:     make(map[string][]registration),
		schedule: schedule,
	}
}

// Register binds fn to eventName. With no discriminator it is a "shallow"
// registration invoked for every event of that name. With a discriminator
// key/value (e.g. "action", "opened") it only runs when the event's decoded
// payload carries that key with that value.
func (r *Router) Register(eventName string, fn Handler, discriminator ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(discriminator) == 0 {
		r.shallow[eventName] = append(r.shallow[eventName], fn)
		return
	}
	if len(discriminator) != 2 {
		panic("router: discriminator must be exactly (key, value)")
	}
	r.deep[eventName] = append(r.deep[eventName], registration{
		key: discriminator[0], value: discriminator[1], fn: fn,
	})
}

// RegisterActions registers fn once per value in values, all discriminated
// on the "action" payload field. This is the common case of an event whose
// meaningful variants are carried in payload.action (e.g. "opened",
// "closed", "reopened" for issues and pull requests).
func (r *Router) RegisterActions(eventName string, fn Handler, values ...string) {
	for _, v := range values {
		r.Register(eventName, fn, "action", v)
	}
}

// matched returns every handler bound to event's name that also matches its
// payload, in (shallow first, then deep, each in insertion order) order.
func (r *Router) matched(event ghevent.Event) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Handler
	out = append(out, r.shallow[event.Name()]...)

	for _, reg := range r.deep[event.Name()] {
		payloadValue, ok := event.Payload()[reg.key]
		if !ok {
			continue
		}
		if s, ok := payloadValue.(string); ok && s == reg.value {
			out = append(out, reg.fn)
		}
	}
	return out
}

// Dispatch runs every handler matching event, per the Router's configured
// Schedule.
func (r *Router) Dispatch(ctx context.Context, event ghevent.Event) error {
	handlers := r.matched(event)
	if len(handlers) == 0 {
		return nil
	}

	switch r.schedule {
	case Sequential:
		return dispatchSequential(ctx, event, handlers)
	case Concurrent:
		return dispatchConcurrent(ctx, event, handlers)
	case NonBlockingConcurrent:
		r.dispatchNonBlocking(ctx, event, handlers)
		return nil
	default:
		return dispatchSequential(ctx, event, handlers)
	}
}

func dispatchSequential(ctx context.Context, event ghevent.Event, handlers []Handler) error {
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func dispatchConcurrent(ctx context.Context, event ghevent.Event, handlers []Handler) error {
	errs := make([]error, len(handlers))

	var wg sync.WaitGroup
	wg.Add(len(handlers))
	for i, h := range handlers {
		go func(i int, h Handler) {
			defer wg.Done()
			errs[i] = h(ctx, event)
		}(i, h)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// inFlight retains strong references to background handler goroutines so
// the Go runtime never collects them mid-flight; entries are removed as
// each handler completes.
type inFlight struct {
	wg sync.WaitGroup
}

func (r *Router) dispatchNonBlocking(ctx context.Context, event ghevent.Event, handlers []Handler) {
	r.background.wg.Add(len(handlers))
	for _, h := range handlers {
		go func(h Handler) {
			defer r.background.wg.Done()
			_ = h(ctx, event)
		}(h)
	}
}

// Wait blocks until every NonBlockingConcurrent handler scheduled so far has
// completed. Intended for graceful shutdown, not for use on the request
// path.
func (r *Router) Wait() {
	r.background.wg.Wait()
}
