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

package dispatch

import (
	"errors"
	"fmt"
)

const (
	// ExitSuccess is the Action runner's process exit code when dispatch
	// completes with no distinguished control-flow signal.
	ExitSuccess = 0
	// ExitNeutral is the Action runner's process exit code when a handler
	// signals Neutral.
	ExitNeutral = 78
)

// ErrNeutral is the sentinel a handler returns to signal "I chose not to
// act, this is not a failure" (GitHub Actions' neutral exit convention).
var ErrNeutral = errors.New("dispatch: neutral outcome")

// failureOutcome carries a handler-chosen non-zero, non-78 process exit
// code for the Action runner to surface.
type failureOutcome struct {
	code int
	err  error
}

func (f *failureOutcome) Error() string {
	if f.err != nil {
		return fmt.Sprintf("dispatch: failure outcome (exit %d): %v", f.code, f.err)
	}
	return fmt.Sprintf("dispatch: failure outcome (exit %d)", f.code)
}

func (f *failureOutcome) Unwrap() error { return f.err }

// Failure returns a handler error that signals a distinguished failure
// outcome with the given process exit code. code must not be 0 or 78,
// which are reserved for success and neutral.
func Failure(code int, cause error) error {
	if code == ExitSuccess || code == ExitNeutral {
		panic(fmt.Sprintf("dispatch: failure exit code must not be %d or %d", ExitSuccess, ExitNeutral))
	}
	return &failureOutcome{code: code, err: cause}
}

// IsControlFlow reports whether err is one of the distinguished Action
// control-flow outcomes (neutral or failure), as opposed to an ordinary
// unexpected handler error that should go to the crash sink.
func IsControlFlow(err error) bool {
	if errors.Is(err, ErrNeutral) {
		return true
	}
	var fo *failureOutcome
	return errors.As(err, &fo)
}

// ExitCode translates a control-flow error into the process exit code the
// Action runner should use. ok is false if err is not a control-flow error.
func ExitCode(err error) (code int, ok bool) {
	if err == nil {
		return ExitSuccess, true
	}
	if errors.Is(err, ErrNeutral) {
		return ExitNeutral, true
	}
	var fo *failureOutcome
	if errors.As(err, &fo) {
		return fo.code, true
	}
	return 0, false
}
