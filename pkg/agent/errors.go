// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrModelInvocation matches every failure of the model call.
	ErrModelInvocation = errors.New("model invocation failed")

	// ErrMaxStepsExceeded is returned by Loop.Run when the decision step cap
	// is reached before the model stops asking for tools.
	ErrMaxStepsExceeded = errors.New("maximum reasoning steps exceeded")
)

// ModelError reports a failed model call. It matches ErrModelInvocation and
// the underlying cause with errors.Is.
type ModelError struct {
	Provider string
	Model    string
	Step     int
	Err      error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model invocation failed (provider=%s, model=%s, step=%d): %v",
		e.Provider, e.Model, e.Step, e.Err)
}

func (e *ModelError) Unwrap() []error {
	return []error{ErrModelInvocation, e.Err}
}
