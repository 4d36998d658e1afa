/*
Copyright © contributors to CloudNativePG, established as
CloudNativePG a Series of LF Projects, LLC.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

package configuration

import (
	"errors"
	"fmt"
)

// ArgumentError is returned when the command line or the configuration
// file cannot be used.
type ArgumentError struct {
	Err error
}

// NewArgumentError creates an ArgumentError from a format string.
func NewArgumentError(format string, args ...any) error {
	return &ArgumentError{Err: fmt.Errorf(format, args...)}
}

// Error implements error.
func (e *ArgumentError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// IsArgumentError returns true if err is, or wraps, an ArgumentError.
func IsArgumentError(err error) bool {
	var argumentError *ArgumentError
	return errors.As(err, &argumentError)
}
