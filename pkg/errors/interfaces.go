// Copyright 2025 Tom Barlow
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

package errors

// UserVisibleError is implemented by errors whose message is meant for
// the person at the terminal. cli.HandleExitError prints Suggestion
// under the message.
type UserVisibleError interface {
	error
	IsUserVisible() bool
	UserMessage() string

	// Suggestion is a one-line fix, or "".
	Suggestion() string
}

// ErrorClassifier tags an error with a stable category ("usage",
// "detach", "pid_file", "hook", "dependency", "config") for logs.
type ErrorClassifier interface {
	error
	ErrorType() string
}
