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

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	unifyderrors "github.com/tombee/unifyd/pkg/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitSuccess},
		{name: "plain", err: errors.New("boom"), want: ExitFailure},
		{name: "usage", err: &unifyderrors.UsageError{Message: "bad"}, want: ExitUsage},
		{name: "wrapped usage", err: fmt.Errorf("resolve: %w", &unifyderrors.UsageError{Message: "bad"}), want: ExitUsage},
		{name: "detach", err: &unifyderrors.DetachError{Stage: 1, Cause: errors.New("EAGAIN")}, want: ExitFailure},
		{name: "explicit code", err: &ExitError{Code: 7, Message: "x"}, want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHandleExitError_Usage(t *testing.T) {
	var buf bytes.Buffer
	code := HandleExitError(&buf, &unifyderrors.UsageError{Message: "unknown flag: --bogus", Usage: "usage: unifyd [flags]"})

	if code != ExitUsage {
		t.Errorf("code = %d, want %d", code, ExitUsage)
	}
	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("usage: unifyd [flags]")) {
		t.Errorf("expected usage text, got %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("unifyd: error: unknown flag: --bogus")) {
		t.Errorf("expected error line, got %q", out)
	}
}

func TestHandleExitError_Suggestion(t *testing.T) {
	var buf bytes.Buffer
	err := fmt.Errorf("daemon: %w", &unifyderrors.MissingDependencyError{Dependency: "hidraw", Hint: "load the hid module"})

	code := HandleExitError(&buf, err)

	if code != ExitFailure {
		t.Errorf("code = %d, want %d", code, ExitFailure)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Suggestion: load the hid module")) {
		t.Errorf("expected suggestion, got %q", buf.String())
	}
}

func TestHandleExitError_Nil(t *testing.T) {
	var buf bytes.Buffer
	if code := HandleExitError(&buf, nil); code != ExitSuccess {
		t.Errorf("code = %d", code)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("root cause")
	err := NewFailure("startup failed", cause)

	if err.Error() != "startup failed: root cause" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find cause")
	}
}
