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

//go:build windows

package lifecycle

import "os"

// StopSignals are the signals that end the run loop. Windows only delivers
// os.Interrupt (Ctrl+C, Ctrl+Break and console close).
var StopSignals = []os.Signal{os.Interrupt}

func classifySignal(sig os.Signal) StopReason {
	if sig == os.Interrupt {
		return ReasonInterrupt
	}
	return ReasonSignal
}
