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

/*
Package cli turns the process argument vector into an Intent.

The command line is

	unifyd [-d|--debug]... [-D|--hidraw PATH] [--restart-on-wake-up]
	       [--pid-file PATH] [--no-fork] [--config PATH]
	       [-V|--version] [--help-actions] [ACTION [ACTION-ARGS...]]

Flags are only recognized before ACTION; everything after it is handed to
the action untouched. Resolve never performs side effects beyond reading
the optional configuration file.

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	intent, err := cli.Resolve(os.Args[1:], registry)
	if err != nil {
	    return cli.HandleExitError(os.Stderr, err)
	}
*/
package cli
