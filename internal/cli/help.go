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
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// UsageText renders the synopsis, description and flag table of c.
func UsageText(c *cobra.Command) string {
	var b strings.Builder
	fmt.Fprintf(&b, "usage: %s\n\n", Synopsis(c.Flags()))
	if c.Long != "" {
		b.WriteString(c.Long)
		b.WriteString("\n\n")
	}
	b.WriteString("Flags:\n")
	b.WriteString(c.Flags().FlagUsages())
	return b.String()
}

// Synopsis renders a one-line usage string such as
// "unifyd [-d|--debug]... [-D|--hidraw PATH] [ACTION [ACTION-ARGS...]]".
func Synopsis(fs *pflag.FlagSet) string {
	parts := []string{ProgramName}

	fs.VisitAll(func(fl *pflag.Flag) {
		if fl.Hidden || fl.Name == "help" {
			return
		}

		name := "--" + fl.Name
		if fl.Shorthand != "" {
			name = "-" + fl.Shorthand + "|" + name
		}

		switch fl.Value.Type() {
		case "bool":
			parts = append(parts, "["+name+"]")
		case "count":
			parts = append(parts, "["+name+"]...")
		default:
			placeholder, _ := pflag.UnquoteUsage(fl)
			parts = append(parts, "["+name+" "+placeholder+"]")
		}
	})

	parts = append(parts, "[ACTION [ACTION-ARGS...]]")
	return strings.Join(parts, " ")
}
