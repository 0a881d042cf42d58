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

package controller

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// localeVars are consulted in order, the way the C library does.
var localeVars = []string{"LC_ALL", "LC_CTYPE", "LANG"}

// currentLocale returns the canonical language tag and encoding of the
// process locale. Unset or C/POSIX locales report "unknown".
func currentLocale(getenv func(string) string) (tag, encoding string) {
	for _, key := range localeVars {
		if v := getenv(key); v != "" {
			return parseLocale(v)
		}
	}
	return parseLocale("")
}

// parseLocale splits a POSIX locale name such as "en_GB.UTF-8@euro".
func parseLocale(s string) (tag, encoding string) {
	tag, encoding = "unknown", "unknown"

	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	name, enc, _ := strings.Cut(s, ".")
	if enc != "" {
		encoding = enc
	}
	if name == "" || name == "C" || name == "POSIX" {
		return tag, encoding
	}
	if t, err := language.Parse(strings.ReplaceAll(name, "_", "-")); err == nil {
		tag = t.String()
	}
	return tag, encoding
}

func processLocale() (tag, encoding string) {
	return currentLocale(os.Getenv)
}
