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

// Package udev checks that the receiver permission rules are installed.
package udev

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

// RulesFile grants users access to the receiver's hidraw nodes.
const RulesFile = "42-logitech-unify-permissions.rules"

// InstallURL explains how to install RulesFile.
const InstallURL = "https://pwr-solaar.github.io/Solaar/installation"

// DefaultRulesDirs are searched in order.
var DefaultRulesDirs = []string{
	"/etc/udev/rules.d",
	"/usr/lib/udev/rules.d",
	"/usr/local/lib/udev/rules.d",
}

// FindRules returns the path of the first regular RulesFile in dirs.
func FindRules(dirs []string) (string, bool) {
	for _, dir := range dirs {
		path := filepath.Join(dir, RulesFile)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// Advise logs two warnings when RulesFile is missing from dirs. It only
// checks on Linux and only when warnings are enabled. It reports whether
// the warnings were logged.
func Advise(logger *slog.Logger, dirs []string) bool {
	return advise(runtime.GOOS, logger, dirs)
}

func advise(goos string, logger *slog.Logger, dirs []string) bool {
	if goos != "linux" || !logger.Enabled(context.Background(), slog.LevelWarn) {
		return false
	}
	if _, ok := FindRules(dirs); ok {
		return false
	}

	logger.Warn("unifyd udev file not found in expected location", slog.String("file", RulesFile))
	logger.Warn("See " + InstallURL + " for more information")
	return true
}
