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
	"errors"
	"fmt"
	"os"

	unifyderrors "github.com/tombee/unifyd/pkg/errors"
)

// HidrawSysDir exists when the kernel has the hidraw driver loaded.
const HidrawSysDir = "/sys/class/hidraw"

// checkDependencies fails with a MissingDependencyError when hidraw support
// is absent. Platforms without sysfs are not checked.
func checkDependencies(goos, sysDir string) error {
	switch goos {
	case "darwin", "windows":
		return nil
	}
	info, err := os.Stat(sysDir)
	if err == nil && info.IsDir() {
		return nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking hidraw support: %w", err)
	}
	return &unifyderrors.MissingDependencyError{
		Dependency: "hidraw",
		Hint:       "load the hidraw kernel module (modprobe hidraw)",
	}
}
