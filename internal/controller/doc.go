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
Package controller is the composition root of unifyd.

A Dispatcher acts on the Intent resolved from the command line:

  - Help and ActionList print and return 0 with no other side effect.
  - OneShot hands the action to the action dispatcher and returns its
    status. It never detaches, writes a PID file or installs signal
    handlers.
  - Daemon checks kernel support, detaches unless --no-fork, then sets up
    logging, the PID file, the udev advisory, the suspend/resume watch and
    the optional metrics endpoint, and finally runs the device listener
    inside a lifecycle.RunLoop.

# Usage

From main.go:

	d := controller.New(controller.Options{Actions: registry, Version: version})
	os.Exit(d.Run(ctx, intent))
*/
package controller
