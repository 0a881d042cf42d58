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

package main

import (
	"context"
	"os"

	"github.com/tombee/unifyd/internal/actions"
	"github.com/tombee/unifyd/internal/cli"
	"github.com/tombee/unifyd/internal/controller"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cli.SetVersion(version, commit, buildDate)

	registry := actions.Default(actions.Env{Stdout: os.Stdout, Stderr: os.Stderr})

	intent, err := cli.Resolve(os.Args[1:], registry)
	if err != nil {
		return cli.HandleExitError(os.Stderr, err)
	}

	d := controller.New(controller.Options{
		Actions: registry,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Version: version,
	})
	return d.Run(context.Background(), intent)
}
