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

package actions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/tombee/unifyd/internal/cli"
)

// Exit statuses shared by actions. Status follows the LSB convention for
// init script status commands.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitNotRunning = 3
	ExitUnknown    = 4
)

// Call is one one-shot invocation.
type Call struct {
	Name       string
	Args       []string
	DeviceHint string
	Options    cli.DaemonOptions
}

// Env is what an action may touch.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Action is a one-shot command.
type Action interface {
	Name() string
	Summary() string
	Run(ctx context.Context, env *Env, call Call) int
}

// Registry holds the available actions in registration order.
type Registry struct {
	env     *Env
	actions map[string]Action
	order   []string
}

// NewRegistry creates an empty registry writing to env.
func NewRegistry(env Env) *Registry {
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	if env.Stderr == nil {
		env.Stderr = os.Stderr
	}
	if env.Logger == nil {
		env.Logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		env:     &env,
		actions: make(map[string]Action),
	}
}

// Default returns a registry with the built-in actions.
func Default(env Env) *Registry {
	r := NewRegistry(env)
	r.Register(&ConfigAction{})
	r.Register(&StatusAction{})
	r.Register(&StopAction{})
	return r
}

// Register adds a, replacing any action of the same name.
func (r *Registry) Register(a Action) {
	if _, exists := r.actions[a.Name()]; !exists {
		r.order = append(r.order, a.Name())
	}
	r.actions[a.Name()] = a
}

// Has implements cli.Catalog.
func (r *Registry) Has(name string) bool {
	_, ok := r.actions[name]
	return ok
}

// Names returns the action names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// PrintHelp writes the action catalog printed by --help-actions.
func (r *Registry) PrintHelp(w io.Writer) {
	width := 0
	for _, name := range r.order {
		width = max(width, len(name))
	}

	fmt.Fprintln(w, "actions:")
	for _, name := range r.order {
		fmt.Fprintf(w, "  %-*s  %s\n", width, name, r.actions[name].Summary())
	}
	fmt.Fprintf(w, "\nRun '%s ACTION --help' for the options of an action.\n", cli.ProgramName)
}

// Dispatch runs the named action and returns its exit status.
func (r *Registry) Dispatch(ctx context.Context, call Call) int {
	a, ok := r.actions[call.Name]
	if !ok {
		fmt.Fprintf(r.env.Stderr, "%s: unknown action %q\n", cli.ProgramName, call.Name)
		return ExitUsage
	}

	r.env.Logger.Debug("running action", slog.String("action", call.Name), slog.Any("args", call.Args))
	return a.Run(ctx, r.env, call)
}

// parseArgs parses an action's arguments. When it returns false the caller
// must return code: the action's --help was printed or the arguments were
// invalid.
func parseArgs(env *Env, name, synopsis string, fs *pflag.FlagSet, args []string) (ok bool, code int) {
	fs.SetOutput(io.Discard)
	help := fs.BoolP("help", "h", false, "show this help and exit")

	printUsage := func(w io.Writer) {
		fmt.Fprintf(w, "usage: %s %s %s\n", cli.ProgramName, name, synopsis)
		if usages := fs.FlagUsages(); usages != "" {
			fmt.Fprintf(w, "\nFlags:\n%s", usages)
		}
	}

	if err := fs.Parse(args); err != nil {
		printUsage(env.Stderr)
		fmt.Fprintf(env.Stderr, "%s %s: error: %v\n", cli.ProgramName, name, err)
		return false, ExitUsage
	}
	if *help {
		printUsage(env.Stdout)
		return false, ExitOK
	}
	return true, ExitOK
}
