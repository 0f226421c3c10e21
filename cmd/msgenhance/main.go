// Command msgenhance renders markdown files as a chat transcript, running
// each file through the message enhancer.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...any) {}))

	os.Exit(runMain(os.Args[1:], DefaultDeps()))
}

// runMain dispatches to a command and returns the process exit code.
func runMain(args []string, deps *Dependencies) int {
	if len(args) == 0 {
		printUsage(deps.Stderr)
		return ExitUsage
	}

	switch args[0] {
	case "render":
		return runRenderCmd(args[1:], deps)
	case "doctor":
		return runDoctorCmd(args[1:], deps)
	case "version", "--version":
		fmt.Fprintf(deps.Stdout, "msgenhance %s\n", Version)
		return ExitSuccess
	case "help", "--help", "-h":
		runHelp(args[1:], deps)
		return ExitSuccess
	default:
		fmt.Fprintf(deps.Stderr, "Unknown command: %s\n", args[0])
		printUsage(deps.Stderr)
		return ExitUsage
	}
}

func runRenderCmd(args []string, deps *Dependencies) int {
	flags, positional, err := parseRenderFlags(args, deps.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(deps.Stderr, err)
		return ExitUsage
	}

	ctx, stop := notifyContext(context.Background())
	defer stop()

	if err := runRender(ctx, positional, flags, deps); err != nil {
		fmt.Fprintln(deps.Stderr, err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}
