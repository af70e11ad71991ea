// Command roadmapbp turns a short project description into a phased roadmap.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"roadmapbp/pkg/version"
)

type command struct {
	run     func(ctx context.Context, env *cliEnv, args []string) error
	summary string
}

// cliEnv carries the process streams so commands can be tested.
type cliEnv struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func commands() map[string]command {
	return map[string]command{
		"generate": {runGenerate, "Generate a roadmap from -input or -file"},
		"drafts":   {runDrafts, "Write several independent whole-roadmap drafts"},
		"serve":    {runServe, "Serve the JSON API"},
		"feedback": {runFeedback, "Record an up/down vote on a roadmap"},
		"list":     {runList, "List stored roadmaps or feedback"},
		"show":     {runShow, "Show or export a stored roadmap"},
		"init":     {runInit, "Write a default config file"},
		"secrets":  {runSecrets, "Manage the encrypted secrets file (set|list|delete)"},
		"version":  {runVersion, "Print version information"},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, &cliEnv{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}, os.Args[1:])
	stop()
	os.Exit(code)
}

// run dispatches to a subcommand and returns the process exit code.
func run(ctx context.Context, env *cliEnv, args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(env.stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cmd, ok := commands()[args[0]]
	if !ok {
		fmt.Fprintf(env.stderr, "Error: unknown command %q\n\n", args[0])
		printUsage(env.stderr)
		return 2
	}

	if err := cmd.run(ctx, env, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if isUsage(err) {
			fmt.Fprintf(env.stderr, "Error: %v\n", err)
			return 2
		}
		fmt.Fprintf(env.stderr, "%s failed: %v\n", args[0], err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: roadmapbp <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range []string{"generate", "drafts", "serve", "feedback", "list", "show", "init", "secrets", "version"} {
		fmt.Fprintf(w, "  %-9s %s\n", name, commands()[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'roadmapbp <command> -h' for command flags.")
}

func runVersion(_ context.Context, env *cliEnv, _ []string) error {
	fmt.Fprintf(env.stdout, "roadmapbp %s\n", version.Version)
	fmt.Fprintf(env.stdout, "  commit: %s\n", version.Commit)
	fmt.Fprintf(env.stdout, "  built:  %s\n", version.Date)
	return nil
}

// usageError marks errors caused by bad flags or arguments.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func isUsage(err error) bool {
	_, ok := err.(usageError) //nolint:errorlint // never wrapped
	return ok
}
