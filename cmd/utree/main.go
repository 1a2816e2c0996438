package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

var version = "dev" // Set by -ldflags during build

// Available subcommands
var subcommands = []struct {
	name        string
	description string
}{
	{"run", "Execute manifest suites and print the result tree"},
	{"query", "List, show and summarize recorded runs"},
	{"config", "Manage configuration"},
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-V") {
		fmt.Printf("utree version %s\n", version)
		os.Exit(0)
	}

	if len(os.Args) == 1 || os.Args[1] == "--help" || os.Args[1] == "-h" {
		printHelp()
		os.Exit(0)
	}

	subcommand := os.Args[1]

	validSubcommand := false
	for _, sc := range subcommands {
		if sc.name == subcommand {
			validSubcommand = true
			break
		}
	}

	if !validSubcommand {
		fmt.Fprintf(os.Stderr, "Error: unknown subcommand '%s'\n\n", subcommand)
		printUsage()
		os.Exit(1)
	}

	cmdName := "utree-" + subcommand

	cmdPath, err := exec.LookPath(cmdName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: command '%s' not found in PATH\n", cmdName)
		fmt.Fprintf(os.Stderr, "Make sure it is installed (try: go install ./cmd/...)\n")
		os.Exit(1)
	}

	args := []string{filepath.Base(cmdPath)}
	if len(os.Args) > 2 {
		args = append(args, os.Args[2:]...)
	}

	// Replace the current process so the subcommand receives signals directly
	if err := syscall.Exec(cmdPath, args, os.Environ()); err != nil {
		cmd := exec.Command(cmdPath, args[1:]...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				os.Exit(exitErr.ExitCode())
			}
			fmt.Fprintf(os.Stderr, "Error executing %s: %v\n", cmdName, err)
			os.Exit(1)
		}
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: utree <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Available commands:\n")
	for _, sc := range subcommands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", sc.name, sc.description)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'utree <command> --help' for more information on a command.\n")
}

func printHelp() {
	fmt.Printf("utree - unit test tree harness\n\n")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Printf("DESCRIPTION:\n")
	fmt.Printf("  Runs suites of test cases described in YAML manifests, prints a colored\n")
	fmt.Printf("  tree of results with per-suite statistics, and keeps a history of runs.\n")
	fmt.Printf("  This command dispatches to the individual utree-* tools.\n\n")

	fmt.Printf("USAGE:\n")
	fmt.Printf("  utree <command> [options]\n\n")

	fmt.Printf("AVAILABLE COMMANDS:\n")
	for _, sc := range subcommands {
		fmt.Printf("  %-8s %s\n", sc.name, sc.description)
	}

	fmt.Printf("\nGLOBAL OPTIONS:\n")
	fmt.Printf("  -h, --help       Show this help message\n")
	fmt.Printf("  -V, --version    Show version\n\n")

	fmt.Printf("EXAMPLES:\n")
	fmt.Printf("  # Run every suite in a manifest\n")
	fmt.Printf("  utree run tests.yaml\n\n")

	fmt.Printf("  # Run only the Math suite, without colors\n")
	fmt.Printf("  utree run --filter 'Math/**' --no-color tests.yaml\n\n")

	fmt.Printf("  # Print the tree of a previous run again\n")
	fmt.Printf("  utree query show 12\n\n")

	fmt.Printf("GETTING STARTED:\n")
	fmt.Printf("  1. Create a configuration file:\n")
	fmt.Printf("       utree config init\n\n")
	fmt.Printf("  2. Run a manifest:\n")
	fmt.Printf("       utree run tests.yaml\n\n")
	fmt.Printf("  3. Review history:\n")
	fmt.Printf("       utree query list\n\n")

	fmt.Printf("For detailed help on any command:\n")
	fmt.Printf("  utree <command> --help\n")
}
