// Command tangram compiles, plays, records and replays Tangram patches.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/roach88/tangram/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code. An ExitError has
// already been reported by the command, so only other errors are printed.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return cli.ExitSuccess
	}
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(stderr, err)
	}
	return cli.GetExitCode(err)
}
