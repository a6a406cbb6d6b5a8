package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tangram/internal/ir"
	"github.com/roach88/tangram/internal/patch"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is a compiled patch with its content hash.
type CompilationResult struct {
	Hash  string    `json:"hash"`
	Patch *ir.Patch `json:"patch"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <patch>",
		Short: "Compile a CUE patch to IR",
		Long: `Compile a CUE patch to its intermediate representation.

<patch> is a .cue file, a directory of CUE files, or @tangram for the built-in
composition. The output lists every chain and pulse and the patch's content
hash, which ignores formatting and comments.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the IR as JSON to this file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	lr, err := LoadPatch(path)
	if err != nil {
		return outputCompileError(formatter, err)
	}
	formatter.VerboseLog("Read %d CUE file(s) from %s", lr.FileCount, path)

	hash, err := patch.Hash(lr.Patch)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("hashing patch: %v", err))
	}
	result := &CompilationResult{Hash: hash, Patch: lr.Patch}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	p := result.Patch
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled patch %s: %d chain(s), %d pulse(s)\n\n", p.Name, len(p.Chains), len(p.Pulses))

	if len(p.Chains) > 0 {
		fmt.Fprintln(w, "Chains:")
		for _, c := range p.Chains {
			fmt.Fprintf(w, "  %s: %s(%s)\n", c.Name, c.Kind, describeArgs(c.Args))
		}
		fmt.Fprintln(w)
	}

	if len(p.Pulses) > 0 {
		fmt.Fprintln(w, "Pulses:")
		for _, ps := range p.Pulses {
			fmt.Fprintf(w, "  %s: %s", ps.Name, ps.Kind)
			switch ps.Kind {
			case ir.PulseCycler:
				fmt.Fprintf(w, " %s → %s", describeArg(*ps.Chain), ps.Out)
			case ir.PulseSprayer:
				fmt.Fprintf(w, " → %v", ps.Targets)
			case ir.PulseControl:
				fmt.Fprintf(w, " cc %d", ps.Number)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Root: %s\n", p.Root)
	fmt.Fprintf(w, "Hash: %s\n", result.Hash)
	if outputFile != "" {
		fmt.Fprintf(w, "Wrote IR to %s\n", outputFile)
	}
	return nil
}

func describeArgs(args []ir.Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = describeArg(a)
	}
	return strings.Join(parts, ", ")
}

func describeArg(a ir.Arg) string {
	if a.Ref != "" {
		return "@" + a.Ref
	}
	if a.Literal == nil {
		return "."
	}
	if s, ok := a.Literal.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(a.Literal)
}

// outputCompileError reports a load failure. Unreadable patches are
// command-level errors (exit code 2).
func outputCompileError(formatter *OutputFormatter, err error) error {
	code, message := loadErrorParts(err)
	if formatter.Format != "json" {
		fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintf(formatter.Writer, "  %s\n\n", err)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}
	return formatter.Fail(ExitCommandError, code, message)
}

// writeIRToFile writes the compilation result as indented JSON.
// Canonical JSON without indentation is used only for hashing.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
