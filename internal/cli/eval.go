package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tangram/internal/engine"
	"github.com/roach88/tangram/internal/host"
	"github.com/roach88/tangram/internal/ir"
	"github.com/roach88/tangram/internal/patch"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	Ticks int
	Seed  int64

	seedSet bool
}

// EvalTick holds the chain values observed at one tick.
type EvalTick struct {
	Tick   int64          `json:"tick"`
	Chains map[string]any `json:"chains"`
	Error  string         `json:"error,omitempty"`

	seqs map[string]ir.Seq
}

// EvalResult is the output of the eval command.
type EvalResult struct {
	Patch  string     `json:"patch"`
	Chains []string   `json:"chains"`
	Ticks  []EvalTick `json:"ticks"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <patch> [chain...]",
		Short: "Print chain values tick by tick",
		Long: `Print the values of chains over a number of ticks without firing any pulse.

The tick advances once per row and every named chain is read at that tick.
With no chain names, every chain of the patch is printed in declaration
order. Rests print as ".".

Example:
  tangram eval @tangram bar --ticks 4
  tangram eval ./patches/arp.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.seedSet = cmd.Flags().Changed("seed")
			return runEval(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Ticks, "ticks", 1, "number of ticks to evaluate")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (default: the patch's seed)")

	return cmd
}

func runEval(opts *EvalOptions, path string, names []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Ticks < 1 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--ticks must be at least 1")
	}

	lr, err := LoadPatch(path)
	if err != nil {
		code, msg := loadErrorParts(err)
		return formatter.Fail(ExitCommandError, code, msg)
	}

	buildOpts := []patch.BuildOption{patch.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr()))}
	if opts.seedSet {
		buildOpts = append(buildOpts, patch.WithSeed(opts.Seed))
	}
	n, err := patch.Build(lr.Patch, host.Discard, buildOpts...)
	if err != nil {
		var verrs patch.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return formatter.Fail(ExitFailure, verrs[0].Code, fmt.Sprintf("%s: %s", verrs[0].Field, verrs[0].Message))
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}

	if len(names) == 0 {
		for _, c := range lr.Patch.Chains {
			names = append(names, c.Name)
		}
	}
	chains := make([]engine.Chain, len(names))
	for i, name := range names {
		c, ok := n.Chain(name)
		if !ok {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("patch %s has no chain %q", lr.Patch.Name, name))
		}
		chains[i] = c
	}

	result := EvalResult{Patch: lr.Patch.Name, Chains: names}
	ctx := n.Context()
	for range opts.Ticks {
		ctx.Tick()
		row := EvalTick{
			Tick:   ctx.Stamp(),
			Chains: make(map[string]any, len(chains)),
			seqs:   make(map[string]ir.Seq, len(chains)),
		}
		for i, c := range chains {
			var seq ir.Seq
			if err := engine.Evaluate(func() { seq = c.Seq() }); err != nil {
				row.Error = err.Error()
				break
			}
			row.Chains[names[i]] = seq.Canonical()
			row.seqs[names[i]] = seq
		}
		result.Ticks = append(result.Ticks, row)
	}

	return outputEvalResult(formatter, result)
}

func outputEvalResult(f *OutputFormatter, result EvalResult) error {
	if f.Format == "json" {
		return f.EncodeIndented(CLIResponse{Status: "ok", Data: result})
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "tick")
	for _, name := range result.Chains {
		fmt.Fprintf(tw, "\t%s", name)
	}
	fmt.Fprintln(tw)
	for _, row := range result.Ticks {
		fmt.Fprintf(tw, "%d", row.Tick)
		if row.Error != "" {
			fmt.Fprintf(tw, "\t✗ %s\n", row.Error)
			continue
		}
		for _, name := range result.Chains {
			fmt.Fprintf(tw, "\t%s", row.seqs[name])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
