package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tangram/internal/patch"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                    `json:"valid"`
	Patch    string                  `json:"patch,omitempty"`
	Errors   []patch.ValidationError `json:"errors,omitempty"`
	Warnings []patch.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <patch>",
		Short: "Check a patch without running it",
		Long: `Check a CUE patch for every problem that would stop it from being built:
unknown kinds, wrong argument counts, references to undeclared chains or
pulses, malformed literals and chains that depend on themselves.

Pulse loops are reported as warnings. They are legal feedback as long as a
cycler stops them; the engine's per-tick fire quota catches the rest.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	lr, err := LoadPatch(path)
	if err != nil {
		code, message := loadErrorParts(err)
		return formatter.Fail(ExitCommandError, code, message)
	}
	formatter.VerboseLog("Read %d CUE file(s) from %s", lr.FileCount, path)

	result := ValidatePatch(lr)
	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// ValidatePatch validates a loaded patch and collects pulse loop warnings.
func ValidatePatch(lr *LoadResult) ValidationResult {
	result := ValidationResult{Patch: lr.Patch.Name}
	result.Errors = patch.Validate(lr.Patch)
	for _, w := range patch.AnalyzeCycles(lr.Patch) {
		if w.Level == patch.LevelWarning {
			result.Warnings = append(result.Warnings, w)
		}
	}
	result.Valid = len(result.Errors) == 0
	return result
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Patch %s is valid\n", result.Patch)
	printWarnings(formatter, result.Warnings)
	return nil
}

func printWarnings(formatter *OutputFormatter, warnings []patch.CycleWarning) {
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "  warning: %s\n", w.Message)
	}
}

// outputValidationErrors outputs every validation error.
// Validation failures = exit code 1.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.EncodeIndented(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", err.Code, err.Field, err.Message)
	}
	printWarnings(formatter, result.Warnings)

	return failure
}
