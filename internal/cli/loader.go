package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tangram/internal/ir"
	"github.com/roach88/tangram/internal/patch"
)

// BuiltinTangram names the embedded "Tangram" composition in place of a path.
const BuiltinTangram = "@tangram"

// LoadResult is a compiled patch with the source it came from.
type LoadResult struct {
	Patch     *ir.Patch
	Source    []byte // concatenated source of every file, in name order
	Path      string
	FileCount int // Number of CUE files read
}

// LoadError represents an error that occurred during patch loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadPatch compiles the patch at path.
//
// path is a .cue file, a directory whose CUE files unify into one patch, or
// BuiltinTangram. The result is checked for structure only; run
// patch.Validate for references and literals. Errors are *LoadError.
func LoadPatch(path string) (*LoadResult, error) {
	if path == BuiltinTangram {
		p, err := patch.Tangram()
		if err != nil {
			return nil, convertCompileError(err)
		}
		return &LoadResult{Patch: p, Source: patch.TangramSource(), Path: path, FileCount: 1}, nil
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("patch not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing patch: %v", err)}
	}

	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading patch: %v", err)}
		}
		p, err := patch.CompileSource(path, src)
		if err != nil {
			return nil, convertCompileError(err)
		}
		return &LoadResult{Patch: p, Source: src, Path: path, FileCount: 1}, nil
	}

	return loadDir(path)
}

// loadDir compiles every CUE file in dir as one instance.
func loadDir(dir string) (*LoadResult, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	p, err := patch.Compile(value)
	if err != nil {
		return nil, convertCompileError(err)
	}

	var src strings.Builder
	for _, f := range cueFiles {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", f, err)}
		}
		src.Write(data)
	}

	return &LoadResult{Patch: p, Source: []byte(src.String()), Path: dir, FileCount: len(cueFiles)}, nil
}

// FindCUEFiles returns the .cue files directly in dir, sorted by name.
// Subdirectories are separate CUE packages and are not included.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// convertCompileError converts a patch compile error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *patch.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// loadErrorParts returns the code and message of a loader error.
func loadErrorParts(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// Error code constants - unified across all CLI commands.
// Patch validation codes (E2xx) come from package patch.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeStore       = "E008" // Database error
	ErrCodeNoSession   = "E009" // Session not found
	ErrCodeDiverged    = "E010" // Replay emitted different notes
	ErrCodeScenario    = "E011" // Scenario failed or could not load

	// Patch structure errors
	ErrCodeCUE          = "E101" // CUE evaluation error (conflict, syntax)
	ErrCodeMissingField = "E102" // Required top-level field missing
	ErrCodeChain        = "E103" // Malformed chain declaration
	ErrCodePulse        = "E104" // Malformed pulse declaration
	ErrCodeOutput       = "E105" // Malformed output block
)

// MapFieldToErrorCode maps a compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeCUE
	case field == "name", field == "root", field == "seed":
		return ErrCodeMissingField
	case strings.HasPrefix(field, "chains"):
		return ErrCodeChain
	case strings.HasPrefix(field, "pulses"):
		return ErrCodePulse
	case strings.HasPrefix(field, "output"):
		return ErrCodeOutput
	default:
		return ErrCodeGeneric
	}
}
