package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tangram/internal/cli"
)

func TestRunReportsExitErrorOnce(t *testing.T) {
	var stdout, stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "missing.cue")

	code := run([]string{"validate", missing}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, cli.ExitCommandError, code)
	assert.Equal(t, 1, strings.Count(stdout.String()+stderr.String(), "E005"))
	assert.Empty(t, stderr.String())
}

func TestRunPrintsOtherErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"validate", "--format", "yaml", "@tangram"}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, cli.ExitFailure, code)
	assert.Empty(t, stdout.String())
	assert.Equal(t, 1, strings.Count(stderr.String(), `invalid format "yaml"`))
}

func TestRunSuccess(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run([]string{"validate", "@tangram"}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, cli.ExitSuccess, code)
	assert.Contains(t, stdout.String(), "✓")
	assert.Empty(t, stderr.String())
}
