package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tangram/internal/ir"
	"github.com/roach88/tangram/internal/patch"
	"github.com/roach88/tangram/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions      []store.ReplayReport `json:"sessions"`
	TotalSessions int                  `json:"total_sessions"`
	AllMatch      bool                 `json:"all_match"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run recorded sessions and compare their notes",
		Long: `Re-run recorded sessions and verify they emit the same notes.

Each session's stored patch is rebuilt with its recorded seed and the recorded
triggers are delivered again at their original ticks. The emitted notes are
compared with the recording note by note on tick, ordinal, pitch, velocity
and duration.

Exit codes:
  0 - Every session replayed identically
  1 - At least one session diverged
  2 - Command error (database not found, unknown session, etc.)

Examples:
  tangram replay --db ./tangram.db
  tangram replay --db ./tangram.db --session 01927c4e-...
  tangram replay --db ./tangram.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, err.Code, err.Message)
	}
	defer st.Close()

	var ids []string
	if opts.Session != "" {
		ids = []string{opts.Session}
	} else {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("listing sessions: %v", err))
		}
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
	}

	result := ReplayResult{
		Sessions:      make([]store.ReplayReport, 0, len(ids)),
		TotalSessions: len(ids),
		AllMatch:      true,
	}
	for _, id := range ids {
		formatter.VerboseLog("replaying session %s", id)
		report, err := st.Replay(ctx, id, rerun)
		if errors.Is(err, sql.ErrNoRows) {
			return formatter.Fail(ExitCommandError, ErrCodeNoSession, fmt.Sprintf("session not found: %s", id))
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
		}
		result.Sessions = append(result.Sessions, report)
		if !report.Match() {
			result.AllMatch = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// rerun replays a session's triggers and key changes against a freshly
// built network.
func rerun(p *ir.Patch, seed int64, events []ir.Event, keys []ir.KeyEvent) ([]ir.Note, error) {
	return patch.Rerun(p, seed, events, keys)
}

// openExistingStore opens the database at path, refusing to create one.
func openExistingStore(path string) (*store.Store, *LoadError) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", path)}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStore, Message: fmt.Sprintf("opening database: %v", err)}
	}
	return st, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(f *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.AllMatch {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeDiverged,
			Message: "replay diverged from the recording",
		}
	}

	if err := f.EncodeIndented(response); err != nil {
		return err
	}
	if !result.AllMatch {
		return NewExitError(ExitFailure, "replay diverged from the recording")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(f *OutputFormatter, result ReplayResult) error {
	w := f.Writer

	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, r := range result.Sessions {
		status := "✓"
		if !r.Match() {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s\n", status, r.SessionID)
		fmt.Fprintf(w, "  Events: %d, notes recorded %d, replayed %d\n", r.Events, r.Recorded, r.Replayed)
		if f.Verbose {
			fmt.Fprintf(w, "  Recorded digest: %s\n", r.RecordedDigest)
			fmt.Fprintf(w, "  Replayed digest: %s\n", r.ReplayedDigest)
		}
		for i, d := range r.Diffs {
			if i == maxDiffsShown && !f.Verbose {
				fmt.Fprintf(w, "  ... %d more\n", len(r.Diffs)-i)
				break
			}
			fmt.Fprintf(w, "  %s\n", d)
		}
		fmt.Fprintln(w)
	}

	if result.AllMatch {
		fmt.Fprintln(w, "✓ All sessions replayed identically")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay diverged from the recording")
	return NewExitError(ExitFailure, "replay diverged from the recording")
}

// maxDiffsShown limits the note differences listed per session unless verbose.
const maxDiffsShown = 10
