package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tangram/internal/ir"
	"github.com/roach88/tangram/internal/pitch"
	"github.com/roach88/tangram/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // optional - defaults to the latest session
	FromTick int64
	ToTick   int64
	Pitch    string
	Limit    int
	Events   bool
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  ir.Session         `json:"session"`
	Stats    store.SessionStats `json:"stats"`
	Notes    []ir.Note          `json:"notes"`
	Controls []ir.Control       `json:"controls,omitempty"`
	Events   []ir.Event         `json:"events,omitempty"`
	Keys     []ir.KeyEvent      `json:"keys,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show what a recorded session played",
		Long: `Show the notes a recorded session emitted, tick by tick.

The output includes:
- Session: patch name, hash and seed
- Stats: triggers, failed triggers, notes, control changes and pitch range
- Notes: every note in tick order, optionally filtered by tick range or pitch

With --events the triggers and key changes are listed too, including the
error of any trigger that failed. Without --session the most recent session is shown.

Examples:
  tangram trace --db ./tangram.db
  tangram trace --db ./tangram.db --session 01927c4e-... --from 32 --to 64
  tangram trace --db ./tangram.db --pitch B3 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to trace (default: latest)")
	cmd.Flags().Int64Var(&opts.FromTick, "from", 0, "first tick to show")
	cmd.Flags().Int64Var(&opts.ToTick, "to", 0, "last tick to show")
	cmd.Flags().StringVar(&opts.Pitch, "pitch", "", "only notes of this pitch (number or name, e.g. C#4)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many notes")
	cmd.Flags().BoolVar(&opts.Events, "events", false, "list triggers and controls as well as notes")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	filter := store.NoteFilter{FromTick: opts.FromTick, ToTick: opts.ToTick, Limit: opts.Limit}
	if opts.Pitch != "" {
		p, err := pitch.Parse(opts.Pitch)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid --pitch: %v", err))
		}
		filter.Pitch = &p
	}

	st, lerr := openExistingStore(opts.Database)
	if lerr != nil {
		return formatter.Fail(ExitCommandError, lerr.Code, lerr.Message)
	}
	defer st.Close()

	var sess ir.Session
	var err error
	if opts.Session != "" {
		sess, err = st.GetSession(ctx, opts.Session)
	} else {
		sess, err = st.LatestSession(ctx)
	}
	if errors.Is(err, sql.ErrNoRows) {
		msg := "no sessions recorded"
		if opts.Session != "" {
			msg = fmt.Sprintf("session not found: %s", opts.Session)
		}
		return formatter.Fail(ExitCommandError, ErrCodeNoSession, msg)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}

	result, err := buildTrace(ctx, st, sess, filter, opts.Events)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}

	if opts.Format == "json" {
		return formatter.EncodeIndented(CLIResponse{Status: "ok", Data: result, Session: sess.ID})
	}
	outputTraceText(formatter, result)
	return nil
}

func buildTrace(ctx context.Context, st *store.Store, sess ir.Session, filter store.NoteFilter, withEvents bool) (TraceResult, error) {
	result := TraceResult{Session: sess}
	// Traces omit the patch source.
	result.Session.PatchSource = ""

	var err error
	if result.Stats, err = st.SessionStats(ctx, sess.ID); err != nil {
		return result, err
	}
	if result.Notes, err = st.ReadNotes(ctx, sess.ID, filter); err != nil {
		return result, err
	}
	if withEvents {
		if result.Events, err = st.ReadEvents(ctx, sess.ID); err != nil {
			return result, err
		}
		if result.Controls, err = st.ReadControls(ctx, sess.ID); err != nil {
			return result, err
		}
		if result.Keys, err = st.ReadKeys(ctx, sess.ID); err != nil {
			return result, err
		}
	}
	return result, nil
}

func outputTraceText(f *OutputFormatter, result TraceResult) {
	w := f.Writer
	s := result.Session
	stats := result.Stats

	fmt.Fprintf(w, "Session: %s\n", s.ID)
	fmt.Fprintf(w, "  Patch: %s (%s)\n", s.PatchName, shortHash(s.PatchHash))
	fmt.Fprintf(w, "  Seed: %d\n", s.Seed)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Stats:")
	fmt.Fprintf(w, "  Events: %d (%d failed), last tick %d\n", stats.Events, stats.Errors, stats.LastTick)
	fmt.Fprintf(w, "  Notes: %d", stats.Notes)
	if stats.Notes > 0 {
		fmt.Fprintf(w, ", %s to %s", pitch.Name(stats.LowestPitch), pitch.Name(stats.HighestPitch))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Controls: %d\n", stats.Controls)
	if stats.Keys > 0 {
		fmt.Fprintf(w, "  Keys: %d\n", stats.Keys)
	}
	fmt.Fprintln(w)

	if len(result.Events) > 0 {
		fmt.Fprintln(w, "Events:")
		for _, e := range result.Events {
			if e.Error != "" {
				fmt.Fprintf(w, "  ✗ %6d  %d  %s\n", e.Tick, e.Value, e.Error)
				continue
			}
			fmt.Fprintf(w, "    %6d  %d\n", e.Tick, e.Value)
		}
		fmt.Fprintln(w)
	}

	if len(result.Keys) > 0 {
		fmt.Fprintln(w, "Keys:")
		for _, k := range result.Keys {
			if k.Kind == ir.KeyAllOff {
				fmt.Fprintf(w, "    %6d  %s\n", k.Tick, k.Kind)
				continue
			}
			fmt.Fprintf(w, "    %6d  %-3s %s\n", k.Tick, k.Kind, pitch.Name(k.Pitch))
		}
		fmt.Fprintln(w)
	}

	if len(result.Controls) > 0 {
		fmt.Fprintln(w, "Controls:")
		for _, c := range result.Controls {
			fmt.Fprintf(w, "  %6d.%d  cc %-3d = %d\n", c.Tick, c.Ordinal, c.Number, c.Value)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Notes (%d):\n", len(result.Notes))
	for _, n := range result.Notes {
		fmt.Fprintf(w, "  %6d.%d  %-4s %3d  vel %3d  dur %d\n",
			n.Tick, n.Ordinal, pitch.Name(n.Pitch), n.Pitch, n.Velocity, n.Duration)
	}
}

// shortHash abbreviates a content hash for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
