package patch

import (
	"fmt"

	"github.com/roach88/tangram/internal/engine"
	"github.com/roach88/tangram/internal/host"
	"github.com/roach88/tangram/internal/ir"
)

// Rerun builds p with seed, delivers the recorded triggers in order and
// returns the notes emitted.
//
// Key changes are applied to every keyboard chain just before the first
// trigger whose tick is at or after theirs; keys must be in the order they
// were played. The clock starts just before the first event's tick so the
// notes carry the recorded stamps. Evaluation errors are not returned: they
// are part of the performance and were recorded with the events.
func Rerun(p *ir.Patch, seed int64, events []ir.Event, keys []ir.KeyEvent, opts ...BuildOption) ([]ir.Note, error) {
	rec := host.NewRecorder()

	var start int64
	if len(events) > 0 {
		start = events[0].Tick - 1
	}
	opts = append(opts, WithSeed(seed), WithContextOptions(engine.WithClock(engine.NewClockAt(start))))

	n, err := Build(p, rec, opts...)
	if err != nil {
		return nil, fmt.Errorf("rerun %s: %w", p.Name, err)
	}

	keyboards := n.Keyboards()
	d := n.Driver()
	next := 0
	for _, e := range events {
		for ; next < len(keys) && keys[next].Tick <= e.Tick; next++ {
			for _, k := range keyboards {
				if err := k.Apply(keys[next]); err != nil {
					return nil, fmt.Errorf("rerun %s: key %d: %w", p.Name, keys[next].Seq, err)
				}
			}
		}
		_ = d.OnEvent(e.Value)
	}
	return rec.Notes(), nil
}
