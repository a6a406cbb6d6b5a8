package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// EventHook is called after every trigger with its stamp, value and outcome.
// err is nil unless evaluation failed with a RuntimeError.
type EventHook func(stamp int64, value int, err error)

// Driver owns the tick of one network and delivers triggers to its root pulse.
//
// OnEvent may be called directly by a single goroutine. Alternatively, Run
// drains events submitted with Enqueue and Rewire from other goroutines.
// Never mix the two for the same Driver.
type Driver struct {
	ctx    *Context
	root   Pulse
	queue  *eventQueue
	hook   EventHook
	logger *slog.Logger
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithLogger sets the logger used by Run. Default: slog.Default().
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithEventHook registers a hook called after every trigger.
func WithEventHook(h EventHook) DriverOption {
	return func(d *Driver) {
		d.hook = h
	}
}

// NewDriver creates a Driver firing into root within ctx.
func NewDriver(ctx *Context, root Pulse, opts ...DriverOption) *Driver {
	d := &Driver{
		ctx:    ctx,
		root:   root,
		queue:  newEventQueue(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.root == nil {
		d.root = Nop
	}
	return d
}

// Context returns the Context the Driver ticks.
func (d *Driver) Context() *Context {
	return d.ctx
}

// OnEvent advances the tick by one, then fires value into the root pulse.
//
// A cyclic chain dependency or an exceeded fire quota abandons the rest of
// the event and is returned as a *RuntimeError. Side effects that happened
// before the failure are kept, and the network remains usable.
func (d *Driver) OnEvent(value int) error {
	d.ctx.Tick()
	stamp := d.ctx.Stamp()

	err := Evaluate(func() { d.root.Fire(value) })
	if d.hook != nil {
		d.hook(stamp, value, err)
	}
	return err
}

// Enqueue submits a trigger for the Run loop.
// Returns false once the Driver has been stopped.
func (d *Driver) Enqueue(value int) bool {
	return d.queue.Enqueue(Event{Type: EventTypeTrigger, Value: value})
}

// Rewire submits a replacement network for the Run loop. Triggers enqueued
// before it still reach the old root. Pass a Context sharing the old clock
// (WithClock) to keep stamps increasing across the swap.
func (d *Driver) Rewire(ctx *Context, root Pulse) bool {
	return d.RewireThen(ctx, root, nil)
}

// RewireThen is Rewire with a function run on the Run loop right after the
// swap, before any later event. It receives the Context that was replaced.
func (d *Driver) RewireThen(ctx *Context, root Pulse, then func(prev *Context)) bool {
	return d.queue.Enqueue(Event{Type: EventTypeRewire, Context: ctx, Root: root, Then: then})
}

// Submit queues fn to run on the Run loop between triggers, with the Context
// current at that point. Returns false once the Driver has been stopped.
func (d *Driver) Submit(fn func(ctx *Context)) bool {
	return d.queue.Enqueue(Event{Type: EventTypeCall, Call: fn})
}

// Stop closes the queue; Run returns once it is drained.
func (d *Driver) Stop() {
	d.queue.Close()
}

// Run processes queued events until ctx is cancelled or Stop is called.
//
// Must be called from exactly one goroutine. A failing event is logged with
// its stamp and value and processing continues with the next one.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("driver starting", "stamp", d.ctx.Stamp())

	for {
		if event, ok := d.queue.TryDequeue(); ok {
			if err := d.process(event); err != nil {
				d.logger.Error("event failed",
					"stamp", d.ctx.Stamp(),
					"value", event.Value,
					"error", err,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			d.logger.Info("driver stopping: context cancelled")
			d.queue.Close()
			return ctx.Err()

		case <-d.queue.Wait():
			// The signal channel is closed with the queue.
			if d.queue.Len() == 0 && d.queue.Closed() {
				d.logger.Info("driver stopping: queue closed")
				return nil
			}
		}
	}
}

func (d *Driver) process(event Event) error {
	switch event.Type {
	case EventTypeTrigger:
		return d.OnEvent(event.Value)

	case EventTypeRewire:
		if event.Context == nil || event.Root == nil {
			return fmt.Errorf("rewire event missing network")
		}
		prev := d.ctx
		d.ctx = event.Context
		d.root = event.Root
		d.logger.Info("network rewired", "stamp", d.ctx.Stamp())
		if event.Then != nil {
			return Evaluate(func() { event.Then(prev) })
		}
		return nil

	case EventTypeCall:
		if event.Call == nil {
			return fmt.Errorf("call event missing function")
		}
		return Evaluate(func() { event.Call(d.ctx) })

	default:
		return fmt.Errorf("unknown event type: %d", event.Type)
	}
}
