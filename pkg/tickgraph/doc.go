/*
Package tickgraph runs ordered callbacks for named events and schedules
those events on pausable virtual timers.

# Overview

A Behavior is a named callback that can declare that it runs before or
after other behaviors. An Event is a set of behaviors. Posting an event
invokes every enabled member once, in an order that honors every edge
between members. Edges to behaviors that are not members are ignored.

The queue subpackage fires events at requested times. Each queue binds one
event to one Timer; timers can be paused and resumed independently, and a
single Worker multiplexes all of them onto one host timer.

# Basic Usage

Declare behaviors, group them into an event, and post it:

	input := tickgraph.NewBehavior("input", readInput)
	physics := tickgraph.NewBehavior("physics", step, tickgraph.RunsAfter(input))
	render := tickgraph.NewBehavior("render", draw, tickgraph.RunsAfter(physics))

	frame := tickgraph.NewEvent("frame")
	frame.AddBehavior(render)
	frame.AddBehavior(physics)
	frame.AddBehavior(input)

	cont, err := frame.Post(ctx, dt) // input, physics, render

Among behaviors that are ready at the same time, the one registered first
runs first. Do not rely on that: declare an edge when order matters.

# Dependencies

Edges can be declared at construction with RunsBefore and RunsAfter, or
later with AddDependency. An edge is stored on the declaring behavior only:

	audio.AddDependency(render, tickgraph.After)

Declaring both Before and After against the same target returns a
*ConflictError. A cycle among an event's members is reported by Post and
ResolveOrder as a *CycleError, and no behavior runs.

The resolved order is cached per event and recomputed when membership
changes or a member's edges change.

# Asynchronous Behaviors

A behavior that finishes later returns a pending Outcome:

	save := tickgraph.NewBehavior("save", func(ctx context.Context, ev *tickgraph.Event, arg any) (tickgraph.Outcome, error) {
	    return tickgraph.Pending(tickgraph.Go(func() error {
	        return writeSnapshot(arg)
	    })), nil
	})

Post combines all pending outcomes into one Continuation. A queue whose
last firing is still pending defers further firings until it settles.

# Error Handling

A failing or panicking behavior does not stop its siblings. Post returns a
*BehaviorFailures holding one *BehaviorError or *PanicError per failure:

	_, err := frame.Post(ctx, dt)
	if errors.Is(err, tickgraph.ErrBehaviorFailure) {
	    var failures *tickgraph.BehaviorFailures
	    errors.As(err, &failures)
	}

Behaviors that returned pending outcomes are still running when others
failed, so Post returns their Continuation next to the error.

Inside a behavior, LoggerFrom(ctx) returns the event's logger with the
event and behavior names attached.

Use errors.Is with ErrGraphCycle, ErrBehaviorConflict and
ErrBehaviorFailure to tell the kinds apart.

# Observability

Events accept WithLogger, WithMetrics and WithTracing. Logging uses
log/slog; metrics and spans go through the global OpenTelemetry providers.

# Thread Safety

Behaviors, events, queues and timers are not safe for concurrent use. They
belong to the goroutine that posts the events, which for scheduled events
is the worker's. Use Worker.Submit to reach it from elsewhere.
Continuations are the exception: they may be settled from any goroutine.
*/
package tickgraph
