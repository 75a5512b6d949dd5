// Package hookrt implements the kernel's typed event hook runtime:
// handlers register against named events with a
// mutability class and an execution priority, run synchronously in
// priority order, and may defer part of their work onto a budgeted queue
// the runtime pump drains every tick.
package hookrt

import "sort"

// Event names a hookable point in the editor lifecycle.
type Event string

const (
	EventBufferOpen  Event = "buffer_open"
	EventBufferChange Event = "buffer_change"
	EventBufferClose Event = "buffer_close"
	EventEditorStart Event = "editor_start"
	EventEditorQuit  Event = "editor_quit"
)

// Result is a handler's verdict: Continue lets remaining handlers run,
// Cancel short-circuits the rest of the emission for this event.
type Result uint8

const (
	Continue Result = iota
	Cancel
)

// Mutability distinguishes handlers that only read editor state from ones
// that may mutate it; EmitSyncWith only ever runs Immutable handlers
// (mutable handlers are invoked through EmitMutableWith, which takes an
// exclusive context instead).
type Mutability uint8

const (
	Immutable Mutability = iota
	Mutable
)

// Action is a handler's outcome for one invocation: either it already ran
// to completion (Done), or it has async work that must be scheduled on the
// hook queue and cannot affect the Result of the event already committed.
type Action struct {
	mode   actionMode
	result Result
	async  func() Result
}

type actionMode uint8

const (
	modeDone actionMode = iota
	modeAsync
)

// Done builds a synchronously-completed Action.
func Done(result Result) Action { return Action{mode: modeDone, result: result} }

// Async builds an Action that defers fn onto the hook queue; fn's return
// value cannot cancel the event that triggered it, since by the time fn
// runs the event has already been committed.
func Async(fn func() Result) Action { return Action{mode: modeAsync, async: fn} }

// ImmutableHandler reacts to an event without mutating ctx.
type ImmutableHandler func(ctx any) Action

// MutableHandler reacts to an event with exclusive access to ctx.
type MutableHandler func(ctx any) Action

type hookDef struct {
	event      Event
	priority   int
	mutability Mutability
	immutable  ImmutableHandler
	mutable    MutableHandler
}

// Registry holds every registered hook, partitioned by event.
type Registry struct {
	byEvent map[Event][]*hookDef
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byEvent: make(map[Event][]*hookDef)}
}

// RegisterImmutable registers a read-only handler for event. Lower
// priority values run first.
func (r *Registry) RegisterImmutable(event Event, priority int, handler ImmutableHandler) {
	r.byEvent[event] = append(r.byEvent[event], &hookDef{
		event: event, priority: priority, mutability: Immutable, immutable: handler,
	})
}

// RegisterMutable registers a mutating handler for event. Lower priority
// values run first.
func (r *Registry) RegisterMutable(event Event, priority int, handler MutableHandler) {
	r.byEvent[event] = append(r.byEvent[event], &hookDef{
		event: event, priority: priority, mutability: Mutable, mutable: handler,
	})
}

// sortedMatching returns every hookDef registered for event with the given
// mutability, sorted ascending by priority (stable, so registration order
// breaks ties).
func (r *Registry) sortedMatching(event Event, mutability Mutability) []*hookDef {
	var matching []*hookDef
	for _, h := range r.byEvent[event] {
		if h.mutability == mutability {
			matching = append(matching, h)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool { return matching[i].priority < matching[j].priority })
	return matching
}
