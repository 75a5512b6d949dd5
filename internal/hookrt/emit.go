package hookrt

// Scheduler queues an async hook action for later completion on the hook
// queue; the runtime pump's hook-kick phase drains it under a budget.
type Scheduler interface {
	Schedule(fn func() Result)
}

// EmitSyncWith runs every Immutable handler registered for event, in
// priority order, passing ctx to each. A handler whose Action is Done
// completes immediately and can return Cancel to short-circuit the rest;
// a handler whose Action is Async is handed to scheduler instead (its
// eventual Result cannot cancel this emission, since handlers after it
// have already run by the time it completes).
func (r *Registry) EmitSyncWith(event Event, ctx any, scheduler Scheduler) Result {
	for _, h := range r.sortedMatching(event, Immutable) {
		action := h.immutable(ctx)
		switch action.mode {
		case modeDone:
			if action.result == Cancel {
				return Cancel
			}
		case modeAsync:
			scheduler.Schedule(action.async)
		}
	}
	return Continue
}

// EmitMutableWith runs every Mutable handler registered for event, in
// priority order, passing ctx to each with exclusive access.
func (r *Registry) EmitMutableWith(event Event, ctx any, scheduler Scheduler) Result {
	for _, h := range r.sortedMatching(event, Mutable) {
		action := h.mutable(ctx)
		switch action.mode {
		case modeDone:
			if action.result == Cancel {
				return Cancel
			}
		case modeAsync:
			scheduler.Schedule(action.async)
		}
	}
	return Continue
}
