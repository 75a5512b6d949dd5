// Package runtimepump implements the kernel's bounded-convergence runtime
// pump: a fixed six-phase round, repeated until a round
// makes no progress or a round cap is hit, yielding one LoopDirective that
// tells the frontend how long to poll and whether a redraw is needed.
package runtimepump

import "time"

// MaxPumpRounds bounds re-entry of the phase loop within a single cycle.
const MaxPumpRounds = 8

// Phase identifies one of the pump's fixed six phases, in invariant order.
type Phase uint8

const (
	PhaseUITickAndEditorTick Phase = iota
	PhaseFilesystemEvents
	PhaseDrainMessages
	PhaseKickNuHookEval
	PhaseDrainScheduler
	PhaseDrainRuntimeWork
)

func (p Phase) String() string {
	switch p {
	case PhaseUITickAndEditorTick:
		return "ui_tick_and_editor_tick"
	case PhaseFilesystemEvents:
		return "filesystem_events"
	case PhaseDrainMessages:
		return "drain_messages"
	case PhaseKickNuHookEval:
		return "kick_nu_hook_eval"
	case PhaseDrainScheduler:
		return "drain_scheduler"
	case PhaseDrainRuntimeWork:
		return "drain_runtime_work"
	default:
		return "unknown"
	}
}

// SubmitToken identifies one submitted event for correlation with a later
// directive's CauseSeq.
type SubmitToken uint64

// WorkScopeKind distinguishes globally-scoped runtime work from work tied
// to a specific Nu stop-propagation generation.
type WorkScopeKind uint8

const (
	ScopeGlobal WorkScopeKind = iota
	ScopeNuStop
)

// WorkScope tags queued runtime work so it can be selectively invalidated:
// incrementing the Nu stop generation and calling ClearRuntimeWorkScope
// drops every queued item whose scope matches the invalidated generation,
// without touching Global-scoped work.
type WorkScope struct {
	Kind WorkScopeKind
	Gen  uint64
}

// Global is the work scope for items that survive Nu stop-propagation.
var Global = WorkScope{Kind: ScopeGlobal}

// NuStopScope tags work belonging to Nu stop-propagation generation gen.
func NuStopScope(gen uint64) WorkScope { return WorkScope{Kind: ScopeNuStop, Gen: gen} }

// LoopDirective is the pump's single output per cycle: what the frontend
// should do before polling for the next event.
type LoopDirective struct {
	PollTimeout        time.Duration
	HasPollTimeout     bool
	NeedsRedraw        bool
	CursorStyle        string
	ShouldQuit         bool
	CauseSeq           uint64
	DrainedRuntimeWork int
	PendingEvents      int
}

// DrainPolicy bounds a drain_until_idle call.
type DrainPolicy struct {
	MaxDirectives     int
	MaxFrontendEvents int
	RunIdleMaintenance bool
}

// DrainReport summarizes a drain_until_idle call.
type DrainReport struct {
	Directives      []LoopDirective
	ReachedBudgetCap bool
}

// RoundReport records one round's phase outcomes, for diagnostics/tests.
type RoundReport struct {
	Phases       []Phase
	MadeProgress map[Phase]bool
}

// CycleReport summarizes one RunCycle call.
type CycleReport struct {
	Rounds          []RoundReport
	ReachedRoundCap bool
	ShouldQuit      bool
}
