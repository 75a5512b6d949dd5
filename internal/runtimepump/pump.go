package runtimepump

import (
	"fmt"
	"time"

	"github.com/xeno-editor/kernel/internal/klog"
)

// PhaseFunc runs one phase's work and reports whether it made progress.
// The pump recovers any panic from a PhaseFunc and treats it as a
// no-progress contract failure surfaced through the logger; the pump
// itself never panics on handler errors.
type PhaseFunc func() bool

// Phases wires the pump's first five fixed phases to concrete work (the
// sixth, DrainRuntimeWork, is always the pump's own work queue — see
// EnqueueRuntimeWork). A nil entry is treated as an always-no-progress
// no-op.
type Phases struct {
	UITickAndEditorTick PhaseFunc
	FilesystemEvents    PhaseFunc
	DrainMessages       PhaseFunc
	KickNuHookEval      PhaseFunc
	DrainScheduler      PhaseFunc
}

type runtimeWorkItem struct {
	scope WorkScope
	fn    func()
}

// Pump drives one editor's bounded-convergence cycle. The zero value is
// not usable; construct with New.
type Pump struct {
	phases      Phases
	log         *klog.Logger
	eventQueue  []any
	nextSeq     uint64
	workQueue   []runtimeWorkItem
	nuStopGen   uint64
	needsRedraw bool
	cursorStyle string
	shouldQuit  bool
	affinity    pumpGoroutineID
}

// New returns a Pump wired to phases, logging contract failures to log (a
// nil log uses klog.Nop()).
func New(phases Phases, log *klog.Logger) *Pump {
	if log == nil {
		log = klog.Nop()
	}
	return &Pump{phases: phases, log: log}
}

// SubmitEvent enqueues event for the next drain cycle and returns a token
// correlating it with the directive it eventually causes.
func (p *Pump) SubmitEvent(event any) SubmitToken {
	p.nextSeq++
	token := SubmitToken(p.nextSeq)
	p.eventQueue = append(p.eventQueue, event)
	return token
}

// EnqueueRuntimeWork adds fn to the runtime work queue under scope, to be
// drained by the DrainRuntimeWork phase.
func (p *Pump) EnqueueRuntimeWork(scope WorkScope, fn func()) {
	p.workQueue = append(p.workQueue, runtimeWorkItem{scope: scope, fn: fn})
}

// ClearRuntimeWorkScope drops every queued runtime work item tagged with
// NuStopScope(gen), used when Nu stop-propagation invalidates in-flight
// work belonging to a superseded generation.
func (p *Pump) ClearRuntimeWorkScope(gen uint64) {
	kept := p.workQueue[:0]
	for _, item := range p.workQueue {
		if item.scope.Kind == ScopeNuStop && item.scope.Gen == gen {
			continue
		}
		kept = append(kept, item)
	}
	p.workQueue = kept
}

// NuStopGeneration bumps and returns the current Nu stop-propagation
// generation; callers then enqueue new work under NuStopScope(gen) and/or
// call ClearRuntimeWorkScope on the prior generation.
func (p *Pump) NuStopGeneration() uint64 {
	p.nuStopGen++
	return p.nuStopGen
}

// runPhase invokes fn, recovering any panic and logging it as a contract
// failure rather than propagating it. A recovered panic counts as no
// progress.
func (p *Pump) runPhase(phase Phase, fn PhaseFunc) (madeProgress bool) {
	if fn == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Err().Err(fmt.Errorf("runtimepump: phase %s panicked: %v", phase, r)).Log("phase panic recovered")
			madeProgress = false
		}
	}()
	return fn()
}

func (p *Pump) drainRuntimeWorkPhase() int {
	drained := 0
	for len(p.workQueue) > 0 {
		item := p.workQueue[0]
		p.workQueue = p.workQueue[1:]
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Err().Err(fmt.Errorf("runtimepump: runtime work item panicked: %v", r)).Log("runtime work panic recovered")
				}
			}()
			item.fn()
		}()
		drained++
	}
	return drained
}

// RunCycle runs one bounded-convergence maintenance cycle: up to
// MaxPumpRounds rounds of the fixed six-phase sequence, stopping early if a
// round makes no progress, and yields the resulting LoopDirective.
func (p *Pump) RunCycle() (LoopDirective, CycleReport) {
	if !p.affinity.isPumpThread() {
		p.affinity.bind()
	}

	var report CycleReport
	totalDrained := 0

	for roundIdx := 0; roundIdx < MaxPumpRounds; roundIdx++ {
		round := RoundReport{MadeProgress: make(map[Phase]bool, 6)}

		progressed := false
		for _, step := range []struct {
			phase Phase
			fn    PhaseFunc
		}{
			{PhaseUITickAndEditorTick, p.phases.UITickAndEditorTick},
			{PhaseFilesystemEvents, p.phases.FilesystemEvents},
			{PhaseDrainMessages, p.phases.DrainMessages},
			{PhaseKickNuHookEval, p.phases.KickNuHookEval},
			{PhaseDrainScheduler, p.phases.DrainScheduler},
		} {
			round.Phases = append(round.Phases, step.phase)
			made := p.runPhase(step.phase, step.fn)
			round.MadeProgress[step.phase] = made
			progressed = progressed || made
		}

		round.Phases = append(round.Phases, PhaseDrainRuntimeWork)
		drained := p.drainRuntimeWorkPhase()
		totalDrained += drained
		madeFromQueue := drained > 0
		round.MadeProgress[PhaseDrainRuntimeWork] = madeFromQueue
		progressed = progressed || madeFromQueue

		report.Rounds = append(report.Rounds, round)

		if p.shouldQuit {
			report.ShouldQuit = true
			break
		}

		lastRound := roundIdx+1 == MaxPumpRounds
		if progressed && lastRound {
			report.ReachedRoundCap = true
		}
		if !progressed || lastRound {
			break
		}
	}

	directive := p.finalizeDirective(report.ShouldQuit, totalDrained)
	return directive, report
}

func (p *Pump) finalizeDirective(shouldQuit bool, drained int) LoopDirective {
	if shouldQuit {
		return LoopDirective{
			HasPollTimeout:     false,
			NeedsRedraw:        true,
			CursorStyle:        p.cursorStyle,
			ShouldQuit:         true,
			DrainedRuntimeWork: drained,
			PendingEvents:      len(p.eventQueue),
		}
	}

	timeout, has := PollTimeoutFor(p.needsRedraw)
	return LoopDirective{
		PollTimeout:        timeout,
		HasPollTimeout:     has,
		NeedsRedraw:        p.needsRedraw,
		CursorStyle:        p.cursorStyle,
		ShouldQuit:         false,
		CauseSeq:           p.nextSeq,
		DrainedRuntimeWork: drained,
		PendingEvents:      len(p.eventQueue),
	}
}

// SetNeedsRedraw lets phase callbacks (wired externally) flag that the
// frontend must redraw before the next poll.
func (p *Pump) SetNeedsRedraw(v bool) { p.needsRedraw = v }

// SetCursorStyle lets phase callbacks set the cursor style the frontend
// must render.
func (p *Pump) SetCursorStyle(style string) { p.cursorStyle = style }

// RequestQuit marks the pump to exit on the next cycle boundary.
func (p *Pump) RequestQuit() { p.shouldQuit = true }

// IsPumpThread reports whether the caller is running on the goroutine
// that last drove RunCycle, letting callers outside the pump (e.g. a
// message-channel reader) decide whether they can safely touch pump state
// directly or must hand off through SubmitEvent instead.
func (p *Pump) IsPumpThread() bool { return p.affinity.isPumpThread() }

// PollDirective drains one event (if any are queued) and runs one cycle,
// returning the resulting directive, or nil if there is nothing to do and
// no redraw is pending.
func (p *Pump) PollDirective() *LoopDirective {
	if len(p.eventQueue) == 0 && !p.needsRedraw && len(p.workQueue) == 0 {
		return nil
	}
	if len(p.eventQueue) > 0 {
		p.eventQueue = p.eventQueue[1:]
	}
	directive, _ := p.RunCycle()
	return &directive
}

// DrainUntilIdle consumes queued events up to policy.MaxFrontendEvents,
// emitting one directive per consumed event, then (if permitted and
// capacity remains) runs one idle-maintenance cycle. It caps total
// directives at policy.MaxDirectives.
func (p *Pump) DrainUntilIdle(policy DrainPolicy) DrainReport {
	var report DrainReport

	eventsConsumed := 0
	for len(p.eventQueue) > 0 {
		if eventsConsumed >= policy.MaxFrontendEvents || len(report.Directives) >= policy.MaxDirectives {
			report.ReachedBudgetCap = len(p.eventQueue) > 0
			return report
		}
		p.eventQueue = p.eventQueue[1:]
		eventsConsumed++
		directive, _ := p.RunCycle()
		report.Directives = append(report.Directives, directive)
		if directive.ShouldQuit {
			return report
		}
	}

	if policy.RunIdleMaintenance && len(report.Directives) < policy.MaxDirectives {
		directive, _ := p.RunCycle()
		report.Directives = append(report.Directives, directive)
	}

	if len(p.eventQueue) > 0 {
		report.ReachedBudgetCap = true
	}
	return report
}

// PollTimeoutFor returns the poll timeout for the current redraw/mode
// state: ~16ms when a redraw is pending, ~50ms otherwise.
func PollTimeoutFor(needsRedrawOrResponsive bool) (timeout time.Duration, has bool) {
	if needsRedrawOrResponsive {
		return 16 * time.Millisecond, true
	}
	return 50 * time.Millisecond, true
}
