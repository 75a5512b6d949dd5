// Package kernel assembles the editor kernel's subsystems into a single
// runnable unit: the runtime pump driving its fixed phase order, the
// broker routing service, the shared-state manager, the syntax manager
// policy, LSP sync manager, execution gate, and hook registry. This is the
// composition root cmd/xeno-kerneld drives; no subsystem here imports
// another kernel subsystem's internals beyond what their own public APIs
// expose.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xeno-editor/kernel/internal/broker"
	"github.com/xeno-editor/kernel/internal/document"
	"github.com/xeno-editor/kernel/internal/execgate"
	"github.com/xeno-editor/kernel/internal/hookrt"
	"github.com/xeno-editor/kernel/internal/klog"
	"github.com/xeno-editor/kernel/internal/lspsync"
	"github.com/xeno-editor/kernel/internal/rope"
	"github.com/xeno-editor/kernel/internal/runtimepump"
	"github.com/xeno-editor/kernel/internal/sharedstate"
	"github.com/xeno-editor/kernel/internal/syntaxmgr"
	"github.com/xeno-editor/kernel/internal/wire"
)

// ErrEditBlocked is returned by ApplyEdit when the shared-state manager
// reports the document's uri as currently edit-blocked (no shared-state
// entry for it, or a role other than owner).
var ErrEditBlocked = errors.New("kernel: edit blocked by shared-state role/lock")

// localSessionID is the kernel's own broker session id. A standalone
// kernel process is, from the broker's point of view, a single attached
// (and leader) session; a future multi-client deployment would allocate
// one SessionID per attached frontend instead of this constant.
const localSessionID = wire.SessionID(1)

// backgroundSessionID is a second session the kernel attaches to its own
// broker server for the background scheduler's own use, distinct from
// localSessionID's interactive/leader attachment. This mirrors the
// execution gate's interactive/background split at the routing layer too:
// background parse work gets its own responder identity for s2c round
// trips instead of contending with (or masquerading as) the interactive
// session.
const backgroundSessionID = wire.SessionID(2)

// maxConsecutiveFlushFailures is how many back-to-back LspDocUpdate
// rejections drainLSPFlushPhase tolerates before treating the attached
// server as crashed and cycling it, matching an editor's usual
// detect-a-dead-language-server-by-repeated-failed-requests heuristic.
const maxConsecutiveFlushFailures = 3

// maxLSPFlushDocsPerTick bounds how many due documents one
// drainLSPFlushPhase pass will flush, so a burst of edits across many
// buffers cannot monopolize a pump round; the rest stay due and are
// picked up next cycle.
const maxLSPFlushDocsPerTick = 8

// Config bounds the tunables an operator (or cmd/xeno-kerneld's flags) may
// set when assembling a Kernel. Zero values fall back to defaults, in the
// same style as longpoll.ChannelConfig/microbatch.BatcherConfig.
type Config struct {
	LSPDebounce    time.Duration
	LSPEncoding    lspsync.Encoding
	HookFastBudget hookrt.Budget
	HookSlowBudget hookrt.Budget
	// Parser is the syntax manager's incremental/full parse backend. A nil
	// Parser falls back to textParser, which always succeeds without
	// performing any real parse (grammar integration is out of kernel
	// scope; see DESIGN.md).
	Parser syntaxmgr.Parser
}

// Kernel owns every kernel subsystem for one editor process.
type Kernel struct {
	Log         *klog.Logger
	Pump        *runtimepump.Pump
	Gate        *execgate.Gate
	Documents   *document.Registry
	Syntax      *syntaxmgr.Manager
	LSP         *lspsync.Manager
	Broker      *broker.Service
	SharedState *sharedstate.Manager
	Hooks       *hookrt.Registry
	HookQueue   *hookrt.Queue

	fastBudget   hookrt.Budget
	slowBudget   hookrt.Budget
	syntaxPolicy syntaxmgr.Policy
	parser       syntaxmgr.Parser

	serverID  wire.ServerID
	sessionID wire.SessionID

	flushFailures int
	changeSeq     uint64
}

// bufferEventCtx is the ctx payload hookrt handlers receive for
// buffer-scoped lifecycle events (open/change/close). Seq is non-nil only
// for the mutable EventBufferChange emission, letting a Mutable handler
// record the kernel's running change counter with exclusive access.
type bufferEventCtx struct {
	Buf document.BufferID
	Doc rope.DocID
	URI string
	Seq *uint64
}

// New assembles a Kernel from cfg, starting the broker's actor goroutine
// bound to ctx, registering the kernel's own session as the leader
// attachment of a fresh broker server record, and attaching a second
// background session to the same server for the scheduler's own s2c
// traffic.
func New(ctx context.Context, cfg Config, log *klog.Logger) *Kernel {
	if log == nil {
		log = klog.Default()
	}

	debounce := cfg.LSPDebounce
	if debounce <= 0 {
		debounce = 80 * time.Millisecond
	}
	encoding := cfg.LSPEncoding
	if encoding == 0 {
		encoding = lspsync.EncodingUTF16
	}
	fastBudget := cfg.HookFastBudget
	if fastBudget == (hookrt.Budget{}) {
		fastBudget = hookrt.FastBudget
	}
	slowBudget := cfg.HookSlowBudget
	if slowBudget == (hookrt.Budget{}) {
		slowBudget = hookrt.SlowBudget
	}
	parser := cfg.Parser
	if parser == nil {
		parser = textParser{}
	}
	policy := syntaxmgr.DefaultPolicy()

	k := &Kernel{
		Log:          log,
		Gate:         execgate.New(),
		Documents:    document.NewRegistry(),
		Syntax:       syntaxmgr.New(policy),
		LSP:          lspsync.New(debounce, encoding, map[time.Duration]int{time.Second: 1}),
		Broker:       broker.NewService(ctx),
		SharedState:  sharedstate.New(),
		Hooks:        hookrt.NewRegistry(),
		HookQueue:    hookrt.NewQueue(),
		fastBudget:   fastBudget,
		slowBudget:   slowBudget,
		syntaxPolicy: policy,
		parser:       parser,
		sessionID:    localSessionID,
	}

	k.serverID = k.Broker.LspStart(k.sessionID)
	k.Broker.BeginC2S(k.serverID, backgroundSessionID)
	k.registerDefaultHooks()

	k.Pump = runtimepump.New(runtimepump.Phases{
		DrainMessages:  k.drainLSPFlushPhase,
		KickNuHookEval: k.drainHookQueuePhase,
		DrainScheduler: k.drainSchedulerPhase,
	}, log)

	k.Hooks.EmitSyncWith(hookrt.EventEditorStart, struct{}{}, k.HookQueue)

	return k
}

// registerDefaultHooks wires the kernel's own structured-logging handler
// onto every lifecycle event, so the hook registry always has at least
// one real (not test-only) registrant; embedding code may register
// additional handlers on k.Hooks freely.
func (k *Kernel) registerDefaultHooks() {
	k.Hooks.RegisterImmutable(hookrt.EventEditorStart, 0, func(any) hookrt.Action {
		k.Log.Info().Log("editor_start")
		return hookrt.Done(hookrt.Continue)
	})
	k.Hooks.RegisterImmutable(hookrt.EventEditorQuit, 0, func(any) hookrt.Action {
		k.Log.Info().Log("editor_quit")
		return hookrt.Done(hookrt.Continue)
	})
	k.Hooks.RegisterImmutable(hookrt.EventBufferOpen, 0, func(ctx any) hookrt.Action {
		if c, ok := ctx.(bufferEventCtx); ok {
			k.Log.Info().Str("uri", c.URI).Log("buffer_open")
		}
		return hookrt.Done(hookrt.Continue)
	})
	k.Hooks.RegisterImmutable(hookrt.EventBufferChange, 0, func(ctx any) hookrt.Action {
		if c, ok := ctx.(bufferEventCtx); ok {
			k.Log.Debug().Str("uri", c.URI).Log("buffer_change")
		}
		return hookrt.Done(hookrt.Continue)
	})
	k.Hooks.RegisterImmutable(hookrt.EventBufferClose, 0, func(ctx any) hookrt.Action {
		if c, ok := ctx.(bufferEventCtx); ok {
			k.Log.Info().Str("uri", c.URI).Log("buffer_close")
		}
		return hookrt.Done(hookrt.Continue)
	})
	k.Hooks.RegisterMutable(hookrt.EventBufferChange, 0, func(ctx any) hookrt.Action {
		if c, ok := ctx.(*bufferEventCtx); ok && c.Seq != nil {
			*c.Seq++
		}
		return hookrt.Done(hookrt.Continue)
	})
}

// drainHookQueuePhase is wired as the pump's KickNuHookEval phase: it
// drains the hook queue under the kernel's current responsiveness budget,
// reporting whether any completion ran (so the pump round correctly
// counts it as progress).
func (k *Kernel) drainHookQueuePhase() bool {
	budget := k.slowBudget
	if k.Gate.IsInteractiveActive() {
		budget = k.fastBudget
	}
	report := k.HookQueue.DrainBudget(budget, time.Now)
	return report.Completed > 0
}

// drainLSPFlushPhase is wired as the pump's DrainMessages phase: it flushes
// every document whose debounce window has elapsed, routing the resulting
// notification through the broker's text-sync gate before considering it
// sent. A server-side transport is outside kernel scope, so a Forward
// or silent-drop decision is treated as a successful send and only a
// RejectNotOwner decision forces the usual fallback/backoff path lspsync
// already implements.
//
// maxConsecutiveFlushFailures worth of back-to-back rejections is treated
// as the attached language server having crashed: the phase reports the
// loss to the broker (SessionLost, then ServerExited to drop its pending
// work) and respawns a fresh server record via LspStart, the same recovery
// an editor performs when it detects a dead language server and restarts
// it under a new process.
func (k *Kernel) drainLSPFlushPhase() bool {
	now := time.Now()
	progressed := false

	due := k.LSP.DueURIs(now)
	if len(due) > maxLSPFlushDocsPerTick {
		due = due[:maxLSPFlushDocsPerTick]
	}
	for _, uri := range due {
		batch, ok := k.LSP.BeginFlush(uri)
		if !ok {
			continue
		}
		progressed = true

		decision := k.Broker.LspDocUpdate(k.serverID, k.sessionID, uri, uint32(batch.Generation))
		var err error
		if decision == broker.RejectNotOwner {
			err = fmt.Errorf("kernel: %s is not owned by this session", uri)
		}
		k.LSP.CompleteFlush(uri, batch.Generation, now, err)

		if err != nil {
			k.flushFailures++
			if k.flushFailures >= maxConsecutiveFlushFailures {
				k.respawnServer()
			}
		} else {
			k.flushFailures = 0
		}
	}

	return progressed
}

// respawnServer treats the currently attached server as crashed: it
// reports the loss to the broker, tears the dead record down entirely,
// and registers a fresh server record under the same leader/background
// sessions. Every live file-backed document is re-opened on the fresh
// server and flagged for a full sync, since the new server shares no
// text-sync state with the dead one.
func (k *Kernel) respawnServer() {
	k.Broker.SessionLost(k.serverID, k.sessionID)
	k.Broker.ServerExited(k.serverID)
	k.Broker.TerminateAll(k.serverID)
	k.flushFailures = 0
	k.serverID = k.Broker.LspStart(k.sessionID)
	k.Broker.BeginC2S(k.serverID, backgroundSessionID)
	for _, uri := range k.Documents.URIs() {
		k.Broker.LspDocOpen(k.serverID, k.sessionID, uri, 0)
		k.LSP.ForceFullSync(uri)
	}
}

// drainSchedulerPhase is wired as the pump's DrainScheduler phase: it
// retries any pending incremental-sync windows in the background, starts
// and completes background parses for documents whose debounce/cooldown
// has elapsed, evicts trees per retention policy, and drains any
// shared-state edit/undo/redo requests that were queued behind an
// in-flight one. Background parse work runs inside an open background
// scope so the execution gate never lets it race an interactive edit.
func (k *Kernel) drainSchedulerPhase() bool {
	now := time.Now()
	progressed := false

	for _, id := range k.Syntax.PendingDocs() {
		doc, ok := k.Documents.Document(id)
		if !ok {
			continue
		}
		scope := k.Gate.OpenBackgroundScope()
		installed := k.Syntax.TryCatchUp(id, doc.Text(), doc.Version(), k.parser)
		scope.Close()
		progressed = progressed || installed
	}

	for _, id := range k.Syntax.SchedulableDocs(now) {
		if !k.Syntax.StartParse(id) {
			continue
		}
		doc, ok := k.Documents.Document(id)
		if !ok {
			k.Syntax.OnParseError(id, now)
			continue
		}

		slot, _ := k.Syntax.Get(id)
		cfg := k.syntaxPolicy.Cfg(slot.Tier)

		// The background parse round trip is routed through the broker's
		// s2c plumbing under backgroundSessionID, standing in for the
		// request/response a real out-of-process grammar backend would
		// need (e.g. a semantic-tokens refresh) even though this kernel's
		// parser runs in-process; CompleteS2C/CancelS2C deliver to the
		// reply channel synchronously since nothing else observes it.
		wid, _ := k.Broker.BeginS2C(k.serverID, backgroundSessionID)

		scope := k.Gate.OpenBackgroundScope()
		text := doc.Text()
		version := doc.Version()
		ok2, partial, err := k.parser.TryParseIncremental(nil, text, rope.Transaction{}, cfg.ParseTimeout)
		scope.Close()

		switch {
		case err != nil:
			k.Broker.CancelS2C(k.serverID, wid)
			k.Syntax.OnParseError(id, now)
		case !ok2:
			k.Broker.CancelS2C(k.serverID, wid)
			k.Syntax.OnParseTimeout(id, now)
		default:
			k.Broker.CompleteS2C(k.serverID, wid, nil, nil)
			if k.Syntax.CompleteParse(id, version, version, version, partial) {
				progressed = true
			}
		}
	}

	if dropped := k.Syntax.RetentionSweep(now); len(dropped) > 0 {
		progressed = true
	}

	for _, req := range k.SharedState.DrainPendingEditRequests() {
		id, ok := k.Documents.DocByURI(req.URI)
		if !ok {
			continue
		}
		doc, ok := k.Documents.Document(id)
		if !ok {
			continue
		}
		k.ackSharedApply(req, doc.Text())
		progressed = true
	}

	return progressed
}

// ackSharedApply simulates the broker authority's acknowledgment of req
// against newText, advancing the shared-state fingerprint on a match or
// forcing a resync repair on a mismatch. A standalone kernel is its own
// sole collaborator, so req's base is always current by construction;
// this still routes through the real HandleApplyAck/Resync precondition
// checks rather than assuming success, so a future remote broker slots in
// without changing this call site.
func (k *Kernel) ackSharedApply(req *wire.SharedApply, newText []rune) {
	hash64, lenChars := fingerprint(newText)
	seq := req.BaseSeq + 1
	if _, ok := k.SharedState.HandleApplyAck(req.URI, req.Epoch, seq, req.Tx, hash64, lenChars); !ok {
		k.SharedState.Resync(req.URI, req.Epoch, seq, hash64, lenChars, string(newText))
	}
}

// ChangeCount returns the number of buffer-change events the mutable hook
// path has recorded so far, for diagnostics/telemetry callers.
func (k *Kernel) ChangeCount() uint64 { return k.changeSeq }

// RunOnce drives a single pump cycle, for callers that own their own
// outer loop (e.g. driven by a frontend's input poll).
func (k *Kernel) RunOnce() runtimepump.LoopDirective {
	directive, _ := k.Pump.RunCycle()
	return directive
}

// Shutdown tears down every server the broker still tracks, cancelling
// their in-flight requests, unregisters the kernel's own session, and
// disables shared-state editing.
func (k *Kernel) Shutdown() {
	k.Hooks.EmitSyncWith(hookrt.EventEditorQuit, struct{}{}, k.HookQueue)
	k.Broker.TerminateAll(k.serverID)
	k.Broker.SessionExited(k.sessionID)
	k.Broker.SessionExited(backgroundSessionID)
	k.SharedState.DisableAll()
}

// OpenFile opens uri (empty for a scratch buffer) with initial content,
// registering it with the document registry, the broker's text-sync gate,
// and the shared-state manager as a solo-owned document, and returns the
// new Document and its first Buffer. The new document starts out Visible,
// since opening a file is, in a single-pane terminal editor, the same
// moment it becomes the active view.
func (k *Kernel) OpenFile(uri, initial string) (*document.Document, document.BufferID) {
	doc, buf := k.Documents.OpenDocument(uri, initial)
	if uri != "" {
		hash64, lenChars := fingerprint(doc.Text())
		k.SharedState.Open(uri, sharedstate.RoleOwner, 0, 0, hash64, lenChars)
		k.SharedState.Focus(sharedstate.FocusRequest{
			URI:            uri,
			Focused:        true,
			ClientHash64:   &hash64,
			ClientLenChars: &lenChars,
		}, func() string { return string(doc.Text()) })
		k.Broker.LspDocOpen(k.serverID, k.sessionID, uri, 0)
	}
	k.Syntax.SetHotness(doc.ID(), len(string(doc.Text())), syntaxmgr.Visible, time.Now())
	k.Hooks.EmitSyncWith(hookrt.EventBufferOpen, bufferEventCtx{Buf: buf, Doc: doc.ID(), URI: uri}, k.HookQueue)
	return doc, buf
}

// SetBufferHotness updates the syntax scheduler's visibility class for
// buf's document across the Visible/Warm/Cold classes: a frontend
// calls this as the user switches panes/tabs or a buffer scrolls off
// screen, so the background scheduler can deprioritize (or stop
// reparsing) documents nobody is looking at.
func (k *Kernel) SetBufferHotness(buf document.BufferID, hotness syntaxmgr.Hotness) bool {
	b, ok := k.Documents.Buffer(buf)
	if !ok {
		return false
	}
	doc, ok := k.Documents.Document(b.Doc)
	if !ok {
		return false
	}
	k.Syntax.SetHotness(doc.ID(), len(string(doc.Text())), hotness, time.Now())
	return true
}

// CloseBuffer closes buf, and when that was the document's last buffer,
// forgets the document from every subsystem that tracks it by DocID/uri.
func (k *Kernel) CloseBuffer(buf document.BufferID) bool {
	uri, hadURI, docID := "", false, rope.DocID(0)
	if b, ok := k.Documents.Buffer(buf); ok {
		docID = b.Doc
		if u, ok := k.Documents.URI(b.Doc); ok {
			uri, hadURI = u, u != ""
		}
	}

	closedDoc, docClosed, ok := k.Documents.CloseBuffer(buf)
	if !ok {
		return false
	}
	if docClosed {
		k.Syntax.ForgetDoc(closedDoc)
		if hadURI {
			k.LSP.ForgetDoc(uri)
			k.SharedState.Close(uri)
			k.Broker.LspDocClose(k.serverID, k.sessionID, uri)
		}
	}
	k.Hooks.EmitSyncWith(hookrt.EventBufferClose, bufferEventCtx{Buf: buf, Doc: docID, URI: uri}, k.HookQueue)
	return true
}

// ApplyEdit applies tx (with precomputed inverse) to the document viewed
// by buf, refusing the edit if shared-state reports the document's uri as
// currently edit-blocked. On success it advances the
// buffer's view state, attempts a synchronous incremental reparse,
// prepares (and loopback-acknowledges) the shared-state mutation, and
// feeds the change into the LSP sync debounce window for file-backed
// documents. The whole call runs inside an interactive guard, so the
// execution gate holds background work off the document until it
// completes.
func (k *Kernel) ApplyEdit(buf document.BufferID, tx, inverse rope.Transaction, after document.Selection, scrollOffset int, newGroup bool) (uint64, error) {
	guard := k.Gate.EnterInteractive()
	defer guard.Close()

	b, ok := k.Documents.Buffer(buf)
	if !ok {
		return 0, errors.New("kernel: unknown buffer")
	}
	doc, ok := k.Documents.Document(b.Doc)
	if !ok {
		return 0, errors.New("kernel: unknown document")
	}
	uri, _ := k.Documents.URI(b.Doc)
	if uri != "" && k.SharedState.IsEditBlocked(uri) {
		return doc.Version(), ErrEditBlocked
	}

	before := b.ViewState()
	oldText := doc.Text()
	expected := doc.Version()
	newVersion, err := doc.Apply(expected, tx, inverse, before, document.ViewState{Selection: after, ScrollOffset: scrollOffset}, newGroup)
	if err != nil {
		return newVersion, err
	}

	b.Selection = after
	b.ScrollOffset = scrollOffset

	newText := doc.Text()
	k.Syntax.NoteEditIncremental(b.Doc, len(string(newText)), newVersion, oldText, newText, tx, syntaxmgr.SourceUser, k.parser)
	if uri != "" {
		k.LSP.NoteChange(uri, oldText, newText, tx, time.Now())
		if req := k.SharedState.PrepareEdit(uri, wire.ToWire(tx), newGroup); req != nil {
			k.ackSharedApply(req, newText)
		}
	}
	k.Hooks.EmitSyncWith(hookrt.EventBufferChange, bufferEventCtx{Buf: buf, Doc: b.Doc, URI: uri}, k.HookQueue)
	k.Hooks.EmitMutableWith(hookrt.EventBufferChange, &bufferEventCtx{Buf: buf, Doc: b.Doc, URI: uri, Seq: &k.changeSeq}, k.HookQueue)
	return newVersion, nil
}

// Undo reverts the most recent undo group on buf's document, restoring
// the buffer's view state and notifying the syntax scheduler of a
// history-sourced edit (which always bypasses debounce).
func (k *Kernel) Undo(buf document.BufferID) bool {
	return k.undoRedo(buf, true)
}

// Redo re-applies the most recently undone group on buf's document.
func (k *Kernel) Redo(buf document.BufferID) bool {
	return k.undoRedo(buf, false)
}

func (k *Kernel) undoRedo(buf document.BufferID, undo bool) bool {
	guard := k.Gate.EnterInteractive()
	defer guard.Close()

	b, ok := k.Documents.Buffer(buf)
	if !ok {
		return false
	}
	doc, ok := k.Documents.Document(b.Doc)
	if !ok {
		return false
	}
	uri, _ := k.Documents.URI(b.Doc)
	if uri != "" && k.SharedState.IsEditBlocked(uri) {
		return false
	}

	oldText := doc.Text()
	var (
		view document.ViewState
		done bool
	)
	if undo {
		_, view, done = doc.Undo()
	} else {
		_, view, done = doc.Redo()
	}
	if !done {
		return false
	}

	b.RestoreViewState(view)
	newText := doc.Text()
	// doc.Undo/Redo returns only the group's last step's (inverse or
	// forward) transaction, which does not by itself transform oldText
	// into newText when the group spans more than one step; the direct
	// delta between the two full-text snapshots is always correct
	// regardless of group size.
	delta := rope.Delta(oldText, newText)
	k.Syntax.NoteEditIncremental(b.Doc, len(string(newText)), doc.Version(), oldText, newText, delta, syntaxmgr.SourceHistory, k.parser)
	if uri != "" {
		k.LSP.NoteChange(uri, oldText, newText, delta, time.Now())

		var req *wire.SharedApply
		if undo {
			req = k.SharedState.PrepareUndo(uri)
		} else {
			req = k.SharedState.PrepareRedo(uri)
		}
		if req != nil {
			k.ackSharedApply(req, newText)
		}
	}
	k.Hooks.EmitSyncWith(hookrt.EventBufferChange, bufferEventCtx{Buf: buf, Doc: b.Doc, URI: uri}, k.HookQueue)
	k.Hooks.EmitMutableWith(hookrt.EventBufferChange, &bufferEventCtx{Buf: buf, Doc: b.Doc, URI: uri, Seq: &k.changeSeq}, k.HookQueue)
	return true
}
