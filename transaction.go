// This file is part of Interject project, available at https://github.com/qrdl/interject
// Copyright (c) 2025-2026 Ilya Caramishev. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at https://www.apache.org/licenses/LICENSE-2.0
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux && (amd64 || arm64)

package interject

import (
	"runtime"
	"runtime/debug"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

type txnState int

const (
	txnInitialized txnState = iota
	txnPrepared
	txnCommitted
	txnRolledBack
)

type patchCommand int

const (
	patchApply patchCommand = iota
	patchRestore
)

/*
Builder accumulates bindings for a transaction. Each binding is a symbol
name, the absolute address of the replacement function, and an optional
out-pointer that receives the address of a trampoline holding the original
prologue.

Build moves the accumulated bindings into the transaction; the builder is
spent afterwards and panics on further use.
*/
type Builder struct {
	names     []string
	hooks     []uintptr
	trampPtrs []*uintptr
	spent     bool
}

// NewBuilder returns an empty transaction builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends one binding. trampoline may be nil when the caller does not
// need to invoke the original function.
func (b *Builder) Add(name string, hook uintptr, trampoline *uintptr) *Builder {
	if b.spent {
		panic("Add() called on a spent builder")
	}
	b.names = append(b.names, name)
	b.hooks = append(b.hooks, hook)
	b.trampPtrs = append(b.trampPtrs, trampoline)
	return b
}

// Build produces the transaction and spends the builder.
func (b *Builder) Build() *Transaction {
	if b.spent {
		panic("Build() called on a spent builder")
	}
	b.spent = true

	txn := &Transaction{
		names:     b.names,
		hooks:     b.hooks,
		trampPtrs: b.trampPtrs,
	}
	b.names, b.hooks, b.trampPtrs = nil, nil, nil
	return txn
}

/*
Transaction installs a set of function patches atomically: either every hook
is installed, or none is. The state machine is

	Initialized -> Prepared -> Committed -> Rolled-Back
	                       \-> Rolled-Back (valid no-op, nothing written yet)

and every other transition returns [ErrInvalidState] without side effect.

A transaction is not safe for concurrent use, and two transactions must not
run concurrently in one process.
*/
type Transaction struct {
	state     txnState
	names     []string
	hooks     []uintptr
	trampPtrs []*uintptr

	descriptors []symbolDescriptor
	snapshots   [][]byte
	trampolines []*Trampoline
	pageAddrs   []uintptr
	pagePerms   map[uintptr]int
}

/*
Prepare resolves every binding, analyzes each target prologue, captures the
bytes needed for rollback and records the protection bits of every affected
page. No process memory is modified; on any failure the transaction stays
in its initial state and can be prepared again.
*/
func (t *Transaction) Prepare() error {
	if t.state != txnInitialized {
		return ErrInvalidState
	}

	log := engineLogger()

	descriptors, err := lookupSymbols(t.names)
	if err != nil {
		return errors.Wrapf(ErrUnexpected, "resolving symbols: %v", err)
	}

	ok := false
	t.descriptors = descriptors
	defer func() {
		if !ok {
			t.releaseArtifacts()
		}
	}()

	for i := range t.descriptors {
		if t.descriptors[i].addr == 0 {
			return errors.Wrapf(ErrSymbolNotFound, "symbol %s", t.names[i])
		}
	}

	var memMap MemoryMap
	if err := memMap.Load(); err != nil {
		return errors.Wrapf(ErrUnexpected, "loading memory map: %v", err)
	}

	t.snapshots = make([][]byte, len(t.descriptors))
	t.trampolines = make([]*Trampoline, len(t.descriptors))
	t.pagePerms = make(map[uintptr]int)

	for i := range t.descriptors {
		descriptor := &t.descriptors[i]

		if JumpPatchSize > descriptor.size {
			return errors.Wrapf(ErrFunctionBodyTooSmall,
				"symbol %s is %d bytes, patch needs %d", t.names[i], descriptor.size, JumpPatchSize)
		}

		copyLen, relocatable := analyzePrologue(descriptor.addr, descriptor.size, JumpPatchSize)
		snapshot := make([]byte, copyLen)
		readCode(descriptor.addr, snapshot)
		t.snapshots[i] = snapshot
		log.Debugf("%s: snapshot of %d bytes at %#x (relocatable %v)",
			t.names[i], copyLen, descriptor.addr, relocatable)

		if t.trampPtrs[i] != nil {
			if !relocatable {
				return errors.Wrapf(ErrTrampolineCreation,
					"prologue of %s contains a PC-relative branch or undecodable bytes", t.names[i])
			}
			trampoline, err := newTrampoline(snapshot)
			if err != nil {
				return errors.Wrapf(ErrTrampolineCreation, "%s: %v", t.names[i], err)
			}
			t.trampolines[i] = trampoline
			*t.trampPtrs[i] = trampoline.Addr()
		}

		firstPage, span := pageSpan(descriptor.addr, uintptr(descriptor.size))
		for page := firstPage; page < firstPage+span; page += pageSize {
			if _, present := t.pagePerms[page]; present {
				continue
			}
			region := memMap.Find(page)
			if region == nil {
				return errors.Wrapf(ErrSymbolNotFound,
					"page %#x of symbol %s is not mapped", page, t.names[i])
			}
			t.pagePerms[page] = region.Perms
			t.pageAddrs = append(t.pageAddrs, page)
		}
	}

	ok = true
	t.state = txnPrepared
	return nil
}

/*
Commit installs every patch. Peer threads are halted one at a time and their
backtraces inspected; no byte is written while any thread's instruction
pointer chain intersects a patch range. On failure nothing has been patched
and all page protections are back to their pre-commit values.
*/
func (t *Transaction) Commit() error {
	if t.state != txnPrepared {
		return ErrInvalidState
	}

	if err := t.patch(patchApply); err != nil {
		engineLogger().Debugf("commit failed: %v", err)
		return err
	}
	t.state = txnCommitted
	return nil
}

/*
Rollback restores the original prologues after a successful Commit. Called
on a transaction that is only Prepared it is a valid no-op: nothing has been
written yet, so there is nothing to restore.
*/
func (t *Transaction) Rollback() error {
	switch t.state {
	case txnPrepared:
		t.state = txnRolledBack
		return nil
	case txnCommitted:
		if err := t.patch(patchRestore); err != nil {
			engineLogger().Debugf("rollback failed: %v", err)
			return err
		}
		t.state = txnRolledBack
		return nil
	default:
		return ErrInvalidState
	}
}

/*
Close releases the transaction's artifacts: trampolines are unmapped and
module references dropped. After Close any trampoline address handed out
during Prepare is invalid.

Close never touches patched code. A transaction that was committed and not
rolled back must be kept alive (not Closed) for the life of the process:
its module references are what keeps the patched code mapped. Close is
idempotent.
*/
func (t *Transaction) Close() {
	t.releaseArtifacts()
}

func (t *Transaction) releaseArtifacts() {
	for _, trampoline := range t.trampolines {
		if trampoline != nil {
			if err := trampoline.Close(); err != nil {
				engineLogger().Warnf("failed to unmap trampoline: %v", err)
			}
		}
	}
	t.trampolines = nil

	for i := range t.descriptors {
		t.descriptors[i].close()
	}
	t.descriptors = nil
	t.snapshots = nil
	t.pageAddrs = nil
	t.pagePerms = nil
}

// isPatchTarget reports whether addr lies inside any patch range, the byte
// interval a peer thread must not be executing within.
func (t *Transaction) isPatchTarget(addr uintptr) bool {
	for i := range t.descriptors {
		start := t.descriptors[i].addr
		if addr >= start && addr < start+JumpPatchSize {
			return true
		}
	}
	return false
}

// patch is the single code path behind Commit and Rollback, parameterized
// by direction. It runs the three-phase protocol: make pages writable,
// quiesce every peer thread outside the patch ranges, write the new bytes.
//
// From the first successful sigqueue until the deferred exit-event sweep no
// heap allocation may occur on this path: a halted thread may hold the
// allocator's locks. Everything Phase C needs is allocated up front, and
// failures inside the halt loop surface as bare sentinel errors.
func (t *Transaction) patch(cmd patchCommand) error {
	// The protocol relies on this goroutine staying one kernel task, both
	// for self-identification and because a halted peer may be the runtime's
	// only other runnable thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// A garbage-collection stop-the-world cannot complete while peers sit
	// blocked in the signal handler, so collection is held off for the
	// duration of the protocol.
	gcPercent := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	log := engineLogger()

	// Phase B resources are allocated before Phase A starts mutating
	// protections, so nothing needs allocating once peers are being halted.
	tids, err := threadIDs()
	if err != nil {
		return errors.Wrapf(ErrUnexpected, "enumerating threads: %v", err)
	}

	tcbs, err := allocThreadControls(len(tids))
	if err != nil {
		return errors.Wrapf(ErrUnexpected, "%v", err)
	}
	defer freeThreadControls(tcbs)

	var action signalAction
	actionInstalled := false
	defer func() {
		if !actionInstalled {
			return
		}
		if err := action.restore(); err != nil {
			log.Warnf("%v", err)
		}
	}()

	// Phase A - raise WRITE on every recorded page. The guard restores the
	// exact original bits on success and on every failure path.
	pagesTouched := false
	defer func() {
		if !pagesTouched {
			return
		}
		for _, page := range t.pageAddrs {
			if err := protectPage(page, t.pagePerms[page]); err != nil {
				// secondary failure; the primary result is already decided
				log.Warnf("failed to restore permissions on page %#x: %v", page, err)
			}
		}
	}()

	for _, page := range t.pageAddrs {
		pagesTouched = true
		if err := protectPage(page, t.pagePerms[page]|unix.PROT_WRITE); err != nil {
			return errors.Wrapf(ErrMemoryProtection, "page %#x: %v", page, err)
		}
	}

	// Phase B - quiesce peers. Whatever happens from here on, no halted
	// handler is left blocked: this guard runs before the page and action
	// guards above.
	defer func() {
		for i := range tcbs {
			tcbs[i].exit().set()
		}
	}()

	if err := action.install(); err != nil {
		return errors.Wrapf(ErrSignalAction, "%v", err)
	}
	actionInstalled = true

	self := unix.Gettid()
	for i, tid := range tids {
		if tid == self {
			// the thread running the protocol cannot be executing a patch range
			continue
		}
		if err := t.haltPeer(tid, &tcbs[i]); err != nil {
			return err
		}
	}

	// Phase C - with every peer halted outside all patch ranges, write the
	// new bytes and flush the instruction cache per range.
	if cmd == patchApply {
		for i := range t.descriptors {
			patch := jumpTo(t.hooks[i])
			writeCode(t.descriptors[i].addr, patch[:])
		}
	} else {
		for i := range t.descriptors {
			writeCode(t.descriptors[i].addr, t.snapshots[i])
		}
	}

	return nil
}

const (
	peerWaitSecs     = 1       // event timeout per halt attempt
	maxBackoffMicros = 1000000 // cumulative retry budget
)

// haltPeer brings one peer thread to a stop with its instruction-pointer
// chain captured and verified to be outside every patch range, leaving its
// handler blocked on the exit event. Runs between the first sigqueue and the
// exit-event sweep, so it must not allocate: errors are bare sentinels and
// any diagnostics are logged by the caller afterwards.
func (t *Transaction) haltPeer(tid int, tcb *threadControl) error {
	backoffMicros := uint64(1)

	for {
		tcb.publishTargetTID(tid)
		tcb.work().reset()

		if errno := sigqueue(tid, unsafe.Pointer(tcb)); errno != 0 {
			if errno == unix.ESRCH {
				// the peer exited after the thread snapshot; a dead thread
				// cannot resume into a patch range
				return nil
			}
			return ErrSignalAction
		}

		timeout := unix.Timespec{Sec: peerWaitSecs}
		if !tcb.work().wait(&timeout) {
			return ErrTimedOut
		}

		if tcb.actualTID() == tid {
			inRange := false
			for _, frame := range tcb.capturedFrames() {
				if t.isPatchTarget(uintptr(frame)) {
					inRange = true
					break
				}
			}
			if !inRange {
				// halted outside every patch range; keep it blocked until
				// the exit-event sweep
				return nil
			}
		}
		// Either the wrong thread serviced the signal (it memoized its own
		// tid and did not block), or the peer sat inside a patch range.
		// Release the handler and back off exponentially to give the thread
		// a chance to move on before the next attempt.
		tcb.exit().set()
		if backoffMicros > maxBackoffMicros {
			return ErrTimedOut
		}
		sleepMicros(backoffMicros)
		backoffMicros <<= 1
	}
}

func sleepMicros(micros uint64) {
	ts := unix.Timespec{
		Sec:  int64(micros / 1000000),
		Nsec: int64(micros % 1000000 * 1000),
	}
	// EINTR cuts the nap short, which only retries sooner
	_ = unix.Nanosleep(&ts, nil)
}
