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

/*
#include <signal.h>
#include <stdlib.h>
#include "quiesce.h"
*/
import "C"

import (
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func init() {
	C.interject_prime_backtrace()
}

const maxFrames = C.INTERJECT_MAX_FRAMES

// threadControl is the Go view of thread_control in quiesce.h. The handler
// side runs in C, so the layout must match bit for bit; the array-length
// assertions below fail the build on drift in either direction.
type threadControl struct {
	targetTID  int32
	workEvent  uint32
	exitEvent  uint32
	_          uint32
	frameCount uint64
	frames     [maxFrames]uint64
}

var (
	_ [C.sizeof_thread_control - unsafe.Sizeof(threadControl{})]byte
	_ [unsafe.Sizeof(threadControl{}) - C.sizeof_thread_control]byte
)

// allocThreadControls allocates n zeroed TCBs as one contiguous array in C
// memory: the asynchronous handler writes into them, so they must live
// outside the Go heap, and they must all exist before the first thread is
// halted because allocating afterwards may deadlock. Release with
// freeThreadControls.
func allocThreadControls(n int) ([]threadControl, error) {
	mem := C.calloc(C.size_t(n), C.sizeof_thread_control)
	if mem == nil {
		return nil, errors.New("out of memory allocating thread control blocks")
	}
	return unsafe.Slice((*threadControl)(mem), n), nil
}

func freeThreadControls(tcbs []threadControl) {
	if tcbs != nil {
		C.free(unsafe.Pointer(&tcbs[0]))
	}
}

// publishTargetTID announces the intended signal recipient (release).
func (t *threadControl) publishTargetTID(tid int) {
	atomic.StoreInt32(&t.targetTID, int32(tid))
}

// actualTID reads back the tid memoized by the handler (acquire).
func (t *threadControl) actualTID() int {
	return int(atomic.LoadInt32(&t.targetTID))
}

func (t *threadControl) work() event { return event{&t.workEvent} }
func (t *threadControl) exit() event { return event{&t.exitEvent} }

// capturedFrames reads the published frame count (acquire) and returns an
// accessor-friendly view of the frames. The per-frame release stores in the
// handler happen before the count store, so reading the count first makes
// every frame below it visible.
func (t *threadControl) capturedFrames() []uint64 {
	count := atomic.LoadUint64(&t.frameCount)
	if count > maxFrames {
		count = maxFrames
	}
	return t.frames[:count]
}

// signalAction owns the process-wide SIGUSR1 disposition for the duration of
// a commit. install swaps in the backtrace handler, restore puts the
// pre-existing action back.
type signalAction struct {
	orig C.struct_sigaction
}

func (a *signalAction) install() error {
	if C.interject_install_action(&a.orig) != 0 {
		return errors.New("installing SIGUSR1 action failed")
	}
	return nil
}

func (a *signalAction) restore() error {
	if C.interject_restore_action(&a.orig) != 0 {
		return errors.New("restoring SIGUSR1 action failed")
	}
	return nil
}

// siginfo matches the kernel siginfo_t layout for an SI_QUEUE signal on
// 64-bit Linux: the rt union member (pid, uid, sigval) starts at offset 16,
// the whole structure is 128 bytes.
type siginfo struct {
	signo int32
	errno int32
	code  int32
	_     int32
	pid   int32
	uid   int32
	value uintptr
	_     [96]byte
}

const siQueue = -1 // SI_QUEUE

// sigqueue queues SIGUSR1 for tid carrying ptr as the signal value, the
// rt_sigqueueinfo equivalent of sigqueue(3). The kernel treats the id as a
// process-directed destination, so the signal may well be serviced by a
// different thread of this process; the caller detects that through the TCB
// tid double-write and retries.
//
// Returns a raw errno because it runs on the allocation-free halt path.
func sigqueue(tid int, ptr unsafe.Pointer) unix.Errno {
	si := siginfo{
		signo: int32(unix.SIGUSR1),
		code:  siQueue,
		pid:   int32(unix.Getpid()),
		uid:   int32(unix.Getuid()),
		value: uintptr(ptr),
	}
	_, _, errno := unix.Syscall(unix.SYS_RT_SIGQUEUEINFO,
		uintptr(tid), uintptr(unix.SIGUSR1), uintptr(unsafe.Pointer(&si)))
	return errno
}

// flushICache invalidates the instruction cache for [addr, addr+len). On
// x86-64 the hardware keeps the caches coherent and this compiles down to
// nothing; ARM64 needs it after every code write.
func flushICache(addr uintptr, len uintptr) {
	C.interject_flush_icache(C.uintptr_t(addr), C.size_t(len))
}
