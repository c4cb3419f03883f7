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
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	eventUnset uint32 = 0
	eventSet   uint32 = 1
)

// Futex operation constants from linux/futex.h. golang.org/x/sys/unix does
// not expose these, so they are mirrored here with their fixed kernel ABI
// values.
const (
	futexWait        = 0
	futexWake        = 1
	futexPrivateFlag = 128
)

// event is a futex-backed manual-reset event, similar to a Win32 manual-reset
// event. Once set has been called every subsequent wait returns immediately
// until reset is called.
//
// The state is a single 32-bit word reached through a pointer, so an event
// can be laid over memory the Go runtime does not own. The signal handler in
// quiesce.c operates on the same words with the equivalent C atomics, which
// is what makes the signaller/handler rendezvous work.
type event struct {
	word *uint32
}

// reset moves the event from set to unset. Noop if the event is not set.
func (e event) reset() {
	atomic.StoreUint32(e.word, eventUnset)
}

// set wakes all current waiters and any future ones. Noop if already set.
func (e event) set() {
	if atomic.SwapUint32(e.word, eventSet) == eventUnset {
		_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(e.word)),
			uintptr(futexWake|futexPrivateFlag),
			uintptr(^uint32(0)>>1), // INT_MAX, wake all
			0, 0, 0)
		if errno != 0 {
			panic("FUTEX_WAKE failed unexpectedly: " + errno.Error())
		}
	}
}

// wait blocks until the event becomes set, or until the relative timeout
// expires. A nil timeout waits forever. Returns false on timeout.
func (e event) wait(timeout *unix.Timespec) bool {
	for {
		if atomic.LoadUint32(e.word) == eventSet {
			return true
		}

		_, _, errno := unix.Syscall6(unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(e.word)),
			uintptr(futexWait|futexPrivateFlag),
			uintptr(eventUnset),
			uintptr(unsafe.Pointer(timeout)),
			0, 0)
		switch errno {
		case 0, unix.EAGAIN, unix.EINTR:
			// EAGAIN means the word changed under us, EINTR is a spurious
			// wakeup. Re-examine the word either way.
		case unix.ETIMEDOUT:
			return false
		default:
			panic("FUTEX_WAIT failed unexpectedly: " + errno.Error())
		}
	}
}
