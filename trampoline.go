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
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Trampoline is a separately allocated, executable copy of a function's
// saved prologue.
//
// The copy does not yet end with a jump back to the instruction following
// the patched prologue, so it cannot be called in place of the original
// function. It preserves the original bytes in executable memory for the
// day the tail jump lands.
type Trampoline struct {
	mem      []byte
	origSize int
}

// newTrampoline maps a private anonymous region, copies the prologue
// snapshot into it and seals the mapping to read+execute.
func newTrampoline(snapshot []byte) (*Trampoline, error) {
	mem, err := unix.Mmap(-1, 0, len(snapshot),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "mapping trampoline memory")
	}

	copy(mem, snapshot)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return nil, errors.Wrap(err, "sealing trampoline memory")
	}

	return &Trampoline{mem: mem, origSize: len(snapshot)}, nil
}

// Addr returns the start of the executable copy.
func (t *Trampoline) Addr() uintptr {
	return uintptr(unsafe.Pointer(&t.mem[0]))
}

// Bytes returns the saved prologue bytes.
func (t *Trampoline) Bytes() []byte {
	return t.mem[:t.origSize]
}

// Close unmaps the trampoline. The address returned by Addr is invalid
// afterwards.
func (t *Trampoline) Close() error {
	if t.mem == nil {
		return nil
	}
	mem := t.mem
	t.mem = nil
	return unix.Munmap(mem)
}
