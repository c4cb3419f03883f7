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
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

var pageSize = uintptr(os.Getpagesize())

// pageSpan widens [addr, addr+size) to the containing page boundary and
// returns the page-aligned start plus the span length from that start.
func pageSpan(addr uintptr, size uintptr) (uintptr, uintptr) {
	start := addr &^ (pageSize - 1)
	span := addr + size - start

	return start, span
}

// protectPage applies prot to the single page starting at page-aligned addr.
func protectPage(addr uintptr, prot int) error {
	page := unsafe.Slice((*uint8)(unsafe.Pointer(addr)), pageSize)
	return unix.Mprotect(page, prot)
}

// writeCode copies buf over the executable bytes at addr and flushes the
// instruction cache for exactly that range. The containing pages must have
// been made writable beforehand.
func writeCode(addr uintptr, buf []byte) {
	code := unsafe.Slice((*uint8)(unsafe.Pointer(addr)), len(buf))
	copy(code, buf)
	flushICache(addr, uintptr(len(buf)))
}

// readCode copies len(buf) bytes at addr into buf.
func readCode(addr uintptr, buf []byte) {
	code := unsafe.Slice((*uint8)(unsafe.Pointer(addr)), len(buf))
	copy(buf, code)
}
