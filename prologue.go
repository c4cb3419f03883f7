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

import "unsafe"

// analyzePrologue decodes instructions at addr one at a time, accumulating
// their encoded lengths until the total reaches min, and returns the smallest
// whole-instruction prefix length covering min bytes. When the examined
// prefix contains a PC-relative branch, or bytes the decoder cannot make
// sense of, those instructions cannot be relocated and the length widens to
// max (the whole function). The second return value reports whether the
// prefix is relocatable.
//
// max is the full size of the function; min is the patch size, so min <= max
// must hold.
func analyzePrologue(addr uintptr, max, min uint64) (uint64, bool) {
	code := unsafe.Slice((*byte)(unsafe.Pointer(addr)), max)

	var n uint64
	for n < min {
		length, relative, err := decodeInstr(code[n:])
		if err != nil || length == 0 || n+uint64(length) > max {
			return max, false
		}
		if relative {
			return max, false
		}
		n += uint64(length)
	}

	return n, true
}
