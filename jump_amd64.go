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

//go:build linux

package interject

import "encoding/binary"

// JumpPatchSize is the number of prologue bytes the jump patch overwrites.
// On x86-64: MOV RAX, imm64 (10 bytes) followed by JMP RAX (2 bytes).
const JumpPatchSize = 12

// offset of the absolute target address within the patch
const jumpAddrOffset = 2

// jumpTo produces the byte sequence that transfers control to the absolute
// address target. The sequence has no PC-relative fields, so it executes
// identically wherever it is placed. RAX is fair game as scratch: at a
// function entry it holds no argument in the System V calling convention.
func jumpTo(target uintptr) [JumpPatchSize]byte {
	var patch [JumpPatchSize]byte
	patch[0] = 0x48 // REX.W
	patch[1] = 0xB8 // MOV RAX, imm64
	binary.NativeEndian.PutUint64(patch[jumpAddrOffset:], uint64(target))
	patch[10] = 0xFF // JMP RAX
	patch[11] = 0xE0

	return patch
}
