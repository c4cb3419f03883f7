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
// On ARM64: LDR X16, 8; BR X16; followed by the 8-byte literal they consume.
const JumpPatchSize = 16

// offset of the absolute target address within the patch
const jumpAddrOffset = 8

// jumpTo produces the byte sequence that transfers control to the absolute
// address target. The LDR uses a literal placed immediately after the BR, so
// the sequence executes identically wherever it is placed. X16 (IP0) is the
// intra-procedure-call scratch register and may be clobbered at entry.
func jumpTo(target uintptr) [JumpPatchSize]byte {
	var patch [JumpPatchSize]byte
	// LDR X16, 8 ; imm19 counts in words
	binary.NativeEndian.PutUint32(patch[0:], 0x58000000|16|((jumpAddrOffset/4)<<5))
	// BR X16
	binary.NativeEndian.PutUint32(patch[4:], 0xD61F0000|(16<<5))
	binary.NativeEndian.PutUint64(patch[jumpAddrOffset:], uint64(target))

	return patch
}
