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

import "golang.org/x/arch/arm64/arm64asm"

// decodeInstr decodes one instruction and reports its encoded length and
// whether it is a PC-relative branch: B (conditional or not), BL, CBZ/CBNZ
// and TBZ/TBNZ with an immediate target.
func decodeInstr(code []byte) (int, bool, error) {
	inst, err := arm64asm.Decode(code)
	if err != nil {
		return 0, false, err
	}

	switch inst.Op {
	case arm64asm.B, arm64asm.BL, arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		for _, arg := range inst.Args {
			if arg == nil {
				break
			}
			if _, ok := arg.(arm64asm.PCRel); ok {
				return 4, true, nil
			}
		}
	}
	return 4, false, nil
}
