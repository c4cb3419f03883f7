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

import "golang.org/x/arch/x86/x86asm"

// decodeInstr decodes one instruction and reports its encoded length and
// whether it is PC-relative. On x86-64 every branch with a Rel argument
// (JMP/Jcc/CALL/LOOP/JCXZ rel) falls in that category.
func decodeInstr(code []byte) (int, bool, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return 0, false, err
	}

	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		if _, ok := arg.(x86asm.Rel); ok {
			return inst.Len, true, nil
		}
	}
	return inst.Len, false, nil
}
