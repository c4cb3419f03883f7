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
	"encoding/binary"
	"testing"

	"github.com/qrdl/interject/internal/testfns"
)

func TestJumpToEncodesTarget(t *testing.T) {
	target := uintptr(0x1122334455667788)
	patch := jumpTo(target)

	if len(patch) != JumpPatchSize {
		t.Fatalf("expected %d patch bytes, got %d", JumpPatchSize, len(patch))
	}
	encoded := binary.NativeEndian.Uint64(patch[jumpAddrOffset:])
	if encoded != uint64(target) {
		t.Errorf("expected target %#x at offset %d, got %#x", target, jumpAddrOffset, encoded)
	}
}

func TestJumpToHasNoRelativeFields(t *testing.T) {
	// the same target must produce the same bytes regardless of where the
	// patch will be placed
	a := jumpTo(0xCAFEBABE)
	b := jumpTo(0xCAFEBABE)
	if a != b {
		t.Error("patch bytes are not a pure function of the target")
	}
}

// Executing the patch bytes from freshly mapped memory must land in the
// target function with arguments intact.
func TestJumpPatchExecutes(t *testing.T) {
	patch := jumpTo(testfns.HookSubAddr())

	stub, err := newTrampoline(patch[:])
	if err != nil {
		t.Fatal(err)
	}
	defer stub.Close()

	if got := testfns.CallBinaryOp(stub.Addr(), 5, 3); got != 2 {
		t.Errorf("expected 2 from diverted call, got %d", got)
	}
}
