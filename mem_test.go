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
	"testing"
	"unsafe"
)

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

func TestPageSpanSinglePage(t *testing.T) {
	start, span := pageSpan(0x10, 0x10)
	if start != 0 {
		t.Error("incorrect page start")
	}
	if span != 0x20 {
		t.Errorf("expected %x, got %x as span", 0x20, span)
	}
}

func TestPageSpanEndOfPage(t *testing.T) {
	start, span := pageSpan(pageSize-0x10, 0x10)
	if start != 0 {
		t.Error("incorrect page start")
	}
	if span != pageSize {
		t.Errorf("expected %x, got %x as span", pageSize, span)
	}
}

func TestPageSpanTwoPages(t *testing.T) {
	start, span := pageSpan(pageSize-0x4, 0x10)
	if start != 0 {
		t.Error("incorrect page start")
	}
	expected := pageSize + 0x10 - 0x4
	if span != expected {
		t.Errorf("expected %x, got %x as span", expected, span)
	}
}

func TestReadCode(t *testing.T) {
	src := []byte{0xde, 0xad, 0xbe, 0xef}
	buf := make([]byte, len(src))
	readCode(addrOf(src), buf)
	for i := range src {
		if buf[i] != src[i] {
			t.Fatalf("byte %d: expected %#x, got %#x", i, src[i], buf[i])
		}
	}
}
