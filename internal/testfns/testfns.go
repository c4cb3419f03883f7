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

// Package testfns provides C-ABI fixture functions for exercising the
// hot-patching engine: real ELF symbols with stable names, C calling
// convention and non-zero sizes, which the Go compiler can neither inline
// nor rename. Test files cannot use cgo, hence this package.
package testfns

/*
#cgo CFLAGS: -O0
#include "functions.h"
*/
import "C"

import "unsafe"

// Add calls the patchable symbol test_fn_add.
func Add(a, b int64) int64 { return int64(C.test_fn_add(C.ssize_t(a), C.ssize_t(b))) }

// Sub calls the patchable symbol test_fn_sub.
func Sub(a, b int64) int64 { return int64(C.test_fn_sub(C.ssize_t(a), C.ssize_t(b))) }

// ReturnBool calls the patchable symbol test_fn_return_bool.
func ReturnBool(v bool) bool { return bool(C.test_fn_return_bool(C.bool(v))) }

// BranchEntry calls test_fn_branch_entry, whose entry bytes contain a
// PC-relative branch inside the patch window.
func BranchEntry(n uint64) uint64 { return uint64(C.test_fn_branch_entry(C.size_t(n))) }

func CountSetBits(n uint64) uint64 { return uint64(C.count_set_bits(C.size_t(n))) }

func Fibonacci(n uint64) uint64 { return uint64(C.fibonacci(C.size_t(n))) }

func Isqrt(n uint64) uint64 { return uint64(C.isqrt(C.size_t(n))) }

func SumOfDigits(n uint64) uint64 { return uint64(C.sum_of_digits(C.size_t(n))) }

func ReverseDigits(n uint64) uint64 { return uint64(C.reverse_digits(C.size_t(n))) }

func Factorial(n uint64) uint64 { return uint64(C.factorial(C.size_t(n))) }

// Hook and target addresses for building bindings.

func TestFnAddAddr() uintptr { return uintptr(C.test_fn_add_addr) }

func TestFnSubAddr() uintptr { return uintptr(C.test_fn_sub_addr) }

func TestFnReturnNotBoolAddr() uintptr { return uintptr(C.test_fn_return_not_bool_addr) }

func HookAddAddr() uintptr { return uintptr(C.hook_fn_add_addr) }

func HookSubAddr() uintptr { return uintptr(C.hook_fn_sub_addr) }

func SumOfDigitsAddr() uintptr { return uintptr(C.sum_of_digits_addr) }

func FactorialAddr() uintptr { return uintptr(C.factorial_addr) }

// CallBinaryOp invokes the code at addr with the (ssize_t, ssize_t) -> ssize_t
// C signature, for calling resolved or trampoline addresses directly.
func CallBinaryOp(addr uintptr, a, b int64) int64 {
	return int64(C.call_ssize2(unsafe.Pointer(addr), C.ssize_t(a), C.ssize_t(b)))
}

// CallUnaryOp invokes the code at addr with the (size_t) -> size_t C
// signature.
func CallUnaryOp(addr uintptr, n uint64) uint64 {
	return uint64(C.call_size1(unsafe.Pointer(addr), C.size_t(n)))
}
