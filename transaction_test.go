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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrdl/interject/internal/testfns"
)

func TestArithmeticSwap(t *testing.T) {
	var addTrampoline, subTrampoline uintptr

	txn := NewBuilder().
		Add("test_fn_add", testfns.HookSubAddr(), &addTrampoline).
		Add("test_fn_sub", testfns.HookAddAddr(), &subTrampoline).
		Build()
	defer txn.Close()

	require.NoError(t, txn.Prepare())
	require.NoError(t, txn.Commit())

	assert.Equal(t, int64(0), testfns.Add(1, 1))
	assert.Equal(t, int64(2), testfns.Sub(1, 1))

	assert.NotZero(t, addTrampoline)
	assert.NotZero(t, subTrampoline)

	require.NoError(t, txn.Rollback())

	assert.Equal(t, int64(2), testfns.Add(1, 1))
	assert.Equal(t, int64(0), testfns.Sub(1, 1))
}

func TestRoundTrip(t *testing.T) {
	inputs := []uint64{1234, 10, 64}

	type recorded struct{ bits, fib, root uint64 }
	before := make([]recorded, len(inputs))
	for i, n := range inputs {
		before[i] = recorded{
			bits: testfns.CountSetBits(n),
			fib:  testfns.Fibonacci(n),
			root: testfns.Isqrt(n),
		}
	}

	txn := NewBuilder().
		Add("count_set_bits", testfns.SumOfDigitsAddr(), nil).
		Add("fibonacci", testfns.FactorialAddr(), nil).
		Add("isqrt", testfns.FactorialAddr(), nil).
		Build()
	defer txn.Close()

	require.NoError(t, txn.Prepare())
	require.NoError(t, txn.Commit())

	for _, n := range inputs {
		assert.Equal(t, testfns.SumOfDigits(n), testfns.CountSetBits(n), "input %d", n)
		assert.Equal(t, testfns.Factorial(n), testfns.Fibonacci(n), "input %d", n)
		assert.Equal(t, testfns.Factorial(n), testfns.Isqrt(n), "input %d", n)
	}

	require.NoError(t, txn.Rollback())

	for i, n := range inputs {
		assert.Equal(t, before[i].bits, testfns.CountSetBits(n), "input %d", n)
		assert.Equal(t, before[i].fib, testfns.Fibonacci(n), "input %d", n)
		assert.Equal(t, before[i].root, testfns.Isqrt(n), "input %d", n)
	}
}

// Many threads hammer the target function in a tight loop while the patch is
// committed. A write racing with execution would crash them with SIGILL or
// SIGSEGV; the quiescence protocol must let every loop run to the patched
// result instead.
func TestConcurrentRacers(t *testing.T) {
	const racers = 50

	var wg sync.WaitGroup
	iterations := make([]uint64, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for testfns.ReturnBool(true) {
				iterations[i]++
			}
		}(i)
	}

	// give the racers a chance to start hammering
	time.Sleep(time.Millisecond)

	txn := NewBuilder().
		Add("test_fn_return_bool", testfns.TestFnReturnNotBoolAddr(), nil).
		Build()
	defer txn.Close()

	require.NoError(t, txn.Prepare())
	require.NoError(t, txn.Commit())

	// every racer now observes false and terminates
	wg.Wait()

	require.NoError(t, txn.Rollback())
	assert.True(t, testfns.ReturnBool(true))
}

func TestFunctionBodyTooSmall(t *testing.T) {
	txn := NewBuilder().
		Add("tiny_region", testfns.HookAddAddr(), nil).
		Build()
	defer txn.Close()

	err := txn.Prepare()
	require.ErrorIs(t, err, ErrFunctionBodyTooSmall)

	// prepare failed without side effects, so it can be retried after the
	// failure cause is gone; the state machine still refuses commit
	require.ErrorIs(t, txn.Commit(), ErrInvalidState)
}

// A symbol of exactly the patch size is committable. The symbol is a data
// region, which also pins that patching is symbol-driven, not limited to
// executable mappings, and that page protections round-trip.
func TestExactPatchSizeCommits(t *testing.T) {
	descriptors, err := lookupSymbols([]string{"exact_region"})
	require.NoError(t, err)
	defer releaseDescriptors(descriptors)
	addr := descriptors[0].addr
	require.NotZero(t, addr)

	before := make([]byte, JumpPatchSize)
	readCode(addr, before)

	var m MemoryMap
	require.NoError(t, m.Load())
	permsBefore := m.Find(addr).Perms

	txn := NewBuilder().
		Add("exact_region", testfns.HookAddAddr(), nil).
		Build()
	defer txn.Close()

	require.NoError(t, txn.Prepare())
	require.NoError(t, txn.Commit())

	expected := jumpTo(testfns.HookAddAddr())
	after := make([]byte, JumpPatchSize)
	readCode(addr, after)
	assert.Equal(t, expected[:], after)

	require.NoError(t, m.Load())
	assert.Equal(t, permsBefore, m.Find(addr).Perms, "page protections must round-trip")

	require.NoError(t, txn.Rollback())
	readCode(addr, after)
	assert.Equal(t, before, after, "rollback must restore the original bytes")
}

func TestSymbolNotFound(t *testing.T) {
	txn := NewBuilder().
		Add("kwyjibo", testfns.HookAddAddr(), nil).
		Build()
	defer txn.Close()

	require.ErrorIs(t, txn.Prepare(), ErrSymbolNotFound)
}

func TestStateMachine(t *testing.T) {
	txn := NewBuilder().
		Add("test_fn_add", testfns.HookSubAddr(), nil).
		Build()
	defer txn.Close()

	require.ErrorIs(t, txn.Commit(), ErrInvalidState)
	require.ErrorIs(t, txn.Rollback(), ErrInvalidState)

	require.NoError(t, txn.Prepare())
	require.ErrorIs(t, txn.Prepare(), ErrInvalidState)

	require.NoError(t, txn.Commit())
	require.ErrorIs(t, txn.Commit(), ErrInvalidState)

	require.NoError(t, txn.Rollback())
	require.ErrorIs(t, txn.Rollback(), ErrInvalidState)
	require.ErrorIs(t, txn.Commit(), ErrInvalidState)
}

func TestPrepareRollbackIsNoop(t *testing.T) {
	descriptors, err := lookupSymbols([]string{"test_fn_add"})
	require.NoError(t, err)
	defer releaseDescriptors(descriptors)

	before := make([]byte, JumpPatchSize)
	readCode(descriptors[0].addr, before)

	txn := NewBuilder().
		Add("test_fn_add", testfns.HookSubAddr(), nil).
		Build()
	defer txn.Close()

	require.NoError(t, txn.Prepare())
	require.NoError(t, txn.Rollback())

	after := make([]byte, JumpPatchSize)
	readCode(descriptors[0].addr, after)
	assert.Equal(t, before, after, "prepare followed by rollback must not touch memory")

	require.ErrorIs(t, txn.Commit(), ErrInvalidState)
}

// A prologue containing a PC-relative branch widens the snapshot to the
// whole function: the patch still commits and rolls back byte-exactly, but
// a trampoline request must be refused rather than silently broken.
func TestRelativeBranchInPrologue(t *testing.T) {
	assert.Equal(t, uint64(1), testfns.BranchEntry(5))
	assert.Equal(t, uint64(0), testfns.BranchEntry(0))

	var trampoline uintptr
	refused := NewBuilder().
		Add("test_fn_branch_entry", testfns.SumOfDigitsAddr(), &trampoline).
		Build()
	defer refused.Close()
	require.ErrorIs(t, refused.Prepare(), ErrTrampolineCreation)
	assert.Zero(t, trampoline)

	txn := NewBuilder().
		Add("test_fn_branch_entry", testfns.SumOfDigitsAddr(), nil).
		Build()
	defer txn.Close()

	require.NoError(t, txn.Prepare())
	require.NoError(t, txn.Commit())
	assert.Equal(t, uint64(10), testfns.BranchEntry(1234))

	require.NoError(t, txn.Rollback())
	assert.Equal(t, uint64(1), testfns.BranchEntry(5))
	assert.Equal(t, uint64(0), testfns.BranchEntry(0))
}

func TestBuilderSpent(t *testing.T) {
	builder := NewBuilder().Add("test_fn_add", testfns.HookSubAddr(), nil)
	txn := builder.Build()
	defer txn.Close()

	assert.Panics(t, func() { builder.Add("test_fn_sub", testfns.HookAddAddr(), nil) })
	assert.Panics(t, func() { builder.Build() })
}
