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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrdl/interject/internal/testfns"
)

func releaseDescriptors(descriptors []symbolDescriptor) {
	for i := range descriptors {
		descriptors[i].close()
	}
}

func TestLookupSymbols(t *testing.T) {
	descriptors, err := lookupSymbols([]string{"test_fn_add", "count_set_bits"})
	require.NoError(t, err)
	defer releaseDescriptors(descriptors)
	require.Len(t, descriptors, 2)

	// the resolved address must be the linker's view of the same function
	assert.Equal(t, testfns.TestFnAddAddr(), descriptors[0].addr)
	assert.GreaterOrEqual(t, descriptors[0].size, uint64(JumpPatchSize))
	assert.NotZero(t, descriptors[1].addr)
	assert.NotZero(t, descriptors[1].size)

	// and it must behave like the function
	assert.Equal(t, int64(5), testfns.CallBinaryOp(descriptors[0].addr, 2, 3))
	assert.Equal(t, uint64(5), testfns.CallUnaryOp(descriptors[1].addr, 0x1f))
}

func TestLookupUnknownSymbol(t *testing.T) {
	descriptors, err := lookupSymbols([]string{"kwyjibo"})
	require.NoError(t, err)
	defer releaseDescriptors(descriptors)
	require.Len(t, descriptors, 1)

	assert.Zero(t, descriptors[0].addr)
	assert.Zero(t, descriptors[0].size)
	assert.Nil(t, descriptors[0].module)
}

func TestLookupDataSymbolSizes(t *testing.T) {
	descriptors, err := lookupSymbols([]string{"tiny_region", "exact_region"})
	require.NoError(t, err)
	defer releaseDescriptors(descriptors)

	assert.Equal(t, uint64(JumpPatchSize-1), descriptors[0].size)
	assert.Equal(t, uint64(JumpPatchSize), descriptors[1].size)
}

// Resolution order is loader iteration order across objects, table order
// within an object, first definition wins. This test checks that the choice
// is stable: a repeated lookup, served from the symbol cache, resolves to the
// same definition as the first one.
func TestLookupFirstMatchWins(t *testing.T) {
	first, err := lookupSymbols([]string{"test_fn_add"})
	require.NoError(t, err)
	defer releaseDescriptors(first)

	second, err := lookupSymbols([]string{"test_fn_add"})
	require.NoError(t, err)
	defer releaseDescriptors(second)

	assert.Equal(t, first[0].addr, second[0].addr)
	assert.Equal(t, first[0].size, second[0].size)
}
