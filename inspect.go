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

import "github.com/pkg/errors"

// Symbol is the inspection view of one resolved name. Unlike a transaction
// descriptor it holds no module reference; the data is a snapshot.
type Symbol struct {
	Name   string
	Addr   uintptr
	Size   uint64
	Object string
}

// ResolveSymbols resolves names against every loaded object, first
// definition wins. Unresolved names come back with a zero Addr.
func ResolveSymbols(names []string) ([]Symbol, error) {
	descriptors, err := lookupSymbols(names)
	if err != nil {
		return nil, err
	}

	symbols := make([]Symbol, len(names))
	for i := range descriptors {
		symbols[i] = Symbol{
			Name: names[i],
			Addr: descriptors[i].addr,
			Size: descriptors[i].size,
		}
		if descriptors[i].module != nil {
			symbols[i].Object = descriptors[i].module.Path()
		}
		descriptors[i].close()
	}
	return symbols, nil
}

// ForEachModule invokes visit with (object path, load base) for every loaded
// object carrying ELF program headers, in dynamic-loader iteration order.
func ForEachModule(visit func(path string, base uintptr)) error {
	return forEachModule(visit)
}

// AnalyzePrologue resolves name and reports the snapshot length a patch of
// that symbol would capture, plus whether the examined prefix is relocatable
// (free of PC-relative branches and of bytes the decoder rejects; PC-relative
// data references are not detected).
func AnalyzePrologue(name string) (uint64, bool, error) {
	descriptors, err := lookupSymbols([]string{name})
	if err != nil {
		return 0, false, errors.Wrapf(ErrUnexpected, "resolving %s: %v", name, err)
	}
	defer descriptors[0].close()

	if descriptors[0].addr == 0 {
		return 0, false, errors.Wrapf(ErrSymbolNotFound, "symbol %s", name)
	}
	if JumpPatchSize > descriptors[0].size {
		return 0, false, errors.Wrapf(ErrFunctionBodyTooSmall,
			"symbol %s is %d bytes, patch needs %d", name, descriptors[0].size, JumpPatchSize)
	}

	copyLen, relocatable := analyzePrologue(descriptors[0].addr, descriptors[0].size, JumpPatchSize)
	return copyLen, relocatable, nil
}
