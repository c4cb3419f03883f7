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
	"debug/elf"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// symbolDescriptor is the resolution of one binding: where the symbol lives,
// how large it is, and a reference to the object providing it. The module
// reference keeps the object loaded for as long as the descriptor exists.
type symbolDescriptor struct {
	addr   uintptr
	size   uint64
	module *Module
}

func (d *symbolDescriptor) close() {
	if d.module != nil {
		d.module.Close()
		d.module = nil
	}
}

type elfSymbol struct {
	name  string
	value uint64
	size  uint64
}

// Parsed symbol tables are memoized per object path so repeated transactions
// do not re-read ELF files. Values are load-base relative, so the cache stays
// valid across re-loads at a different base. A rebuilt file reusing the same
// path would serve stale entries; restarting the process is the answer there.
var symbolCache, _ = lru.New[string, []elfSymbol](32)

func loadSymbolTable(path string) ([]elfSymbol, error) {
	if cached, ok := symbolCache.Get(path); ok {
		return cached, nil
	}

	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s as an ELF file", path)
	}
	defer f.Close()

	var table []elfSymbol

	// SYMTAB first, then DYNSYM. Together with the loader's object order
	// this pins the resolution order for ambiguous names.
	add := func(syms []elf.Symbol) {
		for _, sym := range syms {
			if sym.Section == elf.SHN_UNDEF || sym.Value == 0 || sym.Size == 0 {
				// skip undefined and empty symbols
				continue
			}
			table = append(table, elfSymbol{name: sym.Name, value: sym.Value, size: sym.Size})
		}
	}

	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, errors.Wrapf(err, "reading symbol table of %s", path)
	}
	add(syms)

	dynsyms, err := f.DynamicSymbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, errors.Wrapf(err, "reading dynamic symbol table of %s", path)
	}
	add(dynsyms)

	symbolCache.Add(path, table)
	return table, nil
}

// lookupSymbols resolves each requested name against every loaded object and
// returns a parallel descriptor vector. Unresolved names yield a descriptor
// with a zero address. When a name is defined in several objects the first
// definition found wins: objects in dynamic-loader iteration order (the main
// executable first), symbols in table order within each object.
func lookupSymbols(names []string) ([]symbolDescriptor, error) {
	descriptors := make([]symbolDescriptor, len(names))

	wanted := make(map[string]int, len(names))
	for i, name := range names {
		wanted[name] = i
	}

	log := symbolsLogger()

	err := forEachModule(func(path string, base uintptr) {
		if strings.Contains(path, "vdso") {
			// not backed by a file we can open
			return
		}

		table, err := loadSymbolTable(path)
		if err != nil {
			log.Debugf("skipping %s: %v", path, err)
			return
		}

		for _, sym := range table {
			idx, ok := wanted[sym.name]
			if !ok || descriptors[idx].addr != 0 {
				continue
			}

			// The dynamic loader refuses to re-open a non-PIE main
			// executable, but that object can never be unloaded either, so
			// a descriptor without a reference is just as safe there.
			module, err := openModule(path)
			if err != nil {
				log.Debugf("cannot reference %s: %v", path, err)
				module = nil
			}

			descriptors[idx] = symbolDescriptor{
				addr:   base + uintptr(sym.value),
				size:   sym.size,
				module: module,
			}
			log.Debugf("resolved %s to %#x (size %d) in %s", sym.name, descriptors[idx].addr, sym.size, path)
		}
	})
	if err != nil {
		for i := range descriptors {
			descriptors[i].close()
		}
		return nil, err
	}

	return descriptors, nil
}
