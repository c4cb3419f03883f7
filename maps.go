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

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const selfMaps = "/proc/self/maps"

// Region is one mapped range of the process address space. Perms is a bitmask
// of unix.PROT_READ, unix.PROT_WRITE and unix.PROT_EXEC.
type Region struct {
	Start uintptr
	End   uintptr
	Perms int
}

// MemoryMap is a parsed snapshot of the current-process address-space map.
type MemoryMap struct {
	regions []Region
}

// Load reads and parses /proc/self/maps, replacing any previous snapshot.
func (m *MemoryMap) Load() error {
	f, err := os.Open(selfMaps)
	if err != nil {
		return errors.Wrapf(err, "opening %s", selfMaps)
	}
	defer f.Close()

	return m.loadFrom(f)
}

// loadFrom parses a maps-format listing from r. Each line starts with
// "START-END PERMS", both addresses in lowercase hex without 0x, PERMS as
// the fixed-width "rwxp" quadruple of which only the first three matter.
func (m *MemoryMap) loadFrom(r io.Reader) error {
	m.regions = m.regions[:0]

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		addrs, rest, found := strings.Cut(line, " ")
		if !found || len(rest) < 4 {
			return errors.Errorf("malformed maps line %q", line)
		}
		perms := rest[:4]

		startStr, endStr, found := strings.Cut(addrs, "-")
		if !found {
			return errors.Errorf("malformed address range %q", addrs)
		}
		start, err := strconv.ParseUint(startStr, 16, 64)
		if err != nil {
			return errors.Wrapf(err, "parsing address range %q", addrs)
		}
		end, err := strconv.ParseUint(endStr, 16, 64)
		if err != nil {
			return errors.Wrapf(err, "parsing address range %q", addrs)
		}

		prot := 0
		if perms[0] == 'r' {
			prot |= unix.PROT_READ
		}
		if perms[1] == 'w' {
			prot |= unix.PROT_WRITE
		}
		if perms[2] == 'x' {
			prot |= unix.PROT_EXEC
		}

		m.regions = append(m.regions, Region{
			Start: uintptr(start),
			End:   uintptr(end),
			Perms: prot,
		})
	}

	return errors.Wrap(scanner.Err(), "reading maps")
}

// Regions returns the parsed regions in ascending address order.
func (m *MemoryMap) Regions() []Region {
	return m.regions
}

// Find returns the region containing addr, or nil if addr is unmapped.
func (m *MemoryMap) Find(addr uintptr) *Region {
	for i := range m.regions {
		region := &m.regions[i]
		if addr < region.Start {
			// regions are sorted in address order, so an addr before this
			// region cannot be in any later region either
			break
		}
		if addr < region.End {
			return region
		}
	}
	return nil
}
