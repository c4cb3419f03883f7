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

// Command interject inspects its own process with the hot-patching engine's
// building blocks: the parsed memory map, the loaded objects, symbol
// resolution and prologue analysis. It exists to poke at the engine on a
// live Linux process without writing a line of code.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/qrdl/interject"
)

const version = "0.2.0"

var (
	configPath string
	logFlag    bool
	conf       *Config
)

func main() {
	rootCommand := &cobra.Command{
		Use:   "interject",
		Short: "Interject inspects the address space and symbols of a live process.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			conf, err = loadConfig(configPath)
			if err != nil {
				return err
			}
			interject.SetLogEnabled(logFlag || conf.Log)
			return nil
		},
	}
	rootCommand.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file.")
	rootCommand.PersistentFlags().BoolVar(&logFlag, "log", false, "Enable engine debug logging.")

	mapsCommand := &cobra.Command{
		Use:   "maps [addr]",
		Short: "Print the parsed memory map, or the region containing addr.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var m interject.MemoryMap
			if err := m.Load(); err != nil {
				return err
			}

			if len(args) == 1 {
				addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 64)
				if err != nil {
					return fmt.Errorf("bad address %q: %w", args[0], err)
				}
				region := m.Find(uintptr(addr))
				if region == nil {
					return fmt.Errorf("address %#x is not mapped", addr)
				}
				printRegion(region)
				return nil
			}

			for i := range m.Regions() {
				if conf.MaxRegions > 0 && i == conf.MaxRegions {
					fmt.Printf("... %d more regions\n", len(m.Regions())-i)
					break
				}
				printRegion(&m.Regions()[i])
			}
			return nil
		},
	}
	rootCommand.AddCommand(mapsCommand)

	modulesCommand := &cobra.Command{
		Use:   "modules",
		Short: "List every loaded object and its load base.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return interject.ForEachModule(func(path string, base uintptr) {
				fmt.Printf("%#16x %s\n", base, path)
			})
		},
	}
	rootCommand.AddCommand(modulesCommand)

	resolveCommand := &cobra.Command{
		Use:   "resolve <symbol>...",
		Short: "Resolve symbol names against the loaded objects.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := interject.ResolveSymbols(args)
			if err != nil {
				return err
			}
			for _, symbol := range symbols {
				if symbol.Addr == 0 {
					fmt.Printf("%-30s not found\n", symbol.Name)
					continue
				}
				fmt.Printf("%-30s %#16x %6d bytes  %s\n",
					symbol.Name, symbol.Addr, symbol.Size, symbol.Object)
			}
			return nil
		},
	}
	rootCommand.AddCommand(resolveCommand)

	analyzeCommand := &cobra.Command{
		Use:   "analyze <symbol>",
		Short: "Report how many prologue bytes a patch of symbol would snapshot.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			copyLen, relocatable, err := interject.AnalyzePrologue(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: snapshot %d bytes (patch size %d), relocatable %v\n",
				args[0], copyLen, interject.JumpPatchSize, relocatable)
			if !relocatable {
				fmt.Println("prologue contains a PC-relative branch or undecodable bytes; the whole function is snapshotted and no trampoline can be built")
			}
			return nil
		},
	}
	rootCommand.AddCommand(analyzeCommand)

	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Print version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Interject version: " + version)
		},
	}
	rootCommand.AddCommand(versionCommand)

	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

func printRegion(region *interject.Region) {
	perms := [3]byte{'-', '-', '-'}
	if region.Perms&unix.PROT_READ != 0 {
		perms[0] = 'r'
	}
	if region.Perms&unix.PROT_WRITE != 0 {
		perms[1] = 'w'
	}
	if region.Perms&unix.PROT_EXEC != 0 {
		perms[2] = 'x'
	}
	fmt.Printf("%16x-%-16x %s\n", region.Start, region.End, string(perms[:]))
}
