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

/*
Package interject is an in-process function hot-patching engine for Linux.

Given a set of symbol-name to replacement-function bindings, the engine
atomically overwrites the prologue of each target function so that subsequent
calls divert to the replacement. The operation is transactional: all hooks
install together or none do, and a rollback restores the original prologues.

# Platforms supported

This package modifies the executable code of the running process, therefore
it is OS- and CPU arch-specific.

Supported OS/arch combinations:
  - Linux / x86_64
  - Linux / ARM64

# Typical use

	var origAdd uintptr

	txn := interject.NewBuilder().
	    Add("target_add", hookAddr, &origAdd).
	    Build()
	defer txn.Close()

	if err := txn.Prepare(); err != nil {
	    // nothing has been modified
	    return err
	}
	if err := txn.Commit(); err != nil {
	    // nothing has been modified, all pages keep their original protections
	    return err
	}

	// ... every call to target_add now runs the hook ...

	if err := txn.Rollback(); err != nil {
	    return err
	}

Committing patches code that other threads may be executing, so Commit halts
every peer thread with a signal and inspects its backtrace before writing a
single byte. A peer caught inside a patch range is released and re-examined
with exponential backoff until it has moved past or the retry budget is spent.

The engine assumes it is the only patcher in the process: transactions must
be serialized by the caller, and Commit must not be nested (it temporarily
owns the process-wide SIGUSR1 action).
*/
package interject
