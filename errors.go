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

package interject

import "errors"

// Every Transaction operation and AnalyzePrologue report exactly one of
// these. They may come wrapped with call-site context, so match with
// errors.Is.
var (
	// ErrInvalidState is returned for a transition the transaction state
	// machine does not allow. The transaction is left untouched.
	ErrInvalidState = errors.New("invalid transaction state")

	// ErrSymbolNotFound is returned when a symbol does not resolve in any
	// loaded object, or its address falls outside the known address space.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrFunctionBodyTooSmall is returned when a target symbol is smaller
	// than the jump patch.
	ErrFunctionBodyTooSmall = errors.New("function body too small to patch")

	// ErrUnexpected is returned when loading the memory map or enumerating
	// threads fails.
	ErrUnexpected = errors.New("unexpected failure")

	// ErrMemoryProtection is returned when mprotect fails. Page permissions
	// are restored best-effort.
	ErrMemoryProtection = errors.New("memory protection failure")

	// ErrSignalAction is returned when installing the signal action or
	// queueing the signal fails. No patches have been written.
	ErrSignalAction = errors.New("signal action failure")

	// ErrTimedOut is returned when a peer thread could not be quiesced
	// outside all patch ranges within the retry budget. No patches have
	// been written.
	ErrTimedOut = errors.New("timed out quiescing peer thread")

	// ErrTrampolineCreation is returned when a trampoline was requested for
	// a function whose patch window contains a PC-relative branch or bytes
	// the decoder rejects, or when mapping the trampoline fails. PC-relative
	// data references (x86-64 RIP-relative operands, arm64 ADR/ADRP and
	// literal loads) are not detected and do not cause a refusal.
	ErrTrampolineCreation = errors.New("trampoline creation failure")
)
