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
	"os"
	"strconv"

	"github.com/pkg/errors"
)

const selfTasks = "/proc/self/task"

// threadIDs returns a snapshot of every kernel task id of the current
// process. The list is a point-in-time snapshot; threads created afterwards
// are not in it.
func threadIDs() ([]int, error) {
	entries, err := os.ReadDir(selfTasks)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", selfTasks)
	}

	tids := make([]int, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		tids = append(tids, tid)
	}

	return tids, nil
}
