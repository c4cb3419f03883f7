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

import (
	"os"

	"github.com/sirupsen/logrus"
)

var logEnabled = os.Getenv("INTERJECT_DEBUG") != ""

// SetLogEnabled turns debug logging for the engine on or off. Logging is off
// by default unless the INTERJECT_DEBUG environment variable is set.
//
// Nothing is ever logged while peer threads are halted, regardless of this
// setting.
func SetLogEnabled(enabled bool) {
	logEnabled = enabled
}

func makeLogger(fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Level = logrus.DebugLevel
	if !logEnabled {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// engineLogger returns the logger for the transaction engine.
func engineLogger() *logrus.Entry {
	return makeLogger(logrus.Fields{"layer": "engine"})
}

// symbolsLogger returns the logger for module walking and symbol resolution.
func symbolsLogger() *logrus.Entry {
	return makeLogger(logrus.Fields{"layer": "symbols"})
}
