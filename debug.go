// Copyright 2026 The magsp00f Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emv

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// debugEnabled controls whether debug logging is active
var debugEnabled = false

// sessionLogWriter receives all debug output regardless of console state
var (
	sessionLogWriter io.Writer
	sessionLogMu     sync.Mutex
)

func init() {
	// Enable debug logging if EMV_DEBUG or DEBUG is set
	if os.Getenv("EMV_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// SetDebugEnabled toggles console debug output at runtime
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// SetSessionLogWriter directs a copy of all debug output to w, typically a
// per-session log file. Pass nil to disable.
func SetSessionLogWriter(w io.Writer) {
	sessionLogMu.Lock()
	sessionLogWriter = w
	sessionLogMu.Unlock()
}

// Debugf prints debug information.
// Always writes to the session log (if set) with a timestamp.
// Only prints to console when debug mode is enabled.
func Debugf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)

	sessionLogMu.Lock()
	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}
	sessionLogMu.Unlock()

	if debugEnabled {
		_, _ = fmt.Printf("DEBUG: %s\n", message)
	}
}
