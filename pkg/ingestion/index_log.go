// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var indexLogMu sync.Mutex

// AppendIndexLog appends a line to <state_dir>/index.log for indexing
// diagnostics. stateDir is the path to the tool's state directory (e.g.
// filepath.Join(repoPath, ".synapse")). Line format: ISO8601 + " " +
// message, so a file's indexing history can be found with
// grep "pkg/foo.go" .synapse/index.log
// Reindex-start/complete events are duplicated to stderr so they remain
// visible without tailing the file.
func AppendIndexLog(stateDir, message string) {
	if stateDir == "" {
		return
	}
	indexLogMu.Lock()
	defer indexLogMu.Unlock()
	if err := os.MkdirAll(stateDir, 0750); err != nil {
		return
	}
	logPath := filepath.Join(stateDir, "index.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return
	}
	line := fmt.Sprintf("%s %s\n", time.Now().Format(time.RFC3339), message)
	_, _ = f.WriteString(line)
	_ = f.Close()
	if isReindexOrWatchEvent(message) {
		_, _ = os.Stderr.WriteString("[synapse index.log] " + message + "\n")
	}
}

func isReindexOrWatchEvent(message string) bool {
	return len(message) >= 7 && message[:7] == "reindex"
}
