// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// ProgressConfig controls how progress bars render for a given invocation.
type ProgressConfig struct {
	// Enabled reports whether a progress bar should be rendered at all.
	// Disabled under --quiet and --json.
	Enabled bool
}

// NewProgressConfig derives progress-rendering settings from the global CLI
// flags. Progress bars are suppressed in quiet mode and JSON mode, since
// both expect stdout/stderr to carry only the final, parseable result.
func NewProgressConfig(globals GlobalFlags) ProgressConfig {
	return ProgressConfig{
		Enabled: !globals.Quiet && !globals.JSON,
	}
}

// NewProgressBar creates a progress bar for the given phase. When progress
// rendering is disabled, it still returns a bar, but an invisible one that
// draws nothing, so callers always call Set64/Finish unconditionally.
func NewProgressBar(cfg ProgressConfig, total int64, description string) *progressbar.ProgressBar {
	if !cfg.Enabled {
		return progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetVisibility(false),
		)
	}

	if total <= 0 {
		total = -1 // indeterminate spinner
	}

	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { _, _ = os.Stderr.WriteString("\n") }),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	)
}
