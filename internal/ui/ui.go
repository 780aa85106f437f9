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
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui centralizes the terminal presentation the synapse CLI uses:
// colored headers, labels and dimmed timings. Colored output goes through
// here so --no-color and a non-TTY stdout are honored in exactly one place.
// Progress bars are not part of this package.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Color handles used by commands. InitColors rebinds them based on the
// --no-color flag and whether stdout is a terminal.
var (
	Cyan   = color.New(color.FgCyan)
	Green  = color.New(color.FgGreen)
	Yellow = color.New(color.FgYellow)
	Red    = color.New(color.FgRed)
	Dim    = color.New(color.Faint)
)

// InitColors enables or disables color output based on the --no-color flag
// and whether stdout is attached to a terminal. Called once from main before
// any command runs.
func InitColors(noColor bool) {
	disable := noColor || !isatty.IsTerminal(os.Stdout.Fd())
	color.NoColor = disable
}

// Header prints a bold section header on a line of its own.
func Header(title string) {
	_, _ = Cyan.Add(color.Bold).Println(title)
}

// SubHeader prints a lighter-weight section label, used inside a Header block.
func SubHeader(title string) {
	_, _ = Dim.Add(color.Bold).Println(title)
}

// Label formats a left-hand column label for "Label: value" lines.
func Label(s string) string {
	return Dim.Sprint(s)
}

// DimText renders s in the dim/faint color without printing it.
func DimText(s string) string {
	return Dim.Sprint(s)
}

// CountText renders an integer count, used for entity/relationship totals.
func CountText(n int) string {
	return fmt.Sprintf("%d", n)
}

// Info prints an informational line with no color.
func Info(s string) {
	fmt.Println(s)
}

// Infof formats and prints an informational line.
func Infof(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
}

// Success prints a green success message.
func Success(s string) {
	_, _ = Green.Println(s)
}

// Successf formats and prints a green success message.
func Successf(format string, args ...interface{}) {
	_, _ = Green.Printf(format+"\n", args...)
}

// Warning prints a yellow warning message to stdout.
func Warning(s string) {
	_, _ = Yellow.Println(s)
}

// Warningf formats and prints a yellow warning message.
func Warningf(format string, args ...interface{}) {
	_, _ = Yellow.Printf(format+"\n", args...)
}
