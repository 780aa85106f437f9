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

// Package errors defines the typed CLI error surface for the synapse command.
//
// Every user-facing failure in cmd/synapse is wrapped in one of the kinds below
// before reaching FatalError, which renders it consistently (plain text or JSON)
// and exits the process with a stable, kind-specific code.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
)

// Kind classifies a CLI-facing error for exit-code and rendering purposes.
type Kind string

const (
	KindUser       Kind = "user"       // bad input, missing confirmation, etc.
	KindConfig     Kind = "config"     // malformed or missing configuration
	KindPermission Kind = "permission" // filesystem/permission denied
	KindDatabase   Kind = "database"   // graph store open/query/write failure
	KindNetwork    Kind = "network"    // unreachable collaborator (unused by the local-only CLI today)
	KindInternal   Kind = "internal"   // bug in synapse itself
)

// CLIError is the single error type FatalError knows how to render. Constructors
// below (NewInputError, NewConfigError, ...) build one of these with a Kind tag.
type CLIError struct {
	Kind       Kind
	Title      string // one-line summary shown first
	Detail     string // longer explanation of what went wrong
	Suggestion string // actionable next step, omitted if empty
	Err        error  // wrapped underlying error, if any
}

func (e *CLIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return e.Title
}

func (e *CLIError) Unwrap() error { return e.Err }

func newError(kind Kind, title, detail, suggestion string, err error) *CLIError {
	return &CLIError{Kind: kind, Title: title, Detail: detail, Suggestion: suggestion, Err: err}
}

// NewInputError reports invalid or missing user input (bad flags, missing confirmation).
func NewInputError(title, detail, suggestion string) *CLIError {
	return newError(KindUser, title, detail, suggestion, nil)
}

// NewConfigError reports a problem loading or parsing the project configuration.
func NewConfigError(title, detail, suggestion string, err error) *CLIError {
	return newError(KindConfig, title, detail, suggestion, err)
}

// NewPermissionError reports a filesystem permission or I/O failure.
func NewPermissionError(title, detail, suggestion string, err error) *CLIError {
	return newError(KindPermission, title, detail, suggestion, err)
}

// NewDatabaseError reports a graph store open/query/write failure.
func NewDatabaseError(title, detail, suggestion string, err error) *CLIError {
	return newError(KindDatabase, title, detail, suggestion, err)
}

// NewNetworkError reports a failure reaching an external collaborator.
func NewNetworkError(title, detail, suggestion string, err error) *CLIError {
	return newError(KindNetwork, title, detail, suggestion, err)
}

// NewInternalError reports an unexpected, likely-a-bug failure.
func NewInternalError(title, detail, suggestion string, err error) *CLIError {
	return newError(KindInternal, title, detail, suggestion, err)
}

// exitCode maps an error kind to a process exit code. 1 is the catch-all for
// errors that were not constructed through this package.
func exitCode(kind Kind) int {
	switch kind {
	case KindUser:
		return 2
	case KindConfig:
		return 3
	case KindPermission:
		return 4
	case KindDatabase:
		return 5
	case KindNetwork:
		return 6
	case KindInternal:
		return 70
	default:
		return 1
	}
}

// jsonError is the wire shape FatalError writes to stderr in --json mode.
type jsonError struct {
	Kind       Kind   `json:"kind"`
	Title      string `json:"title"`
	Detail     string `json:"detail,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// FatalError prints err in the requested mode and exits the process. It never
// returns. Plain errors not wrapped in CLIError are rendered under KindInternal.
func FatalError(err error, jsonMode bool) {
	cliErr, ok := err.(*CLIError)
	if !ok {
		cliErr = newError(KindInternal, err.Error(), "", "", err)
	}

	if jsonMode {
		_ = json.NewEncoder(os.Stderr).Encode(jsonError{
			Kind:       cliErr.Kind,
			Title:      cliErr.Title,
			Detail:     cliErr.Detail,
			Suggestion: cliErr.Suggestion,
		})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", cliErr.Title)
		if cliErr.Detail != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", cliErr.Detail)
		}
		if cliErr.Err != nil {
			fmt.Fprintf(os.Stderr, "  cause: %v\n", cliErr.Err)
		}
		if cliErr.Suggestion != "" {
			fmt.Fprintf(os.Stderr, "\n%s\n", cliErr.Suggestion)
		}
	}

	os.Exit(exitCode(cliErr.Kind))
}
