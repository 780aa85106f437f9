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

import "strings"

// parseProtobufContent extracts RPC method declarations from a .proto file
// as FunctionEntity records, using simplified line scanning rather than a
// full protobuf grammar (no tree-sitter grammar is bundled for protobuf).
// Protobuf schemas declare no executable calls, so the returned CallsEdge
// slice is always empty.
//
// Recognizes:
//
//	service Catalog {
//	    rpc GetItem(GetItemRequest) returns (GetItemResponse);
//	}
//
// Each rpc line becomes a function named "ServiceName.MethodName" so it
// sits alongside Go/Python/JS functions without name collisions.
func parseProtobufContent(content, filePath string, truncate func(string) string) ([]FunctionEntity, []CallsEdge) {
	var functions []FunctionEntity

	lines := strings.Split(content, "\n")
	serviceName := ""

	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "service ") {
			rest := strings.TrimPrefix(trimmed, "service ")
			rest = strings.TrimSpace(strings.TrimSuffix(rest, "{"))
			serviceName = strings.TrimSpace(rest)
			continue
		}

		if strings.HasPrefix(trimmed, "}") && !strings.Contains(trimmed, "(") {
			serviceName = ""
			continue
		}

		if !strings.HasPrefix(trimmed, "rpc ") {
			continue
		}

		sig := strings.TrimSpace(strings.TrimPrefix(trimmed, "rpc "))
		sig = strings.TrimSuffix(sig, ";")
		parenIdx := strings.Index(sig, "(")
		if parenIdx == -1 {
			continue
		}

		methodName := strings.TrimSpace(sig[:parenIdx])
		name := methodName
		if serviceName != "" {
			name = serviceName + "." + methodName
		}

		codeText := truncate(trimmed)

		fn := FunctionEntity{
			ID:        GenerateFunctionID(filePath, name, sig, lineNum, lineNum, 1, len(line)),
			Name:      name,
			Signature: sig,
			FilePath:  filePath,
			CodeText:  codeText,
			StartLine: lineNum,
			EndLine:   lineNum,
			StartCol:  1,
			EndCol:    len(line),
		}
		functions = append(functions, fn)
	}

	return functions, nil
}

// parseProtobufSimplified adapts parseProtobufContent for the Tree-sitter
// parser's pooled-parser call sites, which carry *TreeSitterParser (for its
// own truncateCodeText/truncation counter) instead of *Parser.
func parseProtobufSimplified(content []byte, filePath string, p *TreeSitterParser) ([]FunctionEntity, []CallsEdge) {
	return parseProtobufContent(string(content), filePath, p.truncateCodeText)
}
