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

// Schema defines the Datalog schema for CIE ingestion entities.
//
// Tables (v3 - vertically partitioned for performance):
//   - cie_file: File entities
//   - cie_function: Function metadata (lightweight, ~500 bytes/row)
//   - cie_function_code: Function code text (lazy loaded)
//   - cie_function_embedding: Function embeddings (for HNSW only)
//   - cie_type: Type metadata (lightweight)
//   - cie_type_code: Type code text (lazy loaded)
//   - cie_type_embedding: Type embeddings (for HNSW only)
//   - cie_defines: Edge from file to function
//   - cie_defines_type: Edge from file to type
//   - cie_calls: Edge from caller function to callee function
//   - cie_import: Import statements for cross-package call resolution
//
// All IDs are deterministic and stable across re-runs for idempotency.

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// FileEntity represents a source file in the repository.
type FileEntity struct {
	ID       string // Deterministic: hash(file_path) or file_path itself
	Path     string // Relative path from repo root
	Hash     string // Content hash (SHA256) for change detection
	Language string // Detected language (go, python, javascript, etc.)
	Size     int64  // File size in bytes
}

// FunctionEntity represents a function/method extracted from code.
// Note: In the database, CodeText and Embedding are stored in separate tables
// (cie_function_code, cie_function_embedding) for query performance.
// The struct keeps all fields for use in the ingestion pipeline.
type FunctionEntity struct {
	ID        string    // Deterministic: hash(file_path + name + range) - signature excluded for stability
	Name      string    // Function name
	Signature string    // Full signature if available, else empty (metadata only, not used in ID)
	FilePath  string    // Path to containing file
	CodeText  string    // Raw code snippet (stored in cie_function_code)
	Embedding []float32 // Embedding vector (stored in cie_function_embedding)
	StartLine int       // Start line (1-indexed)
	EndLine   int       // End line (1-indexed)
	StartCol  int       // Start column (1-indexed)
	EndCol    int       // End column (1-indexed)
}

// DefinesEdge represents a "file defines function" relationship.
type DefinesEdge struct {
	FileID     string // Reference to FileEntity.ID
	FunctionID string // Reference to FunctionEntity.ID
}

// TypeEntity is the tagged-variant entity covering Class, Interface, and
// TypeAlias: Kind carries the discriminant and the store schema, not a
// Go subtype tower, tells them apart. This is language-agnostic and
// normalizes across:
//   - Go: struct (class-like), interface, type_alias
//   - Python: class
//   - TypeScript: interface, class, type_alias
//   - JavaScript: class
//
// Note: In the database, CodeText and Embedding are stored in separate tables
// (cie_type_code, cie_type_embedding) for query performance.
type TypeEntity struct {
	ID         string    // Deterministic: hash(file_path + name + range)
	Name       string    // Type name (e.g., "UserService", "Handler")
	Kind       string    // "struct", "interface", "class", "type_alias"
	FilePath   string    // Path to containing file
	CodeText   string    // Raw code snippet (stored in cie_type_code)
	Embedding  []float32 // Embedding vector (stored in cie_type_embedding)
	StartLine  int       // Start line (1-indexed)
	EndLine    int       // End line (1-indexed)
	StartCol   int       // Start column (1-indexed)
	EndCol     int       // End column (1-indexed)
	Exported   bool      // Name starts with an exported/public marker for the language
	Abstract   bool      // Class only: declared abstract
	DocComment string    // Doc comment immediately preceding the declaration, if any
	Extends    string    // Class only: name of the extends-target, empty if none
	TypeExpr   string    // TypeAlias only: the aliased type expression
}

// VariableEntity represents a top-level or exported variable/constant declaration.
type VariableEntity struct {
	ID        string // Deterministic: hash(file_path + name + line + col)
	Name      string
	FilePath  string
	Line      int
	Col       int
	TypeExpr  string // Declared type expression, empty if inferred
	Const     bool
	Exported  bool
	Scope     string // e.g. "package", "file", "block"
}

// GhostEntity is a placeholder for a symbol referenced but not defined
// within the indexed repository: an import from an external package, or
// an interface-dispatch target the linker could not resolve to a
// concrete implementation.
type GhostEntity struct {
	ID          string // Deterministic: hash(package_name + "|" + name + "|" + kind)
	Name        string
	PackageName string // Empty when the ghost has no known package (nullable in spec terms)
	Kind        string // "function", "method", "type", "package"
	Signature   string // Known signature, empty if unknown
}

// ExtendsInterfaceEdge represents an interface extending another interface.
type ExtendsInterfaceEdge struct {
	ChildID  string // Reference to TypeEntity.ID (kind=interface)
	ParentID string // Reference to TypeEntity.ID or GhostEntity.ID
}

// HasMethodEdge represents a class/struct/interface having a method.
type HasMethodEdge struct {
	TypeID     string // Reference to TypeEntity.ID
	FunctionID string // Reference to FunctionEntity.ID
	Visibility string // "public", "private", "protected"
	Static     bool
	Abstract   bool
}

// UsesTypeEdge represents a signature referencing another type by name.
type UsesTypeEdge struct {
	FromID        string // Reference to FunctionEntity.ID or TypeEntity.ID (the referencing entity)
	ToID          string // Reference to TypeEntity.ID or GhostEntity.ID (the referenced type)
	Context       string // "param", "return", "field"
	ParameterName string // Empty unless Context == "param"
}

// ReferencesExternalEdge represents a reference to a GhostEntity.
type ReferencesExternalEdge struct {
	FromID  string // Reference to FunctionEntity.ID, TypeEntity.ID, or ImportEntity.ID
	GhostID string // Reference to GhostEntity.ID
	Context string // "call", "import", "extends", "implements", "uses_type"
	Line    int
}

// DefinesTypeEdge represents a "file defines type" relationship.
type DefinesTypeEdge struct {
	FileID string // Reference to FileEntity.ID
	TypeID string // Reference to TypeEntity.ID
}

// CallsEdge represents a "function calls function" relationship.
// Includes both same-file calls and cross-package calls (resolved via imports).
type CallsEdge struct {
	CallerID string // Reference to FunctionEntity.ID (caller)
	CalleeID string // Reference to FunctionEntity.ID (callee)
	CallLine int    // Line number where the call occurs in the caller (0 = unknown)
}

// ImportEntity represents an import statement in a source file.
type ImportEntity struct {
	ID         string // Deterministic: hash(file_path + import_path)
	FilePath   string // File that contains the import
	ImportPath string // Module/package being imported (e.g., "fmt", "github.com/org/pkg")
	Alias      string // Import alias: "" (default), "alias", "." (dot import), "_" (blank import)
	StartLine  int    // Line number of the import statement
}

// UnresolvedCall represents a function call that couldn't be resolved locally.
// These are collected during parsing and resolved later using import information.
type UnresolvedCall struct {
	CallerID   string // Reference to FunctionEntity.ID of the caller
	CalleeName string // Name of the called function (e.g., "foo" or "pkg.Foo")
	FilePath   string // File where the call occurs (for import resolution)
	Line       int    // Line number of the call
}

// PackageInfo represents a Go package with its files.
type PackageInfo struct {
	PackagePath string   // Directory path (e.g., "internal/http/handlers")
	PackageName string   // Package name from `package X` declaration
	Files       []string // Files that belong to this package
}

// FieldEntity represents a struct field with its type, used for interface dispatch resolution.
// When a struct has a field of an interface type, calls through that field can be resolved
// to concrete implementations.
type FieldEntity struct {
	StructName string // e.g., "Builder"
	FieldName  string // e.g., "writer"
	FieldType  string // Base type name, no pointer/slice (e.g., "Writer")
	FilePath   string
	Line       int
}

// ImplementsEdge represents that a concrete type implements an interface.
// Built by matching method sets: if a struct has all methods declared by an interface,
// it implements that interface.
type ImplementsEdge struct {
	TypeName      string // e.g., "CozoDB"
	InterfaceName string // e.g., "Writer"
	FilePath      string // File containing the concrete type
}

// GenerateFieldID generates a deterministic ID for a field entity.
func GenerateFieldID(filePath, structName, fieldName string) string {
	h := sha256.New()
	h.Write([]byte(filePath))
	h.Write([]byte("|"))
	h.Write([]byte(structName))
	h.Write([]byte("|"))
	h.Write([]byte(fieldName))
	return "fld:" + hex.EncodeToString(h.Sum(nil))[:16]
}

// GenerateImplementsID generates a deterministic ID for an implements edge.
func GenerateImplementsID(typeName, interfaceName string) string {
	h := sha256.New()
	h.Write([]byte(typeName))
	h.Write([]byte("|"))
	h.Write([]byte(interfaceName))
	return "impl:" + hex.EncodeToString(h.Sum(nil))[:16]
}

// GenerateVariableID generates a deterministic ID for a variable entity.
func GenerateVariableID(filePath, name string, line, col int) string {
	h := sha256.New()
	h.Write([]byte(filePath))
	h.Write([]byte("|"))
	h.Write([]byte(name))
	h.Write([]byte("|"))
	_, _ = fmt.Fprintf(h, "%d:%d", line, col)
	return "var:" + hex.EncodeToString(h.Sum(nil))[:16]
}

// GenerateGhostID generates a deterministic ID for a ghost (external/unresolved)
// placeholder entity. At most one ghost row exists per
// (package_name, name, kind) — this is the uniqueness key, so minting is
// idempotent across files and runs that reference the same external symbol.
func GenerateGhostID(packageName, name, kind string) string {
	h := sha256.New()
	h.Write([]byte(packageName))
	h.Write([]byte("|"))
	h.Write([]byte(name))
	h.Write([]byte("|"))
	h.Write([]byte(kind))
	return "ghost:" + hex.EncodeToString(h.Sum(nil))[:16]
}

// DatalogSchema returns the Datalog schema definition for all ingestion tables.
// Schema v3: Vertically partitioned for performance on large datasets.
func DatalogSchema() string {
	return `
// CIE Ingestion Schema v3 - Vertically Partitioned
// File entities: represents source files in the repository
:create cie_file {
	id: String =>
	path: String,
	hash: String,
	language: String,
	size: Int
}

// Function entities: lightweight metadata (~500 bytes/row)
// code_text and embedding are stored in separate tables for performance
:create cie_function {
	id: String =>
	name: String,
	signature: String,
	file_path: String,
	start_line: Int,
	end_line: Int,
	start_col: Int,
	end_col: Int
}

// Function code text: lazy loaded only when displaying source
:create cie_function_code {
	function_id: String =>
	code_text: String
}

// Function embeddings: used only for HNSW semantic search
// Note: embedding uses CozoDB vector type <F32; 1536> for HNSW index support
// 1536 dimensions for Qodo-Embed-1-1.5B (768 for nomic-embed-text)
:create cie_function_embedding {
	function_id: String =>
	embedding: <F32; 1536>
}

// Defines edges: file -> function (file defines function)
:create cie_defines {
	file_id: String,
	function_id: String =>
}

// Calls edges: function -> function (caller calls callee)
:create cie_calls {
	caller_id: String,
	callee_id: String =>
	call_line: Int default 0,
}

// Import entities: represents import statements in source files
:create cie_import {
	id: String =>
	file_path: String,
	import_path: String,
	alias: String,
	start_line: Int
}

// Type entities: lightweight metadata
// code_text and embedding are stored in separate tables for performance
:create cie_type {
	id: String =>
	name: String,
	kind: String,
	file_path: String,
	start_line: Int,
	end_line: Int,
	start_col: Int,
	end_col: Int
}

// Type code text: lazy loaded only when displaying source
:create cie_type_code {
	type_id: String =>
	code_text: String
}

// Type embeddings: used only for HNSW semantic search
// 1536 dimensions for Qodo-Embed-1-1.5B (768 for nomic-embed-text)
:create cie_type_embedding {
	type_id: String =>
	embedding: <F32; 1536>
}

// Defines type edges: file -> type (file defines type)
:create cie_defines_type {
	file_id: String,
	type_id: String =>
}

// Struct field entities: tracks typed fields for interface dispatch resolution
:create cie_field {
	id: String =>
	struct_name: String,
	field_name: String,
	field_type: String,
	file_path: String,
	line: Int
}

// Implements edges: concrete type -> interface (type implements interface)
:create cie_implements {
	id: String =>
	type_name: String,
	interface_name: String,
	file_path: String
}

// Variable entities: top-level or exported variable/constant declarations
:create cie_variable {
	id: String =>
	name: String,
	file_path: String,
	line: Int,
	col: Int,
	type_expr: String,
	const: Bool,
	exported: Bool,
	scope: String
}

// Ghost entities: placeholders for symbols referenced but not defined in
// the indexed repository. Unique per (package_name, name, kind).
:create cie_ghost {
	id: String =>
	name: String,
	package_name: String,
	kind: String,
	signature: String
}

// Extends-interface edges: interface -> interface
:create cie_extends_interface {
	child_id: String,
	parent_id: String =>
}

// Has-method edges: type -> function
:create cie_has_method {
	type_id: String,
	function_id: String =>
	visibility: String default "public",
	static: Bool default false,
	abstract: Bool default false,
}

// Uses-type edges: function/type -> type/ghost
:create cie_uses_type {
	from_id: String,
	to_id: String,
	context: String =>
	parameter_name: String default "",
}

// References-external edges: function/type/import -> ghost
:create cie_references_external {
	from_id: String,
	ghost_id: String,
	context: String =>
	line: Int default 0,
}

// schema_version: single-row relation guarding forward-only migrations.
:create cie_schema_version {
	id: Int =>
	version: Int
}
`
}

// GenerateImportID generates a deterministic ID for an import entity.
func GenerateImportID(filePath, importPath string) string {
	h := sha256.New()
	h.Write([]byte(filePath))
	h.Write([]byte("|"))
	h.Write([]byte(importPath))
	return "imp:" + hex.EncodeToString(h.Sum(nil))[:16]
}

// GenerateTypeID generates a deterministic ID for a type entity.
func GenerateTypeID(filePath, name string, startLine, endLine int) string {
	h := sha256.New()
	h.Write([]byte(filePath))
	h.Write([]byte("|"))
	h.Write([]byte(name))
	h.Write([]byte("|"))
	_, _ = fmt.Fprintf(h, "%d-%d", startLine, endLine)
	return "typ:" + hex.EncodeToString(h.Sum(nil))[:16]
}
