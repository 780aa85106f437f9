package ingestion

import (
	"regexp"
	"strings"
)

// interfaceMethodPattern matches method declarations in interface source code.
// Captures the method name from lines like "Write(data []byte) error" or "Flush() error".
var interfaceMethodPattern = regexp.MustCompile(`(?m)^\s*([A-Z][a-zA-Z0-9_]*)\s*\(`)

// BuildImplementsIndex determines which concrete types implement which interfaces
// by matching method sets. A concrete type implements an interface if it has all
// methods declared by that interface.
func BuildImplementsIndex(types []TypeEntity, functions []FunctionEntity) []ImplementsEdge {
	// 1. Collect interfaces and their required methods
	interfaces := extractInterfaceMethods(types)

	// 2. Build method sets for concrete types from receiver methods
	typeMethods := buildTypeMethodSets(functions)

	// 3. Build a set of interface names for self-match prevention
	interfaceNames := make(map[string]bool)
	for _, iface := range interfaces {
		interfaceNames[iface.name] = true
	}

	// 4. Match: find concrete types that implement each interface
	var edges []ImplementsEdge
	for _, iface := range interfaces {
		if len(iface.methods) == 0 {
			continue
		}
		for typeName, methods := range typeMethods {
			// Skip self-match: interface doesn't implement itself
			if interfaceNames[typeName] {
				continue
			}
			if hasAllMethods(methods, iface.methods) {
				edges = append(edges, ImplementsEdge{
					TypeName:      typeName,
					InterfaceName: iface.name,
					FilePath:      typeFilePath(typeName, functions),
				})
			}
		}
	}

	return edges
}

type interfaceInfo struct {
	name    string
	methods []string
}

// extractInterfaceMethods extracts method names from interface type definitions.
func extractInterfaceMethods(types []TypeEntity) []interfaceInfo {
	var result []interfaceInfo

	for _, t := range types {
		if t.Kind != "interface" {
			continue
		}
		methods := interfaceMethodPattern.FindAllStringSubmatch(t.CodeText, -1)
		var methodNames []string
		for _, m := range methods {
			if len(m) > 1 {
				methodNames = append(methodNames, m[1])
			}
		}
		result = append(result, interfaceInfo{
			name:    t.Name,
			methods: methodNames,
		})
	}

	return result
}

// buildTypeMethodSets builds a map of concrete type → set of method names
// from function entities with receiver syntax (e.g., "CozoDB.Write").
func buildTypeMethodSets(functions []FunctionEntity) map[string]map[string]bool {
	typeMethods := make(map[string]map[string]bool)

	for _, fn := range functions {
		if !strings.Contains(fn.Name, ".") {
			continue
		}
		parts := strings.SplitN(fn.Name, ".", 2)
		typeName := parts[0]
		methodName := parts[1]

		if typeMethods[typeName] == nil {
			typeMethods[typeName] = make(map[string]bool)
		}
		typeMethods[typeName][methodName] = true
	}

	return typeMethods
}

// hasAllMethods checks if the method set contains all required methods.
func hasAllMethods(methods map[string]bool, required []string) bool {
	for _, m := range required {
		if !methods[m] {
			return false
		}
	}
	return true
}

// typeFilePath finds the file path for a concrete type from its methods.
func typeFilePath(typeName string, functions []FunctionEntity) string {
	prefix := typeName + "."
	for _, fn := range functions {
		if strings.HasPrefix(fn.Name, prefix) {
			return fn.FilePath
		}
	}
	return ""
}

// BuildExtendsEdges resolves each type's syntactic Extends clause (a class
// extending a class, or an interface extending an interface) to the target
// type's ID. Unlike ImplementsEdge, which infers structural satisfaction,
// this reads the extends name the parser captured directly from the
// declaration. When more than one type in the corpus shares the parent's
// name, the same-file candidate wins; failing that, the alphabetically
// first file wins, so the result never depends on parse order.
func BuildExtendsEdges(types []TypeEntity) []ExtendsInterfaceEdge {
	byName := make(map[string][]TypeEntity)
	for _, t := range types {
		byName[t.Name] = append(byName[t.Name], t)
	}

	var edges []ExtendsInterfaceEdge
	for _, t := range types {
		if t.Extends == "" {
			continue
		}
		parentName := t.Extends
		if idx := strings.LastIndexByte(parentName, '.'); idx >= 0 {
			parentName = parentName[idx+1:]
		}
		candidates, ok := byName[parentName]
		if !ok || len(candidates) == 0 {
			continue
		}
		parent := pickExtendsTarget(t, candidates)
		if parent.ID == "" || parent.ID == t.ID {
			continue
		}
		edges = append(edges, ExtendsInterfaceEdge{ChildID: t.ID, ParentID: parent.ID})
	}
	return edges
}

// pickExtendsTarget chooses the most likely parent among same-named
// candidates: same-file first, then alphabetically first by file path.
func pickExtendsTarget(child TypeEntity, candidates []TypeEntity) TypeEntity {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.FilePath == child.FilePath && best.FilePath != child.FilePath {
			best = c
			continue
		}
		if best.FilePath == child.FilePath {
			continue
		}
		if c.FilePath < best.FilePath {
			best = c
		}
	}
	return best
}
