package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/codeindex/symgraph/internal/store"
)

// Result holds the outcome of extracting symbols and imports from one file.
type Result struct {
	Symbols []*store.Symbol
	Imports []*store.ImportEdge
	// Opaque is true when the language has no registered grammar, or the
	// source failed to parse; the caller should treat the file as opaque
	// text rather than abort the run.
	Opaque bool
}

// Extractor walks a tree-sitter parse tree and produces the declarations
// and import edges the metadata store depends on.
type Extractor struct {
	parser   *Parser
	registry *LanguageRegistry
}

func NewExtractor() *Extractor {
	return &Extractor{parser: NewParser(), registry: DefaultRegistry()}
}

func NewExtractorWithRegistry(registry *LanguageRegistry) *Extractor {
	return &Extractor{parser: NewParserWithRegistry(registry), registry: registry}
}

func (e *Extractor) Close() { e.parser.Close() }

// Extract parses source and extracts symbols/imports for fileID. A parse
// failure or an unregistered language never returns an error: the file
// degrades to Opaque so the caller can still index it as plain text.
func (e *Extractor) Extract(ctx context.Context, fileID string, source []byte, language string) (*Result, error) {
	config, ok := e.registry.GetByName(language)
	if !ok {
		return &Result{Opaque: true}, nil
	}

	tree, err := e.parser.Parse(ctx, source, language)
	if err != nil || tree == nil || tree.Root == nil {
		return &Result{Opaque: true}, nil
	}

	w := &symbolWalker{source: source, config: config, language: language, fileID: fileID}
	w.walk(tree.Root, "", false, false)
	resolveGoReceivers(w)

	imports := extractImports(tree.Root, source, config, language, fileID)

	return &Result{Symbols: w.symbols, Imports: imports}, nil
}

// symbolWalker recursively walks the AST tracking the nearest enclosing
// symbol (so methods get ParentSymbolID set to their class/type) and
// whether the current node sits under a JS/TS export_statement.
type symbolWalker struct {
	source      []byte
	config      *LanguageConfig
	language    string
	fileID      string
	symbols     []*store.Symbol
	goReceivers []goReceiver
}

// goReceiver records a Go method's receiver type name, resolved against the
// file's type declarations once the whole tree has been walked: a method's
// receiver is a sibling reference in the AST, not an ancestor, so it can't
// be resolved during the walk itself.
type goReceiver struct {
	sym      *store.Symbol
	typeName string
}

// goReceiverType extracts the receiver type name from a method_declaration
// node, unwrapping a leading pointer_type if present.
func goReceiverType(n *Node, source []byte) string {
	recv := n.FindChildByType("parameter_list")
	if recv == nil {
		return ""
	}
	decl := recv.FindChildByType("parameter_declaration")
	if decl == nil {
		return ""
	}
	if t := decl.FindChildByType("type_identifier"); t != nil {
		return t.GetContent(source)
	}
	if ptr := decl.FindChildByType("pointer_type"); ptr != nil {
		if t := ptr.FindChildByType("type_identifier"); t != nil {
			return t.GetContent(source)
		}
	}
	return ""
}

// walk recurses through the parse tree. insideClass tracks whether n's
// nearest enclosing function/class ancestor is a class body: Python has no
// distinct method node type, so a function_definition nested directly in a
// class_definition is the only signal that it's a method rather than a
// plain function.
func (w *symbolWalker) walk(n *Node, parentSymbolID string, exported, insideClass bool) {
	if n == nil {
		return
	}

	if n.Type == "export_statement" {
		for _, child := range n.Children {
			w.walk(child, parentSymbolID, true, insideClass)
		}
		return
	}

	kind, matched := w.classify(n, insideClass)
	special := extractSpecialSymbol(n, w.source, w.language)
	if special != nil {
		matched = false
	}
	nextParent := parentSymbolID
	childInsideClass := insideClass
	if matched {
		name := extractName(n, w.source, w.config, w.language)
		if name != "" {
			sym := &store.Symbol{
				SymbolID:       symbolID(w.fileID, name, kind, int(n.StartPoint.Row)+1),
				FileID:         w.fileID,
				Name:           name,
				Kind:           kind,
				Line:           int(n.StartPoint.Row) + 1,
				Column:         int(n.StartPoint.Column) + 1,
				IsExported:     isExported(name, w.language, exported),
				ParentSymbolID: parentSymbolID,
			}
			w.symbols = append(w.symbols, sym)
			nextParent = sym.SymbolID

			if w.language == "go" && kind == store.SymbolKindMethod {
				if recv := goReceiverType(n, w.source); recv != "" {
					w.goReceivers = append(w.goReceivers, goReceiver{sym: sym, typeName: recv})
				}
			}
		}
		switch kind {
		case store.SymbolKindClass:
			childInsideClass = true
		case store.SymbolKindFunction, store.SymbolKindMethod:
			childInsideClass = false
		}
	} else if special != nil {
		special.SymbolID = symbolID(w.fileID, special.Name, special.Kind, special.Line)
		special.FileID = w.fileID
		special.ParentSymbolID = parentSymbolID
		special.IsExported = isExported(special.Name, w.language, exported)
		w.symbols = append(w.symbols, special)
		nextParent = special.SymbolID
	}

	for _, child := range n.Children {
		w.walk(child, nextParent, false, childInsideClass)
	}
}

// classify reports which symbol kind a node represents, if any, per the
// language's configured tree-sitter node types. insideClass resolves the
// Function/Method ambiguity for languages like Python whose class methods
// and top-level functions share one node type.
func (w *symbolWalker) classify(n *Node, insideClass bool) (store.SymbolKind, bool) {
	cfg := w.config
	switch {
	case containsType(cfg.FunctionTypes, n.Type):
		if insideClass {
			return store.SymbolKindMethod, true
		}
		return store.SymbolKindFunction, true
	case containsType(cfg.MethodTypes, n.Type):
		return store.SymbolKindMethod, true
	case n.Type == "enum_declaration":
		return store.SymbolKindEnum, true
	case containsType(cfg.ClassTypes, n.Type):
		return store.SymbolKindClass, true
	case containsType(cfg.InterfaceTypes, n.Type):
		return store.SymbolKindInterface, true
	case containsType(cfg.TypeDefTypes, n.Type):
		return store.SymbolKindType, true
	case containsType(cfg.ConstantTypes, n.Type), containsType(cfg.VariableTypes, n.Type):
		return store.SymbolKindVariable, true
	}
	return "", false
}

// resolveGoReceivers links each method to the type symbol matching its
// receiver, once every type declaration in the file is known.
func resolveGoReceivers(w *symbolWalker) {
	if len(w.goReceivers) == 0 {
		return
	}
	byName := make(map[string]string, len(w.symbols))
	for _, sym := range w.symbols {
		if sym.Kind == store.SymbolKindType {
			byName[sym.Name] = sym.SymbolID
		}
	}
	for _, r := range w.goReceivers {
		if id, ok := byName[r.typeName]; ok {
			r.sym.ParentSymbolID = id
		}
	}
}

func containsType(types []string, t string) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// symbolID deterministically derives a stable identifier from the
// declaration's file, name, kind, and source line so re-indexing an
// unchanged file produces byte-identical symbol rows.
func symbolID(fileID, name string, kind store.SymbolKind, line int) string {
	h := xxhash.New()
	_, _ = h.Write([]byte(fileID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte{0})
	_, _ = fmt.Fprintf(h, "%d", line)
	return fmt.Sprintf("sym_%016x", h.Sum64())
}

func isExported(name, language string, underExport bool) bool {
	switch language {
	case "go":
		r := []rune(name)
		return len(r) > 0 && unicode.IsUpper(r[0])
	case "python":
		return !strings.HasPrefix(name, "_")
	case "typescript", "tsx", "javascript", "jsx":
		return underExport
	default:
		return false
	}
}

func extractName(n *Node, source []byte, config *LanguageConfig, language string) string {
	switch language {
	case "go":
		return extractGoName(n, source)
	case "typescript", "tsx":
		return extractTSName(n, source)
	case "javascript", "jsx":
		return extractJSName(n, source)
	case "python":
		return extractPythonName(n, source)
	default:
		for _, child := range n.Children {
			if child.Type == "identifier" {
				return child.GetContent(source)
			}
		}
	}
	return ""
}

func extractGoName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration":
		for _, child := range n.Children {
			if child.Type == "identifier" {
				return child.GetContent(source)
			}
		}
	case "method_declaration":
		for _, child := range n.Children {
			if child.Type == "field_identifier" {
				return child.GetContent(source)
			}
		}
	case "type_declaration":
		for _, child := range n.Children {
			if child.Type == "type_spec" {
				for _, gc := range child.Children {
					if gc.Type == "type_identifier" {
						return gc.GetContent(source)
					}
				}
			}
		}
	case "const_declaration":
		for _, child := range n.Children {
			if child.Type == "const_spec" {
				for _, gc := range child.Children {
					if gc.Type == "identifier" {
						return gc.GetContent(source)
					}
				}
			}
		}
	case "var_declaration":
		for _, child := range n.Children {
			if child.Type == "var_spec" {
				for _, gc := range child.Children {
					if gc.Type == "identifier" {
						return gc.GetContent(source)
					}
				}
			}
		}
	}
	return ""
}

func extractTSName(n *Node, source []byte) string {
	if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
		for _, child := range n.Children {
			if child.Type == "variable_declarator" {
				for _, gc := range child.Children {
					if gc.Type == "identifier" {
						return gc.GetContent(source)
					}
				}
			}
		}
	}
	for _, child := range n.Children {
		if child.Type == "identifier" || child.Type == "type_identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

func extractJSName(n *Node, source []byte) string {
	if n.Type == "lexical_declaration" || n.Type == "variable_declaration" {
		for _, child := range n.Children {
			if child.Type == "variable_declarator" {
				for _, gc := range child.Children {
					if gc.Type == "identifier" {
						return gc.GetContent(source)
					}
				}
			}
		}
	}
	for _, child := range n.Children {
		if child.Type == "identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

func extractPythonName(n *Node, source []byte) string {
	for _, child := range n.Children {
		if child.Type == "identifier" {
			return child.GetContent(source)
		}
	}
	return ""
}

// extractSpecialSymbol catches const foo = () => {} / const foo = function(){}
// patterns, which the plain node-type match in classify misses because the
// declaring node is a lexical_declaration wrapping a function expression.
func extractSpecialSymbol(n *Node, source []byte, language string) *store.Symbol {
	switch language {
	case "typescript", "tsx", "javascript", "jsx":
		if n.Type != "lexical_declaration" && n.Type != "variable_declaration" {
			return nil
		}
		for _, child := range n.Children {
			if child.Type != "variable_declarator" {
				continue
			}
			var name string
			var hasFunction bool
			for _, gc := range child.Children {
				if gc.Type == "identifier" {
					name = gc.GetContent(source)
				}
				if gc.Type == "arrow_function" || gc.Type == "function" || gc.Type == "function_expression" {
					hasFunction = true
				}
			}
			if name != "" && hasFunction {
				return &store.Symbol{
					Name: name,
					Kind: store.SymbolKindFunction,
					Line: int(n.StartPoint.Row) + 1,
					Column: int(n.StartPoint.Column) + 1,
				}
			}
		}
	}
	return nil
}

// extractImports walks a parse tree collecting import edges per the
// language's configured import node types.
func extractImports(root *Node, source []byte, config *LanguageConfig, language string, fileID string) []*store.ImportEdge {
	var edges []*store.ImportEdge
	for _, importType := range config.ImportTypes {
		for _, n := range root.FindAllByType(importType) {
			switch language {
			case "go":
				edges = append(edges, extractGoImportEdges(n, source, fileID)...)
			case "typescript", "tsx", "javascript", "jsx":
				if e := extractJSImportEdge(n, source, fileID); e != nil {
					edges = append(edges, e)
				}
			case "python":
				edges = append(edges, extractPythonImportEdges(n, source, fileID, importType)...)
			}
		}
	}
	return edges
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func extractGoImportEdges(n *Node, source []byte, fileID string) []*store.ImportEdge {
	specs := n.FindAllByType("import_spec")
	if len(specs) == 0 {
		specs = []*Node{n}
	}
	var edges []*store.ImportEdge
	for _, spec := range specs {
		var path string
		var alias string
		isDot := false
		isBlank := false
		for _, child := range spec.Children {
			switch child.Type {
			case "interpreted_string_literal", "raw_string_literal":
				path = unquote(child.GetContent(source))
			case "package_identifier":
				alias = child.GetContent(source)
			case "blank_identifier":
				isBlank = true
			case "dot":
				isDot = true
			}
		}
		if path == "" {
			continue
		}
		importedName := alias
		switch {
		case isDot:
			importedName = "*"
		case isBlank:
			importedName = "_"
		}
		edges = append(edges, &store.ImportEdge{
			FileID:       fileID,
			ModulePath:   path,
			ImportedName: importedName,
			IsDefault:    false,
		})
	}
	return edges
}

func extractJSImportEdge(n *Node, source []byte, fileID string) *store.ImportEdge {
	var path string
	for _, child := range n.Children {
		if child.Type == "string" {
			path = unquote(child.GetContent(source))
		}
	}
	if path == "" {
		return nil
	}

	var importedName string
	isDefault := false
	for _, child := range n.Children {
		if child.Type != "import_clause" {
			continue
		}
		for _, gc := range child.Children {
			switch gc.Type {
			case "identifier":
				importedName = gc.GetContent(source)
				isDefault = true
			case "namespace_import":
				importedName = "*"
			case "named_imports":
				for _, spec := range gc.FindAllByType("import_specifier") {
					if name := spec.FindChildByType("identifier"); name != nil {
						importedName = name.GetContent(source)
						break
					}
				}
			}
		}
	}

	return &store.ImportEdge{
		FileID:       fileID,
		ModulePath:   path,
		ImportedName: importedName,
		IsDefault:    isDefault,
	}
}

func extractPythonImportEdges(n *Node, source []byte, fileID, importType string) []*store.ImportEdge {
	if importType == "import_statement" {
		var edges []*store.ImportEdge
		for _, dn := range n.FindAllByType("dotted_name") {
			edges = append(edges, &store.ImportEdge{
				FileID:     fileID,
				ModulePath: dn.GetContent(source),
			})
		}
		return edges
	}

	// import_from_statement: first dotted_name is the module, the rest
	// (or a wildcard_import) are the imported names.
	names := n.FindAllByType("dotted_name")
	if len(names) == 0 {
		return nil
	}
	module := names[0].GetContent(source)
	var edges []*store.ImportEdge
	if len(n.FindAllByType("wildcard_import")) > 0 {
		edges = append(edges, &store.ImportEdge{FileID: fileID, ModulePath: module, ImportedName: "*"})
		return edges
	}
	for _, dn := range names[1:] {
		edges = append(edges, &store.ImportEdge{
			FileID:       fileID,
			ModulePath:   module,
			ImportedName: dn.GetContent(source),
		})
	}
	if len(edges) == 0 {
		edges = append(edges, &store.ImportEdge{FileID: fileID, ModulePath: module})
	}
	return edges
}
