// Package extract implements the symbol extractor: it parses source files
// with tree-sitter and produces the declarations and import edges that the
// metadata store and embedding-text builder depend on. Files in languages
// without a registered grammar, or that fail to parse, degrade to opaque
// text rather than failing the whole run.
package extract

// Tree represents a parsed AST.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code.
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// LanguageConfig holds tree-sitter node-type configuration for a language.
type LanguageConfig struct {
	Name       string
	Extensions []string

	FunctionTypes  []string
	ClassTypes     []string
	InterfaceTypes []string
	MethodTypes    []string
	TypeDefTypes   []string
	ConstantTypes  []string
	VariableTypes  []string
	ImportTypes    []string

	NameField string
}
