// Package scope implements the ScopeNode/Symbol graph described in §3: a
// tree of lexically nested scopes, each holding a name-to-Symbol map, with
// resolution walking parent links. Back-edges from a scope-introducing AST
// node to its ScopeNode, and from a Symbol to its declaring annotation, are
// ordinary Go pointers rather than literal weak references — the graph is
// acyclic from module downward, so garbage-collector cycles never arise.
package scope

import "ibci/internal/types"

// Kind distinguishes the four scope shapes the language introduces.
type Kind int

const (
	Global Kind = iota
	FunctionScope
	ClassScope
	Block
)

// SymbolKind tags what a Symbol names.
type SymbolKind int

const (
	VariableSymbol SymbolKind = iota
	FunctionSymbol
	UserTypeSymbol
	ModuleSymbol
)

// Symbol is one name binding in a ScopeNode.
//
// Invariant: TypeInfo is either set at declaration time or lazily filled
// from OriginSymbol.TypeInfo / DeclaredTypeNode the first time it is
// queried (see ResolveType); once set it is not reassigned except for the
// `var`-inferred case, where the first non-void assigned value fixes it.
type Symbol struct {
	Name             string
	Kind             SymbolKind
	TypeInfo         types.Type
	DeclaredTypeNode any // raw token slice or AST fragment for lazy resolution
	ExportedScope    *ScopeNode
	OriginSymbol     *Symbol // re-export chain target, nil if not a re-export
	IsConst          bool
}

// ResolveType returns the Symbol's type, lazily resolving it from an
// OriginSymbol chain if TypeInfo has not been fixed yet. resolveDeclared is
// invoked only when DeclaredTypeNode is non-nil and TypeInfo is still unset;
// it is supplied by the semantic analyzer, which alone knows how to turn raw
// type-annotation tokens into a types.Type.
func (s *Symbol) ResolveType(resolveDeclared func(node any) types.Type) types.Type {
	if s.TypeInfo != nil {
		return s.TypeInfo
	}
	if s.OriginSymbol != nil {
		t := s.OriginSymbol.ResolveType(resolveDeclared)
		s.TypeInfo = t
		return t
	}
	if s.DeclaredTypeNode != nil && resolveDeclared != nil {
		t := resolveDeclared(s.DeclaredTypeNode)
		s.TypeInfo = t
		return t
	}
	return types.Any
}

// ScopeNode is one node in the lexical scope tree.
type ScopeNode struct {
	Kind    Kind
	Parent  *ScopeNode
	Names   map[string]*Symbol
	Owner   string // enclosing function/class name, for diagnostics; "" at Global
}

// New creates an empty ScopeNode nested under parent (nil for the root
// Global scope).
func New(kind Kind, parent *ScopeNode, owner string) *ScopeNode {
	return &ScopeNode{Kind: kind, Parent: parent, Names: make(map[string]*Symbol), Owner: owner}
}

// Define binds name to sym in this scope, overwriting any existing local
// binding. Callers that must reject redefinition (the semantic analyzer)
// check Lookup first and report SEM_REDEFINITION themselves.
func (s *ScopeNode) Define(name string, sym *Symbol) {
	s.Names[name] = sym
}

// LookupLocal returns the Symbol bound to name in this scope only.
func (s *ScopeNode) LookupLocal(name string) (*Symbol, bool) {
	sym, ok := s.Names[name]
	return sym, ok
}

// Lookup resolves name by walking parent links, starting at this scope.
func (s *ScopeNode) Lookup(name string) (*Symbol, bool) {
	for sc := s; sc != nil; sc = sc.Parent {
		if sym, ok := sc.Names[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// Root walks parent links to the outermost (Global) scope.
func (s *ScopeNode) Root() *ScopeNode {
	sc := s
	for sc.Parent != nil {
		sc = sc.Parent
	}
	return sc
}
