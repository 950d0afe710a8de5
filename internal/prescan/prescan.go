// Package prescan implements the pre-scanner described in §4.2: a
// lookahead-only pass over a scope body's token stream that registers
// function, LLM-function, class, and top-level variable names before the
// main parser descends into that scope. This makes the parser's
// declaration-vs-expression disambiguation well defined even for forward
// references within the same scope.
package prescan

import (
	"ibci/internal/scope"
	"ibci/internal/token"
	"ibci/internal/types"
)

// KnownTypeNames is consulted by the pre-scanner (and later the parser) to
// decide whether a leading identifier names a type, which is what makes
// `Type name = expr` recognizable as a declaration. It is seeded with the
// built-in scalars and grows as user classes are pre-scanned.
type KnownTypeNames struct {
	names map[string]bool
}

// NewKnownTypeNames seeds the set with the built-in scalar type names plus
// `list`, `dict`, `Callable`, and `var`.
func NewKnownTypeNames() *KnownTypeNames {
	k := &KnownTypeNames{names: make(map[string]bool)}
	for name := range types.Builtins {
		k.names[name] = true
	}
	k.names["list"] = true
	k.names["dict"] = true
	k.names["Callable"] = true
	k.names["var"] = true
	return k
}

func (k *KnownTypeNames) Add(name string)      { k.names[name] = true }
func (k *KnownTypeNames) IsType(name string) bool { return k.names[name] }

// Scan runs a lookahead-only pass over toks[start:] (the body of a scope
// about to be parsed, already positioned just past its opening NEWLINE+
// INDENT) and registers declarations found at this scope's top level into
// target. It returns without consuming the caller's own cursor: toks is
// read by index only.
//
// Nested bodies (anything between a matching INDENT/DEDENT pair, or bracket
// pair) are skipped wholesale so their local variables are not hoisted into
// the outer scope, matching §4.2's "nested inner bodies are skipped by
// bracket/indent matching" rule.
func Scan(toks []token.Token, start int, target *scope.ScopeNode, knownTypes *KnownTypeNames) {
	i := start
	depth := 0 // INDENT/DEDENT nesting relative to start
	paren := 0

	for i < len(toks) {
		tk := toks[i]
		switch tk.Kind {
		case token.EOF:
			return
		case token.INDENT:
			depth++
			i++
			continue
		case token.DEDENT:
			if depth == 0 {
				return // end of this scope's body
			}
			depth--
			i++
			continue
		case token.LPAREN, token.LBRACKET, token.LBRACE:
			paren++
			i++
			continue
		case token.RPAREN, token.RBRACKET, token.RBRACE:
			if paren > 0 {
				paren--
			}
			i++
			continue
		}

		if depth > 0 || paren > 0 {
			i++
			continue
		}

		switch tk.Kind {
		case token.FUNC:
			if name, ok := identAt(toks, i+1); ok {
				retType := scanReturnAnnotation(toks, i)
				defineForward(target, name, scope.FunctionSymbol, retType)
			}
		case token.LLM_DEF:
			if name, ok := identAt(toks, i+1); ok {
				retType := scanReturnAnnotation(toks, i)
				defineForward(target, name, scope.FunctionSymbol, retType)
			}
		case token.CLASS:
			if name, ok := identAt(toks, i+1); ok {
				defineForward(target, name, scope.UserTypeSymbol, nil)
				knownTypes.Add(name)
			}
		case token.IDENT:
			if knownTypes.IsType(tk.Lexeme) {
				if varName, ok := identAt(toks, i+1); ok {
					defineForward(target, varName, scope.VariableSymbol, nil)
				} else if ok, afterGeneric := genericDeclAt(toks, i); ok {
					if varName, ok2 := identAt(toks, afterGeneric); ok2 {
						defineForward(target, varName, scope.VariableSymbol, nil)
					}
				}
			}
		}
		i++
	}
}

func identAt(toks []token.Token, i int) (string, bool) {
	if i < 0 || i >= len(toks) {
		return "", false
	}
	if toks[i].Kind == token.IDENT {
		return toks[i].Lexeme, true
	}
	return "", false
}

// genericDeclAt checks whether toks[i] begins `Name[...]` (a generic type
// annotation such as `List[int]`) and, if so, returns the index just past
// the matching closing bracket.
func genericDeclAt(toks []token.Token, i int) (bool, int) {
	if i+1 >= len(toks) || toks[i+1].Kind != token.LBRACKET {
		return false, 0
	}
	depth := 0
	j := i + 1
	for j < len(toks) {
		switch toks[j].Kind {
		case token.LBRACKET:
			depth++
		case token.RBRACKET:
			depth--
			if depth == 0 {
				return true, j + 1
			}
		case token.NEWLINE, token.EOF:
			return false, 0
		}
		j++
	}
	return false, 0
}

// scanReturnAnnotation walks a `func`/`llm` header starting at the keyword
// token to collect the `-> T` return-type token slice, if present.
func scanReturnAnnotation(toks []token.Token, kw int) []token.Token {
	i := kw
	depth := 0
	for i < len(toks) {
		switch toks[i].Kind {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		case token.ARROW:
			if depth == 0 {
				j := i + 1
				var out []token.Token
				for j < len(toks) && toks[j].Kind != token.COLON && toks[j].Kind != token.NEWLINE {
					out = append(out, toks[j])
					j++
				}
				return out
			}
		case token.COLON, token.NEWLINE:
			if depth == 0 {
				return nil
			}
		}
		i++
	}
	return nil
}

func defineForward(target *scope.ScopeNode, name string, kind scope.SymbolKind, declaredType []token.Token) {
	if _, exists := target.LookupLocal(name); exists {
		return // the semantic analyzer reports SEM_REDEFINITION when it re-visits this name
	}
	sym := &scope.Symbol{Name: name, Kind: kind}
	if declaredType != nil {
		sym.DeclaredTypeNode = declaredType
	}
	target.Define(name, sym)
}
